package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homestock/internal/invitecode"
	"homestock/internal/logging"
	"homestock/internal/models"
	"homestock/internal/repository"
	"homestock/internal/validation"
)

// maxCodeAttempts bounds regeneration when a new code collides with a stored one
const maxCodeAttempts = 5

// InviteMailer delivers invite codes by email
type InviteMailer interface {
	IsEnabled() bool
	SendInviteEmail(ctx context.Context, toEmail, familyName, code string, expiresAt time.Time) error
}

// InviteService manages a family's invite codes
type InviteService struct {
	invites  InviteStore
	families FamilyStore
	mailer   InviteMailer
	now      func() time.Time
	generate func() (string, error)
}

// NewInviteService creates a new invite service. mailer may be nil.
func NewInviteService(invites InviteStore, families FamilyStore, mailer InviteMailer) *InviteService {
	return &InviteService{
		invites:  invites,
		families: families,
		mailer:   mailer,
		now:      time.Now,
		generate: invitecode.Generate,
	}
}

// Create issues a code for the admin's family, valid for expiresInDays (default 7).
// When an email address is given and mail is configured, the code is sent there too.
func (s *InviteService) Create(ctx context.Context, admin *models.User, input models.CreateInviteInput) (*models.InviteCode, error) {
	if err := validation.ValidateStruct(input); err != nil {
		return nil, err
	}
	days := invitecode.DefaultExpiryDays
	if input.ExpiresInDays != nil {
		days = *input.ExpiresInDays
	}

	inv, err := s.CreateForFamily(ctx, admin.FamilyID, admin.ID, days)
	if err != nil {
		return nil, err
	}

	if input.Email != "" && s.mailer != nil && s.mailer.IsEnabled() {
		familyName := ""
		if family, err := s.families.GetFamilyByID(ctx, admin.FamilyID); err == nil && family != nil {
			familyName = family.Name
		}
		// The code is already usable; a failed delivery is only logged
		if err := s.mailer.SendInviteEmail(ctx, input.Email, familyName, inv.Code, inv.ExpiresAt); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("family_id", admin.FamilyID).Msg("failed to send invite email")
		}
	}
	return inv, nil
}

// CreateForFamily stores a new active code. The expiry window is the caller's choice.
func (s *InviteService) CreateForFamily(ctx context.Context, familyID, createdBy string, days int) (*models.InviteCode, error) {
	now := s.now().UTC().Truncate(time.Microsecond)
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate invite code: %w", err)
		}
		inv := &models.InviteCode{
			Code:      code,
			FamilyID:  familyID,
			Status:    models.InviteActive,
			ExpiresAt: invitecode.CalculateExpiryFrom(now, days),
			CreatedBy: createdBy,
			CreatedAt: now,
		}
		err = s.invites.CreateInvitation(ctx, inv)
		if errors.Is(err, repository.ErrDuplicate) {
			logging.Ctx(ctx).Debug().Int("attempt", attempt+1).Msg("invite code collision, regenerating")
			continue
		}
		if err != nil {
			return nil, err
		}
		return inv, nil
	}
	return nil, fmt.Errorf("failed to create invite code after %d attempts", maxCodeAttempts)
}

// List returns the family's codes, newest first
func (s *InviteService) List(ctx context.Context, familyID string) ([]models.InviteCode, error) {
	return s.invites.ListFamilyInvitations(ctx, familyID)
}

// Revoke withdraws an active code
func (s *InviteService) Revoke(ctx context.Context, familyID, code string) error {
	outcome, err := s.invites.RevokeInvitation(ctx, familyID, invitecode.Normalize(code), s.now())
	if err != nil {
		return err
	}
	switch outcome {
	case repository.OutcomeNotFound:
		return ErrInviteCodeNotFound
	case repository.OutcomeBlocked:
		return ErrStatusConflict
	}
	return nil
}

// Purge deletes spent codes whose last change is older than olderThan
func (s *InviteService) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.invites.PurgeInvitations(ctx, s.now().Add(-olderThan))
}
