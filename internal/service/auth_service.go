package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homestock/internal/authz"
	"homestock/internal/invitecode"
	"homestock/internal/logging"
	"homestock/internal/models"
	"homestock/internal/repository"
	"homestock/internal/validation"
)

// AuthService handles onboarding through invite codes and the caller's own profile
type AuthService struct {
	users   UserStore
	invites InviteStore
	now     func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, invites InviteStore) *AuthService {
	return &AuthService{
		users:   users,
		invites: invites,
		now:     time.Now,
	}
}

// Me returns the user behind a verified identity
func (s *AuthService) Me(ctx context.Context, identity models.Identity) (*models.User, error) {
	return authz.RequireUser(ctx, s.users, identity)
}

// UserByDiscordID resolves the member linked to a Discord account
func (s *AuthService) UserByDiscordID(ctx context.Context, discordID string) (*models.User, error) {
	if discordID == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.users.GetUserByDiscordID(ctx, discordID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Join provisions a user from an invite code. An identity that already joined gets its
// existing record and created is false; the code is not consumed in that case.
func (s *AuthService) Join(ctx context.Context, identity models.Identity, input models.JoinInput) (user *models.User, created bool, err error) {
	if err := validation.ValidateStruct(input); err != nil {
		return nil, false, err
	}
	if identity.Subject == "" {
		return nil, false, ErrUserNotFound
	}

	existing, err := s.users.GetUserByID(ctx, identity.Subject)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	code := invitecode.Normalize(input.InviteCode)
	if !invitecode.IsValidFormat(code) {
		return nil, false, ErrInviteCodeInvalid
	}

	user, result, err := s.invites.RedeemInvitation(ctx, code, identity, s.now())
	if err != nil {
		return nil, false, fmt.Errorf("failed to redeem invite code: %w", err)
	}

	switch result {
	case repository.Redeemed:
		logging.Ctx(ctx).Info().
			Str("user_id", user.ID).
			Str("family_id", user.FamilyID).
			Str("role", string(user.Role)).
			Msg("user joined family")
		return user, true, nil
	case repository.AlreadyMember:
		return user, false, nil
	case repository.CodeNotFound:
		return nil, false, ErrInviteCodeNotFound
	case repository.CodeExpired:
		return nil, false, ErrInviteCodeExpired
	default:
		return nil, false, ErrInviteCodeInvalid
	}
}

// UpdateProfile changes the caller's display name or Discord link. A null discordId unlinks.
func (s *AuthService) UpdateProfile(ctx context.Context, user *models.User, input models.UpdateProfileInput) (*models.User, error) {
	var b validation.Builder
	requiredText(&b, "displayName", input.DisplayName, 100)
	if input.DiscordID.Set && !input.DiscordID.Null && input.DiscordID.Value != "" {
		if err := validation.ValidateVar("discordId", input.DiscordID.Value, "numeric,min=5,max=25"); err != nil {
			b.Add("discordId", "must be a numeric Discord user id")
		}
	}
	if err := b.Err(); err != nil {
		return nil, err
	}

	updated, err := s.users.UpdateProfile(ctx, user.ID, input)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, ErrDiscordIDTaken
	}
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrUserNotFound
	}
	return updated, nil
}
