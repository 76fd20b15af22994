package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"homestock/internal/database"
	"homestock/internal/models"
)

const inviteColumns = "code, family_id, status, expires_at, created_by, created_at, used_by, used_at, revoked_at"

// RedeemResult says how a join attempt was resolved
type RedeemResult int

const (
	Redeemed RedeemResult = iota
	AlreadyMember
	CodeNotFound
	CodeUnavailable
	CodeExpired
)

// InvitationRepository stores invite codes and performs the join transaction
type InvitationRepository struct {
	db *database.DB
}

func NewInvitationRepository(db *database.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

func scanInvite(s scanner) (*models.InviteCode, error) {
	inv := &models.InviteCode{}
	err := s.Scan(
		&inv.Code,
		&inv.FamilyID,
		&inv.Status,
		&inv.ExpiresAt,
		&inv.CreatedBy,
		&inv.CreatedAt,
		&inv.UsedBy,
		&inv.UsedAt,
		&inv.RevokedAt,
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// CreateInvitation stores a new active code. Returns ErrDuplicate if the code already exists.
func (r *InvitationRepository) CreateInvitation(ctx context.Context, inv *models.InviteCode) error {
	query := `INSERT INTO invite_codes (code, family_id, status, expires_at, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, inv.Code, inv.FamilyID, inv.Status, inv.ExpiresAt.UTC(), inv.CreatedBy, inv.CreatedAt.UTC())
	if err != nil {
		if r.db.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

// GetInvitationByCode retrieves an invitation by its normalized code
func (r *InvitationRepository) GetInvitationByCode(ctx context.Context, code string) (*models.InviteCode, error) {
	return getInvite(ctx, r.db, code)
}

func getInvite(ctx context.Context, q database.DBTX, code string) (*models.InviteCode, error) {
	inv, err := scanInvite(q.QueryRowContext(ctx, "SELECT "+inviteColumns+" FROM invite_codes WHERE code = ?", code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

// ListFamilyInvitations returns a family's codes, newest first
func (r *InvitationRepository) ListFamilyInvitations(ctx context.Context, familyID string) ([]models.InviteCode, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+inviteColumns+" FROM invite_codes WHERE family_id = ? ORDER BY created_at DESC, code", familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	invites := []models.InviteCode{}
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invites = append(invites, *inv)
	}
	return invites, rows.Err()
}

// RevokeInvitation moves an active code to revoked
func (r *InvitationRepository) RevokeInvitation(ctx context.Context, familyID, code string, now time.Time) (Outcome, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE invite_codes SET status = ?, revoked_at = ? WHERE code = ? AND family_id = ? AND status = ?",
		models.InviteRevoked, now.UTC(), code, familyID, models.InviteActive)
	if err != nil {
		return OutcomeApplied, fmt.Errorf("failed to revoke invitation: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected > 0 {
		return OutcomeApplied, nil
	}

	inv, err := r.GetInvitationByCode(ctx, code)
	if err != nil {
		return OutcomeApplied, err
	}
	if inv == nil || inv.FamilyID != familyID {
		return OutcomeNotFound, nil
	}
	return OutcomeBlocked, nil
}

// PurgeInvitations deletes codes that were used, revoked or expired before cutoff
func (r *InvitationRepository) PurgeInvitations(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoff = cutoff.UTC()
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM invite_codes
		 WHERE (status = ? AND used_at < ?)
		    OR (status = ? AND revoked_at < ?)
		    OR (status = ? AND expires_at < ?)`,
		models.InviteUsed, cutoff, models.InviteRevoked, cutoff, models.InviteActive, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge invitations: %w", err)
	}
	return result.RowsAffected()
}

// RedeemInvitation performs the join flow in one transaction. A caller who is already a user
// gets their record back and the code is left untouched. Otherwise the code must be active and
// unexpired at now; it is flipped to used and a user is created, as admin if the family had
// no users yet. Any failure rolls back both writes.
func (r *InvitationRepository) RedeemInvitation(ctx context.Context, code string, identity models.Identity, now time.Time) (*models.User, RedeemResult, error) {
	var (
		user   *models.User
		result RedeemResult
	)
	now = now.UTC().Truncate(time.Microsecond)

	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		existing, err := getUser(ctx, tx, "id = ?", identity.Subject)
		if err != nil {
			return err
		}
		if existing != nil {
			user, result = existing, AlreadyMember
			return nil
		}

		inv, err := getInvite(ctx, tx, code)
		if err != nil {
			return err
		}
		switch {
		case inv == nil:
			result = CodeNotFound
			return nil
		case inv.Status != models.InviteActive:
			result = CodeUnavailable
			return nil
		case inv.IsExpiredAt(now):
			result = CodeExpired
			return nil
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE invite_codes SET status = ?, used_by = ?, used_at = ? WHERE code = ? AND status = ?",
			models.InviteUsed, identity.Subject, now, code, models.InviteActive)
		if err != nil {
			return fmt.Errorf("failed to mark invitation used: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			// Another join consumed the code first
			result = CodeUnavailable
			return nil
		}

		// Concurrent first joins to the same family queue here, so only one becomes admin
		var familyID string
		if err := tx.QueryRowContext(ctx, tx.ForUpdate("SELECT id FROM families WHERE id = ?"), inv.FamilyID).Scan(&familyID); err != nil {
			return fmt.Errorf("failed to lock family: %w", err)
		}

		var memberCount int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE family_id = ?", inv.FamilyID).Scan(&memberCount); err != nil {
			return fmt.Errorf("failed to count family members: %w", err)
		}
		role := models.RoleMember
		if memberCount == 0 {
			role = models.RoleAdmin
		}

		user = &models.User{
			ID:          identity.Subject,
			FamilyID:    inv.FamilyID,
			Email:       identity.Email,
			DisplayName: identity.Name,
			Role:        role,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if user.DisplayName == "" {
			user.DisplayName = identity.Email
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO users (id, family_id, email, display_name, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			user.ID, user.FamilyID, user.Email, user.DisplayName, user.Role, now, now)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		result = Redeemed
		return nil
	})
	if err != nil {
		return nil, Redeemed, err
	}
	if result != Redeemed && result != AlreadyMember {
		user = nil
	}
	return user, result, nil
}
