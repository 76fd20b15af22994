package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"homestock/internal/database"
	"homestock/internal/models"
)

const userColumns = "id, family_id, email, display_name, role, discord_id, created_at, updated_at"

// UserRepository handles database operations for users
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(s scanner) (*models.User, error) {
	user := &models.User{}
	err := s.Scan(
		&user.ID,
		&user.FamilyID,
		&user.Email,
		&user.DisplayName,
		&user.Role,
		&user.DiscordID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func getUser(ctx context.Context, q database.DBTX, where string, arg any) (*models.User, error) {
	row := q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, arg)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by identity subject
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return getUser(ctx, r.db, "id = ?", id)
}

// GetUserByDiscordID retrieves the user linked to a chat identity
func (r *UserRepository) GetUserByDiscordID(ctx context.Context, discordID string) (*models.User, error) {
	return getUser(ctx, r.db, "discord_id = ?", discordID)
}

// ListFamilyUsers returns a family's members ordered by display name
func (r *UserRepository) ListFamilyUsers(ctx context.Context, familyID string) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users WHERE family_id = ? ORDER BY display_name, id", familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// CountAdmins returns how many admins a family has
func (r *UserRepository) CountAdmins(ctx context.Context, familyID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE family_id = ? AND role = ?", familyID, models.RoleAdmin).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return count, nil
}

// UpdateProfile applies the set fields of input. Returns nil if the user does not exist.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, input models.UpdateProfileInput) (*models.User, error) {
	set := &setClause{}
	set.text("display_name", input.DisplayName)
	set.nullable("discord_id", input.DiscordID)

	if !set.empty() {
		set.add("updated_at", nowUTC())
		args := append(set.args, id)
		if _, err := r.db.ExecContext(ctx, "UPDATE users SET "+set.String()+" WHERE id = ?", args...); err != nil {
			if r.db.IsUniqueViolation(err) {
				return nil, ErrDuplicate
			}
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}
	return r.GetUserByID(ctx, id)
}

// UpdateRole changes a family member's role. Returns nil if no such member exists.
func (r *UserRepository) UpdateRole(ctx context.Context, familyID, id string, role models.Role) (*models.User, error) {
	result, err := r.db.ExecContext(ctx, "UPDATE users SET role = ?, updated_at = ? WHERE id = ? AND family_id = ?", role, nowUTC(), id, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, nil
	}
	return r.GetUserByID(ctx, id)
}
