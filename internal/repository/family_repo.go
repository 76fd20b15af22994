package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"homestock/internal/database"
	"homestock/internal/models"
)

// FamilyRepository handles database operations for families
type FamilyRepository struct {
	db *database.DB
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db *database.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// CreateFamily inserts a new family. Members arrive later through invite codes.
func (r *FamilyRepository) CreateFamily(ctx context.Context, name, createdBy string) (*models.Family, error) {
	now := nowUTC()
	family := &models.Family{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := "INSERT INTO families (id, name, created_by, created_at, updated_at) VALUES (?, ?, ?, ?, ?)"
	if _, err := r.db.ExecContext(ctx, query, family.ID, family.Name, family.CreatedBy, now, now); err != nil {
		return nil, fmt.Errorf("failed to create family: %w", err)
	}
	return family, nil
}

// GetFamilyByID retrieves a family by ID
func (r *FamilyRepository) GetFamilyByID(ctx context.Context, familyID string) (*models.Family, error) {
	query := "SELECT id, name, created_by, created_at, updated_at FROM families WHERE id = ?"
	family := &models.Family{}
	err := r.db.QueryRowContext(ctx, query, familyID).Scan(
		&family.ID,
		&family.Name,
		&family.CreatedBy,
		&family.CreatedAt,
		&family.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	return family, nil
}
