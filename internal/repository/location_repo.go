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

const locationColumns = "id, family_id, name, description, tags, created_at, updated_at"

// LocationRepository handles database operations for locations
type LocationRepository struct {
	db *database.DB
}

func NewLocationRepository(db *database.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

func scanLocation(s scanner) (*models.Location, error) {
	loc := &models.Location{}
	var tags stringList
	if err := s.Scan(&loc.ID, &loc.FamilyID, &loc.Name, &loc.Description, &tags, &loc.CreatedAt, &loc.UpdatedAt); err != nil {
		return nil, err
	}
	loc.Tags = tags
	return loc, nil
}

func (r *LocationRepository) List(ctx context.Context, familyID string) ([]models.Location, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+locationColumns+" FROM locations WHERE family_id = ? ORDER BY name, id", familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	locations := []models.Location{}
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, *loc)
	}
	return locations, rows.Err()
}

func (r *LocationRepository) Get(ctx context.Context, familyID, id string) (*models.Location, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+locationColumns+" FROM locations WHERE id = ? AND family_id = ?", id, familyID)
	loc, err := scanLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return loc, nil
}

func (r *LocationRepository) Exists(ctx context.Context, familyID, id string) (bool, error) {
	return exists(ctx, r.db, "locations", familyID, id)
}

func (r *LocationRepository) Create(ctx context.Context, familyID string, input models.NamedInput) (*models.Location, error) {
	now := nowUTC()
	tags := cleanTags(input.Tags)
	loc := &models.Location{
		ID:          uuid.New().String(),
		FamilyID:    familyID,
		Name:        input.Name,
		Description: input.Description,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO locations ("+locationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		loc.ID, loc.FamilyID, loc.Name, loc.Description, tags, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create location: %w", err)
	}
	return loc, nil
}

// Update applies the set fields of input. Returns nil if the location does not exist.
func (r *LocationRepository) Update(ctx context.Context, familyID, id string, input models.NamedUpdate) (*models.Location, error) {
	set := &setClause{}
	set.text("name", input.Name)
	set.text("description", input.Description)
	set.tags("tags", input.Tags)

	found, err := update(ctx, r.db, "locations", familyID, id, set)
	if err != nil {
		return nil, fmt.Errorf("failed to update location: %w", err)
	}
	if !found {
		return nil, nil
	}
	return r.Get(ctx, familyID, id)
}

// Delete removes a location unless boxes are still stored there
func (r *LocationRepository) Delete(ctx context.Context, familyID, id string) (Outcome, error) {
	outcome, err := guardedDelete(ctx, r.db, "locations", familyID, id,
		reference{table: "boxes", column: "location_id"},
	)
	if err != nil {
		return outcome, fmt.Errorf("failed to delete location: %w", err)
	}
	return outcome, nil
}
