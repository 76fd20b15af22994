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

const boxColumns = "id, family_id, name, description, location_id, tags, created_at, updated_at"

// BoxRepository handles database operations for storage boxes
type BoxRepository struct {
	db *database.DB
}

func NewBoxRepository(db *database.DB) *BoxRepository {
	return &BoxRepository{db: db}
}

func scanBox(s scanner) (*models.Box, error) {
	box := &models.Box{}
	var tags stringList
	err := s.Scan(&box.ID, &box.FamilyID, &box.Name, &box.Description, &box.LocationID, &tags, &box.CreatedAt, &box.UpdatedAt)
	if err != nil {
		return nil, err
	}
	box.Tags = tags
	return box, nil
}

func (r *BoxRepository) List(ctx context.Context, familyID string, filter models.BoxFilter) ([]models.Box, error) {
	query := "SELECT " + boxColumns + " FROM boxes WHERE family_id = ?"
	args := []any{familyID}
	if filter.LocationID != "" {
		query += " AND location_id = ?"
		args = append(args, filter.LocationID)
	}
	query += " ORDER BY name, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list boxes: %w", err)
	}
	defer rows.Close()

	boxes := []models.Box{}
	for rows.Next() {
		box, err := scanBox(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan box: %w", err)
		}
		boxes = append(boxes, *box)
	}
	return boxes, rows.Err()
}

func (r *BoxRepository) Get(ctx context.Context, familyID, id string) (*models.Box, error) {
	box, err := scanBox(r.db.QueryRowContext(ctx, "SELECT "+boxColumns+" FROM boxes WHERE id = ? AND family_id = ?", id, familyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get box: %w", err)
	}
	return box, nil
}

func (r *BoxRepository) Exists(ctx context.Context, familyID, id string) (bool, error) {
	return exists(ctx, r.db, "boxes", familyID, id)
}

func (r *BoxRepository) Create(ctx context.Context, familyID string, input models.CreateBoxInput) (*models.Box, error) {
	now := nowUTC()
	tags := cleanTags(input.Tags)
	box := &models.Box{
		ID:          uuid.New().String(),
		FamilyID:    familyID,
		Name:        input.Name,
		Description: input.Description,
		LocationID:  emptyToNil(input.LocationID),
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO boxes ("+boxColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		box.ID, box.FamilyID, box.Name, box.Description, box.LocationID, tags, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create box: %w", err)
	}
	return box, nil
}

// Update applies the set fields of input. Returns nil if the box does not exist.
func (r *BoxRepository) Update(ctx context.Context, familyID, id string, input models.UpdateBoxInput) (*models.Box, error) {
	set := &setClause{}
	set.text("name", input.Name)
	set.text("description", input.Description)
	set.nullable("location_id", input.LocationID)
	set.tags("tags", input.Tags)

	found, err := update(ctx, r.db, "boxes", familyID, id, set)
	if err != nil {
		return nil, fmt.Errorf("failed to update box: %w", err)
	}
	if !found {
		return nil, nil
	}
	return r.Get(ctx, familyID, id)
}

// Delete removes a box unless items are still stored in it
func (r *BoxRepository) Delete(ctx context.Context, familyID, id string) (Outcome, error) {
	outcome, err := guardedDelete(ctx, r.db, "boxes", familyID, id, reference{table: "items", column: "box_id"})
	if err != nil {
		return outcome, fmt.Errorf("failed to delete box: %w", err)
	}
	return outcome, nil
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
