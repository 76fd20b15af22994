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

const itemTypeColumns = "id, family_id, name, description, tags, created_at, updated_at"

// ItemTypeRepository handles database operations for item types
type ItemTypeRepository struct {
	db *database.DB
}

func NewItemTypeRepository(db *database.DB) *ItemTypeRepository {
	return &ItemTypeRepository{db: db}
}

func scanItemType(s scanner) (*models.ItemType, error) {
	t := &models.ItemType{}
	var tags stringList
	if err := s.Scan(&t.ID, &t.FamilyID, &t.Name, &t.Description, &tags, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Tags = tags
	return t, nil
}

func (r *ItemTypeRepository) List(ctx context.Context, familyID string) ([]models.ItemType, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+itemTypeColumns+" FROM item_types WHERE family_id = ? ORDER BY name, id", familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list item types: %w", err)
	}
	defer rows.Close()

	types := []models.ItemType{}
	for rows.Next() {
		t, err := scanItemType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item type: %w", err)
		}
		types = append(types, *t)
	}
	return types, rows.Err()
}

func (r *ItemTypeRepository) Get(ctx context.Context, familyID, id string) (*models.ItemType, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+itemTypeColumns+" FROM item_types WHERE id = ? AND family_id = ?", id, familyID)
	t, err := scanItemType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item type: %w", err)
	}
	return t, nil
}

func (r *ItemTypeRepository) Exists(ctx context.Context, familyID, id string) (bool, error) {
	return exists(ctx, r.db, "item_types", familyID, id)
}

func (r *ItemTypeRepository) Create(ctx context.Context, familyID string, input models.NamedInput) (*models.ItemType, error) {
	now := nowUTC()
	tags := cleanTags(input.Tags)
	t := &models.ItemType{
		ID:          uuid.New().String(),
		FamilyID:    familyID,
		Name:        input.Name,
		Description: input.Description,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO item_types ("+itemTypeColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.FamilyID, t.Name, t.Description, tags, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create item type: %w", err)
	}
	return t, nil
}

// Update applies the set fields of input. Returns nil if the item type does not exist.
func (r *ItemTypeRepository) Update(ctx context.Context, familyID, id string, input models.NamedUpdate) (*models.ItemType, error) {
	set := &setClause{}
	set.text("name", input.Name)
	set.text("description", input.Description)
	set.tags("tags", input.Tags)

	found, err := update(ctx, r.db, "item_types", familyID, id, set)
	if err != nil {
		return nil, fmt.Errorf("failed to update item type: %w", err)
	}
	if !found {
		return nil, nil
	}
	return r.Get(ctx, familyID, id)
}

// Delete removes an item type unless items or wishlist entries still use it
func (r *ItemTypeRepository) Delete(ctx context.Context, familyID, id string) (Outcome, error) {
	outcome, err := guardedDelete(ctx, r.db, "item_types", familyID, id,
		reference{table: "items", column: "type_id"},
		reference{table: "wishlist", column: "type_id"},
	)
	if err != nil {
		return outcome, fmt.Errorf("failed to delete item type: %w", err)
	}
	return outcome, nil
}
