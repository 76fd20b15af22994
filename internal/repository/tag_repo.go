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

const tagColumns = "id, family_id, name, color, created_at, updated_at"

// TagRepository handles database operations for tags. Names are unique per family.
type TagRepository struct {
	db *database.DB
}

func NewTagRepository(db *database.DB) *TagRepository {
	return &TagRepository{db: db}
}

func scanTag(s scanner) (*models.Tag, error) {
	tag := &models.Tag{}
	if err := s.Scan(&tag.ID, &tag.FamilyID, &tag.Name, &tag.Color, &tag.CreatedAt, &tag.UpdatedAt); err != nil {
		return nil, err
	}
	return tag, nil
}

func (r *TagRepository) List(ctx context.Context, familyID string) ([]models.Tag, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+tagColumns+" FROM tags WHERE family_id = ? ORDER BY name, id", familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, *tag)
	}
	return tags, rows.Err()
}

func (r *TagRepository) Get(ctx context.Context, familyID, id string) (*models.Tag, error) {
	tag, err := scanTag(r.db.QueryRowContext(ctx, "SELECT "+tagColumns+" FROM tags WHERE id = ? AND family_id = ?", id, familyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return tag, nil
}

// Create inserts a tag. Returns ErrDuplicate if the family already has a tag with that name.
func (r *TagRepository) Create(ctx context.Context, familyID string, input models.CreateTagInput) (*models.Tag, error) {
	now := nowUTC()
	tag := &models.Tag{
		ID:        uuid.New().String(),
		FamilyID:  familyID,
		Name:      input.Name,
		Color:     input.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := r.db.ExecContext(ctx, "INSERT INTO tags ("+tagColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		tag.ID, tag.FamilyID, tag.Name, tag.Color, now, now)
	if err != nil {
		if r.db.IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return tag, nil
}

func (r *TagRepository) Update(ctx context.Context, familyID, id string, input models.UpdateTagInput) (*models.Tag, error) {
	set := &setClause{}
	set.text("name", input.Name)
	set.text("color", input.Color)

	found, err := update(ctx, r.db, "tags", familyID, id, set)
	if err != nil {
		if r.db.IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to update tag: %w", err)
	}
	if !found {
		return nil, nil
	}
	return r.Get(ctx, familyID, id)
}

// Delete removes a tag definition. Records keep their free-text tag strings.
func (r *TagRepository) Delete(ctx context.Context, familyID, id string) (bool, error) {
	deleted, err := deleteRow(ctx, r.db, "tags", familyID, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete tag: %w", err)
	}
	return deleted, nil
}
