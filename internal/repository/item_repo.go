package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"homestock/internal/database"
	"homestock/internal/models"
)

const itemColumns = `id, family_id, name, description, type_id, box_id, quantity, memo, tags, status,
	status_changed_at, status_changed_by, status_note, created_by, created_at, updated_at`

// ItemRepository handles database operations for items
type ItemRepository struct {
	db *database.DB
}

func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func scanItem(s scanner) (*models.Item, error) {
	item := &models.Item{}
	var tags stringList
	err := s.Scan(
		&item.ID,
		&item.FamilyID,
		&item.Name,
		&item.Description,
		&item.TypeID,
		&item.BoxID,
		&item.Quantity,
		&item.Memo,
		&tags,
		&item.Status,
		&item.StatusChangedAt,
		&item.StatusChangedBy,
		&item.StatusNote,
		&item.CreatedBy,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Tags = tags
	return item, nil
}

// List returns a family's items ordered by name. The tag filter is applied after the
// query since tags live in a JSON column.
func (r *ItemRepository) List(ctx context.Context, familyID string, filter models.ItemFilter) ([]models.Item, error) {
	query := "SELECT " + itemColumns + " FROM items WHERE family_id = ?"
	args := []any{familyID}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.BoxID != "" {
		query += " AND box_id = ?"
		args = append(args, filter.BoxID)
	}
	if filter.TypeID != "" {
		query += " AND type_id = ?"
		args = append(args, filter.TypeID)
	}
	query += " ORDER BY name, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if filter.Tag != "" && !hasTag(item.Tags, filter.Tag) {
			continue
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (r *ItemRepository) Get(ctx context.Context, familyID, id string) (*models.Item, error) {
	return getItem(ctx, r.db, familyID, id)
}

func getItem(ctx context.Context, q database.DBTX, familyID, id string) (*models.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE id = ? AND family_id = ?", id, familyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// Create inserts an owned item
func (r *ItemRepository) Create(ctx context.Context, familyID, createdBy string, input models.CreateItemInput) (*models.Item, error) {
	return insertItem(ctx, r.db, familyID, createdBy, input)
}

func insertItem(ctx context.Context, q database.DBTX, familyID, createdBy string, input models.CreateItemInput) (*models.Item, error) {
	now := nowUTC()
	tags := cleanTags(input.Tags)
	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}
	item := &models.Item{
		ID:          uuid.New().String(),
		FamilyID:    familyID,
		Name:        input.Name,
		Description: input.Description,
		TypeID:      emptyToNil(input.TypeID),
		BoxID:       emptyToNil(input.BoxID),
		Quantity:    quantity,
		Memo:        input.Memo,
		Tags:        tags,
		Status:      models.ItemOwned,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO items (id, family_id, name, description, type_id, box_id, quantity, memo, tags, status, status_note, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?, ?)`,
		item.ID, item.FamilyID, item.Name, item.Description, item.TypeID, item.BoxID,
		item.Quantity, item.Memo, tags, item.Status, item.CreatedBy, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return item, nil
}

// Update applies only the set fields of input. Returns nil if the item does not exist.
func (r *ItemRepository) Update(ctx context.Context, familyID, id string, input models.UpdateItemInput) (*models.Item, error) {
	set := &setClause{}
	set.text("name", input.Name)
	set.text("description", input.Description)
	set.nullable("type_id", input.TypeID)
	set.nullable("box_id", input.BoxID)
	if input.Quantity.Set && !input.Quantity.Null {
		set.add("quantity", input.Quantity.Value)
	}
	set.text("memo", input.Memo)
	set.tags("tags", input.Tags)

	found, err := update(ctx, r.db, "items", familyID, id, set)
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	if !found {
		return nil, nil
	}
	return r.Get(ctx, familyID, id)
}

func (r *ItemRepository) Delete(ctx context.Context, familyID, id string) (bool, error) {
	var deleted bool
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		// Purchased wishlist entries keep their history but lose the link
		if _, err := tx.ExecContext(ctx, "UPDATE wishlist SET purchased_item_id = NULL WHERE purchased_item_id = ? AND family_id = ?", id, familyID); err != nil {
			return err
		}
		var err error
		deleted, err = deleteRow(ctx, tx, "items", familyID, id)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}
	return deleted, nil
}

// Transition moves an item from one status to another and records who did it
func (r *ItemRepository) Transition(ctx context.Context, familyID, id string, from, to models.ItemStatus, actor, note string, now time.Time) (*models.Item, Outcome, error) {
	extra := &setClause{}
	extra.add("status_changed_at", now.UTC().Truncate(time.Microsecond))
	extra.add("status_changed_by", actor)
	extra.add("status_note", note)

	outcome, err := transition(ctx, r.db, "items", familyID, id, string(from), string(to), extra)
	if err != nil {
		return nil, outcome, fmt.Errorf("failed to change item status: %w", err)
	}
	if outcome != OutcomeApplied {
		return nil, outcome, nil
	}
	item, err := r.Get(ctx, familyID, id)
	return item, outcome, err
}
