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

const wishlistColumns = `id, family_id, name, description, type_id, quantity, price, url, memo, tags, priority, status,
	status_changed_at, status_changed_by, purchased_item_id, created_by, created_at, updated_at`

// WishlistRepository handles database operations for wishlist entries
type WishlistRepository struct {
	db *database.DB
}

func NewWishlistRepository(db *database.DB) *WishlistRepository {
	return &WishlistRepository{db: db}
}

func scanWish(s scanner) (*models.WishlistItem, error) {
	wish := &models.WishlistItem{}
	var tags stringList
	err := s.Scan(
		&wish.ID,
		&wish.FamilyID,
		&wish.Name,
		&wish.Description,
		&wish.TypeID,
		&wish.Quantity,
		&wish.Price,
		&wish.URL,
		&wish.Memo,
		&tags,
		&wish.Priority,
		&wish.Status,
		&wish.StatusChangedAt,
		&wish.StatusChangedBy,
		&wish.PurchasedItemID,
		&wish.CreatedBy,
		&wish.CreatedAt,
		&wish.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	wish.Tags = tags
	return wish, nil
}

func (r *WishlistRepository) List(ctx context.Context, familyID string, filter models.WishlistFilter) ([]models.WishlistItem, error) {
	query := "SELECT " + wishlistColumns + " FROM wishlist WHERE family_id = ?"
	args := []any{familyID}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY name, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}
	defer rows.Close()

	wishes := []models.WishlistItem{}
	for rows.Next() {
		wish, err := scanWish(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wishlist entry: %w", err)
		}
		wishes = append(wishes, *wish)
	}
	return wishes, rows.Err()
}

func (r *WishlistRepository) Get(ctx context.Context, familyID, id string) (*models.WishlistItem, error) {
	return getWish(ctx, r.db, familyID, id)
}

func getWish(ctx context.Context, q database.DBTX, familyID, id string) (*models.WishlistItem, error) {
	wish, err := scanWish(q.QueryRowContext(ctx, "SELECT "+wishlistColumns+" FROM wishlist WHERE id = ? AND family_id = ?", id, familyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wishlist entry: %w", err)
	}
	return wish, nil
}

func (r *WishlistRepository) Create(ctx context.Context, familyID, createdBy string, input models.CreateWishlistInput) (*models.WishlistItem, error) {
	now := nowUTC()
	tags := cleanTags(input.Tags)
	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}
	wish := &models.WishlistItem{
		ID:          uuid.New().String(),
		FamilyID:    familyID,
		Name:        input.Name,
		Description: input.Description,
		TypeID:      emptyToNil(input.TypeID),
		Quantity:    quantity,
		Price:       input.Price,
		URL:         input.URL,
		Memo:        input.Memo,
		Tags:        tags,
		Priority:    input.Priority,
		Status:      models.WishlistPending,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wishlist (id, family_id, name, description, type_id, quantity, price, url, memo, tags, priority, status, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		wish.ID, wish.FamilyID, wish.Name, wish.Description, wish.TypeID, wish.Quantity, wish.Price,
		wish.URL, wish.Memo, tags, wish.Priority, wish.Status, wish.CreatedBy, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create wishlist entry: %w", err)
	}
	return wish, nil
}

func (r *WishlistRepository) Update(ctx context.Context, familyID, id string, input models.UpdateWishlistInput) (*models.WishlistItem, error) {
	set := &setClause{}
	set.text("name", input.Name)
	set.text("description", input.Description)
	set.nullable("type_id", input.TypeID)
	if input.Quantity.Set && !input.Quantity.Null {
		set.add("quantity", input.Quantity.Value)
	}
	if input.Price.Set {
		set.add("price", input.Price.Ptr())
	}
	set.text("url", input.URL)
	set.text("memo", input.Memo)
	set.tags("tags", input.Tags)
	if input.Priority.Set && !input.Priority.Null {
		set.add("priority", input.Priority.Value)
	}

	found, err := update(ctx, r.db, "wishlist", familyID, id, set)
	if err != nil {
		return nil, fmt.Errorf("failed to update wishlist entry: %w", err)
	}
	if !found {
		return nil, nil
	}
	return r.Get(ctx, familyID, id)
}

func (r *WishlistRepository) Delete(ctx context.Context, familyID, id string) (bool, error) {
	deleted, err := deleteRow(ctx, r.db, "wishlist", familyID, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete wishlist entry: %w", err)
	}
	return deleted, nil
}

// Cancel moves a pending entry to cancelled
func (r *WishlistRepository) Cancel(ctx context.Context, familyID, id, actor string, now time.Time) (*models.WishlistItem, Outcome, error) {
	extra := &setClause{}
	extra.add("status_changed_at", now.UTC().Truncate(time.Microsecond))
	extra.add("status_changed_by", actor)

	outcome, err := transition(ctx, r.db, "wishlist", familyID, id, string(models.WishlistPending), string(models.WishlistCancelled), extra)
	if err != nil {
		return nil, outcome, fmt.Errorf("failed to cancel wishlist entry: %w", err)
	}
	if outcome != OutcomeApplied {
		return nil, outcome, nil
	}
	wish, err := r.Get(ctx, familyID, id)
	return wish, outcome, err
}

// Purchase moves a pending entry to purchased. With CreateItem set, an owned item is created
// from the entry in the same transaction and linked back to it.
func (r *WishlistRepository) Purchase(ctx context.Context, familyID, id, actor string, input models.PurchaseInput, now time.Time) (*models.WishlistItem, *models.Item, Outcome, error) {
	var (
		wish    *models.WishlistItem
		item    *models.Item
		outcome Outcome
	)
	now = now.UTC().Truncate(time.Microsecond)

	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		current, err := getWish(ctx, tx, familyID, id)
		if err != nil {
			return err
		}
		if current == nil {
			outcome = OutcomeNotFound
			return nil
		}

		extra := &setClause{}
		extra.add("status_changed_at", now)
		extra.add("status_changed_by", actor)

		if input.CreateItem {
			memo := current.Memo
			if input.Note != "" {
				memo = input.Note
			}
			item, err = insertItem(ctx, tx, familyID, actor, models.CreateItemInput{
				Name:        current.Name,
				Description: current.Description,
				TypeID:      current.TypeID,
				BoxID:       input.BoxID,
				Quantity:    current.Quantity,
				Memo:        memo,
				Tags:        current.Tags,
			})
			if err != nil {
				return err
			}
			extra.add("purchased_item_id", item.ID)
		}

		outcome, err = transition(ctx, tx, "wishlist", familyID, id, string(models.WishlistPending), string(models.WishlistPurchased), extra)
		if err != nil {
			return err
		}
		if outcome != OutcomeApplied {
			// Discard the item created above
			return errTransitionRefused
		}

		wish, err = getWish(ctx, tx, familyID, id)
		return err
	})
	if errors.Is(err, errTransitionRefused) {
		return nil, nil, outcome, nil
	}
	if err != nil {
		return nil, nil, outcome, fmt.Errorf("failed to purchase wishlist entry: %w", err)
	}
	if outcome != OutcomeApplied {
		return nil, nil, outcome, nil
	}
	return wish, item, outcome, nil
}

var errTransitionRefused = errors.New("transition refused")
