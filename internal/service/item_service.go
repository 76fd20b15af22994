package service

import (
	"context"
	"strings"
	"time"

	"homestock/internal/models"
	"homestock/internal/validation"
)

// ItemService manages items and their one-way status transitions
type ItemService struct {
	items ItemStore
	types ItemTypeStore
	boxes BoxStore
	now   func() time.Time
}

func NewItemService(items ItemStore, types ItemTypeStore, boxes BoxStore) *ItemService {
	return &ItemService{
		items: items,
		types: types,
		boxes: boxes,
		now:   time.Now,
	}
}

// List returns the family's items ordered by name
func (s *ItemService) List(ctx context.Context, familyID string, filter models.ItemFilter) ([]models.Item, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, validation.NewError("status", "must be one of: owned consumed given sold")
	}
	filter.Tag = strings.TrimSpace(filter.Tag)
	return s.items.List(ctx, familyID, filter)
}

func (s *ItemService) Get(ctx context.Context, familyID, id string) (*models.Item, error) {
	item, err := s.items.Get(ctx, familyID, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	return item, nil
}

// Create adds an owned item. typeId and boxId must belong to the same family.
func (s *ItemService) Create(ctx context.Context, familyID, actor string, input models.CreateItemInput) (*models.Item, error) {
	if err := validation.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := checkRef(ctx, s.types.Exists, familyID, input.TypeID, ErrItemTypeNotFound); err != nil {
		return nil, err
	}
	if err := checkRef(ctx, s.boxes.Exists, familyID, input.BoxID, ErrBoxNotFound); err != nil {
		return nil, err
	}
	return s.items.Create(ctx, familyID, actor, input)
}

// Update touches only the fields present in input
func (s *ItemService) Update(ctx context.Context, familyID, id string, input models.UpdateItemInput) (*models.Item, error) {
	var b validation.Builder
	requiredText(&b, "name", input.Name, maxNameLen)
	optionalText(&b, "description", input.Description, maxDescriptionLen)
	optionalID(&b, "typeId", input.TypeID)
	optionalID(&b, "boxId", input.BoxID)
	optionalRange(&b, "quantity", input.Quantity, 1, maxQuantity)
	optionalText(&b, "memo", input.Memo, maxDescriptionLen)
	optionalTags(&b, "tags", input.Tags)
	if err := b.Err(); err != nil {
		return nil, err
	}
	if err := checkOptionalRef(ctx, s.types.Exists, familyID, input.TypeID, ErrItemTypeNotFound); err != nil {
		return nil, err
	}
	if err := checkOptionalRef(ctx, s.boxes.Exists, familyID, input.BoxID, ErrBoxNotFound); err != nil {
		return nil, err
	}

	item, err := s.items.Update(ctx, familyID, id, input)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	return item, nil
}

func (s *ItemService) Delete(ctx context.Context, familyID, id string) error {
	deleted, err := s.items.Delete(ctx, familyID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrItemNotFound
	}
	return nil
}

func (s *ItemService) Consume(ctx context.Context, familyID, id, actor string, input models.TransitionInput) (*models.Item, error) {
	return s.transition(ctx, familyID, id, models.ItemConsumed, actor, input)
}

func (s *ItemService) Give(ctx context.Context, familyID, id, actor string, input models.TransitionInput) (*models.Item, error) {
	return s.transition(ctx, familyID, id, models.ItemGiven, actor, input)
}

func (s *ItemService) Sell(ctx context.Context, familyID, id, actor string, input models.TransitionInput) (*models.Item, error) {
	return s.transition(ctx, familyID, id, models.ItemSold, actor, input)
}

// transition moves an owned item to a terminal status. Items never return to owned.
func (s *ItemService) transition(ctx context.Context, familyID, id string, to models.ItemStatus, actor string, input models.TransitionInput) (*models.Item, error) {
	if err := validation.ValidateStruct(input); err != nil {
		return nil, err
	}
	item, outcome, err := s.items.Transition(ctx, familyID, id, models.ItemOwned, to, actor, strings.TrimSpace(input.Note), s.now())
	if err != nil {
		return nil, err
	}
	if err := outcomeError(outcome, ErrItemNotFound, ErrStatusConflict); err != nil {
		return nil, err
	}
	return item, nil
}

// WishlistService manages wanted purchases
type WishlistService struct {
	wishlist WishlistStore
	types    ItemTypeStore
	boxes    BoxStore
	now      func() time.Time
}

func NewWishlistService(wishlist WishlistStore, types ItemTypeStore, boxes BoxStore) *WishlistService {
	return &WishlistService{
		wishlist: wishlist,
		types:    types,
		boxes:    boxes,
		now:      time.Now,
	}
}

func (s *WishlistService) List(ctx context.Context, familyID string, filter models.WishlistFilter) ([]models.WishlistItem, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, validation.NewError("status", "must be one of: pending purchased cancelled")
	}
	return s.wishlist.List(ctx, familyID, filter)
}

func (s *WishlistService) Get(ctx context.Context, familyID, id string) (*models.WishlistItem, error) {
	wish, err := s.wishlist.Get(ctx, familyID, id)
	if err != nil {
		return nil, err
	}
	if wish == nil {
		return nil, ErrWishlistNotFound
	}
	return wish, nil
}

func (s *WishlistService) Create(ctx context.Context, familyID, actor string, input models.CreateWishlistInput) (*models.WishlistItem, error) {
	if err := validation.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := checkRef(ctx, s.types.Exists, familyID, input.TypeID, ErrItemTypeNotFound); err != nil {
		return nil, err
	}
	return s.wishlist.Create(ctx, familyID, actor, input)
}

func (s *WishlistService) Update(ctx context.Context, familyID, id string, input models.UpdateWishlistInput) (*models.WishlistItem, error) {
	var b validation.Builder
	requiredText(&b, "name", input.Name, maxNameLen)
	optionalText(&b, "description", input.Description, maxDescriptionLen)
	optionalID(&b, "typeId", input.TypeID)
	optionalRange(&b, "quantity", input.Quantity, 1, maxQuantity)
	optionalRange(&b, "priority", input.Priority, 0, 5)
	if input.Price.Set && !input.Price.Null && input.Price.Value < 0 {
		b.Add("price", "must not be negative")
	}
	if input.URL.Set && !input.URL.Null && input.URL.Value != "" {
		if err := validation.ValidateVar("url", input.URL.Value, "url"); err != nil {
			b.Add("url", "must be a valid URL")
		}
	}
	optionalText(&b, "memo", input.Memo, maxDescriptionLen)
	optionalTags(&b, "tags", input.Tags)
	if err := b.Err(); err != nil {
		return nil, err
	}
	if err := checkOptionalRef(ctx, s.types.Exists, familyID, input.TypeID, ErrItemTypeNotFound); err != nil {
		return nil, err
	}

	wish, err := s.wishlist.Update(ctx, familyID, id, input)
	if err != nil {
		return nil, err
	}
	if wish == nil {
		return nil, ErrWishlistNotFound
	}
	return wish, nil
}

func (s *WishlistService) Delete(ctx context.Context, familyID, id string) error {
	deleted, err := s.wishlist.Delete(ctx, familyID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrWishlistNotFound
	}
	return nil
}

// Purchase marks a pending entry purchased. With CreateItem the new owned item is returned as well.
func (s *WishlistService) Purchase(ctx context.Context, familyID, id, actor string, input models.PurchaseInput) (*models.WishlistItem, *models.Item, error) {
	if err := validation.ValidateStruct(input); err != nil {
		return nil, nil, err
	}
	if input.CreateItem {
		if err := checkRef(ctx, s.boxes.Exists, familyID, input.BoxID, ErrBoxNotFound); err != nil {
			return nil, nil, err
		}
	}
	input.Note = strings.TrimSpace(input.Note)

	wish, item, outcome, err := s.wishlist.Purchase(ctx, familyID, id, actor, input, s.now())
	if err != nil {
		return nil, nil, err
	}
	if err := outcomeError(outcome, ErrWishlistNotFound, ErrStatusConflict); err != nil {
		return nil, nil, err
	}
	return wish, item, nil
}

func (s *WishlistService) Cancel(ctx context.Context, familyID, id, actor string) (*models.WishlistItem, error) {
	wish, outcome, err := s.wishlist.Cancel(ctx, familyID, id, actor, s.now())
	if err != nil {
		return nil, err
	}
	if err := outcomeError(outcome, ErrWishlistNotFound, ErrStatusConflict); err != nil {
		return nil, err
	}
	return wish, nil
}
