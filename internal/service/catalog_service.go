package service

import (
	"context"
	"errors"

	"homestock/internal/models"
	"homestock/internal/repository"
	"homestock/internal/validation"
)

// ItemTypeService manages a family's item types
type ItemTypeService struct {
	store ItemTypeStore
}

func NewItemTypeService(store ItemTypeStore) *ItemTypeService {
	return &ItemTypeService{store: store}
}

func (s *ItemTypeService) List(ctx context.Context, familyID string) ([]models.ItemType, error) {
	return s.store.List(ctx, familyID)
}

func (s *ItemTypeService) Get(ctx context.Context, familyID, id string) (*models.ItemType, error) {
	t, err := s.store.Get(ctx, familyID, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrItemTypeNotFound
	}
	return t, nil
}

func (s *ItemTypeService) Create(ctx context.Context, familyID string, input models.NamedInput) (*models.ItemType, error) {
	if err := validation.ValidateStruct(input); err != nil {
		return nil, err
	}
	return s.store.Create(ctx, familyID, input)
}

func (s *ItemTypeService) Update(ctx context.Context, familyID, id string, input models.NamedUpdate) (*models.ItemType, error) {
	if err := validateNamedUpdate(input); err != nil {
		return nil, err
	}
	t, err := s.store.Update(ctx, familyID, id, input)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrItemTypeNotFound
	}
	return t, nil
}

// Delete refuses while items or wishlist entries still use the type
func (s *ItemTypeService) Delete(ctx context.Context, familyID, id string) error {
	outcome, err := s.store.Delete(ctx, familyID, id)
	if err != nil {
		return err
	}
	return outcomeError(outcome, ErrItemTypeNotFound, ErrItemTypeInUse)
}

// LocationService manages a family's locations
type LocationService struct {
	store LocationStore
}

func NewLocationService(store LocationStore) *LocationService {
	return &LocationService{store: store}
}

func (s *LocationService) List(ctx context.Context, familyID string) ([]models.Location, error) {
	return s.store.List(ctx, familyID)
}

func (s *LocationService) Get(ctx context.Context, familyID, id string) (*models.Location, error) {
	l, err := s.store.Get(ctx, familyID, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrLocationNotFound
	}
	return l, nil
}

func (s *LocationService) Create(ctx context.Context, familyID string, input models.NamedInput) (*models.Location, error) {
	if err := validation.ValidateStruct(input); err != nil {
		return nil, err
	}
	return s.store.Create(ctx, familyID, input)
}

func (s *LocationService) Update(ctx context.Context, familyID, id string, input models.NamedUpdate) (*models.Location, error) {
	if err := validateNamedUpdate(input); err != nil {
		return nil, err
	}
	l, err := s.store.Update(ctx, familyID, id, input)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrLocationNotFound
	}
	return l, nil
}

// Delete refuses while boxes are still at the location
func (s *LocationService) Delete(ctx context.Context, familyID, id string) error {
	outcome, err := s.store.Delete(ctx, familyID, id)
	if err != nil {
		return err
	}
	return outcomeError(outcome, ErrLocationNotFound, ErrLocationInUse)
}

// BoxService manages a family's boxes
type BoxService struct {
	boxes     BoxStore
	locations LocationStore
}

func NewBoxService(boxes BoxStore, locations LocationStore) *BoxService {
	return &BoxService{boxes: boxes, locations: locations}
}

func (s *BoxService) List(ctx context.Context, familyID string, filter models.BoxFilter) ([]models.Box, error) {
	return s.boxes.List(ctx, familyID, filter)
}

func (s *BoxService) Get(ctx context.Context, familyID, id string) (*models.Box, error) {
	b, err := s.boxes.Get(ctx, familyID, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBoxNotFound
	}
	return b, nil
}

func (s *BoxService) Create(ctx context.Context, familyID string, input models.CreateBoxInput) (*models.Box, error) {
	if err := validation.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := checkRef(ctx, s.locations.Exists, familyID, input.LocationID, ErrLocationNotFound); err != nil {
		return nil, err
	}
	return s.boxes.Create(ctx, familyID, input)
}

func (s *BoxService) Update(ctx context.Context, familyID, id string, input models.UpdateBoxInput) (*models.Box, error) {
	var b validation.Builder
	requiredText(&b, "name", input.Name, maxNameLen)
	optionalText(&b, "description", input.Description, maxDescriptionLen)
	optionalID(&b, "locationId", input.LocationID)
	optionalTags(&b, "tags", input.Tags)
	if err := b.Err(); err != nil {
		return nil, err
	}
	if err := checkOptionalRef(ctx, s.locations.Exists, familyID, input.LocationID, ErrLocationNotFound); err != nil {
		return nil, err
	}

	box, err := s.boxes.Update(ctx, familyID, id, input)
	if err != nil {
		return nil, err
	}
	if box == nil {
		return nil, ErrBoxNotFound
	}
	return box, nil
}

// Delete refuses while items are still in the box
func (s *BoxService) Delete(ctx context.Context, familyID, id string) error {
	outcome, err := s.boxes.Delete(ctx, familyID, id)
	if err != nil {
		return err
	}
	return outcomeError(outcome, ErrBoxNotFound, ErrBoxNotEmpty)
}

// TagService manages a family's tag definitions
type TagService struct {
	store TagStore
}

func NewTagService(store TagStore) *TagService {
	return &TagService{store: store}
}

func (s *TagService) List(ctx context.Context, familyID string) ([]models.Tag, error) {
	return s.store.List(ctx, familyID)
}

func (s *TagService) Get(ctx context.Context, familyID, id string) (*models.Tag, error) {
	tag, err := s.store.Get(ctx, familyID, id)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, ErrTagNotFound
	}
	return tag, nil
}

func (s *TagService) Create(ctx context.Context, familyID string, input models.CreateTagInput) (*models.Tag, error) {
	if err := validation.ValidateStruct(input); err != nil {
		return nil, err
	}
	tag, err := s.store.Create(ctx, familyID, input)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, ErrTagExists
	}
	return tag, err
}

func (s *TagService) Update(ctx context.Context, familyID, id string, input models.UpdateTagInput) (*models.Tag, error) {
	var b validation.Builder
	requiredText(&b, "name", input.Name, maxTagLen)
	if input.Color.Set && !input.Color.Null && input.Color.Value != "" {
		if err := validation.ValidateVar("color", input.Color.Value, "hexcolor"); err != nil {
			b.Add("color", "must be a hex color such as #aabbcc")
		}
	}
	if err := b.Err(); err != nil {
		return nil, err
	}

	tag, err := s.store.Update(ctx, familyID, id, input)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, ErrTagExists
	}
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, ErrTagNotFound
	}
	return tag, nil
}

func (s *TagService) Delete(ctx context.Context, familyID, id string) error {
	deleted, err := s.store.Delete(ctx, familyID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrTagNotFound
	}
	return nil
}

// outcomeError translates a guarded write's outcome into the entity's sentinels
func outcomeError(outcome repository.Outcome, notFound, blocked error) error {
	switch outcome {
	case repository.OutcomeNotFound:
		return notFound
	case repository.OutcomeBlocked:
		return blocked
	default:
		return nil
	}
}
