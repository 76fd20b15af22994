package service

import (
	"context"
	"strings"

	"homestock/internal/models"
	"homestock/internal/validation"
)

const (
	maxNameLen        = 200
	maxDescriptionLen = 2000
	maxTagCount       = 20
	maxTagLen         = 50
	maxQuantity       = 100000
)

// requiredText rejects null or blank values for a field that must keep a value once set
func requiredText(b *validation.Builder, field string, o models.Optional[string], max int) {
	if !o.Set {
		return
	}
	switch {
	case o.Null || strings.TrimSpace(o.Value) == "":
		b.Add(field, "must not be empty")
	case len(o.Value) > max:
		b.Add(field, "is too long")
	}
}

func optionalText(b *validation.Builder, field string, o models.Optional[string], max int) {
	if o.Set && !o.Null && len(o.Value) > max {
		b.Add(field, "is too long")
	}
}

func optionalTags(b *validation.Builder, field string, o models.Optional[[]string]) {
	if !o.Set || o.Null {
		return
	}
	if len(o.Value) > maxTagCount {
		b.Add(field, "has too many entries")
		return
	}
	for _, tag := range o.Value {
		if strings.TrimSpace(tag) == "" || len(tag) > maxTagLen {
			b.Add(field, "entries must be 1 to 50 characters")
			return
		}
	}
}

func optionalRange(b *validation.Builder, field string, o models.Optional[int], min, max int) {
	if !o.Set {
		return
	}
	if o.Null || o.Value < min || o.Value > max {
		b.Add(field, "is out of range")
	}
}

// optionalID checks that a set, non-empty reference points into the family
func optionalID(b *validation.Builder, field string, o models.Optional[string]) {
	if o.Set && !o.Null && o.Value != "" {
		if err := validation.ValidateVar(field, o.Value, "uuid"); err != nil {
			b.Add(field, "must be a valid id")
		}
	}
}

func validateNamedUpdate(input models.NamedUpdate) error {
	var b validation.Builder
	requiredText(&b, "name", input.Name, maxNameLen)
	optionalText(&b, "description", input.Description, maxDescriptionLen)
	optionalTags(&b, "tags", input.Tags)
	return b.Err()
}

// existsFunc is the shape of the repositories' Exists methods
type existsFunc func(ctx context.Context, familyID, id string) (bool, error)

// checkRef returns notFound when id is set but names nothing in the family
func checkRef(ctx context.Context, exists existsFunc, familyID string, id *string, notFound error) error {
	if id == nil || *id == "" {
		return nil
	}
	ok, err := exists(ctx, familyID, *id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound
	}
	return nil
}

// checkOptionalRef is checkRef for partial updates; null and unset are always fine
func checkOptionalRef(ctx context.Context, exists existsFunc, familyID string, o models.Optional[string], notFound error) error {
	if !o.Set || o.Null {
		return nil
	}
	return checkRef(ctx, exists, familyID, &o.Value, notFound)
}
