package models

import "time"

// ItemType classifies items, e.g. "Board game" or "Power tool"
type ItemType struct {
	ID          string    `json:"id"`
	FamilyID    string    `json:"familyId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Location is a place boxes live in, e.g. "Garage"
type Location struct {
	ID          string    `json:"id"`
	FamilyID    string    `json:"familyId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Box is a container at an optional location
type Box struct {
	ID          string    `json:"id"`
	FamilyID    string    `json:"familyId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	LocationID  *string   `json:"locationId"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Tag is a named label with an optional display color
type Tag struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"familyId"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NamedInput is the create body shared by item types and locations
type NamedInput struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=2000"`
	Tags        []string `json:"tags" validate:"max=20,dive,required,max=50"`
}

// NamedUpdate is the partial update body shared by item types and locations
type NamedUpdate struct {
	Name        Optional[string]   `json:"name"`
	Description Optional[string]   `json:"description"`
	Tags        Optional[[]string] `json:"tags"`
}

type CreateBoxInput struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=2000"`
	LocationID  *string  `json:"locationId" validate:"omitempty,uuid"`
	Tags        []string `json:"tags" validate:"max=20,dive,required,max=50"`
}

type UpdateBoxInput struct {
	Name        Optional[string]   `json:"name"`
	Description Optional[string]   `json:"description"`
	LocationID  Optional[string]   `json:"locationId"`
	Tags        Optional[[]string] `json:"tags"`
}

type CreateTagInput struct {
	Name  string `json:"name" validate:"required,max=50"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

type UpdateTagInput struct {
	Name  Optional[string] `json:"name"`
	Color Optional[string] `json:"color"`
}

// BoxFilter narrows box listings
type BoxFilter struct {
	LocationID string
}
