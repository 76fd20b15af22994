package models

import "time"

// ItemStatus tracks whether an item is still in the household
type ItemStatus string

const (
	ItemOwned    ItemStatus = "owned"
	ItemConsumed ItemStatus = "consumed"
	ItemGiven    ItemStatus = "given"
	ItemSold     ItemStatus = "sold"
)

// Valid reports whether s is a known item status
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemOwned, ItemConsumed, ItemGiven, ItemSold:
		return true
	}
	return false
}

// Item is a single tracked possession
type Item struct {
	ID              string     `json:"id"`
	FamilyID        string     `json:"familyId"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	TypeID          *string    `json:"typeId"`
	BoxID           *string    `json:"boxId"`
	Quantity        int        `json:"quantity"`
	Memo            string     `json:"memo"`
	Tags            []string   `json:"tags"`
	Status          ItemStatus `json:"status"`
	StatusChangedAt *time.Time `json:"statusChangedAt,omitempty"`
	StatusChangedBy *string    `json:"statusChangedBy,omitempty"`
	StatusNote      string     `json:"statusNote,omitempty"`
	CreatedBy       string     `json:"createdBy"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type CreateItemInput struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=2000"`
	TypeID      *string  `json:"typeId" validate:"omitempty,uuid"`
	BoxID       *string  `json:"boxId" validate:"omitempty,uuid"`
	Quantity    int      `json:"quantity" validate:"omitempty,min=1,max=100000"`
	Memo        string   `json:"memo" validate:"max=2000"`
	Tags        []string `json:"tags" validate:"max=20,dive,required,max=50"`
}

// UpdateItemInput changes only the fields that are Set. Status moves through transitions instead.
type UpdateItemInput struct {
	Name        Optional[string]   `json:"name"`
	Description Optional[string]   `json:"description"`
	TypeID      Optional[string]   `json:"typeId"`
	BoxID       Optional[string]   `json:"boxId"`
	Quantity    Optional[int]      `json:"quantity"`
	Memo        Optional[string]   `json:"memo"`
	Tags        Optional[[]string] `json:"tags"`
}

// ItemFilter narrows item listings. Empty fields match everything.
type ItemFilter struct {
	Status ItemStatus
	BoxID  string
	TypeID string
	Tag    string
}

// TransitionInput is the optional body of a status transition
type TransitionInput struct {
	Note string `json:"note" validate:"max=500"`
}
