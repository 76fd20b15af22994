package models

import "time"

// WishlistStatus tracks a wanted purchase
type WishlistStatus string

const (
	WishlistPending   WishlistStatus = "pending"
	WishlistPurchased WishlistStatus = "purchased"
	WishlistCancelled WishlistStatus = "cancelled"
)

func (s WishlistStatus) Valid() bool {
	switch s {
	case WishlistPending, WishlistPurchased, WishlistCancelled:
		return true
	}
	return false
}

// WishlistItem is something the family wants to buy
type WishlistItem struct {
	ID              string         `json:"id"`
	FamilyID        string         `json:"familyId"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	TypeID          *string        `json:"typeId"`
	Quantity        int            `json:"quantity"`
	Price           *float64       `json:"price"`
	URL             string         `json:"url"`
	Memo            string         `json:"memo"`
	Tags            []string       `json:"tags"`
	Priority        int            `json:"priority"`
	Status          WishlistStatus `json:"status"`
	StatusChangedAt *time.Time     `json:"statusChangedAt,omitempty"`
	StatusChangedBy *string        `json:"statusChangedBy,omitempty"`
	PurchasedItemID *string        `json:"purchasedItemId,omitempty"`
	CreatedBy       string         `json:"createdBy"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

type CreateWishlistInput struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=2000"`
	TypeID      *string  `json:"typeId" validate:"omitempty,uuid"`
	Quantity    int      `json:"quantity" validate:"omitempty,min=1,max=100000"`
	Price       *float64 `json:"price" validate:"omitempty,min=0"`
	URL         string   `json:"url" validate:"omitempty,url"`
	Memo        string   `json:"memo" validate:"max=2000"`
	Tags        []string `json:"tags" validate:"max=20,dive,required,max=50"`
	Priority    int      `json:"priority" validate:"min=0,max=5"`
}

type UpdateWishlistInput struct {
	Name        Optional[string]   `json:"name"`
	Description Optional[string]   `json:"description"`
	TypeID      Optional[string]   `json:"typeId"`
	Quantity    Optional[int]      `json:"quantity"`
	Price       Optional[float64]  `json:"price"`
	URL         Optional[string]   `json:"url"`
	Memo        Optional[string]   `json:"memo"`
	Tags        Optional[[]string] `json:"tags"`
	Priority    Optional[int]      `json:"priority"`
}

// PurchaseInput optionally turns a purchased wish into an owned item
type PurchaseInput struct {
	CreateItem bool    `json:"createItem"`
	BoxID      *string `json:"boxId" validate:"omitempty,uuid"`
	Note       string  `json:"note" validate:"max=500"`
}

type WishlistFilter struct {
	Status WishlistStatus
}
