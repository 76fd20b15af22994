package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"homestock/internal/models"
)

// PurchaseResult mirrors the purchase transition response
type PurchaseResult struct {
	Wishlist *models.WishlistItem `json:"wishlist"`
	Item     *models.Item         `json:"item,omitempty"`
}

// Transition names accepted by TransitionItem
const (
	Consume = "consume"
	Give    = "give"
	Sell    = "sell"
)

func (c *Client) Join(ctx context.Context, caller Caller, code string) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, caller, http.MethodPost, "/auth/join", nil, models.JoinInput{InviteCode: code}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Me(ctx context.Context, caller Caller) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, caller, http.MethodGet, "/auth/me", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// LinkDiscord sets or, with an empty id, clears the caller's Discord link
func (c *Client) LinkDiscord(ctx context.Context, caller Caller, discordID string) (*models.User, error) {
	body := map[string]any{"discordId": nil}
	if discordID != "" {
		body["discordId"] = discordID
	}
	var user models.User
	if err := c.do(ctx, caller, http.MethodPatch, "/auth/me", nil, body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Family(ctx context.Context, caller Caller) (*models.Family, error) {
	var family models.Family
	if err := c.do(ctx, caller, http.MethodGet, "/family", nil, nil, &family); err != nil {
		return nil, err
	}
	return &family, nil
}

func (c *Client) CreateInvite(ctx context.Context, caller Caller, input models.CreateInviteInput) (*models.InviteCode, error) {
	var invite models.InviteCode
	if err := c.do(ctx, caller, http.MethodPost, "/auth/invite", nil, input, &invite); err != nil {
		return nil, err
	}
	return &invite, nil
}

func (c *Client) ListInvites(ctx context.Context, caller Caller) ([]models.InviteCode, error) {
	var invites []models.InviteCode
	err := c.do(ctx, caller, http.MethodGet, "/auth/invites", nil, nil, &invites)
	return invites, err
}

func (c *Client) RevokeInvite(ctx context.Context, caller Caller, code string) error {
	return c.do(ctx, caller, http.MethodDelete, "/auth/invite/"+url.PathEscape(code), nil, nil, nil)
}

func (c *Client) ListItems(ctx context.Context, caller Caller, filter models.ItemFilter) ([]models.Item, error) {
	query := url.Values{}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}
	if filter.BoxID != "" {
		query.Set("boxId", filter.BoxID)
	}
	if filter.TypeID != "" {
		query.Set("typeId", filter.TypeID)
	}
	if filter.Tag != "" {
		query.Set("tag", filter.Tag)
	}
	var items []models.Item
	err := c.do(ctx, caller, http.MethodGet, "/items", query, nil, &items)
	return items, err
}

func (c *Client) CreateItem(ctx context.Context, caller Caller, input models.CreateItemInput) (*models.Item, error) {
	var item models.Item
	if err := c.do(ctx, caller, http.MethodPost, "/items", nil, input, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// TransitionItem runs one of Consume, Give or Sell
func (c *Client) TransitionItem(ctx context.Context, caller Caller, id, action, note string) (*models.Item, error) {
	var item models.Item
	if err := c.do(ctx, caller, http.MethodPost, "/items/"+url.PathEscape(id)+"/"+action, nil, models.TransitionInput{Note: note}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) ListWishlist(ctx context.Context, caller Caller, status models.WishlistStatus) ([]models.WishlistItem, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", string(status))
	}
	var wishes []models.WishlistItem
	err := c.do(ctx, caller, http.MethodGet, "/wishlist", query, nil, &wishes)
	return wishes, err
}

func (c *Client) CreateWish(ctx context.Context, caller Caller, input models.CreateWishlistInput) (*models.WishlistItem, error) {
	var wish models.WishlistItem
	if err := c.do(ctx, caller, http.MethodPost, "/wishlist", nil, input, &wish); err != nil {
		return nil, err
	}
	return &wish, nil
}

func (c *Client) PurchaseWish(ctx context.Context, caller Caller, id string, input models.PurchaseInput) (*PurchaseResult, error) {
	var result PurchaseResult
	if err := c.do(ctx, caller, http.MethodPost, "/wishlist/"+url.PathEscape(id)+"/purchase", nil, input, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CancelWish(ctx context.Context, caller Caller, id string) (*models.WishlistItem, error) {
	var wish models.WishlistItem
	if err := c.do(ctx, caller, http.MethodPost, "/wishlist/"+url.PathEscape(id)+"/cancel", nil, nil, &wish); err != nil {
		return nil, err
	}
	return &wish, nil
}

func (c *Client) ListBoxes(ctx context.Context, caller Caller) ([]models.Box, error) {
	var boxes []models.Box
	err := c.do(ctx, caller, http.MethodGet, "/boxes", nil, nil, &boxes)
	return boxes, err
}

func (c *Client) CreateBox(ctx context.Context, caller Caller, input models.CreateBoxInput) (*models.Box, error) {
	var box models.Box
	if err := c.do(ctx, caller, http.MethodPost, "/boxes", nil, input, &box); err != nil {
		return nil, err
	}
	return &box, nil
}

func (c *Client) ListLocations(ctx context.Context, caller Caller) ([]models.Location, error) {
	var locations []models.Location
	err := c.do(ctx, caller, http.MethodGet, "/locations", nil, nil, &locations)
	return locations, err
}

func (c *Client) CreateLocation(ctx context.Context, caller Caller, input models.NamedInput) (*models.Location, error) {
	var location models.Location
	if err := c.do(ctx, caller, http.MethodPost, "/locations", nil, input, &location); err != nil {
		return nil, err
	}
	return &location, nil
}
