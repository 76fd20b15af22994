package bot

import (
	"context"
	"fmt"
	"strings"

	"homestock/internal/apiclient"
	"homestock/internal/models"
)

// maxListLines keeps list replies readable in chat
const maxListLines = 25

// pick finds the record a user meant. An id or a case-insensitive exact name wins;
// otherwise a unique substring match is accepted.
func pick[T any](kind, query string, records []T, nameOf, idOf func(T) string) (T, error) {
	var zero T
	query = strings.TrimSpace(query)
	if query == "" {
		return zero, userErrorf("Which %s?", kind)
	}

	q := strings.ToLower(query)
	var partial []T
	for _, r := range records {
		name := strings.ToLower(nameOf(r))
		if idOf(r) == query || name == q {
			return r, nil
		}
		if strings.Contains(name, q) {
			partial = append(partial, r)
		}
	}

	switch len(partial) {
	case 0:
		return zero, userErrorf("I couldn't find any %s called %q.", kind, query)
	case 1:
		return partial[0], nil
	}

	names := make([]string, 0, 5)
	for i, r := range partial {
		if i == 5 {
			break
		}
		names = append(names, nameOf(r))
	}
	return zero, userErrorf("%q matches more than one %s: %s. Which one did you mean?", query, kind, strings.Join(names, ", "))
}

func itemName(i models.Item) string { return i.Name }
func itemID(i models.Item) string { return i.ID }
func wishName(w models.WishlistItem) string { return w.Name }
func wishID(w models.WishlistItem) string { return w.ID }
func boxName(b models.Box) string { return b.Name }
func boxID(b models.Box) string { return b.ID }
func locationName(l models.Location) string { return l.Name }
func locationID(l models.Location) string { return l.ID }

func bulletList(title string, lines []string, empty string) string {
	if len(lines) == 0 {
		return empty
	}
	var sb strings.Builder
	sb.WriteString(title)
	for i, line := range lines {
		if i == maxListLines {
			fmt.Fprintf(&sb, "\n…and %d more", len(lines)-maxListLines)
			break
		}
		sb.WriteString("\n• ")
		sb.WriteString(line)
	}
	return sb.String()
}

func withQuantity(name string, qty int) string {
	if qty > 1 {
		return fmt.Sprintf("%s ×%d", name, qty)
	}
	return name
}

func (b *Bot) whoami(ctx context.Context, caller apiclient.Caller) (string, error) {
	user, err := b.api.Me(ctx, caller)
	if err != nil {
		return "", err
	}
	family, err := b.api.Family(ctx, caller)
	if err != nil {
		return "", err
	}
	name := user.DisplayName
	if name == "" {
		name = user.Email
	}
	return fmt.Sprintf("You are **%s** (%s) in the **%s** family.", name, user.Role, family.Name), nil
}

func (b *Bot) addItem(ctx context.Context, caller apiclient.Caller, name string, qty int, box string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", userErrorf("What should I add?")
	}
	input := models.CreateItemInput{Name: strings.TrimSpace(name), Quantity: qty}

	var target *models.Box
	if box != "" {
		boxes, err := b.api.ListBoxes(ctx, caller)
		if err != nil {
			return "", err
		}
		found, err := pick("box", box, boxes, boxName, boxID)
		if err != nil {
			return "", err
		}
		target = &found
		input.BoxID = &found.ID
	}

	item, err := b.api.CreateItem(ctx, caller, input)
	if err != nil {
		return "", err
	}
	if target != nil {
		return fmt.Sprintf("Added %s to %s.", withQuantity(item.Name, item.Quantity), target.Name), nil
	}
	return fmt.Sprintf("Added %s.", withQuantity(item.Name, item.Quantity)), nil
}

func (b *Bot) ownedItem(ctx context.Context, caller apiclient.Caller, name string) (models.Item, error) {
	items, err := b.api.ListItems(ctx, caller, models.ItemFilter{Status: models.ItemOwned})
	if err != nil {
		return models.Item{}, err
	}
	return pick("item", name, items, itemName, itemID)
}

func (b *Bot) findItem(ctx context.Context, caller apiclient.Caller, name string) (string, error) {
	item, err := b.ownedItem(ctx, caller, name)
	if err != nil {
		return "", err
	}
	if item.BoxID == nil {
		return fmt.Sprintf("%s isn't in a box.", withQuantity(item.Name, item.Quantity)), nil
	}

	boxes, err := b.api.ListBoxes(ctx, caller)
	if err != nil {
		return "", err
	}
	for _, box := range boxes {
		if box.ID != *item.BoxID {
			continue
		}
		where := fmt.Sprintf("%s is in **%s**", withQuantity(item.Name, item.Quantity), box.Name)
		if box.LocationID != nil {
			locations, err := b.api.ListLocations(ctx, caller)
			if err != nil {
				return "", err
			}
			for _, loc := range locations {
				if loc.ID == *box.LocationID {
					where += " (" + loc.Name + ")"
				}
			}
		}
		return where + ".", nil
	}
	return fmt.Sprintf("%s is in a box I can't see.", item.Name), nil
}

func (b *Bot) listItems(ctx context.Context, caller apiclient.Caller) (string, error) {
	items, err := b.api.ListItems(ctx, caller, models.ItemFilter{Status: models.ItemOwned})
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, withQuantity(item.Name, item.Quantity))
	}
	return bulletList("**Items**", lines, "No items yet. Add one with `/item add`."), nil
}

var transitionReplies = map[string]string{
	apiclient.Consume: "Marked %s as used up.",
	apiclient.Give:    "Marked %s as given away.",
	apiclient.Sell:    "Marked %s as sold.",
}

func (b *Bot) transitionItem(ctx context.Context, caller apiclient.Caller, name, action, note string) (string, error) {
	item, err := b.ownedItem(ctx, caller, name)
	if err != nil {
		return "", err
	}
	updated, err := b.api.TransitionItem(ctx, caller, item.ID, action, note)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(transitionReplies[action], updated.Name), nil
}

func (b *Bot) addWish(ctx context.Context, caller apiclient.Caller, name string, priority int) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", userErrorf("What should I add to the wishlist?")
	}
	wish, err := b.api.CreateWish(ctx, caller, models.CreateWishlistInput{
		Name:     strings.TrimSpace(name),
		Quantity: 1,
		Priority: priority,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Added %s to the wishlist.", wish.Name), nil
}

func (b *Bot) listWishlist(ctx context.Context, caller apiclient.Caller) (string, error) {
	wishes, err := b.api.ListWishlist(ctx, caller, models.WishlistPending)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(wishes))
	for _, w := range wishes {
		line := withQuantity(w.Name, w.Quantity)
		if w.Priority > 0 {
			line += fmt.Sprintf(" (priority %d)", w.Priority)
		}
		lines = append(lines, line)
	}
	return bulletList("**Wishlist**", lines, "The wishlist is empty."), nil
}

func (b *Bot) pendingWish(ctx context.Context, caller apiclient.Caller, name string) (models.WishlistItem, error) {
	wishes, err := b.api.ListWishlist(ctx, caller, models.WishlistPending)
	if err != nil {
		return models.WishlistItem{}, err
	}
	return pick("wishlist entry", name, wishes, wishName, wishID)
}

func (b *Bot) purchaseWish(ctx context.Context, caller apiclient.Caller, name string, createItem bool) (string, error) {
	wish, err := b.pendingWish(ctx, caller, name)
	if err != nil {
		return "", err
	}
	result, err := b.api.PurchaseWish(ctx, caller, wish.ID, models.PurchaseInput{CreateItem: createItem})
	if err != nil {
		return "", err
	}
	if result.Item != nil {
		return fmt.Sprintf("Marked %s as purchased and added it to the inventory.", wish.Name), nil
	}
	return fmt.Sprintf("Marked %s as purchased.", wish.Name), nil
}

func (b *Bot) cancelWish(ctx context.Context, caller apiclient.Caller, name string) (string, error) {
	wish, err := b.pendingWish(ctx, caller, name)
	if err != nil {
		return "", err
	}
	if _, err := b.api.CancelWish(ctx, caller, wish.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Removed %s from the wishlist.", wish.Name), nil
}

func (b *Bot) addBox(ctx context.Context, caller apiclient.Caller, name, location string) (string, error) {
	input := models.CreateBoxInput{Name: strings.TrimSpace(name)}
	var where string
	if location != "" {
		locations, err := b.api.ListLocations(ctx, caller)
		if err != nil {
			return "", err
		}
		loc, err := pick("place", location, locations, locationName, locationID)
		if err != nil {
			return "", err
		}
		input.LocationID = &loc.ID
		where = " in " + loc.Name
	}
	box, err := b.api.CreateBox(ctx, caller, input)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Created box %s%s.", box.Name, where), nil
}

func (b *Bot) listBoxes(ctx context.Context, caller apiclient.Caller) (string, error) {
	boxes, err := b.api.ListBoxes(ctx, caller)
	if err != nil {
		return "", err
	}
	locations, err := b.api.ListLocations(ctx, caller)
	if err != nil {
		return "", err
	}
	names := make(map[string]string, len(locations))
	for _, loc := range locations {
		names[loc.ID] = loc.Name
	}

	lines := make([]string, 0, len(boxes))
	for _, box := range boxes {
		line := box.Name
		if box.LocationID != nil && names[*box.LocationID] != "" {
			line += " (" + names[*box.LocationID] + ")"
		}
		lines = append(lines, line)
	}
	return bulletList("**Boxes**", lines, "No boxes yet. Add one with `/box add`."), nil
}

func (b *Bot) addPlace(ctx context.Context, caller apiclient.Caller, name string) (string, error) {
	loc, err := b.api.CreateLocation(ctx, caller, models.NamedInput{Name: strings.TrimSpace(name)})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Created place %s.", loc.Name), nil
}

func (b *Bot) listPlaces(ctx context.Context, caller apiclient.Caller) (string, error) {
	locations, err := b.api.ListLocations(ctx, caller)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(locations))
	for _, loc := range locations {
		lines = append(lines, loc.Name)
	}
	return bulletList("**Places**", lines, "No places yet. Add one with `/place add`."), nil
}

func (b *Bot) recall(ctx context.Context, discordID string, limit int) (string, error) {
	if b.memory == nil {
		return "", userErrorf("Memory is turned off for this bot.")
	}
	records, err := b.memory.Recall(ctx, discordID, limit)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, fmt.Sprintf("[%s] %s", rec.Category, rec.Text))
	}
	return bulletList("**What I remember**", lines, "I don't remember anything from you yet."), nil
}
