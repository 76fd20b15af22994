package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"homestock/internal/apiclient"
	"homestock/internal/models"
)

// optional turns an empty form value into nil
func optional(r *http.Request, field string) *string {
	v := strings.TrimSpace(r.PostFormValue(field))
	if v == "" {
		return nil
	}
	return &v
}

func formInt(r *http.Request, field string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue(field)))
	if err != nil {
		return def
	}
	return n
}

func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Dashboard lists owned items, filterable by box and status
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := callerFor(r)

	filter := models.ItemFilter{
		Status: models.ItemStatus(r.URL.Query().Get("status")),
		BoxID:  r.URL.Query().Get("box"),
		Tag:    r.URL.Query().Get("tag"),
	}
	if filter.Status == "" {
		filter.Status = models.ItemOwned
	}

	items, err := s.api.ListItems(ctx, caller, filter)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	boxes, err := s.api.ListBoxes(ctx, caller)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	boxNames := make(map[string]string, len(boxes))
	for _, b := range boxes {
		boxNames[b.ID] = b.Name
	}

	s.render(w, r, "dashboard.tmpl", map[string]any{
		"Title":    "Inventory",
		"Items":    items,
		"Boxes":    boxes,
		"BoxNames": boxNames,
		"Filter":   filter,
		"Owned":    filter.Status == models.ItemOwned,
	})
}

func (s *Server) CreateItem(w http.ResponseWriter, r *http.Request) {
	input := models.CreateItemInput{
		Name:        strings.TrimSpace(r.PostFormValue("name")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		BoxID:       optional(r, "box_id"),
		Quantity:    formInt(r, "quantity", 1),
		Memo:        strings.TrimSpace(r.PostFormValue("memo")),
		Tags:        splitTags(r.PostFormValue("tags")),
	}
	item, err := s.api.CreateItem(r.Context(), callerFor(r), input)
	if err != nil {
		s.fail(w, r, "/", err)
		return
	}
	s.redirectWithFlash(w, r, "/", FlashSuccess, "Added "+item.Name+".")
}

var transitionVerbs = map[string]string{
	apiclient.Consume: "used up",
	apiclient.Give:    "given away",
	apiclient.Sell:    "sold",
}

// TransitionItem marks an owned item consumed, given or sold
func (s *Server) TransitionItem(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	verb, ok := transitionVerbs[action]
	if !ok {
		http.NotFound(w, r)
		return
	}
	item, err := s.api.TransitionItem(r.Context(), callerFor(r), chi.URLParam(r, "id"), action, strings.TrimSpace(r.PostFormValue("note")))
	if err != nil {
		s.fail(w, r, "/", err)
		return
	}
	s.redirectWithFlash(w, r, "/", FlashSuccess, "Marked "+item.Name+" as "+verb+".")
}

// Wishlist shows pending wishes by priority
func (s *Server) Wishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := callerFor(r)

	status := models.WishlistStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.WishlistPending
	}
	wishes, err := s.api.ListWishlist(ctx, caller, status)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	boxes, err := s.api.ListBoxes(ctx, caller)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, "wishlist.tmpl", map[string]any{
		"Title":   "Wishlist",
		"Wishes":  wishes,
		"Boxes":   boxes,
		"Status":  status,
		"Pending": status == models.WishlistPending,
	})
}

func (s *Server) CreateWish(w http.ResponseWriter, r *http.Request) {
	input := models.CreateWishlistInput{
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Quantity: formInt(r, "quantity", 1),
		Priority: formInt(r, "priority", 0),
		Memo:     strings.TrimSpace(r.PostFormValue("memo")),
	}
	wish, err := s.api.CreateWish(r.Context(), callerFor(r), input)
	if err != nil {
		s.fail(w, r, "/wishlist", err)
		return
	}
	s.redirectWithFlash(w, r, "/wishlist", FlashSuccess, "Added "+wish.Name+" to the wishlist.")
}

// PurchaseWish marks a wish bought, optionally stocking it into a box
func (s *Server) PurchaseWish(w http.ResponseWriter, r *http.Request) {
	input := models.PurchaseInput{
		CreateItem: r.PostFormValue("add_to_inventory") == "on",
		BoxID:      optional(r, "box_id"),
		Note:       strings.TrimSpace(r.PostFormValue("note")),
	}
	res, err := s.api.PurchaseWish(r.Context(), callerFor(r), chi.URLParam(r, "id"), input)
	if err != nil {
		s.fail(w, r, "/wishlist", err)
		return
	}
	msg := "Marked " + res.Wishlist.Name + " as purchased."
	if res.Item != nil {
		msg = "Purchased " + res.Wishlist.Name + " and added it to the inventory."
	}
	s.redirectWithFlash(w, r, "/wishlist", FlashSuccess, msg)
}

func (s *Server) CancelWish(w http.ResponseWriter, r *http.Request) {
	wish, err := s.api.CancelWish(r.Context(), callerFor(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "/wishlist", err)
		return
	}
	s.redirectWithFlash(w, r, "/wishlist", FlashSuccess, "Cancelled "+wish.Name+".")
}

func (s *Server) Boxes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := callerFor(r)

	boxes, err := s.api.ListBoxes(ctx, caller)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	locations, err := s.api.ListLocations(ctx, caller)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	locationNames := make(map[string]string, len(locations))
	for _, l := range locations {
		locationNames[l.ID] = l.Name
	}
	s.render(w, r, "boxes.tmpl", map[string]any{
		"Title":         "Boxes",
		"Boxes":         boxes,
		"Locations":     locations,
		"LocationNames": locationNames,
	})
}

func (s *Server) CreateBox(w http.ResponseWriter, r *http.Request) {
	input := models.CreateBoxInput{
		Name:        strings.TrimSpace(r.PostFormValue("name")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		LocationID:  optional(r, "location_id"),
		Tags:        splitTags(r.PostFormValue("tags")),
	}
	box, err := s.api.CreateBox(r.Context(), callerFor(r), input)
	if err != nil {
		s.fail(w, r, "/boxes", err)
		return
	}
	s.redirectWithFlash(w, r, "/boxes", FlashSuccess, "Created box "+box.Name+".")
}

func (s *Server) Locations(w http.ResponseWriter, r *http.Request) {
	locations, err := s.api.ListLocations(r.Context(), callerFor(r))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, "locations.tmpl", map[string]any{
		"Title":     "Places",
		"Locations": locations,
	})
}

func (s *Server) CreateLocation(w http.ResponseWriter, r *http.Request) {
	input := models.NamedInput{
		Name:        strings.TrimSpace(r.PostFormValue("name")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		Tags:        splitTags(r.PostFormValue("tags")),
	}
	loc, err := s.api.CreateLocation(r.Context(), callerFor(r), input)
	if err != nil {
		s.fail(w, r, "/locations", err)
		return
	}
	s.redirectWithFlash(w, r, "/locations", FlashSuccess, "Created "+loc.Name+".")
}

// ShowJoin asks a signed-in user without a family for an invite code
func (s *Server) ShowJoin(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "join.tmpl", map[string]any{
		"Title": "Join a family",
		"Email": sessionFrom(r).Email,
		"Code":  r.URL.Query().Get("code"),
	})
}

func (s *Server) Join(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(r.PostFormValue("code")))
	if code == "" {
		s.redirectWithFlash(w, r, "/join", FlashError, "Enter the invite code you were given.")
		return
	}
	if _, err := s.api.Join(r.Context(), callerFor(r), code); err != nil {
		s.fail(w, r, "/join", err)
		return
	}
	family, err := s.api.Family(r.Context(), callerFor(r))
	if err != nil {
		s.redirectWithFlash(w, r, "/", FlashSuccess, "Welcome!")
		return
	}
	s.redirectWithFlash(w, r, "/", FlashSuccess, "Welcome to the "+family.Name+" family!")
}

// Invites is admin-only; members are bounced to the dashboard
func (s *Server) Invites(w http.ResponseWriter, r *http.Request) {
	if userFrom(r).Role != models.RoleAdmin {
		s.redirectWithFlash(w, r, "/", FlashError, "Only family admins can manage invites.")
		return
	}
	invites, err := s.api.ListInvites(r.Context(), callerFor(r))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, "invites.tmpl", map[string]any{
		"Title":   "Invites",
		"Invites": invites,
	})
}

func (s *Server) CreateInvite(w http.ResponseWriter, r *http.Request) {
	input := models.CreateInviteInput{Email: strings.TrimSpace(r.PostFormValue("email"))}
	if days := formInt(r, "expires_in_days", 0); days > 0 {
		input.ExpiresInDays = &days
	}
	invite, err := s.api.CreateInvite(r.Context(), callerFor(r), input)
	if err != nil {
		s.fail(w, r, "/invites", err)
		return
	}
	s.redirectWithFlash(w, r, "/invites", FlashSuccess, "Invite code "+invite.Code+" created.")
}

func (s *Server) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := s.api.RevokeInvite(r.Context(), callerFor(r), code); err != nil {
		s.fail(w, r, "/invites", err)
		return
	}
	s.redirectWithFlash(w, r, "/invites", FlashSuccess, "Invite code "+code+" revoked.")
}

func (s *Server) Profile(w http.ResponseWriter, r *http.Request) {
	family, err := s.api.Family(r.Context(), callerFor(r))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, "profile.tmpl", map[string]any{
		"Title":  "Profile",
		"Family": family,
	})
}

// LinkDiscord attaches a Discord account id so the bot can act for this member
func (s *Server) LinkDiscord(w http.ResponseWriter, r *http.Request) {
	discordID := strings.TrimSpace(r.PostFormValue("discord_id"))
	if _, err := strconv.ParseUint(discordID, 10, 64); err != nil {
		s.redirectWithFlash(w, r, "/profile", FlashError, "A Discord user ID is a long number. Enable Developer Mode in Discord and use Copy User ID.")
		return
	}
	if _, err := s.api.LinkDiscord(r.Context(), callerFor(r), discordID); err != nil {
		s.fail(w, r, "/profile", err)
		return
	}
	s.redirectWithFlash(w, r, "/profile", FlashSuccess, "Discord account linked.")
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
		status = apiErr.Status
	}
	s.renderStatus(w, r, status, "error.tmpl", map[string]any{
		"Title":   "Something went wrong",
		"Message": apiclient.Message(err),
	})
}
