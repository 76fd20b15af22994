package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"homestock/internal/models"
	"homestock/internal/service"
)

// ItemHandler serves /items and the status transitions
type ItemHandler struct {
	service *service.ItemService
}

func NewItemHandler(s *service.ItemService) *ItemHandler {
	return &ItemHandler{service: s}
}

// List supports ?status=&boxId=&typeId=&tag=
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ItemFilter{
		Status: models.ItemStatus(q.Get("status")),
		BoxID:  q.Get("boxId"),
		TypeID: q.Get("typeId"),
		Tag:    q.Get("tag"),
	}
	items, err := h.service.List(r.Context(), familyID(r), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), familyID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input models.CreateItemInput
	if !decodeBody(w, r, &input) {
		return
	}
	user := GetUserFromContext(r.Context())
	item, err := h.service.Create(r.Context(), user.FamilyID, user.ID, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

// Update applies only the fields present in the body
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input models.UpdateItemInput
	if !decodeBody(w, r, &input) {
		return
	}
	item, err := h.service.Update(r.Context(), familyID(r), chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), familyID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondDeleted(w, id)
}

type transitionFunc func(ctx context.Context, familyID, id, actor string, input models.TransitionInput) (*models.Item, error)

func (h *ItemHandler) transition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input models.TransitionInput
		if !decodeOptionalBody(w, r, &input) {
			return
		}
		user := GetUserFromContext(r.Context())
		item, err := fn(r.Context(), user.FamilyID, chi.URLParam(r, "id"), user.ID, input)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, item)
	}
}

func (h *ItemHandler) Consume(w http.ResponseWriter, r *http.Request) {
	h.transition(h.service.Consume)(w, r)
}

func (h *ItemHandler) Give(w http.ResponseWriter, r *http.Request) {
	h.transition(h.service.Give)(w, r)
}

func (h *ItemHandler) Sell(w http.ResponseWriter, r *http.Request) {
	h.transition(h.service.Sell)(w, r)
}

// WishlistHandler serves /wishlist
type WishlistHandler struct {
	service *service.WishlistService
}

func NewWishlistHandler(s *service.WishlistService) *WishlistHandler {
	return &WishlistHandler{service: s}
}

// PurchaseResult is returned by the purchase transition. Item is set when one was created.
type PurchaseResult struct {
	Wishlist *models.WishlistItem `json:"wishlist"`
	Item     *models.Item         `json:"item,omitempty"`
}

// List supports ?status=
func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := models.WishlistFilter{Status: models.WishlistStatus(r.URL.Query().Get("status"))}
	wishes, err := h.service.List(r.Context(), familyID(r), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, wishes)
}

func (h *WishlistHandler) Get(w http.ResponseWriter, r *http.Request) {
	wish, err := h.service.Get(r.Context(), familyID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, wish)
}

func (h *WishlistHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input models.CreateWishlistInput
	if !decodeBody(w, r, &input) {
		return
	}
	user := GetUserFromContext(r.Context())
	wish, err := h.service.Create(r.Context(), user.FamilyID, user.ID, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, wish)
}

func (h *WishlistHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input models.UpdateWishlistInput
	if !decodeBody(w, r, &input) {
		return
	}
	wish, err := h.service.Update(r.Context(), familyID(r), chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, wish)
}

func (h *WishlistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), familyID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondDeleted(w, id)
}

func (h *WishlistHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var input models.PurchaseInput
	if !decodeOptionalBody(w, r, &input) {
		return
	}
	user := GetUserFromContext(r.Context())
	wish, item, err := h.service.Purchase(r.Context(), user.FamilyID, chi.URLParam(r, "id"), user.ID, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, PurchaseResult{Wishlist: wish, Item: item})
}

func (h *WishlistHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var input models.TransitionInput
	if !decodeOptionalBody(w, r, &input) {
		return
	}
	user := GetUserFromContext(r.Context())
	wish, err := h.service.Cancel(r.Context(), user.FamilyID, chi.URLParam(r, "id"), user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, wish)
}
