package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"homestock/internal/models"
	"homestock/internal/service"
)

func familyID(r *http.Request) string {
	return GetUserFromContext(r.Context()).FamilyID
}

func respondDeleted(w http.ResponseWriter, id string) {
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// ItemTypeHandler serves /item-types
type ItemTypeHandler struct {
	service *service.ItemTypeService
}

func NewItemTypeHandler(s *service.ItemTypeService) *ItemTypeHandler {
	return &ItemTypeHandler{service: s}
}

func (h *ItemTypeHandler) List(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.List(r.Context(), familyID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, types)
}

func (h *ItemTypeHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.Get(r.Context(), familyID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *ItemTypeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input models.NamedInput
	if !decodeBody(w, r, &input) {
		return
	}
	t, err := h.service.Create(r.Context(), familyID(r), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

func (h *ItemTypeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input models.NamedUpdate
	if !decodeBody(w, r, &input) {
		return
	}
	t, err := h.service.Update(r.Context(), familyID(r), chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// Delete answers 409 ITEM_TYPE_IN_USE while anything still references the type
func (h *ItemTypeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), familyID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondDeleted(w, id)
}

// LocationHandler serves /locations
type LocationHandler struct {
	service *service.LocationService
}

func NewLocationHandler(s *service.LocationService) *LocationHandler {
	return &LocationHandler{service: s}
}

func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	locations, err := h.service.List(r.Context(), familyID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, locations)
}

func (h *LocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	location, err := h.service.Get(r.Context(), familyID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, location)
}

func (h *LocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input models.NamedInput
	if !decodeBody(w, r, &input) {
		return
	}
	location, err := h.service.Create(r.Context(), familyID(r), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, location)
}

func (h *LocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input models.NamedUpdate
	if !decodeBody(w, r, &input) {
		return
	}
	location, err := h.service.Update(r.Context(), familyID(r), chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, location)
}

func (h *LocationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), familyID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondDeleted(w, id)
}

// BoxHandler serves /boxes
type BoxHandler struct {
	service *service.BoxService
}

func NewBoxHandler(s *service.BoxService) *BoxHandler {
	return &BoxHandler{service: s}
}

// List supports ?locationId=
func (h *BoxHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := models.BoxFilter{LocationID: r.URL.Query().Get("locationId")}
	boxes, err := h.service.List(r.Context(), familyID(r), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, boxes)
}

func (h *BoxHandler) Get(w http.ResponseWriter, r *http.Request) {
	box, err := h.service.Get(r.Context(), familyID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, box)
}

func (h *BoxHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input models.CreateBoxInput
	if !decodeBody(w, r, &input) {
		return
	}
	box, err := h.service.Create(r.Context(), familyID(r), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, box)
}

func (h *BoxHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input models.UpdateBoxInput
	if !decodeBody(w, r, &input) {
		return
	}
	box, err := h.service.Update(r.Context(), familyID(r), chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, box)
}

func (h *BoxHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), familyID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondDeleted(w, id)
}

// TagHandler serves /tags
type TagHandler struct {
	service *service.TagService
}

func NewTagHandler(s *service.TagService) *TagHandler {
	return &TagHandler{service: s}
}

func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := h.service.List(r.Context(), familyID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tags)
}

func (h *TagHandler) Get(w http.ResponseWriter, r *http.Request) {
	tag, err := h.service.Get(r.Context(), familyID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tag)
}

func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input models.CreateTagInput
	if !decodeBody(w, r, &input) {
		return
	}
	tag, err := h.service.Create(r.Context(), familyID(r), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, tag)
}

func (h *TagHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input models.UpdateTagInput
	if !decodeBody(w, r, &input) {
		return
	}
	tag, err := h.service.Update(r.Context(), familyID(r), chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tag)
}

func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), familyID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondDeleted(w, id)
}
