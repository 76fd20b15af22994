package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"homestock/internal/models"
	"homestock/internal/service"
)

// FamilyHandler serves the caller's family and its membership
type FamilyHandler struct {
	familyService *service.FamilyService
}

// NewFamilyHandler creates a new family handler
func NewFamilyHandler(familyService *service.FamilyService) *FamilyHandler {
	return &FamilyHandler{familyService: familyService}
}

func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	family, err := h.familyService.GetFamily(r.Context(), GetUserFromContext(r.Context()).FamilyID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, family)
}

func (h *FamilyHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.familyService.Members(r.Context(), GetUserFromContext(r.Context()).FamilyID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, members)
}

// UpdateMember changes another member's role (admin only)
func (h *FamilyHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var input models.UpdateMemberInput
	if !decodeBody(w, r, &input) {
		return
	}

	member, err := h.familyService.UpdateMemberRole(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, member)
}
