package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"homestock/internal/logging"
	"homestock/internal/metrics"
	"homestock/internal/models"
	"homestock/internal/service"
)

// AuthHandler serves onboarding, the caller's profile and invite management
type AuthHandler struct {
	authService   *service.AuthService
	inviteService *service.InviteService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, inviteService *service.InviteService) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		inviteService: inviteService,
	}
}

// Join redeems an invite code for the signed-in identity.
// Returns 201 for a new member and 200 when the identity had already joined.
func (h *AuthHandler) Join(w http.ResponseWriter, r *http.Request) {
	identity, ok := GetIdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "Sign in required", nil)
		return
	}

	var input models.JoinInput
	if !decodeBody(w, r, &input) {
		return
	}

	user, created, err := h.authService.Join(r.Context(), identity, input)
	if err != nil {
		metrics.InviteJoins.WithLabelValues("rejected").Inc()
		writeServiceError(w, r, err)
		return
	}

	if !created {
		metrics.InviteJoins.WithLabelValues("existing").Inc()
		respondJSON(w, http.StatusOK, user)
		return
	}
	metrics.InviteJoins.WithLabelValues("created").Inc()
	respondJSON(w, http.StatusCreated, user)
}

// Me returns the signed-in member
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, GetUserFromContext(r.Context()))
}

// UpdateMe changes the caller's display name or Discord link
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var input models.UpdateProfileInput
	if !decodeBody(w, r, &input) {
		return
	}

	user, err := h.authService.UpdateProfile(r.Context(), GetUserFromContext(r.Context()), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// CreateInvite issues a new code for the admin's family
func (h *AuthHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	var input models.CreateInviteInput
	if !decodeOptionalBody(w, r, &input) {
		return
	}

	user := GetUserFromContext(r.Context())
	invite, err := h.inviteService.Create(r.Context(), user, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	metrics.InvitesCreated.Inc()
	logging.Ctx(r.Context()).Info().
		Str("family_id", user.FamilyID).
		Time("expires_at", invite.ExpiresAt).
		Msg("Invite code created")
	respondJSON(w, http.StatusCreated, invite)
}

// ListInvites returns the family's codes, newest first
func (h *AuthHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := h.inviteService.List(r.Context(), GetUserFromContext(r.Context()).FamilyID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, invites)
}

// RevokeInvite withdraws an active code
func (h *AuthHandler) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := h.inviteService.Revoke(r.Context(), GetUserFromContext(r.Context()).FamilyID, code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"code": code, "revoked": true})
}
