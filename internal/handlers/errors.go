package handlers

import (
	"errors"
	"net/http"

	"homestock/internal/logging"
	"homestock/internal/service"
	"homestock/internal/validation"
)

// Error codes returned in the envelope
const (
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeInvalidAPIKey     = "INVALID_API_KEY"
	CodeNotAdmin          = "NOT_ADMIN"
	CodeValidation        = "VALIDATION_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeUserNotFound      = "USER_NOT_FOUND"
	CodeFamilyNotFound    = "FAMILY_NOT_FOUND"
	CodeItemNotFound      = "ITEM_NOT_FOUND"
	CodeItemTypeNotFound  = "ITEM_TYPE_NOT_FOUND"
	CodeBoxNotFound       = "BOX_NOT_FOUND"
	CodeLocationNotFound  = "LOCATION_NOT_FOUND"
	CodeTagNotFound       = "TAG_NOT_FOUND"
	CodeWishlistNotFound  = "WISHLIST_NOT_FOUND"
	CodeInviteNotFound    = "INVITE_CODE_NOT_FOUND"
	CodeInviteInvalid     = "INVITE_CODE_INVALID"
	CodeInviteExpired     = "INVITE_CODE_EXPIRED"
	CodeItemTypeInUse     = "ITEM_TYPE_IN_USE"
	CodeLocationInUse     = "LOCATION_IN_USE"
	CodeBoxNotEmpty       = "BOX_NOT_EMPTY"
	CodeStatusConflict    = "STATUS_CONFLICT"
	CodeTagExists         = "TAG_EXISTS"
	CodeDiscordIDTaken    = "DISCORD_ID_TAKEN"
	CodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

// serviceErrors is checked in order with errors.Is
var serviceErrors = []errorMapping{
	{service.ErrUserNotFound, http.StatusNotFound, CodeUserNotFound, "User not found. Join a family with an invite code first."},
	{service.ErrFamilyNotFound, http.StatusNotFound, CodeFamilyNotFound, "Family not found"},
	{service.ErrItemNotFound, http.StatusNotFound, CodeItemNotFound, "Item not found"},
	{service.ErrItemTypeNotFound, http.StatusNotFound, CodeItemTypeNotFound, "Item type not found"},
	{service.ErrBoxNotFound, http.StatusNotFound, CodeBoxNotFound, "Box not found"},
	{service.ErrLocationNotFound, http.StatusNotFound, CodeLocationNotFound, "Location not found"},
	{service.ErrTagNotFound, http.StatusNotFound, CodeTagNotFound, "Tag not found"},
	{service.ErrWishlistNotFound, http.StatusNotFound, CodeWishlistNotFound, "Wishlist entry not found"},
	{service.ErrInviteCodeNotFound, http.StatusNotFound, CodeInviteNotFound, "Invite code not found"},
	{service.ErrInviteCodeInvalid, http.StatusBadRequest, CodeInviteInvalid, "Invite code is not valid"},
	{service.ErrInviteCodeExpired, http.StatusBadRequest, CodeInviteExpired, "Invite code has expired"},
	{service.ErrItemTypeInUse, http.StatusConflict, CodeItemTypeInUse, "Item type is still used by items or wishlist entries"},
	{service.ErrLocationInUse, http.StatusConflict, CodeLocationInUse, "Location still has boxes"},
	{service.ErrBoxNotEmpty, http.StatusConflict, CodeBoxNotEmpty, "Box still has items"},
	{service.ErrStatusConflict, http.StatusConflict, CodeStatusConflict, "The record is not in a state that allows this change"},
	{service.ErrTagExists, http.StatusConflict, CodeTagExists, "A tag with that name already exists"},
	{service.ErrDiscordIDTaken, http.StatusConflict, CodeDiscordIDTaken, "That Discord account is linked to another user"},
}

// writeServiceError maps a service failure to its envelope. Anything unrecognised is logged
// and reported as INTERNAL_ERROR without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		respondError(w, http.StatusBadRequest, CodeValidation, "Request validation failed", verr.Fields)
		return
	}

	if errors.Is(err, service.ErrLastAdmin) {
		respondError(w, http.StatusBadRequest, CodeValidation, "A family needs at least one admin", []validation.FieldError{
			{Field: "role", Message: "cannot demote the last admin"},
		})
		return
	}

	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			respondError(w, m.status, m.code, m.message, nil)
			return
		}
	}

	logging.Ctx(r.Context()).Error().Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("Unhandled service error")
	respondError(w, http.StatusInternalServerError, CodeInternal, "Something went wrong. Please try again.", nil)
}
