package service

import (
	"errors"

	"homestock/internal/authz"
)

var (
	ErrUserNotFound     = authz.ErrUserNotFound
	ErrFamilyNotFound   = errors.New("family not found")
	ErrLastAdmin        = errors.New("the last admin cannot give up the admin role")
	ErrDiscordIDTaken   = errors.New("discord account already linked to another user")
	ErrItemNotFound     = errors.New("item not found")
	ErrItemTypeNotFound = errors.New("item type not found")
	ErrBoxNotFound      = errors.New("box not found")
	ErrLocationNotFound = errors.New("location not found")
	ErrTagNotFound      = errors.New("tag not found")
	ErrWishlistNotFound = errors.New("wishlist entry not found")
	ErrTagExists        = errors.New("a tag with this name already exists")

	ErrInviteCodeNotFound = errors.New("invite code not found")
	ErrInviteCodeInvalid  = errors.New("invalid or already used invite code")
	ErrInviteCodeExpired  = errors.New("invite code has expired")

	ErrItemTypeInUse  = errors.New("item type is still used by items or wishlist entries")
	ErrLocationInUse  = errors.New("location still has boxes")
	ErrBoxNotEmpty    = errors.New("box still contains items")
	ErrStatusConflict = errors.New("status does not allow this change")
)
