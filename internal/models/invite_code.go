package models

import (
	"time"

	"homestock/internal/invitecode"
)

// InviteStatus is the lifecycle state of an invite code
type InviteStatus string

const (
	InviteActive  InviteStatus = "active"
	InviteUsed    InviteStatus = "used"
	InviteRevoked InviteStatus = "revoked"
)

// InviteCode grants one person membership in a family
type InviteCode struct {
	Code      string       `json:"code"`
	FamilyID  string       `json:"familyId"`
	Status    InviteStatus `json:"status"`
	ExpiresAt time.Time    `json:"expiresAt"`
	CreatedBy string       `json:"createdBy"`
	CreatedAt time.Time    `json:"createdAt"`
	UsedBy    *string      `json:"usedBy,omitempty"`
	UsedAt    *time.Time   `json:"usedAt,omitempty"`
	RevokedAt *time.Time   `json:"revokedAt,omitempty"`
}

// IsExpiredAt reports whether the code's window has closed at now
func (c *InviteCode) IsExpiredAt(now time.Time) bool {
	return invitecode.IsExpiredAt(c.ExpiresAt, now)
}

// AcceptableAt reports whether the code can still be used to join at now
func (c *InviteCode) AcceptableAt(now time.Time) bool {
	return c.Status == InviteActive && !c.IsExpiredAt(now) && invitecode.IsValidFormat(c.Code)
}

// CreateInviteInput is the body of an invite creation request
type CreateInviteInput struct {
	ExpiresInDays *int   `json:"expiresInDays" validate:"omitempty,min=1,max=30"`
	Email         string `json:"email" validate:"omitempty,email"`
}

// JoinInput is the body of a join request
type JoinInput struct {
	InviteCode string `json:"inviteCode" validate:"required"`
}
