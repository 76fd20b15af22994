package models

import "time"

// Role is a user's permission level within their family
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// User is a family member. ID is the verified identity subject.
type User struct {
	ID          string    `json:"id"`
	FamilyID    string    `json:"familyId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
	DiscordID   *string   `json:"discordId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Identity is a verified caller as established by token verification
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// UpdateProfileInput changes the caller's own profile
type UpdateProfileInput struct {
	DisplayName Optional[string] `json:"displayName"`
	DiscordID   Optional[string] `json:"discordId"`
}

// UpdateMemberInput changes another member's role
type UpdateMemberInput struct {
	Role Role `json:"role" validate:"required,oneof=admin member"`
}
