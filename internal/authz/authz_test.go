package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homestock/internal/models"
)

type fakeUsers map[string]*models.User

func (f fakeUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if id == "broken" {
		return nil, errors.New("db down")
	}
	return f[id], nil
}

func TestRequireUser(t *testing.T) {
	users := fakeUsers{"sub-1": {ID: "sub-1", Role: models.RoleMember}}
	ctx := context.Background()

	user, err := RequireUser(ctx, users, models.Identity{Subject: "sub-1"})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", user.ID)

	_, err = RequireUser(ctx, users, models.Identity{Subject: "stranger"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = RequireUser(ctx, users, models.Identity{})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = RequireUser(ctx, users, models.Identity{Subject: "broken"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestRequireAdmin(t *testing.T) {
	assert.True(t, RequireAdmin(&models.User{Role: models.RoleAdmin}))
	assert.False(t, RequireAdmin(&models.User{Role: models.RoleMember}))
	assert.False(t, RequireAdmin(nil))
}

func TestEnforcerPolicy(t *testing.T) {
	e, err := NewEnforcer()
	require.NoError(t, err)

	admin := &models.User{Role: models.RoleAdmin}
	member := &models.User{Role: models.RoleMember}

	tests := []struct {
		name     string
		user     *models.User
		resource string
		action   string
		want     bool
	}{
		{"member reads items", member, "items", ActionRead, true},
		{"member deletes items", member, "items", ActionDelete, true},
		{"member creates item types", member, "item-types", ActionCreate, true},
		{"member cannot delete item types", member, "item-types", ActionDelete, false},
		{"member cannot delete locations", member, "locations", ActionDelete, false},
		{"member cannot manage invites", member, "invites", ActionCreate, false},
		{"member cannot change roles", member, "members", ActionUpdate, false},
		{"admin deletes item types", admin, "item-types", ActionDelete, true},
		{"admin inherits member rights", admin, "wishlist", ActionUpdate, true},
		{"admin manages invites", admin, "invites", ActionDelete, true},
		{"unknown role", &models.User{Role: "guest"}, "items", ActionRead, false},
		{"nil user", nil, "items", ActionRead, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Allowed(tt.user, tt.resource, tt.action))
		})
	}
}

func TestEnforcerLoadsPolicyText(t *testing.T) {
	e, err := newEnforcer("# readers only\np, member, items, read\n\ng, admin, member\n")
	require.NoError(t, err)

	assert.True(t, e.Allowed(&models.User{Role: models.RoleMember}, "items", ActionRead))
	assert.True(t, e.Allowed(&models.User{Role: models.RoleAdmin}, "items", ActionRead))
	assert.False(t, e.Allowed(&models.User{Role: models.RoleMember}, "items", ActionDelete))
}

func TestActionForMethod(t *testing.T) {
	assert.Equal(t, ActionRead, ActionForMethod("GET"))
	assert.Equal(t, ActionCreate, ActionForMethod("POST"))
	assert.Equal(t, ActionUpdate, ActionForMethod("PATCH"))
	assert.Equal(t, ActionDelete, ActionForMethod("DELETE"))
}
