// Package authz resolves verified identities to family members and decides what each role may do.
package authz

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"

	"homestock/internal/models"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

var ErrUserNotFound = errors.New("user not found")

// Actions checked against the policy
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// UserLookup finds the domain user for an identity subject
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// RequireUser returns the user who completed a join with this identity, or ErrUserNotFound
func RequireUser(ctx context.Context, users UserLookup, identity models.Identity) (*models.User, error) {
	if identity.Subject == "" {
		return nil, ErrUserNotFound
	}
	user, err := users.GetUserByID(ctx, identity.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// RequireAdmin reports whether user holds the admin role
func RequireAdmin(user *models.User) bool {
	return user.IsAdmin()
}

// Enforcer maps roles to (resource, action) permissions
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads the embedded role model and policy
func NewEnforcer() (*Enforcer, error) {
	return newEnforcer(embeddedPolicy)
}

func newEnforcer(policy string) (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, stringadapter.NewAdapter(policy))
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	return &Enforcer{enforcer: enforcer}, nil
}

// Allowed reports whether user's role may perform action on resource. A nil user is never allowed.
func (e *Enforcer) Allowed(user *models.User, resource, action string) bool {
	if user == nil {
		return false
	}
	ok, err := e.enforcer.Enforce(string(user.Role), resource, action)
	return err == nil && ok
}

// ActionForMethod maps an HTTP method to a policy action
func ActionForMethod(method string) string {
	switch method {
	case "GET", "HEAD":
		return ActionRead
	case "POST":
		return ActionCreate
	case "PUT", "PATCH":
		return ActionUpdate
	case "DELETE":
		return ActionDelete
	default:
		return method
	}
}
