package service

import (
	"context"
	"time"

	"homestock/internal/models"
	"homestock/internal/repository"
)

// The store interfaces below are satisfied by the repository package and let tests swap in fakes.

type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByDiscordID(ctx context.Context, discordID string) (*models.User, error)
	ListFamilyUsers(ctx context.Context, familyID string) ([]models.User, error)
	CountAdmins(ctx context.Context, familyID string) (int, error)
	UpdateProfile(ctx context.Context, id string, input models.UpdateProfileInput) (*models.User, error)
	UpdateRole(ctx context.Context, familyID, id string, role models.Role) (*models.User, error)
}

type FamilyStore interface {
	CreateFamily(ctx context.Context, name, createdBy string) (*models.Family, error)
	GetFamilyByID(ctx context.Context, familyID string) (*models.Family, error)
}

type InviteStore interface {
	CreateInvitation(ctx context.Context, inv *models.InviteCode) error
	GetInvitationByCode(ctx context.Context, code string) (*models.InviteCode, error)
	ListFamilyInvitations(ctx context.Context, familyID string) ([]models.InviteCode, error)
	RevokeInvitation(ctx context.Context, familyID, code string, now time.Time) (repository.Outcome, error)
	PurgeInvitations(ctx context.Context, cutoff time.Time) (int64, error)
	RedeemInvitation(ctx context.Context, code string, identity models.Identity, now time.Time) (*models.User, repository.RedeemResult, error)
}

type ItemTypeStore interface {
	List(ctx context.Context, familyID string) ([]models.ItemType, error)
	Get(ctx context.Context, familyID, id string) (*models.ItemType, error)
	Exists(ctx context.Context, familyID, id string) (bool, error)
	Create(ctx context.Context, familyID string, input models.NamedInput) (*models.ItemType, error)
	Update(ctx context.Context, familyID, id string, input models.NamedUpdate) (*models.ItemType, error)
	Delete(ctx context.Context, familyID, id string) (repository.Outcome, error)
}

type LocationStore interface {
	List(ctx context.Context, familyID string) ([]models.Location, error)
	Get(ctx context.Context, familyID, id string) (*models.Location, error)
	Exists(ctx context.Context, familyID, id string) (bool, error)
	Create(ctx context.Context, familyID string, input models.NamedInput) (*models.Location, error)
	Update(ctx context.Context, familyID, id string, input models.NamedUpdate) (*models.Location, error)
	Delete(ctx context.Context, familyID, id string) (repository.Outcome, error)
}

type BoxStore interface {
	List(ctx context.Context, familyID string, filter models.BoxFilter) ([]models.Box, error)
	Get(ctx context.Context, familyID, id string) (*models.Box, error)
	Exists(ctx context.Context, familyID, id string) (bool, error)
	Create(ctx context.Context, familyID string, input models.CreateBoxInput) (*models.Box, error)
	Update(ctx context.Context, familyID, id string, input models.UpdateBoxInput) (*models.Box, error)
	Delete(ctx context.Context, familyID, id string) (repository.Outcome, error)
}

type TagStore interface {
	List(ctx context.Context, familyID string) ([]models.Tag, error)
	Get(ctx context.Context, familyID, id string) (*models.Tag, error)
	Create(ctx context.Context, familyID string, input models.CreateTagInput) (*models.Tag, error)
	Update(ctx context.Context, familyID, id string, input models.UpdateTagInput) (*models.Tag, error)
	Delete(ctx context.Context, familyID, id string) (bool, error)
}

type ItemStore interface {
	List(ctx context.Context, familyID string, filter models.ItemFilter) ([]models.Item, error)
	Get(ctx context.Context, familyID, id string) (*models.Item, error)
	Create(ctx context.Context, familyID, createdBy string, input models.CreateItemInput) (*models.Item, error)
	Update(ctx context.Context, familyID, id string, input models.UpdateItemInput) (*models.Item, error)
	Delete(ctx context.Context, familyID, id string) (bool, error)
	Transition(ctx context.Context, familyID, id string, from, to models.ItemStatus, actor, note string, now time.Time) (*models.Item, repository.Outcome, error)
}

type WishlistStore interface {
	List(ctx context.Context, familyID string, filter models.WishlistFilter) ([]models.WishlistItem, error)
	Get(ctx context.Context, familyID, id string) (*models.WishlistItem, error)
	Create(ctx context.Context, familyID, createdBy string, input models.CreateWishlistInput) (*models.WishlistItem, error)
	Update(ctx context.Context, familyID, id string, input models.UpdateWishlistInput) (*models.WishlistItem, error)
	Delete(ctx context.Context, familyID, id string) (bool, error)
	Cancel(ctx context.Context, familyID, id, actor string, now time.Time) (*models.WishlistItem, repository.Outcome, error)
	Purchase(ctx context.Context, familyID, id, actor string, input models.PurchaseInput, now time.Time) (*models.WishlistItem, *models.Item, repository.Outcome, error)
}

var (
	_ UserStore     = (*repository.UserRepository)(nil)
	_ FamilyStore   = (*repository.FamilyRepository)(nil)
	_ InviteStore   = (*repository.InvitationRepository)(nil)
	_ ItemTypeStore = (*repository.ItemTypeRepository)(nil)
	_ LocationStore = (*repository.LocationRepository)(nil)
	_ BoxStore      = (*repository.BoxRepository)(nil)
	_ TagStore      = (*repository.TagRepository)(nil)
	_ ItemStore     = (*repository.ItemRepository)(nil)
	_ WishlistStore = (*repository.WishlistRepository)(nil)
)
