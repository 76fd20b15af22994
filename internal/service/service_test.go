package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homestock/internal/database"
	"homestock/internal/models"
	"homestock/internal/repository"
	"homestock/internal/validation"
)

type services struct {
	db        *database.DB
	auth      *AuthService
	invites   *InviteService
	families  *FamilyService
	itemTypes *ItemTypeService
	locations *LocationService
	boxes     *BoxService
	tags      *TagService
	items     *ItemService
	wishlist  *WishlistService
	family    *models.Family
}

func newServices(t *testing.T) *services {
	t.Helper()
	db, err := database.Initialize(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	users := repository.NewUserRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	inviteRepo := repository.NewInvitationRepository(db)
	typeRepo := repository.NewItemTypeRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	boxRepo := repository.NewBoxRepository(db)

	s := &services{
		db:        db,
		auth:      NewAuthService(users, inviteRepo),
		invites:   NewInviteService(inviteRepo, familyRepo, nil),
		families:  NewFamilyService(familyRepo, users),
		itemTypes: NewItemTypeService(typeRepo),
		locations: NewLocationService(locationRepo),
		boxes:     NewBoxService(boxRepo, locationRepo),
		tags:      NewTagService(repository.NewTagRepository(db)),
		items:     NewItemService(repository.NewItemRepository(db), typeRepo, boxRepo),
		wishlist:  NewWishlistService(repository.NewWishlistRepository(db), typeRepo, boxRepo),
	}
	s.family, err = s.families.CreateFamily(context.Background(), "The Testers", "seed")
	require.NoError(t, err)
	return s
}

// join issues a fresh code and redeems it for subject
func (s *services) join(t *testing.T, subject string) *models.User {
	t.Helper()
	ctx := context.Background()
	inv, err := s.invites.CreateForFamily(ctx, s.family.ID, "seed", 7)
	require.NoError(t, err)
	user, created, err := s.auth.Join(ctx, models.Identity{Subject: subject, Email: subject + "@example.com"}, models.JoinInput{InviteCode: inv.Code})
	require.NoError(t, err)
	require.True(t, created)
	return user
}

func TestJoinFlow(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	first := s.join(t, "alice")
	assert.Equal(t, models.RoleAdmin, first.Role)
	second := s.join(t, "bob")
	assert.Equal(t, models.RoleMember, second.Role)

	t.Run("existing user gets record back without consuming the code", func(t *testing.T) {
		inv, err := s.invites.CreateForFamily(ctx, s.family.ID, "seed", 7)
		require.NoError(t, err)
		user, created, err := s.auth.Join(ctx, models.Identity{Subject: "alice"}, models.JoinInput{InviteCode: inv.Code})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, user.ID)

		stored, err := repository.NewInvitationRepository(s.db).GetInvitationByCode(ctx, inv.Code)
		require.NoError(t, err)
		assert.Equal(t, models.InviteActive, stored.Status)
	})

	t.Run("code is normalized", func(t *testing.T) {
		inv, err := s.invites.CreateForFamily(ctx, s.family.ID, "seed", 7)
		require.NoError(t, err)
		user, created, err := s.auth.Join(ctx, models.Identity{Subject: "carol"}, models.JoinInput{InviteCode: "  " + lower(inv.Code) + "\n"})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "carol", user.ID)
	})

	tests := []struct {
		name string
		code string
		want error
	}{
		{"bad format", "ABCD-EFGH-JK20", ErrInviteCodeInvalid},
		{"unknown code", "ABCD-EFGH-JK23", ErrInviteCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.auth.Join(ctx, models.Identity{Subject: "dave"}, models.JoinInput{InviteCode: tt.code})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("missing code is a validation error", func(t *testing.T) {
		_, _, err := s.auth.Join(ctx, models.Identity{Subject: "dave"}, models.JoinInput{})
		var verr *validation.Error
		assert.ErrorAs(t, err, &verr)
	})
}

func TestJoinExpiredCode(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	s.invites.now = func() time.Time { return time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC) }
	inv, err := s.invites.CreateForFamily(ctx, s.family.ID, "seed", 7)
	require.NoError(t, err)

	s.auth.now = func() time.Time { return time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC) }
	_, _, err = s.auth.Join(ctx, models.Identity{Subject: "late"}, models.JoinInput{InviteCode: inv.Code})
	assert.ErrorIs(t, err, ErrInviteCodeExpired)

	_, err = s.auth.Me(ctx, models.Identity{Subject: "late"})
	assert.ErrorIs(t, err, ErrUserNotFound)
	stored, err := repository.NewInvitationRepository(s.db).GetInvitationByCode(ctx, inv.Code)
	require.NoError(t, err)
	assert.Equal(t, models.InviteActive, stored.Status)
}

func TestUsedCodeIsInvalid(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	inv, err := s.invites.CreateForFamily(ctx, s.family.ID, "seed", 7)
	require.NoError(t, err)
	_, _, err = s.auth.Join(ctx, models.Identity{Subject: "one"}, models.JoinInput{InviteCode: inv.Code})
	require.NoError(t, err)

	_, _, err = s.auth.Join(ctx, models.Identity{Subject: "two"}, models.JoinInput{InviteCode: inv.Code})
	assert.ErrorIs(t, err, ErrInviteCodeInvalid)
}

type collidingInvites struct {
	InviteStore
	calls int
}

func (c *collidingInvites) CreateInvitation(ctx context.Context, inv *models.InviteCode) error {
	c.calls++
	if c.calls < 3 {
		return repository.ErrDuplicate
	}
	return nil
}

type recordingMailer struct {
	to, code string
	fail     bool
}

func (m *recordingMailer) IsEnabled() bool { return true }

func (m *recordingMailer) SendInviteEmail(_ context.Context, to, _, code string, _ time.Time) error {
	m.to, m.code = to, code
	if m.fail {
		return errors.New("ses unavailable")
	}
	return nil
}

type staticFamilies struct{}

func (staticFamilies) CreateFamily(context.Context, string, string) (*models.Family, error) {
	return nil, errors.New("not used")
}

func (staticFamilies) GetFamilyByID(_ context.Context, id string) (*models.Family, error) {
	return &models.Family{ID: id, Name: "Testers"}, nil
}

func TestInviteCreate(t *testing.T) {
	ctx := context.Background()
	admin := &models.User{ID: "admin", FamilyID: "fam", Role: models.RoleAdmin}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("retries on collision and defaults to seven days", func(t *testing.T) {
		store := &collidingInvites{}
		mailer := &recordingMailer{}
		svc := NewInviteService(store, staticFamilies{}, mailer)
		svc.now = func() time.Time { return now }

		inv, err := svc.Create(ctx, admin, models.CreateInviteInput{Email: "new@example.com"})
		require.NoError(t, err)
		assert.Equal(t, 3, store.calls)
		assert.Equal(t, now.AddDate(0, 0, 7), inv.ExpiresAt)
		assert.Equal(t, "new@example.com", mailer.to)
		assert.Equal(t, inv.Code, mailer.code)
	})

	t.Run("mail failure does not fail creation", func(t *testing.T) {
		svc := NewInviteService(&collidingInvites{calls: 5}, staticFamilies{}, &recordingMailer{fail: true})
		_, err := svc.Create(ctx, admin, models.CreateInviteInput{Email: "new@example.com"})
		assert.NoError(t, err)
	})

	t.Run("gives up after repeated collisions", func(t *testing.T) {
		svc := NewInviteService(&collidingInvites{calls: -10}, staticFamilies{}, nil)
		_, err := svc.Create(ctx, admin, models.CreateInviteInput{})
		assert.Error(t, err)
	})

	t.Run("expiry window is bounded", func(t *testing.T) {
		svc := NewInviteService(&collidingInvites{calls: 5}, staticFamilies{}, nil)
		for _, days := range []int{0, 31} {
			d := days
			_, err := svc.Create(ctx, admin, models.CreateInviteInput{ExpiresInDays: &d})
			var verr *validation.Error
			assert.ErrorAs(t, err, &verr, "days=%d", days)
		}
	})
}

func TestInviteRevokeAndPurge(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	inv, err := s.invites.CreateForFamily(ctx, s.family.ID, "seed", 7)
	require.NoError(t, err)

	require.NoError(t, s.invites.Revoke(ctx, s.family.ID, lower(inv.Code)))
	assert.ErrorIs(t, s.invites.Revoke(ctx, s.family.ID, inv.Code), ErrStatusConflict)
	assert.ErrorIs(t, s.invites.Revoke(ctx, "other-family", inv.Code), ErrInviteCodeNotFound)

	list, err := s.invites.List(ctx, s.family.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.InviteRevoked, list[0].Status)

	s.invites.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	purged, err := s.invites.Purge(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestMemberRoles(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	admin := s.join(t, "alice")
	member := s.join(t, "bob")

	_, err := s.families.UpdateMemberRole(ctx, admin, admin.ID, models.UpdateMemberInput{Role: models.RoleMember})
	assert.ErrorIs(t, err, ErrLastAdmin)

	promoted, err := s.families.UpdateMemberRole(ctx, admin, member.ID, models.UpdateMemberInput{Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, promoted.Role)

	demoted, err := s.families.UpdateMemberRole(ctx, admin, admin.ID, models.UpdateMemberInput{Role: models.RoleMember})
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, demoted.Role)

	_, err = s.families.UpdateMemberRole(ctx, promoted, "nobody", models.UpdateMemberInput{Role: models.RoleAdmin})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = s.families.UpdateMemberRole(ctx, promoted, member.ID, models.UpdateMemberInput{Role: "owner"})
	var verr *validation.Error
	assert.ErrorAs(t, err, &verr)

	members, err := s.families.Members(ctx, s.family.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestUpdateProfile(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := s.join(t, "alice")
	bob := s.join(t, "bob")

	updated, err := s.auth.UpdateProfile(ctx, alice, models.UpdateProfileInput{DiscordID: models.Some("123456789012345678")})
	require.NoError(t, err)
	require.NotNil(t, updated.DiscordID)

	byDiscord, err := s.auth.UserByDiscordID(ctx, "123456789012345678")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byDiscord.ID)

	_, err = s.auth.UpdateProfile(ctx, bob, models.UpdateProfileInput{DiscordID: models.Some("123456789012345678")})
	assert.ErrorIs(t, err, ErrDiscordIDTaken)

	_, err = s.auth.UpdateProfile(ctx, bob, models.UpdateProfileInput{DiscordID: models.Some("not-a-number")})
	var verr *validation.Error
	assert.ErrorAs(t, err, &verr)

	_, err = s.auth.UpdateProfile(ctx, bob, models.UpdateProfileInput{DisplayName: models.Some("  ")})
	assert.ErrorAs(t, err, &verr)

	cleared, err := s.auth.UpdateProfile(ctx, alice, models.UpdateProfileInput{DiscordID: models.Null[string]()})
	require.NoError(t, err)
	assert.Nil(t, cleared.DiscordID)
	_, err = s.auth.UserByDiscordID(ctx, "123456789012345678")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestItemTypeDeleteRefusedWhileInUse(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	fam := s.family.ID

	itemType, err := s.itemTypes.Create(ctx, fam, models.NamedInput{Name: "Board game"})
	require.NoError(t, err)
	item, err := s.items.Create(ctx, fam, "alice", models.CreateItemInput{Name: "Catan", TypeID: &itemType.ID})
	require.NoError(t, err)

	assert.ErrorIs(t, s.itemTypes.Delete(ctx, fam, itemType.ID), ErrItemTypeInUse)

	stillType, err := s.itemTypes.Get(ctx, fam, itemType.ID)
	require.NoError(t, err)
	assert.Equal(t, itemType.Name, stillType.Name)
	stillItem, err := s.items.Get(ctx, fam, item.ID)
	require.NoError(t, err)
	assert.Equal(t, itemType.ID, *stillItem.TypeID)

	require.NoError(t, s.items.Delete(ctx, fam, item.ID))
	require.NoError(t, s.itemTypes.Delete(ctx, fam, itemType.ID))
	assert.ErrorIs(t, s.itemTypes.Delete(ctx, fam, itemType.ID), ErrItemTypeNotFound)
}

func TestLocationAndBoxGuards(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	fam := s.family.ID

	garage, err := s.locations.Create(ctx, fam, models.NamedInput{Name: "Garage"})
	require.NoError(t, err)
	box, err := s.boxes.Create(ctx, fam, models.CreateBoxInput{Name: "Tools", LocationID: &garage.ID})
	require.NoError(t, err)
	_, err = s.items.Create(ctx, fam, "alice", models.CreateItemInput{Name: "Hammer", BoxID: &box.ID})
	require.NoError(t, err)

	assert.ErrorIs(t, s.locations.Delete(ctx, fam, garage.ID), ErrLocationInUse)
	assert.ErrorIs(t, s.boxes.Delete(ctx, fam, box.ID), ErrBoxNotEmpty)

	missing := "5b0c7f1e-4f7b-4c1e-9a57-3d6c7a0f0a11"
	_, err = s.boxes.Create(ctx, fam, models.CreateBoxInput{Name: "Lost", LocationID: &missing})
	assert.ErrorIs(t, err, ErrLocationNotFound)
	_, err = s.boxes.Update(ctx, fam, box.ID, models.UpdateBoxInput{LocationID: models.Some(missing)})
	assert.ErrorIs(t, err, ErrLocationNotFound)

	moved, err := s.boxes.Update(ctx, fam, box.ID, models.UpdateBoxInput{LocationID: models.Null[string]()})
	require.NoError(t, err)
	assert.Nil(t, moved.LocationID)

	boxes, err := s.boxes.List(ctx, fam, models.BoxFilter{LocationID: garage.ID})
	require.NoError(t, err)
	assert.Empty(t, boxes)
}

func TestCrossFamilyReferencesAreNotFound(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	other, err := s.families.CreateFamily(ctx, "Neighbours", "seed")
	require.NoError(t, err)
	theirBox, err := s.boxes.Create(ctx, other.ID, models.CreateBoxInput{Name: "Theirs"})
	require.NoError(t, err)

	_, err = s.items.Create(ctx, s.family.ID, "alice", models.CreateItemInput{Name: "Sneaky", BoxID: &theirBox.ID})
	assert.ErrorIs(t, err, ErrBoxNotFound)
	_, err = s.boxes.Get(ctx, s.family.ID, theirBox.ID)
	assert.ErrorIs(t, err, ErrBoxNotFound)
}

func TestItemPartialUpdateAndTransitions(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	fam := s.family.ID

	box, err := s.boxes.Create(ctx, fam, models.CreateBoxInput{Name: "Shelf"})
	require.NoError(t, err)
	item, err := s.items.Create(ctx, fam, "alice", models.CreateItemInput{Name: "Tent", BoxID: &box.ID, Tags: []string{"camping"}})
	require.NoError(t, err)

	updated, err := s.items.Update(ctx, fam, item.ID, models.UpdateItemInput{Memo: models.Some("x")})
	require.NoError(t, err)
	assert.Equal(t, "x", updated.Memo)
	assert.Equal(t, models.ItemOwned, updated.Status)
	assert.Equal(t, []string{"camping"}, updated.Tags)
	assert.Equal(t, box.ID, *updated.BoxID)

	_, err = s.items.Update(ctx, fam, item.ID, models.UpdateItemInput{Quantity: models.Some(0)})
	var verr *validation.Error
	assert.ErrorAs(t, err, &verr)
	_, err = s.items.Update(ctx, fam, item.ID, models.UpdateItemInput{Name: models.Null[string]()})
	assert.ErrorAs(t, err, &verr)

	given, err := s.items.Give(ctx, fam, item.ID, "bob", models.TransitionInput{Note: " to the neighbours "})
	require.NoError(t, err)
	assert.Equal(t, models.ItemGiven, given.Status)
	assert.Equal(t, "to the neighbours", given.StatusNote)
	assert.Equal(t, "bob", *given.StatusChangedBy)

	_, err = s.items.Sell(ctx, fam, item.ID, "bob", models.TransitionInput{})
	assert.ErrorIs(t, err, ErrStatusConflict)
	_, err = s.items.Consume(ctx, fam, "5b0c7f1e-4f7b-4c1e-9a57-3d6c7a0f0a11", "bob", models.TransitionInput{})
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = s.items.List(ctx, fam, models.ItemFilter{Status: "lost"})
	assert.ErrorAs(t, err, &verr)
	owned, err := s.items.List(ctx, fam, models.ItemFilter{Status: models.ItemOwned})
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestWishlistPurchaseAndCancel(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	fam := s.family.ID

	price := 19.99
	wish, err := s.wishlist.Create(ctx, fam, "alice", models.CreateWishlistInput{Name: "Lantern", Price: &price, Priority: 3})
	require.NoError(t, err)
	assert.Equal(t, models.WishlistPending, wish.Status)

	box, err := s.boxes.Create(ctx, fam, models.CreateBoxInput{Name: "Camping"})
	require.NoError(t, err)

	purchased, item, err := s.wishlist.Purchase(ctx, fam, wish.ID, "bob", models.PurchaseInput{CreateItem: true, BoxID: &box.ID})
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, models.WishlistPurchased, purchased.Status)
	assert.Equal(t, item.ID, *purchased.PurchasedItemID)
	assert.Equal(t, box.ID, *item.BoxID)

	_, err = s.wishlist.Cancel(ctx, fam, wish.ID, "bob")
	assert.ErrorIs(t, err, ErrStatusConflict)

	other, err := s.wishlist.Create(ctx, fam, "alice", models.CreateWishlistInput{Name: "Stove"})
	require.NoError(t, err)
	missing := "5b0c7f1e-4f7b-4c1e-9a57-3d6c7a0f0a11"
	_, _, err = s.wishlist.Purchase(ctx, fam, other.ID, "bob", models.PurchaseInput{CreateItem: true, BoxID: &missing})
	assert.ErrorIs(t, err, ErrBoxNotFound)

	cancelled, err := s.wishlist.Cancel(ctx, fam, other.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.WishlistCancelled, cancelled.Status)

	updated, err := s.wishlist.Update(ctx, fam, wish.ID, models.UpdateWishlistInput{Price: models.Null[float64]()})
	require.NoError(t, err)
	assert.Nil(t, updated.Price)

	_, err = s.wishlist.Update(ctx, fam, wish.ID, models.UpdateWishlistInput{Priority: models.Some(9)})
	var verr *validation.Error
	assert.ErrorAs(t, err, &verr)
}

func TestTagDuplicates(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	fam := s.family.ID

	_, err := s.tags.Create(ctx, fam, models.CreateTagInput{Name: "fragile", Color: "#ff0000"})
	require.NoError(t, err)
	other, err := s.tags.Create(ctx, fam, models.CreateTagInput{Name: "heavy"})
	require.NoError(t, err)

	_, err = s.tags.Create(ctx, fam, models.CreateTagInput{Name: "fragile"})
	assert.ErrorIs(t, err, ErrTagExists)
	_, err = s.tags.Update(ctx, fam, other.ID, models.UpdateTagInput{Name: models.Some("fragile")})
	assert.ErrorIs(t, err, ErrTagExists)
	_, err = s.tags.Update(ctx, fam, other.ID, models.UpdateTagInput{Color: models.Some("red")})
	var verr *validation.Error
	assert.ErrorAs(t, err, &verr)

	require.NoError(t, s.tags.Delete(ctx, fam, other.ID))
	assert.ErrorIs(t, s.tags.Delete(ctx, fam, other.ID), ErrTagNotFound)
}

func TestBackupRoundTrip(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	s.join(t, "alice")
	price := 5.5
	_, err := s.wishlist.Create(ctx, s.family.ID, "alice", models.CreateWishlistInput{Name: "Rope", Price: &price, Tags: []string{"camping"}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewBackupService(s.db).ExportToWriter(ctx, &buf))

	restored := newServices(t)
	require.NoError(t, NewBackupService(restored.db).ImportFromReader(ctx, &buf, true))

	user, err := restored.auth.Me(ctx, models.Identity{Subject: "alice"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)

	wishes, err := restored.wishlist.List(ctx, s.family.ID, models.WishlistFilter{})
	require.NoError(t, err)
	require.Len(t, wishes, 1)
	assert.Equal(t, 5.5, *wishes[0].Price)
	assert.Equal(t, []string{"camping"}, wishes[0].Tags)
}

func lower(s string) string {
	return string(bytes.ToLower([]byte(s)))
}
