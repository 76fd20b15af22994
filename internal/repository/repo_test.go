package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homestock/internal/database"
	"homestock/internal/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Initialize(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

type fixture struct {
	db        *database.DB
	families  *FamilyRepository
	users     *UserRepository
	invites   *InvitationRepository
	itemTypes *ItemTypeRepository
	locations *LocationRepository
	boxes     *BoxRepository
	tags      *TagRepository
	items     *ItemRepository
	wishlist  *WishlistRepository
	family    *models.Family
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{
		db:        db,
		families:  NewFamilyRepository(db),
		users:     NewUserRepository(db),
		invites:   NewInvitationRepository(db),
		itemTypes: NewItemTypeRepository(db),
		locations: NewLocationRepository(db),
		boxes:     NewBoxRepository(db),
		tags:      NewTagRepository(db),
		items:     NewItemRepository(db),
		wishlist:  NewWishlistRepository(db),
	}
	family, err := f.families.CreateFamily(context.Background(), "The Testers", "seed")
	require.NoError(t, err)
	f.family = family
	return f
}

func (f *fixture) invite(t *testing.T, code string, expiresAt time.Time) {
	t.Helper()
	err := f.invites.CreateInvitation(context.Background(), &models.InviteCode{
		Code:      code,
		FamilyID:  f.family.ID,
		Status:    models.InviteActive,
		ExpiresAt: expiresAt,
		CreatedBy: "seed",
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

func strPtr(s string) *string { return &s }

func TestRedeemInvitationRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	f.invite(t, "AAAA-BBBB-CCCC", now.AddDate(0, 0, 7))
	f.invite(t, "DDDD-EEEE-FFFF", now.AddDate(0, 0, 7))

	first, result, err := f.invites.RedeemInvitation(ctx, "AAAA-BBBB-CCCC", models.Identity{Subject: "u1", Email: "a@example.com", Name: "Ann"}, now)
	require.NoError(t, err)
	assert.Equal(t, Redeemed, result)
	assert.Equal(t, models.RoleAdmin, first.Role)
	assert.Equal(t, f.family.ID, first.FamilyID)

	second, result, err := f.invites.RedeemInvitation(ctx, "DDDD-EEEE-FFFF", models.Identity{Subject: "u2", Email: "b@example.com"}, now)
	require.NoError(t, err)
	assert.Equal(t, Redeemed, result)
	assert.Equal(t, models.RoleMember, second.Role)
	assert.Equal(t, "b@example.com", second.DisplayName)

	inv, err := f.invites.GetInvitationByCode(ctx, "AAAA-BBBB-CCCC")
	require.NoError(t, err)
	assert.Equal(t, models.InviteUsed, inv.Status)
	require.NotNil(t, inv.UsedBy)
	assert.Equal(t, "u1", *inv.UsedBy)
}

func TestRedeemInvitationRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.invite(t, "GGGG-HHHH-JJJJ", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))

	t.Run("expired code leaves everything unchanged", func(t *testing.T) {
		now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
		user, result, err := f.invites.RedeemInvitation(ctx, "GGGG-HHHH-JJJJ", models.Identity{Subject: "late"}, now)
		require.NoError(t, err)
		assert.Equal(t, CodeExpired, result)
		assert.Nil(t, user)

		created, err := f.users.GetUserByID(ctx, "late")
		require.NoError(t, err)
		assert.Nil(t, created)

		inv, err := f.invites.GetInvitationByCode(ctx, "GGGG-HHHH-JJJJ")
		require.NoError(t, err)
		assert.Equal(t, models.InviteActive, inv.Status)
	})

	t.Run("expiry instant is still accepted", func(t *testing.T) {
		f.invite(t, "KKKK-LLLL-MMMM", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
		_, result, err := f.invites.RedeemInvitation(ctx, "KKKK-LLLL-MMMM", models.Identity{Subject: "edge"}, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, Redeemed, result)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, result, err := f.invites.RedeemInvitation(ctx, "NNNN-PPPP-QQQQ", models.Identity{Subject: "x"}, time.Now())
		require.NoError(t, err)
		assert.Equal(t, CodeNotFound, result)
	})

	t.Run("used code", func(t *testing.T) {
		_, result, err := f.invites.RedeemInvitation(ctx, "KKKK-LLLL-MMMM", models.Identity{Subject: "y"}, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, CodeUnavailable, result)
	})

	t.Run("existing member keeps code untouched", func(t *testing.T) {
		f.invite(t, "RRRR-SSSS-TTTT", time.Now().AddDate(0, 0, 7))
		user, result, err := f.invites.RedeemInvitation(ctx, "RRRR-SSSS-TTTT", models.Identity{Subject: "edge"}, time.Now())
		require.NoError(t, err)
		assert.Equal(t, AlreadyMember, result)
		assert.Equal(t, "edge", user.ID)

		inv, err := f.invites.GetInvitationByCode(ctx, "RRRR-SSSS-TTTT")
		require.NoError(t, err)
		assert.Equal(t, models.InviteActive, inv.Status)
	})
}

func TestInvitationRevokeAndPurge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	f.invite(t, "AAAA-AAAA-AAAA", now.AddDate(0, 0, 7))
	f.invite(t, "BBBB-BBBB-BBBB", now.AddDate(0, 0, -60))

	outcome, err := f.invites.RevokeInvitation(ctx, f.family.ID, "AAAA-AAAA-AAAA", now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	outcome, err = f.invites.RevokeInvitation(ctx, f.family.ID, "AAAA-AAAA-AAAA", now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, outcome)

	outcome, err = f.invites.RevokeInvitation(ctx, "other-family", "BBBB-BBBB-BBBB", now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, outcome)

	err = f.invites.CreateInvitation(ctx, &models.InviteCode{Code: "AAAA-AAAA-AAAA", FamilyID: f.family.ID, Status: models.InviteActive, CreatedBy: "x"})
	assert.ErrorIs(t, err, ErrDuplicate)

	purged, err := f.invites.PurgeInvitations(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	invites, err := f.invites.ListFamilyInvitations(ctx, f.family.ID)
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, models.InviteRevoked, invites[0].Status)
}

func TestItemPartialUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	box, err := f.boxes.Create(ctx, f.family.ID, models.CreateBoxInput{Name: "Box A"})
	require.NoError(t, err)
	item, err := f.items.Create(ctx, f.family.ID, "u1", models.CreateItemInput{
		Name:  "Drill",
		BoxID: &box.ID,
		Tags:  []string{"tools", " tools ", "power"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"tools", "power"}, item.Tags)
	assert.Equal(t, 1, item.Quantity)

	updated, err := f.items.Update(ctx, f.family.ID, item.ID, models.UpdateItemInput{Memo: models.Some("x")})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "x", updated.Memo)
	assert.Equal(t, models.ItemOwned, updated.Status)
	assert.Equal(t, []string{"tools", "power"}, updated.Tags)
	require.NotNil(t, updated.BoxID)
	assert.Equal(t, box.ID, *updated.BoxID)
	assert.Equal(t, "Drill", updated.Name)

	cleared, err := f.items.Update(ctx, f.family.ID, item.ID, models.UpdateItemInput{BoxID: models.Null[string]()})
	require.NoError(t, err)
	assert.Nil(t, cleared.BoxID)
	assert.Equal(t, "x", cleared.Memo)

	missing, err := f.items.Update(ctx, f.family.ID, "nope", models.UpdateItemInput{Memo: models.Some("y")})
	require.NoError(t, err)
	assert.Nil(t, missing)

	otherFamily, err := f.items.Update(ctx, "other", item.ID, models.UpdateItemInput{})
	require.NoError(t, err)
	assert.Nil(t, otherFamily)
}

func TestItemListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []models.CreateItemInput{
		{Name: "Zebra puzzle", Tags: []string{"games"}},
		{Name: "Apple corer", Tags: []string{"kitchen"}},
		{Name: "Monopoly", Tags: []string{"Games"}},
	} {
		_, err := f.items.Create(ctx, f.family.ID, "u1", in)
		require.NoError(t, err)
	}

	all, err := f.items.List(ctx, f.family.ID, models.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Apple corer", all[0].Name)

	games, err := f.items.List(ctx, f.family.ID, models.ItemFilter{Tag: "games"})
	require.NoError(t, err)
	assert.Len(t, games, 2)

	_, _, err = f.items.Transition(ctx, f.family.ID, all[0].ID, models.ItemOwned, models.ItemConsumed, "u1", "", time.Now())
	require.NoError(t, err)
	owned, err := f.items.List(ctx, f.family.ID, models.ItemFilter{Status: models.ItemOwned})
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	none, err := f.items.List(ctx, "other", models.ItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestItemTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, err := f.items.Create(ctx, f.family.ID, "u1", models.CreateItemInput{Name: "Milk"})
	require.NoError(t, err)

	sold, outcome, err := f.items.Transition(ctx, f.family.ID, item.ID, models.ItemOwned, models.ItemSold, "u2", "marketplace", time.Now())
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.ItemSold, sold.Status)
	assert.Equal(t, "marketplace", sold.StatusNote)
	require.NotNil(t, sold.StatusChangedBy)
	assert.Equal(t, "u2", *sold.StatusChangedBy)

	_, outcome, err = f.items.Transition(ctx, f.family.ID, item.ID, models.ItemOwned, models.ItemGiven, "u2", "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, outcome)

	_, outcome, err = f.items.Transition(ctx, f.family.ID, "missing", models.ItemOwned, models.ItemGiven, "u2", "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, outcome)
}

func TestGuardedDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	itemType, err := f.itemTypes.Create(ctx, f.family.ID, models.NamedInput{Name: "Tools"})
	require.NoError(t, err)
	location, err := f.locations.Create(ctx, f.family.ID, models.NamedInput{Name: "Garage"})
	require.NoError(t, err)
	box, err := f.boxes.Create(ctx, f.family.ID, models.CreateBoxInput{Name: "Red box", LocationID: &location.ID})
	require.NoError(t, err)
	item, err := f.items.Create(ctx, f.family.ID, "u1", models.CreateItemInput{Name: "Hammer", TypeID: &itemType.ID, BoxID: &box.ID})
	require.NoError(t, err)

	t.Run("item type in use", func(t *testing.T) {
		outcome, err := f.itemTypes.Delete(ctx, f.family.ID, itemType.ID)
		require.NoError(t, err)
		assert.Equal(t, OutcomeBlocked, outcome)

		stillThere, err := f.itemTypes.Get(ctx, f.family.ID, itemType.ID)
		require.NoError(t, err)
		assert.NotNil(t, stillThere)
		unchanged, err := f.items.Get(ctx, f.family.ID, item.ID)
		require.NoError(t, err)
		assert.Equal(t, itemType.ID, *unchanged.TypeID)
	})

	t.Run("location in use", func(t *testing.T) {
		outcome, err := f.locations.Delete(ctx, f.family.ID, location.ID)
		require.NoError(t, err)
		assert.Equal(t, OutcomeBlocked, outcome)
	})

	t.Run("box not empty", func(t *testing.T) {
		outcome, err := f.boxes.Delete(ctx, f.family.ID, box.ID)
		require.NoError(t, err)
		assert.Equal(t, OutcomeBlocked, outcome)
	})

	t.Run("cleared references allow delete", func(t *testing.T) {
		deleted, err := f.items.Delete(ctx, f.family.ID, item.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		for _, del := range []func() (Outcome, error){
			func() (Outcome, error) { return f.itemTypes.Delete(ctx, f.family.ID, itemType.ID) },
			func() (Outcome, error) { return f.boxes.Delete(ctx, f.family.ID, box.ID) },
			func() (Outcome, error) { return f.locations.Delete(ctx, f.family.ID, location.ID) },
		} {
			outcome, err := del()
			require.NoError(t, err)
			assert.Equal(t, OutcomeApplied, outcome)
		}
	})

	t.Run("missing", func(t *testing.T) {
		outcome, err := f.boxes.Delete(ctx, f.family.ID, box.ID)
		require.NoError(t, err)
		assert.Equal(t, OutcomeNotFound, outcome)
	})
}

func TestWishlistPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	price := 12.5
	wish, err := f.wishlist.Create(ctx, f.family.ID, "u1", models.CreateWishlistInput{Name: "Kettle", Price: &price, Tags: []string{"kitchen"}})
	require.NoError(t, err)
	assert.Equal(t, models.WishlistPending, wish.Status)

	purchased, item, outcome, err := f.wishlist.Purchase(ctx, f.family.ID, wish.ID, "u2", models.PurchaseInput{CreateItem: true}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.WishlistPurchased, purchased.Status)
	require.NotNil(t, item)
	assert.Equal(t, "Kettle", item.Name)
	assert.Equal(t, models.ItemOwned, item.Status)
	require.NotNil(t, purchased.PurchasedItemID)
	assert.Equal(t, item.ID, *purchased.PurchasedItemID)

	_, _, outcome, err = f.wishlist.Purchase(ctx, f.family.ID, wish.ID, "u2", models.PurchaseInput{CreateItem: true}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, outcome)

	items, err := f.items.List(ctx, f.family.ID, models.ItemFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 1, "a refused purchase must not leave a new item behind")

	_, outcome, err = f.wishlist.Cancel(ctx, f.family.ID, wish.ID, "u2", time.Now())
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, outcome)
}

func TestWishlistUpdateClearsPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	price := 3.0
	wish, err := f.wishlist.Create(ctx, f.family.ID, "u1", models.CreateWishlistInput{Name: "Socks", Price: &price, Priority: 2})
	require.NoError(t, err)

	updated, err := f.wishlist.Update(ctx, f.family.ID, wish.ID, models.UpdateWishlistInput{Price: models.Null[float64]()})
	require.NoError(t, err)
	assert.Nil(t, updated.Price)
	assert.Equal(t, 2, updated.Priority)
}

func TestTagsUniquePerFamily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tags.Create(ctx, f.family.ID, models.CreateTagInput{Name: "fragile", Color: "#ff0000"})
	require.NoError(t, err)
	_, err = f.tags.Create(ctx, f.family.ID, models.CreateTagInput{Name: "fragile"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserProfileAndRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.invite(t, "AAAA-BBBB-CCCC", time.Now().AddDate(0, 0, 1))
	f.invite(t, "DDDD-EEEE-FFFF", time.Now().AddDate(0, 0, 1))
	_, _, err := f.invites.RedeemInvitation(ctx, "AAAA-BBBB-CCCC", models.Identity{Subject: "u1"}, time.Now())
	require.NoError(t, err)
	_, _, err = f.invites.RedeemInvitation(ctx, "DDDD-EEEE-FFFF", models.Identity{Subject: "u2"}, time.Now())
	require.NoError(t, err)

	user, err := f.users.UpdateProfile(ctx, "u1", models.UpdateProfileInput{DiscordID: models.Some("1234")})
	require.NoError(t, err)
	assert.Equal(t, "1234", *user.DiscordID)

	byDiscord, err := f.users.GetUserByDiscordID(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, "u1", byDiscord.ID)

	_, err = f.users.UpdateProfile(ctx, "u2", models.UpdateProfileInput{DiscordID: models.Some("1234")})
	assert.ErrorIs(t, err, ErrDuplicate)

	admins, err := f.users.CountAdmins(ctx, f.family.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, admins)

	promoted, err := f.users.UpdateRole(ctx, f.family.ID, "u2", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, promoted.Role)

	members, err := f.users.ListFamilyUsers(ctx, f.family.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestRepositoryWrapsDriverErrors(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := &database.DB{DB: mockDB, Dialect: database.NewSQLiteDialect()}
	boom := errors.New("connection reset")

	mock.ExpectQuery("SELECT (.+) FROM items WHERE family_id = \\?").WithArgs("fam").WillReturnError(boom)
	_, err = NewItemRepository(db).List(context.Background(), "fam", models.ItemFilter{})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to list items")

	mock.ExpectExec("INSERT INTO families").WillReturnError(boom)
	_, err = NewFamilyRepository(db).CreateFamily(context.Background(), "x", "y")
	assert.ErrorIs(t, err, boom)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1 FROM boxes").WithArgs("b1", "fam").WillReturnError(boom)
	mock.ExpectRollback()
	_, err = NewBoxRepository(db).Delete(context.Background(), "fam", "b1")
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedeemLocksFamilyBeforeCountingMembers(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := &database.DB{DB: mockDB, Dialect: database.NewPostgresDialect()}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id = \\$1").WithArgs("sub-2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT (.+) FROM invite_codes WHERE code = \\$1").WithArgs("ABCD2345").
		WillReturnRows(sqlmock.NewRows([]string{"code", "family_id", "status", "expires_at", "created_by", "created_at", "used_by", "used_at", "revoked_at"}).
			AddRow("ABCD2345", "fam", string(models.InviteActive), now.Add(time.Hour), "sub-1", now.Add(-time.Hour), nil, nil, nil))
	mock.ExpectExec("UPDATE invite_codes SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id FROM families WHERE id = \\$1 FOR UPDATE").WithArgs("fam").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("fam"))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users WHERE family_id = \\$1").WithArgs("fam").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user, result, err := NewInvitationRepository(db).RedeemInvitation(context.Background(), "ABCD2345",
		models.Identity{Subject: "sub-2", Email: "b@example.com", Name: "Bea"}, now)
	require.NoError(t, err)
	assert.Equal(t, Redeemed, result)
	assert.Equal(t, models.RoleMember, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}
