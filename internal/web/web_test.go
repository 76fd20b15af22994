package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"homestock/internal/apiclient"
	"homestock/internal/models"
	"homestock/internal/security"
)

const testSecret = "test-session-secret"

type fakeAPI struct {
	mu      sync.Mutex
	user    *models.User
	meErr   error
	items   []models.Item
	boxes   []models.Box
	created []models.CreateItemInput
	joined  []string
	linked  []string
	failing error
}

func newFakeAPI() *fakeAPI {
	box := "box-1"
	return &fakeAPI{
		user: &models.User{ID: "u1", FamilyID: "f1", Email: "alex@example.com", DisplayName: "Alex", Role: models.RoleAdmin},
		items: []models.Item{
			{ID: "i1", Name: "Cordless drill", Quantity: 1, BoxID: &box, Status: models.ItemOwned, Tags: []string{"tools"}},
		},
		boxes: []models.Box{{ID: box, Name: "Garage shelf"}},
	}
}

func (f *fakeAPI) Me(ctx context.Context, caller apiclient.Caller) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meErr != nil {
		return nil, f.meErr
	}
	return f.user, nil
}

func (f *fakeAPI) Join(ctx context.Context, caller apiclient.Caller, code string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, code)
	f.meErr = nil
	return f.user, nil
}

func (f *fakeAPI) LinkDiscord(ctx context.Context, caller apiclient.Caller, discordID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linked = append(f.linked, discordID)
	f.user.DiscordID = &discordID
	return f.user, nil
}

func (f *fakeAPI) Family(ctx context.Context, caller apiclient.Caller) (*models.Family, error) {
	return &models.Family{ID: "f1", Name: "Rivera"}, nil
}

func (f *fakeAPI) ListItems(ctx context.Context, caller apiclient.Caller, filter models.ItemFilter) ([]models.Item, error) {
	return f.items, nil
}

func (f *fakeAPI) CreateItem(ctx context.Context, caller apiclient.Caller, input models.CreateItemInput) (*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing != nil {
		return nil, f.failing
	}
	f.created = append(f.created, input)
	return &models.Item{ID: "i2", Name: input.Name, Quantity: input.Quantity, BoxID: input.BoxID}, nil
}

func (f *fakeAPI) TransitionItem(ctx context.Context, caller apiclient.Caller, id, action, note string) (*models.Item, error) {
	return &models.Item{ID: id, Name: "Cordless drill", Status: models.ItemSold}, nil
}

func (f *fakeAPI) ListWishlist(ctx context.Context, caller apiclient.Caller, status models.WishlistStatus) ([]models.WishlistItem, error) {
	return []models.WishlistItem{{ID: "w1", Name: "Ladder", Quantity: 1, Priority: 3, Status: models.WishlistPending}}, nil
}

func (f *fakeAPI) CreateWish(ctx context.Context, caller apiclient.Caller, input models.CreateWishlistInput) (*models.WishlistItem, error) {
	return &models.WishlistItem{ID: "w2", Name: input.Name}, nil
}

func (f *fakeAPI) PurchaseWish(ctx context.Context, caller apiclient.Caller, id string, input models.PurchaseInput) (*apiclient.PurchaseResult, error) {
	res := &apiclient.PurchaseResult{Wishlist: &models.WishlistItem{ID: id, Name: "Ladder", Status: models.WishlistPurchased}}
	if input.CreateItem {
		res.Item = &models.Item{ID: "i9", Name: "Ladder"}
	}
	return res, nil
}

func (f *fakeAPI) CancelWish(ctx context.Context, caller apiclient.Caller, id string) (*models.WishlistItem, error) {
	return &models.WishlistItem{ID: id, Name: "Ladder", Status: models.WishlistCancelled}, nil
}

func (f *fakeAPI) ListBoxes(ctx context.Context, caller apiclient.Caller) ([]models.Box, error) {
	return f.boxes, nil
}

func (f *fakeAPI) CreateBox(ctx context.Context, caller apiclient.Caller, input models.CreateBoxInput) (*models.Box, error) {
	return &models.Box{ID: "box-2", Name: input.Name, LocationID: input.LocationID}, nil
}

func (f *fakeAPI) ListLocations(ctx context.Context, caller apiclient.Caller) ([]models.Location, error) {
	return []models.Location{{ID: "loc-1", Name: "Garage"}}, nil
}

func (f *fakeAPI) CreateLocation(ctx context.Context, caller apiclient.Caller, input models.NamedInput) (*models.Location, error) {
	return &models.Location{ID: "loc-2", Name: input.Name}, nil
}

func (f *fakeAPI) CreateInvite(ctx context.Context, caller apiclient.Caller, input models.CreateInviteInput) (*models.InviteCode, error) {
	return &models.InviteCode{Code: "ABCD2345", Status: models.InviteActive, ExpiresAt: time.Now().Add(7 * 24 * time.Hour)}, nil
}

func (f *fakeAPI) ListInvites(ctx context.Context, caller apiclient.Caller) ([]models.InviteCode, error) {
	return []models.InviteCode{{Code: "ABCD2345", Status: models.InviteActive, ExpiresAt: time.Now().Add(time.Hour)}}, nil
}

func (f *fakeAPI) RevokeInvite(ctx context.Context, caller apiclient.Caller, code string) error {
	return nil
}

func newTestServer(t *testing.T, api API, cfg Config) (*Server, http.Handler, *MemorySessionStore) {
	t.Helper()
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = testSecret
	}
	store := NewMemorySessionStore()
	srv, err := New(cfg, api, store)
	require.NoError(t, err)
	return srv, srv.Router(), store
}

func postForm(target string, form url.Values, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func get(target string, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

// devLogin signs in through the development form and returns the session cookie
func devLogin(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postForm("/auth/dev", url.Values{"email": {"alex@example.com"}}))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
	return sessionCookie(t, rec)
}

func csrfFor(t *testing.T, srv *Server, cookie *http.Cookie) string {
	t.Helper()
	token, err := srv.csrf.Token(cookie.Value)
	require.NoError(t, err)
	return token
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(Config{}, newFakeAPI(), NewMemorySessionStore())
	assert.Error(t, err)
}

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, &Session{ID: "a", Email: "a@example.com", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.Save(ctx, &Session{ID: "b", ExpiresAt: now.Add(time.Minute)}))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Email)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	now = now.Add(30 * time.Minute)
	assert.Equal(t, 1, store.Cleanup())
	_, err = store.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	now = now.Add(time.Hour)
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrSessionNotFound, "expired sessions are not returned")

	require.NoError(t, store.Save(ctx, &Session{ID: "c", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.Delete(ctx, "c"))
	_, err = store.Get(ctx, "c")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionStoreRejectsBadURL(t *testing.T) {
	_, err := NewRedisSessionStore(context.Background(), "not a redis url")
	assert.Error(t, err)
}

func TestAnonymousRedirectsToLogin(t *testing.T) {
	_, h, _ := newTestServer(t, newFakeAPI(), Config{DevJWTSecret: "dev"})

	for _, path := range []string{"/", "/wishlist", "/join"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, get(path))
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, "/login", rec.Header().Get("Location"), path)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, get("/", &http.Cookie{Name: sessionCookieName, Value: "stale"}))
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, get("/login"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Development sign-in")
	assert.NotContains(t, rec.Body.String(), "Sign in with Google")
}

func TestDevLoginDisabled(t *testing.T) {
	_, h, _ := newTestServer(t, newFakeAPI(), Config{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postForm("/auth/dev", url.Values{"email": {"alex@example.com"}}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboard(t *testing.T) {
	_, h, store := newTestServer(t, newFakeAPI(), Config{DevJWTSecret: "dev"})
	cookie := devLogin(t, h)

	sess, err := store.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "alex@example.com", sess.Email)
	assert.Equal(t, "alex", sess.Name)
	assert.NotEmpty(t, sess.IDToken)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, get("/", cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Cordless drill")
	assert.Contains(t, body, "Garage shelf")
	assert.Contains(t, body, `href="/invites"`, "admins see the invites link")
}

func TestFormsRequireCSRFToken(t *testing.T) {
	api := newFakeAPI()
	srv, h, _ := newTestServer(t, api, Config{DevJWTSecret: "dev"})
	cookie := devLogin(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postForm("/items", url.Values{"name": {"Hammer"}}, cookie))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, postForm("/items", url.Values{"name": {"Hammer"}, security.CSRFFieldName: {"forged"}}, cookie))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, api.created)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, postForm("/items", url.Values{
		"name":                 {" Hammer "},
		"quantity":             {"2"},
		"box_id":               {"box-1"},
		"tags":                 {"tools, , garage"},
		security.CSRFFieldName: {csrfFor(t, srv, cookie)},
	}, cookie))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, api.created, 1)
	assert.Equal(t, "Hammer", api.created[0].Name)
	assert.Equal(t, 2, api.created[0].Quantity)
	require.NotNil(t, api.created[0].BoxID)
	assert.Equal(t, "box-1", *api.created[0].BoxID)
	assert.Equal(t, []string{"tools", "garage"}, api.created[0].Tags)
}

func TestFlashShownOnce(t *testing.T) {
	api := newFakeAPI()
	api.failing = &apiclient.Error{Status: http.StatusBadRequest, Code: "VALIDATION_ERROR", Message: "name is required"}
	srv, h, _ := newTestServer(t, api, Config{DevJWTSecret: "dev"})
	cookie := devLogin(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postForm("/items", url.Values{security.CSRFFieldName: {csrfFor(t, srv, cookie)}}, cookie))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, get("/", cookie))
	assert.Contains(t, rec.Body.String(), "name is required")
	assert.Contains(t, rec.Body.String(), "flash-error")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, get("/", cookie))
	assert.NotContains(t, rec.Body.String(), "name is required")
}

func TestUnaffiliatedUserJoins(t *testing.T) {
	api := newFakeAPI()
	api.meErr = &apiclient.Error{Status: http.StatusNotFound, Code: "USER_NOT_FOUND", Message: "User not found"}
	srv, h, _ := newTestServer(t, api, Config{DevJWTSecret: "dev"})
	cookie := devLogin(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, get("/", cookie))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/join", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, get("/join?code=abcd2345", cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alex@example.com")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, postForm("/join", url.Values{"code": {" abcd2345 "}, security.CSRFFieldName: {csrfFor(t, srv, cookie)}}, cookie))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, []string{"ABCD2345"}, api.joined)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, get("/", cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome to the Rivera family!")
}

func TestExpiredTokenEndsSession(t *testing.T) {
	api := newFakeAPI()
	api.meErr = &apiclient.Error{Status: http.StatusUnauthorized, Code: "INVALID_TOKEN", Message: "token expired"}
	_, h, store := newTestServer(t, api, Config{DevJWTSecret: "dev"})
	cookie := devLogin(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, get("/", cookie))
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	_, err := store.Get(context.Background(), cookie.Value)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemberPages(t *testing.T) {
	api := newFakeAPI()
	srv, h, _ := newTestServer(t, api, Config{DevJWTSecret: "dev"})
	cookie := devLogin(t, h)
	token := csrfFor(t, srv, cookie)

	pages := map[string]string{
		"/wishlist":  "Ladder",
		"/boxes":     "Garage shelf",
		"/locations": "Garage",
		"/invites":   "ABCD2345",
		"/profile":   "Rivera",
	}
	for path, want := range pages {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, get(path, cookie))
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), want, path)
	}

	posts := []struct {
		path     string
		form     url.Values
		location string
	}{
		{"/items/i1/sell", url.Values{"note": {"garage sale"}}, "/"},
		{"/wishlist", url.Values{"name": {"Ladder"}, "priority": {"3"}}, "/wishlist"},
		{"/wishlist/w1/purchase", url.Values{"add_to_inventory": {"on"}}, "/wishlist"},
		{"/wishlist/w1/cancel", url.Values{}, "/wishlist"},
		{"/boxes", url.Values{"name": {"Attic 2"}, "location_id": {"loc-1"}}, "/boxes"},
		{"/locations", url.Values{"name": {"Loft"}}, "/locations"},
		{"/invites", url.Values{"expires_in_days": {"3"}}, "/invites"},
		{"/invites/ABCD2345/revoke", url.Values{}, "/invites"},
		{"/profile/discord", url.Values{"discord_id": {"123456789012345678"}}, "/profile"},
	}
	for _, p := range posts {
		p.form.Set(security.CSRFFieldName, token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, postForm(p.path, p.form, cookie))
		assert.Equal(t, http.StatusSeeOther, rec.Code, p.path)
		assert.Equal(t, p.location, rec.Header().Get("Location"), p.path)
	}
	assert.Equal(t, []string{"123456789012345678"}, api.linked)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postForm("/items/i1/burn", url.Values{security.CSRFFieldName: {token}}, cookie))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLinkDiscordRejectsNonNumericIDs(t *testing.T) {
	api := newFakeAPI()
	srv, h, _ := newTestServer(t, api, Config{DevJWTSecret: "dev"})
	cookie := devLogin(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postForm("/profile/discord", url.Values{"discord_id": {"alex#1234"}, security.CSRFFieldName: {csrfFor(t, srv, cookie)}}, cookie))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, api.linked)
}

func TestInvitesAdminOnly(t *testing.T) {
	api := newFakeAPI()
	api.user.Role = models.RoleMember
	_, h, _ := newTestServer(t, api, Config{DevJWTSecret: "dev"})
	cookie := devLogin(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, get("/invites", cookie))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestLogout(t *testing.T) {
	srv, h, store := newTestServer(t, newFakeAPI(), Config{DevJWTSecret: "dev"})
	cookie := devLogin(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postForm("/logout", url.Values{security.CSRFFieldName: {csrfFor(t, srv, cookie)}}, cookie))
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	_, err := store.Get(context.Background(), cookie.Value)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGoogleOAuthFlow(t *testing.T) {
	idToken, err := security.SignDevToken("unused", models.Identity{Subject: "g-1", Email: "sam@example.com", Name: "Sam"}, time.Hour)
	require.NoError(t, err)

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.URL.Path != "/token" || r.PostForm.Get("code") != "auth-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600,"id_token":"` + idToken + `"}`))
	}))
	defer provider.Close()

	_, h, store := newTestServer(t, newFakeAPI(), Config{
		BaseURL:            "http://localhost:3000",
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		Endpoint:           &oauth2.Endpoint{AuthURL: provider.URL + "/auth", TokenURL: provider.URL + "/token"},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, get("/auth/google"))
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, provider.URL+"/auth", loc.Scheme+"://"+loc.Host+loc.Path)
	assert.Equal(t, "http://localhost:3000/auth/callback", loc.Query().Get("redirect_uri"))
	assert.Equal(t, "openid email profile", loc.Query().Get("scope"))

	var state *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookieName {
			state = c
		}
	}
	require.NotNil(t, state)
	assert.Equal(t, state.Value, loc.Query().Get("state"))

	t.Run("state mismatch", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, get("/auth/callback?code=auth-code&state=other", state))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, get("/auth/callback?code=wrong&state="+state.Value, state))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("success", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, get("/auth/callback?code=auth-code&state="+state.Value, state))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))

		sess, err := store.Get(context.Background(), sessionCookie(t, rec).Value)
		require.NoError(t, err)
		assert.Equal(t, "sam@example.com", sess.Email)
		assert.Equal(t, "Sam", sess.Name)
		assert.Equal(t, idToken, sess.IDToken)
		assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, time.Minute)
	})
}
