// Package web is the server-rendered UI. It signs users in with Google, keeps their ID
// token in a server-side session and calls the REST API on their behalf.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"homestock/internal/apiclient"
	"homestock/internal/logging"
	"homestock/internal/metrics"
	"homestock/internal/models"
	"homestock/internal/security"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	sessionCookieName = "homestock_session"
	stateCookieName   = "homestock_oauth_state"
	maxSessionAge     = 12 * time.Hour
)

// API is the part of the REST API the UI calls
type API interface {
	Me(ctx context.Context, caller apiclient.Caller) (*models.User, error)
	Join(ctx context.Context, caller apiclient.Caller, code string) (*models.User, error)
	LinkDiscord(ctx context.Context, caller apiclient.Caller, discordID string) (*models.User, error)
	Family(ctx context.Context, caller apiclient.Caller) (*models.Family, error)
	ListItems(ctx context.Context, caller apiclient.Caller, filter models.ItemFilter) ([]models.Item, error)
	CreateItem(ctx context.Context, caller apiclient.Caller, input models.CreateItemInput) (*models.Item, error)
	TransitionItem(ctx context.Context, caller apiclient.Caller, id, action, note string) (*models.Item, error)
	ListWishlist(ctx context.Context, caller apiclient.Caller, status models.WishlistStatus) ([]models.WishlistItem, error)
	CreateWish(ctx context.Context, caller apiclient.Caller, input models.CreateWishlistInput) (*models.WishlistItem, error)
	PurchaseWish(ctx context.Context, caller apiclient.Caller, id string, input models.PurchaseInput) (*apiclient.PurchaseResult, error)
	CancelWish(ctx context.Context, caller apiclient.Caller, id string) (*models.WishlistItem, error)
	ListBoxes(ctx context.Context, caller apiclient.Caller) ([]models.Box, error)
	CreateBox(ctx context.Context, caller apiclient.Caller, input models.CreateBoxInput) (*models.Box, error)
	ListLocations(ctx context.Context, caller apiclient.Caller) ([]models.Location, error)
	CreateLocation(ctx context.Context, caller apiclient.Caller, input models.NamedInput) (*models.Location, error)
	CreateInvite(ctx context.Context, caller apiclient.Caller, input models.CreateInviteInput) (*models.InviteCode, error)
	ListInvites(ctx context.Context, caller apiclient.Caller) ([]models.InviteCode, error)
	RevokeInvite(ctx context.Context, caller apiclient.Caller, code string) error
}

// Config configures the UI server
type Config struct {
	BaseURL            string
	GoogleClientID     string
	GoogleClientSecret string
	// RedirectURL defaults to BaseURL + /auth/callback
	RedirectURL   string
	SessionSecret string
	// DevJWTSecret enables a password-less sign-in form that mints HS256 tokens the
	// API accepts in development
	DevJWTSecret string
	// Endpoint overrides Google's OAuth endpoint
	Endpoint *oauth2.Endpoint
}

// Server holds the UI handlers
type Server struct {
	api       API
	sessions  SessionStore
	oauth     *oauth2.Config
	csrf      *security.CSRFGenerator
	templates *template.Template
	devSecret string
	now       func() time.Time
}

func New(cfg Config, api API, sessions SessionStore) (*Server, error) {
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret is required")
	}
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		api:       api,
		sessions:  sessions,
		csrf:      security.NewCSRFGenerator(cfg.SessionSecret),
		templates: tmpl,
		devSecret: cfg.DevJWTSecret,
		now:       time.Now,
	}

	if cfg.GoogleClientID != "" {
		redirect := cfg.RedirectURL
		if redirect == "" {
			redirect = strings.TrimRight(cfg.BaseURL, "/") + "/auth/callback"
		}
		endpoint := google.Endpoint
		if cfg.Endpoint != nil {
			endpoint = *cfg.Endpoint
		}
		s.oauth = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  redirect,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		}
	}
	return s, nil
}

func loadTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.Format("Jan 2, 2006")
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"derefTime": func(t *time.Time) time.Time {
			if t == nil {
				return time.Time{}
			}
			return *t
		},
		"list": func(items ...string) []string {
			return items
		},
		"lookup": func(names map[string]string, id *string) string {
			if id == nil {
				return ""
			}
			return names[*id]
		},
	}
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return tmpl, nil
}

// Router builds the UI routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/login", s.ShowLogin)
	r.Get("/auth/google", s.StartOAuth)
	r.Get("/auth/callback", s.OAuthCallback)
	r.Post("/auth/dev", s.DevLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Use(s.verifyCSRF)

		r.Post("/logout", s.Logout)
		r.Get("/join", s.ShowJoin)
		r.Post("/join", s.Join)

		r.Group(func(r chi.Router) {
			r.Use(s.requireMember)

			r.Get("/", s.Dashboard)
			r.Post("/items", s.CreateItem)
			r.Post("/items/{id}/{action}", s.TransitionItem)

			r.Get("/wishlist", s.Wishlist)
			r.Post("/wishlist", s.CreateWish)
			r.Post("/wishlist/{id}/purchase", s.PurchaseWish)
			r.Post("/wishlist/{id}/cancel", s.CancelWish)

			r.Get("/boxes", s.Boxes)
			r.Post("/boxes", s.CreateBox)
			r.Get("/locations", s.Locations)
			r.Post("/locations", s.CreateLocation)

			r.Get("/invites", s.Invites)
			r.Post("/invites", s.CreateInvite)
			r.Post("/invites/{code}/revoke", s.RevokeInvite)

			r.Get("/profile", s.Profile)
			r.Post("/profile/discord", s.LinkDiscord)
		})
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.ContextWithRequestID(r.Context(), chimiddleware.GetReqID(r.Context()))
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.Ctx(ctx).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

type contextKey string

const (
	sessionContextKey contextKey = "session"
	userContextKey    contextKey = "user"
)

func sessionFrom(r *http.Request) *Session {
	s, _ := r.Context().Value(sessionContextKey).(*Session)
	return s
}

func userFrom(r *http.Request) *models.User {
	u, _ := r.Context().Value(userContextKey).(*models.User)
	return u
}

func callerFor(r *http.Request) apiclient.Caller {
	return apiclient.Bearer(sessionFrom(r).IDToken)
}

// requireSession loads the session cookie and sends anonymous visitors to /login
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		sess, err := s.sessions.Get(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, ErrSessionNotFound) {
				logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to load session")
			}
			http.SetCookie(w, security.ExpiredCookie(r, sessionCookieName))
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// verifyCSRF rejects state-changing requests without a token bound to the session
func (s *Server) verifyCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if !s.csrf.Valid(sessionFrom(r).ID, r.PostFormValue(security.CSRFFieldName)) {
				http.Error(w, "Invalid CSRF token", http.StatusForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireMember resolves the family member behind the session. Signed-in users who
// have not joined a family yet are sent to /join.
func (s *Server) requireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.api.Me(r.Context(), callerFor(r))
		switch {
		case err == nil:
		case apiclient.IsCode(err, "USER_NOT_FOUND"):
			http.Redirect(w, r, "/join", http.StatusSeeOther)
			return
		case apiclient.IsCode(err, "INVALID_TOKEN"), apiclient.IsCode(err, "UNAUTHORIZED"):
			// Expired ID token: start over
			_ = s.sessions.Delete(r.Context(), sessionFrom(r).ID)
			http.SetCookie(w, security.ExpiredCookie(r, sessionCookieName))
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		default:
			logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to load current user")
			s.renderStatus(w, r, http.StatusBadGateway, "error.tmpl", map[string]any{
				"Title":   "Unavailable",
				"Message": apiclient.Message(err),
			})
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	s.renderStatus(w, r, http.StatusOK, name, data)
}

// renderStatus executes a page template. Common fields (user, CSRF token, pending
// flash) are filled in here; the flash is cleared once shown.
func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["User"] = userFrom(r)
	data["CSRFField"] = security.CSRFFieldName

	if sess := sessionFrom(r); sess != nil {
		if token, err := s.csrf.Token(sess.ID); err == nil {
			data["CSRFToken"] = token
		}
		if sess.Flash != "" {
			data["Flash"] = sess.Flash
			data["FlashKind"] = sess.FlashKind
			sess.Flash, sess.FlashKind = "", ""
			if err := s.sessions.Save(r.Context(), sess); err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to clear flash")
			}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("Error rendering template")
	}
}

// redirectWithFlash stores a one-shot message and redirects with 303
func (s *Server) redirectWithFlash(w http.ResponseWriter, r *http.Request, to, kind, message string) {
	if sess := sessionFrom(r); sess != nil {
		sess.Flash, sess.FlashKind = message, kind
		if err := s.sessions.Save(r.Context(), sess); err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to store flash")
		}
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// fail reports an API error as a flash on the page the user came from
func (s *Server) fail(w http.ResponseWriter, r *http.Request, to string, err error) {
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) || apiErr.Status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("API call failed")
	}
	s.redirectWithFlash(w, r, to, FlashError, apiclient.Message(err))
}
