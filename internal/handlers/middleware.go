package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"homestock/internal/authz"
	"homestock/internal/logging"
	"homestock/internal/models"
	"homestock/internal/security"
	"homestock/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	IdentityContextKey ContextKey = "identity"
	UserContextKey     ContextKey = "user"
)

// Headers used by the bot surface
const (
	HeaderBotAPIKey = "X-Bot-Api-Key"
	HeaderDiscordID = "X-Discord-Id"
	HeaderRequestID = "X-Request-Id"
)

// TokenVerifier turns a bearer token into a verified identity
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (models.Identity, error)
}

// Middleware holds dependencies for middleware functions
type Middleware struct {
	verifier    TokenVerifier
	authService *service.AuthService
	enforcer    *authz.Enforcer
	botKey      *security.APIKeyMatcher
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(verifier TokenVerifier, authService *service.AuthService, enforcer *authz.Enforcer, botKey *security.APIKeyMatcher) *Middleware {
	return &Middleware{
		verifier:    verifier,
		authService: authService,
		enforcer:    enforcer,
		botKey:      botKey,
	}
}

// RequestID attaches a request id to the context and echoes it in the response.
// An incoming X-Request-Id is kept so the web UI and bot can correlate their calls.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := strings.TrimSpace(r.Header.Get(HeaderRequestID)); id != "" && len(id) <= 64 {
			ctx = logging.ContextWithRequestID(ctx, id)
		} else {
			ctx = logging.ContextWithNewRequestID(ctx)
		}
		w.Header().Set(HeaderRequestID, logging.RequestIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging logs every request with its status and duration
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		event := logging.Ctx(r.Context()).Info()
		if status >= http.StatusInternalServerError {
			event = logging.Ctx(r.Context()).Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// Recoverer turns a panic into an INTERNAL_ERROR envelope
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.Ctx(r.Context()).Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("Recovered from panic")
				respondError(w, http.StatusInternalServerError, CodeInternal, "Something went wrong. Please try again.", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Authenticate verifies the bearer token and stores the identity in the context.
// No domain user is required, so /auth/join can run behind it.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := security.BearerToken(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, CodeUnauthorized, "Sign in required", nil)
			return
		}

		identity, err := m.verifier.Verify(r.Context(), raw)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Rejected bearer token")
			respondError(w, http.StatusUnauthorized, CodeInvalidToken, "Your session is invalid or has expired", nil)
			return
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser resolves the domain user for the authenticated identity
func (m *Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := GetIdentityFromContext(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, CodeUnauthorized, "Sign in required", nil)
			return
		}

		user, err := m.authService.Me(r.Context(), identity)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BotAuth authenticates the bot by its shared key and acts as the member linked to the
// Discord id the bot forwards.
func (m *Middleware) BotAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.botKey == nil || !m.botKey.Match(r.Header.Get(HeaderBotAPIKey)) {
			respondError(w, http.StatusUnauthorized, CodeInvalidAPIKey, "Invalid bot API key", nil)
			return
		}

		discordID := strings.TrimSpace(r.Header.Get(HeaderDiscordID))
		if discordID == "" {
			discordID = strings.TrimSpace(r.URL.Query().Get("discordId"))
		}

		user, err := m.authService.UserByDiscordID(r.Context(), discordID)
		if err != nil {
			if errors.Is(err, service.ErrUserNotFound) {
				respondError(w, http.StatusNotFound, CodeUserNotFound, "No member is linked to this Discord account. Link it from your profile first.", nil)
				return
			}
			writeServiceError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, models.Identity{Subject: user.ID, Email: user.Email, Name: user.DisplayName})
		ctx = context.WithValue(ctx, UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Allow checks the user's role against the policy for resource, with the action taken
// from the request method.
func (m *Middleware) Allow(resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUserFromContext(r.Context())
			if !m.enforcer.Allowed(user, resource, authz.ActionForMethod(r.Method)) {
				respondError(w, http.StatusForbidden, CodeNotAdmin, "Only family admins can do that", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetIdentityFromContext retrieves the verified identity from the request context
func GetIdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey).(models.Identity)
	return identity, ok
}
