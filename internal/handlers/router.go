package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"homestock/internal/metrics"
)

// RouterConfig holds the HTTP-level settings of the API
type RouterConfig struct {
	CORSOrigins        []string
	RateLimitPerMinute int
}

// Handlers groups every API handler the router mounts
type Handlers struct {
	Health    *HealthHandler
	Auth      *AuthHandler
	Family    *FamilyHandler
	ItemTypes *ItemTypeHandler
	Locations *LocationHandler
	Boxes     *BoxHandler
	Tags      *TagHandler
	Items     *ItemHandler
	Wishlist  *WishlistHandler
}

// NewRouter builds the API. Domain routes are mounted twice: once behind bearer tokens
// and once under /bot behind the bot key.
func NewRouter(cfg RouterConfig, m *Middleware, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logging)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", HeaderBotAPIKey, HeaderDiscordID, HeaderRequestID},
		ExposedHeaders:   []string{HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.RateLimitPerMinute > 0 {
		r.Use(httprate.Limit(
			cfg.RateLimitPerMinute,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				respondError(w, http.StatusTooManyRequests, CodeRateLimitExceeded, "Too many requests. Slow down and try again shortly.", nil)
			}),
		))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, CodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed", nil)
	})

	r.Get("/health", h.Health.Health)
	r.Handle("/metrics", metrics.Handler())

	// Bearer surface
	r.Group(func(r chi.Router) {
		r.Use(m.Authenticate)
		r.Post("/auth/join", h.Auth.Join)

		r.Group(func(r chi.Router) {
			r.Use(m.RequireUser)
			mountAccount(r, m, h)
			mountInvites(r, m, h)
			mountDomain(r, m, h)
		})
	})

	// Bot surface
	r.Route("/bot", func(r chi.Router) {
		r.Use(m.BotAuth)
		mountAccount(r, m, h)
		mountDomain(r, m, h)
	})

	return r
}

func mountAccount(r chi.Router, m *Middleware, h Handlers) {
	r.With(m.Allow("profile")).Get("/auth/me", h.Auth.Me)
	r.With(m.Allow("profile")).Patch("/auth/me", h.Auth.UpdateMe)

	r.With(m.Allow("family")).Get("/family", h.Family.Get)
	r.With(m.Allow("family")).Get("/family/members", h.Family.Members)
	r.With(m.Allow("members")).Patch("/family/members/{id}", h.Family.UpdateMember)
}

func mountInvites(r chi.Router, m *Middleware, h Handlers) {
	r.Group(func(r chi.Router) {
		r.Use(m.Allow("invites"))
		r.Post("/auth/invite", h.Auth.CreateInvite)
		r.Get("/auth/invites", h.Auth.ListInvites)
		r.Delete("/auth/invite/{code}", h.Auth.RevokeInvite)
	})
}

func mountDomain(r chi.Router, m *Middleware, h Handlers) {
	r.Route("/item-types", func(r chi.Router) {
		r.Use(m.Allow("item-types"))
		r.Get("/", h.ItemTypes.List)
		r.Post("/", h.ItemTypes.Create)
		r.Get("/{id}", h.ItemTypes.Get)
		r.Patch("/{id}", h.ItemTypes.Update)
		r.Delete("/{id}", h.ItemTypes.Delete)
	})

	r.Route("/locations", func(r chi.Router) {
		r.Use(m.Allow("locations"))
		r.Get("/", h.Locations.List)
		r.Post("/", h.Locations.Create)
		r.Get("/{id}", h.Locations.Get)
		r.Patch("/{id}", h.Locations.Update)
		r.Delete("/{id}", h.Locations.Delete)
	})

	r.Route("/boxes", func(r chi.Router) {
		r.Use(m.Allow("boxes"))
		r.Get("/", h.Boxes.List)
		r.Post("/", h.Boxes.Create)
		r.Get("/{id}", h.Boxes.Get)
		r.Patch("/{id}", h.Boxes.Update)
		r.Delete("/{id}", h.Boxes.Delete)
	})

	r.Route("/tags", func(r chi.Router) {
		r.Use(m.Allow("tags"))
		r.Get("/", h.Tags.List)
		r.Post("/", h.Tags.Create)
		r.Get("/{id}", h.Tags.Get)
		r.Patch("/{id}", h.Tags.Update)
		r.Delete("/{id}", h.Tags.Delete)
	})

	r.Route("/items", func(r chi.Router) {
		r.Use(m.Allow("items"))
		r.Get("/", h.Items.List)
		r.Post("/", h.Items.Create)
		r.Get("/{id}", h.Items.Get)
		r.Patch("/{id}", h.Items.Update)
		r.Delete("/{id}", h.Items.Delete)
		r.Post("/{id}/consume", h.Items.Consume)
		r.Post("/{id}/give", h.Items.Give)
		r.Post("/{id}/sell", h.Items.Sell)
	})

	r.Route("/wishlist", func(r chi.Router) {
		r.Use(m.Allow("wishlist"))
		r.Get("/", h.Wishlist.List)
		r.Post("/", h.Wishlist.Create)
		r.Get("/{id}", h.Wishlist.Get)
		r.Patch("/{id}", h.Wishlist.Update)
		r.Delete("/{id}", h.Wishlist.Delete)
		r.Post("/{id}/purchase", h.Wishlist.Purchase)
		r.Post("/{id}/cancel", h.Wishlist.Cancel)
	})
}
