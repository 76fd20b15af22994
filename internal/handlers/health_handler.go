package handlers

import (
	"context"
	"net/http"
	"time"

	"homestock/internal/logging"
)

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports liveness and database reachability
type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

type healthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Health check database ping failed")
			respondJSON(w, http.StatusServiceUnavailable, healthStatus{Status: "degraded", Timestamp: now})
			return
		}
	}
	respondJSON(w, http.StatusOK, healthStatus{Status: "ok", Timestamp: now})
}
