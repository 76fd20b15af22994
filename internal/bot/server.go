package bot

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"homestock/internal/logging"
	"homestock/internal/metrics"
)

const (
	signatureHeader = "X-Signature-Ed25519"
	timestampHeader = "X-Signature-Timestamp"
)

// Handler serves the interactions endpoint
type Handler struct {
	bot      *Bot
	verifier *Verifier
}

func NewHandler(bot *Bot, verifier *Verifier) *Handler {
	return &Handler{bot: bot, verifier: verifier}
}

// NewRouter mounts the interactions endpoint alongside health and metrics
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "timestamp": time.Now().UTC()})
	})
	r.Handle("/metrics", metrics.Handler())
	r.Post("/interactions", h.Interactions)
	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to encode bot response")
	}
}

// Interactions verifies and answers a Discord interaction
func (h *Handler) Interactions(w http.ResponseWriter, r *http.Request) {
	ctx := logging.ContextWithRequestID(r.Context(), chimiddleware.GetReqID(r.Context()))

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := h.verifier.Verify(r.Header.Get(signatureHeader), r.Header.Get(timestampHeader), body); err != nil {
		logging.Ctx(ctx).Warn().Msg("Rejected interaction with invalid signature")
		http.Error(w, "invalid request signature", http.StatusUnauthorized)
		return
	}

	var in Interaction
	if err := json.Unmarshal(body, &in); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	switch in.Type {
	case InteractionPing:
		writeJSON(w, http.StatusOK, InteractionResponse{Type: ResponsePong})
	case InteractionApplicationCommand:
		content := h.bot.Dispatch(ctx, in)
		writeJSON(w, http.StatusOK, InteractionResponse{
			Type: ResponseChannelMessage,
			Data: &MessageData{Content: truncate(content), Flags: flagEphemeral},
		})
	default:
		http.Error(w, "unsupported interaction type", http.StatusBadRequest)
	}
}
