// Package metrics holds the Prometheus collectors shared by the API server and the bot.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "homestock_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "homestock_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// Invites
	InviteJoins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homestock_invite_joins_total",
			Help: "Join attempts by result",
		},
		[]string{"result"}, // "created", "existing", "rejected"
	)

	InvitesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "homestock_invites_created_total",
			Help: "Total number of invite codes issued",
		},
	)

	InvitesPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "homestock_invites_purged_total",
			Help: "Invite codes removed by the scheduled purge",
		},
	)

	// Bot
	BotCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homestock_bot_commands_total",
			Help: "Bot commands handled, by command and outcome",
		},
		[]string{"command", "outcome"},
	)

	BotGatewayEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homestock_bot_gateway_events_total",
			Help: "Gateway dispatch events received, by type",
		},
		[]string{"type"},
	)

	MemoryFactsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homestock_memory_facts_stored_total",
			Help: "Facts extracted from chat and written to the memory store",
		},
		[]string{"category"},
	)

	// API client
	APIClientRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homestock_apiclient_requests_total",
			Help: "Outbound API calls by outcome",
		},
		[]string{"outcome"}, // "ok", "api_error", "transport_error", "circuit_open"
	)

	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "homestock_apiclient_circuit_state",
			Help: "API client circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request duration labelled by the matched chi route pattern,
// so ids in paths do not blow up label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
	})
}
