package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/thejerf/suture/v4"

	"homestock/internal/logging"
)

// NewSupervisor builds the root supervisor for the bot process. Supervisor events
// (service failures, backoff) are logged through zerolog.
func NewSupervisor(shutdownTimeout time.Duration) *suture.Supervisor {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	log := logging.WithComponent("supervisor")
	return suture.New("homestock-bot", suture.Spec{
		EventHook: func(e suture.Event) {
			log.Warn().Fields(e.Map()).Int("event_type", int(e.Type())).Msg(e.String())
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          shutdownTimeout,
	})
}

// HTTPService runs an http.Server under a supervisor
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

func NewHTTPService(server *http.Server, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

func (h *HTTPService) String() string { return "http-server" }

// Serve implements suture.Service
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", h.server.Addr).Msg("Bot HTTP server listening")
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return ctx.Err()
	}
}

// GarbageCollector is anything with periodic cleanup, such as the memory store
type GarbageCollector interface {
	RunGC() error
}

// CronService runs scheduled jobs under a supervisor
type CronService struct {
	cron *cron.Cron
}

// NewGCService schedules gc.RunGC on the cron spec
func NewGCService(spec string, gc GarbageCollector) (*CronService, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		start := time.Now()
		if err := gc.RunGC(); err != nil {
			logging.Error().Err(err).Msg("Memory store GC failed")
			return
		}
		logging.Debug().Dur("took", time.Since(start)).Msg("Memory store GC finished")
	})
	if err != nil {
		return nil, fmt.Errorf("invalid gc schedule %q: %w", spec, err)
	}
	return &CronService{cron: c}, nil
}

func (c *CronService) String() string { return "memory-gc" }

// Serve implements suture.Service
func (c *CronService) Serve(ctx context.Context) error {
	c.cron.Start()
	<-ctx.Done()
	<-c.cron.Stop().Done()
	return ctx.Err()
}
