// Package apiclient calls the Homestock REST API on behalf of the web UI and the bot.
// Every call runs through a circuit breaker so a down API fails fast instead of piling up
// slow requests.
package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"homestock/internal/logging"
	"homestock/internal/metrics"
)

// ErrUnavailable is returned while the circuit is open
var ErrUnavailable = errors.New("api temporarily unavailable")

// Error is a failure envelope returned by the API
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether err is an API error with the given code
func IsCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Message returns text suitable for showing to a user
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, ErrUnavailable) {
		return "The service is temporarily unavailable."
	}
	return "Something went wrong."
}

// Caller says whose behalf a request is made on
type Caller struct {
	token     string
	discordID string
}

// Bearer acts as the holder of an identity token
func Bearer(token string) Caller {
	return Caller{token: token}
}

// Discord acts as the member linked to a Discord account, authenticated by the bot key
func Discord(discordID string) Caller {
	return Caller{discordID: discordID}
}

// Config holds client settings
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	BotAPIKey string
}

// Client is safe for concurrent use
type Client struct {
	baseURL string
	botKey  string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		botKey:  cfg.BotAPIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
	metrics.CircuitBreakerState.Set(0)
	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "homestock-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Envelope errors below 500 mean the API is healthy
		IsSuccessful: func(err error) bool {
			var apiErr *Error
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("API circuit breaker state change")
			metrics.CircuitBreakerState.Set(float64(to))
		},
	})
	return c
}

// do sends a request and decodes the envelope's data into out, if out is non-nil
func (c *Client) do(ctx context.Context, caller Caller, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	data, err := c.cb.Execute(func() ([]byte, error) {
		return c.send(ctx, caller, method, path, query, payload)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.APIClientRequests.WithLabelValues("circuit_open").Inc()
		return ErrUnavailable
	case err != nil:
		var apiErr *Error
		if errors.As(err, &apiErr) {
			metrics.APIClientRequests.WithLabelValues("api_error").Inc()
		} else {
			metrics.APIClientRequests.WithLabelValues("transport_error").Inc()
		}
		return err
	}

	metrics.APIClientRequests.WithLabelValues("ok").Inc()
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, caller Caller, method, path string, query url.Values, payload []byte) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logging.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}
	switch {
	case caller.token != "":
		req.Header.Set("Authorization", "Bearer "+caller.token)
	case caller.discordID != "":
		req.Header.Set("X-Bot-Api-Key", c.botKey)
		req.Header.Set("X-Discord-Id", caller.discordID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s response: %w", method, path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &Error{Status: resp.StatusCode, Code: "BAD_RESPONSE", Message: fmt.Sprintf("unexpected response (HTTP %d)", resp.StatusCode)}
	}
	if !env.Success || env.Data == nil {
		apiErr := &Error{Status: resp.StatusCode, Code: "UNKNOWN_ERROR", Message: "The request failed."}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return nil, apiErr
	}
	return env.Data, nil
}
