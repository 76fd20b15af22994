package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"homestock/internal/logging"
)

// DefaultAPIBase is Discord's REST root
const DefaultAPIBase = "https://discord.com/api/v10"

const defaultGatewayURL = "wss://gateway.discord.gg"

// RESTConfig configures the Discord REST client
type RESTConfig struct {
	BaseURL       string
	Token         string
	ApplicationID string
	// RequestsPerSecond caps outbound calls. Discord's global limit is 50/s; channel
	// message limits are much lower, so the default is conservative.
	RequestsPerSecond float64
	Burst             int
}

// RESTClient talks to the Discord HTTP API
type RESTClient struct {
	baseURL string
	token   string
	appID   string
	http    *http.Client
	limiter *rate.Limiter
}

func NewRESTClient(cfg RESTConfig) *RESTClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIBase
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	return &RESTClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		appID:   cfg.ApplicationID,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// SendMessage posts content to a channel, optionally as a reply to a message
func (c *RESTClient) SendMessage(ctx context.Context, channelID, content, replyTo string) error {
	body := map[string]any{
		"content":          truncate(content),
		"allowed_mentions": map[string]any{"parse": []string{}},
	}
	if replyTo != "" {
		body["message_reference"] = map[string]any{"message_id": replyTo, "fail_if_not_exists": false}
	}
	_, err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", body)
	return err
}

// RegisterCommands overwrites the application's global command table and returns how
// many commands Discord now holds
func (c *RESTClient) RegisterCommands(ctx context.Context, commands []ApplicationCommand) (int, error) {
	if c.appID == "" {
		return 0, fmt.Errorf("application id is required to register commands")
	}
	raw, err := c.do(ctx, http.MethodPut, "/applications/"+c.appID+"/commands", commands)
	if err != nil {
		return 0, err
	}
	return int(gjson.GetBytes(raw, "#").Int()), nil
}

// GatewayURL asks Discord which websocket endpoint to connect to
func (c *RESTClient) GatewayURL(ctx context.Context) (string, error) {
	raw, err := c.do(ctx, http.MethodGet, "/gateway/bot", nil)
	if err != nil {
		return "", err
	}
	if u := gjson.GetBytes(raw, "url").String(); u != "" {
		return u, nil
	}
	return defaultGatewayURL, nil
}

// do sends one request, waiting on the limiter first. A 429 is retried once after the
// delay Discord asks for.
func (c *RESTClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		raw, status, err := c.send(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}
		if status == http.StatusTooManyRequests && attempt == 0 {
			retryAfter := time.Duration(gjson.GetBytes(raw, "retry_after").Float() * float64(time.Second))
			if retryAfter <= 0 {
				retryAfter = time.Second
			}
			logging.Ctx(ctx).Warn().Str("path", path).Dur("retry_after", retryAfter).Msg("Discord rate limited request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryAfter):
			}
			continue
		}
		if status >= 300 {
			msg := gjson.GetBytes(raw, "message").String()
			if msg == "" {
				msg = http.StatusText(status)
			}
			return nil, fmt.Errorf("discord %s %s: %d %s", method, path, status, msg)
		}
		return raw, nil
	}
}

func (c *RESTClient) send(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", "DiscordBot (homestock, 1.0)")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("discord request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read discord response: %w", err)
	}
	return raw, resp.StatusCode, nil
}
