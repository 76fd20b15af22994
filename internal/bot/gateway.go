package bot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"homestock/internal/logging"
	"homestock/internal/metrics"
)

// Gateway opcodes
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

// Gateway intents
const (
	IntentGuildMessages  = 1 << 9
	IntentDirectMessages = 1 << 12
	IntentMessageContent = 1 << 15

	DefaultIntents = IntentGuildMessages | IntentDirectMessages | IntentMessageContent
)

// maxInFlightMessages bounds concurrent message handlers per session
const maxInFlightMessages = 8

var (
	errReconnectRequested = errors.New("gateway asked for a reconnect")
	errInvalidSession     = errors.New("gateway invalidated the session")
	errZombieConnection   = errors.New("gateway stopped acknowledging heartbeats")
)

// MessageHandler receives chat messages from the gateway
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
}

// URLResolver looks up the gateway websocket URL
type URLResolver interface {
	GatewayURL(ctx context.Context) (string, error)
}

// GatewayConfig configures a gateway session
type GatewayConfig struct {
	Token string
	// URL overrides the resolved gateway address
	URL     string
	Intents int
}

// Gateway keeps a websocket session with Discord open. Serve runs one session and
// returns when it ends, so a supervisor restarts it.
type Gateway struct {
	cfg      GatewayConfig
	resolver URLResolver
	handler  MessageHandler
	dialer   *websocket.Dialer
}

func NewGateway(cfg GatewayConfig, resolver URLResolver, handler MessageHandler) *Gateway {
	if cfg.Intents == 0 {
		cfg.Intents = DefaultIntents
	}
	return &Gateway{
		cfg:      cfg,
		resolver: resolver,
		handler:  handler,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (g *Gateway) String() string { return "discord-gateway" }

type session struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	seq    atomic.Int64
	acked  atomic.Bool
	selfID string
	closed sync.Once
}

func (s *session) send(op int, d any) error {
	payload, err := json.Marshal(map[string]any{"op": op, "d": d})
	if err != nil {
		return fmt.Errorf("failed to encode gateway payload: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *session) heartbeat() error {
	var d any
	if seq := s.seq.Load(); seq > 0 {
		d = seq
	}
	return s.send(opHeartbeat, d)
}

func (s *session) close() {
	s.closed.Do(func() {
		s.mu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.mu.Unlock()
		_ = s.conn.Close()
	})
}

func (g *Gateway) endpoint(ctx context.Context) (string, error) {
	base := g.cfg.URL
	if base == "" && g.resolver != nil {
		resolved, err := g.resolver.GatewayURL(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to resolve gateway url: %w", err)
		}
		base = resolved
	}
	if base == "" {
		base = defaultGatewayURL
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid gateway url: %w", err)
	}
	q := u.Query()
	q.Set("v", "10")
	q.Set("encoding", "json")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Serve implements suture.Service
func (g *Gateway) Serve(ctx context.Context) error {
	endpoint, err := g.endpoint(ctx)
	if err != nil {
		return err
	}

	conn, resp, err := g.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("gateway dial: %w", err)
	}

	s := &session{conn: conn}
	s.acked.Store(true)
	defer s.close()
	stop := context.AfterFunc(ctx, s.close)
	defer stop()

	interval, err := g.hello(s)
	if err != nil {
		return err
	}
	if err := s.send(opIdentify, map[string]any{
		"token":   g.cfg.Token,
		"intents": g.cfg.Intents,
		"properties": map[string]string{
			"os":      runtime.GOOS,
			"browser": "homestock",
			"device":  "homestock",
		},
	}); err != nil {
		return fmt.Errorf("gateway identify: %w", err)
	}
	logging.Info().Dur("heartbeat_interval", interval).Msg("Discord gateway connected")

	// Handlers still running when the session ends see sessionCtx cancelled
	sessionCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	heartbeatErr := make(chan error, 1)
	go g.heartbeatLoop(sessionCtx, s, interval, heartbeatErr)

	inFlight := make(chan struct{}, maxInFlightMessages)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case hbErr := <-heartbeatErr:
				return hbErr
			default:
			}
			return fmt.Errorf("gateway read: %w", err)
		}

		msg, err := g.handleFrame(s, raw)
		if err != nil {
			return err
		}
		if msg == nil {
			continue
		}

		inFlight <- struct{}{}
		wg.Add(1)
		go func(m Message) {
			defer wg.Done()
			defer func() { <-inFlight }()
			g.handler.HandleMessage(logging.ContextWithNewRequestID(sessionCtx), m)
		}(*msg)
	}
}

func (g *Gateway) hello(s *session) (time.Duration, error) {
	_ = s.conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		return 0, fmt.Errorf("gateway hello: %w", err)
	}
	_ = s.conn.SetReadDeadline(time.Time{})

	if op := gjson.GetBytes(raw, "op").Int(); op != opHello {
		return 0, fmt.Errorf("gateway hello: unexpected opcode %d", op)
	}
	interval := time.Duration(gjson.GetBytes(raw, "d.heartbeat_interval").Int()) * time.Millisecond
	if interval <= 0 {
		return 0, errors.New("gateway hello: missing heartbeat interval")
	}
	return interval, nil
}

// heartbeatLoop beats until ctx ends. A beat without an ack since the previous one
// means the connection is dead, so the session is closed to force a reconnect.
func (g *Gateway) heartbeatLoop(ctx context.Context, s *session, interval time.Duration, errs chan<- error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.acked.Swap(false) {
				errs <- errZombieConnection
				s.close()
				return
			}
			if err := s.heartbeat(); err != nil {
				errs <- fmt.Errorf("gateway heartbeat: %w", err)
				s.close()
				return
			}
		}
	}
}

// handleFrame processes one gateway payload and returns a message worth handling
func (g *Gateway) handleFrame(s *session, raw []byte) (*Message, error) {
	frame := gjson.ParseBytes(raw)
	switch frame.Get("op").Int() {
	case opHeartbeatAck:
		s.acked.Store(true)
	case opHeartbeat:
		if err := s.heartbeat(); err != nil {
			return nil, fmt.Errorf("gateway heartbeat: %w", err)
		}
	case opReconnect:
		return nil, errReconnectRequested
	case opInvalidSession:
		return nil, errInvalidSession
	case opDispatch:
		if seq := frame.Get("s"); seq.Exists() && seq.Type == gjson.Number {
			s.seq.Store(seq.Int())
		}
		event := frame.Get("t").String()
		metrics.BotGatewayEvents.WithLabelValues(event).Inc()

		switch event {
		case "READY":
			s.selfID = frame.Get("d.user.id").String()
			logging.Info().Str("bot_user", frame.Get("d.user.username").String()).Msg("Discord gateway ready")
		case "MESSAGE_CREATE":
			return messageFromEvent(frame.Get("d"), s.selfID), nil
		}
	}
	return nil, nil
}

func messageFromEvent(d gjson.Result, selfID string) *Message {
	msg := &Message{
		ID:        d.Get("id").String(),
		ChannelID: d.Get("channel_id").String(),
		AuthorID:  d.Get("author.id").String(),
		AuthorBot: d.Get("author.bot").Bool(),
		Content:   d.Get("content").String(),
	}
	if msg.AuthorBot || (selfID != "" && msg.AuthorID == selfID) {
		return nil
	}

	// Direct messages always address the bot
	if !d.Get("guild_id").Exists() {
		msg.Mentioned = true
	} else if selfID != "" {
		for _, id := range d.Get("mentions.#.id").Array() {
			if id.String() == selfID {
				msg.Mentioned = true
				break
			}
		}
		if strings.Contains(msg.Content, "<@"+selfID+">") || strings.Contains(msg.Content, "<@!"+selfID+">") {
			msg.Mentioned = true
		}
	}
	return msg
}
