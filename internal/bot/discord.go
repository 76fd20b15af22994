package bot

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
)

// InteractionType is the kind of an incoming interaction
type InteractionType int

const (
	InteractionPing               InteractionType = 1
	InteractionApplicationCommand InteractionType = 2
)

// ResponseType is the kind of an interaction response
type ResponseType int

const (
	ResponsePong           ResponseType = 1
	ResponseChannelMessage ResponseType = 4
)

// OptionType is a Discord application command option type
type OptionType int

const (
	OptionSubCommand OptionType = 1
	OptionString     OptionType = 3
	OptionInteger    OptionType = 4
	OptionBoolean    OptionType = 5
)

// flagEphemeral hides a reply from everyone but the invoking user
const flagEphemeral = 1 << 6

// maxMessageLen is Discord's content limit
const maxMessageLen = 2000

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot,omitempty"`
}

type Member struct {
	User *User `json:"user"`
}

// Interaction is the body Discord posts to the interactions endpoint
type Interaction struct {
	ID        string          `json:"id"`
	Type      InteractionType `json:"type"`
	Token     string          `json:"token"`
	ChannelID string          `json:"channel_id"`
	GuildID   string          `json:"guild_id,omitempty"`
	Member    *Member         `json:"member,omitempty"`
	User      *User           `json:"user,omitempty"`
	Data      *CommandData    `json:"data,omitempty"`
}

// Author is the invoking user. Guild interactions carry it on the member, DMs on the user.
func (i Interaction) Author() *User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

type CommandData struct {
	Name    string   `json:"name"`
	Options []Option `json:"options,omitempty"`
}

// Option is an invoked option. Sub commands nest their own options.
type Option struct {
	Name    string     `json:"name"`
	Type    OptionType `json:"type"`
	Value   any        `json:"value,omitempty"`
	Options []Option   `json:"options,omitempty"`
}

// optionList is a lookup helper over invoked options
type optionList []Option

func (o optionList) find(name string) (Option, bool) {
	for _, opt := range o {
		if opt.Name == name {
			return opt, true
		}
	}
	return Option{}, false
}

func (o optionList) Text(name string) string {
	opt, ok := o.find(name)
	if !ok {
		return ""
	}
	s, _ := opt.Value.(string)
	return strings.TrimSpace(s)
}

// Int returns the named integer option, or def when absent
func (o optionList) Int(name string, def int) int {
	opt, ok := o.find(name)
	if !ok {
		return def
	}
	switch v := opt.Value.(type) {
	case float64:
		if v != math.Trunc(v) {
			return def
		}
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return def
}

func (o optionList) Bool(name string) bool {
	opt, ok := o.find(name)
	if !ok {
		return false
	}
	b, _ := opt.Value.(bool)
	return b
}

// InteractionResponse is written back to Discord
type InteractionResponse struct {
	Type ResponseType `json:"type"`
	Data *MessageData `json:"data,omitempty"`
}

type MessageData struct {
	Content string `json:"content"`
	Flags   int    `json:"flags,omitempty"`
}

// ApplicationCommand is a registration entry for the commands endpoint
type ApplicationCommand struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Options     []CommandOption `json:"options,omitempty"`
}

type CommandOption struct {
	Type        OptionType      `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Required    bool            `json:"required,omitempty"`
	Choices     []OptionChoice  `json:"choices,omitempty"`
	Options     []CommandOption `json:"options,omitempty"`
}

type OptionChoice struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// ErrBadSignature is returned for requests Discord did not sign
var ErrBadSignature = errors.New("invalid request signature")

// Verifier checks Discord's Ed25519 request signatures
type Verifier struct {
	key ed25519.PublicKey
}

// NewVerifier parses the application's hex-encoded public key
func NewVerifier(hexKey string) (*Verifier, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return &Verifier{key: ed25519.PublicKey(raw)}, nil
}

// Verify checks signature against timestamp followed by body
func (v *Verifier) Verify(signature, timestamp string, body []byte) error {
	if signature == "" || timestamp == "" {
		return ErrBadSignature
	}
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ErrBadSignature
	}

	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)
	if !ed25519.Verify(v.key, msg, sig) {
		return ErrBadSignature
	}
	return nil
}

// truncate keeps content under Discord's message limit
func truncate(content string) string {
	runes := []rune(content)
	if len(runes) <= maxMessageLen {
		return content
	}
	return string(runes[:maxMessageLen-1]) + "…"
}
