package security

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyMatcher checks the bot's shared API key. The configured value may be a bcrypt
// hash or the key itself.
type APIKeyMatcher struct {
	configured string
	hashed     bool
}

func NewAPIKeyMatcher(configured string) *APIKeyMatcher {
	return &APIKeyMatcher{
		configured: configured,
		hashed:     strings.HasPrefix(configured, "$2"),
	}
}

// Match reports whether presented is the configured key. An unconfigured matcher rejects everything.
func (m *APIKeyMatcher) Match(presented string) bool {
	if m.configured == "" || presented == "" {
		return false
	}
	if m.hashed {
		return bcrypt.CompareHashAndPassword([]byte(m.configured), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(m.configured), []byte(presented)) == 1
}

// HashAPIKey returns a bcrypt hash suitable for the bot.api_key setting
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
