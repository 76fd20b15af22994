package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// CSRFFieldName is the hidden form field carrying the token
const CSRFFieldName = "csrf_token"

// CSRFGenerator derives form tokens from the web session id with HMAC-SHA256.
// Nothing is stored, so any web replica can check a token issued by another.
type CSRFGenerator struct {
	secret []byte
}

func NewCSRFGenerator(secret string) *CSRFGenerator {
	return &CSRFGenerator{secret: []byte(secret)}
}

// Token returns the token for sessionID
func (g *CSRFGenerator) Token(sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.New("session ID is required")
	}
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte("csrf:" + sessionID))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Valid reports whether token was issued for sessionID
func (g *CSRFGenerator) Valid(sessionID, token string) bool {
	if sessionID == "" || token == "" {
		return false
	}
	expected, err := g.Token(sessionID)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(token))
}
