package security

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"homestock/internal/models"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid identity token")
)

// TokenConfig selects how identity tokens are checked. With DevSecret set, HS256 tokens
// signed with it are accepted as well as RS256 tokens from the JWKS endpoint.
type TokenConfig struct {
	JWKSURL   string
	Issuer    string
	Audience  string
	DevSecret string
	KeyTTL    time.Duration
}

// idTokenClaims are the claims read from an OpenID Connect ID token
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

type jwkSet struct {
	Keys []jwkKey `json:"keys"`
}

type jwkKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// TokenVerifier checks identity tokens and returns the identity they carry
type TokenVerifier struct {
	cfg    TokenConfig
	client *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func NewTokenVerifier(cfg TokenConfig) *TokenVerifier {
	if cfg.KeyTTL == 0 {
		cfg.KeyTTL = time.Hour
	}
	return &TokenVerifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

// Verify validates signature and expiry, plus issuer and audience for provider tokens
func (v *TokenVerifier) Verify(ctx context.Context, raw string) (models.Identity, error) {
	if raw == "" {
		return models.Identity{}, ErrMissingToken
	}

	methods := []string{}
	if v.cfg.JWKSURL != "" {
		methods = append(methods, "RS256")
	}
	if v.cfg.DevSecret != "" {
		methods = append(methods, "HS256")
	}
	claims := &idTokenClaims{}
	token, err := jwt.NewParser(jwt.WithValidMethods(methods), jwt.WithExpirationRequired()).ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		switch token.Method.Alg() {
		case "HS256":
			return []byte(v.cfg.DevSecret), nil
		default:
			kid, _ := token.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing key id")
			}
			return v.publicKey(ctx, kid)
		}
	})
	if err != nil || !token.Valid {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	// Issuer and audience pin RS256 tokens to the provider; HS256 tokens are trusted by secret alone
	if token.Method.Alg() == "RS256" {
		if !v.issuerAllowed(claims.Issuer) {
			return models.Identity{}, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
		}
		if v.cfg.Audience != "" && !slices.Contains(claims.Audience, v.cfg.Audience) {
			return models.Identity{}, fmt.Errorf("%w: unexpected audience %v", ErrInvalidToken, claims.Audience)
		}
	}
	if claims.Subject == "" {
		return models.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return models.Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
	}, nil
}

// issuerAllowed accepts the configured issuer with or without its https scheme, as Google uses both
func (v *TokenVerifier) issuerAllowed(issuer string) bool {
	if v.cfg.Issuer == "" {
		return true
	}
	allowed := []string{v.cfg.Issuer, strings.TrimPrefix(v.cfg.Issuer, "https://")}
	return slices.Contains(allowed, issuer)
}

// publicKey returns the signing key for kid, refetching the key set when it is stale or
// does not know kid yet.
func (v *TokenVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := time.Since(v.fetchedAt) < v.cfg.KeyTTL
	v.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	keys, err := v.fetchKeys(ctx)
	if err != nil {
		if ok {
			return key, nil
		}
		return nil, err
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = time.Now()
	v.mu.Unlock()

	if key, ok := keys[kid]; ok {
		return key, nil
	}
	return nil, errors.New("signing key not found")
}

func (v *TokenVerifier) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.JWKSURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch signing keys: status %d", resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, err
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaKey(k)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

func rsaKey(k jwkKey) (*rsa.PublicKey, error) {
	modulusBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	exponentBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	exponent := 0
	for _, b := range exponentBytes {
		exponent = exponent*256 + int(b)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(modulusBytes),
		E: exponent,
	}, nil
}

// SignDevToken issues an HS256 identity token. It backs local development and tests.
func SignDevToken(secret string, identity models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := idTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: identity.Email,
		Name:  identity.Name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
