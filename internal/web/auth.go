package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"homestock/internal/logging"
	"homestock/internal/models"
	"homestock/internal/security"
)

type idTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ShowLogin renders the sign-in page
func (s *Server) ShowLogin(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "login.tmpl", map[string]any{
		"Title":        "Sign in",
		"GoogleLogin":  s.oauth != nil,
		"DevLogin":     s.devSecret != "",
		"ErrorMessage": r.URL.Query().Get("error"),
	})
}

// StartOAuth sends the browser to Google
func (s *Server) StartOAuth(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		http.Error(w, "Google sign-in is not configured", http.StatusNotFound)
		return
	}
	state := security.NewSessionID()
	http.SetCookie(w, security.SessionCookie(r, stateCookieName, state, 10*time.Minute))
	http.Redirect(w, r, s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), http.StatusFound)
}

// OAuthCallback exchanges the authorization code for an ID token and opens a session.
// The token's signature is checked by the API on every call, so only its claims are
// read here.
func (s *Server) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		http.Error(w, "Google sign-in is not configured", http.StatusNotFound)
		return
	}
	if msg := r.URL.Query().Get("error"); msg != "" {
		http.Redirect(w, r, "/login?error=Sign-in+was+cancelled", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, security.ExpiredCookie(r, stateCookieName))

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("OAuth code exchange failed")
		http.Error(w, "Failed to exchange OAuth code", http.StatusBadRequest)
		return
	}
	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken == "" {
		http.Error(w, "Google did not return an ID token", http.StatusBadRequest)
		return
	}

	if err := s.startSession(w, r, rawIDToken); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Rejected ID token")
		http.Error(w, "Invalid ID token", http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// DevLogin signs in as any email address. It 404s unless a development secret is set.
func (s *Server) DevLogin(w http.ResponseWriter, r *http.Request) {
	if s.devSecret == "" {
		http.NotFound(w, r)
		return
	}
	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	if email == "" || !strings.Contains(email, "@") {
		http.Redirect(w, r, "/login?error=Enter+an+email+address", http.StatusSeeOther)
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}

	raw, err := security.SignDevToken(s.devSecret, models.Identity{
		Subject: "dev:" + email,
		Email:   email,
		Name:    name,
	}, maxSessionAge)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to sign development token")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if err := s.startSession(w, r, raw); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to start development session")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout drops the session
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), sessionFrom(r).ID); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to delete session")
	}
	http.SetCookie(w, security.ExpiredCookie(r, sessionCookieName))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, rawIDToken string) error {
	var claims idTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(rawIDToken, &claims); err != nil {
		return fmt.Errorf("failed to parse id token: %w", err)
	}

	now := s.now()
	expires := now.Add(maxSessionAge)
	if claims.ExpiresAt != nil {
		if !claims.ExpiresAt.After(now) {
			return errors.New("id token has expired")
		}
		if claims.ExpiresAt.Before(expires) {
			expires = claims.ExpiresAt.Time
		}
	}

	sess := &Session{
		ID:        security.NewSessionID(),
		IDToken:   rawIDToken,
		Email:     claims.Email,
		Name:      claims.Name,
		ExpiresAt: expires,
	}
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		return err
	}
	http.SetCookie(w, security.SessionCookie(r, sessionCookieName, sess.ID, expires.Sub(now)))
	logging.Ctx(r.Context()).Info().Str("email", claims.Email).Msg("User signed in")
	return nil
}
