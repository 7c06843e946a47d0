// Package auth adapts the external OpenID Connect provider's
// authorization-code flow into an observable session for the rest of the
// shell.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"property-shell/config"
	"property-shell/models"
	"property-shell/storage"
)

// State is the session machine: unauthenticated → redirecting →
// authenticated, with errors landing back in unauthenticated.
type State int

const (
	StateUnauthenticated State = iota
	StateRedirecting
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateRedirecting:
		return "redirecting"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Status is the snapshot handed to subscribers and the route guard.
type Status struct {
	State  State
	Claims *models.Claims
	Err    error
}

// Authenticated reports a completed sign-in.
func (st Status) Authenticated() bool { return st.State == StateAuthenticated }

// Loading reports that the session outcome is still indeterminate.
func (st Status) Loading() bool { return st.State == StateRedirecting }

var (
	// ErrStateMismatch is returned when the callback state parameter does not
	// match the pending login.
	ErrStateMismatch = errors.New("auth state parameter mismatch")
	// ErrNoPendingLogin is returned when a callback arrives without a login
	// having been initiated.
	ErrNoPendingLogin = errors.New("no login in progress")
)

// ProviderError is a provider-reported denial delivered on the callback.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return "provider error: " + e.Code
	}
	return fmt.Sprintf("provider error: %s: %s", e.Code, e.Description)
}

// Session drives the code flow against fixed provider endpoints.
type Session struct {
	cfg    config.OIDCConfig
	oauth  *oauth2.Config
	http   *http.Client
	tokens storage.Store

	mu           sync.Mutex
	state        State
	claims       *models.Claims
	err          error
	pendingState string
	verifier     string
	renewCancel  context.CancelFunc

	subs    map[int]func(Status)
	nextSub int
}

// NewSession builds the adapter. A previously stored, unexpired session is
// restored as authenticated so a fresh process start does not force a login.
func NewSession(cfg config.OIDCConfig, tokens storage.Store, httpc *http.Client) *Session {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	s := &Session{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Scopes:      cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthorizeEndpoint,
				TokenURL: cfg.TokenEndpoint,
			},
		},
		http:   httpc,
		tokens: tokens,
		subs:   make(map[int]func(Status)),
	}
	s.restore()
	return s
}

func (s *Session) restore() {
	sess, err := s.tokens.Load()
	if err != nil || sess.IDToken == "" {
		return
	}
	if !sess.Expiry.IsZero() && time.Now().After(sess.Expiry) {
		return
	}
	if claims := claimsFromIDToken(sess.IDToken); claims != nil {
		s.state = StateAuthenticated
		s.claims = claims
		log.Printf("Restored session for %s", claims.Subject)
	}
}

// Subscribe registers fn for status changes and returns its unsubscribe
// function.
func (s *Session) Subscribe(fn func(Status)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Status returns the current snapshot.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{State: s.state, Claims: s.claims, Err: s.err}
}

func (s *Session) notifyLocked() {
	st := Status{State: s.state, Claims: s.claims, Err: s.err}
	subs := make([]func(Status), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
	s.mu.Lock()
}

// Login starts the redirect flow and returns the authorize URL the caller
// must navigate to. PKCE verifier and anti-forgery state are held until the
// callback.
func (s *Session) Login() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.verifier = oauth2.GenerateVerifier()
	s.pendingState = uuid.NewString()
	s.state = StateRedirecting
	s.err = nil

	u := s.oauth.AuthCodeURL(s.pendingState,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(s.verifier))
	s.notifyLocked()
	return u
}

// HandleCallback completes the flow with the query the provider redirected
// back with. Provider-reported errors transition back to unauthenticated.
func (s *Session) HandleCallback(ctx context.Context, query url.Values) error {
	if e := query.Get("error"); e != "" {
		perr := &ProviderError{Code: e, Description: query.Get("error_description")}
		s.fail(perr)
		return perr
	}

	s.mu.Lock()
	pending, verifier := s.pendingState, s.verifier
	s.mu.Unlock()

	if pending == "" {
		s.fail(ErrNoPendingLogin)
		return ErrNoPendingLogin
	}
	if query.Get("state") != pending {
		s.fail(ErrStateMismatch)
		return ErrStateMismatch
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.http)
	tok, err := s.oauth.Exchange(ctx, query.Get("code"), oauth2.VerifierOption(verifier))
	if err != nil {
		err = fmt.Errorf("exchanging code: %w", err)
		s.fail(err)
		return err
	}

	claims := s.loadClaims(ctx, tok)
	if err := s.saveToken(tok); err != nil {
		log.Printf("Persisting session failed: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAuthenticated
	s.claims = claims
	s.err = nil
	s.pendingState = ""
	s.verifier = ""
	s.notifyLocked()
	return nil
}

// loadClaims prefers the userinfo endpoint and falls back to the ID token
// payload when userinfo is unreachable.
func (s *Session) loadClaims(ctx context.Context, tok *oauth2.Token) *models.Claims {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.UserInfoEndpoint, nil)
	if err == nil {
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
		resp, err := s.http.Do(req)
		if err == nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				var claims models.Claims
				if jerr := json.NewDecoder(resp.Body).Decode(&claims); jerr == nil {
					return &claims
				}
			} else {
				io.Copy(io.Discard, resp.Body)
			}
		}
	}

	idToken, _ := tok.Extra("id_token").(string)
	if claims := claimsFromIDToken(idToken); claims != nil {
		return claims
	}
	return &models.Claims{}
}

// claimsFromIDToken decodes the ID token payload without verifying the
// signature. The token was just received over TLS from the token endpoint;
// resource servers do their own verification.
func claimsFromIDToken(idToken string) *models.Claims {
	if idToken == "" {
		return nil
	}
	mapClaims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, mapClaims); err != nil {
		return nil
	}
	data, err := json.Marshal(map[string]interface{}(mapClaims))
	if err != nil {
		return nil
	}
	var claims models.Claims
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil
	}
	return &claims
}

func (s *Session) saveToken(tok *oauth2.Token) error {
	idToken, _ := tok.Extra("id_token").(string)
	return s.tokens.Save(&storage.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      idToken,
		Expiry:       tok.Expiry,
	})
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateUnauthenticated
	s.claims = nil
	s.err = err
	s.pendingState = ""
	s.verifier = ""
	s.notifyLocked()
}

// Logout clears local session state first, then returns the provider
// end-session URL carrying the post-logout redirect target.
func (s *Session) Logout() string {
	s.mu.Lock()
	if s.renewCancel != nil {
		s.renewCancel()
		s.renewCancel = nil
	}
	s.state = StateUnauthenticated
	s.claims = nil
	s.err = nil
	s.notifyLocked()
	s.mu.Unlock()

	if err := s.tokens.Clear(); err != nil {
		log.Printf("Clearing stored session failed: %v", err)
	}

	return s.cfg.EndSessionEndpoint + "?post_logout_redirect_uri=" +
		url.QueryEscape(s.cfg.PostLogoutRedirectURI)
}
