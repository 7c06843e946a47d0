package stub

import (
	"crypto/sha256"
	"encoding/base64"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"property-shell/utils"
)

const tokenTTL = time.Hour

// OIDCProvider is a single-user identity provider for development: it
// implements just enough of the authorization-code flow (with PKCE) for the
// auth session adapter to run against.
type OIDCProvider struct {
	mu       sync.Mutex
	codes    map[string]codeGrant
	refresh  map[string]bool
	user     utils.Claims
	userID   string
}

type codeGrant struct {
	redirectURI string
	challenge   string
}

func NewOIDCProvider() *OIDCProvider {
	return &OIDCProvider{
		codes:   make(map[string]codeGrant),
		refresh: make(map[string]bool),
		userID:  "dev-user",
		user: utils.Claims{
			Name:   "Dev User",
			Email:  "dev@example.com",
			Groups: []string{"tenant"},
		},
	}
}

// SetUser overrides the fake signed-in identity, for tests that need
// specific role claims.
func (p *OIDCProvider) SetUser(subject string, claims utils.Claims) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userID = subject
	p.user = claims
}

// Authorize skips the login page entirely: every request is treated as an
// approved sign-in and redirected back with a fresh code.
func (p *OIDCProvider) Authorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		redirectURI := q.Get("redirect_uri")
		target, err := url.Parse(redirectURI)
		if err != nil || redirectURI == "" {
			http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
			return
		}

		code := uuid.NewString()
		p.mu.Lock()
		p.codes[code] = codeGrant{
			redirectURI: redirectURI,
			challenge:   q.Get("code_challenge"),
		}
		p.mu.Unlock()

		params := target.Query()
		params.Set("code", code)
		params.Set("state", q.Get("state"))
		target.RawQuery = params.Encode()

		log.Printf("Authorize: issued code for client %s", q.Get("client_id"))
		http.Redirect(w, r, target.String(), http.StatusFound)
	}
}

// Token handles the authorization_code and refresh_token grants, issuing
// HS256 access and ID tokens.
func (p *OIDCProvider) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form body", http.StatusBadRequest)
			return
		}

		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			p.exchangeCode(w, r)
		case "refresh_token":
			p.exchangeRefresh(w, r)
		default:
			writeTokenError(w, "unsupported_grant_type")
		}
	}
}

func (p *OIDCProvider) exchangeCode(w http.ResponseWriter, r *http.Request) {
	code := r.PostForm.Get("code")

	p.mu.Lock()
	grant, ok := p.codes[code]
	delete(p.codes, code)
	p.mu.Unlock()

	if !ok {
		writeTokenError(w, "invalid_grant")
		return
	}
	if grant.challenge != "" && !verifierMatches(r.PostForm.Get("code_verifier"), grant.challenge) {
		writeTokenError(w, "invalid_grant")
		return
	}

	p.issueTokens(w)
}

func (p *OIDCProvider) exchangeRefresh(w http.ResponseWriter, r *http.Request) {
	token := r.PostForm.Get("refresh_token")

	p.mu.Lock()
	ok := p.refresh[token]
	delete(p.refresh, token)
	p.mu.Unlock()

	if !ok {
		writeTokenError(w, "invalid_grant")
		return
	}
	p.issueTokens(w)
}

func (p *OIDCProvider) issueTokens(w http.ResponseWriter) {
	p.mu.Lock()
	subject, claims := p.userID, p.user
	p.mu.Unlock()

	accessToken, err := utils.GenerateJWT(subject, claims, tokenTTL)
	if err != nil {
		http.Error(w, "signing access token failed", http.StatusInternalServerError)
		return
	}
	idToken, err := utils.GenerateJWT(subject, claims, tokenTTL)
	if err != nil {
		http.Error(w, "signing id token failed", http.StatusInternalServerError)
		return
	}

	refreshToken := uuid.NewString()
	p.mu.Lock()
	p.refresh[refreshToken] = true
	p.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"id_token":      idToken,
		"refresh_token": refreshToken,
		"token_type":    "Bearer",
		"expires_in":    int(tokenTTL.Seconds()),
	})
}

// UserInfo returns the profile claims for a valid access token.
func (p *OIDCProvider) UserInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		header := r.Header.Get("Authorization")
		if len(header) <= len(prefix) {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		claims, err := utils.ValidateJWT(header[len(prefix):])
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sub":    claims.Subject,
			"name":   claims.Name,
			"email":  claims.Email,
			"groups": claims.Groups,
		})
	}
}

// Logout honors the end-session contract: redirect to the post-logout target.
func (p *OIDCProvider) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("post_logout_redirect_uri")
		if target == "" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}

// JWKS exists only so the metadata surface is complete; HS256 tokens carry
// no public keys.
func (p *OIDCProvider) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"keys": []interface{}{}})
	}
}

func verifierMatches(verifier, challenge string) bool {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:]) == challenge
}

func writeTokenError(w http.ResponseWriter, code string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": code})
}
