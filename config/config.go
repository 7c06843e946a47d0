package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the externally supplied endpoints the shell talks to. Every
// value has a development default matching the stub server.
type Config struct {
	APIBaseURL    string
	GraphQLURL    string
	ChatURL       string
	RemoteBaseURL string
	OIDC          OIDCConfig
}

// OIDCConfig mirrors the provider metadata the identity flow needs. The
// endpoints are fixed per deployment, not discovered at runtime.
type OIDCConfig struct {
	ClientID              string
	RedirectURI           string
	SilentRedirectURI     string
	PostLogoutRedirectURI string
	Scopes                []string

	AuthorizeEndpoint     string
	TokenEndpoint         string
	UserInfoEndpoint      string
	EndSessionEndpoint    string
	JWKSEndpoint          string
	IntrospectionEndpoint string
	RevocationEndpoint    string
}

// Load reads .env when present and assembles the configuration from the
// environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	apiBase := getenv("API_BASE_URL", "http://localhost:8080")
	issuer := strings.TrimSuffix(getenv("OIDC_ISSUER", "https://localhost:9443/oauth2"), "/")
	appBase := getenv("APP_BASE_URL", "http://localhost:5173")

	return Config{
		APIBaseURL:    apiBase,
		GraphQLURL:    getenv("GRAPHQL_URL", apiBase+"/graphql"),
		ChatURL:       getenv("CHAT_URL", "ws://localhost:8080/websocket/"),
		RemoteBaseURL: getenv("REMOTE_BASE_URL", "http://localhost:3001"),
		OIDC: OIDCConfig{
			ClientID:              os.Getenv("OIDC_CLIENT_ID"),
			RedirectURI:           appBase + "/callback",
			SilentRedirectURI:     appBase + "/silent-callback",
			PostLogoutRedirectURI: getenv("POST_LOGOUT_REDIRECT_URI", appBase),
			Scopes:                strings.Fields(getenv("OIDC_SCOPES", "openid profile email groups")),
			AuthorizeEndpoint:     issuer + "/authorize",
			TokenEndpoint:         issuer + "/token",
			UserInfoEndpoint:      issuer + "/userinfo",
			EndSessionEndpoint:    issuer + "/logout",
			JWKSEndpoint:          issuer + "/jwks",
			IntrospectionEndpoint: issuer + "/introspect",
			RevocationEndpoint:    issuer + "/revoke",
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
