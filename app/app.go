// Package app composes the client shell: one gateway, one view-state store,
// one auth session, one chat client, and one remote module loader, all built
// from configuration.
package app

import (
	"fmt"
	"net/http"
	"time"

	"property-shell/auth"
	"property-shell/chat"
	"property-shell/config"
	"property-shell/gateway"
	"property-shell/remote"
	"property-shell/storage"
	"property-shell/store"
)

// Shell is the assembled client. Fields are the live subsystems; callers
// subscribe to the ones they render.
type Shell struct {
	Config  config.Config
	Tokens  storage.Store
	Gateway *gateway.Gateway
	Store   *store.Store
	Session *auth.Session
	Chat    *chat.Client
	Remote  *remote.Loader
}

// New builds the shell from cfg with file-backed token storage.
func New(cfg config.Config) (*Shell, error) {
	tokens, err := storage.NewFileStore("")
	if err != nil {
		return nil, fmt.Errorf("opening token storage: %w", err)
	}
	return NewWithStorage(cfg, tokens), nil
}

// NewWithStorage builds the shell with an explicit token store, which tests
// use to stay off the filesystem.
func NewWithStorage(cfg config.Config, tokens storage.Store) *Shell {
	gw := gateway.New(cfg.APIBaseURL, cfg.GraphQLURL, tokens)
	return &Shell{
		Config:  cfg,
		Tokens:  tokens,
		Gateway: gw,
		Store:   store.New(gw),
		Session: auth.NewSession(cfg.OIDC, tokens, nil),
		Chat:    chat.NewClient(cfg.ChatURL),
		Remote:  remote.NewLoader(cfg.RemoteBaseURL, &http.Client{Timeout: 10 * time.Second}),
	}
}
