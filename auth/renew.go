package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/oauth2"

	"property-shell/storage"
)

// renewLeeway is how long before expiry a silent renewal is attempted.
const renewLeeway = time.Minute

// ErrNoRefreshToken is returned when a renewal is requested but the stored
// session has nothing to refresh with.
var ErrNoRefreshToken = errors.New("no refresh token stored")

// Renew performs one silent token refresh using the stored refresh token.
// Subscribers see no state transition; only the persisted token set changes.
func (s *Session) Renew(ctx context.Context) error {
	sess, err := s.tokens.Load()
	if err != nil {
		return fmt.Errorf("loading session for renewal: %w", err)
	}
	if sess.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.http)
	src := s.oauth.TokenSource(ctx, &oauth2.Token{
		RefreshToken: sess.RefreshToken,
		// Expired on purpose so the source refreshes immediately.
		Expiry: time.Now().Add(-time.Minute),
	})
	tok, err := src.Token()
	if err != nil {
		return fmt.Errorf("refreshing token: %w", err)
	}

	if tok.RefreshToken == "" {
		tok.RefreshToken = sess.RefreshToken
	}
	if err := s.saveToken(tok); err != nil {
		return fmt.Errorf("persisting renewed session: %w", err)
	}
	return nil
}

// StartSilentRenew keeps the stored session fresh in the background until
// ctx is done or Logout is called. A failed renewal ends the session: the
// state machine drops to unauthenticated with the failure recorded.
func (s *Session) StartSilentRenew(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.renewCancel != nil {
		s.renewCancel()
	}
	s.renewCancel = cancel
	s.mu.Unlock()

	go s.renewLoop(ctx)
}

func (s *Session) renewLoop(ctx context.Context) {
	for {
		sess, err := s.tokens.Load()
		if err != nil {
			if !errors.Is(err, storage.ErrNoSession) {
				log.Printf("Silent renew halted: %v", err)
			}
			return
		}

		wait := renewLeeway
		if !sess.Expiry.IsZero() {
			wait = time.Until(sess.Expiry) - renewLeeway
			if wait < 0 {
				wait = 0
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := s.Renew(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Printf("Silent renew failed: %v", err)
			s.fail(err)
			return
		}
		log.Println("Silent renew completed")
	}
}
