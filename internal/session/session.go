// Package session holds the board API token and keeps it persisted.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"

	"github.com/maumercado/taskboard-go/internal/logger"
)

// TokenKey is the storage key of the API token.
const TokenKey = "apiToken"

// TokenType is the scheme of the Authorization header the API expects.
const TokenType = "Token"

var ErrNotAuthenticated = errors.New("not authenticated")

// Store persists the token. Load returns "" with a nil error when nothing
// is stored.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

// Session is the in-memory token backed by a Store.
type Session struct {
	mu    sync.RWMutex
	token *string
	store Store
}

// New creates a session on store and loads any persisted token. A nil store
// keeps the token in memory only.
func New(ctx context.Context, store Store) (*Session, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	s := &Session{store: store}
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces the in-memory token with the persisted one, if any.
func (s *Session) Load(ctx context.Context) error {
	token, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}
	if token == "" {
		return nil
	}

	s.mu.Lock()
	s.token = &token
	s.mu.Unlock()
	return nil
}

// Save stores token in memory and in the store. Memory only changes once the
// store has accepted the write, so callers never observe the two diverging.
func (s *Session) Save(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(ctx, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	s.token = &token

	logger.Debug().Msg("session token saved")
	return nil
}

// Delete forgets the token (logout).
func (s *Session) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	s.token = nil

	logger.Debug().Msg("session token deleted")
	return nil
}

// Authenticated reports whether a token is held.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != nil
}

// Token returns the held token, or "" when unauthenticated.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return ""
	}
	return *s.token
}

// TokenSource adapts the session to oauth2, reporting the token with the
// "Token" scheme. It fails with ErrNotAuthenticated when no token is held.
func (s *Session) TokenSource() oauth2.TokenSource {
	return tokenSource{s}
}

type tokenSource struct {
	s *Session
}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	if !ts.s.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	return &oauth2.Token{AccessToken: ts.s.Token(), TokenType: TokenType}, nil
}
