package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/thewijay/intima-chat/internal/core/domain"
	"github.com/thewijay/intima-chat/internal/core/ports"
)

// tokenKey is the fixed storage key for the bearer token.
const tokenKey = "authToken"

// Auth owns the bearer token lifecycle: persisted in the key-value store,
// cached in memory after the first read, cleared together with the session
// on logout. It is the token source for the HTTP API adapter.
type Auth struct {
	logger  *slog.Logger
	store   ports.KeyValueStore
	session *Session

	mu     sync.Mutex
	cached string
	loaded bool
}

// NewAuth creates the token manager.
func NewAuth(logger *slog.Logger, store ports.KeyValueStore, session *Session) *Auth {
	return &Auth{
		logger:  logger,
		store:   store,
		session: session,
	}
}

// Token returns the current bearer token, reading it from storage on first
// use. Returns domain.ErrAuthRequired when no token is stored.
func (a *Auth) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.loaded {
		tok, err := a.store.Get(ctx, tokenKey)
		if err != nil && !errors.Is(err, ports.ErrKeyNotFound) {
			return "", fmt.Errorf("read auth token: %w", err)
		}
		a.cached = tok
		a.loaded = true
	}
	if a.cached == "" {
		return "", domain.ErrAuthRequired
	}
	return a.cached, nil
}

// Login stores a new bearer token.
func (a *Auth) Login(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrAuthRequired
	}
	if err := a.store.Set(ctx, tokenKey, token); err != nil {
		return fmt.Errorf("persist auth token: %w", err)
	}

	a.mu.Lock()
	a.cached = token
	a.loaded = true
	a.mu.Unlock()

	a.logger.Info("logged in")
	return nil
}

// Logout removes the stored token and clears the session, including the
// persisted conversation ID.
func (a *Auth) Logout(ctx context.Context) error {
	if err := a.store.Delete(ctx, tokenKey); err != nil {
		return fmt.Errorf("remove auth token: %w", err)
	}

	a.mu.Lock()
	a.cached = ""
	a.loaded = true
	a.mu.Unlock()

	a.session.Reset(ctx)
	a.logger.Info("logged out")
	return nil
}
