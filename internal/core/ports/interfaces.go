package ports

import (
	"context"
	"errors"

	"github.com/thewijay/intima-chat/internal/core/domain"
)

// ErrKeyNotFound is returned by KeyValueStore.Get for absent keys.
// Absence is a normal condition, not a failure.
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore abstracts the persistent string key-value storage (encrypted
// file on native installs, DuckDB, plain memory in tests). The backend is
// selected once at construction; call sites never branch on platform.
type KeyValueStore interface {
	// Get retrieves a value. Returns ErrKeyNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value, overwriting any previous one.
	Set(ctx context.Context, key, value string) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// ChatAPI abstracts the remote chat backend
type ChatAPI interface {
	// SendMessage submits one question and returns the AI answer.
	SendMessage(ctx context.Context, req domain.SendRequest) (domain.SendResult, error)

	// ListConversations enumerates the user's conversations, most recently
	// updated first.
	ListConversations(ctx context.Context) ([]domain.ConversationSummary, error)

	// History fetches the message history for one conversation. Returns
	// domain.ErrConversationNotFound while the backend has not persisted it
	// yet and domain.ErrAuthExpired when the token is no longer valid.
	History(ctx context.Context, id domain.ConversationID) (domain.HistoryResult, error)

	// Welcome asks whether a first-time welcome message should be shown.
	Welcome(ctx context.Context) (domain.WelcomeResult, error)

	// Health probes backend liveness.
	Health(ctx context.Context) error
}
