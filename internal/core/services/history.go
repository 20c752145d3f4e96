package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/thewijay/intima-chat/internal/core/domain"
	"github.com/thewijay/intima-chat/internal/core/ports"
)

const (
	// defaultHistoryRetries bounds the retry loop for conversations the
	// backend has not finished persisting.
	defaultHistoryRetries = 3

	// historyRetryBase is the linear backoff unit between history retries.
	historyRetryBase = 500 * time.Millisecond
)

// HistoryOutcome describes how one history load resolved. A not-found
// conversation resolves to an empty outcome, not an error: a just-created
// conversation is legitimately absent from the backend for a short window.
type HistoryOutcome struct {
	ConversationID domain.ConversationID
	Title          string
	Messages       []domain.Message
	NotFound       bool

	// Stale is true when the result arrived after the session had already
	// moved on (conversation switched or a newer load started) and was
	// therefore discarded.
	Stale bool
}

// History populates the session's message list from the backend, tolerating
// eventual consistency. Every failure mode except token expiry is swallowed
// into a safe default so a transient network error never blanks a populated
// chat.
type History struct {
	logger  *slog.Logger
	api     ports.ChatAPI
	session *Session
	now     func() time.Time
	delay   DelayFunc
}

// NewHistory creates the reconciliation engine.
func NewHistory(logger *slog.Logger, api ports.ChatAPI, session *Session) *History {
	return &History{
		logger:  logger,
		api:     api,
		session: session,
		now:     time.Now,
		delay:   LinearBackoff(historyRetryBase),
	}
}

// Load fetches the history for id and reconciles it with the session:
// a non-empty result replaces the local list, an empty-but-successful result
// keeps whatever is already there, not-found resolves to empty success, and
// token expiry propagates distinctly with the list untouched.
func (h *History) Load(ctx context.Context, id domain.ConversationID) (HistoryOutcome, error) {
	seq := h.session.beginHistoryLoad()
	defer h.session.endHistoryLoad()

	res, err := h.api.History(ctx, id)
	switch {
	case errors.Is(err, domain.ErrAuthExpired):
		return HistoryOutcome{ConversationID: id}, err
	case errors.Is(err, domain.ErrConversationNotFound):
		h.logger.Debug("history not persisted yet", "conversation_id", id)
		h.session.applyHistory(seq, nil)
		return HistoryOutcome{ConversationID: id, Messages: []domain.Message{}, NotFound: true}, nil
	case err != nil:
		h.logger.Warn("history load failed, keeping current messages", "conversation_id", id, "error", err)
		return HistoryOutcome{ConversationID: id, Messages: h.session.Messages()}, nil
	}

	msgs := domain.FormatHistory(res.Records, h.now)
	if !h.session.applyHistory(seq, msgs) {
		h.logger.Debug("discarding stale history result", "conversation_id", id)
		return HistoryOutcome{ConversationID: res.ConversationID, Title: res.Title, Stale: true}, nil
	}
	return HistoryOutcome{
		ConversationID: res.ConversationID,
		Title:          res.Title,
		Messages:       h.session.Messages(),
	}, nil
}

// LoadWithRetry wraps Load in a bounded retry loop for the window right
// after a conversation is created server-side. It retries only while the
// outcome is not-found, waits (attempt+1) × 500ms between attempts, and
// returns the last outcome even if it is still not-found — callers treat
// that as "no history yet", never as fatal.
func (h *History) LoadWithRetry(ctx context.Context, id domain.ConversationID, retries int) (HistoryOutcome, error) {
	if retries < 0 {
		retries = defaultHistoryRetries
	}
	retryable := func(out HistoryOutcome, err error) bool {
		return err == nil && out.NotFound
	}
	return Retry(ctx, retries+1, h.delay, retryable, func(ctx context.Context) (HistoryOutcome, error) {
		return h.Load(ctx, id)
	})
}
