package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/thewijay/intima-chat/internal/core/domain"
	"github.com/thewijay/intima-chat/internal/core/ports"
)

// Conversations maintains the conversation listing used by the picker and
// applies the selection rules after each refresh: auto-select the most
// recent conversation when none is active, re-select when the active one
// vanished, and clear the active ID on an empty list unless the session is
// inside the just-created window.
type Conversations struct {
	logger  *slog.Logger
	api     ports.ChatAPI
	session *Session
	now     func() time.Time

	mu      sync.RWMutex
	items   []domain.ConversationSummary
	loading bool
}

// NewConversations creates the listing service.
func NewConversations(logger *slog.Logger, api ports.ChatAPI, session *Session) *Conversations {
	return &Conversations{
		logger:  logger,
		api:     api,
		session: session,
		now:     time.Now,
	}
}

// List returns a copy of the last fetched listing.
func (c *Conversations) List() []domain.ConversationSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.ConversationSummary, len(c.items))
	copy(out, c.items)
	return out
}

// Loading reports whether a refresh is in flight.
func (c *Conversations) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Refresh re-queries the listing endpoint. Token expiry clears the listing
// and propagates distinctly so the caller can force re-login; any other
// failure logs, resets to a clean slate, and resolves successfully.
func (c *Conversations) Refresh(ctx context.Context) error {
	c.setLoading(true)
	defer c.setLoading(false)

	items, err := c.api.ListConversations(ctx)
	if errors.Is(err, domain.ErrAuthExpired) {
		c.setItems(nil)
		return err
	}
	if err != nil {
		// Transient failure: drop only the cached listing. The active
		// conversation, its messages, and the persisted ID all survive a
		// network blip.
		c.logger.Warn("failed to load conversations", "error", err)
		c.setItems(nil)
		return nil
	}

	c.setItems(items)
	c.applySelection(ctx, items)
	return nil
}

// applySelection keeps the active conversation ID consistent with the
// freshly fetched listing.
func (c *Conversations) applySelection(ctx context.Context, items []domain.ConversationSummary) {
	cur := c.session.CurrentConversationID()
	exists := false
	for _, it := range items {
		if it.ConversationID == cur {
			exists = true
			break
		}
	}

	switch {
	case cur == "" && len(items) > 0:
		c.session.SetCurrent(ctx, summaryID(items[0]))
	case cur != "" && !exists && len(items) > 0:
		c.logger.Info("active conversation no longer listed, switching to most recent", "conversation_id", cur)
		c.session.SetCurrent(ctx, summaryID(items[0]))
	case cur != "" && len(items) == 0:
		// An empty listing right after creating a conversation is the
		// backend still catching up, not a deletion.
		if !c.session.JustCreated() {
			c.session.SetCurrent(ctx, "")
		}
	}
}

// CheckWelcome asks the backend for a first-time welcome message and, when
// one is due, seeds the chat with it and adopts its conversation. All
// failures are silent: the user just starts without a greeting.
func (c *Conversations) CheckWelcome(ctx context.Context) {
	res, err := c.api.Welcome(ctx)
	if err != nil {
		c.logger.Warn("welcome check failed", "error", err)
		return
	}
	if !res.NeedsWelcome || res.Message == "" {
		return
	}

	id := res.MessageID
	if id == "" {
		id = domain.MessageID("welcome_" + string(domain.NewMessageID(c.now())))
	}
	c.session.ReplaceMessages([]domain.Message{{
		ID:        id,
		Text:      res.Message,
		Sender:    domain.SenderBot,
		Time:      domain.DisplayTime(res.Timestamp, c.now),
		Sources:   []string{},
		Timestamp: res.Timestamp,
	}})

	if res.ConversationID != "" {
		c.session.SetCurrent(ctx, res.ConversationID)
		c.session.MarkJustCreated()
	}

	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("conversation refresh after welcome failed", "error", err)
	}
}

func (c *Conversations) setItems(items []domain.ConversationSummary) {
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
}

func (c *Conversations) setLoading(v bool) {
	c.mu.Lock()
	c.loading = v
	c.mu.Unlock()
}

// summaryID prefers the backend conversation_id field and falls back to the
// row ID, matching how the picker resolves a selection.
func summaryID(s domain.ConversationSummary) domain.ConversationID {
	if s.ConversationID != "" {
		return s.ConversationID
	}
	return domain.ConversationID(s.ID)
}
