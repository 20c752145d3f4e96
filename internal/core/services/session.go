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

// conversationKey is the fixed storage key for the active conversation ID.
const conversationKey = "currentConversationId"

// justCreatedWindow is how long an empty history or listing response is not
// trusted to mean "conversation gone" after a conversation was created
// locally or restored from storage.
const justCreatedWindow = 5 * time.Second

// Session is the single source of truth for which conversation is active and
// for the locally held message list. The active ID is written through to the
// key-value store so it survives restarts; the in-memory value always updates
// first so callers never wait on storage I/O.
type Session struct {
	logger *slog.Logger
	store  ports.KeyValueStore
	now    func() time.Time

	mu               sync.RWMutex
	currentID        domain.ConversationID
	messages         []domain.Message
	justCreatedUntil time.Time
	loadSeq          uint64
	loading          int
}

// NewSession creates a session backed by the given store.
func NewSession(logger *slog.Logger, store ports.KeyValueStore) *Session {
	return &Session{
		logger: logger,
		store:  store,
		now:    time.Now,
	}
}

// Restore reads the persisted conversation ID at startup. A restored ID is
// treated as just created so the first (possibly still empty) history fetch
// cannot clear it. An absent key is valid and leaves the session empty.
func (s *Session) Restore(ctx context.Context) {
	saved, err := s.store.Get(ctx, conversationKey)
	if err != nil {
		if !errors.Is(err, ports.ErrKeyNotFound) {
			s.logger.Warn("failed to restore conversation id", "error", err)
		}
		return
	}
	if saved == "" {
		return
	}

	s.mu.Lock()
	s.currentID = domain.ConversationID(saved)
	s.justCreatedUntil = s.now().Add(justCreatedWindow)
	s.loadSeq++
	s.mu.Unlock()

	s.logger.Info("restored conversation", "conversation_id", saved)
}

// SetCurrent makes id the active conversation and persists it. An empty id
// means "no conversation yet" and synchronously clears the visible message
// list so stale messages never leak into a new thread. Storage failures are
// logged, never propagated; the in-memory state has already changed.
func (s *Session) SetCurrent(ctx context.Context, id domain.ConversationID) {
	s.mu.Lock()
	s.currentID = id
	s.loadSeq++ // invalidate any in-flight history load
	if id == "" {
		s.messages = nil
		s.justCreatedUntil = time.Time{}
	}
	s.mu.Unlock()

	var err error
	if id == "" {
		err = s.store.Delete(ctx, conversationKey)
	} else {
		err = s.store.Set(ctx, conversationKey, string(id))
	}
	if err != nil {
		s.logger.Warn("failed to persist conversation id", "conversation_id", id, "error", err)
	}
}

// SwitchTo selects an existing conversation. Callers are expected to load
// its history afterwards (the Client facade does both).
func (s *Session) SwitchTo(ctx context.Context, id domain.ConversationID) {
	s.SetCurrent(ctx, id)
}

// StartNew signals "no conversation yet"; the next sent message creates one.
func (s *Session) StartNew(ctx context.Context) {
	s.SetCurrent(ctx, "")
}

// MarkJustCreated opens the grace window during which empty backend results
// are not trusted. The window expires on read rather than via a timer.
func (s *Session) MarkJustCreated() {
	s.mu.Lock()
	s.justCreatedUntil = s.now().Add(justCreatedWindow)
	s.mu.Unlock()
}

// JustCreated reports whether the session is still inside the grace window.
func (s *Session) JustCreated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now().Before(s.justCreatedUntil)
}

// CurrentConversationID returns the active conversation ID, empty when none.
func (s *Session) CurrentConversationID() domain.ConversationID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

// Messages returns a copy of the message list in chronological order.
func (s *Session) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// MessageCount returns the current length of the message list.
func (s *Session) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// AppendMessage adds one message to the end of the list.
func (s *Session) AppendMessage(msg domain.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// ReplaceMessages swaps the whole list (welcome seeding).
func (s *Session) ReplaceMessages(msgs []domain.Message) {
	s.mu.Lock()
	s.messages = append([]domain.Message(nil), msgs...)
	s.mu.Unlock()
}

// HistoryLoading reports whether at least one history load is in flight.
func (s *Session) HistoryLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// Reset clears everything on logout: active ID, persisted key, messages,
// grace window.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	s.currentID = ""
	s.messages = nil
	s.justCreatedUntil = time.Time{}
	s.loadSeq++
	s.mu.Unlock()

	if err := s.store.Delete(ctx, conversationKey); err != nil {
		s.logger.Warn("failed to clear persisted conversation id", "error", err)
	}
}

// beginHistoryLoad tags a new history load. The returned sequence must be
// presented back to applyHistory; any SetCurrent or newer load in between
// makes it stale.
func (s *Session) beginHistoryLoad() uint64 {
	s.mu.Lock()
	s.loadSeq++
	seq := s.loadSeq
	s.loading++
	s.mu.Unlock()
	return seq
}

// endHistoryLoad closes the loading state opened by beginHistoryLoad.
func (s *Session) endHistoryLoad() {
	s.mu.Lock()
	if s.loading > 0 {
		s.loading--
	}
	s.mu.Unlock()
}

// applyHistory commits a loaded message list if the load is still current.
// An empty result never clears an already populated list: a freshly created
// conversation is legitimately absent from the backend for a short window,
// and optimistic or welcome messages must survive it. Returns false when the
// result was discarded as stale.
func (s *Session) applyHistory(seq uint64, msgs []domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.loadSeq {
		return false
	}
	if len(msgs) == 0 {
		return true
	}
	s.messages = msgs
	return true
}
