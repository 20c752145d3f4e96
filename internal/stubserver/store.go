package stubserver

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// record is one stored question/answer pair.
type record struct {
	MessageID string
	Question  string
	Answer    string
	Timestamp time.Time
	Sources   []string
}

// conversation is one stored thread. VisibleAt models backend eventual
// consistency: until that instant the conversation 404s from the history and
// listing endpoints even though it already exists, which is exactly the race
// the client's bounded retry is built for.
type conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	VisibleAt time.Time
	Records   []record
}

// conversationStore holds all conversations in memory.
type conversationStore struct {
	mu    sync.RWMutex
	convs map[string]*conversation
}

func newConversationStore() *conversationStore {
	return &conversationStore{convs: make(map[string]*conversation)}
}

// create makes a new conversation with a server-assigned ID. The caller's
// locally generated ID is deliberately ignored; the server is authoritative.
func (s *conversationStore) create(title string, now time.Time, lag time.Duration) *conversation {
	conv := &conversation{
		ID:        "conv-" + uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		VisibleAt: now.Add(lag),
	}
	s.mu.Lock()
	s.convs[conv.ID] = conv
	s.mu.Unlock()
	return conv
}

// get returns a conversation only once it is visible.
func (s *conversationStore) get(id string, now time.Time) (*conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	if !ok || now.Before(conv.VisibleAt) {
		return nil, false
	}
	return conv, true
}

// lookup returns a conversation regardless of visibility. Sending to a
// conversation that exists but has not surfaced yet must still append to it.
func (s *conversationStore) lookup(id string) (*conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	return conv, ok
}

// append adds a question/answer pair and bumps the update time.
func (s *conversationStore) append(id string, rec record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return
	}
	conv.Records = append(conv.Records, rec)
	conv.UpdatedAt = rec.Timestamp
}

// records returns a copy of a conversation's records.
func (s *conversationStore) records(id string) []record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil
	}
	out := make([]record, len(conv.Records))
	copy(out, conv.Records)
	return out
}

// list returns visible conversations, most recently updated first.
func (s *conversationStore) list(now time.Time) []*conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*conversation, 0, len(s.convs))
	for _, conv := range s.convs {
		if now.Before(conv.VisibleAt) {
			continue
		}
		cp := *conv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}
