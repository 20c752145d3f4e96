package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thewijay/intima-chat/internal/core/domain"
)

func newTestHistory(api *fakeAPI, session *Session) *History {
	h := NewHistory(testLogger(), api, session)
	h.delay = func(int) time.Duration { return 0 }
	return h
}

func TestHistory_LoadReplacesMessages(t *testing.T) {
	ctx := context.Background()
	session := testSession()
	session.AppendMessage(domain.Message{ID: "stale", Sender: domain.SenderBot})

	api := &fakeAPI{
		historyFn: func(_ context.Context, id domain.ConversationID) (domain.HistoryResult, error) {
			return domain.HistoryResult{
				ConversationID: id,
				Title:          "Greetings",
				Records: []domain.HistoryRecord{
					{MessageID: "m1", Question: "hi", Answer: "hello", Timestamp: time.Now()},
				},
			}, nil
		},
	}

	out, err := newTestHistory(api, session).Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "Greetings", out.Title)
	assert.False(t, out.NotFound)

	msgs := session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.MessageID("m1"), msgs[0].ID)
	assert.Equal(t, domain.MessageID("ai_m1"), msgs[1].ID)
}

func TestHistory_LoadNotFoundIsEmptySuccess(t *testing.T) {
	session := testSession()
	session.AppendMessage(domain.Message{ID: "optimistic", Sender: domain.SenderUser})

	api := &fakeAPI{
		historyFn: func(context.Context, domain.ConversationID) (domain.HistoryResult, error) {
			return domain.HistoryResult{}, domain.ErrConversationNotFound
		},
	}

	out, err := newTestHistory(api, session).Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.True(t, out.NotFound)
	assert.Empty(t, out.Messages)

	// Local messages survive the not-found window.
	assert.Equal(t, 1, session.MessageCount())
}

func TestHistory_LoadAuthExpiredPropagates(t *testing.T) {
	session := testSession()
	session.AppendMessage(domain.Message{ID: "m1", Sender: domain.SenderBot})

	api := &fakeAPI{
		historyFn: func(context.Context, domain.ConversationID) (domain.HistoryResult, error) {
			return domain.HistoryResult{}, domain.ErrAuthExpired
		},
	}

	_, err := newTestHistory(api, session).Load(context.Background(), "conv-1")
	assert.ErrorIs(t, err, domain.ErrAuthExpired)
	assert.Equal(t, 1, session.MessageCount())
}

func TestHistory_LoadTransientErrorKeepsMessages(t *testing.T) {
	session := testSession()
	session.AppendMessage(domain.Message{ID: "m1", Sender: domain.SenderBot})

	api := &fakeAPI{
		historyFn: func(context.Context, domain.ConversationID) (domain.HistoryResult, error) {
			return domain.HistoryResult{}, errors.New("connection refused")
		},
	}

	out, err := newTestHistory(api, session).Load(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, 1, session.MessageCount())
}

func TestHistory_LoadDiscardsResultAfterSwitch(t *testing.T) {
	ctx := context.Background()
	session := testSession()
	session.SetCurrent(ctx, "conv-a")
	session.AppendMessage(domain.Message{ID: "a1", Sender: domain.SenderBot})

	api := &fakeAPI{
		historyFn: func(_ context.Context, id domain.ConversationID) (domain.HistoryResult, error) {
			// Simulate the user switching away while the request is in
			// flight.
			session.SetCurrent(ctx, "conv-b")
			return domain.HistoryResult{
				ConversationID: id,
				Records:        []domain.HistoryRecord{{MessageID: "late", Answer: "too late"}},
			}, nil
		},
	}

	out, err := newTestHistory(api, session).Load(ctx, "conv-a")
	require.NoError(t, err)
	assert.True(t, out.Stale)
	for _, m := range session.Messages() {
		assert.NotEqual(t, domain.MessageID("ai_late"), m.ID)
	}
}

func TestHistory_LoadWithRetry_EventualSuccess(t *testing.T) {
	session := testSession()

	attempts := 0
	api := &fakeAPI{
		historyFn: func(_ context.Context, id domain.ConversationID) (domain.HistoryResult, error) {
			attempts++
			if attempts < 3 {
				return domain.HistoryResult{}, domain.ErrConversationNotFound
			}
			return domain.HistoryResult{
				ConversationID: id,
				Records:        []domain.HistoryRecord{{MessageID: "m1", Question: "q", Answer: "a"}},
			}, nil
		},
	}

	out, err := newTestHistory(api, session).LoadWithRetry(context.Background(), "conv-1", 3)
	require.NoError(t, err)
	assert.False(t, out.NotFound)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, session.MessageCount())
}

func TestHistory_LoadWithRetry_GivesUpQuietly(t *testing.T) {
	session := testSession()
	api := &fakeAPI{
		historyFn: func(context.Context, domain.ConversationID) (domain.HistoryResult, error) {
			return domain.HistoryResult{}, domain.ErrConversationNotFound
		},
	}

	out, err := newTestHistory(api, session).LoadWithRetry(context.Background(), "conv-1", 3)
	require.NoError(t, err)
	assert.True(t, out.NotFound)
	// retries=3 means one initial attempt plus three retries.
	assert.Equal(t, 4, api.historyCallCount())
}

func TestHistory_LoadWithRetry_StopsOnOtherFailure(t *testing.T) {
	session := testSession()
	api := &fakeAPI{
		historyFn: func(context.Context, domain.ConversationID) (domain.HistoryResult, error) {
			return domain.HistoryResult{}, errors.New("boom")
		},
	}

	_, err := newTestHistory(api, session).LoadWithRetry(context.Background(), "conv-1", 3)
	require.NoError(t, err)
	// Transient failures resolve to "keep what we have"; only not-found is
	// worth polling again.
	assert.Equal(t, 1, api.historyCallCount())
}
