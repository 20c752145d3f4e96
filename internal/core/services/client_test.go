package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thewijay/intima-chat/internal/adapters/storage"
	"github.com/thewijay/intima-chat/internal/core/domain"
)

func newTestClient(api *fakeAPI, store *storage.MemStore) *Client {
	session := NewSession(testLogger(), store)
	auth := NewAuth(testLogger(), store, session)
	c := NewClient(testLogger(), api, session, auth)
	c.history.delay = func(int) time.Duration { return 0 }
	return c
}

func TestClient_StartRestoresAndLoadsHistory(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	require.NoError(t, store.Set(ctx, "currentConversationId", "conv-1"))

	attempts := 0
	api := &fakeAPI{
		listFn: func(context.Context) ([]domain.ConversationSummary, error) {
			return summaries("conv-1"), nil
		},
		historyFn: func(_ context.Context, id domain.ConversationID) (domain.HistoryResult, error) {
			// First probe lands before the backend has the conversation.
			attempts++
			if attempts == 1 {
				return domain.HistoryResult{}, domain.ErrConversationNotFound
			}
			return domain.HistoryResult{
				ConversationID: id,
				Records:        []domain.HistoryRecord{{MessageID: "m1", Question: "q", Answer: "a"}},
			}, nil
		},
	}
	c := newTestClient(api, store)

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, domain.ConversationID("conv-1"), c.Session().CurrentConversationID())
	assert.Equal(t, 2, c.Session().MessageCount())
	assert.Equal(t, 2, attempts)
}

func TestClient_StartFreshPicksMostRecent(t *testing.T) {
	api := &fakeAPI{
		listFn: func(context.Context) ([]domain.ConversationSummary, error) {
			return summaries("conv-new", "conv-old"), nil
		},
		historyFn: func(_ context.Context, id domain.ConversationID) (domain.HistoryResult, error) {
			return domain.HistoryResult{ConversationID: id}, nil
		},
	}
	c := newTestClient(api, storage.NewMemStore())

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, domain.ConversationID("conv-new"), c.Session().CurrentConversationID())
}

func TestClient_StartEmptyAccount(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(api, storage.NewMemStore())

	require.NoError(t, c.Start(context.Background()))
	assert.Empty(t, c.Session().CurrentConversationID())
	assert.Zero(t, api.historyCallCount())
}

func TestClient_StartAuthExpired(t *testing.T) {
	api := &fakeAPI{
		listFn: func(context.Context) ([]domain.ConversationSummary, error) {
			return nil, domain.ErrAuthExpired
		},
	}
	c := newTestClient(api, storage.NewMemStore())

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthExpired)
}

func TestClient_StartSeedsWelcome(t *testing.T) {
	api := &fakeAPI{
		welcomeFn: func(context.Context) (domain.WelcomeResult, error) {
			return domain.WelcomeResult{
				NeedsWelcome:   true,
				Message:        "Hello, newcomer!",
				ConversationID: "conv-w",
				MessageID:      "msg-w",
			}, nil
		},
		listFn: func(context.Context) ([]domain.ConversationSummary, error) {
			// The welcome conversation has no listing row yet.
			return nil, nil
		},
		historyFn: func(context.Context, domain.ConversationID) (domain.HistoryResult, error) {
			return domain.HistoryResult{}, domain.ErrConversationNotFound
		},
	}
	c := newTestClient(api, storage.NewMemStore())

	require.NoError(t, c.Start(context.Background()))
	// The empty listing must not evict the freshly seeded welcome chat.
	assert.Equal(t, domain.ConversationID("conv-w"), c.Session().CurrentConversationID())

	msgs := c.Session().Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello, newcomer!", msgs[0].Text)
}

func TestClient_SwitchToLoadsHistory(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{
		historyFn: func(_ context.Context, id domain.ConversationID) (domain.HistoryResult, error) {
			return domain.HistoryResult{
				ConversationID: id,
				Title:          "Other chat",
				Records:        []domain.HistoryRecord{{MessageID: "o1", Question: "x", Answer: "y"}},
			}, nil
		},
	}
	c := newTestClient(api, storage.NewMemStore())
	c.Session().SetCurrent(ctx, "conv-a")
	c.Session().AppendMessage(domain.Message{ID: "a1"})

	out, err := c.SwitchTo(ctx, "conv-b")
	require.NoError(t, err)
	assert.Equal(t, "Other chat", out.Title)
	assert.Equal(t, domain.ConversationID("conv-b"), c.Session().CurrentConversationID())

	msgs := c.Session().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.MessageID("o1"), msgs[0].ID)
}

func TestClient_StartNewThenSendCreates(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{
		sendFn: func(context.Context, domain.SendRequest) (domain.SendResult, error) {
			return domain.SendResult{Answer: "created", ConversationID: "conv-srv"}, nil
		},
		listFn: func(context.Context) ([]domain.ConversationSummary, error) {
			return summaries("conv-srv"), nil
		},
	}
	c := newTestClient(api, storage.NewMemStore())
	c.pipeline.schedule = func(_ time.Duration, fn func()) { fn() }
	c.Session().SetCurrent(ctx, "conv-old")

	c.StartNew(ctx)
	assert.Empty(t, c.Session().CurrentConversationID())

	_, err := c.Send(ctx, "first message", SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationID("conv-srv"), c.Session().CurrentConversationID())
}
