package services

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/thewijay/intima-chat/internal/adapters/storage"
	"github.com/thewijay/intima-chat/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func testSession() *Session {
	return NewSession(testLogger(), storage.NewMemStore())
}

// fakeAPI is a scriptable ports.ChatAPI. Unset functions return zero values.
type fakeAPI struct {
	mu sync.Mutex

	sendFn    func(ctx context.Context, req domain.SendRequest) (domain.SendResult, error)
	listFn    func(ctx context.Context) ([]domain.ConversationSummary, error)
	historyFn func(ctx context.Context, id domain.ConversationID) (domain.HistoryResult, error)
	welcomeFn func(ctx context.Context) (domain.WelcomeResult, error)

	sendCalls    []domain.SendRequest
	historyCalls []domain.ConversationID
	listCalls    int
}

func (f *fakeAPI) SendMessage(ctx context.Context, req domain.SendRequest) (domain.SendResult, error) {
	f.mu.Lock()
	f.sendCalls = append(f.sendCalls, req)
	f.mu.Unlock()
	if f.sendFn == nil {
		return domain.SendResult{}, nil
	}
	return f.sendFn(ctx, req)
}

func (f *fakeAPI) ListConversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx)
}

func (f *fakeAPI) History(ctx context.Context, id domain.ConversationID) (domain.HistoryResult, error) {
	f.mu.Lock()
	f.historyCalls = append(f.historyCalls, id)
	f.mu.Unlock()
	if f.historyFn == nil {
		return domain.HistoryResult{}, nil
	}
	return f.historyFn(ctx, id)
}

func (f *fakeAPI) Welcome(ctx context.Context) (domain.WelcomeResult, error) {
	if f.welcomeFn == nil {
		return domain.WelcomeResult{}, nil
	}
	return f.welcomeFn(ctx)
}

func (f *fakeAPI) Health(context.Context) error {
	return nil
}

func (f *fakeAPI) historyCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.historyCalls)
}

func (f *fakeAPI) lastSend() domain.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendCalls[len(f.sendCalls)-1]
}
