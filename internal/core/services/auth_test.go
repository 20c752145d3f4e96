package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thewijay/intima-chat/internal/adapters/storage"
	"github.com/thewijay/intima-chat/internal/core/domain"
	"github.com/thewijay/intima-chat/internal/core/ports"
)

func TestAuth_TokenFromStorage(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	require.NoError(t, store.Set(ctx, "authToken", "tok-123"))

	a := NewAuth(testLogger(), store, NewSession(testLogger(), store))
	tok, err := a.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok)
}

func TestAuth_TokenMissing(t *testing.T) {
	store := storage.NewMemStore()
	a := NewAuth(testLogger(), store, NewSession(testLogger(), store))

	_, err := a.Token(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
}

func TestAuth_LoginPersists(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	a := NewAuth(testLogger(), store, NewSession(testLogger(), store))

	require.NoError(t, a.Login(ctx, "tok-456"))

	saved, err := store.Get(ctx, "authToken")
	require.NoError(t, err)
	assert.Equal(t, "tok-456", saved)

	tok, err := a.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-456", tok)
}

func TestAuth_LoginRejectsEmptyToken(t *testing.T) {
	store := storage.NewMemStore()
	a := NewAuth(testLogger(), store, NewSession(testLogger(), store))

	assert.ErrorIs(t, a.Login(context.Background(), ""), domain.ErrAuthRequired)
}

func TestAuth_LogoutClearsEverything(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	session := NewSession(testLogger(), store)
	a := NewAuth(testLogger(), store, session)

	require.NoError(t, a.Login(ctx, "tok-789"))
	session.SetCurrent(ctx, "conv-1")
	session.AppendMessage(domain.Message{ID: "m1", Text: "private"})

	require.NoError(t, a.Logout(ctx))

	_, err := a.Token(ctx)
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
	assert.Empty(t, session.CurrentConversationID())
	assert.Zero(t, session.MessageCount())

	_, err = store.Get(ctx, "authToken")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)
	_, err = store.Get(ctx, "currentConversationId")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)
}
