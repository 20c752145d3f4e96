package services

import (
	"context"
	"log/slog"

	"github.com/thewijay/intima-chat/internal/core/domain"
	"github.com/thewijay/intima-chat/internal/core/ports"
)

// Client is the explicitly constructed composition root for one chat
// session: session state, history reconciliation, the send pipeline, the
// conversation listing, and token management. Multiple isolated clients can
// coexist in one process, which is also how the tests run.
type Client struct {
	logger        *slog.Logger
	api           ports.ChatAPI
	session       *Session
	history       *History
	pipeline      *Pipeline
	conversations *Conversations
	auth          *Auth
}

// NewClient wires the remaining services around a session and auth pair.
// Session and Auth are built first by the caller because the HTTP adapter
// needs Auth as its token source before the rest can exist.
func NewClient(logger *slog.Logger, api ports.ChatAPI, session *Session, auth *Auth) *Client {
	conversations := NewConversations(logger, api, session)
	return &Client{
		logger:        logger,
		api:           api,
		session:       session,
		history:       NewHistory(logger, api, session),
		pipeline:      NewPipeline(logger, api, session, conversations),
		conversations: conversations,
		auth:          auth,
	}
}

func (c *Client) Session() *Session             { return c.session }
func (c *Client) History() *History             { return c.history }
func (c *Client) Pipeline() *Pipeline           { return c.pipeline }
func (c *Client) Conversations() *Conversations { return c.conversations }
func (c *Client) Auth() *Auth                   { return c.auth }

// Start brings the session up: restores the persisted conversation, checks
// for a first-run welcome, refreshes the listing, and loads history for the
// restored conversation with the post-creation retry loop. Backend liveness
// is probed but only logged; startup succeeds offline.
func (c *Client) Start(ctx context.Context) error {
	c.session.Restore(ctx)

	if err := c.api.Health(ctx); err != nil {
		c.logger.Warn("backend health check failed", "error", err)
	}

	c.conversations.CheckWelcome(ctx)

	if err := c.conversations.Refresh(ctx); err != nil {
		return err
	}

	if id := c.session.CurrentConversationID(); id != "" {
		if _, err := c.history.LoadWithRetry(ctx, id, defaultHistoryRetries); err != nil {
			return err
		}
	}
	return nil
}

// SwitchTo selects an existing conversation and loads its history. The
// current ID updates synchronously; the load that follows is guarded by the
// session's sequence number, so a slower, older load can never overwrite
// this conversation's messages.
func (c *Client) SwitchTo(ctx context.Context, id domain.ConversationID) (HistoryOutcome, error) {
	c.session.SwitchTo(ctx, id)
	return c.history.Load(ctx, id)
}

// StartNew clears the active conversation; the next Send creates one.
func (c *Client) StartNew(ctx context.Context) {
	c.session.StartNew(ctx)
}

// Send submits one question through the pipeline.
func (c *Client) Send(ctx context.Context, text string, opts SendOptions) (domain.Message, error) {
	return c.pipeline.Send(ctx, text, opts)
}

// Logout drops the token and resets all session state.
func (c *Client) Logout(ctx context.Context) error {
	return c.auth.Logout(ctx)
}
