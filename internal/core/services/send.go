package services

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/thewijay/intima-chat/internal/core/domain"
	"github.com/thewijay/intima-chat/internal/core/ports"
)

const (
	// DefaultModel and DefaultLimit are the passthrough options used when
	// the caller does not pick their own.
	DefaultModel = "gpt-4o-mini"
	DefaultLimit = 3

	// errorBubbleText is the single user-visible artifact for any send
	// failure, regardless of cause.
	errorBubbleText = "Sorry, I encountered an error. Please try again."

	// newConversationRefreshGrace gives the backend time to finish
	// persisting a brand-new conversation before the list is re-queried.
	newConversationRefreshGrace = time.Second
)

var errNoAnswer = errors.New("no answer in response")

// SendOptions are opaque passthrough parameters for one send.
type SendOptions struct {
	Model string
	Limit int
}

// Pipeline submits user questions and integrates answers into the session.
// Sends are single-flight: a second Send while one is unresolved is rejected,
// not queued.
type Pipeline struct {
	logger   *slog.Logger
	api      ports.ChatAPI
	session  *Session
	lists    *Conversations
	inFlight *semaphore.Weighted
	now      func() time.Time

	refreshGrace time.Duration
	schedule     func(d time.Duration, fn func())
}

// NewPipeline creates the send pipeline. lists may be nil when no
// conversation listing should be refreshed after sends.
func NewPipeline(logger *slog.Logger, api ports.ChatAPI, session *Session, lists *Conversations) *Pipeline {
	return &Pipeline{
		logger:       logger,
		api:          api,
		session:      session,
		lists:        lists,
		inFlight:     semaphore.NewWeighted(1),
		now:          time.Now,
		refreshGrace: newConversationRefreshGrace,
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
}

// Send submits one trimmed question. Empty input is a no-op; a concurrent
// send returns domain.ErrSendInFlight with no state change. The user message
// is appended optimistically before the network call, and every outcome
// appends exactly one bot-side message: the answer on success, the generic
// error bubble otherwise. The returned message is whichever bot message was
// appended.
func (p *Pipeline) Send(ctx context.Context, text string, opts SendOptions) (domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, nil
	}
	if !p.inFlight.TryAcquire(1) {
		return domain.Message{}, domain.ErrSendInFlight
	}
	defer p.inFlight.Release(1)

	// The freshly generated ID is used only for the outgoing request; the
	// server-returned ID is the one that gets committed.
	wasNew := p.session.CurrentConversationID() == ""
	convID := p.session.CurrentConversationID()
	if convID == "" {
		convID = domain.NewConversationID(p.now())
	}

	now := p.now()
	p.session.AppendMessage(domain.Message{
		ID:        domain.NewMessageID(now),
		Text:      text,
		Sender:    domain.SenderUser,
		Time:      domain.DisplayTime(now, p.now),
		Timestamp: now,
	})

	res, err := p.api.SendMessage(ctx, domain.SendRequest{
		Question:       text,
		ConversationID: convID,
		MessageID:      domain.NewMessageID(now),
		Model:          cmp.Or(opts.Model, DefaultModel),
		Limit:          cmp.Or(opts.Limit, DefaultLimit),
	})
	if err == nil && res.Answer == "" {
		// An answer-less success body is not distinguished from a
		// transport failure.
		err = errNoAnswer
	}
	if err != nil {
		p.logger.Error("send failed", "conversation_id", convID, "error", err)
		bubble := p.errorBubble()
		p.session.AppendMessage(bubble)
		return bubble, err
	}

	if wasNew && res.ConversationID != "" {
		p.session.SetCurrent(ctx, res.ConversationID)
		p.session.MarkJustCreated()
	}

	botID := res.MessageID
	if botID == "" {
		botID = domain.MessageID("ai_" + string(domain.NewMessageID(p.now())))
	}
	sources := res.Sources
	if sources == nil {
		sources = []string{}
	}
	bot := domain.Message{
		ID:        botID,
		Text:      res.Answer,
		Sender:    domain.SenderBot,
		Time:      domain.DisplayTime(res.Timestamp, p.now),
		Sources:   sources,
		Timestamp: res.Timestamp,
	}
	p.session.AppendMessage(bot)

	p.scheduleRefresh(wasNew)
	return bot, nil
}

// scheduleRefresh re-queries the conversation list after a successful send.
// A just-created conversation gets a grace delay so the backend can finish
// persisting before the list is fetched.
func (p *Pipeline) scheduleRefresh(wasNew bool) {
	if p.lists == nil {
		return
	}
	grace := time.Duration(0)
	if wasNew {
		grace = p.refreshGrace
	}
	p.schedule(grace, func() {
		if err := p.lists.Refresh(context.Background()); err != nil {
			p.logger.Warn("conversation list refresh failed", "error", err)
		}
	})
}

func (p *Pipeline) errorBubble() domain.Message {
	now := p.now()
	return domain.Message{
		ID:        domain.MessageID("error_" + string(domain.NewMessageID(now))),
		Text:      errorBubbleText,
		Sender:    domain.SenderBot,
		Time:      domain.DisplayTime(now, p.now),
		Timestamp: now,
	}
}
