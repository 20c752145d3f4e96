package domain

import (
	"crypto/rand"
	"errors"
	"strconv"
	"time"
)

// ConversationID uniquely identifies a conversation. Empty means "no
// conversation yet"; the next sent message creates one.
type ConversationID string

// MessageID uniquely identifies a single chat message
type MessageID string

// Sender tags who authored a message
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is a single chat bubble as the UI layer consumes it
type Message struct {
	ID        MessageID `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Time      string    `json:"time"` // display time, hour:minute
	Sources   []string  `json:"sources,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationSummary is one row of the conversation listing endpoint
type ConversationSummary struct {
	ID             string         `json:"id"`
	ConversationID ConversationID `json:"conversation_id"`
	Title          string         `json:"title"`
	CreatedAt      time.Time      `json:"created_at"`
	LastUpdated    time.Time      `json:"last_updated"`
	LastMessage    string         `json:"last_message,omitempty"`
}

// HistoryRecord is one question/answer pair as the backend stores it.
// A record with an empty Question is a server-synthesized message (welcome)
// that has no user half.
type HistoryRecord struct {
	MessageID MessageID `json:"message_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
	Sources   []string  `json:"sources,omitempty"`
}

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrAuthExpired          = errors.New("auth token expired")
	ErrAuthRequired         = errors.New("authentication required")
	ErrSendInFlight         = errors.New("a send is already in flight")
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randBase36(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = idAlphabet[int(b[i])%len(idAlphabet)]
	}
	return string(b)
}

// NewConversationID generates a local conversation ID (conv_<unix-ms>_<rand>).
// It is only a placeholder for the first send; the server-assigned ID is
// authoritative once the round-trip succeeds.
func NewConversationID(now time.Time) ConversationID {
	return ConversationID("conv_" + formatMillis(now) + "_" + randBase36(9))
}

// NewMessageID generates a client-side message ID (msg_<unix-ms>_<rand>)
func NewMessageID(now time.Time) MessageID {
	return MessageID("msg_" + formatMillis(now) + "_" + randBase36(9))
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
