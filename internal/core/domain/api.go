package domain

import "time"

// SendRequest carries one user question to the chat endpoint. Model and
// Limit are passed through to the backend untouched.
type SendRequest struct {
	Question       string         `json:"question"`
	ConversationID ConversationID `json:"conversation_id"`
	MessageID      MessageID      `json:"message_id"`
	Model          string         `json:"model"`
	Limit          int            `json:"limit"`
}

// SendResult is the answered half of a chat round-trip
type SendResult struct {
	Answer         string
	MessageID      MessageID
	ConversationID ConversationID
	Timestamp      time.Time
	Sources        []string
}

// HistoryResult is the message history for one conversation
type HistoryResult struct {
	ConversationID ConversationID
	Title          string
	Records        []HistoryRecord
}

// WelcomeResult reports whether the backend wants to greet a first-time user
type WelcomeResult struct {
	NeedsWelcome   bool
	Message        string
	ConversationID ConversationID
	MessageID      MessageID
	Timestamp      time.Time
}
