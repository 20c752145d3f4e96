package domain

import "time"

// DisplayTime renders a timestamp the way the chat UI shows it (hour:minute,
// local time). A zero timestamp falls back to now so a bubble never renders
// without a time.
func DisplayTime(t time.Time, now func() time.Time) string {
	if t.IsZero() {
		t = now()
	}
	return t.Local().Format("15:04")
}

// UserMessageFromRecord builds the user half of a history record
func UserMessageFromRecord(rec HistoryRecord, now func() time.Time) Message {
	return Message{
		ID:        rec.MessageID,
		Text:      rec.Question,
		Sender:    SenderUser,
		Time:      DisplayTime(rec.Timestamp, now),
		Timestamp: rec.Timestamp,
	}
}

// BotMessageFromRecord builds the bot half of a history record. The ID is
// prefixed with "ai_" so it never collides with the paired user message.
func BotMessageFromRecord(rec HistoryRecord, now func() time.Time) Message {
	sources := rec.Sources
	if sources == nil {
		sources = []string{}
	}
	return Message{
		ID:        MessageID("ai_" + string(rec.MessageID)),
		Text:      rec.Answer,
		Sender:    SenderBot,
		Time:      DisplayTime(rec.Timestamp, now),
		Sources:   sources,
		Timestamp: rec.Timestamp,
	}
}

// FormatHistory converts backend history records to ordered chat messages.
// Each record yields a user entry and a bot entry, except records with an
// empty question (server-synthesized welcome messages), which yield only the
// bot entry.
func FormatHistory(records []HistoryRecord, now func() time.Time) []Message {
	out := make([]Message, 0, len(records)*2)
	for _, rec := range records {
		if rec.Question != "" {
			out = append(out, UserMessageFromRecord(rec, now))
		}
		out = append(out, BotMessageFromRecord(rec, now))
	}
	return out
}
