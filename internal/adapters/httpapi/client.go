package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/thewijay/intima-chat/internal/config"
	"github.com/thewijay/intima-chat/internal/core/domain"
)

// tokenInvalidCode is the backend's sentinel for an expired or bad token.
const tokenInvalidCode = "token_not_valid"

// TokenSource supplies the bearer token for outgoing requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is the HTTP implementation of ports.ChatAPI. It classifies backend
// failures into the domain taxonomy: token expiry becomes
// domain.ErrAuthExpired, a history 404 becomes domain.ErrConversationNotFound
// (a just-created conversation is legitimately absent for a short window),
// everything else surfaces as a plain error.
type Client struct {
	http   *http.Client
	cfg    config.Config
	tokens TokenSource
}

// New creates the API client.
func New(cfg config.Config, tokens TokenSource) *Client {
	return &Client{
		http:   &http.Client{Timeout: 60 * time.Second},
		cfg:    cfg,
		tokens: tokens,
	}
}

type sendBody struct {
	Question       string  `json:"question"`
	Model          string  `json:"model"`
	Limit          int     `json:"limit"`
	ConversationID *string `json:"conversation_id"`
	MessageID      *string `json:"message_id"`
}

type sendResponse struct {
	Success        bool     `json:"success"`
	Answer         string   `json:"answer"`
	MessageID      string   `json:"message_id"`
	Timestamp      string   `json:"timestamp"`
	Sources        []string `json:"sources"`
	ConversationID string   `json:"conversation_id"`
	Message        string   `json:"message"`
	Error          string   `json:"error"`
}

// SendMessage implements ports.ChatAPI.
func (c *Client) SendMessage(ctx context.Context, req domain.SendRequest) (domain.SendResult, error) {
	body := sendBody{
		Question: req.Question,
		Model:    req.Model,
		Limit:    req.Limit,
	}
	if req.ConversationID != "" {
		id := string(req.ConversationID)
		body.ConversationID = &id
	}
	if req.MessageID != "" {
		id := string(req.MessageID)
		body.MessageID = &id
	}

	var res sendResponse
	if err := c.post(ctx, c.cfg.ChatURL, body, &res); err != nil {
		return domain.SendResult{}, err
	}
	return domain.SendResult{
		Answer:         res.Answer,
		MessageID:      domain.MessageID(res.MessageID),
		ConversationID: domain.ConversationID(res.ConversationID),
		Timestamp:      parseTime(res.Timestamp),
		Sources:        res.Sources,
	}, nil
}

type conversationRow struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
	CreatedAt      string `json:"created_at"`
	LastUpdated    string `json:"last_updated"`
	LastMessage    *struct {
		Text string `json:"text"`
	} `json:"last_message"`
}

type listResponse struct {
	Success       bool              `json:"success"`
	Conversations []conversationRow `json:"conversations"`
}

// ListConversations implements ports.ChatAPI.
func (c *Client) ListConversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	var res listResponse
	if err := c.get(ctx, c.cfg.ConversationsURL, true, &res); err != nil {
		return nil, err
	}

	out := make([]domain.ConversationSummary, 0, len(res.Conversations))
	for _, row := range res.Conversations {
		s := domain.ConversationSummary{
			ID:             row.ID,
			ConversationID: domain.ConversationID(row.ConversationID),
			Title:          row.Title,
			CreatedAt:      parseTime(row.CreatedAt),
			LastUpdated:    parseTime(row.LastUpdated),
		}
		if row.LastMessage != nil {
			s.LastMessage = row.LastMessage.Text
		}
		out = append(out, s)
	}
	return out, nil
}

type historyRow struct {
	MessageID string   `json:"message_id"`
	Question  string   `json:"question"`
	Answer    string   `json:"answer"`
	Timestamp string   `json:"timestamp"`
	Sources   []string `json:"sources"`
}

type historyResponse struct {
	Success           bool         `json:"success"`
	ConversationID    string       `json:"conversation_id"`
	ConversationTitle string       `json:"conversation_title"`
	Messages          []historyRow `json:"messages"`
}

// History implements ports.ChatAPI.
func (c *Client) History(ctx context.Context, id domain.ConversationID) (domain.HistoryResult, error) {
	if id == "" {
		return domain.HistoryResult{}, fmt.Errorf("conversation id is required")
	}

	u := c.cfg.HistoryURL + "?conversation_id=" + url.QueryEscape(string(id))
	var res historyResponse
	if err := c.get(ctx, u, true, &res); err != nil {
		return domain.HistoryResult{}, err
	}

	records := make([]domain.HistoryRecord, 0, len(res.Messages))
	for _, row := range res.Messages {
		records = append(records, domain.HistoryRecord{
			MessageID: domain.MessageID(row.MessageID),
			Question:  row.Question,
			Answer:    row.Answer,
			Timestamp: parseTime(row.Timestamp),
			Sources:   row.Sources,
		})
	}
	return domain.HistoryResult{
		ConversationID: domain.ConversationID(res.ConversationID),
		Title:          res.ConversationTitle,
		Records:        records,
	}, nil
}

type welcomeResponse struct {
	Success        bool   `json:"success"`
	NeedsWelcome   bool   `json:"needs_welcome"`
	WelcomeMessage string `json:"welcome_message"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Timestamp      string `json:"timestamp"`
}

// Welcome implements ports.ChatAPI.
func (c *Client) Welcome(ctx context.Context) (domain.WelcomeResult, error) {
	var res welcomeResponse
	if err := c.get(ctx, c.cfg.WelcomeURL, true, &res); err != nil {
		return domain.WelcomeResult{}, err
	}
	return domain.WelcomeResult{
		NeedsWelcome:   res.NeedsWelcome,
		Message:        res.WelcomeMessage,
		ConversationID: domain.ConversationID(res.ConversationID),
		MessageID:      domain.MessageID(res.MessageID),
		Timestamp:      parseTime(res.Timestamp),
	}, nil
}

// Health implements ports.ChatAPI. The probe is unauthenticated.
func (c *Client) Health(ctx context.Context) error {
	var res map[string]any
	return c.get(ctx, c.cfg.HealthURL, false, &res)
}

func (c *Client) post(ctx context.Context, rawURL string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, true, out)
}

func (c *Client) get(ctx context.Context, rawURL string, authed bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, authed, out)
}

func (c *Client) do(req *http.Request, authed bool, out any) error {
	req.Header.Set("Content-Type", "application/json")
	if authed {
		tok, err := c.tokens.Token(req.Context())
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.classifyError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type apiError struct {
	Code     string `json:"code"`
	Detail   string `json:"detail"`
	Message  string `json:"message"`
	Error    string `json:"error"`
	Messages []struct {
		Message string `json:"message"`
	} `json:"messages"`
}

func (e apiError) authExpired() bool {
	if e.Code == tokenInvalidCode {
		return true
	}
	for _, m := range e.Messages {
		// Only the token-expiry sentinel counts; an unrelated "expired"
		// in a message body must not force a re-login.
		msg := strings.ToLower(m.Message)
		if strings.Contains(msg, "token") && strings.Contains(msg, "expired") {
			return true
		}
	}
	return false
}

func (e apiError) text() string {
	for _, s := range []string{e.Message, e.Detail, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// classifyError maps a non-2xx response onto the domain error taxonomy.
func (c *Client) classifyError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var body apiError
	_ = json.Unmarshal(raw, &body)

	if body.authExpired() {
		return domain.ErrAuthExpired
	}
	if resp.StatusCode == http.StatusNotFound && strings.Contains(resp.Request.URL.Path, "history") {
		return domain.ErrConversationNotFound
	}
	if msg := body.text(); msg != "" {
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("backend returned %d", resp.StatusCode)
}

// parseTime is lenient: the UI falls back to the local clock for zero times.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
