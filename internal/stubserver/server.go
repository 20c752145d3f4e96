package stubserver

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Options configure the stub's behavior.
type Options struct {
	// Tokens are accepted bearer tokens. Empty means accept any non-empty
	// token.
	Tokens []string

	// ExpiredTokens produce the token_not_valid error body the real
	// backend sends for expired sessions.
	ExpiredTokens []string

	// PersistLag is how long a just-created conversation stays invisible
	// to the history and listing endpoints, simulating backend eventual
	// consistency.
	PersistLag time.Duration

	// WelcomeMessage is served once per process on the welcome endpoint.
	// Empty disables the welcome flow.
	WelcomeMessage string
}

// Server is an in-memory implementation of the chat backend contract, used
// for local development and integration tests. It is a test double, not a
// backend: answers are canned.
type Server struct {
	logger *slog.Logger
	opts   Options
	now    func() time.Time
	store  *conversationStore
	router routers.Router

	mu       sync.Mutex
	welcomed bool

	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

// New creates the stub. The embedded OpenAPI document is loaded and every
// request is validated against it before reaching a handler.
func New(logger *slog.Logger, opts Options) (*Server, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}

	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intima_stubd_requests_total",
		Help: "HTTP requests served by the stub backend.",
	}, []string{"path", "code"})
	registry.MustRegister(requests)

	return &Server{
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		store:    newConversationStore(),
		router:   router,
		registry: registry,
		requests: requests,
	}, nil
}

// Handler returns the full handler chain: metrics, OpenAPI validation, then
// the endpoint mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ai/chat/", s.handleSend)
	mux.HandleFunc("GET /ai/chat/conversations/", s.handleList)
	mux.HandleFunc("GET /ai/chat/history/", s.handleHistory)
	mux.HandleFunc("GET /ai/welcome/", s.handleWelcome)
	mux.HandleFunc("GET /ai/health/", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return s.countRequests(s.validateRequests(mux))
}

// --- Handlers ---

type sendBody struct {
	Question       string  `json:"question"`
	Model          string  `json:"model"`
	Limit          int     `json:"limit"`
	ConversationID *string `json:"conversation_id"`
	MessageID      *string `json:"message_id"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}

	var body sendBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid JSON body"})
		return
	}
	if body.Question == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "question is required"})
		return
	}

	now := s.now()
	var conv *conversation
	if body.ConversationID != nil {
		conv, _ = s.store.lookup(*body.ConversationID)
	}
	if conv == nil {
		// Unknown or locally generated ID: the server assigns its own.
		conv = s.store.create(truncateTitle(body.Question), now, s.opts.PersistLag)
	}

	rec := record{
		MessageID: "msg-" + uuid.NewString(),
		Question:  body.Question,
		Answer:    "You asked: " + body.Question + " — this is a canned answer from the development stub.",
		Timestamp: now,
		Sources:   []string{"stub://knowledge-base/1"},
	}
	s.store.append(conv.ID, rec)

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"answer":          rec.Answer,
		"message_id":      rec.MessageID,
		"timestamp":       now.UTC().Format(time.RFC3339),
		"sources":         rec.Sources,
		"conversation_id": conv.ID,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}

	convs := s.store.list(s.now())
	rows := make([]map[string]any, 0, len(convs))
	for _, conv := range convs {
		row := map[string]any{
			"id":              conv.ID,
			"conversation_id": conv.ID,
			"title":           conv.Title,
			"created_at":      conv.CreatedAt.UTC().Format(time.RFC3339),
			"last_updated":    conv.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if n := len(conv.Records); n > 0 {
			row["last_message"] = map[string]any{"text": conv.Records[n-1].Answer}
		}
		rows = append(rows, row)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "conversations": rows})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}

	id := r.URL.Query().Get("conversation_id")
	if id == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "conversation_id is required"})
		return
	}

	conv, ok := s.store.get(id, s.now())
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Conversation not found"})
		return
	}

	msgs := make([]map[string]any, 0, len(conv.Records))
	for _, rec := range s.store.records(conv.ID) {
		msgs = append(msgs, map[string]any{
			"message_id": rec.MessageID,
			"question":   rec.Question,
			"answer":     rec.Answer,
			"timestamp":  rec.Timestamp.UTC().Format(time.RFC3339),
			"sources":    rec.Sources,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"conversation_id":    conv.ID,
		"conversation_title": conv.Title,
		"messages":           msgs,
	})
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}

	s.mu.Lock()
	first := !s.welcomed && s.opts.WelcomeMessage != ""
	s.welcomed = true
	s.mu.Unlock()

	if !first {
		s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "needs_welcome": false})
		return
	}

	now := s.now()
	// The welcome conversation is visible immediately; only user-created
	// conversations get the persistence lag.
	conv := s.store.create("Welcome", now, 0)
	rec := record{
		MessageID: "msg-" + uuid.NewString(),
		Question:  "",
		Answer:    s.opts.WelcomeMessage,
		Timestamp: now,
	}
	s.store.append(conv.ID, rec)

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"needs_welcome":   true,
		"welcome_message": s.opts.WelcomeMessage,
		"conversation_id": conv.ID,
		"message_id":      rec.MessageID,
		"timestamp":       now.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// --- Auth ---

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	tok, ok := bearerToken(r)
	if !ok || tok == "" {
		s.writeJSON(w, http.StatusUnauthorized, map[string]any{
			"detail": "Authentication credentials were not provided.",
		})
		return false
	}

	for _, expired := range s.opts.ExpiredTokens {
		if tok == expired {
			s.writeJSON(w, http.StatusUnauthorized, map[string]any{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
				"messages": []map[string]any{
					{"message": "Token is invalid or expired"},
				},
			})
			return false
		}
	}

	if len(s.opts.Tokens) == 0 {
		return true
	}
	for _, valid := range s.opts.Tokens {
		if tok == valid {
			return true
		}
	}
	s.writeJSON(w, http.StatusUnauthorized, map[string]any{
		"detail": "Given token not valid for any token type",
		"code":   "token_not_valid",
		"messages": []map[string]any{
			{"message": "Token is invalid or expired"},
		},
	})
	return false
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return "", false
	}
	return h[len(prefix):], true
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func truncateTitle(q string) string {
	const maxLen = 30
	if len(q) <= maxLen {
		return q
	}
	return q[:maxLen] + "..."
}
