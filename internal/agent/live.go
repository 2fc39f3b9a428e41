package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/soyeahso/advisor/internal/directive"
	"github.com/soyeahso/advisor/internal/domain"
	"github.com/soyeahso/advisor/internal/logging"
	"github.com/soyeahso/advisor/internal/version"
)

// LiveConfig addresses one agent on the remote agent platform.
type LiveConfig struct {
	BaseURL     string
	AgentID     string
	InstanceURL string
}

// LiveOption configures a LiveClient.
type LiveOption func(*LiveClient)

// WithHTTPClient sets the HTTP client used for session and message calls.
func WithHTTPClient(c *http.Client) LiveOption {
	return func(l *LiveClient) { l.client = c }
}

// WithClock overrides the clock used for external session keys.
func WithClock(now func() time.Time) LiveOption {
	return func(l *LiveClient) { l.now = now }
}

// LiveClient talks to the remote session-based agent API.
type LiveClient struct {
	cfg    LiveConfig
	tokens oauth2.TokenSource
	cat    directive.Catalog
	client *http.Client
	now    func() time.Time
	log    *logging.Logger
}

// NewLiveClient creates a client for the agent at cfg. Products named in
// agent directives are resolved against cat.
func NewLiveClient(cfg LiveConfig, tokens oauth2.TokenSource, cat directive.Catalog, log *logging.Logger, opts ...LiveOption) *LiveClient {
	l := &LiveClient{
		cfg:    cfg,
		tokens: tokens,
		cat:    cat,
		client: &http.Client{Timeout: 30 * time.Second},
		now:    time.Now,
		log:    log.Sub("agent.live"),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Name returns the responder name.
func (l *LiveClient) Name() string { return "live" }

// Open returns an uninitialized session. The remote session is created on
// the first Respond.
func (l *LiveClient) Open(sc *domain.CustomerSessionContext) Session {
	return &liveSession{client: l, sc: sc}
}

// Resume restores a session id and sequence without contacting the service.
func (l *LiveClient) Resume(snap Snapshot) Session {
	return &liveSession{
		client:      l,
		sc:          snap.Context,
		sessionID:   snap.SessionID,
		sequenceID:  snap.SequenceID,
		initialized: snap.Initialized && snap.SessionID != "",
	}
}

type liveSession struct {
	client *LiveClient

	mu          sync.Mutex
	sc          *domain.CustomerSessionContext
	sessionID   string
	sequenceID  int
	initialized bool
}

func (s *liveSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		SessionID:   s.sessionID,
		SequenceID:  s.sequenceID,
		Initialized: s.initialized,
		Context:     s.sc,
	}
}

// Respond initializes the remote session if needed, then sends content
// with the next sequence number. The lock is held for the whole exchange so
// sequence numbers go out in submission order.
func (s *liveSession) Respond(ctx context.Context, content string) (*domain.AgentResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		if err := s.init(ctx); err != nil {
			return nil, err
		}
	}
	if s.sessionID == "" {
		return nil, ErrSessionNotInitialized
	}

	s.sequenceID++
	return s.send(ctx, content, s.sequenceID)
}

type sessionRequest struct {
	ExternalSessionKey    string                `json:"externalSessionKey"`
	InstanceConfig        instanceConfig        `json:"instanceConfig"`
	StreamingCapabilities streamingCapabilities `json:"streamingCapabilities"`
	Variables             map[string]string     `json:"variables"`
}

type instanceConfig struct {
	Endpoint string `json:"endpoint"`
}

type streamingCapabilities struct {
	ChunkTypes []string `json:"chunkTypes"`
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
}

type messageRequest struct {
	Message    messageBody       `json:"message"`
	SequenceID int               `json:"sequenceId"`
	Variables  map[string]string `json:"variables"`
}

type messageBody struct {
	Role string `json:"role"`
	Type string `json:"type"`
	Text string `json:"text"`
}

type messageResponse struct {
	Messages []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"messages"`
	SuggestedActions []string `json:"suggestedActions"`
}

func (s *liveSession) init(ctx context.Context) error {
	l := s.client
	body := sessionRequest{
		ExternalSessionKey:    fmt.Sprintf("session-%d", l.now().UnixMilli()),
		InstanceConfig:        instanceConfig{Endpoint: l.cfg.InstanceURL},
		StreamingCapabilities: streamingCapabilities{ChunkTypes: []string{"Text"}},
		Variables:             sessionVariables(s.sc),
	}

	var result sessionResponse
	if err := l.post(ctx, "session init", l.sessionsURL(), body, &result); err != nil {
		return err
	}
	if result.SessionID == "" {
		return fmt.Errorf("session init: %w: empty session id", ErrSessionNotInitialized)
	}

	s.sessionID = result.SessionID
	s.sequenceID = 0
	s.initialized = true
	l.log.Debug().Str("session", s.sessionID).Msg("agent session created")
	return nil
}

func (s *liveSession) send(ctx context.Context, content string, seq int) (*domain.AgentResponse, error) {
	l := s.client
	body := messageRequest{
		Message:    messageBody{Role: "EndUser", Type: "Text", Text: content},
		SequenceID: seq,
		Variables:  map[string]string{},
	}

	var result messageResponse
	if err := l.post(ctx, "message send", l.sessionsURL()+"/"+s.sessionID+"/messages", body, &result); err != nil {
		return nil, err
	}

	var chunks []string
	for _, m := range result.Messages {
		if m.Type == "Text" {
			chunks = append(chunks, m.Text)
		}
	}
	raw := strings.Join(chunks, " ")

	parsed := directive.Parse(raw, l.cat)
	msg := parsed.CleanText
	if msg == "" {
		msg = raw
	}

	actions := result.SuggestedActions
	if actions == nil {
		actions = []string{}
	}

	return &domain.AgentResponse{
		SessionID:        s.sessionID,
		Message:          msg,
		UIDirective:      parsed.Directive,
		SuggestedActions: actions,
	}, nil
}

func (l *LiveClient) sessionsURL() string {
	return strings.TrimRight(l.cfg.BaseURL, "/") + "/agents/" + l.cfg.AgentID + "/sessions"
}

// token honours ctx when the source supports it.
func (l *LiveClient) token(ctx context.Context) (*oauth2.Token, error) {
	if cs, ok := l.tokens.(ContextTokenSource); ok {
		return cs.TokenContext(ctx)
	}
	return l.tokens.Token()
}

func (l *LiveClient) post(ctx context.Context, op, url string, body, out any) error {
	tok, err := l.token(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	tok.SetAuthHeader(req)

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		l.log.Warn().Str("op", op).Int("status", resp.StatusCode).Msg("agent API error")
		return &APIError{Op: op, Status: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// sessionVariables flattens the customer context into the string variables
// the agent platform accepts at session creation.
func sessionVariables(sc *domain.CustomerSessionContext) map[string]string {
	vars := map[string]string{}
	if sc == nil {
		return vars
	}
	vars["customerId"] = sc.CustomerID
	vars["customerName"] = sc.Name
	vars["customerEmail"] = sc.Email
	vars["identityTier"] = string(sc.IdentityTier)
	vars["space"] = string(sc.Space)
	if sc.SkillLevel != "" {
		vars["skillLevel"] = sc.SkillLevel
	}
	if len(sc.Concerns) > 0 {
		vars["concerns"] = strings.Join(sc.Concerns, ", ")
	}
	if sc.LoyaltyTier != "" {
		vars["loyaltyTier"] = sc.LoyaltyTier
	}
	if sc.CompanyName != "" {
		vars["companyName"] = sc.CompanyName
	}
	if len(sc.TradeSpecialty) > 0 {
		vars["tradeSpecialty"] = strings.Join(sc.TradeSpecialty, ", ")
	}
	return vars
}
