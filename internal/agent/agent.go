package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/soyeahso/advisor/internal/catalog"
	"github.com/soyeahso/advisor/internal/config"
	"github.com/soyeahso/advisor/internal/domain"
	"github.com/soyeahso/advisor/internal/logging"
)

// ErrSessionNotInitialized is returned when a live session could not be
// established before a message was sent.
var ErrSessionNotInitialized = errors.New("session not initialized")

// APIError is returned when the remote agent service (or the token
// endpoint in front of it) answers with a non-success status.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API error (%d): %s", e.Op, e.Status, e.Body)
}

// Responder is a source of agent responses. Each customer selection opens
// its own Session; nothing about the conversation lives on the Responder.
type Responder interface {
	// Name identifies the responder ("mock", "live").
	Name() string

	// Open starts a conversation for the given context. A nil context means
	// no customer is selected. Open performs no I/O.
	Open(sc *domain.CustomerSessionContext) Session

	// Resume rebuilds a session from a snapshot without any network calls.
	Resume(snap Snapshot) Session
}

// Session is one conversation with the agent.
type Session interface {
	// Respond sends content and returns the agent reply. Calls on one
	// session are serialized in submission order.
	Respond(ctx context.Context, content string) (*domain.AgentResponse, error)

	// Snapshot captures what is needed to Resume this session later.
	Snapshot() Snapshot
}

// Snapshot is the resumable state of a Session. Exactly one of the live
// fields or Mock is meaningful, depending on the responder that made it.
type Snapshot struct {
	SessionID   string                         `json:"sessionId,omitempty"`
	SequenceID  int                            `json:"sequenceId"`
	Initialized bool                           `json:"initialized"`
	Mock        *MockState                     `json:"mock,omitempty"`
	Context     *domain.CustomerSessionContext `json:"context,omitempty"`
}

// New builds the responder selected by cfg.Agent.Mode.
func New(cfg *config.Config, cat *catalog.Catalog, log *logging.Logger) (Responder, error) {
	if !cfg.Agent.IsLive() {
		var opts []MockOption
		if cfg.Agent.MockLatencyMs > 0 {
			base := time.Duration(cfg.Agent.MockLatencyMs) * time.Millisecond
			opts = append(opts, WithLatency(base, base*2/3))
		}
		return NewMockResponder(cat, log, opts...), nil
	}

	timeout := time.Duration(cfg.Agent.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	tokens, err := NewTokenSource(cfg.Agent, cfg.TokenProxyURL(), httpClient)
	if err != nil {
		return nil, err
	}

	return NewLiveClient(LiveConfig{
		BaseURL:     cfg.Agent.BaseURL,
		AgentID:     cfg.Agent.AgentID,
		InstanceURL: cfg.Agent.InstanceURL,
	}, tokens, cat, log, WithHTTPClient(httpClient)), nil
}
