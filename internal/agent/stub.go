package agent

import (
	"context"
	"sync"

	"github.com/soyeahso/advisor/internal/domain"
)

// StubResponder is a test double for Responder.
type StubResponder struct {
	RespondFunc func(ctx context.Context, sc *domain.CustomerSessionContext, content string) (*domain.AgentResponse, error)
}

func (r *StubResponder) Name() string { return "stub" }

func (r *StubResponder) Open(sc *domain.CustomerSessionContext) Session {
	return &stubSession{r: r, sc: sc}
}

func (r *StubResponder) Resume(snap Snapshot) Session {
	return &stubSession{r: r, sc: snap.Context, seq: snap.SequenceID}
}

type stubSession struct {
	r   *StubResponder
	mu  sync.Mutex
	sc  *domain.CustomerSessionContext
	seq int
}

func (s *stubSession) Respond(ctx context.Context, content string) (*domain.AgentResponse, error) {
	s.mu.Lock()
	s.seq++
	s.mu.Unlock()
	if s.r.RespondFunc != nil {
		return s.r.RespondFunc(ctx, s.sc, content)
	}
	return &domain.AgentResponse{SessionID: "stub-session", Message: "stub response"}, nil
}

func (s *stubSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{SessionID: "stub-session", SequenceID: s.seq, Initialized: true, Context: s.sc}
}
