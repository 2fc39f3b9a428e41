package agent

import (
	"context"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/advisor/internal/catalog"
	"github.com/soyeahso/advisor/internal/domain"
	"github.com/soyeahso/advisor/internal/logging"
	"github.com/soyeahso/advisor/internal/sessionctx"
)

// MockSessionID is the session id reported by every mock response.
const MockSessionID = "mock-session"

const (
	defaultConfidence  = 0.95
	fallbackConfidence = 0.8
	probeChance        = 0.35
)

// MockState is the conversation memory of a mock session.
type MockState struct {
	LastShownProductIDs []string `json:"lastShownProductIds"`
	CurrentProductID    string   `json:"currentProductId,omitempty"`
	ShownCategories     []string `json:"shownCategories"`
	HasGreeted          bool     `json:"hasGreeted"`
}

func (s MockState) clone() MockState {
	s.LastShownProductIDs = slices.Clone(s.LastShownProductIDs)
	s.ShownCategories = slices.Clone(s.ShownCategories)
	return s
}

// MockOption configures a MockResponder.
type MockOption func(*MockResponder)

// WithLatency delays every response by base plus a random share of jitter.
func WithLatency(base, jitter time.Duration) MockOption {
	return func(m *MockResponder) {
		m.latency = base
		m.jitter = jitter
	}
}

// WithRand sets the random source used for probes and latency jitter.
func WithRand(r *rand.Rand) MockOption {
	return func(m *MockResponder) { m.rng = r }
}

// MockResponder simulates the agent with a keyword rule table over the
// product catalog. It needs no network access.
type MockResponder struct {
	cat     *catalog.Catalog
	log     *logging.Logger
	latency time.Duration
	jitter  time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewMockResponder creates a rule-based responder over cat.
func NewMockResponder(cat *catalog.Catalog, log *logging.Logger, opts ...MockOption) *MockResponder {
	m := &MockResponder{
		cat: cat,
		log: log.Sub("agent.mock"),
		rng: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Name returns the responder name.
func (m *MockResponder) Name() string { return "mock" }

// Open starts a fresh mock conversation for sc.
func (m *MockResponder) Open(sc *domain.CustomerSessionContext) Session {
	return &mockSession{m: m, sc: sc}
}

// Resume restores a mock conversation from its snapshot.
func (m *MockResponder) Resume(snap Snapshot) Session {
	s := &mockSession{m: m, sc: snap.Context}
	if snap.Mock != nil {
		s.state = snap.Mock.clone()
	}
	return s
}

func (m *MockResponder) float() float64 {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Float64()
}

func (m *MockResponder) intN(n int) int {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.IntN(n)
}

func (m *MockResponder) wait(ctx context.Context) error {
	d := m.latency
	if m.jitter > 0 {
		d += time.Duration(m.float() * float64(m.jitter))
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type mockSession struct {
	m *MockResponder

	mu    sync.Mutex
	sc    *domain.CustomerSessionContext
	state MockState
}

func (s *mockSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state.clone()
	return Snapshot{SessionID: MockSessionID, Initialized: true, Mock: &st, Context: s.sc}
}

// reply is what a rule produces before probes and defaults are applied.
type reply struct {
	message    string
	directive  *domain.UIDirective
	actions    []string
	confidence float64
}

func (s *mockSession) Respond(ctx context.Context, content string) (*domain.AgentResponse, error) {
	if err := s.m.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionctx.IsWelcome(content) {
		if w := s.welcome(); w != nil {
			s.m.log.Debug().Str("tier", tierOf(s.sc)).Msg("mock welcome")
			return w.response(), nil
		}
	}

	for _, r := range mockRules {
		if !r.pattern.MatchString(content) {
			continue
		}
		out := r.respond(s)
		actions := slices.Clone(out.actions)
		if actions == nil {
			actions = []string{}
		}
		if probe := s.probe(); probe != "" && len(actions) >= 2 && s.m.float() < probeChance {
			actions[len(actions)-1] = probe
		}
		out.actions = actions
		if out.confidence == 0 {
			out.confidence = defaultConfidence
		}
		return out.response(), nil
	}

	return reply{
		message:    "I can help with that! I'm knowledgeable about power tools, paint, flooring, plumbing, electrical, outdoor projects, and building materials. What area interests you?",
		actions:    []string{"Show me power tools", "Help with paint", "Flooring options", "Plan a project"},
		confidence: fallbackConfidence,
	}.response(), nil
}

func (r reply) response() *domain.AgentResponse {
	return &domain.AgentResponse{
		SessionID:        MockSessionID,
		Message:          r.message,
		UIDirective:      r.directive,
		SuggestedActions: r.actions,
		Confidence:       r.confidence,
	}
}

// enrichmentProbes maps a missing profile field label to the questions
// that can fill it.
var enrichmentProbes = map[string][]string{
	"Home type":           {"What type of home do you have?"},
	"Home age":            {"How old is your home? It helps me recommend the right approach."},
	"Project timeline":    {"When are you hoping to get this done?"},
	"Budget":              {"Do you have a budget range in mind?"},
	"Skill level":         {"Have you done projects like this before?"},
	"Priority area":       {"Which room or area is the top priority?"},
	"Team size":           {"How large is your crew for this project?"},
	"Project volume":      {"How many projects do you typically run per year?"},
	"Delivery preference": {"Do you need jobsite delivery or will-call?"},
}

// probe picks a question for one of the customer's missing profile fields.
func (s *mockSession) probe() string {
	if s.sc == nil {
		return ""
	}
	var candidates []string
	for _, f := range s.sc.MissingProfileFields {
		if _, ok := enrichmentProbes[f]; ok {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	qs := enrichmentProbes[candidates[s.m.intN(len(candidates))]]
	return qs[s.m.intN(len(qs))]
}

func (s *mockSession) isB2B() bool {
	return s.sc != nil && s.sc.Space == domain.SpaceB2B
}

// showProduct records a single featured product.
func (s *mockSession) showProduct(id, category, setting string) (domain.Product, *domain.UIDirective) {
	p := s.m.cat.MustLookup(id)
	s.state.CurrentProductID = p.ID
	s.state.ShownCategories = append(s.state.ShownCategories, category)
	return p, productDirective(domain.ActionShowProduct, setting, p)
}

// showProducts records a product set.
func (s *mockSession) showProducts(category, setting string, ids ...string) *domain.UIDirective {
	s.state.ShownCategories = append(s.state.ShownCategories, category)
	return s.showPicks(setting, ids...)
}

func (s *mockSession) showPicks(setting string, ids ...string) *domain.UIDirective {
	products := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		products = append(products, s.m.cat.MustLookup(id))
	}
	s.state.LastShownProductIDs = slices.Clone(ids)
	return productDirective(domain.ActionShowProducts, setting, products...)
}

func productDirective(action domain.UIAction, setting string, products ...domain.Product) *domain.UIDirective {
	return &domain.UIDirective{
		Action: action,
		Payload: &domain.UIDirectivePayload{
			Products:     products,
			SceneContext: &domain.SceneContext{Setting: setting, GenerateBackground: domain.Bool(false)},
		},
	}
}

func welcomeDirective(message, subtext, setting string) *domain.UIDirective {
	return &domain.UIDirective{
		Action: domain.ActionWelcomeScene,
		Payload: &domain.UIDirectivePayload{
			WelcomeMessage: message,
			WelcomeSubtext: subtext,
			SceneContext:   &domain.SceneContext{Setting: setting, GenerateBackground: domain.Bool(false)},
		},
	}
}

func tierOf(sc *domain.CustomerSessionContext) string {
	if sc == nil {
		return ""
	}
	return string(sc.IdentityTier)
}

// thousands formats n with comma group separators.
func thousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
