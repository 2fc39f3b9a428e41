package customer

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/soyeahso/advisor/internal/domain"
)

// Resolution is the outcome of an identity lookup.
type Resolution struct {
	MerkuryID    string                  `json:"merkuryId,omitempty"`
	IdentityTier domain.IdentityTier     `json:"identityTier"`
	Confidence   float64                 `json:"confidence"`
	AppendedData *domain.AppendedProfile `json:"appendedData,omitempty"`
}

// Resolver identifies visitors.
type Resolver interface {
	// Resolve identifies the visitor behind a persona. Unknown personas
	// resolve as anonymous rather than failing.
	Resolve(ctx context.Context, personaID string) (Resolution, error)
	// ResolveEmail finds the persona owning an email address.
	ResolveEmail(ctx context.Context, email string) (string, Resolution, error)
}

// ResolverOption configures a MockResolver.
type ResolverOption func(*MockResolver)

// WithResolveLatency simulates the identity tag round trip: base plus up
// to jitter per lookup.
func WithResolveLatency(base, jitter time.Duration) ResolverOption {
	return func(r *MockResolver) {
		r.latency = base
		r.jitter = jitter
	}
}

// MockResolver resolves identities from persona fixtures.
type MockResolver struct {
	personas *Personas
	latency  time.Duration
	jitter   time.Duration
}

// NewMockResolver creates a fixture-backed resolver.
func NewMockResolver(personas *Personas, opts ...ResolverOption) *MockResolver {
	r := &MockResolver{personas: personas}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *MockResolver) Resolve(ctx context.Context, personaID string) (Resolution, error) {
	if err := r.wait(ctx); err != nil {
		return Resolution{}, err
	}
	p, ok := r.personas.Get(personaID)
	if !ok {
		return Resolution{IdentityTier: domain.TierAnonymous}, nil
	}
	return resolutionOf(p), nil
}

func (r *MockResolver) ResolveEmail(ctx context.Context, email string) (string, Resolution, error) {
	if err := r.wait(ctx); err != nil {
		return "", Resolution{}, err
	}
	p, ok := r.personas.ByEmail(email)
	if !ok {
		return "", Resolution{}, ErrPersonaNotFound
	}
	return p.ID, resolutionOf(p), nil
}

func resolutionOf(p Persona) Resolution {
	res := Resolution{IdentityTier: domain.TierAnonymous, AppendedData: p.Profile.AppendedProfile}
	if mi := p.Profile.MerkuryIdentity; mi != nil {
		res.MerkuryID = mi.MerkuryID
		res.Confidence = mi.Confidence
		if mi.IdentityTier != "" {
			res.IdentityTier = mi.IdentityTier
		}
	}
	return res
}

func (r *MockResolver) wait(ctx context.Context) error {
	d := r.latency
	if r.jitter > 0 {
		d += rand.N(r.jitter)
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
