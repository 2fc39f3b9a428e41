package customer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/advisor/internal/domain"
	"github.com/soyeahso/advisor/internal/logging"
	"github.com/soyeahso/advisor/internal/store"
)

func testLogger() *logging.Logger { return logging.New(nil, "silent") }

var fixedNow = time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)

func TestDefaultPersonas(t *testing.T) {
	p := DefaultPersonas()

	ids := make([]string, 0)
	for _, ps := range p.All() {
		ids = append(ids, ps.ID)
	}
	assert.Equal(t, []string{
		"mike", "sara", "tom", "appended-consumer", "anonymous-consumer",
		"dave-gc", "lisa-pm", "appended-b2b", "anonymous-b2b",
	}, ids)

	assert.Len(t, p.InSpace(domain.SpaceConsumer), 5)
	assert.Len(t, p.InSpace(domain.SpaceB2B), 4)
	assert.Len(t, p.InSpace(""), 9)

	mike, ok := p.Get("mike")
	require.True(t, ok)
	assert.Equal(t, "Mike Chen", mike.Label)
	assert.Equal(t, domain.TierKnown, mike.Profile.Tier())

	_, ok = p.Get("nobody")
	assert.False(t, ok)
}

func TestPersonasLookups(t *testing.T) {
	p := DefaultPersonas()

	got, ok := p.ByEmail("  MIKE.CHEN@example.com ")
	require.True(t, ok)
	assert.Equal(t, "mike", got.ID)

	_, ok = p.ByEmail("")
	assert.False(t, ok, "anonymous personas have empty emails")

	got, ok = p.ByMerkuryID("MRK-DK-60614")
	require.True(t, ok)
	assert.Equal(t, "dave-gc", got.ID)

	_, ok = p.ByMerkuryID("")
	assert.False(t, ok)
}

func TestNewPersonasRejectsBadInput(t *testing.T) {
	_, err := NewPersonas([]Persona{{ID: "a"}, {ID: "a"}})
	assert.ErrorContains(t, err, "duplicate persona id")

	_, err = NewPersonas([]Persona{{}})
	assert.ErrorContains(t, err, "has no id")

	_, err = ParsePersonas([]byte("personas: ["))
	assert.ErrorContains(t, err, "parsing personas")
}

func TestMockResolver(t *testing.T) {
	r := NewMockResolver(DefaultPersonas())
	ctx := context.Background()

	tests := []struct {
		persona    string
		tier       domain.IdentityTier
		merkury    string
		hasAppends bool
	}{
		{"mike", domain.TierKnown, "MRK-MC-90210", false},
		{"appended-consumer", domain.TierAppended, "MRK-AC-10001", true},
		{"anonymous-b2b", domain.TierAnonymous, "", false},
		{"unknown", domain.TierAnonymous, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.persona, func(t *testing.T) {
			res, err := r.Resolve(ctx, tt.persona)
			require.NoError(t, err)
			assert.Equal(t, tt.tier, res.IdentityTier)
			assert.Equal(t, tt.merkury, res.MerkuryID)
			assert.Equal(t, tt.hasAppends, res.AppendedData != nil)
		})
	}

	id, res, err := r.ResolveEmail(ctx, "mike.chen@example.com")
	require.NoError(t, err)
	assert.Equal(t, "mike", id)
	assert.Equal(t, domain.TierKnown, res.IdentityTier)

	_, _, err = r.ResolveEmail(ctx, "who@example.com")
	assert.ErrorIs(t, err, ErrPersonaNotFound)
}

func TestMockResolverLatencyHonorsContext(t *testing.T) {
	r := NewMockResolver(DefaultPersonas(), WithResolveLatency(time.Hour, 0))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := r.Resolve(ctx, "mike")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFixtureProfileStore(t *testing.T) {
	ctx := context.Background()
	summaries := store.NewMemorySummaryStore()
	ps := NewFixtureProfileStore(DefaultPersonas(), summaries, testLogger())

	before, err := ps.GetCustomerProfile(ctx, "MRK-MC-90210")
	require.NoError(t, err)
	n := len(before.ChatSummaries)

	require.NoError(t, ps.WriteChatSummary(ctx, before.ID, "sess-1", domain.ChatSummary{
		SessionDate: "2026-02-14", Summary: "Customer discussed outdoor. 4 messages exchanged.", TopicsDiscussed: []string{"outdoor"},
	}))

	after, err := ps.GetCustomerProfile(ctx, "MRK-MC-90210")
	require.NoError(t, err)
	require.Len(t, after.ChatSummaries, n+1)
	assert.Equal(t, "2026-02-14", after.ChatSummaries[0].SessionDate)

	fixture, _ := DefaultPersonas().Get("mike")
	assert.Len(t, fixture.Profile.ChatSummaries, n, "fixture is not modified")

	_, err = ps.GetCustomerProfile(ctx, "MRK-NOPE")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestFixtureProfileStoreWithoutSummaries(t *testing.T) {
	ps := NewFixtureProfileStore(DefaultPersonas(), nil, testLogger())
	assert.NoError(t, ps.WriteChatSummary(context.Background(), "c", "s", domain.ChatSummary{}))
}

type failingProfiles struct{}

func (failingProfiles) GetCustomerProfile(context.Context, string) (*domain.CustomerProfile, error) {
	return nil, errors.New("profile store not configured")
}

func (failingProfiles) WriteChatSummary(context.Context, string, string, domain.ChatSummary) error {
	return nil
}

type failingResolver struct{ *MockResolver }

func (failingResolver) Resolve(context.Context, string) (Resolution, error) {
	return Resolution{}, errors.New("tag timeout")
}

func newSelector(t *testing.T, mutate func(*SelectorConfig)) *Selector {
	t.Helper()
	personas := DefaultPersonas()
	cfg := SelectorConfig{
		Personas: personas,
		Resolver: NewMockResolver(personas),
		Profiles: NewFixtureProfileStore(personas, nil, testLogger()),
		Now:      func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewSelector(cfg, testLogger())
}

func TestSelectorSelect(t *testing.T) {
	ctx := context.Background()

	t.Run("known uses fixture profile", func(t *testing.T) {
		s := newSelector(t, nil)
		sel, err := s.Select(ctx, "sara")
		require.NoError(t, err)
		require.NotNil(t, sel.Customer)
		assert.Equal(t, "sara", sel.PersonaID)
		assert.Equal(t, domain.TierKnown, sel.Customer.Tier())
		assert.NoError(t, sel.Err)
		assert.False(t, sel.Refresh)
		assert.Equal(t, sel, s.Current())
	})

	t.Run("appended gets minimal guest profile", func(t *testing.T) {
		s := newSelector(t, func(c *SelectorConfig) { c.Space = domain.SpaceB2B })
		sel, err := s.Select(ctx, "appended-b2b")
		require.NoError(t, err)
		c := sel.Customer
		require.NotNil(t, c)
		assert.Equal(t, "MRK-AB-20001", c.ID)
		assert.Equal(t, "Guest", c.Name)
		assert.Empty(t, c.Email)
		assert.Equal(t, domain.SpaceB2B, c.Space)
		assert.Equal(t, domain.TierAppended, c.Tier())
		assert.Equal(t, "2026-02-14T09:30:00Z", c.MerkuryIdentity.ResolvedAt)
		assert.NotNil(t, c.AppendedProfile)
		assert.Empty(t, c.Orders)
		assert.Nil(t, c.Loyalty)
	})

	t.Run("anonymous clears customer", func(t *testing.T) {
		s := newSelector(t, nil)
		sel, err := s.Select(ctx, "anonymous-consumer")
		require.NoError(t, err)
		assert.Nil(t, sel.Customer)
		assert.Equal(t, "anonymous-consumer", sel.PersonaID)
	})

	t.Run("unknown persona", func(t *testing.T) {
		s := newSelector(t, nil)
		_, err := s.Select(ctx, "nobody")
		assert.ErrorIs(t, err, ErrPersonaNotFound)
		assert.Empty(t, s.Current().PersonaID)
	})

	t.Run("resolver failure is reported on the selection", func(t *testing.T) {
		s := newSelector(t, func(c *SelectorConfig) { c.Resolver = failingResolver{} })
		sel, err := s.Select(ctx, "mike")
		require.NoError(t, err)
		assert.Nil(t, sel.Customer)
		assert.EqualError(t, sel.Err, "tag timeout")
	})
}

func TestSelectorLiveMode(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches from profile store", func(t *testing.T) {
		summaries := store.NewMemorySummaryStore()
		require.NoError(t, summaries.Write(ctx, "persona-mike", "s", domain.ChatSummary{SessionDate: "2026-02-01", Summary: "stored"}))
		s := newSelector(t, func(c *SelectorConfig) {
			c.Live = true
			c.Profiles = NewFixtureProfileStore(c.Personas, summaries, testLogger())
		})

		sel, err := s.Select(ctx, "mike")
		require.NoError(t, err)
		require.NotNil(t, sel.Customer)
		assert.Equal(t, "stored", sel.Customer.ChatSummaries[0].Summary)
		assert.Equal(t, "2026-02-14T09:30:00Z", sel.Customer.MerkuryIdentity.ResolvedAt)
	})

	t.Run("falls back to fixture", func(t *testing.T) {
		s := newSelector(t, func(c *SelectorConfig) {
			c.Live = true
			c.Profiles = failingProfiles{}
		})
		sel, err := s.Select(ctx, "tom")
		require.NoError(t, err)
		require.NotNil(t, sel.Customer)
		assert.NoError(t, sel.Err)
		assert.Equal(t, "MRK-TB-30302", sel.Customer.MerkuryIdentity.MerkuryID)
		assert.Equal(t, "2026-02-14T09:30:00Z", sel.Customer.MerkuryIdentity.ResolvedAt)

		fixture, _ := s.Personas().Get("tom")
		assert.NotEqual(t, fixture.Profile.MerkuryIdentity.ResolvedAt, sel.Customer.MerkuryIdentity.ResolvedAt,
			"fixture identity is not overwritten")
	})
}

func TestSelectorMockModeMergesSummaries(t *testing.T) {
	ctx := context.Background()
	summaries := store.NewMemorySummaryStore()
	require.NoError(t, summaries.Write(ctx, "persona-sara", "s", domain.ChatSummary{SessionDate: "2026-02-10", Summary: "stored"}))

	s := newSelector(t, func(c *SelectorConfig) { c.Summaries = summaries })
	sel, err := s.Select(ctx, "sara")
	require.NoError(t, err)
	require.NotEmpty(t, sel.Customer.ChatSummaries)
	assert.Equal(t, "stored", sel.Customer.ChatSummaries[0].Summary)
}

func TestSelectorRefreshAndEmail(t *testing.T) {
	ctx := context.Background()
	s := newSelector(t, nil)

	sel, err := s.Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, sel.PersonaID, "nothing to refresh")

	_, err = s.Select(ctx, "mike")
	require.NoError(t, err)
	sel, err = s.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, sel.Refresh)
	assert.Equal(t, "mike", sel.PersonaID)

	sel, err = s.IdentifyByEmail(ctx, "mike.chen@example.com")
	require.NoError(t, err)
	assert.True(t, sel.Refresh)
	assert.Equal(t, "mike", sel.PersonaID)

	_, err = s.IdentifyByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrPersonaNotFound)
	assert.Equal(t, "mike", s.Current().PersonaID)
}

func TestSelectorSetSpaceClears(t *testing.T) {
	s := newSelector(t, nil)
	_, err := s.Select(context.Background(), "mike")
	require.NoError(t, err)

	sel := s.SetSpace(domain.SpaceB2B)
	assert.Equal(t, Selection{Space: domain.SpaceB2B}, sel)
	assert.Equal(t, sel, s.Current())
}
