package sessionctx

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/advisor/internal/domain"
)

func knownProfile() *domain.CustomerProfile {
	return &domain.CustomerProfile{
		ID:    "persona-test",
		Name:  "Pat",
		Email: "pat@example.com",
		Space: domain.SpaceConsumer,
		ProjectProfile: domain.ProjectProfile{
			SkillLevel: "intermediate",
			HomeType:   "Bungalow",
			Concerns:   []string{"budget", "timeline"},
		},
		Orders: []domain.OrderRecord{
			{OrderID: "O-1", OrderDate: "2025-01-05", Channel: "online", LineItems: []domain.LineItem{{ProductID: "a", ProductName: "Alpha"}}},
			{OrderID: "O-4", OrderDate: "2025-04-05", Channel: "in-store", LineItems: []domain.LineItem{
				{ProductID: "d", ProductName: "Delta"}, {ProductID: "e", ProductName: "Echo"},
			}},
			{OrderID: "O-2", OrderDate: "2025-02-05", Channel: "online", LineItems: []domain.LineItem{{ProductID: "b", ProductName: "Bravo"}}},
			{OrderID: "O-3", OrderDate: "2025-03-05", Channel: "mobile-app", LineItems: []domain.LineItem{{ProductID: "c", ProductName: "Charlie"}}},
		},
		ChatSummaries: []domain.ChatSummary{
			{SessionDate: "2025-01-01", Summary: "oldest"},
			{SessionDate: "2025-03-01", Summary: "newest"},
			{SessionDate: "2025-02-01", Summary: "middle"},
			{SessionDate: "2024-12-01", Summary: "ancient"},
		},
		MeaningfulEvents: []domain.MeaningfulEvent{
			{EventType: domain.EventPreference, Description: "Likes matte black", CapturedAt: "2025-01-10"},
			{EventType: domain.EventProject, Description: "Basement finish", CapturedAt: "2025-03-10", AgentNote: "needs drywall"},
		},
		BrowseSessions: []domain.BrowseSession{
			{SessionDate: "2025-02-02", CategoriesBrowsed: []string{"paint"}, DurationMinutes: 4, Device: "mobile"},
			{SessionDate: "2025-03-02", CategoriesBrowsed: []string{"decking", "outdoor"}, DurationMinutes: 12, Device: "desktop"},
		},
		Loyalty: &domain.LoyaltyData{Tier: "gold", PointsBalance: 1800},
		AgentCapturedProfile: &domain.AgentCapturedProfile{
			HomeType: &domain.CapturedProfileField{Value: domain.FieldValue{"Bungalow"}, Confidence: "stated", CapturedFrom: "chat 2025-01-01"},
			Budget:   &domain.CapturedProfileField{Value: domain.FieldValue{"$5k", "flexible"}, Confidence: "inferred", CapturedFrom: "chat 2025-02-01"},
		},
		MerkuryIdentity: &domain.MerkuryIdentity{MerkuryID: "MRK-T", IdentityTier: domain.TierKnown},
	}
}

func appendedProfile() *domain.CustomerProfile {
	return &domain.CustomerProfile{
		ID:              "MRK-AC-10001",
		Name:            "Guest",
		Space:           domain.SpaceConsumer,
		MerkuryIdentity: &domain.MerkuryIdentity{MerkuryID: "MRK-AC-10001", IdentityTier: domain.TierAppended},
		AppendedProfile: &domain.AppendedProfile{
			Interests:        []string{"smart home", "outdoor living"},
			LifestyleSignals: []string{"weekend DIYer"},
			GeoRegion:        "Atlanta Metro",
		},
	}
}

func TestBuildRanksMostRecentFirst(t *testing.T) {
	ctx := Build(knownProfile())

	assert.Equal(t, []string{"d", "e", "c", "b"}, ctx.RecentPurchases)
	assert.Equal(t, []string{
		"Order O-4 on 2025-04-05 (in-store): Delta, Echo",
		"Order O-3 on 2025-03-05 (mobile-app): Charlie",
		"Order O-2 on 2025-02-05 (online): Bravo",
	}, ctx.RecentActivity)
	assert.Equal(t, []string{"[2025-03-01] newest", "[2025-02-01] middle", "[2025-01-01] oldest"}, ctx.ChatContext)
	assert.Equal(t, []string{
		"[2025-03-10] Basement finish (Note: needs drywall)",
		"[2025-01-10] Likes matte black",
	}, ctx.MeaningfulEvents)
	assert.Equal(t, []string{
		"Browsed decking, outdoor on 2025-03-02 (12min, desktop)",
		"Browsed paint on 2025-02-02 (4min, mobile)",
	}, ctx.BrowseInterests)
	assert.Equal(t, "gold", ctx.LoyaltyTier)
	assert.Equal(t, 1800, ctx.LoyaltyPoints)
	assert.Equal(t, domain.TierKnown, ctx.IdentityTier)
}

func TestBuildCapturedProfile(t *testing.T) {
	ctx := Build(knownProfile())
	assert.Equal(t, []string{
		"Home type: Bungalow (stated, chat 2025-01-01)",
		"Budget: $5k, flexible (inferred, chat 2025-02-01)",
	}, ctx.CapturedProfile)
	assert.Equal(t, []string{
		"Home age", "Project timeline", "Skill level", "Preferred style", "Priority area",
		"Team size", "Project volume", "Preferred supplier", "Delivery preference",
	}, ctx.MissingProfileFields)

	bare := Build(&domain.CustomerProfile{ID: "x"})
	assert.Empty(t, bare.CapturedProfile)
	assert.Equal(t, []string{"Home type", "Home age", "Project timeline", "Budget", "Skill level", "Priority area"},
		bare.MissingProfileFields)
	assert.Equal(t, domain.TierAnonymous, bare.IdentityTier)
}

func TestBuildTaggedContextOrderAndUsage(t *testing.T) {
	ctx := Build(knownProfile())

	want := []domain.TaggedContextField{
		domain.Tag("Skill level: intermediate", domain.ProvenanceDeclared),
		domain.Tag("Concerns: budget, timeline", domain.ProvenanceDeclared),
		domain.Tag("Home type: Bungalow", domain.ProvenanceDeclared),
		domain.Tag("Purchased Delta, Echo on 2025-04-05 (in-store)", domain.ProvenanceObserved),
		domain.Tag("Purchased Charlie on 2025-03-05 (mobile-app)", domain.ProvenanceObserved),
		domain.Tag("Purchased Bravo on 2025-02-05 (online)", domain.ProvenanceObserved),
		domain.Tag("Purchased Alpha on 2025-01-05 (online)", domain.ProvenanceObserved),
		domain.Tag("Loyalty: gold (1800 pts)", domain.ProvenanceObserved),
		domain.Tag("[2025-03-01] newest", domain.ProvenanceObserved),
		domain.Tag("[2025-02-01] middle", domain.ProvenanceObserved),
		domain.Tag("[2025-01-01] oldest", domain.ProvenanceObserved),
		domain.Tag("Basement finish", domain.ProvenanceAgentInferred),
		domain.Tag("Likes matte black", domain.ProvenanceStated),
		domain.Tag("Browsed decking, outdoor on 2025-03-02 (12min)", domain.ProvenanceInferred),
		domain.Tag("Browsed paint on 2025-02-02 (4min)", domain.ProvenanceInferred),
		domain.Tag("homeType: Bungalow", domain.ProvenanceStated),
		domain.Tag("budget: $5k, flexible", domain.ProvenanceAgentInferred),
	}
	if diff := cmp.Diff(want, ctx.TaggedContext); diff != "" {
		t.Errorf("tagged context mismatch (-want +got):\n%s", diff)
	}
	for _, f := range ctx.TaggedContext {
		assert.Equal(t, domain.UsageFor(f.Provenance), f.Usage, f.Value)
	}
}

func TestBuildLegacyFallback(t *testing.T) {
	p := &domain.CustomerProfile{
		ID:              "legacy",
		RecentActivity:  []domain.ActivityItem{{Description: "Viewed drills"}},
		PurchaseHistory: []domain.PurchaseRecord{{ProductID: "drill-cordless-20v"}},
	}
	ctx := Build(p)
	assert.Equal(t, []string{"Viewed drills"}, ctx.RecentActivity)
	assert.Equal(t, []string{"drill-cordless-20v"}, ctx.RecentPurchases)

	// orders win over legacy fields; never both
	p.Orders = []domain.OrderRecord{{OrderID: "O", OrderDate: "2025-01-01", LineItems: []domain.LineItem{{ProductID: "x", ProductName: "X"}}}}
	ctx = Build(p)
	assert.Equal(t, []string{"x"}, ctx.RecentPurchases)
	assert.Len(t, ctx.RecentActivity, 1)
	assert.Contains(t, ctx.RecentActivity[0], "Order O")
}

func TestBuildZeroPointsLoyalty(t *testing.T) {
	p := &domain.CustomerProfile{ID: "z", Loyalty: &domain.LoyaltyData{Tier: "member"}, LoyaltyTier: "legacy"}
	ctx := Build(p)
	assert.Equal(t, "member", ctx.LoyaltyTier)
	require.NotEmpty(t, ctx.TaggedContext)
	assert.Equal(t, "Loyalty: member", ctx.TaggedContext[0].Value)

	ctx = Build(&domain.CustomerProfile{ID: "z", LoyaltyTier: "legacy"})
	assert.Equal(t, "legacy", ctx.LoyaltyTier)
}

func TestBuildIsPure(t *testing.T) {
	for name, fixture := range map[string]func() *domain.CustomerProfile{
		"known":    knownProfile,
		"appended": appendedProfile,
	} {
		t.Run(name, func(t *testing.T) {
			p := fixture()
			first := Build(p)
			second := Build(p)

			if diff := cmp.Diff(first, second); diff != "" {
				t.Errorf("builds differ (-first +second):\n%s", diff)
			}
			if diff := cmp.Diff(fixture(), p); diff != "" {
				t.Errorf("profile mutated (-want +got):\n%s", diff)
			}

			// the result shares no backing arrays with the profile
			for i := range first.Concerns {
				first.Concerns[i] = "changed"
			}
			for i := range first.AppendedInterests {
				first.AppendedInterests[i] = "changed"
			}
			if diff := cmp.Diff(fixture(), p); diff != "" {
				t.Errorf("profile aliased by context (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildAppendedSignalsInfluenceOnly(t *testing.T) {
	ctx := Build(appendedProfile())
	assert.Equal(t, domain.TierAppended, ctx.IdentityTier)
	assert.Equal(t, []string{"smart home", "outdoor living"}, ctx.AppendedInterests)
	require.Len(t, ctx.TaggedContext, 3)
	for _, f := range ctx.TaggedContext {
		assert.Equal(t, domain.UsageInfluenceOnly, f.Usage)
	}
}
