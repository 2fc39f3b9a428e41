// Package sessionctx turns a customer profile into the provenance-tagged
// digest the agent sees, and renders the welcome prompt from it.
package sessionctx

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/soyeahso/advisor/internal/domain"
)

const (
	recentOrderLimit    = 3
	taggedOrderLimit    = 5
	chatContextLimit    = 3
	browseInterestLimit = 3
)

// defaultMissing is reported when the profile has no captured fields at all.
var defaultMissing = []string{
	"Home type", "Home age", "Project timeline", "Budget", "Skill level", "Priority area",
}

// sortedDesc returns a newest-first copy of items; the input is untouched.
func sortedDesc[T any](items []T, key func(T) string) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b T) int { return cmp.Compare(key(b), key(a)) })
	return out
}

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func lineItemNames(o domain.OrderRecord) string {
	names := make([]string, len(o.LineItems))
	for i, li := range o.LineItems {
		names[i] = li.ProductName
	}
	return strings.Join(names, ", ")
}

// Build derives a fresh CustomerSessionContext. It never mutates p.
func Build(p *domain.CustomerProfile) domain.CustomerSessionContext {
	orders := sortedDesc(p.Orders, func(o domain.OrderRecord) string { return o.OrderDate })
	chats := sortedDesc(p.ChatSummaries, func(c domain.ChatSummary) string { return c.SessionDate })
	events := sortedDesc(p.MeaningfulEvents, func(e domain.MeaningfulEvent) string { return e.CapturedAt })
	browses := sortedDesc(p.BrowseSessions, func(b domain.BrowseSession) string { return b.SessionDate })

	ctx := domain.CustomerSessionContext{
		CustomerID:        p.ID,
		Name:              p.Name,
		Email:             p.Email,
		IdentityTier:      p.Tier(),
		Space:             p.Space,
		SkillLevel:        p.ProjectProfile.SkillLevel,
		Concerns:          slices.Clone(p.ProjectProfile.Concerns),
		RecentPurchases:   []string{},
		RecentActivity:    []string{},
		AppendedInterests: []string{},
		LoyaltyTier:       p.LoyaltyTier,
		ChatContext:       []string{},
		MeaningfulEvents:  []string{},
		BrowseInterests:   []string{},
		CapturedProfile:   []string{},
		CompanyName:       p.ProjectProfile.CompanyName,
		TradeSpecialty:    slices.Clone(p.ProjectProfile.TradeSpecialty),
	}
	if p.Loyalty != nil {
		if p.Loyalty.Tier != "" {
			ctx.LoyaltyTier = p.Loyalty.Tier
		}
		ctx.LoyaltyPoints = p.Loyalty.PointsBalance
	}
	if p.AppendedProfile != nil {
		ctx.AppendedInterests = slices.Clone(p.AppendedProfile.Interests)
		if ctx.AppendedInterests == nil {
			ctx.AppendedInterests = []string{}
		}
	}

	for _, o := range firstN(orders, recentOrderLimit) {
		for _, li := range o.LineItems {
			ctx.RecentPurchases = append(ctx.RecentPurchases, li.ProductID)
		}
		ctx.RecentActivity = append(ctx.RecentActivity,
			fmt.Sprintf("Order %s on %s (%s): %s", o.OrderID, o.OrderDate, o.Channel, lineItemNames(o)))
	}
	for _, c := range firstN(chats, chatContextLimit) {
		ctx.ChatContext = append(ctx.ChatContext, fmt.Sprintf("[%s] %s", c.SessionDate, c.Summary))
	}
	for _, e := range events {
		line := fmt.Sprintf("[%s] %s", e.CapturedAt, e.Description)
		if e.AgentNote != "" {
			line += fmt.Sprintf(" (Note: %s)", e.AgentNote)
		}
		ctx.MeaningfulEvents = append(ctx.MeaningfulEvents, line)
	}
	for _, b := range firstN(browses, browseInterestLimit) {
		ctx.BrowseInterests = append(ctx.BrowseInterests, fmt.Sprintf("Browsed %s on %s (%dmin, %s)",
			strings.Join(b.CategoriesBrowsed, ", "), b.SessionDate, b.DurationMinutes, b.Device))
	}

	// Legacy profiles carry flat activity and purchase lists instead of orders.
	if len(ctx.RecentActivity) == 0 {
		for _, a := range p.RecentActivity {
			ctx.RecentActivity = append(ctx.RecentActivity, a.Description)
		}
	}
	if len(ctx.RecentPurchases) == 0 {
		for _, ph := range p.PurchaseHistory {
			ctx.RecentPurchases = append(ctx.RecentPurchases, ph.ProductID)
		}
	}

	ctx.CapturedProfile, ctx.MissingProfileFields = capturedDigest(p.AgentCapturedProfile)
	ctx.TaggedContext = taggedContext(p, orders, chats, events, browses)
	return ctx
}

func capturedDigest(captured *domain.AgentCapturedProfile) (present, missing []string) {
	present = []string{}
	if captured == nil {
		return present, slices.Clone(defaultMissing)
	}
	missing = []string{}
	for _, f := range domain.CapturedFields {
		field := f.Get(captured)
		if field == nil {
			missing = append(missing, f.Label)
			continue
		}
		present = append(present, fmt.Sprintf("%s: %s (%s, %s)", f.Label, field.Value, field.Confidence, field.CapturedFrom))
	}
	return present, missing
}

// taggedContext emits fields in a fixed order: declared facts, orders,
// loyalty, chats, events, browsing, captured fields, appended signals.
func taggedContext(p *domain.CustomerProfile, orders []domain.OrderRecord, chats []domain.ChatSummary,
	events []domain.MeaningfulEvent, browses []domain.BrowseSession) []domain.TaggedContextField {

	tagged := []domain.TaggedContextField{}
	add := func(prov domain.Provenance, format string, args ...any) {
		tagged = append(tagged, domain.Tag(fmt.Sprintf(format, args...), prov))
	}

	pp := p.ProjectProfile
	if pp.SkillLevel != "" {
		add(domain.ProvenanceDeclared, "Skill level: %s", pp.SkillLevel)
	}
	if len(pp.Concerns) > 0 {
		add(domain.ProvenanceDeclared, "Concerns: %s", strings.Join(pp.Concerns, ", "))
	}
	if pp.HomeType != "" {
		add(domain.ProvenanceDeclared, "Home type: %s", pp.HomeType)
	}
	if pp.CompanyName != "" {
		add(domain.ProvenanceDeclared, "Company: %s", pp.CompanyName)
	}
	if len(pp.TradeSpecialty) > 0 {
		add(domain.ProvenanceDeclared, "Trade: %s", strings.Join(pp.TradeSpecialty, ", "))
	}

	for _, o := range firstN(orders, taggedOrderLimit) {
		add(domain.ProvenanceObserved, "Purchased %s on %s (%s)", lineItemNames(o), o.OrderDate, o.Channel)
	}
	if l := p.Loyalty; l != nil {
		if l.PointsBalance != 0 {
			add(domain.ProvenanceObserved, "Loyalty: %s (%d pts)", l.Tier, l.PointsBalance)
		} else {
			add(domain.ProvenanceObserved, "Loyalty: %s", l.Tier)
		}
	}
	for _, c := range firstN(chats, chatContextLimit) {
		add(domain.ProvenanceObserved, "[%s] %s", c.SessionDate, c.Summary)
	}

	for _, e := range events {
		prov := domain.ProvenanceAgentInferred
		if e.EventType == domain.EventPreference || e.EventType == domain.EventMilestone {
			prov = domain.ProvenanceStated
		}
		add(prov, "%s", e.Description)
	}

	for _, b := range firstN(browses, browseInterestLimit) {
		add(domain.ProvenanceInferred, "Browsed %s on %s (%dmin)",
			strings.Join(b.CategoriesBrowsed, ", "), b.SessionDate, b.DurationMinutes)
	}

	if captured := p.AgentCapturedProfile; captured != nil {
		for _, f := range domain.CapturedFields {
			field := f.Get(captured)
			if field == nil {
				continue
			}
			prov := domain.ProvenanceAgentInferred
			if field.Confidence == "stated" {
				prov = domain.ProvenanceStated
			}
			add(prov, "%s: %s", f.Key, field.Value)
		}
	}

	if ap := p.AppendedProfile; ap != nil {
		for _, v := range ap.Interests {
			add(domain.ProvenanceAppended, "%s", v)
		}
		for _, v := range ap.LifestyleSignals {
			add(domain.ProvenanceAppended, "%s", v)
		}
	}
	return tagged
}
