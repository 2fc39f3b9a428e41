package agent

import (
	"fmt"
	"strings"

	"github.com/soyeahso/advisor/internal/domain"
)

// welcome returns the greeting for the session's customer once per
// session; later calls return nil.
func (s *mockSession) welcome() *reply {
	if s.state.HasGreeted {
		return nil
	}
	s.state.HasGreeted = true

	sc := s.sc
	if sc == nil {
		return nil
	}

	switch sc.IdentityTier {
	case domain.TierKnown:
		return knownWelcome(sc)
	case domain.TierAppended:
		return appendedWelcome(sc)
	default:
		return &reply{
			message:    "Welcome to your project advisor! I can help you plan projects, find the right products, and get expert advice. What are you working on?",
			directive:  welcomeDirective("Welcome!", "Your home improvement project advisor is ready to help.", domain.SettingNeutral),
			actions:    []string{"Help me with a project", "Show me power tools", "I need paint recommendations"},
			confidence: 0.85,
		}
	}
}

func knownWelcome(sc *domain.CustomerSessionContext) *reply {
	isB2B := sc.Space == domain.SpaceB2B
	hasActiveProject := anyContains(sc.MeaningfulEvents, false, "renovation", "building", "custom home")
	isNewHomeowner := anyContains(sc.MeaningfulEvents, true, "first home", "beginner")
	hasOutdoorInterest := anyContains(sc.BrowseInterests, false, "deck", "outdoor")

	loyalty := ""
	if sc.LoyaltyTier != "" {
		loyalty = sc.LoyaltyTier + " member"
		if sc.LoyaltyPoints != 0 {
			loyalty += " with " + thousands(sc.LoyaltyPoints) + " points"
		}
	}

	name := sc.Name
	switch {
	case isB2B && hasActiveProject && loyalty != "":
		sub := "Let's keep your project on track."
		if sc.CompanyName != "" {
			sub = sc.CompanyName + " — " + sub
		}
		return &reply{
			message:    fmt.Sprintf("Welcome back, %s. How's the project coming along? As a %s, your dedicated pricing is locked in.", name, loyalty),
			directive:  welcomeDirective("Welcome back, "+name, sub, domain.SettingJobsite),
			actions:    []string{"Check my order status", "Reorder materials", "Get a quote for next phase"},
			confidence: 0.98,
		}

	case isB2B && loyalty != "":
		sub := "Your Pro account is ready."
		if sc.CompanyName != "" {
			sub = sc.CompanyName + " — Your account is ready."
		}
		return &reply{
			message:    fmt.Sprintf("Welcome back, %s. Ready to set up your next order? As a %s, you have preferred pricing on all your regular SKUs.", name, loyalty),
			directive:  welcomeDirective("Welcome back, "+name, sub, domain.SettingWarehouse),
			actions:    []string{"Reorder last order", "Browse bulk materials", "Request a quote"},
			confidence: 0.97,
		}

	case hasActiveProject && loyalty != "":
		return &reply{
			message:    fmt.Sprintf("Welcome back, %s! How's the renovation going? As a %s, you've got some rewards to use.", name, loyalty),
			directive:  welcomeDirective("Welcome back, "+name+"!", "Let's tackle the next phase of your project. I can help you figure out what you need.", domain.SettingKitchen),
			actions:    []string{"What do I need next?", "Show me my project list", "Help me plan my budget"},
			confidence: 0.98,
		}

	case isNewHomeowner:
		return &reply{
			message:    fmt.Sprintf("Hey %s! Congrats on the new home. I'm here to help you figure out where to start — no project too small.", name),
			directive:  welcomeDirective("Welcome, "+name+"!", "Your project advisor is here. Let's start with the basics and build from there.", domain.SettingNeutral),
			actions:    []string{"Where should I start?", "Help me paint a room", "Show me starter tool kits"},
			confidence: 0.96,
		}

	case hasOutdoorInterest:
		return &reply{
			message:    fmt.Sprintf("Welcome back, %s! I see you've been looking at outdoor projects. Ready to plan your next build?", name),
			directive:  welcomeDirective("Welcome back, "+name+"!", "Spring is coming — great time to plan that outdoor project.", domain.SettingOutdoor),
			actions:    []string{"Show me decking options", "Help me plan a patio", "Outdoor project ideas"},
			confidence: 0.96,
		}
	}

	sub := "I can help you plan, find products, and get your project done right."
	if loyalty != "" {
		sub = "As a " + loyalty + ", you've got great deals waiting."
	}
	return &reply{
		message:    fmt.Sprintf("Welcome back, %s! What project are you working on?", name),
		directive:  welcomeDirective("Welcome back, "+name+"!", sub, domain.SettingNeutral),
		actions:    []string{"Help me plan a project", "Show me what's on sale", "Restock supplies"},
		confidence: 0.95,
	}
}

// appendedWelcome greets a visitor known only through third-party data.
// It must not address them by name or repeat any appended attribute.
func appendedWelcome(sc *domain.CustomerSessionContext) *reply {
	if sc.Space == domain.SpaceB2B || anyContains(sc.AppendedInterests, false, "contractor", "construction") {
		return &reply{
			message:    "Welcome to your Pro project advisor. I can help with material quotes, bulk ordering, and project planning.",
			directive:  welcomeDirective("Welcome", "Your Pro project advisor — bulk pricing, delivery scheduling, and material planning.", domain.SettingNeutral),
			actions:    []string{"Get a bulk quote", "Browse pro materials", "Set up a pro account"},
			confidence: 0.9,
		}
	}
	return &reply{
		message:    "Welcome! I'm your project advisor. Whether you're tackling a renovation or a quick repair, I can help you find what you need.",
		directive:  welcomeDirective("Welcome!", "Your project advisor — from planning to products, I'm here to help.", domain.SettingNeutral),
		actions:    []string{"Help me plan a project", "Show me bestsellers", "I need help with a repair"},
		confidence: 0.9,
	}
}

// anyContains reports whether any item contains one of the needles. With
// fold set the comparison ignores case.
func anyContains(items []string, fold bool, needles ...string) bool {
	for _, it := range items {
		if fold {
			it = strings.ToLower(it)
		}
		for _, n := range needles {
			if strings.Contains(it, n) {
				return true
			}
		}
	}
	return false
}
