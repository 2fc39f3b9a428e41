package sessionctx

import (
	"fmt"
	"strings"

	"github.com/soyeahso/advisor/internal/domain"
)

// WelcomeSentinel opens every welcome prompt; response sources treat a
// message starting with it as the request for a greeting.
const WelcomeSentinel = "[WELCOME]"

// Section headers of the welcome prompt, one per usage permission.
const (
	HeaderDirect    = "[CONFIRMED — OK to reference directly]"
	HeaderSoft      = "[OBSERVED/INFERRED — reference gently]"
	HeaderInfluence = "[INFLUENCE ONLY — use to curate selections, NEVER reference directly]"
)

var dataUsageRules = []string{
	"[DATA USAGE RULES]",
	"Context below is tagged by provenance. Follow these rules strictly:",
	"- [CONFIRMED]: Customer stated or declared this. Reference explicitly.",
	`- [OBSERVED/INFERRED]: Behavioral signals. Reference gently ("You were looking at...", "It seems like...").`,
	"- [INFLUENCE ONLY]: Third-party data. NEVER mention directly. Use only to curate product selection.",
}

// WelcomeMessage renders the prompt sent to the agent when a session starts.
func WelcomeMessage(ctx domain.CustomerSessionContext) string {
	lines := []string{WelcomeSentinel}

	switch ctx.IdentityTier {
	case domain.TierAppended:
		lines = append(lines,
			"Customer: First-time visitor (identity resolved via Merkury, NOT a hand-raiser)",
			"Identity: appended",
			fmt.Sprintf("Space: %s", ctx.Space),
			`[INSTRUCTION] Do NOT greet by name. Use appended signals to subtly curate product selections. Frame recommendations as "popular picks" or "you might be interested in" — never "based on your profile".`,
		)
	case domain.TierAnonymous:
		lines = append(lines,
			"Customer: Anonymous visitor",
			"Identity: anonymous",
			fmt.Sprintf("Space: %s", ctx.Space),
		)
	default:
		email := ctx.Email
		if email == "" {
			email = "unknown"
		}
		lines = append(lines,
			fmt.Sprintf("Customer: %s (greet by first name)", ctx.Name),
			fmt.Sprintf("Email: %s", email),
			fmt.Sprintf("Identity: %s", ctx.IdentityTier),
			fmt.Sprintf("Space: %s", ctx.Space),
		)
		if ctx.Space == domain.SpaceB2B && ctx.CompanyName != "" {
			lines = append(lines, fmt.Sprintf("Company: %s", ctx.CompanyName))
			if len(ctx.TradeSpecialty) > 0 {
				lines = append(lines, fmt.Sprintf("Trade: %s", strings.Join(ctx.TradeSpecialty, ", ")))
			}
		}
		if ctx.Email != "" {
			lines = append(lines, fmt.Sprintf("[INSTRUCTION] The customer has been identified via their email address (%s). "+
				"Call Identify Customer By Email with this address to resolve their contactId before performing any profile updates or event captures.", ctx.Email))
		}
	}

	lines = append(lines, "")
	lines = append(lines, dataUsageRules...)

	sections := []struct {
		header string
		usage  domain.Usage
	}{
		{HeaderDirect, domain.UsageDirect},
		{HeaderSoft, domain.UsageSoft},
		{HeaderInfluence, domain.UsageInfluenceOnly},
	}
	for _, s := range sections {
		var values []string
		for _, f := range ctx.TaggedContext {
			if f.Usage == s.usage {
				values = append(values, "  "+f.Value)
			}
		}
		if len(values) == 0 {
			continue
		}
		lines = append(lines, "", s.header)
		lines = append(lines, values...)
	}

	if len(ctx.MissingProfileFields) > 0 {
		lines = append(lines, "", "[ENRICHMENT OPPORTUNITY] Try to naturally learn: "+strings.Join(ctx.MissingProfileFields, ", "))
	}

	return strings.Join(lines, "\n")
}

// IsWelcome reports whether a message is a welcome request.
func IsWelcome(message string) bool {
	return strings.HasPrefix(message, WelcomeSentinel)
}
