package conversation

import "github.com/soyeahso/advisor/internal/domain"

// Apology replaces the agent reply when a turn fails.
const Apology = "I'm sorry, I encountered an issue. Could you try again?"

// DefaultActions are the suggestions shown with no active conversation.
func DefaultActions(space domain.Space) []string {
	if space == domain.SpaceB2B {
		return []string{"Show me building materials", "I need to restock", "Get a bulk quote"}
	}
	return []string{"Help me plan a project", "Show me power tools", "What do you recommend?"}
}

// welcomeActions are the suggestions for a welcome the agent sent none for.
func welcomeActions(sc *domain.CustomerSessionContext) []string {
	returning := len(sc.RecentPurchases) > 0
	switch {
	case sc.Space == domain.SpaceB2B && returning:
		return []string{"Reorder last materials", "Check delivery status", "Get a quote"}
	case sc.Space == domain.SpaceB2B:
		return []string{"Show me building materials", "I need bulk pricing", "Set up an account"}
	case returning:
		return []string{"Continue my project", "What's new?", "Show me something different"}
	case sc.IdentityTier == domain.TierAppended:
		return []string{"What do you recommend?", "Show me popular items", "Help me plan a project"}
	default:
		return []string{"Help me plan a project", "Show me power tools", "What do you recommend?"}
	}
}
