package agent

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/soyeahso/advisor/internal/domain"
)

type mockRule struct {
	pattern *regexp.Regexp
	respond func(s *mockSession) reply
}

// mockRules is checked in order; the first matching pattern answers.
var mockRules = []mockRule{
	{
		pattern: regexp.MustCompile(`(?i)drill|driver|screw(driver)?|cordless`),
		respond: func(s *mockSession) reply {
			p, d := s.showProduct("drill-cordless-20v", "power-tools", domain.SettingWorkshop)
			return reply{
				message:   fmt.Sprintf("I'd recommend our %s. It's compact, powerful at 350 in-lbs of torque, and comes with a battery, charger, and bag. Great for most DIY and renovation tasks.", p.Name),
				directive: d,
				actions:   []string{"Add to cart", "Show me more power tools", "What else do I need?"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)saw|circular saw|cut(ting)? wood|lumber cut`),
		respond: func(s *mockSession) reply {
			p, d := s.showProduct("saw-circular-7in", "power-tools", domain.SettingWorkshop)
			return reply{
				message:   fmt.Sprintf("The %s is a solid choice — 15 amps, 5,500 RPM, and lightweight. It'll handle framing lumber, plywood, and most decking with ease.", p.Name),
				directive: d,
				actions:   []string{"Add to cart", "Show me a drill too", "What blade should I get?"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)paint|painting|interior paint|wall paint|primer`),
		respond: func(s *mockSession) reply {
			return reply{
				message:   "Here are our top paint options. The Premium Interior is one-coat with built-in primer — perfect for most rooms. The WeatherGuard is built for exteriors with UV and mildew resistance.",
				directive: s.showProducts("paint", domain.SettingLivingRoom, "paint-interior-gallon", "paint-exterior-gallon"),
				actions:   []string{"How much paint do I need?", "What about stain?", "Show me painting supplies"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)deck|decking|composite deck|deck board`),
		respond: func(s *mockSession) reply {
			return reply{
				message:   "For decking, our composite boards are the way to go — zero maintenance, 25-year warranty, and they look like real wood. If you have an existing wood deck, the Premium Stain & Sealer will protect it for years.",
				directive: s.showProducts("decking", domain.SettingOutdoor, "decking-composite-16ft", "stain-deck"),
				actions:   []string{"How many boards for my deck?", "Show me railing options", "Compare wood vs composite"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)floor|flooring|vinyl|tile|hardwood|lvp`),
		respond: func(s *mockSession) reply {
			return reply{
				message:   "Two great options: Luxury Vinyl Plank is waterproof, click-lock (no glue needed), and looks like real hardwood. The Porcelain Tile is perfect for bathrooms, kitchens, or high-traffic areas — nearly indestructible.",
				directive: s.showProducts("flooring", domain.SettingLivingRoom, "flooring-vinyl-plank", "flooring-tile-porcelain"),
				actions:   []string{"How much flooring do I need?", "Can I install LVP myself?", "Show me tile patterns"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)kitchen|faucet|sink|countertop|cabinet`),
		respond: func(s *mockSession) reply {
			return reply{
				message:   "For a kitchen upgrade, start with our Touchless Faucet — hands-free with spot-resist finish. Pair it with LED recessed lighting to completely transform the space. Both are DIY-friendly installations.",
				directive: s.showProducts("kitchen", domain.SettingKitchen, "faucet-kitchen-pulldown", "light-recessed-6pk"),
				actions:   []string{"Help me plan a kitchen reno", "Just the faucet", "What about countertops?"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)bathroom|toilet|vanity|shower|bath`),
		respond: func(s *mockSession) reply {
			return reply{
				message:   "For a bathroom refresh, the WaterSense Toilet saves up to 25% on water usage, and our 36-inch Vanity comes complete with marble top and soft-close drawers. Both are solid upgrades.",
				directive: s.showProducts("bathroom", domain.SettingBathroom, "toilet-dual-flush", "vanity-36in"),
				actions:   []string{"Plan a full bathroom reno", "Just the vanity", "Show me shower options"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)light|lighting|led|recessed|pendant|fixture`),
		respond: func(s *mockSession) reply {
			return reply{
				message:   "Lighting makes a huge difference. Our LED Recessed Lights are canless — no housing needed, and you can adjust the color temperature. The Farmhouse Pendant adds character over a kitchen island or dining table.",
				directive: s.showProducts("lighting", domain.SettingLivingRoom, "light-recessed-6pk", "light-pendant-farmhouse"),
				actions:   []string{"How many recessed lights for my room?", "Show me outdoor lighting", "Can I install these myself?"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)smart home|smart lock|security|lock|doorbell`),
		respond: func(s *mockSession) reply {
			return reply{
				message:   "Start your smart home with essentials: the Smart Deadbolt has fingerprint, keypad, and app control. Pair it with our Smart Smoke & CO Detector for safety alerts on your phone.",
				directive: s.showProducts("hardware", domain.SettingNeutral, "lock-smartdead", "detector-smoke-co"),
				actions:   []string{"Add both to cart", "Show me more smart home", "Is it easy to install?"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)outdoor|patio|paver|yard|garden|fence`),
		respond: func(s *mockSession) reply {
			return reply{
				message:   "For outdoor living, our Patio Paver Kit covers 100 sq ft with everything included — pavers, edge restraints, and polymeric sand. If you're thinking bigger, composite decking gives you a low-maintenance elevated space.",
				directive: s.showProducts("outdoor", domain.SettingOutdoor, "patio-paver-bundle", "decking-composite-16ft"),
				actions:   []string{"Help me design my patio", "Compare deck vs patio", "Show me fence options"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)lumber|stud|framing|2x4|2x6|plywood|osb|sheathing`),
		respond: func(s *mockSession) reply {
			return reply{
				message:   "Here's our framing essentials. The KD studs come in 100-packs at $389 — volume pricing drops to $329/bundle at 25+. OSB sheathing is $18.50/sheet, down to $16.75 at 50+ sheets. Both available for jobsite delivery.",
				directive: s.showProducts("lumber", domain.SettingWarehouse, "lumber-2x4-stud-bundle", "plywood-sheathing-osb"),
				actions:   []string{"Get a quote", "Schedule delivery", "Show me insulation too"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)insulation|r-?19|r-?13|batt|blown`),
		respond: func(s *mockSession) reply {
			_, d := s.showProduct("insulation-r19-bundle", "insulation", domain.SettingWarehouse)
			return reply{
				message:   "Our R-19 Fiberglass Batts cover 75 sq ft per bag at $52 — bulk pricing drops to $45/bag at 50+ bags. Perfect for 2x6 walls and floors. Kraft-faced for vapor control.",
				directive: d,
				actions:   []string{"Get a bulk quote", "Show me R-13 too", "Add to order"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)roof|shingle|roofing`),
		respond: func(s *mockSession) reply {
			_, d := s.showProduct("roofing-shingle-bundle", "roofing", domain.SettingJobsite)
			return reply{
				message:   "Architectural shingles at $34/bundle — bulk pricing at $29/bundle for 60+. Class A fire rated, 130 mph wind warranty, algae resistant. Lifetime limited warranty.",
				directive: d,
				actions:   []string{"Calculate bundles for my roof", "Get a quote", "Show me underlayment too"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)electric|wire|romex|breaker|outlet|switch`),
		respond: func(s *mockSession) reply {
			_, d := s.showProduct("wire-romex-250ft", "electrical", domain.SettingWarehouse)
			return reply{
				message:   "12/2 NM-B Romex in 250-foot rolls at $89. UL listed, copper conductor with ground. We also carry 14/2 and 10/3 if you need different gauges.",
				directive: d,
				actions:   []string{"Get a quote for all wire needs", "Show me breaker panels", "Add to order"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)concrete|cement|footing|slab|post`),
		respond: func(s *mockSession) reply {
			_, d := s.showProduct("concrete-mix-80lb", "concrete", domain.SettingJobsite)
			return reply{
				message:   "Fast-setting concrete at $6.50/bag — sets in 20-40 minutes, 4,000 PSI strength. Bulk pricing at $5.40/bag for 80+. For posts, just pour dry and add water — no mixing needed.",
				directive: d,
				actions:   []string{"Calculate bags needed", "Get bulk pricing", "Show me rebar too"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)drywall|sheetrock|gypsum`),
		respond: func(s *mockSession) reply {
			_, d := s.showProduct("drywall-sheet-50pk", "lumber", domain.SettingWarehouse)
			return reply{
				message:   `Standard 1/2" drywall in 50-sheet bundles at $625 ($12.50/sheet). Fire-resistant core. Volume pricing at $11.75/sheet for 100+. Available for jobsite delivery with crane placement.`,
				directive: d,
				actions:   []string{"Get a delivery quote", "Add joint compound & tape", "Order now"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)hvac|air condition|mini.?split|heat pump|heating|cooling`),
		respond: func(s *mockSession) reply {
			_, d := s.showProduct("hvac-mini-split", "hvac", domain.SettingNeutral)
			return reply{
				message:   "Our 12,000 BTU Mini-Split handles up to 550 sq ft with both heating and cooling. SEER2 rating of 20 for energy efficiency. WiFi enabled for app control. Includes both indoor and outdoor units.",
				directive: d,
				actions:   []string{"Get installation info", "Show me larger units", "Add to cart"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)quote|bid|estimate|pricing|bulk price`),
		respond: func(s *mockSession) reply {
			return reply{
				message: "I can put together a quote for you. What materials do you need? You can also send me a material list and I'll price it all out with your volume discounts.",
				actions: []string{"Quote for framing package", "Quote for roofing", "Upload a material list"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)restock|reorder|running low|last order|order again`),
		respond: func(s *mockSession) reply {
			if s.sc != nil && len(s.sc.RecentPurchases) > 0 {
				var ids []string
				for _, id := range s.sc.RecentPurchases {
					if _, ok := s.m.cat.Lookup(id); ok && !slices.Contains(ids, id) {
						ids = append(ids, id)
					}
				}
				if len(ids) > 0 {
					return reply{
						message:   fmt.Sprintf("Here are your recent purchases, %s. Want me to set up a reorder?", s.sc.Name),
						directive: s.showPicks(domain.SettingNeutral, ids...),
						actions:   []string{"Reorder all", "Modify quantities", "Show me something different"},
					}
				}
			}
			return reply{
				message: "I'd be happy to help you restock. What products are you running low on?",
				actions: []string{"Paint", "Lumber", "Fasteners", "Show me my order history"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)recommend|what should|suggest|bestseller|popular|what do you`),
		respond: func(s *mockSession) reply {
			if s.isB2B() {
				return reply{
					message:   "Here are our most-ordered Pro materials this month. All available with volume pricing and jobsite delivery.",
					directive: s.showPicks(domain.SettingWarehouse, "lumber-2x4-stud-bundle", "insulation-r19-bundle", "roofing-shingle-bundle", "concrete-mix-80lb"),
					actions:   []string{"Get a bulk quote", "Show me all Pro materials", "Schedule a delivery"},
				}
			}
			return reply{
				message:   "Here are our top picks across categories: a versatile drill, our best-selling paint, waterproof vinyl plank flooring, and a touchless kitchen faucet.",
				directive: s.showPicks(domain.SettingNeutral, "drill-cordless-20v", "paint-interior-gallon", "flooring-vinyl-plank", "faucet-kitchen-pulldown"),
				actions:   []string{"Show me power tools", "Help me plan a project", "Show me what's on sale"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)buy|purchase|add to (bag|cart)|get (it|this|both|all|the|them)|order now`),
		respond: func(s *mockSession) reply {
			return reply{
				message: "Great choice! I'll get that set up for you.",
				directive: &domain.UIDirective{
					Action: domain.ActionInitiateCheckout,
					Payload: &domain.UIDirectivePayload{
						CheckoutData: &domain.CheckoutData{Products: []domain.Product{}, UseStoredPayment: true},
					},
				},
				actions: []string{},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)how (much|many)|calculate|coverage|measure|square feet|sq ft`),
		respond: func(s *mockSession) reply {
			switch {
			case slices.Contains(s.state.ShownCategories, "paint"):
				return reply{
					message: "For paint, measure the height x width of each wall, then subtract doors and windows. One gallon covers about 400 sq ft. For a 12x12 room with 8-foot ceilings, you'd need about 1.5 gallons (2 gallons to be safe).",
					actions: []string{"Got it, show me paint", "What about primer?", "Help me with another room"},
				}
			case slices.Contains(s.state.ShownCategories, "flooring"):
				return reply{
					message: "For flooring, multiply room length x width to get square footage. Add 10% for waste and cuts. For example, a 12x15 room = 180 sq ft + 10% = 198 sq ft of flooring needed.",
					actions: []string{"Calculate for my room", "Show me flooring options", "What about transitions?"},
				}
			}
			return reply{
				message: "I can help you calculate materials. What project are you working on? Knowing the room dimensions or project scope helps me give you accurate quantities.",
				actions: []string{"Paint for a room", "Flooring for a room", "Decking for my yard", "Roofing materials"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)delivery|shipping|jobsite|pick.?up|will.?call`),
		respond: func(s *mockSession) reply {
			if s.isB2B() {
				return reply{
					message: "For Pro accounts, we offer free jobsite delivery on orders over $500. We can schedule 48-hour advance deliveries and do staged drops for large projects. Will-call is also available at any branch.",
					actions: []string{"Schedule a delivery", "Check delivery availability", "Find my nearest branch"},
				}
			}
			return reply{
				message: "We offer free delivery on orders over $45 for most items. Larger items like appliances and lumber have special delivery options. You can also pick up in-store, often same-day.",
				actions: []string{"Check delivery for my order", "Find a store near me", "Same-day pickup options"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)project|plan|how to|step.?by.?step|where.?to.?start|beginner`),
		respond: func(s *mockSession) reply {
			return reply{
				message: "I'd love to help you plan your project! Tell me what you're looking to do and I'll walk you through the steps, tools needed, and materials required. Whether it's a bathroom refresh, kitchen upgrade, or deck build — I've got you covered.",
				actions: []string{"Plan a kitchen renovation", "Plan a bathroom update", "Build a deck", "Paint a room"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)spec|specification|detail|dimension|feature`),
		respond: func(s *mockSession) reply {
			if s.state.CurrentProductID != "" {
				if p, ok := s.m.cat.Lookup(s.state.CurrentProductID); ok && len(p.Attributes.Specs) > 0 {
					msg := fmt.Sprintf("The %s specs: %s.", p.Name, strings.Join(p.Attributes.Specs, ", "))
					if p.Attributes.Warranty != "" {
						msg += " Warranty: " + p.Attributes.Warranty + "."
					}
					return reply{
						message: msg,
						actions: []string{"Add to cart", "Show me alternatives", "Compare options"},
					}
				}
			}
			return reply{
				message: "I can look up specs for any product. Which one are you interested in?",
				actions: []string{"Power tools", "Flooring", "Plumbing fixtures", "Lighting"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)thank|thanks|bye|goodbye`),
		respond: func(s *mockSession) reply {
			return reply{
				message:   "You're welcome! Good luck with your project. Come back anytime you need advice or supplies!",
				directive: &domain.UIDirective{Action: domain.ActionResetScene, Payload: &domain.UIDirectivePayload{}},
				actions:   []string{},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)hi|hello|hey|good (morning|afternoon|evening)`),
		respond: func(s *mockSession) reply {
			if w := s.welcome(); w != nil {
				return *w
			}
			return reply{
				message: "Hello! Welcome to your project advisor. What are you working on today?",
				actions: []string{"Help me plan a project", "Show me power tools", "I need paint", "Browse all categories"},
			}
		},
	},
}
