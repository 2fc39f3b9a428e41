package domain

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Space is the storefront segment a shopper is browsing.
type Space string

const (
	SpaceConsumer Space = "consumer"
	SpaceB2B      Space = "b2b"
)

// IdentityTier is how well the visitor has been identified.
type IdentityTier string

const (
	TierKnown     IdentityTier = "known"
	TierAppended  IdentityTier = "appended"
	TierAnonymous IdentityTier = "anonymous"
)

// Dates throughout the profile are ISO-8601 strings as delivered by the
// profile store; they order correctly as strings.

// CustomerProfile is a customer's full record as held by the profile store.
type CustomerProfile struct {
	ID                   string                `json:"id" yaml:"id"`
	Name                 string                `json:"name" yaml:"name"`
	Email                string                `json:"email" yaml:"email"`
	Space                Space                 `json:"space,omitempty" yaml:"space,omitempty"`
	ProjectProfile       ProjectProfile        `json:"projectProfile" yaml:"projectProfile"`
	Orders               []OrderRecord         `json:"orders" yaml:"orders"`
	PurchaseHistory      []PurchaseRecord      `json:"purchaseHistory" yaml:"purchaseHistory"`
	ChatSummaries        []ChatSummary         `json:"chatSummaries" yaml:"chatSummaries"`
	MeaningfulEvents     []MeaningfulEvent     `json:"meaningfulEvents" yaml:"meaningfulEvents"`
	BrowseSessions       []BrowseSession       `json:"browseSessions" yaml:"browseSessions"`
	Loyalty              *LoyaltyData          `json:"loyalty" yaml:"loyalty"`
	LoyaltyTier          string                `json:"loyaltyTier,omitempty" yaml:"loyaltyTier,omitempty"`
	LifetimeValue        float64               `json:"lifetimeValue" yaml:"lifetimeValue"`
	AgentCapturedProfile *AgentCapturedProfile `json:"agentCapturedProfile,omitempty" yaml:"agentCapturedProfile,omitempty"`
	SavedPaymentMethods  []PaymentMethod       `json:"savedPaymentMethods" yaml:"savedPaymentMethods"`
	ShippingAddresses    []ShippingAddress     `json:"shippingAddresses" yaml:"shippingAddresses"`
	RecentActivity       []ActivityItem        `json:"recentActivity" yaml:"recentActivity"`
	MerkuryIdentity      *MerkuryIdentity      `json:"merkuryIdentity,omitempty" yaml:"merkuryIdentity,omitempty"`
	AppendedProfile      *AppendedProfile      `json:"appendedProfile,omitempty" yaml:"appendedProfile,omitempty"`
}

// Tier returns the resolved identity tier, anonymous when unresolved.
func (p *CustomerProfile) Tier() IdentityTier {
	if p == nil || p.MerkuryIdentity == nil || p.MerkuryIdentity.IdentityTier == "" {
		return TierAnonymous
	}
	return p.MerkuryIdentity.IdentityTier
}

// ProjectProfile holds declared facts about the shopper's projects or trade.
type ProjectProfile struct {
	ProjectTypes       []string `json:"projectTypes" yaml:"projectTypes"`
	SkillLevel         string   `json:"skillLevel" yaml:"skillLevel"`
	HomeType           string   `json:"homeType,omitempty" yaml:"homeType,omitempty"`
	HomeAge            string   `json:"homeAge,omitempty" yaml:"homeAge,omitempty"`
	Concerns           []string `json:"concerns" yaml:"concerns"`
	PreferredBrands    []string `json:"preferredBrands" yaml:"preferredBrands"`
	CommunicationPrefs []string `json:"communicationPrefs" yaml:"communicationPrefs"`
	CompanyName        string   `json:"companyName,omitempty" yaml:"companyName,omitempty"`
	CompanyType        string   `json:"companyType,omitempty" yaml:"companyType,omitempty"`
	TradeSpecialty     []string `json:"tradeSpecialty,omitempty" yaml:"tradeSpecialty,omitempty"`
	LicenseNumber      string   `json:"licenseNumber,omitempty" yaml:"licenseNumber,omitempty"`
}

// OrderRecord is one order with its line items.
type OrderRecord struct {
	OrderID     string     `json:"orderId" yaml:"orderId"`
	OrderDate   string     `json:"orderDate" yaml:"orderDate"`
	Channel     string     `json:"channel" yaml:"channel"` // "online" | "in-store" | "pro-desk" | "mobile-app"
	Status      string     `json:"status" yaml:"status"`
	TotalAmount float64    `json:"totalAmount" yaml:"totalAmount"`
	LineItems   []LineItem `json:"lineItems" yaml:"lineItems"`
}

// LineItem is a product line on an order.
type LineItem struct {
	ProductID   string  `json:"productId" yaml:"productId"`
	ProductName string  `json:"productName" yaml:"productName"`
	Quantity    int     `json:"quantity" yaml:"quantity"`
	UnitPrice   float64 `json:"unitPrice" yaml:"unitPrice"`
}

// PurchaseRecord is the legacy flat purchase history entry.
type PurchaseRecord struct {
	ProductID    string `json:"productId" yaml:"productId"`
	PurchaseDate string `json:"purchaseDate" yaml:"purchaseDate"`
	Quantity     int    `json:"quantity" yaml:"quantity"`
}

// ActivityItem is the legacy recent activity entry.
type ActivityItem struct {
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Date        string `json:"date" yaml:"date"`
	ProductID   string `json:"productId,omitempty" yaml:"productId,omitempty"`
}

// ChatSummary is the digest of one finished advisor conversation.
type ChatSummary struct {
	SessionDate     string   `json:"sessionDate" yaml:"sessionDate"`
	Summary         string   `json:"summary" yaml:"summary"`
	Sentiment       string   `json:"sentiment" yaml:"sentiment"` // "positive" | "neutral" | "negative"
	TopicsDiscussed []string `json:"topicsDiscussed" yaml:"topicsDiscussed"`
}

// Meaningful event types. Preferences and milestones count as stated by
// the customer; everything else was inferred by an agent.
const (
	EventPreference = "preference"
	EventLifeEvent  = "life-event"
	EventConcern    = "concern"
	EventIntent     = "intent"
	EventMilestone  = "milestone"
	EventProject    = "project"
)

// MeaningfulEvent is something an agent captured about the customer.
type MeaningfulEvent struct {
	EventType   string            `json:"eventType" yaml:"eventType"`
	Description string            `json:"description" yaml:"description"`
	CapturedAt  string            `json:"capturedAt" yaml:"capturedAt"`
	AgentNote   string            `json:"agentNote,omitempty" yaml:"agentNote,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// BrowseSession is one storefront visit.
type BrowseSession struct {
	SessionDate       string   `json:"sessionDate" yaml:"sessionDate"`
	CategoriesBrowsed []string `json:"categoriesBrowsed" yaml:"categoriesBrowsed"`
	ProductsViewed    []string `json:"productsViewed" yaml:"productsViewed"`
	DurationMinutes   int      `json:"durationMinutes" yaml:"durationMinutes"`
	Device            string   `json:"device" yaml:"device"`
}

// LoyaltyData is the customer's rewards membership.
type LoyaltyData struct {
	Tier              string   `json:"tier" yaml:"tier"`
	PointsBalance     int      `json:"pointsBalance" yaml:"pointsBalance"`
	LifetimePoints    int      `json:"lifetimePoints" yaml:"lifetimePoints"`
	MemberSince       string   `json:"memberSince" yaml:"memberSince"`
	RewardsAvailable  []Reward `json:"rewardsAvailable,omitempty" yaml:"rewardsAvailable,omitempty"`
	NextTierThreshold int      `json:"nextTierThreshold,omitempty" yaml:"nextTierThreshold,omitempty"`
	TierExpiryDate    string   `json:"tierExpiryDate,omitempty" yaml:"tierExpiryDate,omitempty"`
}

// Reward is a redeemable loyalty reward.
type Reward struct {
	Name       string `json:"name" yaml:"name"`
	PointsCost int    `json:"pointsCost" yaml:"pointsCost"`
	ExpiresAt  string `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
}

// FieldValue is a captured value which may be a single string or a list.
type FieldValue []string

func (v FieldValue) String() string { return strings.Join(v, ", ") }

func (v FieldValue) MarshalJSON() ([]byte, error) {
	if len(v) == 1 {
		return json.Marshal(v[0])
	}
	return json.Marshal([]string(v))
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = FieldValue{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*v = list
	return nil
}

func (v *FieldValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*v = FieldValue{node.Value}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*v = list
	return nil
}

// CapturedProfileField is a profile fact an agent learned in conversation.
type CapturedProfileField struct {
	Value        FieldValue `json:"value" yaml:"value"`
	CapturedAt   string     `json:"capturedAt" yaml:"capturedAt"`
	CapturedFrom string     `json:"capturedFrom" yaml:"capturedFrom"`
	Confidence   string     `json:"confidence" yaml:"confidence"` // "stated" | "inferred"
}

// AgentCapturedProfile holds the enrichment fields the advisor tries to learn.
type AgentCapturedProfile struct {
	HomeType           *CapturedProfileField `json:"homeType,omitempty" yaml:"homeType,omitempty"`
	HomeAge            *CapturedProfileField `json:"homeAge,omitempty" yaml:"homeAge,omitempty"`
	ProjectTimeline    *CapturedProfileField `json:"projectTimeline,omitempty" yaml:"projectTimeline,omitempty"`
	Budget             *CapturedProfileField `json:"budget,omitempty" yaml:"budget,omitempty"`
	SkillLevel         *CapturedProfileField `json:"skillLevel,omitempty" yaml:"skillLevel,omitempty"`
	PreferredStyle     *CapturedProfileField `json:"preferredStyle,omitempty" yaml:"preferredStyle,omitempty"`
	PriorityArea       *CapturedProfileField `json:"priorityArea,omitempty" yaml:"priorityArea,omitempty"`
	TeamSize           *CapturedProfileField `json:"teamSize,omitempty" yaml:"teamSize,omitempty"`
	ProjectVolume      *CapturedProfileField `json:"projectVolume,omitempty" yaml:"projectVolume,omitempty"`
	PreferredSupplier  *CapturedProfileField `json:"preferredSupplier,omitempty" yaml:"preferredSupplier,omitempty"`
	DeliveryPreference *CapturedProfileField `json:"deliveryPreference,omitempty" yaml:"deliveryPreference,omitempty"`
}

// CapturedField pairs a captured profile key with its display label.
type CapturedField struct {
	Key   string
	Label string
	Get   func(*AgentCapturedProfile) *CapturedProfileField
}

// CapturedFields lists the enrichment fields in display order.
var CapturedFields = []CapturedField{
	{"homeType", "Home type", func(p *AgentCapturedProfile) *CapturedProfileField { return p.HomeType }},
	{"homeAge", "Home age", func(p *AgentCapturedProfile) *CapturedProfileField { return p.HomeAge }},
	{"projectTimeline", "Project timeline", func(p *AgentCapturedProfile) *CapturedProfileField { return p.ProjectTimeline }},
	{"budget", "Budget", func(p *AgentCapturedProfile) *CapturedProfileField { return p.Budget }},
	{"skillLevel", "Skill level", func(p *AgentCapturedProfile) *CapturedProfileField { return p.SkillLevel }},
	{"preferredStyle", "Preferred style", func(p *AgentCapturedProfile) *CapturedProfileField { return p.PreferredStyle }},
	{"priorityArea", "Priority area", func(p *AgentCapturedProfile) *CapturedProfileField { return p.PriorityArea }},
	{"teamSize", "Team size", func(p *AgentCapturedProfile) *CapturedProfileField { return p.TeamSize }},
	{"projectVolume", "Project volume", func(p *AgentCapturedProfile) *CapturedProfileField { return p.ProjectVolume }},
	{"preferredSupplier", "Preferred supplier", func(p *AgentCapturedProfile) *CapturedProfileField { return p.PreferredSupplier }},
	{"deliveryPreference", "Delivery preference", func(p *AgentCapturedProfile) *CapturedProfileField { return p.DeliveryPreference }},
}

// PaymentMethod is a stored card or account.
type PaymentMethod struct {
	ID        string `json:"id" yaml:"id"`
	Type      string `json:"type" yaml:"type"`
	Last4     string `json:"last4" yaml:"last4"`
	Brand     string `json:"brand,omitempty" yaml:"brand,omitempty"`
	IsDefault bool   `json:"isDefault" yaml:"isDefault"`
}

// ShippingAddress is a delivery address on file.
type ShippingAddress struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Line1      string `json:"line1" yaml:"line1"`
	Line2      string `json:"line2,omitempty" yaml:"line2,omitempty"`
	City       string `json:"city" yaml:"city"`
	State      string `json:"state" yaml:"state"`
	PostalCode string `json:"postalCode" yaml:"postalCode"`
	Country    string `json:"country" yaml:"country"`
	IsDefault  bool   `json:"isDefault" yaml:"isDefault"`
}

// MerkuryIdentity is the identity resolution result attached to a profile.
type MerkuryIdentity struct {
	MerkuryID    string       `json:"merkuryId" yaml:"merkuryId"`
	IdentityTier IdentityTier `json:"identityTier" yaml:"identityTier"`
	Confidence   float64      `json:"confidence" yaml:"confidence"`
	ResolvedAt   string       `json:"resolvedAt" yaml:"resolvedAt"`
}

// AppendedProfile is third-party data for a visitor who never identified
// themselves. It may bias product selection but must never be quoted back.
type AppendedProfile struct {
	AgeRange         string   `json:"ageRange,omitempty" yaml:"ageRange,omitempty"`
	Gender           string   `json:"gender,omitempty" yaml:"gender,omitempty"`
	HouseholdIncome  string   `json:"householdIncome,omitempty" yaml:"householdIncome,omitempty"`
	HasChildren      *bool    `json:"hasChildren,omitempty" yaml:"hasChildren,omitempty"`
	HomeOwnership    string   `json:"homeOwnership,omitempty" yaml:"homeOwnership,omitempty"`
	EducationLevel   string   `json:"educationLevel,omitempty" yaml:"educationLevel,omitempty"`
	Interests        []string `json:"interests,omitempty" yaml:"interests,omitempty"`
	LifestyleSignals []string `json:"lifestyleSignals,omitempty" yaml:"lifestyleSignals,omitempty"`
	GeoRegion        string   `json:"geoRegion,omitempty" yaml:"geoRegion,omitempty"`
}

// CustomerSessionContext is the agent-facing digest of a profile.
type CustomerSessionContext struct {
	CustomerID           string               `json:"customerId"`
	Name                 string               `json:"name"`
	Email                string               `json:"email,omitempty"`
	IdentityTier         IdentityTier         `json:"identityTier"`
	Space                Space                `json:"space,omitempty"`
	SkillLevel           string               `json:"skillLevel,omitempty"`
	Concerns             []string             `json:"concerns,omitempty"`
	RecentPurchases      []string             `json:"recentPurchases"`
	RecentActivity       []string             `json:"recentActivity"`
	AppendedInterests    []string             `json:"appendedInterests"`
	LoyaltyTier          string               `json:"loyaltyTier,omitempty"`
	LoyaltyPoints        int                  `json:"loyaltyPoints,omitempty"`
	ChatContext          []string             `json:"chatContext"`
	MeaningfulEvents     []string             `json:"meaningfulEvents"`
	BrowseInterests      []string             `json:"browseInterests"`
	CapturedProfile      []string             `json:"capturedProfile"`
	MissingProfileFields []string             `json:"missingProfileFields"`
	TaggedContext        []TaggedContextField `json:"taggedContext"`
	CompanyName          string               `json:"companyName,omitempty"`
	TradeSpecialty       []string             `json:"tradeSpecialty,omitempty"`
}
