package customer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/advisor/internal/domain"
	"github.com/soyeahso/advisor/internal/logging"
	"github.com/soyeahso/advisor/internal/store"
)

// Selection is the active shopper. Customer is nil for anonymous visitors
// and when nothing is selected.
type Selection struct {
	PersonaID string                  `json:"personaId,omitempty"`
	Customer  *domain.CustomerProfile `json:"customer,omitempty"`
	Space     domain.Space            `json:"space"`
	// Refresh marks a re-resolution of the same shopper; the conversation
	// is kept.
	Refresh bool  `json:"refresh,omitempty"`
	Err     error `json:"-"`
}

// SelectorConfig wires a Selector.
type SelectorConfig struct {
	Personas *Personas
	Resolver Resolver
	Profiles ProfileStore
	// Summaries enriches fixture profiles in mock mode. Optional.
	Summaries store.SummaryStore
	// Live fetches known profiles from Profiles instead of the fixtures.
	Live  bool
	Space domain.Space
	Now   func() time.Time
}

// Selector tracks which persona is active and resolves its profile.
type Selector struct {
	personas  *Personas
	resolver  Resolver
	profiles  ProfileStore
	summaries store.SummaryStore
	live      bool
	now       func() time.Time
	log       *logging.Logger

	mu      sync.Mutex
	current Selection
}

// NewSelector creates a Selector with nothing selected.
func NewSelector(cfg SelectorConfig, log *logging.Logger) *Selector {
	if cfg.Space == "" {
		cfg.Space = domain.SpaceConsumer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Selector{
		personas:  cfg.Personas,
		resolver:  cfg.Resolver,
		profiles:  cfg.Profiles,
		summaries: cfg.Summaries,
		live:      cfg.Live,
		now:       cfg.Now,
		log:       log.Sub("customer"),
		current:   Selection{Space: cfg.Space},
	}
}

// Personas returns the persona fixtures the selector draws from.
func (s *Selector) Personas() *Personas { return s.personas }

// Current returns the active selection.
func (s *Selector) Current() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetSpace switches storefront space and clears the active persona.
func (s *Selector) SetSpace(space domain.Space) Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Selection{Space: space}
	return s.current
}

// Select makes personaID the active shopper. Resolution failures are
// reported in Selection.Err with the customer cleared; only an unknown
// persona id is returned as an error.
func (s *Selector) Select(ctx context.Context, personaID string) (Selection, error) {
	return s.selectPersona(ctx, personaID, false)
}

// Refresh re-resolves the active persona without restarting its
// conversation.
func (s *Selector) Refresh(ctx context.Context) (Selection, error) {
	cur := s.Current()
	if cur.PersonaID == "" {
		return cur, nil
	}
	return s.selectPersona(ctx, cur.PersonaID, true)
}

// IdentifyByEmail switches to the persona owning email, keeping the
// conversation as a refresh.
func (s *Selector) IdentifyByEmail(ctx context.Context, email string) (Selection, error) {
	personaID, _, err := s.resolver.ResolveEmail(ctx, email)
	if err != nil {
		return s.Current(), fmt.Errorf("identifying %q: %w", email, err)
	}
	s.log.Info().Str("persona", personaID).Msg("customer identified by email")
	return s.selectPersona(ctx, personaID, true)
}

func (s *Selector) selectPersona(ctx context.Context, personaID string, refresh bool) (Selection, error) {
	if _, ok := s.personas.Get(personaID); !ok {
		return s.Current(), fmt.Errorf("%w: %s", ErrPersonaNotFound, personaID)
	}

	space := s.Current().Space
	sel := Selection{PersonaID: personaID, Space: space, Refresh: refresh}
	customer, err := s.resolveProfile(ctx, personaID, space)
	if err != nil {
		s.log.Error().Err(err).Str("persona", personaID).Msg("identity resolution failed")
		sel.Err = err
	} else {
		sel.Customer = customer
	}

	s.mu.Lock()
	s.current = sel
	s.mu.Unlock()
	return sel, nil
}

func (s *Selector) resolveProfile(ctx context.Context, personaID string, space domain.Space) (*domain.CustomerProfile, error) {
	res, err := s.resolver.Resolve(ctx, personaID)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("tier", string(res.IdentityTier)).Float64("confidence", res.Confidence).Msg("identity resolved")

	identity := &domain.MerkuryIdentity{
		MerkuryID:    res.MerkuryID,
		IdentityTier: res.IdentityTier,
		Confidence:   res.Confidence,
		ResolvedAt:   s.now().UTC().Format(time.RFC3339),
	}

	switch {
	case res.IdentityTier == domain.TierAppended:
		s.log.Info().Msg("appended-tier identity, using minimal profile with third-party signals only")
		return appendedProfile(personaID, space, identity, res.AppendedData), nil
	case res.IdentityTier == domain.TierAnonymous || res.MerkuryID == "":
		s.log.Info().Msg("anonymous visitor, staying on default experience")
		return nil, nil
	case !s.live:
		p, _ := s.personas.Get(personaID)
		profile := p.Profile
		if err := mergeSummaries(ctx, s.summaries, &profile); err != nil {
			s.log.Warn().Err(err).Msg("chat summaries unavailable")
		}
		return &profile, nil
	}

	profile, err := s.profiles.GetCustomerProfile(ctx, res.MerkuryID)
	if err != nil {
		s.log.Warn().Err(err).Msg("profile fetch failed, falling back to persona fixture")
		p, _ := s.personas.Get(personaID)
		fallback := p.Profile
		fallback.MerkuryIdentity = identity
		return &fallback, nil
	}
	profile.MerkuryIdentity = identity
	if res.AppendedData != nil {
		profile.AppendedProfile = res.AppendedData
	}
	return profile, nil
}

func appendedProfile(personaID string, space domain.Space, identity *domain.MerkuryIdentity, data *domain.AppendedProfile) *domain.CustomerProfile {
	id := identity.MerkuryID
	if id == "" {
		id = "appended-" + personaID
	}
	return &domain.CustomerProfile{
		ID:                  id,
		Name:                "Guest",
		Space:               space,
		Orders:              []domain.OrderRecord{},
		PurchaseHistory:     []domain.PurchaseRecord{},
		ChatSummaries:       []domain.ChatSummary{},
		MeaningfulEvents:    []domain.MeaningfulEvent{},
		BrowseSessions:      []domain.BrowseSession{},
		SavedPaymentMethods: []domain.PaymentMethod{},
		ShippingAddresses:   []domain.ShippingAddress{},
		RecentActivity:      []domain.ActivityItem{},
		MerkuryIdentity:     identity,
		AppendedProfile:     data,
	}
}
