package customer

import (
	"context"
	"fmt"
	"slices"

	"github.com/soyeahso/advisor/internal/domain"
	"github.com/soyeahso/advisor/internal/logging"
	"github.com/soyeahso/advisor/internal/store"
)

// ProfileStore reads customer profiles and records conversation digests.
type ProfileStore interface {
	GetCustomerProfile(ctx context.Context, merkuryID string) (*domain.CustomerProfile, error)
	WriteChatSummary(ctx context.Context, customerID, sessionID string, s domain.ChatSummary) error
}

// storedSummaryLimit caps how many persisted summaries are merged into a
// profile.
const storedSummaryLimit = 10

// FixtureProfileStore serves persona fixture profiles, enriched with chat
// summaries persisted from earlier conversations.
type FixtureProfileStore struct {
	personas  *Personas
	summaries store.SummaryStore
	log       *logging.Logger
}

// NewFixtureProfileStore creates a profile store. summaries may be nil, in
// which case summaries are logged and dropped.
func NewFixtureProfileStore(personas *Personas, summaries store.SummaryStore, log *logging.Logger) *FixtureProfileStore {
	return &FixtureProfileStore{personas: personas, summaries: summaries, log: log.Sub("customer")}
}

// GetCustomerProfile returns the profile resolving to merkuryID.
func (s *FixtureProfileStore) GetCustomerProfile(ctx context.Context, merkuryID string) (*domain.CustomerProfile, error) {
	p, ok := s.personas.ByMerkuryID(merkuryID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, merkuryID)
	}
	profile := p.Profile
	if err := mergeSummaries(ctx, s.summaries, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// WriteChatSummary persists a conversation digest.
func (s *FixtureProfileStore) WriteChatSummary(ctx context.Context, customerID, sessionID string, sum domain.ChatSummary) error {
	s.log.Info().Str("customer", customerID).Str("session", sessionID).Msg("writing chat summary")
	if s.summaries == nil {
		return nil
	}
	return s.summaries.Write(ctx, customerID, sessionID, sum)
}

// mergeSummaries prepends persisted summaries, newest first, to the
// profile's own. The profile's slice is never modified in place.
func mergeSummaries(ctx context.Context, summaries store.SummaryStore, p *domain.CustomerProfile) error {
	if summaries == nil {
		return nil
	}
	recs, err := summaries.ForCustomer(ctx, p.ID, storedSummaryLimit)
	if err != nil {
		return fmt.Errorf("loading chat summaries: %w", err)
	}
	if len(recs) == 0 {
		return nil
	}
	merged := make([]domain.ChatSummary, 0, len(recs)+len(p.ChatSummaries))
	for _, r := range recs {
		merged = append(merged, r.Summary)
	}
	p.ChatSummaries = append(merged, slices.Clone(p.ChatSummaries)...)
	return nil
}
