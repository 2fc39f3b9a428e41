package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/advisor/internal/domain"
)

// MemorySummaryStore keeps summaries in process memory. Search is a plain
// case-insensitive term match with no ranking.
type MemorySummaryStore struct {
	mu      sync.RWMutex
	records []SummaryRecord
	now     func() time.Time
}

// NewMemorySummaryStore creates an empty in-memory summary store.
func NewMemorySummaryStore() *MemorySummaryStore {
	return &MemorySummaryStore{now: time.Now}
}

func (m *MemorySummaryStore) Write(_ context.Context, customerID, sessionID string, sum domain.ChatSummary) error {
	if sum.Sentiment == "" {
		sum.Sentiment = "neutral"
	}
	sum.TopicsDiscussed = slices.Clone(nonNil(sum.TopicsDiscussed))
	rec := SummaryRecord{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		SessionID:  sessionID,
		Summary:    sum,
		CreatedAt:  m.now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records {
		if r.CustomerID == customerID && r.SessionID == sessionID {
			rec.ID = r.ID
			m.records = slices.Delete(m.records, i, i+1)
			break
		}
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *MemorySummaryStore) ForCustomer(_ context.Context, customerID string, limit int) ([]SummaryRecord, error) {
	return m.newest(limit, func(r SummaryRecord) bool { return r.CustomerID == customerID }), nil
}

func (m *MemorySummaryStore) List(_ context.Context, limit int) ([]SummaryRecord, error) {
	return m.newest(limit, func(SummaryRecord) bool { return true }), nil
}

func (m *MemorySummaryStore) Search(_ context.Context, query string, limit int) ([]SummaryRecord, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}
	return m.newest(limit, func(r SummaryRecord) bool {
		text := strings.ToLower(r.Summary.Summary + " " + strings.Join(r.Summary.TopicsDiscussed, " "))
		for _, t := range terms {
			if !strings.Contains(text, t) {
				return false
			}
		}
		return true
	}), nil
}

func (m *MemorySummaryStore) Close() error { return nil }

// newest walks records from the most recently written.
func (m *MemorySummaryStore) newest(limit int, keep func(SummaryRecord) bool) []SummaryRecord {
	limit = limitOrDefault(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []SummaryRecord
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := m.records[i]
		if keep(r) {
			r.Summary.TopicsDiscussed = slices.Clone(r.Summary.TopicsDiscussed)
			out = append(out, r)
		}
	}
	return out
}
