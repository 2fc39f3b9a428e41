package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/advisor/internal/config"
	"github.com/soyeahso/advisor/internal/domain"
	"github.com/soyeahso/advisor/internal/logging"
)

// SummaryRecord is a persisted chat summary.
type SummaryRecord struct {
	ID         string             `json:"id"`
	CustomerID string             `json:"customerId"`
	SessionID  string             `json:"sessionId"`
	Summary    domain.ChatSummary `json:"summary"`
	CreatedAt  time.Time          `json:"createdAt"`
	Rank       float64            `json:"rank,omitempty"` // FTS5 rank score (search results only)
}

// SummaryStore records the digests of finished conversations.
type SummaryStore interface {
	// Write stores a summary. Writing the same customer and session again
	// replaces the earlier record.
	Write(ctx context.Context, customerID, sessionID string, s domain.ChatSummary) error
	// ForCustomer returns a customer's summaries, newest first.
	ForCustomer(ctx context.Context, customerID string, limit int) ([]SummaryRecord, error)
	// List returns summaries across customers, newest first.
	List(ctx context.Context, limit int) ([]SummaryRecord, error)
	// Search finds summaries whose text or topics contain every query term.
	Search(ctx context.Context, query string, limit int) ([]SummaryRecord, error)
	Close() error
}

// OpenSummaries opens the summary store named by cfg.Driver.
func OpenSummaries(cfg config.StoreConfig, log *logging.Logger) (SummaryStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		db, err := Open(cfg.Path, log)
		if err != nil {
			return nil, err
		}
		return NewSQLiteSummaryStore(db), nil
	case "memory":
		return NewMemorySummaryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

const defaultLimit = 20

// SQLiteSummaryStore implements SummaryStore with SQLite and FTS5.
type SQLiteSummaryStore struct {
	db  *DB
	now func() time.Time
}

// NewSQLiteSummaryStore creates a summary store using the given database.
func NewSQLiteSummaryStore(db *DB) *SQLiteSummaryStore {
	return &SQLiteSummaryStore{db: db, now: time.Now}
}

// Write inserts or replaces a summary.
func (s *SQLiteSummaryStore) Write(ctx context.Context, customerID, sessionID string, sum domain.ChatSummary) error {
	topics, err := json.Marshal(nonNil(sum.TopicsDiscussed))
	if err != nil {
		return fmt.Errorf("encoding topics: %w", err)
	}
	sentiment := sum.Sentiment
	if sentiment == "" {
		sentiment = "neutral"
	}

	_, err = s.db.sql.ExecContext(ctx,
		`INSERT INTO chat_summaries (id, customer_id, session_id, session_date, summary, sentiment, topics, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(customer_id, session_id) DO UPDATE SET
		   session_date = excluded.session_date,
		   summary = excluded.summary,
		   sentiment = excluded.sentiment,
		   topics = excluded.topics,
		   created_at = excluded.created_at`,
		uuid.NewString(), customerID, sessionID, sum.SessionDate, sum.Summary, sentiment,
		string(topics), s.now().UTC().Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("writing chat summary: %w", err)
	}
	return nil
}

// ForCustomer returns a customer's summaries, newest first.
func (s *SQLiteSummaryStore) ForCustomer(ctx context.Context, customerID string, limit int) ([]SummaryRecord, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, customer_id, session_id, session_date, summary, sentiment, topics, created_at, 0
		 FROM chat_summaries WHERE customer_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		customerID, limitOrDefault(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// List returns the newest summaries across customers.
func (s *SQLiteSummaryStore) List(ctx context.Context, limit int) ([]SummaryRecord, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, customer_id, session_id, session_date, summary, sentiment, topics, created_at, 0
		 FROM chat_summaries
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limitOrDefault(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// Search runs an FTS5 query and returns results by relevance. Query terms
// are matched literally, so FTS operators in user input have no effect.
func (s *SQLiteSummaryStore) Search(ctx context.Context, query string, limit int) ([]SummaryRecord, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT cs.id, cs.customer_id, cs.session_id, cs.session_date, cs.summary, cs.sentiment,
		        cs.topics, cs.created_at, rank
		 FROM chat_summaries_fts
		 JOIN chat_summaries cs ON cs.rowid = chat_summaries_fts.rowid
		 WHERE chat_summaries_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		match, limitOrDefault(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// Close closes the underlying database.
func (s *SQLiteSummaryStore) Close() error { return s.db.Close() }

// ftsQuery quotes each whitespace-separated term as an FTS5 string.
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

func scanSummaries(rows *sql.Rows) ([]SummaryRecord, error) {
	var out []SummaryRecord
	for rows.Next() {
		var r SummaryRecord
		var topics, createdAt string

		if err := rows.Scan(
			&r.ID, &r.CustomerID, &r.SessionID, &r.Summary.SessionDate, &r.Summary.Summary,
			&r.Summary.Sentiment, &topics, &createdAt, &r.Rank,
		); err != nil {
			return nil, err
		}

		r.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		if err := json.Unmarshal([]byte(topics), &r.Summary.TopicsDiscussed); err != nil {
			return nil, fmt.Errorf("decoding topics of %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return n
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
