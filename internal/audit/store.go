// Package audit keeps a SQLite log of classifier calls made by the mindmap
// engine, for offline review of classifier quality.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Hoooon22/devzip-sub000/internal/mindmap"
)

// Entry is one recorded classifier call.
type Entry struct {
	ID         string `json:"id"`
	Operation  string `json:"operation"`
	Result     string `json:"result"`
	Items      int    `json:"items"`
	Records    int    `json:"records"`
	Discarded  int    `json:"discarded"`
	Repaired   int    `json:"repaired"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	Raw        string `json:"raw,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// OperationSummary aggregates entries of one operation.
type OperationSummary struct {
	Operation      string  `json:"operation"`
	Calls          int     `json:"calls"`
	Fallbacks      int     `json:"fallbacks"`
	Partial        int     `json:"partial"`
	Skipped        int     `json:"skipped"`
	Repaired       int     `json:"repaired"`
	Discarded      int     `json:"discarded"`
	MeanDurationMs float64 `json:"mean_duration_ms"`
}

// Store is a mindmap.Observer that persists every outcome.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ mindmap.Observer = (*Store)(nil)

// Open opens (or creates) the audit database at path.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Observe records o. Write failures are logged, never returned, so the
// engine is not slowed down by a broken audit log.
func (s *Store) Observe(ctx context.Context, o mindmap.Outcome) {
	if err := s.Record(ctx, o); err != nil {
		slog.Warn("audit: record outcome failed", "operation", o.Operation, "error", err)
	}
}

// Record inserts o as a new entry.
func (s *Store) Record(ctx context.Context, o mindmap.Outcome) error {
	var errText string
	if o.Err != nil {
		errText = o.Err.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO classifier_audit
		 (id, operation, result, items, records, discarded, repaired, duration_ms, error, raw, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), o.Operation, o.Result(), o.Items, o.Records, o.Discarded, o.Repaired,
		o.Duration.Milliseconds(), errText, o.Raw, s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Summary returns per-operation totals, ordered by operation name. Mean
// duration ignores skipped calls, which never reach the classifier.
func (s *Store) Summary(ctx context.Context) ([]OperationSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT operation,
		        COUNT(*),
		        SUM(result = 'fallback'),
		        SUM(result = 'partial'),
		        SUM(result = 'skipped'),
		        SUM(repaired),
		        SUM(discarded),
		        COALESCE(AVG(CASE WHEN result != 'skipped' THEN duration_ms END), 0.0)
		 FROM classifier_audit
		 GROUP BY operation
		 ORDER BY operation`)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var out []OperationSummary
	for rows.Next() {
		var sum OperationSummary
		if err := rows.Scan(&sum.Operation, &sum.Calls, &sum.Fallbacks, &sum.Partial, &sum.Skipped,
			&sum.Repaired, &sum.Discarded, &sum.MeanDurationMs); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.query(ctx,
		`SELECT id, operation, result, items, records, discarded, repaired, duration_ms, error, raw, created_at
		 FROM classifier_audit
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`, limit)
}

// degraded returns every fallback or partial entry, optionally restricted to
// one operation.
func (s *Store) degraded(ctx context.Context, operation string) ([]Entry, error) {
	return s.query(ctx,
		`SELECT id, operation, result, items, records, discarded, repaired, duration_ms, error, raw, created_at
		 FROM classifier_audit
		 WHERE result IN ('fallback', 'partial')
		   AND (? = '' OR operation = ?)
		 ORDER BY created_at, rowid`, operation, operation)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Operation, &e.Result, &e.Items, &e.Records, &e.Discarded,
			&e.Repaired, &e.DurationMs, &e.Error, &e.Raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
