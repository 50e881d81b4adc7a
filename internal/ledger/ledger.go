// Package ledger records per-exchange accounting in SQLite: which
// backend and model served a request, how it finished, token counts,
// and latency. Message content is never written here.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"PocketChat/internal/llm"
)

// Entry is one completed exchange.
type Entry struct {
	ID               int64
	Timestamp        time.Time
	Backend          string
	Model            string
	FinishReason     string
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	DurationMS       int64
	Cached           bool
}

// Ledger is a SQLite-backed exchange log.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createExchangesTable := `
	CREATE TABLE IF NOT EXISTS exchanges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts DATETIME,
		backend TEXT,
		model TEXT,
		finish_reason TEXT,
		prompt_tokens INTEGER,
		completion_tokens INTEGER,
		total_tokens INTEGER,
		duration_ms INTEGER,
		cached INTEGER
	);`

	if _, err := db.Exec(createExchangesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create exchanges table: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Record appends one exchange. A zero Timestamp is filled with now.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO exchanges
		 (ts, backend, model, finish_reason, prompt_tokens, completion_tokens, total_tokens, duration_ms, cached)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp, e.Backend, e.Model, e.FinishReason,
		e.PromptTokens, e.CompletionTokens, e.TotalTokens,
		e.DurationMS, e.Cached,
	)
	if err != nil {
		return fmt.Errorf("failed to record exchange: %w", err)
	}
	return nil
}

// Totals returns the summed token usage and the exchange count.
func (l *Ledger) Totals(ctx context.Context) (llm.TokenUsage, int64, error) {
	var usage llm.TokenUsage
	var count int64

	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(prompt_tokens), 0),
		        COALESCE(SUM(completion_tokens), 0),
		        COALESCE(SUM(total_tokens), 0)
		 FROM exchanges`,
	).Scan(&count, &usage.PromptTokens, &usage.CompletionTokens, &usage.TotalTokens)
	if err != nil {
		return llm.TokenUsage{}, 0, fmt.Errorf("failed to sum exchanges: %w", err)
	}
	return usage, count, nil
}

// Recent returns up to n exchanges, newest first.
func (l *Ledger) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, ts, backend, model, finish_reason,
		        prompt_tokens, completion_tokens, total_tokens, duration_ms, cached
		 FROM exchanges ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchanges: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Backend, &e.Model, &e.FinishReason,
			&e.PromptTokens, &e.CompletionTokens, &e.TotalTokens, &e.DurationMS, &e.Cached); err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read exchanges: %w", err)
	}
	return entries, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
