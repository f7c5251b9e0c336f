package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/meridian-gw/meridian/pkg/telemetry"
)

// Store persists attempt and breaker transition records to SQLite. It uses a
// write-ahead log for concurrent read performance and prepared statements on
// the write path.
//
// SQLite supports a single writer; the connection pool is capped accordingly
// and callers should funnel writes through a Recorder.
type Store struct {
	db *sql.DB

	insertAttempt    *sql.Stmt
	insertTransition *sql.Stmt
	pruneAttempts    *sql.Stmt
	pruneTransitions *sql.Stmt
}

// Open opens (creating if necessary) the attempt history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history: database path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: failed to open database: %w", err)
	}

	// Single writer only.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: failed to prepare statements: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		attempt_number INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		latency_ms INTEGER NOT NULL,
		tokens_used INTEGER NOT NULL,
		breaker_state TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_provider ON attempts(provider, created_at);
	CREATE INDEX IF NOT EXISTS idx_attempts_created ON attempts(created_at);
	CREATE INDEX IF NOT EXISTS idx_attempts_request ON attempts(request_id);

	CREATE TABLE IF NOT EXISTS transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider TEXT NOT NULL,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		reason TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transitions_provider ON transitions(provider, created_at);
	CREATE INDEX IF NOT EXISTS idx_transitions_created ON transitions(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) prepareStatements() error {
	var err error

	s.insertAttempt, err = s.db.Prepare(`
		INSERT INTO attempts (request_id, provider, model, attempt_number, outcome, latency_ms, tokens_used, breaker_state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	s.insertTransition, err = s.db.Prepare(`
		INSERT INTO transitions (provider, from_state, to_state, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}

	s.pruneAttempts, err = s.db.Prepare(`DELETE FROM attempts WHERE created_at < ?`)
	if err != nil {
		return fmt.Errorf("prune attempts: %w", err)
	}

	s.pruneTransitions, err = s.db.Prepare(`DELETE FROM transitions WHERE created_at < ?`)
	if err != nil {
		return fmt.Errorf("prune transitions: %w", err)
	}
	return nil
}

// InsertAttempt persists one attempt record.
func (s *Store) InsertAttempt(ctx context.Context, a telemetry.Attempt) error {
	ts := a.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.insertAttempt.ExecContext(ctx,
		a.RequestID,
		a.Provider,
		a.Model,
		a.AttemptNumber,
		a.Outcome,
		a.Latency.Milliseconds(),
		a.TokensUsed,
		a.BreakerState,
		ts.UnixMilli(),
	)
	return err
}

// InsertTransition persists one breaker transition record.
func (s *Store) InsertTransition(ctx context.Context, tr telemetry.Transition) error {
	ts := tr.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.insertTransition.ExecContext(ctx,
		tr.Provider,
		tr.From,
		tr.To,
		tr.Reason,
		ts.UnixMilli(),
	)
	return err
}

// RecentAttempts returns up to limit attempts for the provider, most recent
// first. An empty provider returns attempts across all providers.
func (s *Store) RecentAttempts(ctx context.Context, provider string, limit int) ([]telemetry.Attempt, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT request_id, provider, model, attempt_number, outcome, latency_ms, tokens_used, breaker_state, created_at
		FROM attempts
	`
	args := []any{}
	if provider != "" {
		query += ` WHERE provider = ?`
		args = append(args, provider)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query attempts: %w", err)
	}
	defer rows.Close()

	var out []telemetry.Attempt
	for rows.Next() {
		var a telemetry.Attempt
		var latencyMS, createdAt int64
		if err := rows.Scan(
			&a.RequestID,
			&a.Provider,
			&a.Model,
			&a.AttemptNumber,
			&a.Outcome,
			&latencyMS,
			&a.TokensUsed,
			&a.BreakerState,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("history: scan attempt: %w", err)
		}
		a.Latency = time.Duration(latencyMS) * time.Millisecond
		a.Timestamp = time.UnixMilli(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Prune deletes attempt and transition records created before the cutoff and
// returns how many rows were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	cutoff := before.UnixMilli()

	res, err := s.pruneAttempts.ExecContext(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: prune attempts: %w", err)
	}
	attempts, _ := res.RowsAffected()

	res, err = s.pruneTransitions.ExecContext(ctx, cutoff)
	if err != nil {
		return attempts, fmt.Errorf("history: prune transitions: %w", err)
	}
	transitions, _ := res.RowsAffected()

	return attempts + transitions, nil
}

// Close releases prepared statements and the database handle.
func (s *Store) Close() error {
	for _, stmt := range []*sql.Stmt{s.insertAttempt, s.insertTransition, s.pruneAttempts, s.pruneTransitions} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}
