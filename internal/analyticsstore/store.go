// Package analyticsstore records per-turn telemetry (duration, provider) so
// operators can answer "how much time did provider X spend" questions
// without replaying every agent's timeline. It is additive to the
// registry/timeline persistence layer: losing this database never loses
// agent state, only historical usage stats.
package analyticsstore

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/getpaseo/paseod/internal/agent"
)

// Store is a SQLite-backed sink for turn completion telemetry.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) a SQLite database at path and ensures its
// schema and stats indexes exist.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite does not support concurrent writers

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_provider_completed
			ON turns(provider, completed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_agent
			ON turns(agent_id, started_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// RecordTurn appends one completed turn's timing for agentID/provider.
func (s *Store) RecordTurn(ctx context.Context, agentID agent.ID, provider string, startedAt, completedAt time.Time) error {
	durationMS := completedAt.Sub(startedAt).Milliseconds()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (agent_id, provider, started_at, completed_at, duration_ms) VALUES (?, ?, ?, ?, ?)`,
		string(agentID), provider, startedAt.UTC().Format(time.RFC3339Nano), completedAt.UTC().Format(time.RFC3339Nano), durationMS,
	)
	return err
}

// ProviderUsage is an aggregate over every recorded turn for one provider
// since a given time.
type ProviderUsage struct {
	Provider        string
	TurnCount       int64
	TotalDurationMS int64
}

// ProviderUsageSince aggregates turn count and total duration per provider,
// restricted to turns completed at or after since.
func (s *Store) ProviderUsageSince(ctx context.Context, since time.Time) ([]ProviderUsage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, COUNT(*), COALESCE(SUM(duration_ms), 0)
		FROM turns
		WHERE completed_at >= ?
		GROUP BY provider
		ORDER BY provider
	`, since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProviderUsage
	for rows.Next() {
		var u ProviderUsage
		if err := rows.Scan(&u.Provider, &u.TurnCount, &u.TotalDurationMS); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// AgentTurnCount returns how many turns have been recorded for one agent.
func (s *Store) AgentTurnCount(ctx context.Context, agentID agent.ID) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns WHERE agent_id = ?`, string(agentID)).Scan(&count)
	return count, err
}
