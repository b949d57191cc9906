package store

import (
	"context"
	"fmt"
)

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// migrate runs database migrations.
func (s *Store) migrate(ctx context.Context) error {
	if err := s.createReferenceTables(ctx); err != nil {
		return err
	}
	if err := s.createSessionTables(ctx); err != nil {
		return err
	}
	return s.createEntriesTable(ctx)
}

func (s *Store) createReferenceTables(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS clubs (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS members (
		id         TEXT PRIMARY KEY,
		club_id    TEXT NOT NULL,
		name       TEXT NOT NULL,
		guest      INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS penalties (
		id           TEXT PRIMARY KEY,
		club_id      TEXT NOT NULL,
		name         TEXT NOT NULL,
		self_amount  REAL NOT NULL,
		other_amount REAL NOT NULL,
		affect       TEXT NOT NULL,
		active       INTEGER NOT NULL DEFAULT 1,
		created_at   TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_members_club ON members(club_id);
	CREATE INDEX IF NOT EXISTS idx_penalties_club ON penalties(club_id);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create reference tables: %w", err)
	}
	return nil
}

func (s *Store) createSessionTables(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		club_id    TEXT NOT NULL,
		status     TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at   TEXT
	);

	CREATE TABLE IF NOT EXISTS session_members (
		session_id TEXT NOT NULL,
		member_id  TEXT NOT NULL,
		joined_at  TEXT NOT NULL,
		balance    REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (session_id, member_id)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_club ON sessions(club_id);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create session tables: %w", err)
	}
	return nil
}

func (s *Store) createEntriesTable(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS entries (
		id             INTEGER PRIMARY KEY,
		session_id     TEXT NOT NULL,
		club_id        TEXT NOT NULL,
		ts             TEXT NOT NULL,
		kind           TEXT NOT NULL,
		member_id      TEXT,
		penalty_id     TEXT,
		multiplier     REAL,
		self_amount    REAL,
		other_amount   REAL,
		total_amount   REAL,
		payload_json   TEXT,
		note           TEXT,
		inserted_at    TEXT NOT NULL,
		schema_version INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_session_ts ON entries(session_id, ts, id);
	CREATE INDEX IF NOT EXISTS idx_entries_session_kind ON entries(session_id, kind);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create entries table: %w", err)
	}
	return nil
}
