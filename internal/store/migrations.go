package store

import (
	"fmt"
	"strconv"
)

func (s *Store) migrate() error {
	if err := s.migrateV1(); err != nil {
		return err
	}
	return s.migrateV2()
}

// schemaVersion returns the recorded schema version, 0 when none is recorded
// or the value is not a number.
func (s *Store) schemaVersion() int {
	var raw string
	if err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&raw); err != nil {
		return 0
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return version
}

// migrateV1 creates the append-only event log. Rows are never updated or
// deleted; the triggers turn any attempt into an error.
func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		position   INTEGER PRIMARY KEY AUTOINCREMENT,
		stream_id  TEXT NOT NULL,
		version    INTEGER NOT NULL CHECK (version >= 1),
		event_type TEXT NOT NULL,
		payload    TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (stream_id, version)
	);

	CREATE INDEX IF NOT EXISTS idx_events_stream ON events(stream_id, version);

	CREATE TRIGGER IF NOT EXISTS events_no_update
	BEFORE UPDATE ON events BEGIN
		SELECT RAISE(ABORT, 'events are append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS events_no_delete
	BEFORE DELETE ON events BEGIN
		SELECT RAISE(ABORT, 'events are append-only');
	END;

	INSERT OR IGNORE INTO meta(key, value) VALUES ('schema_version', '1');
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v1: %w", err)
	}

	return nil
}

// migrateV2 adds the goal read model maintained by the projector.
func (s *Store) migrateV2() error {
	if s.schemaVersion() >= 2 {
		return nil
	}

	schema := `
	CREATE TABLE IF NOT EXISTS goal_summaries (
		id               TEXT PRIMARY KEY,
		objective        TEXT NOT NULL,
		status           TEXT NOT NULL,
		success_criteria TEXT NOT NULL DEFAULT '[]',
		scope_in         TEXT NOT NULL DEFAULT '[]',
		scope_out        TEXT NOT NULL DEFAULT '[]',
		boundaries       TEXT NOT NULL DEFAULT '[]',
		has_context      INTEGER NOT NULL DEFAULT 0,
		next_goal_id     TEXT,
		previous_goal_id TEXT,
		version          INTEGER NOT NULL,
		created_at       INTEGER NOT NULL,
		updated_at       INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_goal_summaries_created ON goal_summaries(created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v2: %w", err)
	}

	if _, err := s.db.Exec(`INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '2')`); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	return nil
}
