package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	perrors "github.com/p-blackswan/projectlog/internal/errors"
	"github.com/p-blackswan/projectlog/internal/event"
)

// Record is an event together with its global position in the log.
type Record struct {
	Position int64
	Event    event.Event
}

// Append writes one event to its stream inside a single transaction.
// evt.Version must be exactly the stream length plus one; anything else is a
// ConflictError. I/O failures come back as StoreError.
func (s *Store) Append(ctx context.Context, evt event.Event) error {
	if strings.TrimSpace(evt.StreamID) == "" {
		return perrors.NewValidationError("stream_id")
	}
	if strings.TrimSpace(string(evt.Type)) == "" {
		return perrors.NewValidationError("event_type")
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	payload := string(evt.Payload)
	if payload == "" {
		payload = "{}"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return perrors.NewStoreError("begin append", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM events WHERE stream_id = ?`, evt.StreamID,
	).Scan(&current)
	if err != nil {
		return perrors.NewStoreError("read stream version", err)
	}
	if evt.Version != current+1 {
		return &perrors.ConflictError{StreamID: evt.StreamID, Expected: evt.Version, Actual: current}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (stream_id, version, event_type, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		evt.StreamID, evt.Version, string(evt.Type), payload, toMillis(evt.Timestamp),
	)
	if err != nil {
		if isConstraintError(err) {
			return &perrors.ConflictError{StreamID: evt.StreamID, Expected: evt.Version, Actual: current}
		}
		return perrors.NewStoreError("insert event", err)
	}

	if err := tx.Commit(); err != nil {
		return perrors.NewStoreError("commit append", err)
	}

	s.logger.Debug().
		Str("stream_id", evt.StreamID).
		Int64("version", evt.Version).
		Str("type", string(evt.Type)).
		Msg("event appended")
	return nil
}

// ReadStream returns every event of a stream ordered by version. An unknown
// stream is an empty history, not an error.
func (s *Store) ReadStream(ctx context.Context, streamID string) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT stream_id, version, event_type, payload, created_at
		 FROM events WHERE stream_id = ? ORDER BY version ASC`, streamID)
	if err != nil {
		return nil, perrors.NewStoreError("read stream", err)
	}
	defer rows.Close()

	events := []event.Event{}
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, perrors.NewStoreError("read stream", err)
	}
	return events, nil
}

// ReadAll returns up to limit events with a position greater than after, in
// append order across all streams.
func (s *Store) ReadAll(ctx context.Context, after int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 200
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT position, stream_id, version, event_type, payload, created_at
		 FROM events WHERE position > ? ORDER BY position ASC LIMIT ?`, after, limit)
	if err != nil {
		return nil, perrors.NewStoreError("read all", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r       Record
			typ     string
			payload string
			created int64
		)
		if err := rows.Scan(&r.Position, &r.Event.StreamID, &r.Event.Version, &typ, &payload, &created); err != nil {
			return nil, perrors.NewStoreError("scan event", err)
		}
		r.Event.Type = event.Type(typ)
		r.Event.Payload = []byte(payload)
		r.Event.Timestamp = fromMillis(created)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, perrors.NewStoreError("read all", err)
	}
	return records, nil
}

// StreamVersion returns the number of events in a stream (0 if unknown).
func (s *Store) StreamVersion(ctx context.Context, streamID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM events WHERE stream_id = ?`, streamID,
	).Scan(&version)
	if err != nil {
		return 0, perrors.NewStoreError("stream version", err)
	}
	return version, nil
}

func scanEvent(rows *sql.Rows) (event.Event, error) {
	var (
		evt     event.Event
		typ     string
		payload string
		created int64
	)
	if err := rows.Scan(&evt.StreamID, &evt.Version, &typ, &payload, &created); err != nil {
		return event.Event{}, perrors.NewStoreError("scan event", err)
	}
	evt.Type = event.Type(typ)
	evt.Payload = []byte(payload)
	evt.Timestamp = fromMillis(created)
	return evt, nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
