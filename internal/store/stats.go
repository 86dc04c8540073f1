package store

import (
	"context"
	"fmt"

	perrors "github.com/p-blackswan/projectlog/internal/errors"
)

// Stats summarises what the database holds.
type Stats struct {
	Events        int64
	Streams       int64
	Summaries     int64
	SchemaVersion int
	SizeBytes     int64
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return perrors.NewStoreError("ping", err)
	}
	return nil
}

// Stats counts events, goal streams and read model rows.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &Stats{SchemaVersion: s.schemaVersion()}
	counts := []struct {
		query string
		dst   *int64
	}{
		{"SELECT COUNT(*) FROM events", &st.Events},
		{"SELECT COUNT(DISTINCT stream_id) FROM events WHERE event_type LIKE 'goal.%'", &st.Streams},
		{"SELECT COUNT(*) FROM goal_summaries", &st.Summaries},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, perrors.NewStoreError("stats", err)
		}
	}

	size, err := s.dbSizeBytes(ctx)
	if err != nil {
		return nil, perrors.NewStoreError("stats", err)
	}
	st.SizeBytes = size
	return st, nil
}

// dbSizeBytes returns the main database file size in bytes. The WAL file is
// not counted.
func (s *Store) dbSizeBytes(ctx context.Context) (int64, error) {
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("failed to get page size: %w", err)
	}
	return pageCount * pageSize, nil
}
