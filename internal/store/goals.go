package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// GoalSummary is the denormalised read model row for one goal.
type GoalSummary struct {
	ID              string
	Objective       string
	Status          string
	SuccessCriteria []string
	ScopeIn         []string
	ScopeOut        []string
	Boundaries      []string
	HasContext      bool
	NextGoalID      string
	PreviousGoalID  string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// GoalFilter for listing goal summaries
type GoalFilter struct {
	Limit int
}

const goalColumns = `id, objective, status, success_criteria, scope_in, scope_out, boundaries,
	has_context, next_goal_id, previous_goal_id, version, created_at, updated_at`

// SaveGoalSummary inserts or replaces a goal summary.
func (s *Store) SaveGoalSummary(ctx context.Context, g *GoalSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lists := make([]string, 0, 4)
	for _, l := range [][]string{g.SuccessCriteria, g.ScopeIn, g.ScopeOut, g.Boundaries} {
		if l == nil {
			l = []string{}
		}
		raw, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("failed to encode goal summary lists: %w", err)
		}
		lists = append(lists, string(raw))
	}

	query := `
	INSERT OR REPLACE INTO goal_summaries (` + goalColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		g.ID, g.Objective, g.Status, lists[0], lists[1], lists[2], lists[3],
		g.HasContext,
		sql.NullString{String: g.NextGoalID, Valid: g.NextGoalID != ""},
		sql.NullString{String: g.PreviousGoalID, Valid: g.PreviousGoalID != ""},
		g.Version, toMillis(g.CreatedAt), toMillis(g.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save goal summary: %w", err)
	}
	return nil
}

// FindGoalByID returns the summary for id, or nil when the goal is unknown.
func (s *Store) FindGoalByID(ctx context.Context, id string) (*GoalSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goal_summaries WHERE id = ?`, id)
	g, err := scanGoalSummary(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal summary: %w", err)
	}
	return g, nil
}

// ListGoalSummaries returns summaries ordered by creation time, oldest first.
func (s *Store) ListGoalSummaries(ctx context.Context, filter GoalFilter) ([]*GoalSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + goalColumns + ` FROM goal_summaries ORDER BY created_at ASC, id ASC`
	args := []any{}
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list goal summaries: %w", err)
	}
	defer rows.Close()

	var goals []*GoalSummary
	for rows.Next() {
		g, err := scanGoalSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal summary: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// ResetGoalSummaries drops every read model row ahead of a rebuild.
func (s *Store) ResetGoalSummaries(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM goal_summaries`); err != nil {
		return fmt.Errorf("failed to reset goal summaries: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoalSummary(row rowScanner) (*GoalSummary, error) {
	var (
		g                                   GoalSummary
		criteria, scopeIn, scopeOut, bounds string
		next, previous                      sql.NullString
		created, updated                    int64
	)
	err := row.Scan(&g.ID, &g.Objective, &g.Status, &criteria, &scopeIn, &scopeOut, &bounds,
		&g.HasContext, &next, &previous, &g.Version, &created, &updated)
	if err != nil {
		return nil, err
	}

	for _, pair := range []struct {
		raw string
		dst *[]string
	}{
		{criteria, &g.SuccessCriteria},
		{scopeIn, &g.ScopeIn},
		{scopeOut, &g.ScopeOut},
		{bounds, &g.Boundaries},
	} {
		if err := json.Unmarshal([]byte(pair.raw), pair.dst); err != nil {
			return nil, fmt.Errorf("decode goal summary lists: %w", err)
		}
	}

	if next.Valid {
		g.NextGoalID = next.String
	}
	if previous.Valid {
		g.PreviousGoalID = previous.String
	}
	g.CreatedAt = fromMillis(created)
	g.UpdatedAt = fromMillis(updated)
	return &g, nil
}
