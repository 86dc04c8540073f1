package projection

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/projectlog/internal/bus"
	"github.com/p-blackswan/projectlog/internal/event"
	"github.com/p-blackswan/projectlog/internal/goal"
	"github.com/p-blackswan/projectlog/internal/store"
)

var t0 = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func tempStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "events.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

// commit appends evt and publishes it, the way a command handler does.
func commit(t *testing.T, s *store.Store, b *bus.Bus, evt event.Event) {
	t.Helper()
	evt.Timestamp = t0.Add(time.Duration(evt.Version) * time.Second)
	require.NoError(t, s.Append(context.Background(), evt))
	require.NoError(t, b.Publish(context.Background(), evt))
}

func addGoal(t *testing.T, s *store.Store, b *bus.Bus, id, objective string) {
	t.Helper()
	evt, err := goal.Create(id).Add(goal.AddInput{
		Objective:       objective,
		SuccessCriteria: []string{"done"},
		ScopeIn:         []string{"in"},
		ScopeOut:        []string{"out"},
		Boundaries:      []string{"none"},
	})
	require.NoError(t, err)
	commit(t, s, b, evt)
}

func updateGoal(t *testing.T, s *store.Store, b *bus.Bus, id string, u goal.Updated) {
	t.Helper()
	history, err := s.ReadStream(context.Background(), id)
	require.NoError(t, err)
	g, err := goal.Rehydrate(id, history)
	require.NoError(t, err)
	evt, err := g.Update(u)
	require.NoError(t, err)
	commit(t, s, b, evt)
}

func setup(t *testing.T) (*store.Store, *bus.Bus, *GoalProjector) {
	s := tempStore(t)
	b := bus.New(zerolog.Nop(), nil)
	p := NewGoalProjector(s, zerolog.Nop())
	p.Register(b)
	return s, b, p
}

func TestGoalProjector_AddAndUpdate(t *testing.T) {
	ctx := context.Background()
	s, b, _ := setup(t)

	addGoal(t, s, b, "goal_a", "First")
	got, err := s.FindGoalByID(ctx, "goal_a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "First", got.Objective)
	assert.Equal(t, "added", got.Status)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, []string{"done"}, got.SuccessCriteria)
	assert.False(t, got.HasContext)

	updateGoal(t, s, b, "goal_a", goal.Updated{
		Objective: strPtr("First, revised"),
		Context:   &goal.EmbeddedContext{Rationale: "why not"},
	})
	got, err = s.FindGoalByID(ctx, "goal_a")
	require.NoError(t, err)
	assert.Equal(t, "First, revised", got.Objective)
	assert.Equal(t, "updated", got.Status)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, []string{"done"}, got.SuccessCriteria)
	assert.True(t, got.HasContext)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestGoalProjector_ChainBackLink(t *testing.T) {
	ctx := context.Background()
	s, b, _ := setup(t)

	addGoal(t, s, b, "goal_a", "A")
	addGoal(t, s, b, "goal_b", "B")
	addGoal(t, s, b, "goal_c", "C")

	updateGoal(t, s, b, "goal_a", goal.Updated{NextGoalID: strPtr("goal_b")})
	a, _ := s.FindGoalByID(ctx, "goal_a")
	bSum, _ := s.FindGoalByID(ctx, "goal_b")
	assert.Equal(t, "goal_b", a.NextGoalID)
	assert.Equal(t, "goal_a", bSum.PreviousGoalID)

	// Relinking A to C releases B's back-link.
	updateGoal(t, s, b, "goal_a", goal.Updated{NextGoalID: strPtr("goal_c")})
	bSum, _ = s.FindGoalByID(ctx, "goal_b")
	cSum, _ := s.FindGoalByID(ctx, "goal_c")
	assert.Empty(t, bSum.PreviousGoalID)
	assert.Equal(t, "goal_a", cSum.PreviousGoalID)
}

func TestGoalProjector_SkipsAlreadyProjected(t *testing.T) {
	ctx := context.Background()
	s, b, p := setup(t)
	addGoal(t, s, b, "goal_a", "A")
	updateGoal(t, s, b, "goal_a", goal.Updated{Objective: strPtr("A2")})

	history, err := s.ReadStream(ctx, "goal_a")
	require.NoError(t, err)
	for _, evt := range history {
		require.NoError(t, p.Apply(ctx, evt))
	}

	got, err := s.FindGoalByID(ctx, "goal_a")
	require.NoError(t, err)
	assert.Equal(t, "A2", got.Objective)
	assert.Equal(t, int64(2), got.Version)
}

func TestGoalProjector_UpdateWithoutSummary(t *testing.T) {
	_, _, p := setup(t)
	evt := event.Event{StreamID: "goal_ghost", Type: event.TypeGoalUpdated, Version: 2, Payload: []byte(`{"objective":"x"}`)}
	assert.Error(t, p.Apply(context.Background(), evt))
}

func TestGoalProjector_UnknownType(t *testing.T) {
	_, _, p := setup(t)
	evt := event.Event{StreamID: "goal_a", Type: "goal.archived", Version: 1, Payload: []byte(`{}`)}
	assert.Error(t, p.Apply(context.Background(), evt))
}

type failingSummaries struct{ err error }

func (f failingSummaries) FindGoalByID(context.Context, string) (*store.GoalSummary, error) {
	return nil, nil
}

func (f failingSummaries) SaveGoalSummary(context.Context, *store.GoalSummary) error {
	return f.err
}

func TestGoalProjector_StoreFailureSurfaces(t *testing.T) {
	boom := errors.New("read model locked")
	p := NewGoalProjector(failingSummaries{err: boom}, zerolog.Nop())
	evt, err := goal.Create("goal_a").Add(goal.AddInput{
		Objective: "A", SuccessCriteria: []string{"x"}, ScopeIn: []string{"x"}, ScopeOut: []string{"x"}, Boundaries: []string{"x"},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, p.Apply(context.Background(), evt), boom)
}
