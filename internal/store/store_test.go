package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/projectlog/internal/errors"
	"github.com/p-blackswan/projectlog/internal/event"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "events.db")
	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
	store, err := New(dbPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dbPath
}

func goalEvent(t *testing.T, stream string, typ event.Type, version int64, payload any) event.Event {
	t.Helper()
	evt, err := event.New(stream, typ, version, payload)
	require.NoError(t, err)
	evt.Timestamp = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return evt
}

func TestNew_CreatesDB(t *testing.T) {
	store, _ := newTestStore(t)

	for _, table := range []string{"events", "goal_summaries", "meta"} {
		var count int
		err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}

	assert.Equal(t, 2, store.schemaVersion())
}

func TestNew_ReopenKeepsEvents(t *testing.T) {
	ctx := context.Background()
	store, dbPath := newTestStore(t)
	require.NoError(t, store.Append(ctx, goalEvent(t, "goal_a", event.TypeGoalAdded, 1, map[string]string{"objective": "x"})))
	require.NoError(t, store.Close())

	reopened, err := New(dbPath, zerolog.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	history, err := reopened.ReadStream(ctx, "goal_a")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(1), history[0].Version)
}

func TestAppend_ReadStream_Ordered(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.Append(ctx, goalEvent(t, "goal_a", event.TypeGoalAdded, 1, map[string]string{"objective": "first"})))
	require.NoError(t, store.Append(ctx, goalEvent(t, "goal_b", event.TypeGoalAdded, 1, map[string]string{"objective": "other"})))
	require.NoError(t, store.Append(ctx, goalEvent(t, "goal_a", event.TypeGoalUpdated, 2, map[string]string{"next_goal_id": "goal_b"})))

	history, err := store.ReadStream(ctx, "goal_a")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(1), history[0].Version)
	assert.Equal(t, event.TypeGoalAdded, history[0].Type)
	assert.Equal(t, int64(2), history[1].Version)
	assert.Equal(t, event.TypeGoalUpdated, history[1].Type)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), history[1].Timestamp)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(history[1].Payload, &payload))
	assert.Equal(t, "goal_b", payload["next_goal_id"])
}

func TestReadStream_UnknownIsEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	history, err := store.ReadStream(context.Background(), "goal_missing")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestAppend_VersionConflict(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.Append(ctx, goalEvent(t, "goal_a", event.TypeGoalAdded, 1, struct{}{})))

	tests := []struct {
		name    string
		version int64
	}{
		{"duplicate version", 1},
		{"gap", 3},
		{"zero", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Append(ctx, goalEvent(t, "goal_a", event.TypeGoalUpdated, tt.version, struct{}{}))
			require.Error(t, err)
			assert.ErrorIs(t, err, perrors.ErrConflict)

			var conflict *perrors.ConflictError
			require.ErrorAs(t, err, &conflict)
			assert.Equal(t, int64(1), conflict.Actual)
			assert.Equal(t, tt.version, conflict.Expected)
		})
	}

	version, err := store.StreamVersion(ctx, "goal_a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestAppend_NewStreamMustStartAtOne(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.Append(context.Background(), goalEvent(t, "goal_new", event.TypeGoalAdded, 2, struct{}{}))
	assert.ErrorIs(t, err, perrors.ErrConflict)
}

func TestAppend_RejectsMissingStream(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.Append(context.Background(), goalEvent(t, "", event.TypeGoalAdded, 1, struct{}{}))
	assert.ErrorIs(t, err, perrors.ErrInvalidInput)
}

func TestAppend_ClosedStoreIsUnavailable(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Close())

	err := store.Append(context.Background(), goalEvent(t, "goal_a", event.TypeGoalAdded, 1, struct{}{}))
	assert.ErrorIs(t, err, perrors.ErrUnavailable)

	_, err = store.ReadStream(context.Background(), "goal_a")
	assert.ErrorIs(t, err, perrors.ErrUnavailable)
}

func TestEvents_AreAppendOnly(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.Append(ctx, goalEvent(t, "goal_a", event.TypeGoalAdded, 1, struct{}{})))

	_, err := store.db.Exec(`UPDATE events SET payload = '{}' WHERE stream_id = 'goal_a'`)
	assert.Error(t, err)
	_, err = store.db.Exec(`DELETE FROM events WHERE stream_id = 'goal_a'`)
	assert.Error(t, err)
}

func TestReadAll_Paging(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	for _, stream := range []string{"goal_a", "goal_b", "goal_c"} {
		require.NoError(t, store.Append(ctx, goalEvent(t, stream, event.TypeGoalAdded, 1, struct{}{})))
	}

	first, err := store.ReadAll(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "goal_a", first[0].Event.StreamID)
	assert.Equal(t, "goal_b", first[1].Event.StreamID)

	rest, err := store.ReadAll(ctx, first[1].Position, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "goal_c", rest[0].Event.StreamID)

	none, err := store.ReadAll(ctx, rest[0].Position, 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGoalSummary_CRUD(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	summary := &GoalSummary{
		ID:              "goal_a",
		Objective:       "Ship the importer",
		Status:          "added",
		SuccessCriteria: []string{"imports run nightly"},
		ScopeIn:         []string{"csv"},
		ScopeOut:        []string{"xml"},
		Boundaries:      []string{"no schema changes"},
		HasContext:      true,
		Version:         1,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	require.NoError(t, store.SaveGoalSummary(ctx, summary))

	got, err := store.FindGoalByID(ctx, "goal_a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, summary, got)

	summary.NextGoalID = "goal_b"
	summary.Version = 2
	require.NoError(t, store.SaveGoalSummary(ctx, summary))

	got, err = store.FindGoalByID(ctx, "goal_a")
	require.NoError(t, err)
	assert.Equal(t, "goal_b", got.NextGoalID)
	assert.Equal(t, int64(2), got.Version)

	list, err := store.ListGoalSummaries(ctx, GoalFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.ResetGoalSummaries(ctx))
	list, err = store.ListGoalSummaries(ctx, GoalFilter{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFindGoalByID_Missing(t *testing.T) {
	store, _ := newTestStore(t)
	got, err := store.FindGoalByID(context.Background(), "goal_nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.Ping(ctx))

	require.NoError(t, store.Append(ctx, goalEvent(t, "goal_a", event.TypeGoalAdded, 1, map[string]string{"objective": "a"})))
	require.NoError(t, store.Append(ctx, goalEvent(t, "goal_a", event.TypeGoalUpdated, 2, map[string]string{"objective": "a2"})))
	require.NoError(t, store.Append(ctx, goalEvent(t, "goal_b", event.TypeGoalAdded, 1, map[string]string{"objective": "b"})))
	require.NoError(t, store.SaveGoalSummary(ctx, &GoalSummary{ID: "goal_a", Objective: "a2", Status: "updated", Version: 2}))

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Events)
	assert.Equal(t, int64(2), st.Streams)
	assert.Equal(t, int64(1), st.Summaries)
	assert.Equal(t, 2, st.SchemaVersion)
	assert.Positive(t, st.SizeBytes)

	require.NoError(t, store.Close())
	assert.ErrorIs(t, store.Ping(ctx), perrors.ErrUnavailable)
}

func TestMigrate_NumericSchemaVersion(t *testing.T) {
	store, dbPath := newTestStore(t)

	// A later schema must not be mistaken for one older than v2.
	_, err := store.db.Exec(`UPDATE meta SET value = '10' WHERE key = 'schema_version'`)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := New(dbPath, zerolog.Nop())
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 10, reopened.schemaVersion())

	_, err = reopened.db.Exec(`UPDATE meta SET value = 'junk' WHERE key = 'schema_version'`)
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.schemaVersion())
}
