package projection

import (
	"context"
	"fmt"

	"github.com/p-blackswan/projectlog/internal/event"
	"github.com/p-blackswan/projectlog/internal/store"
)

const replayPageSize = 200

// EventSource reads the global log in append order.
type EventSource interface {
	ReadAll(ctx context.Context, after int64, limit int) ([]store.Record, error)
}

// Resetter clears a read model before it is rebuilt.
type Resetter interface {
	ResetGoalSummaries(ctx context.Context) error
}

// Rebuild clears the goal read model and replays every goal event into
// applier. It returns the number of events applied.
func Rebuild(ctx context.Context, src EventSource, reset Resetter, applier Applier) (int, error) {
	if src == nil || applier == nil {
		return 0, fmt.Errorf("event source and applier are required")
	}
	if reset != nil {
		if err := reset.ResetGoalSummaries(ctx); err != nil {
			return 0, err
		}
	}
	return Replay(ctx, src, applier, 0, func(evt event.Event) bool {
		return evt.Type.Domain() == "goal"
	})
}

// Replay pages through the log after position and applies every event the
// filter accepts (all events when filter is nil).
func Replay(ctx context.Context, src EventSource, applier Applier, after int64, filter func(event.Event) bool) (int, error) {
	applied := 0
	for {
		records, err := src.ReadAll(ctx, after, replayPageSize)
		if err != nil {
			return applied, err
		}
		if len(records) == 0 {
			return applied, nil
		}
		for _, r := range records {
			after = r.Position
			if filter != nil && !filter(r.Event) {
				continue
			}
			if err := applier.Apply(ctx, r.Event); err != nil {
				return applied, err
			}
			applied++
		}
	}
}
