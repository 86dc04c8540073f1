// Package projection maintains query-side read models from published events.
package projection

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/projectlog/internal/bus"
	"github.com/p-blackswan/projectlog/internal/event"
	"github.com/p-blackswan/projectlog/internal/goal"
	"github.com/p-blackswan/projectlog/internal/store"
)

// Applier applies one event to a read model.
type Applier interface {
	Apply(ctx context.Context, evt event.Event) error
}

// SummaryStore persists goal summaries.
type SummaryStore interface {
	FindGoalByID(ctx context.Context, id string) (*store.GoalSummary, error)
	SaveGoalSummary(ctx context.Context, g *store.GoalSummary) error
}

// Subscriber is the part of the bus a projector registers with.
type Subscriber interface {
	Subscribe(typ event.Type, name string, handler bus.Handler)
}

// GoalProjector keeps the goal_summaries read model in step with the goal
// streams.
type GoalProjector struct {
	store  SummaryStore
	logger zerolog.Logger
}

// NewGoalProjector creates a projector writing to s.
func NewGoalProjector(s SummaryStore, logger zerolog.Logger) *GoalProjector {
	return &GoalProjector{
		store:  s,
		logger: logger.With().Str("component", "projection.goals").Logger(),
	}
}

// Register subscribes the projector to every goal event type.
func (p *GoalProjector) Register(sub Subscriber) {
	sub.Subscribe(event.TypeGoalAdded, "goal-summaries", p.Apply)
	sub.Subscribe(event.TypeGoalUpdated, "goal-summaries", p.Apply)
}

// Apply folds evt into the read model. Events at or below the stored
// version are skipped, so replaying a stream twice is harmless.
func (p *GoalProjector) Apply(ctx context.Context, evt event.Event) error {
	payload, err := goal.DecodePayload(evt)
	if err != nil {
		return fmt.Errorf("project %s: %w", evt, err)
	}

	current, err := p.store.FindGoalByID(ctx, evt.StreamID)
	if err != nil {
		return fmt.Errorf("project %s: %w", evt, err)
	}
	if current != nil && evt.Version <= current.Version {
		p.logger.Debug().Str("event", evt.String()).Int64("stored_version", current.Version).Msg("already projected")
		return nil
	}

	switch pl := payload.(type) {
	case goal.Added:
		return p.applyAdded(ctx, evt, pl)
	case goal.Updated:
		if current == nil {
			return fmt.Errorf("project %s: no summary for %s", evt, evt.StreamID)
		}
		return p.applyUpdated(ctx, evt, current, pl)
	default:
		return fmt.Errorf("project %s: unhandled payload %T", evt, payload)
	}
}

func (p *GoalProjector) applyAdded(ctx context.Context, evt event.Event, pl goal.Added) error {
	summary := &store.GoalSummary{
		ID:              evt.StreamID,
		Objective:       pl.Objective,
		Status:          string(goal.StatusAdded),
		SuccessCriteria: pl.SuccessCriteria,
		ScopeIn:         pl.ScopeIn,
		ScopeOut:        pl.ScopeOut,
		Boundaries:      pl.Boundaries,
		HasContext:      pl.Context != nil && !pl.Context.IsEmpty(),
		Version:         evt.Version,
		CreatedAt:       evt.Timestamp,
		UpdatedAt:       evt.Timestamp,
	}
	if err := p.store.SaveGoalSummary(ctx, summary); err != nil {
		return fmt.Errorf("project %s: %w", evt, err)
	}
	return nil
}

func (p *GoalProjector) applyUpdated(ctx context.Context, evt event.Event, summary *store.GoalSummary, pl goal.Updated) error {
	previousNext := summary.NextGoalID

	if pl.Objective != nil {
		summary.Objective = *pl.Objective
	}
	if pl.SuccessCriteria != nil {
		summary.SuccessCriteria = *pl.SuccessCriteria
	}
	if pl.ScopeIn != nil {
		summary.ScopeIn = *pl.ScopeIn
	}
	if pl.ScopeOut != nil {
		summary.ScopeOut = *pl.ScopeOut
	}
	if pl.Boundaries != nil {
		summary.Boundaries = *pl.Boundaries
	}
	if pl.Context != nil {
		summary.HasContext = !pl.Context.IsEmpty()
	}
	if pl.NextGoalID != nil {
		summary.NextGoalID = *pl.NextGoalID
	}
	if pl.PreviousGoalID != nil {
		summary.PreviousGoalID = *pl.PreviousGoalID
	}
	summary.Status = string(goal.StatusUpdated)
	summary.Version = evt.Version
	summary.UpdatedAt = evt.Timestamp

	if err := p.store.SaveGoalSummary(ctx, summary); err != nil {
		return fmt.Errorf("project %s: %w", evt, err)
	}

	if pl.NextGoalID == nil || *pl.NextGoalID == previousNext {
		return nil
	}
	// Keep the back-link on the successor's row in step with the forward link.
	if previousNext != "" {
		if err := p.setPrevious(ctx, previousNext, evt.StreamID, ""); err != nil {
			return fmt.Errorf("project %s: %w", evt, err)
		}
	}
	if *pl.NextGoalID != "" {
		if err := p.setPrevious(ctx, *pl.NextGoalID, "", evt.StreamID); err != nil {
			return fmt.Errorf("project %s: %w", evt, err)
		}
	}
	return nil
}

// setPrevious rewrites the previous_goal_id of goal id from one value to
// another; an empty from matches anything. A missing successor row or one
// already pointing elsewhere is left alone.
func (p *GoalProjector) setPrevious(ctx context.Context, id, from, to string) error {
	successor, err := p.store.FindGoalByID(ctx, id)
	if err != nil {
		return err
	}
	if successor == nil {
		p.logger.Warn().Str("goal_id", id).Msg("successor missing from read model")
		return nil
	}
	if from != "" && successor.PreviousGoalID != from {
		return nil
	}
	successor.PreviousGoalID = to
	return p.store.SaveGoalSummary(ctx, successor)
}
