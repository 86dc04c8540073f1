// Package goal defines the Goal aggregate: a pure state machine that
// validates commands against its current state, emits goal events, and is
// rebuilt from its stream by folding those events in version order.
package goal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	perrors "github.com/p-blackswan/projectlog/internal/errors"
	"github.com/p-blackswan/projectlog/internal/event"
)

// IDPrefix starts every goal stream id.
const IDPrefix = "goal_"

// Status tracks a goal's lifecycle.
type Status string

const (
	StatusCreated Status = "created" // scaffold, nothing persisted
	StatusAdded   Status = "added"
	StatusUpdated Status = "updated"
)

// Goal is the state of one goal stream at a given version.
type Goal struct {
	ID              string           `yaml:"id"`
	Status          Status           `yaml:"status"`
	Version         int64            `yaml:"version"`
	Objective       string           `yaml:"objective"`
	SuccessCriteria []string         `yaml:"success_criteria"`
	ScopeIn         []string         `yaml:"scope_in"`
	ScopeOut        []string         `yaml:"scope_out"`
	Boundaries      []string         `yaml:"boundaries"`
	Context         *EmbeddedContext `yaml:"context,omitempty"`
	NextGoalID      string           `yaml:"next_goal_id,omitempty"`
	PreviousGoalID  string           `yaml:"previous_goal_id,omitempty"`
	CreatedAt       time.Time        `yaml:"created_at"`
	UpdatedAt       time.Time        `yaml:"updated_at"`
}

// AddInput carries the fields of an add command.
type AddInput struct {
	Objective       string
	SuccessCriteria []string
	ScopeIn         []string
	ScopeOut        []string
	Boundaries      []string
	Context         *EmbeddedContext
}

// NewID returns a fresh goal stream id: the prefix plus a random UUID.
func NewID() string {
	return IDPrefix + uuid.New().String()
}

// Create returns an in-memory scaffold carrying only an identity.
func Create(id string) *Goal {
	return &Goal{ID: id, Status: StatusCreated}
}

// Rehydrate folds history into a new Goal. The same history always yields
// the same state.
func Rehydrate(id string, history []event.Event) (*Goal, error) {
	g := Create(id)
	if err := g.Apply(history...); err != nil {
		return nil, err
	}
	return g, nil
}

// Add validates the command and returns the goal.added event that would
// bring this scaffold into existence. The scaffold itself is not changed.
func (g *Goal) Add(in AddInput) (event.Event, error) {
	if g.Version != 0 {
		return event.Event{}, &perrors.ValidationError{Field: "goal", Reason: "already added"}
	}

	objective := strings.TrimSpace(in.Objective)
	if objective == "" {
		return event.Event{}, perrors.NewValidationError("objective")
	}
	payload := Added{Objective: objective}

	required := []struct {
		field string
		in    []string
		out   *[]string
	}{
		{"success_criteria", in.SuccessCriteria, &payload.SuccessCriteria},
		{"scope_in", in.ScopeIn, &payload.ScopeIn},
		{"scope_out", in.ScopeOut, &payload.ScopeOut},
		{"boundaries", in.Boundaries, &payload.Boundaries},
	}
	for _, r := range required {
		cleaned := cleanList(r.in)
		if len(cleaned) == 0 {
			return event.Event{}, perrors.NewValidationError(r.field)
		}
		*r.out = cleaned
	}

	if in.Context != nil {
		if c := cleanContext(*in.Context); !c.IsEmpty() {
			payload.Context = c
		}
	}

	return event.New(g.ID, payload.eventType(), 1, payload)
}

// Update validates a partial update against the current state and returns
// the goal.updated event. Only fields set in u appear in the payload.
func (g *Goal) Update(u Updated) (event.Event, error) {
	if g.Version == 0 {
		return event.Event{}, perrors.NewNotFoundError("goal", g.ID)
	}
	if u.isEmpty() {
		return event.Event{}, &perrors.ValidationError{Field: "update", Reason: "no fields to update"}
	}

	payload := Updated{
		NextGoalID:     u.NextGoalID,
		PreviousGoalID: u.PreviousGoalID,
	}
	if u.Objective != nil {
		objective := strings.TrimSpace(*u.Objective)
		if objective == "" {
			return event.Event{}, perrors.NewValidationError("objective")
		}
		payload.Objective = &objective
	}

	lists := []struct {
		field string
		in    *[]string
		out   **[]string
	}{
		{"success_criteria", u.SuccessCriteria, &payload.SuccessCriteria},
		{"scope_in", u.ScopeIn, &payload.ScopeIn},
		{"scope_out", u.ScopeOut, &payload.ScopeOut},
		{"boundaries", u.Boundaries, &payload.Boundaries},
	}
	for _, l := range lists {
		if l.in == nil {
			continue
		}
		cleaned := cleanList(*l.in)
		if len(cleaned) == 0 {
			return event.Event{}, &perrors.ValidationError{Field: l.field, Reason: "cannot be emptied"}
		}
		*l.out = &cleaned
	}

	if u.Context != nil {
		payload.Context = cleanContext(*u.Context)
	}
	if u.NextGoalID != nil && *u.NextGoalID == g.ID {
		return event.Event{}, &perrors.ValidationError{Field: "next_goal_id", Reason: "goal cannot follow itself"}
	}
	if u.PreviousGoalID != nil && *u.PreviousGoalID == g.ID {
		return event.Event{}, &perrors.ValidationError{Field: "previous_goal_id", Reason: "goal cannot precede itself"}
	}

	return event.New(g.ID, payload.eventType(), g.Version+1, payload)
}

// Apply continues the fold with more events. On error the goal is left as it
// was before the call.
func (g *Goal) Apply(events ...event.Event) error {
	next := *g
	for _, evt := range events {
		if err := next.apply(evt); err != nil {
			return err
		}
	}
	*g = next
	return nil
}

func (g *Goal) apply(evt event.Event) error {
	corrupt := func(format string, args ...any) error {
		return &perrors.CorruptHistoryError{StreamID: g.ID, Version: evt.Version, Reason: fmt.Sprintf(format, args...)}
	}

	if evt.StreamID != g.ID {
		return corrupt("event belongs to stream %q", evt.StreamID)
	}
	if evt.Version != g.Version+1 {
		return corrupt("expected version %d", g.Version+1)
	}
	payload, err := DecodePayload(evt)
	if err != nil {
		return corrupt("%v", err)
	}

	switch p := payload.(type) {
	case Added:
		if g.Version != 0 {
			return corrupt("duplicate %s", evt.Type)
		}
		g.Objective = p.Objective
		g.SuccessCriteria = p.SuccessCriteria
		g.ScopeIn = p.ScopeIn
		g.ScopeOut = p.ScopeOut
		g.Boundaries = p.Boundaries
		g.Context = p.Context
		g.Status = StatusAdded
		g.CreatedAt = evt.Timestamp
	case Updated:
		if g.Version == 0 {
			return corrupt("%s before %s", evt.Type, event.TypeGoalAdded)
		}
		g.applyUpdate(p)
		g.Status = StatusUpdated
	default:
		return corrupt("unhandled payload %T", payload)
	}

	g.Version = evt.Version
	g.UpdatedAt = evt.Timestamp
	return nil
}

func (g *Goal) applyUpdate(p Updated) {
	if p.Objective != nil {
		g.Objective = *p.Objective
	}
	if p.SuccessCriteria != nil {
		g.SuccessCriteria = *p.SuccessCriteria
	}
	if p.ScopeIn != nil {
		g.ScopeIn = *p.ScopeIn
	}
	if p.ScopeOut != nil {
		g.ScopeOut = *p.ScopeOut
	}
	if p.Boundaries != nil {
		g.Boundaries = *p.Boundaries
	}
	if p.Context != nil {
		if p.Context.IsEmpty() {
			g.Context = nil
		} else {
			g.Context = p.Context
		}
	}
	if p.NextGoalID != nil {
		g.NextGoalID = *p.NextGoalID
	}
	if p.PreviousGoalID != nil {
		g.PreviousGoalID = *p.PreviousGoalID
	}
}

// Summary returns a one-line status of the goal.
func (g *Goal) Summary() string {
	return fmt.Sprintf("goal=%s objective=%q status=%s version=%d criteria=%d next=%s",
		g.ID, truncate(g.Objective, 50), g.Status, g.Version, len(g.SuccessCriteria), g.NextGoalID)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func cleanContext(c EmbeddedContext) *EmbeddedContext {
	out := EmbeddedContext{
		Rationale:    strings.TrimSpace(c.Rationale),
		Stakeholders: cleanList(c.Stakeholders),
		Constraints:  cleanList(c.Constraints),
		Risks:        cleanList(c.Risks),
		Assumptions:  cleanList(c.Assumptions),
	}
	for _, l := range []*[]string{&out.Stakeholders, &out.Constraints, &out.Risks, &out.Assumptions} {
		if len(*l) == 0 {
			*l = nil
		}
	}
	return &out
}
