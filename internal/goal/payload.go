package goal

import (
	"encoding/json"
	"fmt"

	"github.com/p-blackswan/projectlog/internal/event"
)

// Payload is the closed set of event payloads belonging to the goal stream.
// The unexported method keeps other packages from adding variants.
type Payload interface {
	eventType() event.Type
}

// EmbeddedContext holds the optional background recorded with a goal.
type EmbeddedContext struct {
	Rationale    string   `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	Stakeholders []string `json:"stakeholders,omitempty" yaml:"stakeholders,omitempty"`
	Constraints  []string `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Risks        []string `json:"risks,omitempty" yaml:"risks,omitempty"`
	Assumptions  []string `json:"assumptions,omitempty" yaml:"assumptions,omitempty"`
}

// IsEmpty reports whether no optional field carries a value.
func (c EmbeddedContext) IsEmpty() bool {
	return c.Rationale == "" && len(c.Stakeholders) == 0 && len(c.Constraints) == 0 &&
		len(c.Risks) == 0 && len(c.Assumptions) == 0
}

// Added is the payload of goal.added.
type Added struct {
	Objective       string           `json:"objective"`
	SuccessCriteria []string         `json:"success_criteria"`
	ScopeIn         []string         `json:"scope_in"`
	ScopeOut        []string         `json:"scope_out"`
	Boundaries      []string         `json:"boundaries"`
	Context         *EmbeddedContext `json:"context,omitempty"`
}

func (Added) eventType() event.Type { return event.TypeGoalAdded }

// Updated is the payload of goal.updated. Nil fields were not part of the
// update and keep their previous value.
type Updated struct {
	Objective       *string          `json:"objective,omitempty"`
	SuccessCriteria *[]string        `json:"success_criteria,omitempty"`
	ScopeIn         *[]string        `json:"scope_in,omitempty"`
	ScopeOut        *[]string        `json:"scope_out,omitempty"`
	Boundaries      *[]string        `json:"boundaries,omitempty"`
	Context         *EmbeddedContext `json:"context,omitempty"`
	NextGoalID      *string          `json:"next_goal_id,omitempty"`
	PreviousGoalID  *string          `json:"previous_goal_id,omitempty"`
}

func (Updated) eventType() event.Type { return event.TypeGoalUpdated }

func (u Updated) isEmpty() bool {
	return u.Objective == nil && u.SuccessCriteria == nil && u.ScopeIn == nil && u.ScopeOut == nil &&
		u.Boundaries == nil && u.Context == nil && u.NextGoalID == nil && u.PreviousGoalID == nil
}

// DecodePayload maps a stored event onto its concrete payload variant.
func DecodePayload(evt event.Event) (Payload, error) {
	switch evt.Type {
	case event.TypeGoalAdded:
		var p Added
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", evt.Type, err)
		}
		return p, nil
	case event.TypeGoalUpdated:
		var p Updated
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", evt.Type, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown goal event type %q", evt.Type)
	}
}
