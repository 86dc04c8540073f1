package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/projectlog/internal/errors"
	"github.com/p-blackswan/projectlog/internal/event"
	"github.com/p-blackswan/projectlog/internal/goal"
	"github.com/p-blackswan/projectlog/internal/metrics"
	"github.com/p-blackswan/projectlog/internal/requestid"
	"github.com/p-blackswan/projectlog/internal/store"
)

// Finder looks a goal up in the read model. A nil summary with a nil error
// means the goal does not exist.
type Finder interface {
	FindGoalByID(ctx context.Context, id string) (*store.GoalSummary, error)
}

// Chaining wires the collaborators needed to link a new goal to its
// predecessor. When Enabled, all three must be set.
type Chaining struct {
	Enabled bool
	Writer  event.Writer
	Reader  event.Reader
	Finder  Finder
}

// AddGoalConfig is resolved once at composition time.
type AddGoalConfig struct {
	Writer    event.Writer
	Publisher event.Publisher
	Chaining  Chaining
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics // optional

	NewID func() string    // defaults to goal.NewID
	Now   func() time.Time // defaults to time.Now
}

// AddGoal is the add-goal command.
type AddGoal struct {
	Objective       string
	SuccessCriteria []string
	ScopeIn         []string
	ScopeOut        []string
	Boundaries      []string

	// Optional embedded context; recorded only if at least one is set.
	Rationale    string
	Stakeholders []string
	Constraints  []string
	Risks        []string
	Assumptions  []string

	// PreviousGoalID links the new goal after an existing one.
	PreviousGoalID string
}

// AddGoalHandler records new goals and chains them to a predecessor.
type AddGoalHandler struct {
	committer
	writer   event.Writer
	chaining Chaining
	newID    func() string
}

// NewAddGoalHandler validates cfg and returns a handler.
func NewAddGoalHandler(cfg AddGoalConfig) (*AddGoalHandler, error) {
	if cfg.Writer == nil {
		return nil, perrors.NewConfigError("add goal: event writer is required")
	}
	if cfg.Publisher == nil {
		return nil, perrors.NewConfigError("add goal: event publisher is required")
	}
	if c := cfg.Chaining; c.Enabled {
		var missing []string
		if c.Writer == nil {
			missing = append(missing, "writer")
		}
		if c.Reader == nil {
			missing = append(missing, "reader")
		}
		if c.Finder == nil {
			missing = append(missing, "finder")
		}
		if len(missing) > 0 {
			return nil, perrors.NewConfigError("add goal: chaining enabled without %s", strings.Join(missing, ", "))
		}
	}
	if cfg.NewID == nil {
		cfg.NewID = goal.NewID
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &AddGoalHandler{
		committer: committer{
			publisher: cfg.Publisher,
			metrics:   cfg.Metrics,
			now:       cfg.Now,
			logger:    cfg.Logger.With().Str("component", "command.add_goal").Logger(),
		},
		writer:   cfg.Writer,
		chaining: cfg.Chaining,
		newID:    cfg.NewID,
	}, nil
}

// Handle records the goal and returns its id.
//
// The new goal is committed before its predecessor is looked up. If linking
// fails the goal stays recorded without a link, and its id is returned
// together with the error.
func (h *AddGoalHandler) Handle(ctx context.Context, cmd AddGoal) (id string, err error) {
	start := time.Now()
	defer func() { h.observe("add_goal", start, err) }()
	ctx, _ = requestid.Ensure(ctx)

	if cmd.PreviousGoalID != "" && !h.chaining.Enabled {
		return "", perrors.NewConfigError("add goal: chaining to %s requested but chaining is disabled", cmd.PreviousGoalID)
	}

	id = h.newID()
	evt, err := goal.Create(id).Add(goal.AddInput{
		Objective:       cmd.Objective,
		SuccessCriteria: cmd.SuccessCriteria,
		ScopeIn:         cmd.ScopeIn,
		ScopeOut:        cmd.ScopeOut,
		Boundaries:      cmd.Boundaries,
		Context:         embeddedContext(cmd),
	})
	if err != nil {
		return "", fmt.Errorf("add goal: %w", err)
	}
	if _, err := h.commit(ctx, h.writer, evt); err != nil {
		return "", fmt.Errorf("add goal: %w", err)
	}

	if cmd.PreviousGoalID != "" {
		if err := h.link(ctx, cmd.PreviousGoalID, id); err != nil {
			h.logger.Warn().Err(err).
				Str("goal_id", id).
				Str("previous_goal_id", cmd.PreviousGoalID).
				Msg("goal recorded without chain link")
			return id, fmt.Errorf("add goal: link %s after %s: %w", id, cmd.PreviousGoalID, err)
		}
	}
	return id, nil
}

// link points previousID's nextGoalId at newID with a second append on the
// predecessor's own stream.
func (h *AddGoalHandler) link(ctx context.Context, previousID, newID string) error {
	summary, err := h.chaining.Finder.FindGoalByID(ctx, previousID)
	if err != nil {
		return err
	}
	if summary == nil {
		return perrors.NewNotFoundError("goal", previousID)
	}

	history, err := h.chaining.Reader.ReadStream(ctx, previousID)
	if err != nil {
		return err
	}
	previous, err := goal.Rehydrate(previousID, history)
	if err != nil {
		return err
	}
	evt, err := previous.Update(goal.Updated{NextGoalID: &newID})
	if err != nil {
		return err
	}
	_, err = h.commit(ctx, h.chaining.Writer, evt)
	return err
}

// embeddedContext returns nil unless one of the optional fields is present.
func embeddedContext(cmd AddGoal) *goal.EmbeddedContext {
	c := goal.EmbeddedContext{
		Rationale:    cmd.Rationale,
		Stakeholders: cmd.Stakeholders,
		Constraints:  cmd.Constraints,
		Risks:        cmd.Risks,
		Assumptions:  cmd.Assumptions,
	}
	if c.IsEmpty() {
		return nil
	}
	return &c
}

// StreamVersioner reports how many events a stream holds.
type StreamVersioner interface {
	StreamVersion(ctx context.Context, streamID string) (int64, error)
}

// UpdateGoalConfig is resolved once at composition time.
type UpdateGoalConfig struct {
	Writer    event.Writer
	Reader    event.Reader
	Versions  StreamVersioner // checks that link targets exist
	Publisher event.Publisher
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics // optional
	Now       func() time.Time
}

// UpdateGoal is the partial update command. Nil fields in Changes are left
// unchanged.
type UpdateGoal struct {
	GoalID  string
	Changes goal.Updated
}

// UpdateGoalHandler applies partial updates to existing goals.
type UpdateGoalHandler struct {
	committer
	writer   event.Writer
	reader   event.Reader
	versions StreamVersioner
}

// NewUpdateGoalHandler validates cfg and returns a handler.
func NewUpdateGoalHandler(cfg UpdateGoalConfig) (*UpdateGoalHandler, error) {
	if cfg.Writer == nil || cfg.Reader == nil || cfg.Versions == nil || cfg.Publisher == nil {
		return nil, perrors.NewConfigError("update goal: writer, reader, versions and publisher are required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &UpdateGoalHandler{
		committer: committer{
			publisher: cfg.Publisher,
			metrics:   cfg.Metrics,
			now:       cfg.Now,
			logger:    cfg.Logger.With().Str("component", "command.update_goal").Logger(),
		},
		writer:   cfg.Writer,
		reader:   cfg.Reader,
		versions: cfg.Versions,
	}, nil
}

// Handle rehydrates the goal from its stream, applies the update and returns
// the new stream version. A ConcurrencyConflict is returned as is; the caller
// decides whether to retry.
func (h *UpdateGoalHandler) Handle(ctx context.Context, cmd UpdateGoal) (version int64, err error) {
	start := time.Now()
	defer func() { h.observe("update_goal", start, err) }()
	ctx, _ = requestid.Ensure(ctx)

	if strings.TrimSpace(cmd.GoalID) == "" {
		return 0, perrors.NewValidationError("goal_id")
	}

	history, err := h.reader.ReadStream(ctx, cmd.GoalID)
	if err != nil {
		return 0, fmt.Errorf("update goal: %w", err)
	}
	g, err := goal.Rehydrate(cmd.GoalID, history)
	if err != nil {
		return 0, fmt.Errorf("update goal: %w", err)
	}
	evt, err := g.Update(cmd.Changes)
	if err != nil {
		return 0, fmt.Errorf("update goal: %w", err)
	}
	for _, target := range []*string{cmd.Changes.NextGoalID, cmd.Changes.PreviousGoalID} {
		if err := h.requireGoal(ctx, target); err != nil {
			return 0, fmt.Errorf("update goal: %w", err)
		}
	}
	evt, err = h.commit(ctx, h.writer, evt)
	if err != nil {
		return 0, fmt.Errorf("update goal: %w", err)
	}

	if err := g.Apply(evt); err == nil {
		h.logger.Debug().Str("goal", g.Summary()).Msg("goal updated")
	}
	return evt.Version, nil
}

// requireGoal checks that a link target already has a stream. Nil and empty
// ids mean no link and pass.
func (h *UpdateGoalHandler) requireGoal(ctx context.Context, id *string) error {
	if id == nil || *id == "" {
		return nil
	}
	version, err := h.versions.StreamVersion(ctx, *id)
	if err != nil {
		return err
	}
	if version == 0 {
		return perrors.NewNotFoundError("goal", *id)
	}
	return nil
}
