package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/p-blackswan/projectlog/internal/command"
	perrors "github.com/p-blackswan/projectlog/internal/errors"
	"github.com/p-blackswan/projectlog/internal/goal"
	"github.com/p-blackswan/projectlog/internal/projection"
	"github.com/p-blackswan/projectlog/internal/retry"
	"github.com/p-blackswan/projectlog/internal/store"
)

// goalFlags are the content flags shared by add and update.
type goalFlags struct {
	objective       string
	successCriteria []string
	scopeIn         []string
	scopeOut        []string
	boundaries      []string

	rationale    string
	stakeholders []string
	constraints  []string
	risks        []string
	assumptions  []string
}

func (f *goalFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.objective, "objective", "", "what the goal sets out to achieve")
	fl.StringArrayVar(&f.successCriteria, "success-criteria", nil, "success criterion (repeatable)")
	fl.StringArrayVar(&f.scopeIn, "scope-in", nil, "in-scope item (repeatable)")
	fl.StringArrayVar(&f.scopeOut, "scope-out", nil, "out-of-scope item (repeatable)")
	fl.StringArrayVar(&f.boundaries, "boundary", nil, "boundary (repeatable)")
	fl.StringVar(&f.rationale, "rationale", "", "context: why the goal exists")
	fl.StringArrayVar(&f.stakeholders, "stakeholder", nil, "context: stakeholder (repeatable)")
	fl.StringArrayVar(&f.constraints, "constraint", nil, "context: constraint (repeatable)")
	fl.StringArrayVar(&f.risks, "risk", nil, "context: risk (repeatable)")
	fl.StringArrayVar(&f.assumptions, "assumption", nil, "context: assumption (repeatable)")
}

var contextFlags = []string{"rationale", "stakeholder", "constraint", "risk", "assumption"}

func newGoalCmd(a **app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Add, update and inspect goals",
	}
	cmd.AddCommand(
		newGoalAddCmd(a),
		newGoalUpdateCmd(a),
		newGoalShowCmd(a),
		newGoalListCmd(a),
		newGoalHistoryCmd(a),
	)
	return cmd
}

func newGoalAddCmd(a **app) *cobra.Command {
	var (
		f     goalFlags
		after string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new goal, optionally chained after an existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := (*a).addGoal.Handle(cmd.Context(), command.AddGoal{
				Objective:       f.objective,
				SuccessCriteria: f.successCriteria,
				ScopeIn:         f.scopeIn,
				ScopeOut:        f.scopeOut,
				Boundaries:      f.boundaries,
				Rationale:       f.rationale,
				Stakeholders:    f.stakeholders,
				Constraints:     f.constraints,
				Risks:           f.risks,
				Assumptions:     f.assumptions,
				PreviousGoalID:  after,
			})
			// A failed chain still leaves the new goal recorded.
			if id != "" {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return err
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&after, "after", "", "id of the goal this one follows")
	return cmd
}

func newGoalUpdateCmd(a **app) *cobra.Command {
	var (
		f            goalFlags
		next, prev   string
		clearContext bool
	)
	cmd := &cobra.Command{
		Use:   "update <goal-id>",
		Short: "Change selected fields of a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes := goal.Updated{}
			fl := cmd.Flags()
			if fl.Changed("objective") {
				changes.Objective = &f.objective
			}
			if fl.Changed("success-criteria") {
				changes.SuccessCriteria = &f.successCriteria
			}
			if fl.Changed("scope-in") {
				changes.ScopeIn = &f.scopeIn
			}
			if fl.Changed("scope-out") {
				changes.ScopeOut = &f.scopeOut
			}
			if fl.Changed("boundary") {
				changes.Boundaries = &f.boundaries
			}
			if fl.Changed("next") {
				changes.NextGoalID = &next
			}
			if fl.Changed("previous") {
				changes.PreviousGoalID = &prev
			}
			switch {
			case clearContext:
				changes.Context = &goal.EmbeddedContext{}
			case anyChanged(cmd, contextFlags...):
				changes.Context = &goal.EmbeddedContext{
					Rationale:    f.rationale,
					Stakeholders: f.stakeholders,
					Constraints:  f.constraints,
					Risks:        f.risks,
					Assumptions:  f.assumptions,
				}
			}

			var version int64
			rc := retry.DefaultConfig()
			rc.Logger = (*a).logger.With().Str("command", "update_goal").Str("goal_id", args[0]).Logger()
			err := retry.Do(cmd.Context(), rc, func(ctx context.Context) error {
				var err error
				version, err = (*a).update.Handle(ctx, command.UpdateGoal{GoalID: args[0], Changes: changes})
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s@%d\n", args[0], version)
			return nil
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&next, "next", "", "id of the goal that follows this one")
	cmd.Flags().StringVar(&prev, "previous", "", "id of the goal this one follows")
	cmd.Flags().BoolVar(&clearContext, "clear-context", false, "remove the embedded context")
	for _, name := range contextFlags {
		cmd.MarkFlagsMutuallyExclusive("clear-context", name)
	}
	return cmd
}

func newGoalShowCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <goal-id>",
		Short: "Print a goal rebuilt from its event stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := (*a).store.ReadStream(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			g, err := goal.Rehydrate(args[0], history)
			if err != nil {
				return err
			}
			if g.Version == 0 {
				return perrors.NewNotFoundError("goal", args[0])
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(g); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newGoalListCmd(a **app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List goals from the read model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			goals, err := (*a).store.ListGoalSummaries(cmd.Context(), store.GoalFilter{Limit: limit})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tVERSION\tPREVIOUS\tNEXT\tOBJECTIVE")
			for _, g := range goals {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					g.ID, g.Status, g.Version, dash(g.PreviousGoalID), dash(g.NextGoalID), g.Objective)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of goals (0 for all)")
	return cmd
}

func newGoalHistoryCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "history <goal-id>",
		Short: "Print the raw events of a goal stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := (*a).store.ReadStream(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(history) == 0 {
				return perrors.NewNotFoundError("goal", args[0])
			}
			out := cmd.OutOrStdout()
			for _, evt := range history {
				fmt.Fprintf(out, "%d\t%s\t%s\t%s\n",
					evt.Version, evt.Type, evt.Timestamp.Format(time.RFC3339Nano), evt.Payload)
			}
			return nil
		},
	}
}

func newRebuildCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the goal read model from the event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := projection.Rebuild(cmd.Context(), (*a).store, (*a).store, (*a).projector)
			if err != nil {
				return err
			}
			(*a).logger.Info().Int("events", n).Msg("read model rebuilt")
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d events\n", n)
			return nil
		},
	}
}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, n := range names {
		if cmd.Flags().Changed(n) {
			return true
		}
	}
	return false
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
