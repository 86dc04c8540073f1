// Command projectlog records project goals as an append-only event log.
//
// Usage:
//
//	projectlog goal add --objective "Ship v2" --success-criteria "..." ...
//	projectlog goal add --after goal_<id> ...
//	projectlog goal list
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/projectlog/internal/bus"
	"github.com/p-blackswan/projectlog/internal/command"
	"github.com/p-blackswan/projectlog/internal/config"
	"github.com/p-blackswan/projectlog/internal/logging"
	"github.com/p-blackswan/projectlog/internal/metrics"
	"github.com/p-blackswan/projectlog/internal/projection"
	"github.com/p-blackswan/projectlog/internal/store"
)

// app holds the collaborators shared by every subcommand. It is built once
// before the subcommand runs.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	store     *store.Store
	bus       *bus.Bus
	metrics   *metrics.Metrics
	projector *projection.GoalProjector
	addGoal   *command.AddGoalHandler
	update    *command.UpdateGoalHandler
}

func newApp(cfg *config.Config) (*app, error) {
	logger := logging.New(cfg, os.Stderr)

	s, err := store.New(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	m := metrics.New()
	b := bus.New(logger, m)
	projector := projection.NewGoalProjector(s, logger)
	projector.Register(b)

	addGoal, err := command.NewAddGoalHandler(command.AddGoalConfig{
		Writer:    s,
		Publisher: b,
		Chaining: command.Chaining{
			Enabled: cfg.ChainingEnabled,
			Writer:  s,
			Reader:  s,
			Finder:  s,
		},
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	update, err := command.NewUpdateGoalHandler(command.UpdateGoalConfig{
		Writer:    s,
		Reader:    s,
		Versions:  s,
		Publisher: b,
		Logger:    logger,
		Metrics:   m,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	logger.Debug().
		Str("environment", cfg.Environment).
		Str("db_path", cfg.DBPath).
		Bool("chaining_enabled", cfg.ChainingEnabled).
		Int("subscribers", b.Subscribers()).
		Msg("projectlog ready")

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     s,
		bus:       b,
		metrics:   m,
		projector: projector,
		addGoal:   addGoal,
		update:    update,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("failed to close store")
	}
}

func newRootCmd(a **app) *cobra.Command {
	var printMetrics bool

	root := &cobra.Command{
		Use:           "projectlog",
		Short:         "Event-sourced project goal log",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			built, err := newApp(cfg)
			if err != nil {
				return err
			}
			*a = built
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if printMetrics && *a != nil {
				return (*a).metrics.WriteText(cmd.ErrOrStderr())
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&printMetrics, "print-metrics", false, "write process metrics to stderr after the command")

	root.AddCommand(newGoalCmd(a), newRebuildCmd(a), newStatusCmd(a))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var a *app
	root := newRootCmd(&a)
	err := root.ExecuteContext(ctx)
	if a != nil {
		a.close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
