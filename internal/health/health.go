// Package health checks that the event log and the goal read model are usable.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/projectlog/internal/store"
)

// Status represents the health of one component.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// checkTimeout bounds each check.
const checkTimeout = 5 * time.Second

// CheckFunc reports a component's health.
type CheckFunc func(ctx context.Context) Status

// Result is the outcome of one named check.
type Result struct {
	Name   string
	Status Status
}

// Checker runs named checks.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
	logger zerolog.Logger
}

// NewChecker creates a new health checker.
func NewChecker(logger zerolog.Logger) *Checker {
	return &Checker{
		checks: make(map[string]CheckFunc),
		logger: logger.With().Str("component", "health").Logger(),
	}
}

// Register adds a named health check.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

// RunAll executes all checks concurrently and returns the results sorted by
// name.
func (c *Checker) RunAll(ctx context.Context) []Result {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()

	results := make([]Result, 0, len(checks))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, fn := range checks {
		wg.Add(1)
		go func(n string, f CheckFunc) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			s := f(checkCtx)
			if s != StatusOK {
				c.logger.Warn().Str("check", n).Str("status", string(s)).Msg("health check not ok")
			}
			mu.Lock()
			results = append(results, Result{Name: n, Status: s})
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

// Overall folds results into the worst status.
func Overall(results []Result) Status {
	overall := StatusOK
	for _, r := range results {
		switch r.Status {
		case StatusDown:
			return StatusDown
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

// Pinger is satisfied by *store.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsReader is satisfied by *store.Store.
type StatsReader interface {
	Stats(ctx context.Context) (*store.Stats, error)
}

// StoreCheck is down when the database does not answer.
func StoreCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) Status {
		if err := p.Ping(ctx); err != nil {
			return StatusDown
		}
		return StatusOK
	}
}

// ReadModelCheck is degraded when the read model holds a different number of
// goals than the event log, which a rebuild repairs.
func ReadModelCheck(r StatsReader) CheckFunc {
	return func(ctx context.Context) Status {
		st, err := r.Stats(ctx)
		if err != nil {
			return StatusDown
		}
		if st.Streams != st.Summaries {
			return StatusDegraded
		}
		return StatusOK
	}
}
