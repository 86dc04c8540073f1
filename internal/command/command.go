// Package command holds the use-case handlers. A handler turns one command
// into goal events: it owns id generation and the clock, asks the aggregate
// for the event, appends it and only then publishes it.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/projectlog/internal/event"
	"github.com/p-blackswan/projectlog/internal/metrics"
	"github.com/p-blackswan/projectlog/internal/requestid"
)

// committer appends and publishes events on behalf of a handler.
type committer struct {
	publisher event.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    zerolog.Logger
}

// commit stamps evt, appends it through w and publishes it. Nothing is
// published unless the append succeeded.
func (c *committer) commit(ctx context.Context, w event.Writer, evt event.Event) (event.Event, error) {
	evt.Timestamp = c.now().UTC().Truncate(time.Millisecond)

	if err := w.Append(ctx, evt); err != nil {
		return evt, fmt.Errorf("append %s: %w", evt, err)
	}
	if c.metrics != nil {
		c.metrics.RecordAppended(string(evt.Type))
	}
	if err := c.publisher.Publish(ctx, evt); err != nil {
		return evt, fmt.Errorf("publish %s: %w", evt, err)
	}

	c.logger.Info().
		Str("request_id", requestid.FromContext(ctx)).
		Str("stream_id", evt.StreamID).
		Int64("version", evt.Version).
		Str("type", string(evt.Type)).
		Msg("event committed")
	return evt, nil
}

// observe records the outcome of one command.
func (c *committer) observe(command string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordCommand(command, status, time.Since(start).Seconds())
}
