package command

import (
	"context"

	"github.com/p-blackswan/projectlog/internal/event"
)

type recordingWriter struct {
	events []event.Event
	err    error
}

func (w *recordingWriter) Append(_ context.Context, evt event.Event) error {
	if w.err != nil {
		return w.err
	}
	w.events = append(w.events, evt)
	return nil
}

type recordingPublisher struct {
	events []event.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt event.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}
