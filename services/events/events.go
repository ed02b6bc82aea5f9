package eventsvc

import (
	"context"
	"sync"

	"github.com/trezcool/fourmis/core"
)

// New connects to NATS when a URL is configured, and falls back to a no-op publisher otherwise.
func New(conf *core.Config, logger core.Logger) core.EventPublisher {
	if conf.TestMode || conf.Nats.URL == "" {
		return NoopPublisher{}
	}
	p, err := NewNatsPublisher(conf, logger)
	if err != nil {
		logger.Error("events disabled: "+err.Error(), err)
		return NoopPublisher{}
	}
	return p
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, core.Event) error { return nil }

// Recorder keeps the published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []core.Event
}

var _ core.EventPublisher = (*Recorder)(nil)

func (r *Recorder) Publish(_ context.Context, evt core.Event) error {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	return nil
}

// Names returns the names of the recorded events, in publishing order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		names = append(names, evt.Name)
	}
	return names
}

func (r *Recorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Event(nil), r.events...)
}
