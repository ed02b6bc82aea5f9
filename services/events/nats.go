// Package eventsvc publishes the domain events.
package eventsvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/trezcool/fourmis/core"
)

// NatsPublisher publishes each event as JSON on the subject "<prefix>.<event name>".
type NatsPublisher struct {
	nc     *nats.Conn
	prefix string
}

var _ core.EventPublisher = (*NatsPublisher)(nil)

func NewNatsPublisher(conf *core.Config, logger core.Logger) (*NatsPublisher, error) {
	nc, err := nats.Connect(conf.Nats.URL,
		nats.Name(conf.AppName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected: "+err.Error(), err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected to " + nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to nats")
	}
	return &NatsPublisher{nc: nc, prefix: conf.Nats.SubjectPrefix}, nil
}

func (p *NatsPublisher) Subject(evt core.Event) string {
	if p.prefix == "" {
		return evt.Name
	}
	return p.prefix + "." + evt.Name
}

func (p *NatsPublisher) Publish(ctx context.Context, evt core.Event) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "publishing event")
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "marshalling event")
	}
	return errors.Wrap(p.nc.Publish(p.Subject(evt), data), "publishing event")
}

// Close flushes the pending events and closes the connection.
func (p *NatsPublisher) Close() {
	_ = p.nc.Drain()
}
