package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"subpilot/internal/logging"
	"subpilot/internal/services"
)

// NATSSource subscribes to a subject carrying JSON envelopes.
type NATSSource struct {
	url     string
	subject string
	logger  *slog.Logger
}

// NewNATSSource constructs a NATS source.
func NewNATSSource(url, subject string, logger *slog.Logger) *NATSSource {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &NATSSource{url: url, subject: subject, logger: logger}
}

// Run implements Source. The nats client handles reconnects itself; its
// disconnect and reconnect callbacks become lifecycle events.
func (s *NATSSource) Run(ctx context.Context, out chan<- Event) error {
	lifecycle := make(chan Event, 8)
	notify := func(ev Event) {
		select {
		case lifecycle <- ev:
		default:
		}
	}

	nc, err := nats.Connect(s.url,
		nats.Name("subpilot"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			reason := "connection closed"
			if err != nil {
				reason = err.Error()
			}
			notify(Disconnected(reason, time.Now()))
		}),
		nats.ReconnectHandler(func(*nats.Conn) {
			notify(Connected("channel reconnected", time.Now()))
		}),
	)
	if err != nil {
		return fail(ctx, out, services.Wrap(services.ErrTransport, "events", "nats connect", s.url, err))
	}
	defer nc.Close()

	msgs := make(chan *nats.Msg, 64)
	sub, err := nc.ChanSubscribe(s.subject, msgs)
	if err != nil {
		return fail(ctx, out, services.Wrap(services.ErrTransport, "events", "nats subscribe", s.subject, err))
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()
	if err := nc.FlushWithContext(ctx); err != nil && ctx.Err() == nil {
		return fail(ctx, out, services.Wrap(services.ErrTransport, "events", "nats flush", s.subject, err))
	}

	s.logger.Debug("nats subscription active", logging.String("subject", s.subject))
	if !emit(ctx, out, Connected(fmt.Sprintf("subscribed to %s", s.subject), time.Now())) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-lifecycle:
			if !emit(ctx, out, ev) {
				return nil
			}
		case msg := <-msgs:
			if !deliverEnvelope(ctx, out, s.logger, msg.Data) {
				return nil
			}
		}
	}
}
