package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"subpilot/internal/config"
	"subpilot/internal/logging"
	"subpilot/internal/services"
)

// Source delivers decoded events until ctx is cancelled or the channel fails
// permanently. Implementations emit connected/disconnected lifecycle events,
// emit a disconnected event before returning an error, and never close out.
type Source interface {
	Run(ctx context.Context, out chan<- Event) error
}

// NewSource builds the configured transport.
func NewSource(cfg *config.Config, logger *slog.Logger) (Source, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "events", "new source", "configuration unavailable", nil)
	}
	logger = logging.NewComponentLogger(logger, "events")
	switch cfg.Channel.Transport {
	case config.TransportWebSocket, "":
		endpoint, err := WebSocketURL(cfg.Service.BaseURL, cfg.Channel.URL, cfg.Channel.Path, cfg.Channel.Framing)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "events", "websocket url", "invalid channel url", err)
		}
		return NewWebSocketSource(endpoint,
			WithFraming(cfg.Channel.Framing),
			WithReconnect(cfg.ReconnectInterval()),
			WithLogger(logger),
		), nil
	case config.TransportNATS:
		return NewNATSSource(cfg.Channel.URL, cfg.Channel.NATSSubject, logger), nil
	case config.TransportRedis:
		return NewRedisSource(RedisOptions{
			Addr:     cfg.Channel.URL,
			Password: cfg.Channel.RedisPassword,
			DB:       cfg.Channel.RedisDB,
			Channel:  cfg.Channel.RedisChannel,
		}, logger), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "events", "new source", fmt.Sprintf("unsupported transport %q", cfg.Channel.Transport), nil)
	}
}

// emit delivers ev unless ctx is done.
func emit(ctx context.Context, out chan<- Event, ev Event) bool {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// fail reports err as a disconnect and returns it.
func fail(ctx context.Context, out chan<- Event, err error) error {
	emit(ctx, out, Disconnected(err.Error(), time.Now()))
	return err
}

// deliverEnvelope decodes a JSON envelope payload and forwards it. Malformed
// or unknown messages are logged and skipped.
func deliverEnvelope(ctx context.Context, out chan<- Event, logger *slog.Logger, raw []byte) bool {
	ev, err := DecodeEnvelope(raw, time.Now())
	if err != nil {
		logger.Debug("skipping channel message",
			logging.String(logging.FieldEventType, "channel_message_skipped"),
			logging.Error(err),
		)
		return true
	}
	return emit(ctx, out, ev)
}

// sleepCtx waits for d or until ctx is done; it reports whether the full wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
