package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"subpilot/internal/logging"
	"subpilot/internal/services"
)

// RedisOptions configures a RedisSource.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisSource subscribes to a pub/sub channel carrying JSON envelopes.
type RedisSource struct {
	opts   RedisOptions
	logger *slog.Logger
}

// NewRedisSource constructs a Redis source.
func NewRedisSource(opts RedisOptions, logger *slog.Logger) *RedisSource {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RedisSource{opts: opts, logger: logger}
}

// Run implements Source.
func (s *RedisSource) Run(ctx context.Context, out chan<- Event) error {
	client := redis.NewClient(&redis.Options{
		Addr:     s.opts.Addr,
		Password: s.opts.Password,
		DB:       s.opts.DB,
	})
	defer client.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := client.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		return fail(ctx, out, services.Wrap(services.ErrTransport, "events", "redis ping", s.opts.Addr, err))
	}

	pubsub := client.Subscribe(ctx, s.opts.Channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fail(ctx, out, services.Wrap(services.ErrTransport, "events", "redis subscribe", s.opts.Channel, err))
	}

	s.logger.Debug("redis subscription active", logging.String("channel", s.opts.Channel))
	if !emit(ctx, out, Connected(fmt.Sprintf("subscribed to %s", s.opts.Channel), time.Now())) {
		return nil
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				emit(ctx, out, Disconnected("subscription closed", time.Now()))
				return nil
			}
			if !deliverEnvelope(ctx, out, s.logger, []byte(msg.Payload)) {
				return nil
			}
		}
	}
}
