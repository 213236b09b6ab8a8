package testsupport

import (
	"path/filepath"
	"testing"

	"subpilot/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Timing knobs are shortened so orchestrated runs finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Output.Dir = filepath.Join(base, "output")
	cfgVal.Session.AdvanceDelayMilliseconds = 0
	cfgVal.Session.TimeoutSeconds = 30
	cfgVal.Channel.ReconnectInterval = 0
	cfgVal.Watch.DebounceMilliseconds = 50
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{t: t, cfg: &cfgVal}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithService points the config at a fake service.
func WithService(svc *FakeService) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Service.BaseURL = svc.URL()
		b.cfg.Channel.Transport = config.TransportWebSocket
		b.cfg.Channel.Framing = config.FramingSocketIO
		b.cfg.Channel.Path = SocketIOPath
	}
}

// WithNtfyTopic enables notifications against the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}
