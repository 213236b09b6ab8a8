package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"subpilot/internal/batch"
	"subpilot/internal/config"
	"subpilot/internal/events"
	"subpilot/internal/logging"
	"subpilot/internal/media"
	"subpilot/internal/notifications"
	"subpilot/internal/orchestrator"
	"subpilot/internal/services"
	"subpilot/internal/services/subtitler"
)

// channelWait bounds how long a command waits for the event channel before
// submitting anyway.
const channelWait = 5 * time.Second

// runtime is one orchestrator wired from configuration, plus the
// notification presenter whose background sends must drain before exit.
type runtime struct {
	cfg      *config.Config
	client   *subtitler.Client
	orch     *orchestrator.Orchestrator
	notifier *notifications.Presenter
	gate     *channelGate
	logger   *slog.Logger

	done chan error
}

func (c *commandContext) newRuntime(presenters ...orchestrator.Presenter) (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger := c.loggerValue()
	client, err := c.newClient()
	if err != nil {
		return nil, err
	}
	source, err := events.NewSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	notifier := notifications.NewPresenter(notifications.NewService(cfg), cfg, logger)
	gate := newChannelGate()

	validator := media.NewValidator(media.Limits{
		MaxBytes:   cfg.MaxFileBytes(),
		MIMETypes:  cfg.Limits.MIMETypes,
		Extensions: cfg.Limits.Extensions,
	})
	orch, err := orchestrator.New(orchestrator.Deps{
		Scheduler: batch.NewScheduler(validator),
		Submitter: client,
		Source:    source,
		Presenter: orchestrator.Presenters(append(presenters, notifier, gate)...),
		Logger:    logger,
		Clock:     time.Now,
	}, orchestrator.Options{
		AdvanceDelay:   cfg.AdvanceDelay(),
		SessionTimeout: cfg.SessionTimeout(),
	})
	if err != nil {
		return nil, err
	}
	return &runtime{
		cfg:      cfg,
		client:   client,
		orch:     orch,
		notifier: notifier,
		gate:     gate,
		logger:   logger,
		done:     make(chan error, 1),
	}, nil
}

// checkOptions normalizes options and refuses a model or language the
// service does not offer. An unreachable catalogue lets everything through.
func (r *runtime) checkOptions(ctx context.Context, options subtitler.SubmissionOptions) error {
	normalized, err := options.Normalize()
	if err != nil {
		return services.Wrap(services.ErrValidation, "submit", "options", "", err)
	}
	return r.client.CapabilitiesOrEmpty(ctx, r.logger).Check(normalized)
}

// waitConnected blocks until the event channel has connected once or timeout
// passes. It reports whether the channel is up.
func (r *runtime) waitConnected(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-r.gate.up:
		return true
	case <-ctx.Done():
		return false
	case <-timer.C:
		logging.WarnWithContext(r.logger, "event channel not connected yet", "channel_wait_timeout",
			logging.Duration("waited", timeout),
			logging.String(logging.FieldErrorHint, "check channel settings and service availability"),
			logging.String(logging.FieldImpact, "submitting anyway; early progress may be missed"),
		)
		return false
	}
}

// start runs the orchestrator loop in the background.
func (r *runtime) start(ctx context.Context) {
	go func() {
		r.done <- r.orch.Run(ctx)
	}()
}

// stop waits for the loop to exit after ctx was cancelled, then drains
// pending notifications.
func (r *runtime) stop() error {
	err := <-r.done
	r.notifier.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// channelGate closes up on the first successful channel connection.
type channelGate struct {
	orchestrator.NopPresenter

	once sync.Once
	up   chan struct{}
}

func newChannelGate() *channelGate {
	return &channelGate{up: make(chan struct{})}
}

func (g *channelGate) OnConnection(connected bool, _ string) {
	if connected {
		g.once.Do(func() { close(g.up) })
	}
}

func submissionDefaults(cfg *config.Config) subtitler.SubmissionOptions {
	opts := subtitler.DefaultSubmissionOptions()
	if cfg == nil {
		return opts
	}
	if cfg.Submission.Model != "" {
		opts.Model = cfg.Submission.Model
	}
	if cfg.Submission.Language != "" {
		opts.Language = cfg.Submission.Language
	}
	opts.VAD = cfg.Submission.VAD
	opts.Enhance = cfg.Submission.Enhance
	return opts
}
