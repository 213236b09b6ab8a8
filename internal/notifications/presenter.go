package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"subpilot/internal/batch"
	"subpilot/internal/config"
	"subpilot/internal/logging"
	"subpilot/internal/orchestrator"
)

// Presenter forwards orchestrator outcomes to a Service. Sends run in the
// background; Wait blocks until they finish.
type Presenter struct {
	orchestrator.NopPresenter

	service Service
	logger  *slog.Logger
	ready   bool
	failed  bool
	batch   bool
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewPresenter adapts service using the per-event toggles in cfg.
func NewPresenter(service Service, cfg *config.Config, logger *slog.Logger) *Presenter {
	p := &Presenter{
		service: service,
		logger:  logging.NewComponentLogger(logger, "notifications"),
		ready:   true,
		failed:  true,
		batch:   true,
		timeout: 15 * time.Second,
	}
	if cfg != nil {
		p.ready = cfg.Notifications.Ready
		p.failed = cfg.Notifications.Failed
		p.batch = cfg.Notifications.Batch
	}
	return p
}

func (p *Presenter) OnReady(ready orchestrator.Ready) {
	if !p.ready {
		return
	}
	p.publish(EventSubtitlesReady, Payload{
		"file":     ready.Summary.Filename,
		"segments": ready.Summary.SegmentCount,
		"language": ready.Summary.Language,
		"elapsed":  ready.Summary.ElapsedText(),
	})
}

func (p *Presenter) OnFailed(failure orchestrator.Failure) {
	if !p.failed {
		return
	}
	p.publish(EventSubmissionFailed, Payload{
		"file":   failure.File,
		"reason": failure.Reason,
		"kind":   failure.Kind,
	})
}

func (p *Presenter) OnBatchComplete(stats batch.Stats) {
	// A lone file already produced a ready/failed notification.
	if !p.batch || stats.Total < 2 {
		return
	}
	p.publish(EventBatchCompleted, Payload{
		"total":     stats.Total,
		"succeeded": stats.Succeeded,
		"failed":    stats.Failed,
	})
}

// Wait blocks until in-flight notifications finish.
func (p *Presenter) Wait() {
	p.wg.Wait()
}

func (p *Presenter) publish(event Event, payload Payload) {
	if p.service == nil {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.service.Publish(ctx, event, payload); err != nil {
			logging.WarnWithContext(p.logger, "notification failed", "notification_failed",
				logging.String("event", string(event)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				logging.String(logging.FieldImpact, "notification not delivered"),
			)
		}
	}()
}
