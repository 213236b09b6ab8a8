// Package orchestrator wires validation, submission, correlation and
// presentation into one event loop.
//
// An Orchestrator is an explicit context object: construct one per hosting
// application (or per test) and call Run. All Session and queue mutation
// happens on the loop goroutine; user commands, upload acknowledgements,
// channel events and timers all arrive there as messages.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"subpilot/internal/batch"
	"subpilot/internal/events"
	"subpilot/internal/logging"
	"subpilot/internal/media"
	"subpilot/internal/services"
	"subpilot/internal/services/subtitler"
	"subpilot/internal/session"
)

var (
	// ErrNotRunning is returned by commands issued while Run is not active.
	ErrNotRunning = errors.New("orchestrator is not running")
	// ErrNothingAccepted is returned when every candidate in a selection was rejected.
	ErrNothingAccepted = fmt.Errorf("%w: no acceptable files in selection", services.ErrValidation)
)

// Submitter uploads one file and returns the service acknowledgement.
type Submitter interface {
	Submit(ctx context.Context, candidate media.Candidate, options subtitler.SubmissionOptions) (subtitler.Ack, error)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Scheduler *batch.Scheduler
	Submitter Submitter
	// Source may be nil when events are injected with Deliver.
	Source    events.Source
	Presenter Presenter
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Options tune loop timing.
type Options struct {
	// AdvanceDelay separates a terminal event from the next submission.
	AdvanceDelay time.Duration
	// SessionTimeout fails a bound session that hears nothing for this long; zero disables.
	SessionTimeout time.Duration
}

// State is a point-in-time view published after every loop step.
type State struct {
	Session   session.Snapshot
	Stats     batch.Stats
	Remaining int
	InFlight  bool
	Stale     int
	Connected bool
}

// Orchestrator owns one Session and one batch queue.
type Orchestrator struct {
	scheduler  *batch.Scheduler
	submitter  Submitter
	source     events.Source
	presenter  Presenter
	logger     *slog.Logger
	opts       Options
	tracker    *session.Tracker
	correlator *session.Correlator
	sampler    *logging.ProgressSampler

	commands chan command
	inbound  chan events.Event
	acks     chan ackMsg
	timers   chan timerMsg

	runMu   sync.Mutex
	running bool
	stopped chan struct{}

	stateMu sync.RWMutex
	state   State

	// loop-owned
	epoch        uint64
	stallSeq     uint64
	stallTimer   *time.Timer
	advanceTimer *time.Timer
	cancelUpload context.CancelFunc
	connected    bool
}

// New constructs an Orchestrator. Scheduler and Submitter are required.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	if deps.Scheduler == nil {
		return nil, errors.New("orchestrator: scheduler required")
	}
	if deps.Submitter == nil {
		return nil, errors.New("orchestrator: submitter required")
	}
	if deps.Presenter == nil {
		deps.Presenter = NopPresenter{}
	}
	logger := logging.NewComponentLogger(deps.Logger, "orchestrator")
	tracker := session.NewTracker(deps.Clock)
	o := &Orchestrator{
		scheduler:  deps.Scheduler,
		submitter:  deps.Submitter,
		source:     deps.Source,
		presenter:  deps.Presenter,
		logger:     logger,
		opts:       opts,
		tracker:    tracker,
		correlator: session.NewCorrelator(tracker, deps.Logger),
		sampler:    logging.NewProgressSampler(25),
		commands:   make(chan command),
		inbound:    make(chan events.Event, 64),
		acks:       make(chan ackMsg),
		timers:     make(chan timerMsg),
		stopped:    make(chan struct{}),
	}
	o.publish()
	return o, nil
}

// Run drives the loop until ctx is cancelled. It may be called once.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.runMu.Lock()
	if o.running {
		o.runMu.Unlock()
		return errors.New("orchestrator: already running")
	}
	o.running = true
	o.runMu.Unlock()
	defer close(o.stopped)

	g, gctx := errgroup.WithContext(ctx)
	if o.source != nil {
		g.Go(func() error {
			err := o.source.Run(gctx, o.inbound)
			if err != nil && gctx.Err() == nil {
				logging.WarnWithContext(o.logger, "event channel stopped", "channel_stopped",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check channel settings and service availability"),
					logging.String(logging.FieldImpact, "sessions in progress will wait for the session timeout"),
				)
			}
			return nil
		})
	}
	g.Go(func() error {
		return o.loop(gctx)
	})
	return g.Wait()
}

// Deliver injects an event as though it came from the Source.
func (o *Orchestrator) Deliver(ctx context.Context, ev events.Event) bool {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	select {
	case o.inbound <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-o.stopped:
		return false
	}
}

// Select submits a user selection. It returns once the loop has accepted or
// rejected it; processing continues asynchronously.
func (o *Orchestrator) Select(ctx context.Context, candidates []media.Candidate, batchMode bool, options subtitler.SubmissionOptions) error {
	reply := make(chan error, 1)
	cmd := command{kind: commandSelect, candidates: candidates, batchMode: batchMode, options: options, reply: reply}
	return o.send(ctx, cmd, reply)
}

// Reset abandons the current session and backlog. Events and acknowledgements
// for the abandoned work become inert; the remote job is not cancelled.
func (o *Orchestrator) Reset(ctx context.Context) error {
	reply := make(chan error, 1)
	return o.send(ctx, command{kind: commandReset, reply: reply}, reply)
}

func (o *Orchestrator) send(ctx context.Context, cmd command, reply chan error) error {
	select {
	case o.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-o.stopped:
		return ErrNotRunning
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the latest published session snapshot.
func (o *Orchestrator) Snapshot() session.Snapshot {
	return o.State().Session
}

// Stats returns outcome counts for the current batch.
func (o *Orchestrator) Stats() batch.Stats {
	return o.State().Stats
}

// State returns the latest published state.
func (o *Orchestrator) State() State {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.state
}

func (o *Orchestrator) publish() {
	st := State{
		Session:   o.tracker.Snapshot(),
		Stats:     o.scheduler.Stats(),
		Remaining: o.scheduler.Remaining(),
		InFlight:  o.scheduler.InFlight() != nil,
		Stale:     o.correlator.Stale(),
		Connected: o.connected,
	}
	o.stateMu.Lock()
	o.state = st
	o.stateMu.Unlock()
}
