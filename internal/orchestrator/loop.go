package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"subpilot/internal/batch"
	"subpilot/internal/events"
	"subpilot/internal/logging"
	"subpilot/internal/media"
	"subpilot/internal/projector"
	"subpilot/internal/services"
	"subpilot/internal/services/subtitler"
	"subpilot/internal/session"
)

type commandKind int

const (
	commandSelect commandKind = iota
	commandReset
)

type command struct {
	kind       commandKind
	candidates []media.Candidate
	batchMode  bool
	options    subtitler.SubmissionOptions
	reply      chan error
}

type ackMsg struct {
	epoch   uint64
	attempt uint64
	file    string
	ack     subtitler.Ack
	err     error
}

type timerKind int

const (
	timerAdvance timerKind = iota
	timerStall
)

type timerMsg struct {
	kind      timerKind
	epoch     uint64
	seq       uint64
	succeeded bool
}

func (o *Orchestrator) loop(ctx context.Context) error {
	defer o.stopTimers()
	defer o.abortUpload()
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-o.commands:
			switch cmd.kind {
			case commandSelect:
				cmd.reply <- o.handleSelect(ctx, cmd)
			case commandReset:
				o.handleReset()
				cmd.reply <- nil
			}
		case msg := <-o.acks:
			o.handleAck(ctx, msg)
		case ev := <-o.inbound:
			o.handleEvent(ctx, ev)
		case msg := <-o.timers:
			o.handleTimer(ctx, msg)
		}
		o.publish()
	}
}

func (o *Orchestrator) handleSelect(ctx context.Context, cmd command) error {
	options, err := cmd.options.Normalize()
	if err != nil {
		o.reportRejections(nil, err.Error())
		return services.Wrap(services.ErrValidation, "orchestrator", "options", "", err)
	}
	sel, err := o.scheduler.SubmitSelection(cmd.candidates, cmd.batchMode, options)
	if err != nil {
		o.logger.Info("selection rejected",
			logging.String(logging.FieldEventType, "selection_rejected"),
			logging.ErrorKind(err),
			logging.Int("files", len(cmd.candidates)),
			logging.Error(err),
		)
		o.reportRejections(sel.Rejected, selectionReason(err))
		return err
	}
	o.reportRejections(sel.Rejected, "")
	if sel.Next == nil {
		return ErrNothingAccepted
	}
	o.logger.Info("selection accepted",
		logging.String(logging.FieldEventType, "selection_accepted"),
		logging.Int("accepted", sel.Queued+1),
		logging.Int("rejected", len(sel.Rejected)),
		logging.String("model", options.Model),
		logging.String("language", options.Language),
	)
	o.start(ctx, sel.Next)
	return nil
}

// reportRejections tells the presenter about refused files and, when the
// whole selection was refused, why.
func (o *Orchestrator) reportRejections(rejected []*media.Rejection, selection string) {
	reasons := make([]string, 0, len(rejected)+1)
	for _, r := range rejected {
		reasons = append(reasons, r.Message)
		o.logger.Info("file rejected",
			logging.String(logging.FieldEventType, "file_rejected"),
			logging.File(r.Candidate.DisplayName()),
			logging.String("reason", string(r.Reason)),
		)
	}
	if selection != "" {
		reasons = append(reasons, selection)
	}
	if len(reasons) > 0 {
		o.presenter.OnValidationRejected(reasons)
	}
}

func selectionReason(err error) string {
	return strings.TrimPrefix(err.Error(), services.ErrValidation.Error()+": ")
}

// start opens a session for job and uploads it in the background.
func (o *Orchestrator) start(ctx context.Context, job *batch.Job) {
	file := job.Candidate.DisplayName()
	attempt, err := o.tracker.Begin(file)
	if err != nil {
		// The scheduler only hands out a job once the previous one finished.
		logging.ErrorWithContext(o.logger, "cannot open session", "session_open_failed",
			logging.File(file),
			logging.Error(err),
		)
		return
	}
	o.sampler.Reset()
	o.publish()
	o.presenter.OnProgress(0, o.withRemaining("Uploading file"))

	uploadCtx, cancel := context.WithCancel(ctx)
	o.cancelUpload = cancel
	epoch := o.epoch
	o.logger.Info("upload started",
		logging.String(logging.FieldEventType, "upload_started"),
		logging.File(file),
		logging.Attempt(attempt),
		logging.Int(logging.FieldRemaining, o.scheduler.Remaining()),
	)
	go func() {
		ack, err := o.submitter.Submit(uploadCtx, job.Candidate, job.Options)
		select {
		case o.acks <- ackMsg{epoch: epoch, attempt: attempt, file: file, ack: ack, err: err}:
		case <-o.stopped:
		}
	}()
}

func (o *Orchestrator) withRemaining(prefix string) string {
	if o.scheduler.Stats().Total > 1 {
		return fmt.Sprintf("%s (%d remaining)...", prefix, o.scheduler.Remaining())
	}
	return prefix + "..."
}

func (o *Orchestrator) handleAck(ctx context.Context, msg ackMsg) {
	if msg.epoch != o.epoch {
		o.logger.Debug("ignoring acknowledgement from abandoned attempt", logging.Attempt(msg.attempt))
		return
	}
	o.abortUpload()

	if msg.err != nil {
		reason := submissionReason(msg.err)
		if err := o.tracker.FailSubmission(msg.attempt, reason); err != nil {
			o.logger.Debug("ignoring acknowledgement", logging.Error(err), logging.Attempt(msg.attempt))
			return
		}
		logging.WarnWithContext(o.logger, "submission failed", "submission_failed",
			logging.File(msg.file),
			logging.ErrorKind(msg.err),
			logging.Error(msg.err),
			logging.String(logging.FieldErrorHint, "check the file and the service logs"),
			logging.String(logging.FieldImpact, "file skipped; batch continues"),
		)
		o.publish()
		o.presenter.OnFailed(Failure{File: msg.file, Reason: reason, Kind: services.Kind(msg.err)})
		o.advance(ctx, false)
		return
	}

	if err := o.tracker.Bind(msg.attempt, msg.ack.SessionID); err != nil {
		o.logger.Debug("ignoring acknowledgement", logging.Error(err), logging.Attempt(msg.attempt))
		return
	}
	message := o.withRemaining("File uploaded successfully. Processing")
	_ = o.tracker.Progress(5, message)
	o.logger.Info("upload acknowledged",
		logging.String(logging.FieldEventType, "upload_acknowledged"),
		logging.SessionID(msg.ack.SessionID),
		logging.File(msg.file),
	)
	o.publish()
	o.presenter.OnProgress(5, message)
	o.armStall()
}

func submissionReason(err error) string {
	var serverErr *subtitler.ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Message
	}
	return "Upload failed: " + err.Error()
}

func (o *Orchestrator) handleEvent(ctx context.Context, ev events.Event) {
	outcome := o.correlator.Apply(ev)
	snap := o.tracker.Snapshot()
	if ev.Kind.Lifecycle() {
		o.connected = ev.Kind == events.KindConnected
	}
	o.publish()
	switch outcome {
	case session.OutcomeChannel:
		o.logger.Debug("channel state changed", logging.Bool("connected", o.connected), logging.String("message", ev.Message))
		o.presenter.OnConnection(o.connected, ev.Message)
	case session.OutcomeProgress:
		o.armStall()
		progress := projector.New(snap).Progress()
		if o.sampler.ShouldLog(progress.Percent, snap.SessionID) {
			o.logger.Info("processing progress",
				logging.String(logging.FieldEventType, "progress"),
				logging.SessionID(snap.SessionID),
				logging.Float64("percent", progress.Percent),
				logging.String("message", progress.Message),
			)
		}
		o.presenter.OnProgress(progress.Percent, progress.Message)
	case session.OutcomeReady:
		o.disarmStall()
		view := projector.New(snap)
		summary := view.Summary()
		o.logger.Info("subtitles ready",
			logging.String(logging.FieldEventType, "subtitles_ready"),
			logging.SessionID(snap.SessionID),
			logging.File(snap.File),
			logging.Int("segments", summary.SegmentCount),
			logging.String("language", summary.Language),
			logging.String("model", summary.Model),
		)
		o.presenter.OnReady(Ready{SessionID: snap.SessionID, File: snap.File, Summary: summary, View: view})
		o.scheduleAdvance(ctx, true)
	case session.OutcomeFailed:
		o.disarmStall()
		logging.WarnWithContext(o.logger, "processing failed", "processing_failed",
			logging.SessionID(snap.SessionID),
			logging.File(snap.File),
			logging.String("reason", snap.Reason),
			logging.String(logging.FieldErrorKind, "processing"),
			logging.String(logging.FieldImpact, "file skipped; batch continues"),
		)
		o.presenter.OnFailed(Failure{SessionID: snap.SessionID, File: snap.File, Reason: snap.Reason, Kind: "processing"})
		o.scheduleAdvance(ctx, false)
	}
}

func (o *Orchestrator) handleTimer(ctx context.Context, msg timerMsg) {
	if msg.epoch != o.epoch {
		return
	}
	switch msg.kind {
	case timerAdvance:
		o.advanceTimer = nil
		o.advance(ctx, msg.succeeded)
	case timerStall:
		if msg.seq != o.stallSeq || o.tracker.Phase() != session.PhaseProcessing {
			return
		}
		o.stallTimer = nil
		snap := o.tracker.Snapshot()
		reason := fmt.Sprintf("no status from service within %s", o.opts.SessionTimeout)
		if err := o.tracker.Fail(reason); err != nil {
			return
		}
		err := services.Wrap(services.ErrTimeout, "orchestrator", "session", reason, nil)
		logging.WarnWithContext(o.logger, "session timed out", "session_timeout",
			logging.SessionID(snap.SessionID),
			logging.File(snap.File),
			logging.ErrorKind(err),
			logging.String(logging.FieldErrorHint, "check the event channel and the service; raise session.timeout_seconds for long files"),
			logging.String(logging.FieldImpact, "file marked failed; batch continues"),
		)
		o.publish()
		o.presenter.OnFailed(Failure{SessionID: snap.SessionID, File: snap.File, Reason: reason, Kind: services.Kind(err)})
		o.scheduleAdvance(ctx, false)
	}
}

func (o *Orchestrator) scheduleAdvance(ctx context.Context, succeeded bool) {
	if o.opts.AdvanceDelay <= 0 {
		o.advance(ctx, succeeded)
		return
	}
	msg := timerMsg{kind: timerAdvance, epoch: o.epoch, succeeded: succeeded}
	o.advanceTimer = time.AfterFunc(o.opts.AdvanceDelay, func() { o.fire(msg) })
}

func (o *Orchestrator) advance(ctx context.Context, succeeded bool) {
	next, done := o.scheduler.Advance(succeeded)
	if done {
		stats := o.scheduler.Stats()
		o.logger.Info("batch complete",
			logging.String(logging.FieldEventType, "batch_complete"),
			logging.Int("total", stats.Total),
			logging.Int("succeeded", stats.Succeeded),
			logging.Int("failed", stats.Failed),
		)
		o.publish()
		o.presenter.OnBatchComplete(stats)
		return
	}
	o.start(ctx, next)
}

func (o *Orchestrator) handleReset() {
	o.epoch++
	o.stopTimers()
	o.abortUpload()
	o.tracker.Reset()
	o.scheduler.Reset()
	o.sampler.Reset()
	o.logger.Info("session reset", logging.String(logging.FieldEventType, "session_reset"))
}

func (o *Orchestrator) armStall() {
	if o.opts.SessionTimeout <= 0 {
		return
	}
	o.stallSeq++
	if o.stallTimer != nil {
		o.stallTimer.Stop()
	}
	msg := timerMsg{kind: timerStall, epoch: o.epoch, seq: o.stallSeq}
	o.stallTimer = time.AfterFunc(o.opts.SessionTimeout, func() { o.fire(msg) })
}

func (o *Orchestrator) disarmStall() {
	o.stallSeq++
	if o.stallTimer != nil {
		o.stallTimer.Stop()
		o.stallTimer = nil
	}
}

func (o *Orchestrator) stopTimers() {
	o.disarmStall()
	if o.advanceTimer != nil {
		o.advanceTimer.Stop()
		o.advanceTimer = nil
	}
}

func (o *Orchestrator) abortUpload() {
	if o.cancelUpload != nil {
		o.cancelUpload()
		o.cancelUpload = nil
	}
}

func (o *Orchestrator) fire(msg timerMsg) {
	select {
	case o.timers <- msg:
	case <-o.stopped:
	}
}
