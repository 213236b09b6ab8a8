package session

import (
	"log/slog"
	"maps"

	"subpilot/internal/events"
	"subpilot/internal/logging"
)

// Outcome is what applying one event did.
type Outcome string

const (
	OutcomeChannel  Outcome = "channel"
	OutcomeStale    Outcome = "stale"
	OutcomeProgress Outcome = "progress"
	OutcomeReady    Outcome = "ready"
	OutcomeFailed   Outcome = "failed"
)

// Correlator applies events to a Tracker, dropping those that do not belong
// to the active session.
type Correlator struct {
	tracker *Tracker
	logger  *slog.Logger
	stale   int
	onStale func(events.Event)
}

// NewCorrelator binds a correlator to tracker.
func NewCorrelator(tracker *Tracker, logger *slog.Logger) *Correlator {
	return &Correlator{
		tracker: tracker,
		logger:  logging.NewComponentLogger(logger, "correlator"),
	}
}

// OnStale registers a hook invoked for every ignored event.
func (c *Correlator) OnStale(fn func(events.Event)) {
	c.onStale = fn
}

// Stale returns how many events have been ignored.
func (c *Correlator) Stale() int {
	return c.stale
}

// Apply routes one event. Only an event whose session id equals the active id
// of a processing session can change state.
func (c *Correlator) Apply(ev events.Event) Outcome {
	if ev.Kind.Lifecycle() {
		return OutcomeChannel
	}
	active := c.tracker.ActiveID()
	if active == "" || ev.SessionID != active || c.tracker.Phase() != PhaseProcessing {
		return c.ignore(ev, active)
	}

	var err error
	outcome := Outcome(ev.Kind)
	switch ev.Kind {
	case events.KindProgress:
		err = c.tracker.Progress(ev.Percent, ev.Message)
	case events.KindReady:
		err = c.tracker.Complete(ResultFromPayload(ev.Ready))
	case events.KindFailed:
		err = c.tracker.Fail(ev.Reason)
	default:
		return c.ignore(ev, active)
	}
	if err != nil {
		return c.ignore(ev, active)
	}
	return outcome
}

func (c *Correlator) ignore(ev events.Event, active string) Outcome {
	c.stale++
	c.logger.Debug("stale event ignored",
		logging.String(logging.FieldEventType, "stale_event_ignored"),
		logging.String("event_kind", string(ev.Kind)),
		logging.String("event_session_id", ev.SessionID),
		logging.SessionID(active),
		logging.String("phase", string(c.tracker.Phase())),
	)
	if c.onStale != nil {
		c.onStale(ev)
	}
	return OutcomeStale
}

// ResultFromPayload converts a ready payload to a Result. A nil payload gives
// an empty Result.
func ResultFromPayload(p *events.ReadyPayload) Result {
	if p == nil {
		return Result{Formats: map[string]string{}}
	}
	r := Result{
		Formats:  maps.Clone(p.Subtitles),
		Language: p.Language,
		Model:    p.ModelUsed,
		Filename: p.Filename,
		Segments: p.Segments,
		VideoURL: p.VideoURL,
	}
	if r.Formats == nil {
		r.Formats = map[string]string{}
	}
	if p.ProcessingTime != nil {
		r.ProcessingTime = *p.ProcessingTime
		r.HasProcessingTime = true
	}
	return r
}
