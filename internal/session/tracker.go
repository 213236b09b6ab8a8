package session

import (
	"errors"
	"fmt"
	"maps"
	"time"
)

// Phase is the lifecycle position of the Session.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseUploading  Phase = "uploading"
	PhaseProcessing Phase = "processing"
	PhaseReady      Phase = "ready"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether the phase ends a session.
func (p Phase) Terminal() bool {
	return p == PhaseReady || p == PhaseFailed
}

var (
	// ErrInvalidTransition is returned when an operation is not legal in the current phase.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrStaleAttempt is returned for acknowledgements from a superseded submission attempt.
	ErrStaleAttempt = errors.New("stale submission attempt")
)

// Result is the installed outcome of a Ready session.
type Result struct {
	Formats           map[string]string
	Language          string
	Model             string
	Filename          string
	Segments          int
	ProcessingTime    float64
	HasProcessingTime bool
	VideoURL          string
}

func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	out.Formats = maps.Clone(r.Formats)
	return &out
}

// Snapshot is a value copy of the Session.
type Snapshot struct {
	Attempt   uint64
	SessionID string
	File      string
	Percent   float64
	Message   string
	Phase     Phase
	Reason    string
	Result    *Result
	StartedAt time.Time
	UpdatedAt time.Time
}

// Tracker holds the one Session.
type Tracker struct {
	now   func() time.Time
	state Snapshot
}

// NewTracker returns an idle tracker. A nil clock uses time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now, state: Snapshot{Phase: PhaseIdle}}
}

// Snapshot returns a copy of the Session.
func (t *Tracker) Snapshot() Snapshot {
	out := t.state
	out.Result = t.state.Result.clone()
	return out
}

// ActiveID returns the bound service session id, or "" when none is bound.
func (t *Tracker) ActiveID() string {
	return t.state.SessionID
}

// Phase returns the current phase.
func (t *Tracker) Phase() Phase {
	return t.state.Phase
}

// Begin opens a new upload for file and returns its attempt number.
func (t *Tracker) Begin(file string) (uint64, error) {
	switch t.state.Phase {
	case PhaseIdle, PhaseReady, PhaseFailed:
	default:
		return 0, t.invalid("begin")
	}
	now := t.now()
	t.state = Snapshot{
		Attempt:   t.state.Attempt + 1,
		File:      file,
		Phase:     PhaseUploading,
		StartedAt: now,
		UpdatedAt: now,
	}
	return t.state.Attempt, nil
}

// Bind installs the service-assigned id once the upload is acknowledged.
func (t *Tracker) Bind(attempt uint64, sessionID string) error {
	if attempt != t.state.Attempt {
		return ErrStaleAttempt
	}
	if t.state.Phase != PhaseUploading {
		return t.invalid("bind")
	}
	if sessionID == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidTransition)
	}
	t.state.SessionID = sessionID
	t.state.Phase = PhaseProcessing
	t.state.UpdatedAt = t.now()
	return nil
}

// FailSubmission marks the upload as rejected.
func (t *Tracker) FailSubmission(attempt uint64, reason string) error {
	if attempt != t.state.Attempt {
		return ErrStaleAttempt
	}
	if t.state.Phase != PhaseUploading {
		return t.invalid("fail submission")
	}
	t.state.Phase = PhaseFailed
	t.state.Reason = reason
	t.state.UpdatedAt = t.now()
	return nil
}

// Progress records a status update. Percent is clamped to [0,100] and never
// decreases; message is applied as-is. Reaching 100 does not change phase.
func (t *Tracker) Progress(percent float64, message string) error {
	if t.state.Phase != PhaseProcessing {
		return t.invalid("progress")
	}
	percent = Clamp(percent)
	if percent > t.state.Percent {
		t.state.Percent = percent
	}
	t.state.Message = message
	t.state.UpdatedAt = t.now()
	return nil
}

// Complete installs the result and ends the session successfully.
func (t *Tracker) Complete(result Result) error {
	if t.state.Phase != PhaseProcessing {
		return t.invalid("complete")
	}
	t.state.Result = result.clone()
	t.state.Phase = PhaseReady
	t.state.Percent = 100
	t.state.UpdatedAt = t.now()
	return nil
}

// Fail ends a processing session with reason.
func (t *Tracker) Fail(reason string) error {
	if t.state.Phase != PhaseProcessing {
		return t.invalid("fail")
	}
	t.state.Phase = PhaseFailed
	t.state.Reason = reason
	t.state.UpdatedAt = t.now()
	return nil
}

// Reset returns to Idle and forgets the session id and result. The attempt
// counter survives so late acknowledgements stay recognizable as stale.
func (t *Tracker) Reset() {
	t.state = Snapshot{Attempt: t.state.Attempt, Phase: PhaseIdle, UpdatedAt: t.now()}
}

func (t *Tracker) invalid(op string) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, t.state.Phase)
}

// Clamp bounds a percentage to [0,100].
func Clamp(percent float64) float64 {
	switch {
	case percent != percent, percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}
