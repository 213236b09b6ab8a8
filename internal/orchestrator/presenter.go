package orchestrator

import (
	"subpilot/internal/batch"
	"subpilot/internal/projector"
)

// Ready describes a session that produced subtitles.
type Ready struct {
	SessionID string
	File      string
	Summary   projector.Summary
	View      projector.Projector
}

// Failure describes a session that ended without subtitles.
type Failure struct {
	SessionID string
	File      string
	Reason    string
	// Kind is the error taxonomy name: submission, transport, processing or timeout.
	Kind string
}

// Presenter receives user-facing signals. Methods run on the orchestrator
// loop goroutine; they must return promptly and must not call back into the
// Orchestrator synchronously.
type Presenter interface {
	OnProgress(percent float64, message string)
	OnReady(ready Ready)
	OnFailed(failure Failure)
	OnBatchComplete(stats batch.Stats)
	OnValidationRejected(reasons []string)
	OnConnection(connected bool, message string)
}

// NopPresenter ignores every signal. Embed it to implement a subset.
type NopPresenter struct{}

func (NopPresenter) OnProgress(float64, string)    {}
func (NopPresenter) OnReady(Ready)                 {}
func (NopPresenter) OnFailed(Failure)              {}
func (NopPresenter) OnBatchComplete(batch.Stats)   {}
func (NopPresenter) OnValidationRejected([]string) {}
func (NopPresenter) OnConnection(bool, string)     {}

type presenters []Presenter

// Presenters fans signals out to every non-nil presenter in order.
func Presenters(list ...Presenter) Presenter {
	out := make(presenters, 0, len(list))
	for _, p := range list {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (ps presenters) OnProgress(percent float64, message string) {
	for _, p := range ps {
		p.OnProgress(percent, message)
	}
}

func (ps presenters) OnReady(ready Ready) {
	for _, p := range ps {
		p.OnReady(ready)
	}
}

func (ps presenters) OnFailed(failure Failure) {
	for _, p := range ps {
		p.OnFailed(failure)
	}
}

func (ps presenters) OnBatchComplete(stats batch.Stats) {
	for _, p := range ps {
		p.OnBatchComplete(stats)
	}
}

func (ps presenters) OnValidationRejected(reasons []string) {
	for _, p := range ps {
		p.OnValidationRejected(reasons)
	}
}

func (ps presenters) OnConnection(connected bool, message string) {
	for _, p := range ps {
		p.OnConnection(connected, message)
	}
}
