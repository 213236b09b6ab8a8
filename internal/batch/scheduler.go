package batch

import (
	"fmt"

	"subpilot/internal/media"
	"subpilot/internal/services"
	"subpilot/internal/services/subtitler"
)

var (
	// ErrMultipleFiles rejects a multi-file selection while batch mode is off.
	ErrMultipleFiles = fmt.Errorf("%w: multiple files selected, enable batch mode", services.ErrValidation)
	// ErrBusy rejects a selection while a job is still in flight. The
	// selection returned alongside it still carries per-file rejections.
	ErrBusy = fmt.Errorf("%w: a submission is already in progress; reset first", services.ErrValidation)
)

// Job is one file paired with the options it will be submitted with.
type Job struct {
	Candidate media.Candidate
	Options   subtitler.SubmissionOptions
}

// Selection is the result of accepting a user selection.
type Selection struct {
	// Next is the job to submit now; nil when nothing was accepted.
	Next *Job
	// Queued counts jobs waiting behind Next.
	Queued   int
	Rejected []*media.Rejection
}

// Stats summarizes outcomes since the last Reset.
type Stats struct {
	Total     int
	Succeeded int
	Failed    int
}

// Pending reports jobs not yet finished.
func (s Stats) Pending() int {
	return s.Total - s.Succeeded - s.Failed
}

// Scheduler holds the batch queue.
type Scheduler struct {
	validator *media.Validator
	queue     []Job
	inFlight  *Job
	stats     Stats
}

// NewScheduler builds a scheduler that validates with v.
func NewScheduler(v *media.Validator) *Scheduler {
	if v == nil {
		v = media.NewValidator(media.DefaultLimits())
	}
	return &Scheduler{validator: v}
}

// SubmitSelection validates candidates and returns the job to start.
func (s *Scheduler) SubmitSelection(candidates []media.Candidate, batchMode bool, options subtitler.SubmissionOptions) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, media.ErrNoFiles
	}
	if len(candidates) > 1 && !batchMode {
		return Selection{}, ErrMultipleFiles
	}

	accepted, rejected := s.validator.Partition(candidates)
	sel := Selection{Rejected: rejected}
	if s.inFlight != nil {
		return sel, ErrBusy
	}
	if len(accepted) == 0 {
		return sel, nil
	}

	s.queue = s.queue[:0]
	s.stats = Stats{Total: len(accepted)}
	if len(accepted) == 1 {
		s.inFlight = &Job{Candidate: accepted[0], Options: options}
		sel.Next = s.inFlight
		return sel, nil
	}
	for _, c := range accepted {
		s.queue = append(s.queue, Job{Candidate: c, Options: options})
	}
	sel.Next = s.pop()
	sel.Queued = len(s.queue)
	return sel, nil
}

// Advance records the in-flight outcome and returns the next job. done is
// true when nothing remains.
func (s *Scheduler) Advance(succeeded bool) (*Job, bool) {
	if s.inFlight != nil {
		if succeeded {
			s.stats.Succeeded++
		} else {
			s.stats.Failed++
		}
		s.inFlight = nil
	}
	if len(s.queue) == 0 {
		return nil, true
	}
	return s.pop(), false
}

func (s *Scheduler) pop() *Job {
	job := s.queue[0]
	s.queue = s.queue[1:]
	s.inFlight = &job
	return s.inFlight
}

// Remaining counts queued jobs behind the in-flight one.
func (s *Scheduler) Remaining() int {
	return len(s.queue)
}

// InFlight returns the current job, or nil.
func (s *Scheduler) InFlight() *Job {
	return s.inFlight
}

// Stats returns outcome counts for the current batch.
func (s *Scheduler) Stats() Stats {
	return s.stats
}

// Reset drops the backlog and the in-flight marker.
func (s *Scheduler) Reset() {
	s.queue = nil
	s.inFlight = nil
	s.stats = Stats{}
}
