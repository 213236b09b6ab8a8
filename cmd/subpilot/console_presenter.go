package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"subpilot/internal/batch"
	"subpilot/internal/orchestrator"
)

// consolePresenter renders orchestrator signals for a person watching the
// terminal: a progress bar when attached to a TTY, status lines otherwise.
type consolePresenter struct {
	out         io.Writer
	colorize    bool
	interactive bool
	quiet       bool

	mu          sync.Mutex
	bar         *progressbar.ProgressBar
	lastMessage string
}

func newConsolePresenter(out io.Writer, quiet bool) *consolePresenter {
	return &consolePresenter{
		out:         out,
		colorize:    shouldColorize(out),
		interactive: isTerminal(out),
		quiet:       quiet,
	}
}

func (p *consolePresenter) OnProgress(percent float64, message string) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.interactive {
		if p.bar == nil {
			p.bar = progressbar.NewOptions(100,
				progressbar.OptionSetWriter(p.out),
				progressbar.OptionSetWidth(30),
				progressbar.OptionShowCount(),
				progressbar.OptionSetPredictTime(false),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionClearOnFinish(),
			)
		}
		p.bar.Describe(message)
		_ = p.bar.Set(int(percent))
		return
	}
	if message == p.lastMessage {
		return
	}
	p.lastMessage = message
	p.line("Progress", statusInfo, fmt.Sprintf("%3.0f%% %s", percent, message))
}

func (p *consolePresenter) OnReady(ready orchestrator.Ready) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishBar()
	if p.quiet {
		return
	}
	summary := ready.Summary
	p.line(ready.File, statusOK, fmt.Sprintf("Subtitles ready: %d segments, %s, %s",
		summary.SegmentCount, summary.LanguageText(), summary.ElapsedText()))
}

func (p *consolePresenter) OnFailed(failure orchestrator.Failure) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishBar()
	if p.quiet {
		return
	}
	p.line(failure.File, statusError, failure.Reason)
}

func (p *consolePresenter) OnBatchComplete(stats batch.Stats) {
	if p.quiet || stats.Total < 2 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	kind := statusOK
	if stats.Failed > 0 {
		kind = statusWarn
	}
	p.line("Batch", kind, fmt.Sprintf("%d of %d files succeeded", stats.Succeeded, stats.Total))
}

func (p *consolePresenter) OnValidationRejected(reasons []string) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, reason := range reasons {
		p.line("Rejected", statusWarn, reason)
	}
}

func (p *consolePresenter) OnConnection(connected bool, message string) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if connected {
		p.line("Channel", statusInfo, "connected")
		return
	}
	p.line("Channel", statusWarn, message)
}

// finishBar clears the bar so the next session starts a fresh one.
func (p *consolePresenter) finishBar() {
	p.lastMessage = ""
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}

func (p *consolePresenter) line(label string, kind statusKind, message string) {
	if p.bar != nil {
		_ = p.bar.Clear()
	}
	fmt.Fprintln(p.out, renderStatusLine(label, kind, message, p.colorize))
}
