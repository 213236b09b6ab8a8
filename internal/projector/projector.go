// Package projector derives display values from a session snapshot. It never
// mutates state and never fails.
package projector

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"subpilot/internal/session"
)

// NoPreview is returned for a format that has no content.
const NoPreview = "No preview available"

const unknown = "unknown"

// Progress is the current completion and status text.
type Progress struct {
	Percent float64
	Message string
}

// Summary is the result metadata shown once a session is ready.
type Summary struct {
	Filename       string
	Language       string
	Model          string
	SegmentCount   int
	ElapsedSeconds float64
	HasElapsed     bool
	AverageSegment float64
	HasAverage     bool
	Formats        []string
}

// Projector reads one snapshot.
type Projector struct {
	snap session.Snapshot
}

// New wraps snap.
func New(snap session.Snapshot) Projector {
	return Projector{snap: snap}
}

// Progress returns the clamped percent and the latest message.
func (p Projector) Progress() Progress {
	return Progress{Percent: session.Clamp(p.snap.Percent), Message: p.snap.Message}
}

// AvailableFormats returns the result's format names, sorted.
func (p Projector) AvailableFormats() []string {
	if p.snap.Result == nil {
		return []string{}
	}
	formats := lo.Keys(p.snap.Result.Formats)
	slices.Sort(formats)
	return formats
}

// Content returns the text for format, or NoPreview and false.
func (p Projector) Content(format string) (string, bool) {
	if p.snap.Result == nil {
		return NoPreview, false
	}
	text, ok := p.snap.Result.Formats[strings.ToLower(strings.TrimSpace(format))]
	if !ok || text == "" {
		return NoPreview, false
	}
	return text, true
}

// Summary derives result metadata with explicit defaults for missing fields.
func (p Projector) Summary() Summary {
	s := Summary{
		Filename: unknown,
		Language: unknown,
		Model:    unknown,
		Formats:  p.AvailableFormats(),
	}
	r := p.snap.Result
	if r == nil {
		if p.snap.File != "" {
			s.Filename = p.snap.File
		}
		return s
	}
	s.Filename = lo.CoalesceOrEmpty(strings.TrimSpace(r.Filename), p.snap.File, unknown)
	s.Language = lo.CoalesceOrEmpty(strings.TrimSpace(r.Language), unknown)
	s.Model = lo.CoalesceOrEmpty(strings.TrimSpace(r.Model), unknown)
	s.SegmentCount = r.Segments
	if r.HasProcessingTime {
		s.ElapsedSeconds = r.ProcessingTime
		s.HasElapsed = true
		if r.Segments > 0 {
			s.AverageSegment = r.ProcessingTime / float64(r.Segments)
			s.HasAverage = true
		}
	}
	return s
}

// Line is one labelled display value.
type Line struct {
	Label string
	Value string
}

var titleCaser = cases.Title(language.English)

// Lines renders the summary for display: elapsed "12.4s", average "4.13s",
// model title-cased, language upper-cased.
func (s Summary) Lines() []Line {
	return []Line{
		{Label: "File", Value: s.Filename},
		{Label: "Processing time", Value: s.ElapsedText()},
		{Label: "Segments", Value: fmt.Sprintf("%d", s.SegmentCount)},
		{Label: "Average segment", Value: s.AverageText()},
		{Label: "Language", Value: s.LanguageText()},
		{Label: "Model", Value: s.ModelText()},
		{Label: "Formats", Value: lo.Ternary(len(s.Formats) == 0, "none", strings.Join(s.Formats, ", "))},
	}
}

// ElapsedText renders the processing time or "N/A".
func (s Summary) ElapsedText() string {
	if !s.HasElapsed {
		return "N/A"
	}
	return fmt.Sprintf("%.1fs", s.ElapsedSeconds)
}

// AverageText renders the average time per segment or "N/A".
func (s Summary) AverageText() string {
	if !s.HasAverage {
		return "N/A"
	}
	return fmt.Sprintf("%.2fs", s.AverageSegment)
}

// ModelText title-cases the model name.
func (s Summary) ModelText() string {
	if s.Model == unknown {
		return "Unknown"
	}
	return titleCaser.String(s.Model)
}

// LanguageText upper-cases the detected language code.
func (s Summary) LanguageText() string {
	if s.Language == unknown {
		return "Unknown"
	}
	return strings.ToUpper(s.Language)
}
