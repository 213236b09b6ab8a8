package projector_test

import (
	"testing"

	"subpilot/internal/projector"
	"subpilot/internal/session"
)

func readySnapshot(result *session.Result) session.Snapshot {
	return session.Snapshot{Phase: session.PhaseReady, Percent: 100, File: "talk.mp4", Result: result}
}

func TestProgressIsClamped(t *testing.T) {
	for _, in := range []float64{-20, 0, 55, 100, 140} {
		got := projector.New(session.Snapshot{Percent: in, Message: "m"}).Progress()
		if got.Percent < 0 || got.Percent > 100 {
			t.Fatalf("Progress(%v) = %v out of range", in, got.Percent)
		}
		if got.Message != "m" {
			t.Fatalf("message = %q", got.Message)
		}
	}
}

func TestContentSentinelForEveryResultState(t *testing.T) {
	states := map[string]session.Snapshot{
		"no result":    {Phase: session.PhaseIdle},
		"processing":   {Phase: session.PhaseProcessing, Percent: 40},
		"empty result": readySnapshot(&session.Result{}),
		"other format": readySnapshot(&session.Result{Formats: map[string]string{"srt": "1"}}),
		"empty text":   readySnapshot(&session.Result{Formats: map[string]string{"ass": ""}}),
	}
	for name, snap := range states {
		t.Run(name, func(t *testing.T) {
			text, ok := projector.New(snap).Content("ass")
			if ok || text != projector.NoPreview {
				t.Fatalf("Content = %q, %v", text, ok)
			}
		})
	}
}

func TestEndToEndSummary(t *testing.T) {
	snap := readySnapshot(&session.Result{
		Formats:           map[string]string{"vtt": "WEBVTT", "srt": "1\n00:00:00,000 --> ...", "txt": "hello"},
		Language:          "en",
		Model:             "base",
		Filename:          "talk.mp4",
		Segments:          3,
		ProcessingTime:    12.4,
		HasProcessingTime: true,
	})
	p := projector.New(snap)

	formats := p.AvailableFormats()
	want := []string{"srt", "txt", "vtt"}
	if len(formats) != len(want) {
		t.Fatalf("formats = %v", formats)
	}
	for i := range want {
		if formats[i] != want[i] {
			t.Fatalf("formats = %v, want %v", formats, want)
		}
	}
	if text, ok := p.Content("SRT"); !ok || text == projector.NoPreview {
		t.Fatalf("Content(srt) = %q, %v", text, ok)
	}

	s := p.Summary()
	if !s.HasElapsed || s.ElapsedSeconds != 12.4 || s.SegmentCount != 3 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if !s.HasAverage || s.AverageSegment < 4.13 || s.AverageSegment > 4.14 {
		t.Fatalf("average = %v", s.AverageSegment)
	}

	lines := map[string]string{}
	for _, l := range s.Lines() {
		lines[l.Label] = l.Value
	}
	expect := map[string]string{
		"Processing time": "12.4s",
		"Average segment": "4.13s",
		"Segments":        "3",
		"Model":           "Base",
		"Language":        "EN",
		"File":            "talk.mp4",
		"Formats":         "srt, txt, vtt",
	}
	for label, value := range expect {
		if lines[label] != value {
			t.Fatalf("%s = %q, want %q", label, lines[label], value)
		}
	}
}

func TestSummaryDefaults(t *testing.T) {
	s := projector.New(readySnapshot(&session.Result{Segments: 0, ProcessingTime: 5, HasProcessingTime: true})).Summary()
	if s.HasAverage || s.AverageText() != "N/A" {
		t.Fatalf("average should be N/A with zero segments: %+v", s)
	}
	if s.Language != "unknown" || s.Model != "unknown" || s.LanguageText() != "Unknown" || s.ModelText() != "Unknown" {
		t.Fatalf("unexpected defaults %+v", s)
	}
	if s.Filename != "talk.mp4" {
		t.Fatalf("filename should fall back to the submitted file, got %q", s.Filename)
	}

	empty := projector.New(session.Snapshot{}).Summary()
	if empty.HasElapsed || empty.ElapsedText() != "N/A" || len(empty.Formats) != 0 {
		t.Fatalf("unexpected empty summary %+v", empty)
	}
	if formats := projector.New(session.Snapshot{}).AvailableFormats(); formats == nil || len(formats) != 0 {
		t.Fatalf("AvailableFormats without result = %v", formats)
	}
}
