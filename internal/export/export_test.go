package export_test

import (
	"os"
	"path/filepath"
	"testing"

	"subpilot/internal/export"
	"subpilot/internal/projector"
	"subpilot/internal/session"
)

func TestStem(t *testing.T) {
	tests := map[string]string{
		"talk.mp4":             "talk",
		"/videos/Show S01.mkv": "Show S01",
		"":                     "subtitles",
		".mp4":                 "subtitles",
		"a:b.wav":              "a-b",
	}
	for in, want := range tests {
		if got := export.Stem(in); got != want {
			t.Fatalf("Stem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWrite(t *testing.T) {
	view := projector.New(session.Snapshot{Result: &session.Result{Formats: map[string]string{
		"srt": "1\n00:00:00,000 --> 00:00:01,000\nhello\n",
		"vtt": "WEBVTT\n",
		"ass": "[Script Info]\n",
	}}})
	dir := filepath.Join(t.TempDir(), "out")

	written, err := export.Write(dir, "talk", view, []string{".SRT", "vtt", "txt"})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(written) != 2 || written[0].Format != "srt" || written[1].Format != "vtt" {
		t.Fatalf("unexpected written %+v", written)
	}
	data, err := os.ReadFile(filepath.Join(dir, "talk.srt"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "1\n00:00:00,000 --> 00:00:01,000\nhello\n" {
		t.Fatalf("content = %q", data)
	}
	if _, err := os.Stat(filepath.Join(dir, "talk.txt")); !os.IsNotExist(err) {
		t.Fatalf("missing format should not be written, stat err = %v", err)
	}

	all, err := export.Write(dir, "", view, nil)
	if err != nil {
		t.Fatalf("Write all: %v", err)
	}
	if len(all) != 3 || filepath.Base(all[0].Path) != "subtitles.ass" {
		t.Fatalf("unexpected written %+v", all)
	}
}

func TestWriteRequiresDir(t *testing.T) {
	if _, err := export.Write("", "x", projector.New(session.Snapshot{}), nil); err == nil {
		t.Fatal("expected error without directory")
	}
}
