package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"subpilot/internal/testsupport"
)

func TestSubmitSingleFileExportsResults(t *testing.T) {
	env := setupCLITestEnv(t)
	path := testsupport.WriteMP4(t, env.mediaDir, "talk.mp4")

	out, _, err := runCLI(t, []string{"submit", path, "--model", "small"}, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "Segments")
	requireContains(t, out, "sess-1")

	requireFile(t, filepath.Join(env.cfg.Output.Dir, "talk.srt"), "Hello there")
	requireFile(t, filepath.Join(env.cfg.Output.Dir, "talk.vtt"), "WEBVTT")

	uploads := env.svc.Uploads()
	if len(uploads) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(uploads))
	}
	if uploads[0].Fields["model"] != "small" || uploads[0].Fields["language"] != "auto" || uploads[0].Fields["vad"] != "true" {
		t.Fatalf("unexpected form fields %v", uploads[0].Fields)
	}
}

func TestSubmitWaitsForChannelBeforeUploading(t *testing.T) {
	env := setupCLITestEnv(t)
	path := testsupport.WriteMP4(t, env.mediaDir, "talk.mp4")

	_, stderr, err := runCLI(t, []string{"submit", path, "--no-export"}, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	connected := strings.Index(stderr, "connected")
	uploading := strings.Index(stderr, "Uploading file")
	if connected < 0 || uploading < 0 || connected > uploading {
		t.Fatalf("expected channel connection before upload:\n%s", stderr)
	}
}

func TestSubmitProceedsWhenCapabilitiesUnavailable(t *testing.T) {
	env := setupCLITestEnv(t)
	env.svc.FailSystemInfo()
	path := testsupport.WriteMP4(t, env.mediaDir, "talk.mp4")

	out, _, err := runCLI(t, []string{"submit", path, "--model", "large"}, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "sess-1")
	uploads := env.svc.Uploads()
	if len(uploads) != 1 || uploads[0].Fields["model"] != "large" {
		t.Fatalf("unexpected uploads %+v", uploads)
	}
}

func TestSubmitRejectsModelTheServiceLacks(t *testing.T) {
	env := setupCLITestEnv(t)
	path := testsupport.WriteMP4(t, env.mediaDir, "talk.mp4")

	_, _, err := runCLI(t, []string{"submit", path, "--model", "large"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), `model "large" is not offered`) {
		t.Fatalf("expected model rejection, got %v", err)
	}
	_, _, err = runCLI(t, []string{"submit", path, "--language", "ja"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), `language "ja" is not supported`) {
		t.Fatalf("expected language rejection, got %v", err)
	}
	if uploads := env.svc.Uploads(); len(uploads) != 0 {
		t.Fatalf("rejected options still uploaded: %+v", uploads)
	}
}

func TestSubmitBatchJSONReportsFailures(t *testing.T) {
	env := setupCLITestEnv(t)
	first := testsupport.WriteMP4(t, env.mediaDir, "a.mp4")
	second := testsupport.WriteMP4(t, env.mediaDir, "b.mp4")
	env.svc.FailProcessing("a.mp4", "Transcription failed: model crashed")

	out, _, err := runCLI(t, []string{"submit", "--batch", "--json", "--formats", "srt", first, second}, env.configPath)
	if err == nil {
		t.Fatal("expected submit to fail when a file fails")
	}
	requireContains(t, err.Error(), "1 of 2 files failed")

	var report submitReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if report.Total != 2 || report.Succeeded != 1 || report.Failed != 1 || len(report.Files) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Files[0].File != "a.mp4" || report.Files[0].Status != "failed" || report.Files[0].Reason != "Transcription failed: model crashed" {
		t.Fatalf("unexpected first file %+v", report.Files[0])
	}
	if report.Files[1].Status != "ready" || len(report.Files[1].Exported) != 1 {
		t.Fatalf("unexpected second file %+v", report.Files[1])
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Output.Dir, "b.vtt")); !os.IsNotExist(err) {
		t.Fatalf("vtt should not be exported when --formats srt, stat err = %v", err)
	}

	uploads := env.svc.Uploads()
	if len(uploads) != 2 || uploads[0].Filename != "a.mp4" || uploads[1].Filename != "b.mp4" {
		t.Fatalf("expected sequential uploads in order, got %+v", uploads)
	}
}

func TestSubmitUploadRejection(t *testing.T) {
	env := setupCLITestEnv(t)
	path := testsupport.WriteMP4(t, env.mediaDir, "clip.mp4")
	env.svc.RejectUpload("clip.mp4", "Invalid file type")

	out, _, err := runCLI(t, []string{"submit", "--json", path}, env.configPath)
	if err == nil {
		t.Fatal("expected failure")
	}
	var report submitReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report.Files) != 1 || report.Files[0].Reason != "Invalid file type" || report.Files[0].Kind != "submission" {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestSubmitMultipleFilesRequiresBatch(t *testing.T) {
	env := setupCLITestEnv(t)
	first := testsupport.WriteMP4(t, env.mediaDir, "a.mp4")
	second := testsupport.WriteMP4(t, env.mediaDir, "b.mp4")

	_, stderr, err := runCLI(t, []string{"submit", first, second}, env.configPath)
	if err == nil {
		t.Fatal("expected error without --batch")
	}
	requireContains(t, err.Error(), "batch mode")
	requireContains(t, stderr, "multiple files selected")
	if len(env.svc.Uploads()) != 0 {
		t.Fatal("nothing should be uploaded")
	}
}

func TestSubmitRejectsUnsupportedFiles(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.mediaDir, "notes.txt")
	testsupport.WriteFile(t, path, 64)

	_, stderr, err := runCLI(t, []string{"submit", path}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unsupported file")
	}
	requireContains(t, stderr, "notes.txt")
}

func TestSubmitManifest(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteMP4(t, env.mediaDir, "one.mp4")
	testsupport.WriteMP4(t, env.mediaDir, "two.mp4")
	manifestPath := filepath.Join(env.mediaDir, "batch.yaml")
	body := "options:\n  model: medium\n  language: de\n  enhance: true\nfiles:\n  - one.mp4\n  - two.mp4\n"
	if err := os.WriteFile(manifestPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	out, _, err := runCLI(t, []string{"submit", "--manifest", manifestPath, "--no-export"}, env.configPath)
	if err != nil {
		t.Fatalf("submit manifest: %v", err)
	}
	requireContains(t, out, "2 of 2 files succeeded")

	uploads := env.svc.Uploads()
	if len(uploads) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(uploads))
	}
	for _, u := range uploads {
		if u.Fields["model"] != "medium" || u.Fields["language"] != "de" || u.Fields["enhance"] != "true" {
			t.Fatalf("manifest options not applied: %v", u.Fields)
		}
	}
	if entries, _ := os.ReadDir(env.cfg.Output.Dir); len(entries) != 0 {
		t.Fatalf("--no-export wrote %d files", len(entries))
	}
}

func TestCapabilities(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"capabilities"}, env.configPath)
	if err != nil {
		t.Fatalf("capabilities: %v", err)
	}
	requireContains(t, out, "small")
	requireContains(t, out, "English")
	if strings.Index(out, "base") > strings.Index(out, "small") {
		t.Fatalf("expected models in size order:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"capabilities", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("capabilities --json: %v", err)
	}
	requireContains(t, out, `"supported_languages"`)
}

func TestSessionAndDownload(t *testing.T) {
	env := setupCLITestEnv(t)
	env.svc.AddResult(testsupport.ReadyPayloadFor("abc123", "lecture.mp4"))

	out, _, err := runCLI(t, []string{"session", "abc123"}, env.configPath)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	requireContains(t, out, "lecture.mp4")
	requireContains(t, out, "EN")
	requireContains(t, out, "1.5s")

	dir := filepath.Join(env.baseDir, "downloads")
	out, _, err = runCLI(t, []string{"download", "srt", "abc123", "-o", dir}, env.configPath)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	requireContains(t, out, "Saved")
	requireFile(t, filepath.Join(dir, "lecture.srt"), "Hello there")

	_, _, err = runCLI(t, []string{"session", "missing"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "not configured")
}

func TestTestNotifyPublishesToTopic(t *testing.T) {
	titles := make(chan string, 1)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		titles <- r.Header.Get("Title")
	}))
	defer ntfy.Close()
	env := setupCLITestEnv(t, testsupport.WithNtfyTopic(ntfy.URL+"/subpilot"))

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if title := <-titles; title != "Subpilot - Test" {
		t.Fatalf("ntfy title = %q", title)
	}
}

func TestStatusAgainstFakeService(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	requireContains(t, out, "[OK] "+env.svc.URL())
	requireContains(t, out, "3 models")
}
