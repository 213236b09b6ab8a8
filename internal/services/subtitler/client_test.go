package subtitler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"subpilot/internal/media"
	"subpilot/internal/services"
	"subpilot/internal/services/subtitler"
)

func newClient(t *testing.T, handler http.Handler) *subtitler.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := subtitler.NewClient(subtitler.Config{BaseURL: server.URL + "/"},
		subtitler.WithRequestIDs(func() string { return "req-1" }),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func writeMedia(t *testing.T, name, content string) media.Candidate {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return media.Candidate{Name: name, Path: path, Size: int64(len(content)), MIMEType: "audio/mpeg"}
}

func TestSubmitSendsMultipartForm(t *testing.T) {
	candidate := writeMedia(t, "talk.mp3", "fake audio bytes")
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/upload" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-Request-ID"); got != "req-1" {
			t.Errorf("X-Request-ID = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		want := map[string]string{"model": "small", "language": "en", "vad": "false", "enhance": "true"}
		for key, value := range want {
			if got := r.FormValue(key); got != value {
				t.Errorf("field %s = %q, want %q", key, got, value)
			}
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "talk.mp3" || string(data) != "fake audio bytes" {
			t.Errorf("unexpected file %q %q", header.Filename, data)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"session_id": "abc-123",
			"message":    "File uploaded successfully. Processing started.",
			"options":    map[string]any{"model": "small", "language": "en", "vad": false, "enhance": true},
		})
	}))

	ack, err := client.Submit(context.Background(), candidate, subtitler.SubmissionOptions{Model: "small", Language: "en", Enhance: true})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ack.SessionID != "abc-123" || ack.Options.Model != "small" || !ack.Options.Enhance {
		t.Fatalf("unexpected ack %+v", ack)
	}
}

func TestSubmitServerRejection(t *testing.T) {
	candidate := writeMedia(t, "a.mp3", "x")
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Invalid file type"}`))
	}))

	_, err := client.Submit(context.Background(), candidate, subtitler.DefaultSubmissionOptions())
	var serverErr *subtitler.ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if serverErr.StatusCode != http.StatusBadRequest || serverErr.Message != "Invalid file type" {
		t.Fatalf("unexpected server error %+v", serverErr)
	}
	if !errors.Is(err, services.ErrSubmission) {
		t.Fatal("server rejection should be a submission error")
	}
}

func TestSubmitMissingSessionID(t *testing.T) {
	candidate := writeMedia(t, "a.mp3", "x")
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	_, err := client.Submit(context.Background(), candidate, subtitler.DefaultSubmissionOptions())
	if !errors.Is(err, services.ErrSubmission) {
		t.Fatalf("expected ErrSubmission, got %v", err)
	}
}

func TestSubmitTransportFailure(t *testing.T) {
	candidate := writeMedia(t, "a.mp3", "x")
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := subtitler.NewClient(subtitler.Config{BaseURL: url})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Submit(context.Background(), candidate, subtitler.DefaultSubmissionOptions())
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestSubmitMissingFile(t *testing.T) {
	client := newClient(t, http.NotFoundHandler())
	_, err := client.Submit(context.Background(), media.Candidate{Name: "gone.mp3", Path: "/nonexistent/gone.mp3"}, subtitler.DefaultSubmissionOptions())
	if !errors.Is(err, services.ErrSubmission) {
		t.Fatalf("expected ErrSubmission, got %v", err)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := subtitler.NewClient(subtitler.Config{BaseURL: "not a url"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestCapabilities(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/system-info" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{
			"cuda_available": true, "device": "cuda", "gpu_name": "RTX", "gpu_memory": "8.0 GB",
			"whisper_models": {
				"large": {"name":"Large","size":"1550 MB","speed":"Slow","accuracy":"Best","vram":"~10 GB"},
				"tiny": {"name":"Tiny","size":"39 MB","speed":"Fastest","accuracy":"Basic","vram":"~1 GB"},
				"base": {"name":"Base","size":"74 MB","speed":"Fast","accuracy":"Good","vram":"~1 GB"}
			},
			"supported_languages": {"en":"English","auto":"Auto-detect","de":"German"}
		}`))
	}))

	caps, err := client.Capabilities(context.Background())
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}
	if !caps.CUDAAvailable || caps.Device != "cuda" || caps.Models["base"].VRAM != "~1 GB" {
		t.Fatalf("unexpected capabilities %+v", caps)
	}
	names := caps.ModelNames()
	if len(names) != 3 || names[0] != "tiny" || names[1] != "base" || names[2] != "large" {
		t.Fatalf("ModelNames = %v", names)
	}
	codes := caps.LanguageCodes()
	if len(codes) != 3 || codes[0] != "auto" || codes[1] != "de" {
		t.Fatalf("LanguageCodes = %v", codes)
	}
}

func TestCapabilitiesOrEmptyDegrades(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	caps := client.CapabilitiesOrEmpty(context.Background(), nil)
	if !caps.Empty() {
		t.Fatalf("expected empty capabilities, got %+v", caps)
	}
}

func TestCapabilitiesCheck(t *testing.T) {
	caps := subtitler.Capabilities{
		Models:             map[string]subtitler.ModelInfo{"base": {}, "small": {}},
		SupportedLanguages: map[string]string{"en": "English", "de": "German"},
	}
	tests := []struct {
		name    string
		caps    subtitler.Capabilities
		opts    subtitler.SubmissionOptions
		wantErr bool
	}{
		{"offered", caps, subtitler.SubmissionOptions{Model: "small", Language: "de"}, false},
		{"auto always allowed", caps, subtitler.SubmissionOptions{Model: "base", Language: "auto"}, false},
		{"unknown model", caps, subtitler.SubmissionOptions{Model: "large", Language: "en"}, true},
		{"unknown language", caps, subtitler.SubmissionOptions{Model: "base", Language: "ja"}, true},
		{"empty catalogue", subtitler.Capabilities{}, subtitler.SubmissionOptions{Model: "large", Language: "ja"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.caps.Check(tt.opts)
			if tt.wantErr && !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Check: %v", err)
			}
		})
	}
}

func TestSessionAndDownload(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/session/abc":
			_, _ = w.Write([]byte(`{"subtitles":{"srt":"1"},"language":"en","segments":1,"model_used":"base","filename":"talk.mp4"}`))
		case "/api/download/srt/abc":
			w.Header().Set("Content-Disposition", `attachment; filename=talk.srt`)
			_, _ = w.Write([]byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Session not found"}`))
		}
	}))

	payload, err := client.Session(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if payload.SessionID != "abc" || payload.Subtitles["srt"] != "1" {
		t.Fatalf("unexpected payload %+v", payload)
	}

	dl, err := client.Download(context.Background(), ".SRT", "abc")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if dl.Filename != "talk.srt" || len(dl.Content) == 0 {
		t.Fatalf("unexpected download %+v", dl)
	}

	_, err = client.Session(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := client.Download(context.Background(), "", "abc"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmissionOptionsNormalize(t *testing.T) {
	opts, err := subtitler.SubmissionOptions{Model: " Small ", Language: "German"}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if opts.Model != "small" || opts.Language != "de" {
		t.Fatalf("unexpected options %+v", opts)
	}
	opts, err = subtitler.SubmissionOptions{}.Normalize()
	if err != nil || opts.Model != "base" || opts.Language != "auto" {
		t.Fatalf("unexpected defaults %+v (%v)", opts, err)
	}
	if _, err := (subtitler.SubmissionOptions{Language: "klingon"}).Normalize(); err == nil {
		t.Fatal("expected error for unknown language")
	}
}
