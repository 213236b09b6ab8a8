package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"subpilot/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func serviceConfig(url string) *config.Config {
	cfg := config.Default()
	cfg.Service.BaseURL = url
	return &cfg
}

func TestCheckService_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/system-info" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"cuda_available":true,"device":"cuda","gpu_name":"RTX 4090","whisper_models":{"base":{},"small":{}},"supported_languages":{"auto":"Auto","en":"English","de":"German"}}`))
	}))
	defer srv.Close()

	result := CheckService(context.Background(), serviceConfig(srv.URL))
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "RTX 4090") || !strings.Contains(result.Detail, "2 models") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckService_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	result := CheckService(context.Background(), serviceConfig(srv.URL))
	if result.Passed {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Detail, "system-info endpoint missing") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckService_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	result := CheckService(context.Background(), serviceConfig(url))
	if result.Passed {
		t.Fatal("expected failure for closed server")
	}
}

func TestRunAllSkipsUnsetOutputAndFlagsFailures(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	cfg := serviceConfig(srv.URL)
	cfg.Paths.LogDir = t.TempDir()
	results := RunAll(context.Background(), cfg)
	if len(results) != 3 {
		t.Fatalf("expected service, log dir and notifications checks, got %+v", results)
	}
	if results[2].Name != "Notifications" || results[2].Detail != "Disabled" {
		t.Fatalf("unexpected notifications result %+v", results[2])
	}
	if !Failed(results) {
		t.Fatal("service failure should fail the run")
	}
	if Failed(results[1:]) {
		t.Fatal("optional disabled notifications must not fail the run")
	}
}
