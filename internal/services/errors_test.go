package services_test

import (
	"errors"
	"strings"
	"testing"

	"subpilot/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransport, "submit", "upload", "request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"submit", "upload", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutDetailOrMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrProcessing) {
		t.Fatalf("expected processing marker by default, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestKindMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrValidation, "select", "", "too large", nil), "validation"},
		{services.Wrap(services.ErrSubmission, "submit", "", "rejected", nil), "submission"},
		{services.Wrap(services.ErrTransport, "submit", "", "", errors.New("dial")), "transport"},
		{services.Wrap(services.ErrTimeout, "session", "", "", nil), "timeout"},
		{services.Wrap(services.ErrNotFound, "download", "", "", nil), "not_found"},
		{errors.New("plain"), "processing"},
	}
	for _, tc := range tests {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
