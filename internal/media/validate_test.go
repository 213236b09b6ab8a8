package media_test

import (
	"errors"
	"testing"

	"subpilot/internal/media"
	"subpilot/internal/services"
)

func TestValidateAcceptsByMIMEOrExtension(t *testing.T) {
	v := media.NewValidator(media.DefaultLimits())

	tests := []struct {
		name      string
		candidate media.Candidate
	}{
		{"mime and extension", media.Candidate{Name: "talk.mp4", Size: 10, MIMEType: "video/mp4"}},
		{"mime only", media.Candidate{Name: "talk.bin", Size: 10, MIMEType: "audio/mpeg"}},
		{"extension only", media.Candidate{Name: "talk.MKV", Size: 10}},
		{"mime with parameters", media.Candidate{Name: "clip", Size: 10, MIMEType: "Audio/Ogg; codecs=opus"}},
		{"exactly max size", media.Candidate{Name: "big.wav", Size: 5 << 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := v.Validate(tt.candidate); err != nil {
				t.Fatalf("Validate returned %v", err)
			}
		})
	}
}

func TestValidateRejections(t *testing.T) {
	v := media.NewValidator(media.DefaultLimits())

	tests := []struct {
		name      string
		candidate media.Candidate
		reason    media.Reason
	}{
		{"unsupported", media.Candidate{Name: "notes.txt", Size: 10, MIMEType: "text/plain"}, media.ReasonUnsupportedType},
		{"no extension no mime", media.Candidate{Name: "README", Size: 10}, media.ReasonUnsupportedType},
		{"too large", media.Candidate{Name: "huge.mp4", Size: 5<<30 + 1, MIMEType: "video/mp4"}, media.ReasonTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.candidate)
			var rejection *media.Rejection
			if !errors.As(err, &rejection) {
				t.Fatalf("expected *Rejection, got %v", err)
			}
			if rejection.Reason != tt.reason {
				t.Fatalf("reason = %q, want %q", rejection.Reason, tt.reason)
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("rejection should unwrap to ErrValidation")
			}
			if rejection.Message == "" {
				t.Fatal("expected a user-facing message")
			}
		})
	}
}

func TestValidatorCustomLimits(t *testing.T) {
	v := media.NewValidator(media.Limits{MaxBytes: 100, Extensions: []string{"OPUS"}})
	if err := v.Validate(media.Candidate{Name: "a.opus", Size: 100}); err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
	if err := v.Validate(media.Candidate{Name: "a.mp4", Size: 1, MIMEType: "video/mp4"}); err == nil {
		t.Fatal("expected mp4 to be rejected under custom allow-list")
	}
	if err := v.Validate(media.Candidate{Name: "a.opus", Size: 101}); err == nil {
		t.Fatal("expected size rejection")
	}
}

func TestNewValidatorDefaultsMaxBytes(t *testing.T) {
	v := media.NewValidator(media.Limits{})
	if got := v.MaxBytes(); got != 5<<30 {
		t.Fatalf("MaxBytes = %d, want %d", got, int64(5<<30))
	}
}

func TestPartitionPreservesOrder(t *testing.T) {
	v := media.NewValidator(media.DefaultLimits())
	candidates := []media.Candidate{
		{Name: "a.mp4", Size: 1},
		{Name: "b.txt", Size: 1},
		{Name: "c.mp3", Size: 1},
		{Name: "d.exe", Size: 1},
		{Name: "e.wav", Size: 1},
	}
	accepted, rejected := v.Partition(candidates)
	if len(accepted) != 3 || accepted[0].Name != "a.mp4" || accepted[1].Name != "c.mp3" || accepted[2].Name != "e.wav" {
		t.Fatalf("unexpected accepted order: %+v", accepted)
	}
	if len(rejected) != 2 || rejected[0].Candidate.Name != "b.txt" || rejected[1].Candidate.Name != "d.exe" {
		t.Fatalf("unexpected rejections: %+v", rejected)
	}
}

func TestCandidateExtensionFallsBackToPath(t *testing.T) {
	c := media.Candidate{Path: "/tmp/Show.S01E01.MKV"}
	if got := c.Extension(); got != ".mkv" {
		t.Fatalf("Extension = %q", got)
	}
	if got := c.DisplayName(); got != "Show.S01E01.MKV" {
		t.Fatalf("DisplayName = %q", got)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		512:      "512 B",
		1536:     "1.5 KiB",
		5 << 30:  "5.0 GiB",
		20 << 20: "20 MiB",
	}
	for in, want := range tests {
		if got := media.FormatBytes(in); got != want {
			t.Fatalf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestErrNoFilesIsValidation(t *testing.T) {
	if !errors.Is(media.ErrNoFiles, services.ErrValidation) {
		t.Fatal("ErrNoFiles should be a validation error")
	}
}
