package logging

import "testing"

func TestNewProgressSamplerDefaultsBucket(t *testing.T) {
	for _, size := range []float64{0, -1} {
		if s := NewProgressSampler(size); s.bucketSize != 5 {
			t.Fatalf("NewProgressSampler(%v).bucketSize = %v, want 5", size, s.bucketSize)
		}
	}
	if s := NewProgressSampler(25); s.bucketSize != 25 {
		t.Fatalf("bucketSize = %v, want 25", s.bucketSize)
	}
}

func TestProgressSamplerNilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "1712345678") {
		t.Fatal("nil sampler should always log")
	}
	s.Reset()
}

func TestProgressSamplerServiceMilestones(t *testing.T) {
	s := NewProgressSampler(5)
	steps := []struct {
		percent float64
		want    bool
	}{
		{5, true},
		{5, false},
		{15, true},
		{17, false},
		{40, true},
		{80, true},
		{100, true},
		{105, false},
	}
	for _, step := range steps {
		if got := s.ShouldLog(step.percent, "1712345678"); got != step.want {
			t.Fatalf("ShouldLog(%v) = %v, want %v", step.percent, got, step.want)
		}
	}
}

func TestProgressSamplerNewSessionLogs(t *testing.T) {
	s := NewProgressSampler(25)
	s.ShouldLog(80, "first")

	if !s.ShouldLog(5, "second") {
		t.Fatal("new session should log")
	}
	if s.ShouldLog(10, "second") {
		t.Fatal("same bucket of the new session should not log")
	}
	if !s.ShouldLog(30, "second") {
		t.Fatal("next bucket should log")
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(50, "abc")
	s.Reset()

	if s.session != "" || s.bucket != -1 {
		t.Fatalf("state after reset = %q/%d", s.session, s.bucket)
	}
	if !s.ShouldLog(50, "abc") {
		t.Fatal("should log after reset")
	}
}
