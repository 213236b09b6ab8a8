package logging

import "math"

// ProgressSampler thins progress logging to one line per bucket of percent
// per session. A new session id always logs.
type ProgressSampler struct {
	bucketSize float64
	session    string
	bucket     int
}

// NewProgressSampler returns a sampler with the given bucket width in percent
// points; non-positive widths mean 5.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, bucket: -1}
}

// ShouldLog reports whether progress at percent for sessionID is worth a log
// line. Percent is expected in [0,100]; values outside are clamped.
func (s *ProgressSampler) ShouldLog(percent float64, sessionID string) bool {
	if s == nil {
		return true
	}
	fresh := sessionID != s.session
	if fresh {
		s.session = sessionID
		s.bucket = -1
	}
	bucket := int(math.Floor(math.Min(math.Max(percent, 0), 100) / s.bucketSize))
	if bucket <= s.bucket {
		return fresh
	}
	s.bucket = bucket
	return true
}

// Reset forgets the current session.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.session = ""
	s.bucket = -1
}
