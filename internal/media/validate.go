package media

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"subpilot/internal/services"
)

// ErrNoFiles reports an empty selection.
var ErrNoFiles = fmt.Errorf("%w: no files selected", services.ErrValidation)

// Reason classifies why a candidate was rejected.
type Reason string

const (
	ReasonUnsupportedType Reason = "unsupported_type"
	ReasonTooLarge        Reason = "too_large"
)

// Rejection describes one rejected candidate. It unwraps to services.ErrValidation.
type Rejection struct {
	Candidate Candidate
	Reason    Reason
	Message   string
}

func (r *Rejection) Error() string {
	return r.Message
}

func (r *Rejection) Unwrap() error {
	return services.ErrValidation
}

const gib = 1 << 30

// Limits bounds which candidates are accepted.
type Limits struct {
	MaxBytes   int64
	MIMETypes  []string
	Extensions []string
}

// DefaultLimits returns a 5 GiB ceiling and the audio/video containers the
// service can extract speech from.
func DefaultLimits() Limits {
	return Limits{
		MaxBytes: 5 * gib,
		MIMETypes: []string{
			"video/mp4", "video/avi", "video/quicktime", "video/x-msvideo", "video/x-matroska",
			"audio/mpeg", "audio/wav", "audio/x-wav", "audio/mp4", "audio/flac", "audio/ogg",
		},
		Extensions: []string{".mp4", ".avi", ".mov", ".mkv", ".mp3", ".wav", ".m4a", ".flac", ".ogg"},
	}
}

// Validator classifies candidates against Limits.
type Validator struct {
	maxBytes   int64
	mimeTypes  map[string]struct{}
	extensions map[string]struct{}
}

// NewValidator builds a validator. A non-positive MaxBytes falls back to the default.
func NewValidator(limits Limits) *Validator {
	v := &Validator{
		maxBytes:   limits.MaxBytes,
		mimeTypes:  make(map[string]struct{}, len(limits.MIMETypes)),
		extensions: make(map[string]struct{}, len(limits.Extensions)),
	}
	if v.maxBytes <= 0 {
		v.maxBytes = DefaultLimits().MaxBytes
	}
	for _, mime := range limits.MIMETypes {
		if mime = normalizeMIME(mime); mime != "" {
			v.mimeTypes[mime] = struct{}{}
		}
	}
	for _, ext := range limits.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		v.extensions[ext] = struct{}{}
	}
	return v
}

// MaxBytes reports the effective size ceiling.
func (v *Validator) MaxBytes() int64 {
	return v.maxBytes
}

// Validate returns nil when the candidate is accepted, or a *Rejection.
// Either a matching MIME type or a matching extension is sufficient.
func (v *Validator) Validate(c Candidate) error {
	_, mimeOK := v.mimeTypes[normalizeMIME(c.MIMEType)]
	_, extOK := v.extensions[c.Extension()]
	if !mimeOK && !extOK {
		return &Rejection{
			Candidate: c,
			Reason:    ReasonUnsupportedType,
			Message:   fmt.Sprintf("unsupported file type: %s", c.DisplayName()),
		}
	}
	if c.Size > v.maxBytes {
		return &Rejection{
			Candidate: c,
			Reason:    ReasonTooLarge,
			Message:   fmt.Sprintf("file %q is too large (%s); maximum size is %s", c.DisplayName(), FormatBytes(c.Size), FormatBytes(v.maxBytes)),
		}
	}
	return nil
}

// Partition splits candidates into accepted and rejected, preserving arrival order.
func (v *Validator) Partition(candidates []Candidate) ([]Candidate, []*Rejection) {
	accepted := make([]Candidate, 0, len(candidates))
	var rejected []*Rejection
	for _, c := range candidates {
		err := v.Validate(c)
		if err == nil {
			accepted = append(accepted, c)
			continue
		}
		rejection, ok := err.(*Rejection)
		if !ok {
			rejection = &Rejection{Candidate: c, Reason: ReasonUnsupportedType, Message: err.Error()}
		}
		rejected = append(rejected, rejection)
	}
	return accepted, rejected
}

// FormatBytes renders a byte count with a binary unit, e.g. "5.0 GiB".
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func normalizeMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime
}
