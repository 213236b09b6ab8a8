package subtitler

import (
	"strings"

	"subpilot/internal/language"
)

// Whisper model sizes accepted by the service.
var Models = []string{"tiny", "base", "small", "medium", "large"}

// SubmissionOptions is the per-upload processing configuration.
type SubmissionOptions struct {
	Model    string `json:"model" yaml:"model"`
	Language string `json:"language" yaml:"language"`
	VAD      bool   `json:"vad" yaml:"vad"`
	Enhance  bool   `json:"enhance" yaml:"enhance"`
}

// DefaultSubmissionOptions mirrors the service defaults.
func DefaultSubmissionOptions() SubmissionOptions {
	return SubmissionOptions{Model: "base", Language: language.Auto, VAD: true}
}

// Normalize lower-cases the model and canonicalizes the language. Unknown
// languages are reported as an error rather than silently sent.
func (o SubmissionOptions) Normalize() (SubmissionOptions, error) {
	o.Model = strings.ToLower(strings.TrimSpace(o.Model))
	if o.Model == "" {
		o.Model = DefaultSubmissionOptions().Model
	}
	lang, err := language.NormalizeOption(o.Language)
	if err != nil {
		return o, err
	}
	o.Language = lang
	return o, nil
}

func formBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
