// Package manifest loads YAML batch manifests: a shared set of submission
// options plus the list of files to upload in order.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"subpilot/internal/services"
	"subpilot/internal/services/subtitler"
)

// Manifest is the decoded document.
type Manifest struct {
	Options Options  `yaml:"options"`
	Files   []string `yaml:"files"`
}

// Options holds the manifest's option overrides; nil fields are unset.
type Options struct {
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	VAD      *bool  `yaml:"vad"`
	Enhance  *bool  `yaml:"enhance"`
}

// Load reads and validates a manifest. Relative file entries resolve
// against the manifest's own directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "read", "Unable to read manifest", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}
	return Parse(data, filepath.Dir(abs))
}

// Parse decodes data and resolves relative paths against baseDir.
func Parse(data []byte, baseDir string) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, services.Wrap(services.ErrValidation, "manifest", "parse", "Manifest is empty", nil)
		}
		return nil, services.Wrap(services.ErrValidation, "manifest", "parse", "Invalid manifest", err)
	}

	files := make([]string, 0, len(m.Files))
	for i, entry := range m.Files {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			return nil, services.Wrap(services.ErrValidation, "manifest", "parse",
				fmt.Sprintf("Manifest entry %d is empty", i+1), nil)
		}
		if !filepath.IsAbs(entry) {
			entry = filepath.Join(baseDir, entry)
		}
		files = append(files, filepath.Clean(entry))
	}
	if len(files) == 0 {
		return nil, services.Wrap(services.ErrValidation, "manifest", "parse", "Manifest lists no files", nil)
	}
	m.Files = files
	return &m, nil
}

// SubmissionOptions overlays the manifest's options onto base. Fields absent
// from the manifest keep base's values.
func (m *Manifest) SubmissionOptions(base subtitler.SubmissionOptions) subtitler.SubmissionOptions {
	if m == nil {
		return base
	}
	out := base
	if m.Options.Model != "" {
		out.Model = m.Options.Model
	}
	if m.Options.Language != "" {
		out.Language = m.Options.Language
	}
	if m.Options.VAD != nil {
		out.VAD = *m.Options.VAD
	}
	if m.Options.Enhance != nil {
		out.Enhance = *m.Options.Enhance
	}
	return out
}
