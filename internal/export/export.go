// Package export writes a ready session's subtitle formats to disk.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"subpilot/internal/fileutil"
	"subpilot/internal/projector"
)

const fallbackStem = "subtitles"

// Stem derives the output basename from the service-reported filename.
func Stem(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "." || base == string(filepath.Separator) {
		return fallbackStem
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = fileutil.SanitizeFileName(stem)
	if stem == "" {
		return fallbackStem
	}
	return stem
}

// Written records one exported file.
type Written struct {
	Format string
	Path   string
}

// Write stores each requested format as <dir>/<stem>.<format>. An empty
// formats list exports everything the result offers; formats the result does
// not contain are skipped.
func Write(dir, stem string, view projector.Projector, formats []string) ([]Written, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("export: output directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: create %s: %w", dir, err)
	}
	if stem = fileutil.SanitizeFileName(stem); stem == "" {
		stem = fallbackStem
	}
	if len(formats) == 0 {
		formats = view.AvailableFormats()
	}

	var written []Written
	for _, format := range formats {
		format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
		text, ok := view.Content(format)
		if !ok {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s.%s", stem, format))
		if err := fileutil.WriteFileAtomic(path, []byte(text), 0o644); err != nil {
			return written, fmt.Errorf("export %s: %w", format, err)
		}
		written = append(written, Written{Format: format, Path: path})
	}
	return written, nil
}
