package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wailsapp/mimetype"
	"golang.org/x/sys/unix"
)

// FromPath builds a Candidate from a file on disk. The MIME type is sniffed
// from content; a sniff failure leaves it empty so the extension decides.
func FromPath(path string) (Candidate, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Candidate{}, fmt.Errorf("resolve %q: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Candidate{}, fmt.Errorf("stat %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return Candidate{}, fmt.Errorf("%q is not a regular file", path)
	}
	if err := unix.Access(abs, unix.R_OK); err != nil {
		return Candidate{}, fmt.Errorf("%q is not readable: %w", path, err)
	}

	candidate := Candidate{
		Name: filepath.Base(abs),
		Path: abs,
		Size: info.Size(),
	}
	if detected, err := mimetype.DetectFile(abs); err == nil && detected != nil {
		candidate.MIMEType = detected.String()
	}
	return candidate, nil
}

// FromPaths builds candidates for every path and joins any per-path errors.
func FromPaths(paths []string) ([]Candidate, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}
	candidates := make([]Candidate, 0, len(paths))
	var errs []error
	for _, path := range paths {
		c, err := FromPath(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		candidates = append(candidates, c)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return candidates, nil
}
