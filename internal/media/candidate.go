package media

import (
	"path/filepath"
	"strings"
)

// Candidate is a file selected for submission, prior to validation.
type Candidate struct {
	Name     string
	Path     string
	Size     int64
	MIMEType string
}

// Extension returns the lower-cased extension including the leading dot.
func (c Candidate) Extension() string {
	name := c.Name
	if name == "" {
		name = filepath.Base(c.Path)
	}
	return strings.ToLower(filepath.Ext(name))
}

// DisplayName returns the name shown to users and sent as the upload filename.
func (c Candidate) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Path != "" {
		return filepath.Base(c.Path)
	}
	return "unnamed"
}
