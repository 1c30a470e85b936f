package util

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrInvalidFileName is returned for empty names and the "." and ".." entries.
var ErrInvalidFileName = errors.New("invalid file name")

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// SanitizeFileName flattens path separators into "_" so the result is a single
// path element, and rejects names that would still refer to a directory.
func SanitizeFileName(name string) (string, error) {
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	switch s {
	case "", ".", "..":
		return "", ErrInvalidFileName
	}
	return s, nil
}

// Ext returns the lower-cased extension of name, including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// IsImageName reports whether name carries one of the extensions the pipeline processes.
func IsImageName(name string) bool {
	_, ok := imageExtensions[Ext(name)]
	return ok
}
