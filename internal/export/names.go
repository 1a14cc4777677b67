package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrOutputDir is wrapped by every ValidateOutputDir failure.
var ErrOutputDir = errors.New("invalid output_dir")

// SanitizeName makes s safe as a file stem. Control characters are dropped,
// anything outside letters, digits and " -_.,()" becomes '_', and the result
// is trimmed and cut to maxLen runes (no limit when maxLen <= 0).
func SanitizeName(s string, maxLen int) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case unicode.IsLetter(r), unicode.IsDigit(r), strings.ContainsRune(" -_.,()", r):
			return r
		default:
			return '_'
		}
	}, s)

	mapped = strings.TrimSpace(mapped)
	if maxLen > 0 {
		if runes := []rune(mapped); len(runes) > maxLen {
			mapped = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return mapped
}

// ValidateOutputDir accepts an existing, clean directory path with no ".."
// segments.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: output_dir is required", ErrOutputDir)
	}
	if hasParentSegment(dir) {
		return fmt.Errorf("%w: output_dir cannot contain path traversal", ErrOutputDir)
	}
	if filepath.Clean(dir) != dir {
		return fmt.Errorf("%w: output_dir must be a clean path", ErrOutputDir)
	}

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%w: output_dir does not exist", ErrOutputDir)
	case err != nil:
		return fmt.Errorf("%w: %v", ErrOutputDir, err)
	case !info.IsDir():
		return fmt.Errorf("%w: output_dir is not a directory", ErrOutputDir)
	}
	return nil
}

func hasParentSegment(p string) bool {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
