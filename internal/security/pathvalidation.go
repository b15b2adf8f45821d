// Package security guards the file paths the service reads and writes: output
// names derived from scene identifiers, and run artefacts served over HTTP.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a path resolves outside every allowed root.
var ErrOutsideRoot = errors.New("path outside allowed directories")

// canonical returns the absolute, symlink-free form of path. For a path that
// does not exist yet, the deepest existing ancestor is resolved and the
// remaining components are appended, so a symlinked parent cannot smuggle a
// new file outside the root.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rest), nil
		}
		if filepath.Dir(dir) == dir {
			return abs, nil
		}
	}
}

// ValidatePathWithinDirectory checks that path stays inside root after
// cleaning and symlink resolution. root must exist.
func ValidatePathWithinDirectory(path, root string) error {
	p, err := canonical(path)
	if err != nil {
		return err
	}
	r, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("resolve root %s: %w", root, err)
	}
	if r, err = filepath.Abs(r); err != nil {
		return fmt.Errorf("resolve root %s: %w", root, err)
	}
	rel, err := filepath.Rel(r, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%s escapes %s: %w", path, root, ErrOutsideRoot)
	}
	return nil
}

// ValidatePathWithinAllowedDirs accepts path if it is inside any of roots.
func ValidatePathWithinAllowedDirs(path string, roots []string) error {
	if len(roots) == 0 {
		return fmt.Errorf("no allowed directories: %w", ErrOutsideRoot)
	}
	for _, root := range roots {
		if ValidatePathWithinDirectory(path, root) == nil {
			return nil
		}
	}
	return fmt.Errorf("%s is not within %v: %w", path, roots, ErrOutsideRoot)
}

// SanitizeFilename turns an arbitrary identifier (a scene directory name, a
// tile id) into a safe file name component. Runs of characters other than
// ASCII letters, digits, dot, underscore and dash collapse to one underscore;
// the result is capped at 128 bytes and never empty.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'), r == '.', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
