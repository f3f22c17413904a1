// Package security guards the paths the harness writes to: mirrored output
// trees, reports and exports.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a path resolves outside its allowed root.
var ErrPathEscape = errors.New("path escapes its root")

// canonicalPath resolves symlinks in path. When path does not exist yet,
// the nearest existing ancestor is resolved and the remainder re-joined, so
// a new file below a symlinked directory still resolves to the link target.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rest), nil
		}
		if dir == filepath.Dir(dir) {
			return abs, nil
		}
	}
}

// ValidatePathWithinDirectory checks that filePath, after resolving ".."
// and symlinks, stays inside safeDir. safeDir must exist.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	target, err := canonicalPath(filePath)
	if err != nil {
		return err
	}
	absRoot, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory path: %w", err)
	}
	root, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(root, target)
	if err != nil || !filepath.IsLocal(rel) && rel != "." {
		return fmt.Errorf("%w: %s is outside %s", ErrPathEscape, filePath, safeDir)
	}
	return nil
}

// MirrorPath maps a dataset-relative path into outRoot, replacing its
// extension with ext (pass "" to keep it). rel must be a local path: no
// absolute paths and no ".." that climbs out of the tree. The check is
// lexical so it also holds for in-memory filesystems.
func MirrorPath(outRoot, rel, ext string) (string, error) {
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q is not a local path", ErrPathEscape, rel)
	}
	if ext != "" {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + ext
	}
	return filepath.Join(outRoot, rel), nil
}

// SafeMirrorPath is MirrorPath followed by a symlink-aware check that the
// result stays inside outRoot on disk.
func SafeMirrorPath(outRoot, rel, ext string) (string, error) {
	path, err := MirrorPath(outRoot, rel, ext)
	if err != nil {
		return "", err
	}
	if err := ValidatePathWithinDirectory(path, outRoot); err != nil {
		return "", err
	}
	return path, nil
}
