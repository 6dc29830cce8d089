// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package destination

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ConfinePath joins root and the relative name and makes sure the result,
// with symlinks resolved, stays underneath root. The name is NFC-normalized
// so one archive name maps to one file on every filesystem.
func ConfinePath(root, name string) (string, error) {
	name = norm.NFC.String(name)
	if strings.Contains(name, "\\") {
		return "", fmt.Errorf("archive name contains backslash: %s", name)
	}
	clean := filepath.Clean(name)
	if clean == "." || filepath.IsAbs(clean) {
		return "", fmt.Errorf("archive name must be a relative file name: %s", name)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive name escapes root: %s", name)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid archive root: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("resolve archive root: %w", err)
	}

	full := filepath.Join(realRoot, clean)
	realDir, err := filepath.EvalSymlinks(filepath.Dir(full))
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("resolve archive directory: %w", err)
		}
		// Directories are created later; nothing to resolve yet.
		realDir = filepath.Dir(full)
	}
	resolved := filepath.Join(realDir, filepath.Base(full))
	if info, err := os.Lstat(resolved); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", fmt.Errorf("archive path is a symlink: %s", resolved)
	}

	rel, err := filepath.Rel(realRoot, resolved)
	if err != nil {
		return "", fmt.Errorf("archive path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive path escapes root via symlinks: %s", resolved)
	}
	return resolved, nil
}
