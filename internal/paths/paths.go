// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "ox/internal/errors"
)

// MaxPathLength bounds raw path input accepted by Resolve.
const MaxPathLength = 4096

// ValidatePathString validates raw path input before resolution.
func ValidatePathString(path string, maxLen int) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.IndexByte(path, 0) != -1 {
		return fmt.Errorf("path contains null byte")
	}
	if !utf8.ValidString(path) {
		return fmt.Errorf("path is not valid UTF-8")
	}
	for _, r := range path {
		if unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) || unicode.Is(unicode.Me, r) {
			return fmt.Errorf("path contains unsupported unicode combining mark")
		}
	}
	if maxLen > 0 {
		if len(path) > maxLen {
			return fmt.Errorf("path exceeds maximum length of %d characters", maxLen)
		}
		if len(filepath.Clean(path)) > maxLen {
			return fmt.Errorf("path exceeds maximum length of %d characters", maxLen)
		}
	}
	return nil
}

// CanonicalRoot turns dir into the absolute, symlink-free directory used as
// a sandbox root.
func CanonicalRoot(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("invalid root directory: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root directory: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root %s is not a directory", resolved)
	}
	return resolved, nil
}

// Resolve maps input onto an absolute path inside root. Relative input is
// joined to root; absolute input is taken as is. Containment is checked on
// the cleaned, symlink-resolved result, so neither ".." segments nor links
// pointing elsewhere can leave the root. root must come from CanonicalRoot.
//
// A path whose tail does not exist yet resolves to its lexical form under
// the deepest existing ancestor; callers report NotFound from their own stat.
func Resolve(root, input string) (string, error) {
	if err := ValidatePathString(input, MaxPathLength); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidPath,
			fmt.Sprintf("Could not resolve path '%s'", input), err)
	}

	candidate := input
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	candidate = filepath.Clean(candidate)

	resolved, err := ResolveSymlinkedPath(candidate)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidPath,
			fmt.Sprintf("Could not resolve path '%s'", input), err)
	}
	if !HasPathPrefix(resolved, root) {
		return "", apperrors.Newf(apperrors.CodeOutsideRoot,
			"Access denied. Path '%s' is outside the allowed directory.", input)
	}
	return resolved, nil
}

// ResolveSymlinkedPath evaluates symlinks on the longest existing prefix of
// path and re-appends the missing tail.
func ResolveSymlinkedPath(path string) (string, error) {
	existing := path
	var tail []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to stat path: %w", err)
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return path, nil
		}
		tail = append(tail, filepath.Base(existing))
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	for i := len(tail) - 1; i >= 0; i-- {
		resolved = filepath.Join(resolved, tail[i])
	}
	return resolved, nil
}

// HasPathPrefix returns true when path is within base.
func HasPathPrefix(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(os.PathSeparator)) && rel != "..")
}

// Display renders an absolute path under root as a slash separated path
// relative to root. The root itself is ".".
func Display(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
