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

package toolbox

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	apperrors "ox/internal/errors"
)

// Find lists every file and directory below path whose name contains
// pattern, ignoring case. Results are relative to path and sorted.
func (t *Toolbox) Find(ctx context.Context, path, pattern string) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	path = defaultPath(path)
	t.log.Debug().Str("op", "find").Str("path", path).Str("pattern", pattern).Msg("executing")

	resolved, err := t.statDir(path)
	if err != nil {
		return "", err
	}

	var matches []string
	limited := false
	if t.cfg.FindBackend == BackendExternal {
		matches, err = t.findExternal(ctx, resolved, pattern)
		if apperrors.HasCode(err, apperrors.CodeToolUnavailable) {
			t.log.Debug().Msg("find binary unavailable, walking in-process")
			matches, limited, err = t.findNative(ctx, resolved, pattern)
		}
	} else {
		matches, limited, err = t.findNative(ctx, resolved, pattern)
	}
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No entries matching '%s' found in '%s'.", pattern, path), nil
	}

	sort.Strings(matches)
	out := strings.Join(matches, "\n")
	if limited {
		out += TruncationMarker
	}
	out, _ = Truncate(out, t.cfg.MaxOutput)
	return out, nil
}

func (t *Toolbox) findNative(ctx context.Context, dir, pattern string) ([]string, bool, error) {
	needle := strings.ToLower(pattern)
	limit := t.cfg.Limits.MaxDirectoryEntries
	maxDepth := t.cfg.Limits.MaxDirectoryDepth
	var matches []string
	limited := false

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ensureContext(ctx); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == dir {
				return err
			}
			t.log.Debug().Str("path", path).Err(err).Msg("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if strings.Contains(strings.ToLower(d.Name()), needle) {
			matches = append(matches, filepath.ToSlash(rel))
			if len(matches) >= limit {
				limited = true
				return filepath.SkipAll
			}
		}
		if d.IsDir() && depthOf(rel) >= maxDepth {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeToolExecution, "Could not search directory", err)
	}
	return matches, limited, nil
}

// findExternal runs the host find with the directory as working directory,
// so emitted paths are relative to it.
func (t *Toolbox) findExternal(ctx context.Context, dir, pattern string) ([]string, error) {
	out, err := t.runExternal(ctx, dir, "find", ".", "-mindepth", "1", "-iname", "*"+escapeFindGlob(pattern)+"*")
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 && len(out.Stdout) == 0 {
		return nil, apperrors.Newf(apperrors.CodeToolExecution,
			"find exited with status %d: %s", out.ExitCode, strings.TrimSpace(string(out.Stderr)))
	}
	lines := nonEmptyLines(out.Stdout)
	matches := make([]string, 0, len(lines))
	for _, line := range lines {
		matches = append(matches, strings.TrimPrefix(line, "./"))
	}
	return matches, nil
}

// escapeFindGlob makes pattern match literally inside a find -iname glob.
func escapeFindGlob(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// depthOf counts the separators in a relative path: "a" is 0, "a/b" is 1.
func depthOf(rel string) int {
	if rel == "." || rel == "" {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/")
}
