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
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "ox/internal/errors"
)

// EmptyDirectoryMessage is returned by List for a directory with no entries.
const EmptyDirectoryMessage = "Directory is empty."

type dirEntry struct {
	name  string
	isDir bool
}

// List returns the immediate children of path, directories first and then
// by case-insensitive name, one per line. Directories carry a trailing "/".
func (t *Toolbox) List(ctx context.Context, path string) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	path = defaultPath(path)
	t.log.Debug().Str("op", "ls").Str("path", path).Msg("executing")

	resolved, err := t.statDir(path)
	if err != nil {
		return "", err
	}

	entries, err := readDirEntries(resolved)
	if err != nil {
		if os.IsPermission(err) {
			return "", apperrors.Newf(apperrors.CodePermission, "Permission denied to list directory '%s'.", path)
		}
		return "", apperrors.Wrap(apperrors.CodeToolExecution, "Could not list directory '"+path+"'", err)
	}
	if len(entries) == 0 {
		return EmptyDirectoryMessage, nil
	}

	limit := t.cfg.Limits.MaxDirectoryEntries
	truncated := false
	if len(entries) > limit {
		entries = entries[:limit]
		truncated = true
	}

	var b strings.Builder
	for i, entry := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(entry.name)
		if entry.isDir {
			b.WriteByte('/')
		}
	}
	if truncated {
		b.WriteString(TruncationMarker)
	}
	t.log.Debug().Str("op", "ls").Int("entries", len(entries)).Msg("done")
	return b.String(), nil
}

// readDirEntries reads a directory and sorts it directories first, then by
// case-insensitive name. Symlinks are classified by their target.
func readDirEntries(dir string) ([]dirEntry, error) {
	raw, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	entries := make([]dirEntry, 0, len(raw))
	for _, d := range raw {
		isDir := d.IsDir()
		if d.Type()&os.ModeSymlink != 0 {
			if info, err := os.Stat(filepath.Join(dir, d.Name())); err == nil {
				isDir = info.IsDir()
			}
		}
		entries = append(entries, dirEntry{name: d.Name(), isDir: isDir})
	}
	sortDirEntries(entries)
	return entries, nil
}

func sortDirEntries(entries []dirEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].isDir != entries[j].isDir {
			return entries[i].isDir
		}
		li, lj := strings.ToLower(entries[i].name), strings.ToLower(entries[j].name)
		if li != lj {
			return li < lj
		}
		return entries[i].name < entries[j].name
	})
}
