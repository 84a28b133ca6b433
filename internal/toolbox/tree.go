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
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	apperrors "ox/internal/errors"
)

// TreeUnavailableMessage is returned when the external tree renderer is
// selected but missing from the host.
const TreeUnavailableMessage = "The 'tree' command is not available on this system."

// Tree connectors. Every nesting level adds exactly one four-character unit.
const (
	treeBranch = "├── "
	treeLast   = "└── "
	treePipe   = "│   "
	treeBlank  = "    "
)

// TreeOptions bounds a tree rendering.
type TreeOptions struct {
	// MaxDepth counts the starting directory as level one: entries up to
	// MaxDepth-1 levels below it are shown.
	MaxDepth     int
	IncludeFiles bool
	MaxOutput    int
}

// DefaultTreeOptions returns the options used when the caller sets none.
func DefaultTreeOptions() TreeOptions {
	return TreeOptions{MaxDepth: 1, IncludeFiles: false, MaxOutput: defaultMaxOutput}
}

type treeCounts struct {
	dirs  int
	files int
}

func (c treeCounts) String() string {
	return plural(c.dirs, "directory", "directories")
}

func (c treeCounts) withFiles() string {
	return plural(c.dirs, "directory", "directories") + ", " + plural(c.files, "file", "files")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}

// Tree renders the directory hierarchy under path. The first line is path
// itself; each level below it is indented by one connector unit, hidden
// entries are skipped and a count summary closes the output.
func (t *Toolbox) Tree(ctx context.Context, path string, opts TreeOptions) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	path = defaultPath(path)
	if opts.MaxOutput <= 0 {
		opts.MaxOutput = defaultMaxOutput
	}
	t.log.Debug().
		Str("op", "tree").
		Str("path", path).
		Int("max_depth", opts.MaxDepth).
		Bool("include_files", opts.IncludeFiles).
		Msg("executing")

	if opts.MaxDepth < 1 {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "max_depth must be at least 1.")
	}
	resolved, err := t.statDir(path)
	if err != nil {
		return "", err
	}

	var rendered string
	if t.cfg.TreeBackend == BackendExternal {
		rendered, err = t.treeExternal(ctx, path, resolved, opts)
	} else {
		rendered, err = t.treeNative(ctx, path, resolved, opts)
	}
	if err != nil {
		return "", err
	}
	out, _ := Truncate(rendered, opts.MaxOutput)
	return out, nil
}

func (t *Toolbox) treeNative(ctx context.Context, display, dir string, opts TreeOptions) (string, error) {
	var b strings.Builder
	b.WriteString(display)
	counts := treeCounts{}
	budget := opts.MaxOutput
	if err := t.renderLevel(ctx, &b, dir, "", 1, opts, &counts, budget); err != nil {
		return "", err
	}
	b.WriteString("\n\n")
	if opts.IncludeFiles {
		b.WriteString(counts.withFiles())
	} else {
		b.WriteString(counts.String())
	}
	return b.String(), nil
}

// renderLevel writes the children of dir at the given level. Rendering stops
// early once the builder is past the output budget, since the caller
// truncates anyway.
func (t *Toolbox) renderLevel(ctx context.Context, b *strings.Builder, dir, prefix string, level int, opts TreeOptions, counts *treeCounts, budget int) error {
	if level > opts.MaxDepth-1 || level > t.cfg.Limits.MaxDirectoryDepth {
		return nil
	}
	if err := ensureContext(ctx); err != nil {
		return err
	}
	entries, err := readDirEntries(dir)
	if err != nil {
		if level == 1 {
			return apperrors.Wrap(apperrors.CodeToolExecution, "Could not read directory", err)
		}
		t.log.Debug().Str("dir", dir).Err(err).Msg("skipping unreadable directory")
		return nil
	}

	visible := make([]dirEntry, 0, len(entries))
	for _, entry := range entries {
		if isHidden(entry.name) {
			continue
		}
		if !entry.isDir && !opts.IncludeFiles {
			continue
		}
		visible = append(visible, entry)
	}
	sortTreeEntries(visible)

	for i, entry := range visible {
		if b.Len() > budget*4 {
			return nil
		}
		connector, childPrefix := treeBranch, prefix+treePipe
		if i == len(visible)-1 {
			connector, childPrefix = treeLast, prefix+treeBlank
		}
		b.WriteByte('\n')
		b.WriteString(prefix)
		b.WriteString(connector)
		b.WriteString(entry.name)
		if !entry.isDir {
			counts.files++
			continue
		}
		counts.dirs++
		if err := t.renderLevel(ctx, b, filepath.Join(dir, entry.name), childPrefix, level+1, opts, counts, budget); err != nil {
			return err
		}
	}
	return nil
}

// sortTreeEntries orders by case-insensitive name with no directory
// grouping, as tree(1) does.
func sortTreeEntries(entries []dirEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		li, lj := strings.ToLower(entries[i].name), strings.ToLower(entries[j].name)
		if li != lj {
			return li < lj
		}
		return entries[i].name < entries[j].name
	})
}

// treeExternal runs the host tree with the directory as working directory
// and replaces its "." header with the requested path.
func (t *Toolbox) treeExternal(ctx context.Context, display, dir string, opts TreeOptions) (string, error) {
	if _, err := lookPath("tree"); err != nil {
		t.log.Debug().Err(err).Msg("tree binary unavailable")
		return "", apperrors.New(apperrors.CodeToolUnavailable, TreeUnavailableMessage)
	}
	if opts.MaxDepth == 1 {
		counts := treeCounts{}
		if opts.IncludeFiles {
			return display + "\n\n" + counts.withFiles(), nil
		}
		return display + "\n\n" + counts.String(), nil
	}

	args := []string{"-n", "--charset=utf-8", "-L", strconv.Itoa(opts.MaxDepth - 1)}
	if !opts.IncludeFiles {
		args = append(args, "-d")
	}
	args = append(args, ".")
	out, err := t.runExternal(ctx, dir, "tree", args...)
	if err != nil {
		return "", err
	}
	if out.ExitCode != 0 {
		return "", apperrors.Newf(apperrors.CodeToolExecution,
			"tree exited with status %d: %s", out.ExitCode, strings.TrimSpace(string(out.Stderr)))
	}
	text := strings.TrimRight(string(out.Stdout), "\n")
	if rest, ok := strings.CutPrefix(text, "."); ok {
		text = display + rest
	}
	return text, nil
}
