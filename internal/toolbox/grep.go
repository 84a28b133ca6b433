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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	apperrors "ox/internal/errors"
	"ox/internal/paths"
)

// grepTarget is one file to search, or the error line standing in for an
// input that produced no file.
type grepTarget struct {
	display  string
	resolved string
	errLine  string
}

// Grep searches files for pattern, a POSIX basic regular expression. Each
// entry of paths is a file or, when it contains '*', '?' or '[', a glob
// expanded against the root. Matches print as "path:line:text", context
// lines as "path-line-text", and disjoint groups are separated by "--".
// Output is bounded by the configured maximum.
func (t *Toolbox) Grep(ctx context.Context, pattern string, inputs []string) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	if len(inputs) == 0 {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "No file paths specified.")
	}
	t.log.Debug().Str("op", "grep").Str("pattern", pattern).Strs("paths", inputs).Msg("executing")

	re, err := compileBasicRegexp(pattern)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidArgument, fmt.Sprintf("Invalid pattern '%s'", pattern), err)
	}

	targets := t.collectGrepTargets(inputs)
	out := newBoundedLines(t.cfg.MaxOutput)
	var errLines []string
	matchedAny := false
	groupOpen := false

	for _, target := range targets {
		if err := ensureContext(ctx); err != nil {
			return "", err
		}
		if target.errLine != "" {
			errLines = append(errLines, target.errLine)
			out.add(target.errLine)
			continue
		}
		lines, matched, err := t.grepFile(ctx, re, target)
		if err != nil {
			line := Render("", err)
			errLines = append(errLines, line)
			out.add(line)
			continue
		}
		if !matched {
			continue
		}
		matchedAny = true
		if groupOpen && t.cfg.GrepContext > 0 {
			out.add("--")
		}
		for _, line := range lines {
			out.add(line)
		}
		groupOpen = true
		if out.full() {
			break
		}
	}

	if !matchedAny {
		msg := fmt.Sprintf("No matches found for pattern '%s'", pattern)
		if len(errLines) > 0 {
			msg = strings.Join(errLines, "\n") + "\n" + msg
		}
		result, _ := Truncate(msg, t.cfg.MaxOutput)
		return result, nil
	}

	result, truncated := Truncate(out.String(), t.cfg.MaxOutput)
	t.log.Debug().Str("op", "grep").Bool("truncated", truncated).Msg("done")
	return result, nil
}

func (t *Toolbox) collectGrepTargets(inputs []string) []grepTarget {
	targets := make([]grepTarget, 0, len(inputs))
	for _, input := range inputs {
		if hasGlobMeta(input) {
			matches, err := t.expandGlob(input)
			if err != nil {
				targets = append(targets, grepTarget{errLine: Render("", err)})
				continue
			}
			if len(matches) == 0 {
				targets = append(targets, grepTarget{
					errLine: fmt.Sprintf("Error: Pattern '%s' did not match any files.", input),
				})
				continue
			}
			for _, match := range matches {
				targets = append(targets, grepTarget{display: paths.Display(t.root, match), resolved: match})
			}
			continue
		}

		resolved, err := t.resolve(input)
		if err != nil {
			targets = append(targets, grepTarget{errLine: Render("", err)})
			continue
		}
		info, err := os.Stat(resolved)
		if err != nil {
			targets = append(targets, grepTarget{errLine: Render("", statError(input, err))})
			continue
		}
		if !info.Mode().IsRegular() {
			targets = append(targets, grepTarget{
				errLine: fmt.Sprintf("Error: Path '%s' is not a file.", input),
			})
			continue
		}
		targets = append(targets, grepTarget{display: paths.Display(t.root, resolved), resolved: resolved})
	}
	return targets
}

func hasGlobMeta(path string) bool {
	return strings.ContainsAny(path, "*?[")
}

// expandGlob expands a glob relative to the root and keeps the regular
// files that resolve inside it.
func (t *Toolbox) expandGlob(input string) ([]string, error) {
	if err := paths.ValidatePathString(input, paths.MaxPathLength); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidPath, fmt.Sprintf("Could not resolve path '%s'", input), err)
	}
	pattern := input
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(t.root, pattern)
	}
	pattern = filepath.Clean(pattern)

	candidates, err := filepath.Glob(pattern)
	if err != nil {
		if errors.Is(err, filepath.ErrBadPattern) {
			return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "Malformed glob pattern '%s'.", input)
		}
		return nil, apperrors.Wrap(apperrors.CodeToolExecution, fmt.Sprintf("Could not expand '%s'", input), err)
	}

	seen := make(map[string]bool, len(candidates))
	matches := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		resolved, err := paths.Resolve(t.root, candidate)
		if err != nil {
			t.log.Debug().Str("glob", input).Str("match", candidate).Msg("dropping match outside root")
			continue
		}
		info, err := os.Stat(resolved)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if seen[resolved] {
			continue
		}
		seen[resolved] = true
		matches = append(matches, resolved)
	}
	return matches, nil
}

// grepFile returns the formatted output lines for one file and whether any
// line matched.
func (t *Toolbox) grepFile(ctx context.Context, re *regexp.Regexp, target grepTarget) ([]string, bool, error) {
	data, err := t.readRegularFile(ctx, target.display, target.resolved)
	if err != nil {
		return nil, false, err
	}
	if looksBinary(data) {
		if re.Match(data) {
			return []string{fmt.Sprintf("Binary file %s matches", target.display)}, true, nil
		}
		return nil, false, nil
	}
	text, err := decodeText(data)
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeDecodeFailure,
			fmt.Sprintf("Could not decode file '%s' with UTF-8 or latin-1", target.display), err)
	}

	lines := splitLines(text)
	isMatch := make([]bool, len(lines))
	var matchIdx []int
	for i, line := range lines {
		if re.MatchString(line) {
			isMatch[i] = true
			matchIdx = append(matchIdx, i)
		}
	}
	if len(matchIdx) == 0 {
		return nil, false, nil
	}

	return formatGrepGroups(target.display, lines, isMatch, matchIdx, t.cfg.GrepContext), true, nil
}

// formatGrepGroups renders matches with context, merging overlapping or
// adjacent windows and separating disjoint ones with "--".
func formatGrepGroups(display string, lines []string, isMatch []bool, matchIdx []int, ctxLines int) []string {
	var out []string
	last := -1
	for _, m := range matchIdx {
		from := max(0, m-ctxLines)
		to := min(len(lines)-1, m+ctxLines)
		if last >= 0 && from > last+1 && ctxLines > 0 {
			out = append(out, "--")
		}
		if from <= last {
			from = last + 1
		}
		for k := from; k <= to; k++ {
			sep := "-"
			if isMatch[k] {
				sep = ":"
			}
			out = append(out, display+sep+strconv.Itoa(k+1)+sep+lines[k])
		}
		if to > last {
			last = to
		}
	}
	return out
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// boundedLines accumulates newline-joined output and stops accepting lines
// once the character budget is exceeded; the caller truncates the result.
type boundedLines struct {
	b     strings.Builder
	runes int
	limit int
	count int
}

func newBoundedLines(limit int) *boundedLines {
	return &boundedLines{limit: limit}
}

func (l *boundedLines) add(line string) {
	if l.full() {
		return
	}
	if l.count > 0 {
		l.b.WriteByte('\n')
		l.runes++
	}
	l.b.WriteString(line)
	l.runes += utf8.RuneCountInString(line)
	l.count++
}

func (l *boundedLines) full() bool {
	return l.limit > 0 && l.runes > l.limit
}

func (l *boundedLines) String() string {
	return l.b.String()
}
