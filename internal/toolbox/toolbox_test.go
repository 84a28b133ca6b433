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
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ox/internal/errors"
)

func newTestToolbox(t *testing.T, cfg Config) *Toolbox {
	t.Helper()
	tb, err := New(t.TempDir(), cfg)
	require.NoError(t, err)
	return tb
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func mkdir(t *testing.T, root, rel string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(rel)), 0o755))
}

func TestNewRejectsMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"), DefaultConfig())
	require.Error(t, err)
}

func TestNewNormalizesConfig(t *testing.T) {
	tb := newTestToolbox(t, Config{FindBackend: "bogus"})
	cfg := tb.Config()
	assert.Equal(t, BackendNative, cfg.FindBackend)
	assert.Equal(t, BackendNative, cfg.TreeBackend)
	assert.Equal(t, defaultMaxOutput, cfg.MaxOutput)
	assert.Equal(t, DefaultLimits(), cfg.Limits)
	assert.True(t, filepath.IsAbs(tb.Root()))
}

func TestListSortsDirectoriesFirst(t *testing.T) {
	tb := newTestToolbox(t, DefaultConfig())
	root := tb.Root()
	writeFile(t, root, "b.txt", "b")
	writeFile(t, root, "A.txt", "a")
	mkdir(t, root, "zdir")
	mkdir(t, root, "Bdir")

	out, err := tb.List(context.Background(), ".")
	require.NoError(t, err)
	assert.Equal(t, "Bdir/\nzdir/\nA.txt\nb.txt", out)
}

func TestListEmptyAndErrors(t *testing.T) {
	tb := newTestToolbox(t, DefaultConfig())
	root := tb.Root()
	mkdir(t, root, "empty")
	writeFile(t, root, "file.txt", "x")
	ctx := context.Background()

	out, err := tb.List(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, EmptyDirectoryMessage, out)

	_, err = tb.List(ctx, "file.txt")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotADirectory))
	assert.Equal(t, "Error: Path 'file.txt' is not a directory.", Render("", err))

	_, err = tb.List(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	assert.Equal(t, "Error: Path 'missing' does not exist.", Render("", err))

	_, err = tb.List(ctx, "..")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeOutsideRoot))
	assert.True(t, strings.HasPrefix(Render("", err), "Error: Access denied."))
}

func TestListDefaultsToRoot(t *testing.T) {
	tb := newTestToolbox(t, DefaultConfig())
	writeFile(t, tb.Root(), "only.txt", "x")

	out, err := tb.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "only.txt", out)
}

func TestListEntryLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limits.MaxDirectoryEntries = 2
	tb := newTestToolbox(t, cfg)
	for _, name := range []string{"a", "b", "c"} {
		writeFile(t, tb.Root(), name, name)
	}

	out, err := tb.List(context.Background(), ".")
	require.NoError(t, err)
	assert.Equal(t, "a\nb"+TruncationMarker, out)
}

func TestReadFilesKeepsOrderAndReportsInline(t *testing.T) {
	tb := newTestToolbox(t, DefaultConfig())
	root := tb.Root()
	writeFile(t, root, "a.txt", "hello")
	mkdir(t, root, "sub")

	out, err := tb.ReadFiles(context.Background(), []string{"a.txt", "missing.txt", "sub", "a.txt"})
	require.NoError(t, err)
	want := strings.Join([]string{
		"a.txt\n\nhello",
		"missing.txt\n\nError: Path 'missing.txt' does not exist.",
		"sub\n\nError: Path 'sub' is not a file.",
		"a.txt\n\nhello",
	}, "\n")
	assert.Equal(t, want, out)
}

func TestReadFilesLatin1Fallback(t *testing.T) {
	tb := newTestToolbox(t, DefaultConfig())
	writeFile(t, tb.Root(), "latin.txt", "caf\xe9")

	out, err := tb.ReadFiles(context.Background(), []string{"latin.txt"})
	require.NoError(t, err)
	assert.Equal(t, "latin.txt\n\ncafé", out)
}

func TestReadFilesBinaryIsDecodeFailure(t *testing.T) {
	tb := newTestToolbox(t, DefaultConfig())
	writeFile(t, tb.Root(), "bin.dat", "\x00\x01\x02")
	writeFile(t, tb.Root(), "ok.txt", "fine")

	out, err := tb.ReadFiles(context.Background(), []string{"bin.dat", "ok.txt"})
	require.NoError(t, err)
	assert.Contains(t, out, "bin.dat\n\nError: Could not decode file 'bin.dat' with UTF-8 or latin-1")
	assert.True(t, strings.HasSuffix(out, "ok.txt\n\nfine"))

	_, err = tb.readFile(context.Background(), "bin.dat")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDecodeFailure))
}

func TestReadFilesRejectsEscapeAndOversize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limits.MaxFileSizeBytes = 4
	tb := newTestToolbox(t, cfg)
	writeFile(t, tb.Root(), "big.txt", "0123456789")

	out, err := tb.ReadFiles(context.Background(), []string{"../etc/passwd", "big.txt"})
	require.NoError(t, err)
	assert.Contains(t, out, "../etc/passwd\n\nError: Access denied.")
	assert.Contains(t, out, "big.txt\n\nError: File 'big.txt' exceeds maximum size of 4 bytes.")

	_, err = tb.ReadFiles(context.Background(), nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidArgument))
}

func TestRender(t *testing.T) {
	assert.Equal(t, "payload", Render("payload", nil))
	assert.Equal(t, "Error: Path 'x' is not a file.",
		Render("", apperrors.New(apperrors.CodeNotAFile, "Path 'x' is not a file.")))
	assert.Equal(t, TreeUnavailableMessage,
		Render("", apperrors.New(apperrors.CodeToolUnavailable, TreeUnavailableMessage)))
}

func TestTruncate(t *testing.T) {
	short, cut := Truncate("short", 100)
	assert.Equal(t, "short", short)
	assert.False(t, cut)

	long := strings.Repeat("x", 200)
	out, cut := Truncate(long, 100)
	assert.True(t, cut)
	assert.Equal(t, 100, utf8.RuneCountInString(out))
	assert.True(t, strings.HasSuffix(out, TruncationMarker))

	wide := strings.Repeat("é", 200)
	out, _ = Truncate(wide, 50)
	assert.Equal(t, 50, utf8.RuneCountInString(out))

	tiny, cut := Truncate(long, 5)
	assert.True(t, cut)
	assert.Equal(t, 5, utf8.RuneCountInString(tiny))

	unbounded, cut := Truncate(long, 0)
	assert.False(t, cut)
	assert.Equal(t, long, unbounded)
}

func TestCanceledContext(t *testing.T) {
	tb := newTestToolbox(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tb.List(ctx, ".")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = tb.Grep(ctx, "x", []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}
