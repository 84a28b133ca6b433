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
	"os/exec"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ox/internal/errors"
)

func buildTreeFixture(t *testing.T, root string) {
	t.Helper()
	mkdir(t, root, "proj/sub/grand")
	writeFile(t, root, "proj/sub/inner.txt", "x")
	writeFile(t, root, "proj/top.txt", "x")
	writeFile(t, root, "proj/.hidden", "x")
	mkdir(t, root, "proj/.git")
}

func TestTreeDepthAndFiles(t *testing.T) {
	tb := newTestToolbox(t, DefaultConfig())
	buildTreeFixture(t, tb.Root())
	ctx := context.Background()

	out, err := tb.Tree(ctx, "proj", TreeOptions{MaxDepth: 2})
	require.NoError(t, err)
	assert.Equal(t, "proj\n└── sub\n\n1 directory", out)

	out, err = tb.Tree(ctx, "proj", TreeOptions{MaxDepth: 2, IncludeFiles: true})
	require.NoError(t, err)
	assert.Equal(t, "proj\n├── sub\n└── top.txt\n\n1 directory, 1 file", out)
	assert.NotContains(t, out, "grand")
	assert.NotContains(t, out, "inner.txt")

	out, err = tb.Tree(ctx, "proj", TreeOptions{MaxDepth: 3, IncludeFiles: true})
	require.NoError(t, err)
	want := strings.Join([]string{
		"proj",
		"├── sub",
		"│   ├── grand",
		"│   └── inner.txt",
		"└── top.txt",
		"",
		"2 directories, 2 files",
	}, "\n")
	assert.Equal(t, want, out)
}

func TestTreeDefaultOptionsShowOnlyHeader(t *testing.T) {
	tb := newTestToolbox(t, DefaultConfig())
	buildTreeFixture(t, tb.Root())

	out, err := tb.Tree(context.Background(), "proj", DefaultTreeOptions())
	require.NoError(t, err)
	assert.Equal(t, "proj\n\n0 directories", out)
}

func TestTreeErrors(t *testing.T) {
	tb := newTestToolbox(t, DefaultConfig())
	buildTreeFixture(t, tb.Root())
	ctx := context.Background()

	_, err := tb.Tree(ctx, "proj/top.txt", TreeOptions{MaxDepth: 2})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotADirectory))
	assert.Contains(t, Render("", err), "is not a directory")

	_, err = tb.Tree(ctx, "proj", TreeOptions{MaxDepth: 0})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidArgument))
	assert.Equal(t, "Error: max_depth must be at least 1.", Render("", err))

	_, err = tb.Tree(ctx, "../..", TreeOptions{MaxDepth: 2})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeOutsideRoot))
}

func TestTreeTruncatesLargeOutput(t *testing.T) {
	tb := newTestToolbox(t, DefaultConfig())
	for i := 0; i < 60; i++ {
		mkdir(t, tb.Root(), fmt.Sprintf("big/directory_%02d", i))
	}

	out, err := tb.Tree(context.Background(), "big", TreeOptions{MaxDepth: 2, MaxOutput: 100})
	require.NoError(t, err)
	assert.LessOrEqual(t, utf8.RuneCountInString(out), 100)
	assert.True(t, strings.HasSuffix(out, TruncationMarker))
}

func TestTreeExternalUnavailable(t *testing.T) {
	withoutBinaries(t)
	cfg := DefaultConfig()
	cfg.TreeBackend = BackendExternal
	tb := newTestToolbox(t, cfg)
	buildTreeFixture(t, tb.Root())

	out, err := tb.Tree(context.Background(), "proj", TreeOptions{MaxDepth: 2})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeToolUnavailable))
	assert.Equal(t, "The 'tree' command is not available on this system.", Render(out, err))
}

func TestTreeExternalBinary(t *testing.T) {
	if _, err := exec.LookPath("tree"); err != nil {
		t.Skip("tree not installed")
	}
	cfg := DefaultConfig()
	cfg.TreeBackend = BackendExternal
	tb := newTestToolbox(t, cfg)
	buildTreeFixture(t, tb.Root())

	out, err := tb.Tree(context.Background(), "proj", TreeOptions{MaxDepth: 2})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "proj\n"))
	assert.Contains(t, out, "└── sub")
	assert.NotContains(t, out, "grand")
	assert.NotContains(t, out, "top.txt")

	out, err = tb.Tree(context.Background(), "proj", TreeOptions{MaxDepth: 1})
	require.NoError(t, err)
	assert.Equal(t, "proj\n\n0 directories", out)
}
