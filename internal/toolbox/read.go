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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/u-root/u-root/pkg/core"
	corecat "github.com/u-root/u-root/pkg/core/cat"
	"golang.org/x/text/encoding/charmap"

	apperrors "ox/internal/errors"
)

// ReadFiles reads each path as text and returns "<path>\n\n<content>"
// blocks joined by a newline, in input order. A path that cannot be read
// yields its error text in place of content; the batch always completes.
func (t *Toolbox) ReadFiles(ctx context.Context, paths []string) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "No file paths specified.")
	}
	t.log.Debug().Str("op", "read_files").Strs("paths", paths).Msg("executing")

	blocks := make([]string, 0, len(paths))
	for _, path := range paths {
		if err := ensureContext(ctx); err != nil {
			return "", err
		}
		content, err := t.readFile(ctx, path)
		blocks = append(blocks, path+"\n\n"+Render(content, err))
	}
	return strings.Join(blocks, "\n"), nil
}

func (t *Toolbox) readFile(ctx context.Context, path string) (string, error) {
	resolved, err := t.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := t.readRegularFile(ctx, path, resolved)
	if err != nil {
		return "", err
	}
	text, err := decodeText(data)
	if err != nil {
		t.log.Warn().Str("path", path).Err(err).Msg("decode failed")
		return "", apperrors.Wrap(apperrors.CodeDecodeFailure,
			fmt.Sprintf("Could not decode file '%s' with UTF-8 or latin-1", path), err)
	}
	return text, nil
}

// readRegularFile checks that resolved is a regular file within the size
// limit and returns its bytes.
func (t *Toolbox) readRegularFile(ctx context.Context, display, resolved string) ([]byte, error) {
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, statError(display, err)
	}
	if !info.Mode().IsRegular() {
		return nil, apperrors.Newf(apperrors.CodeNotAFile, "Path '%s' is not a file.", display)
	}
	if limit := t.cfg.Limits.MaxFileSizeBytes; info.Size() > limit {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument,
			"File '%s' exceeds maximum size of %d bytes.", display, limit)
	}
	data, err := t.runCoreCommand(ctx, corecat.New(), resolved)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, apperrors.Newf(apperrors.CodePermission, "Permission denied to read file '%s'.", display)
		}
		return nil, apperrors.Wrap(apperrors.CodeToolExecution, fmt.Sprintf("Could not read file '%s'", display), err)
	}
	return data, nil
}

// runCoreCommand runs a u-root core command in-process with the root as its
// working directory and returns its standard output.
func (t *Toolbox) runCoreCommand(ctx context.Context, cmd core.Command, args ...string) ([]byte, error) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.SetIO(strings.NewReader(""), &stdout, &stderr)
	cmd.SetWorkingDir(t.root)

	if err := cmd.RunContext(ctx, args...); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg != "" {
			return nil, fmt.Errorf("%w: %s", err, errMsg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// decodeText returns data as a string, reading it as UTF-8 and falling back
// to ISO-8859-1. Content carrying NUL bytes is treated as binary and
// rejected.
func decodeText(data []byte) (string, error) {
	if looksBinary(data) {
		return "", fmt.Errorf("file appears to be binary")
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func looksBinary(data []byte) bool {
	const sampleSize = 8192
	sample := data
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	return bytes.IndexByte(sample, 0) != -1
}
