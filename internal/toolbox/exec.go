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
	"os/exec"
	"strings"
	"time"

	apperrors "ox/internal/errors"
)

// lookPath is swapped in tests to simulate hosts without a binary.
var lookPath = exec.LookPath

type commandOutput struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// runExternal runs name with args in dir, bounded by the configured command
// timeout. Arguments are passed as argv, never through a shell. A non-zero
// exit is reported in ExitCode rather than as an error so callers can keep
// partial output.
func (t *Toolbox) runExternal(ctx context.Context, dir, name string, args ...string) (commandOutput, error) {
	bin, err := lookPath(name)
	if err != nil {
		t.log.Debug().Err(err).Str("command", name).Msg("binary not found")
		return commandOutput{}, apperrors.Newf(apperrors.CodeToolUnavailable,
			"The '%s' command is not available on this system.", name)
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	configureCommandProcess(cmd)
	cmd.Cancel = func() error {
		terminateCommandProcess(cmd)
		return nil
	}
	cmd.WaitDelay = time.Second

	start := time.Now()
	err = cmd.Run()
	t.log.Debug().
		Str("command", name).
		Strs("args", args).
		Dur("elapsed", time.Since(start)).
		Msg("external command finished")

	out := commandOutput{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		t.log.Error().Str("command", name).Dur("timeout", t.cfg.CommandTimeout).Msg("external command timed out")
		return out, apperrors.Newf(apperrors.CodeToolExecution,
			"The '%s' command timed out after %s.", name, t.cfg.CommandTimeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			t.log.Debug().
				Str("command", name).
				Int("exit_code", out.ExitCode).
				Str("stderr", strings.TrimSpace(string(out.Stderr))).
				Msg("external command exited with error")
			return out, nil
		}
		t.log.Error().Err(err).Str("command", name).Msg("external command failed")
		return out, apperrors.Wrap(apperrors.CodeToolExecution, fmt.Sprintf("The '%s' command failed", name), err)
	}
	return out, nil
}

// nonEmptyLines splits command output into trimmed, non-empty lines.
func nonEmptyLines(data []byte) []string {
	raw := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
