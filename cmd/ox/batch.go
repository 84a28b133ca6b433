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

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"ox/internal/chat"
	"ox/internal/ui"
)

// runBatch reads the whole of in as a single question.
func runBatch(ctx context.Context, session *chat.Session, in io.Reader, out io.Writer, events *ui.Console) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return fmt.Errorf("no question given on stdin")
	}
	return answerOnce(ctx, session, prompt, out, events)
}

// answerOnce asks a single question and prints the answer to out. Tool
// activity goes to events when it is not nil.
func answerOnce(ctx context.Context, session *chat.Session, prompt string, out io.Writer, events *ui.Console) error {
	var onEvent chat.EventHandler
	if events != nil {
		onEvent = func(ev chat.Event) {
			if ev.Kind == chat.EventToolCall || ev.Kind == chat.EventToolResult {
				events.HandleEvent(ev, false)
			}
		}
	}

	answer, err := session.Ask(ctx, prompt, onEvent)
	if err != nil {
		return fmt.Errorf("failed to get response: %w", err)
	}
	_, err = fmt.Fprintln(out, strings.TrimRight(answer, "\n"))
	return err
}
