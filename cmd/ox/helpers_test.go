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
	"errors"
	"io"
	"testing"

	"github.com/chzyer/readline"
)

func TestClassifyReadlineError(t *testing.T) {
	cases := []struct {
		name     string
		line     string
		err      error
		expected readlineAction
	}{
		{"interrupt", "", readline.ErrInterrupt, readlineContinue},
		{"eof-empty", "", io.EOF, readlineExit},
		{"eof-whitespace", "   ", io.EOF, readlineExit},
		{"eof-line", "hello", io.EOF, readlineContinue},
		{"other", "", errors.New("boom"), readlineUnhandled},
		{"none", "hello", nil, readlineUnhandled},
	}

	for _, tc := range cases {
		if got := classifyReadlineError(tc.line, tc.err); got != tc.expected {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.expected, got)
		}
	}
}

func TestSanitizeInputLine(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"\x03/quit", "/quit"},
		{"\x07where is main?", "where is main?"},
		{"\x1f\t/quit ", "/quit"},
		{"list\tsrc", "list src"},
		{"  ", ""},
	}

	for _, tc := range cases {
		if got := sanitizeInputLine(tc.input); got != tc.expected {
			t.Fatalf("sanitizeInputLine(%q): expected %q, got %q", tc.input, tc.expected, got)
		}
	}
}

func TestIsExitWord(t *testing.T) {
	for _, word := range []string{"exit", "quit", "EXIT", "Quit"} {
		if !isExitWord(word) {
			t.Errorf("expected %q to end the session", word)
		}
	}
	if isExitWord("exit now") || isExitWord("/quit") {
		t.Error("only the bare words end the session")
	}
}

func TestOperationCanceler(t *testing.T) {
	canceler := &operationCanceler{}
	if canceler.Cancel() {
		t.Fatal("expected no cancel when unset")
	}

	ctx, cancel := context.WithCancel(context.Background())
	canceler.Set(cancel)
	if !canceler.Cancel() {
		t.Fatal("expected cancel to return true")
	}
	if ctx.Err() == nil {
		t.Fatal("expected context to be canceled")
	}

	canceler.Clear()
	if canceler.Cancel() {
		t.Fatal("expected no cancel after clear")
	}
}

func TestFilterInterruptRune(t *testing.T) {
	if r, ok := filterInterruptRune(readline.CharBell); ok || r != 0 {
		t.Fatalf("expected ctrl+g to be ignored, got %v %v", r, ok)
	}
	if r, ok := filterInterruptRune('a'); !ok || r != 'a' {
		t.Fatalf("expected rune to pass through, got %v %v", r, ok)
	}
}
