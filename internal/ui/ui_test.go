package ui

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ox/internal/chat"
	"ox/internal/toolbox"
)

func TestHistoryAddSkipsBlankAndRepeats(t *testing.T) {
	h := OpenHistory("", 0)

	if !h.Add("one") {
		t.Fatal("expected 'one' to be recorded")
	}
	if h.Add("one") {
		t.Fatal("expected repeated entry to be skipped")
	}
	if h.Add("   ") {
		t.Fatal("expected blank entry to be skipped")
	}
	h.Add("two")

	if got := strings.Join(h.Entries(), ","); got != "one,two" {
		t.Fatalf("unexpected entries %q", got)
	}
}

func TestHistoryLimit(t *testing.T) {
	h := OpenHistory("", 2)
	h.Add("one")
	h.Add("two")
	h.Add("three")

	if got := strings.Join(h.Entries(), ","); got != "two,three" {
		t.Fatalf("expected oldest entry dropped, got %q", got)
	}
}

func TestHistoryPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".ox_history")
	if err := os.WriteFile(path, []byte("first\n\nsecond\n"), 0o600); err != nil {
		t.Fatalf("write history: %v", err)
	}

	h := OpenHistory(path, 10)
	if got := strings.Join(h.Entries(), ","); got != "first,second" {
		t.Fatalf("unexpected loaded entries %q", got)
	}
	h.Add("third")
	if err := h.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	if string(data) != "first\nsecond\nthird\n" {
		t.Fatalf("unexpected history file %q", data)
	}
}

func TestConsoleRendersRoles(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, nil)

	c.Welcome("/srv/project")
	c.ToolCall("ls", `{"path":"src"}`)
	c.ToolResult("ls", "main.go\n")
	c.Agent("done")
	c.Error("boom")
	c.Exit()

	out := buf.String()
	for _, want := range []string{
		"I can answer questions about the code in: /srv/project",
		"Type 'exit' or 'quit' to end the session",
		"Tool Call: ls\n{\n  \"path\": \"src\"\n}\n",
		"Tool Result: ls\nmain.go\n",
		"Agent:\ndone\n",
		"Error: boom\n",
		"Exiting ox. Goodbye!",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("expected no color escapes with a nil scheme")
	}
}

func TestConsoleTruncatesToolResults(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, nil, WithResultPreview(30))

	c.ToolResult("read_files", strings.Repeat("x", 50))

	out := buf.String()
	if !strings.Contains(out, strings.Repeat("x", 11)+toolbox.TruncationMarker) {
		t.Fatalf("expected truncated preview, got %q", out)
	}
	if strings.Contains(out, strings.Repeat("x", 12)) {
		t.Fatalf("preview longer than limit: %q", out)
	}
}

func TestConsoleHandleEvent(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, nil)

	c.HandleEvent(chat.Event{Kind: chat.EventUser, Content: "hidden"}, false)
	c.HandleEvent(chat.Event{Kind: chat.EventUser, Content: "shown"}, true)
	c.HandleEvent(chat.Event{Kind: chat.EventToolCall, ToolName: "tree", Arguments: "not json"}, false)
	c.HandleEvent(chat.Event{Kind: chat.EventAgent, Content: "answer"}, false)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("user event should not be echoed")
	}
	if !strings.Contains(out, "You> shown") {
		t.Error("expected echoed user event")
	}
	if !strings.Contains(out, "Tool Call: tree\nnot json\n") {
		t.Errorf("expected raw arguments fallback, got:\n%s", out)
	}
	if !strings.Contains(out, "Agent:\nanswer") {
		t.Error("expected agent answer")
	}
}

func TestFormatToolArgsEmpty(t *testing.T) {
	if got := formatToolArgs("  "); got != "(no arguments)" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestConsoleStatusWithoutAnimationIsSilent(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, nil)
	c.StartStatus("Agent is thinking...")
	c.StopStatus()
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestConsoleStatusStops(t *testing.T) {
	var buf syncBuffer
	c := NewConsole(&buf, nil, WithStatusAnimation(true))
	c.StartStatus("Agent is thinking...")
	c.StopStatus()
	c.Info("after")
	if !strings.HasSuffix(buf.String(), "after\n") {
		t.Fatalf("expected spinner to be gone, got %q", buf.String())
	}
}
