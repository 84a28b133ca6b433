package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"ox/internal/chat"
	"ox/internal/theme"
	"ox/internal/toolbox"
)

const defaultResultPreviewChars = 2000

// Console prints the conversation to a terminal or any writer.
type Console struct {
	mu            sync.Mutex
	out           io.Writer
	colors        *theme.ColorScheme
	previewChars  int
	animate       bool
	statusText    string
	statusVisible bool
	stopStatus    chan struct{}
	statusDone    chan struct{}
}

// ConsoleOption customizes a Console.
type ConsoleOption func(*Console)

// WithResultPreview bounds how much of each tool result is shown. Zero
// shows results in full.
func WithResultPreview(chars int) ConsoleOption {
	return func(c *Console) {
		c.previewChars = chars
	}
}

// WithStatusAnimation enables the progress indicator. Only useful when out
// is a terminal.
func WithStatusAnimation(enabled bool) ConsoleOption {
	return func(c *Console) {
		c.animate = enabled
	}
}

// NewConsole creates a console writing to out. A nil scheme disables colors.
func NewConsole(out io.Writer, colors *theme.ColorScheme, opts ...ConsoleOption) *Console {
	if colors == nil {
		colors = theme.DisabledColorScheme()
	}
	c := &Console{
		out:          out,
		colors:       colors,
		previewChars: defaultResultPreviewChars,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Welcome greets the user and names the directory being explored.
func (c *Console) Welcome(root string) {
	c.print(func(w io.Writer) {
		c.colors.Header.Fprintln(w, "ox")
		fmt.Fprintf(w, "I can answer questions about the code in: %s\n", root)
		fmt.Fprintln(w, "Type 'exit' or 'quit' to end the session, /help for commands.")
		fmt.Fprintln(w)
	})
}

// Exit prints the goodbye line.
func (c *Console) Exit() {
	c.print(func(w io.Writer) {
		c.colors.Error.Fprintln(w, "Exiting ox. Goodbye!")
	})
}

// User echoes a prompt that did not come from the line editor.
func (c *Console) User(text string) {
	c.print(func(w io.Writer) {
		c.colors.User.Fprint(w, "You> ")
		fmt.Fprintln(w, text)
	})
}

// ToolCall shows a tool invocation with its arguments pretty-printed.
func (c *Console) ToolCall(name, args string) {
	c.print(func(w io.Writer) {
		c.colors.ToolCall.Fprintf(w, "Tool Call: %s\n", name)
		fmt.Fprintln(w, formatToolArgs(args))
	})
}

// ToolResult shows the text a tool returned to the model.
func (c *Console) ToolResult(name, result string) {
	if c.previewChars > 0 {
		result, _ = toolbox.Truncate(result, c.previewChars)
	}
	c.print(func(w io.Writer) {
		c.colors.ToolResult.Fprintf(w, "Tool Result: %s\n", name)
		fmt.Fprintln(w, strings.TrimRight(result, "\n"))
	})
}

// Agent shows the final answer of a turn.
func (c *Console) Agent(text string) {
	c.print(func(w io.Writer) {
		c.colors.Agent.Fprintln(w, "Agent:")
		fmt.Fprintln(w, strings.TrimRight(text, "\n"))
		fmt.Fprintln(w)
	})
}

// Error shows an error message.
func (c *Console) Error(message string) {
	c.print(func(w io.Writer) {
		c.colors.Error.Fprint(w, "Error: ")
		fmt.Fprintln(w, message)
	})
}

// Info prints a plain line.
func (c *Console) Info(message string) {
	c.print(func(w io.Writer) {
		fmt.Fprintln(w, message)
	})
}

// Header prints a highlighted line.
func (c *Console) Header(message string) {
	c.print(func(w io.Writer) {
		c.colors.Header.Fprintln(w, message)
	})
}

// HandleEvent renders a chat event. User events are skipped unless
// echoUser is set, since the line editor already shows them.
func (c *Console) HandleEvent(ev chat.Event, echoUser bool) {
	switch ev.Kind {
	case chat.EventUser:
		if echoUser {
			c.User(ev.Content)
		}
	case chat.EventToolCall:
		c.ToolCall(ev.ToolName, ev.Arguments)
	case chat.EventToolResult:
		c.ToolResult(ev.ToolName, ev.Content)
	case chat.EventAgent:
		c.Agent(ev.Content)
	default:
		c.Error(fmt.Sprintf("Received unknown event kind: %d", ev.Kind))
	}
}

// StartStatus shows message with a spinner until StopStatus is called.
// Without animation it does nothing.
func (c *Console) StartStatus(message string) {
	if !c.animate {
		return
	}
	c.mu.Lock()
	if c.stopStatus != nil {
		c.statusText = message
		c.mu.Unlock()
		return
	}
	c.statusText = message
	c.stopStatus = make(chan struct{})
	c.statusDone = make(chan struct{})
	stop, done := c.stopStatus, c.statusDone
	c.mu.Unlock()

	go c.runStatus(stop, done)
}

// StopStatus removes the spinner line.
func (c *Console) StopStatus() {
	c.mu.Lock()
	stop, done := c.stopStatus, c.statusDone
	c.stopStatus, c.statusDone = nil, nil
	c.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done

	c.mu.Lock()
	c.clearStatusLocked()
	c.mu.Unlock()
}

func (c *Console) runStatus(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	chars := []string{"|", "/", "-", "\\"}
	i := 0

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			c.clearStatusLocked()
			c.colors.ToolCall.Fprintf(c.out, "%s %s", c.statusText, chars[i%len(chars)])
			c.statusVisible = true
			c.mu.Unlock()
			i++
		}
	}
}

func (c *Console) clearStatusLocked() {
	if c.statusVisible {
		fmt.Fprint(c.out, "\r\x1b[K")
		c.statusVisible = false
	}
}

func (c *Console) print(fn func(w io.Writer)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearStatusLocked()
	fn(c.out)
}

// formatToolArgs indents JSON arguments and falls back to the raw text.
func formatToolArgs(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "(no arguments)"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(trimmed), "", "  "); err != nil {
		return trimmed
	}
	return buf.String()
}
