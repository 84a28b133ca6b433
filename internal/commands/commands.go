package commands

import (
	"fmt"
	"sort"
	"strings"

	"ox/internal/chat"
	"ox/internal/ui"
)

// Handler runs a slash command and reports whether the REPL should quit.
type Handler func(env Env) bool

// Env is what a command can act on.
type Env struct {
	Session *chat.Session
	Console *ui.Console
	Args    string
}

// Command represents a slash command
type Command struct {
	Name        string
	Description string
	Handler     Handler
}

// Registry holds all available commands
type Registry struct {
	commands  map[string]*Command
	DebugMode *bool // Pointer to global debug mode flag
}

// NewRegistry creates a new command registry
func NewRegistry(debugMode *bool) *Registry {
	r := &Registry{
		commands:  make(map[string]*Command),
		DebugMode: debugMode,
	}

	// Register built-in commands
	r.Register("quit", "Exit the application", handleQuit)
	r.Register("exit", "Exit the application", handleQuit)
	r.Register("clear", "Clear conversation history", handleClear)
	r.Register("history", "Display conversation history", handleHistory)
	r.Register("tools", "List the tools the model can call", handleTools)
	r.Register("help", "Show available commands", r.handleHelp)
	r.Register("debug", "Toggle debug mode", r.handleDebug)

	return r
}

// Register adds a new command to the registry
func (r *Registry) Register(name, description string, handler Handler) {
	r.commands[name] = &Command{
		Name:        name,
		Description: description,
		Handler:     handler,
	}
}

// IsCommand reports whether input should be handled as a slash command.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// Execute runs the command named by input and reports whether the REPL
// should quit. Unknown commands print a hint.
func (r *Registry) Execute(input string, session *chat.Session, console *ui.Console) bool {
	fields := strings.SplitN(strings.TrimPrefix(strings.TrimSpace(input), "/"), " ", 2)
	cmdName := strings.ToLower(fields[0])
	env := Env{Session: session, Console: console}
	if len(fields) == 2 {
		env.Args = strings.TrimSpace(fields[1])
	}

	cmd, exists := r.commands[cmdName]
	if !exists {
		console.Error(fmt.Sprintf("Unknown command: /%s (type /help for available commands)", cmdName))
		return false
	}
	return cmd.Handler(env)
}

// Names returns the command names with their leading slash, sorted. The
// REPL uses them for completion.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, "/"+name)
	}
	sort.Strings(names)
	return names
}

// Command handlers

func handleQuit(env Env) bool {
	return true
}

func handleClear(env Env) bool {
	env.Session.ClearHistory()
	env.Console.Info("Conversation history cleared")
	return false
}

func handleHistory(env Env) bool {
	messages := env.Session.GetHistory()
	if len(messages) == 0 {
		env.Console.Info("No conversation history")
		return false
	}
	env.Console.Header("--- Conversation History ---")
	for _, msg := range messages {
		switch msg.Role {
		case "user":
			env.Console.User(msg.Content)
		case "assistant":
			if msg.Content != "" {
				env.Console.Agent(msg.Content)
			}
			for _, call := range msg.ToolCalls {
				env.Console.ToolCall(call.Function.Name, call.Function.Arguments)
			}
		case "tool":
			env.Console.ToolResult(msg.Name, msg.Content)
		}
	}
	env.Console.Header("--- End History ---")
	return false
}

func handleTools(env Env) bool {
	env.Console.Header("Available tools:")
	for _, tool := range env.Session.ToolRegistry.Describe() {
		env.Console.Info(fmt.Sprintf("  %-10s %s", tool.Name(), tool.Description()))
	}
	return false
}

func (r *Registry) handleHelp(env Env) bool {
	env.Console.Header("Available Commands:")
	for _, name := range r.Names() {
		cmd := r.commands[strings.TrimPrefix(name, "/")]
		env.Console.Info(fmt.Sprintf("  %-10s - %s", name, cmd.Description))
	}
	env.Console.Info("Typing exit or quit without a slash also ends the session.")
	return false
}

func (r *Registry) handleDebug(env Env) bool {
	if r.DebugMode == nil {
		return false
	}
	*r.DebugMode = !*r.DebugMode
	status := "disabled"
	if *r.DebugMode {
		status = "enabled"
		msgs := env.Session.MessagesSnapshot()
		if len(msgs) > 0 {
			env.Console.Header("System Prompt:")
			env.Console.Info(msgs[0].Content)
		}
	}
	env.Console.Info(fmt.Sprintf("Debug mode %s", status))
	return false
}
