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

package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"ox/internal/config"
	"ox/internal/tools"
	systemprompt "ox/system_prompt"
)

const defaultMaxToolRounds = 25

// EventKind identifies what happened during a turn.
type EventKind int

const (
	EventUser EventKind = iota
	EventToolCall
	EventToolResult
	EventAgent
)

// Event is reported to the caller of Ask as the turn progresses.
type Event struct {
	Kind      EventKind
	Content   string
	ToolName  string
	Arguments string
	Result    *tools.ToolResult
}

// EventHandler receives turn events. It may be nil.
type EventHandler func(Event)

// Session represents a chat session with context.
//
// Thread-safety: message operations are protected by an internal mutex.
// A single Ask runs at a time per session; concurrent Ask calls interleave
// their messages.
type Session struct {
	Client       ChatClient
	Config       *config.Config
	Messages     []openai.ChatCompletionMessage
	ToolRegistry *tools.Registry
	log          zerolog.Logger
	mu           sync.Mutex
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithLogger attaches a logger to the session.
func WithLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.log = logger.With().Str("component", "chat").Logger()
	}
}

// NewSession creates a new chat session with a default OpenAI client.
func NewSession(cfg *config.Config, registry *tools.Registry, opts ...SessionOption) (*Session, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIURL != "" {
		clientConfig.BaseURL = cfg.APIURL
	}
	return NewSessionWithClient(cfg, registry, openai.NewClientWithConfig(clientConfig), opts...)
}

// NewSessionWithClient creates a new chat session with a provided client.
// The system message names the sandbox root and the tools the model may use.
func NewSessionWithClient(cfg *config.Config, registry *tools.Registry, client ChatClient, opts ...SessionOption) (*Session, error) {
	root := ""
	if box := registry.Toolbox(); box != nil {
		root = box.Root()
	}
	prompt, err := systemprompt.Render(systemprompt.Data{Root: root, Tools: registry.ToolNames()})
	if err != nil {
		return nil, fmt.Errorf("failed to load system prompt: %w", err)
	}

	sess := &Session{
		Client:       client,
		Config:       cfg,
		ToolRegistry: registry,
		log:          zerolog.Nop(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
	}
	for _, opt := range opts {
		opt(sess)
	}
	return sess, nil
}

// AddMessage adds a message to the conversation history
func (s *Session) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, openai.ChatCompletionMessage{
		Role:    role,
		Content: content,
	})
}

// AddAssistantMessage adds an assistant message with optional tool calls.
func (s *Session) AddAssistantMessage(content string, toolCalls []openai.ToolCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, openai.ChatCompletionMessage{
		Role:      openai.ChatMessageRoleAssistant,
		Content:   content,
		ToolCalls: toolCalls,
	})
}

// AddToolResultMessage appends a tool result message. Failed tools already
// carry their error text in Result.
func (s *Session) AddToolResultMessage(call openai.ToolCall, result *tools.ToolResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := call.Function.Name
	if name == "" {
		name = "unknown_tool"
	}
	s.Messages = append(s.Messages, openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		Content:    result.Result,
		Name:       name,
		ToolCallID: call.ID,
	})
}

// MessagesSnapshot returns a copy of the current messages.
func (s *Session) MessagesSnapshot() []openai.ChatCompletionMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]openai.ChatCompletionMessage, len(s.Messages))
	copy(msgs, s.Messages)
	return msgs
}

// Ask sends prompt to the model and runs the tool calls it requests until
// it answers in plain text.
func (s *Session) Ask(ctx context.Context, prompt string, onEvent EventHandler) (string, error) {
	emit := func(ev Event) {
		if onEvent != nil {
			onEvent(ev)
		}
	}

	s.AddMessage(openai.ChatMessageRoleUser, prompt)
	emit(Event{Kind: EventUser, Content: prompt})

	maxRounds := s.Config.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}

	for round := 0; ; round++ {
		req := openai.ChatCompletionRequest{
			Model:    s.Config.Model,
			Messages: s.MessagesSnapshot(),
			Tools:    s.ToolRegistry.OpenAITools(),
		}
		if s.Config.Temperature != nil {
			req.Temperature = *s.Config.Temperature
		}
		if s.Config.MaxTokens != nil {
			req.MaxTokens = *s.Config.MaxTokens
		}

		resp, err := s.Client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", &APIError{Operation: "create_completion", Err: err}
		}
		if len(resp.Choices) == 0 {
			return "", &APIError{Operation: "create_completion", Err: fmt.Errorf("response has no choices")}
		}

		response := resp.Choices[0].Message
		if len(response.ToolCalls) == 0 {
			s.AddAssistantMessage(response.Content, nil)
			emit(Event{Kind: EventAgent, Content: response.Content})
			return response.Content, nil
		}
		if round >= maxRounds {
			s.log.Warn().Int("rounds", round).Msg("tool round limit reached")
			return "", &MaxRoundsError{Rounds: round}
		}

		s.AddAssistantMessage(response.Content, response.ToolCalls)
		for _, call := range response.ToolCalls {
			emit(Event{Kind: EventToolCall, ToolName: call.Function.Name, Arguments: call.Function.Arguments})
			result := s.ToolRegistry.ExecuteOpenAIToolCall(ctx, call)
			if result.Error != nil {
				s.log.Info().Err(&ToolExecutionError{ToolName: result.Function, Err: result.Error}).Msg("tool call failed")
			}
			s.AddToolResultMessage(call, result)
			emit(Event{Kind: EventToolResult, ToolName: result.Function, Content: result.Result, Result: result})
		}
		s.log.Debug().Int("round", round+1).Int("calls", len(response.ToolCalls)).Msg("tool round completed")
	}
}

// ClearHistory drops everything but the system message.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = s.Messages[:1:1]
}

// GetHistory returns the conversation history excluding system message
func (s *Session) GetHistory() []openai.ChatCompletionMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Messages) <= 1 {
		return []openai.ChatCompletionMessage{}
	}
	history := make([]openai.ChatCompletionMessage, len(s.Messages)-1)
	copy(history, s.Messages[1:])
	return history
}
