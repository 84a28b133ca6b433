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

package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	apperrors "ox/internal/errors"
	"ox/internal/toolbox"
)

// ToolResult represents the result of a tool execution. Result is always
// the text handed back to the model; Error is kept for logging and UI.
type ToolResult struct {
	Function  string
	Result    string
	Error     error
	Truncated bool
}

// Policy configures which tools may run. An empty Allow list allows every
// registered tool; Deny always wins.
type Policy struct {
	Allow []string
	Deny  []string
}

func (p Policy) allows(name string) bool {
	for _, denied := range p.Deny {
		if denied == name {
			return false
		}
	}
	if len(p.Allow) == 0 {
		return true
	}
	for _, allowed := range p.Allow {
		if allowed == name {
			return true
		}
	}
	return false
}

// Registry holds the tools exposed to the model.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	order    []string
	policy   Policy
	timeouts TimeoutConfig
	filters  OutputFilterConfig
	rates    RateLimitConfig
	limiters map[string]*toolRateLimiter
	now      func() time.Time
	box      *toolbox.Toolbox
	log      zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithPolicy sets the allow/deny policy.
func WithPolicy(policy Policy) Option {
	return func(r *Registry) {
		r.policy = policy
	}
}

// TimeoutConfig bounds each tool call on top of the caller's context. A
// zero duration leaves the call bounded by the context alone.
type TimeoutConfig struct {
	Default time.Duration
	PerTool map[string]time.Duration
}

// DefaultTimeoutConfig gives the walking tools, which may shell out to
// find or tree, more room than the single-directory ones.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Default: 30 * time.Second,
		PerTool: map[string]time.Duration{
			"find": 60 * time.Second,
			"grep": 60 * time.Second,
			"tree": 60 * time.Second,
		},
	}
}

// TimeoutForTool returns the timeout applied to name.
func (t TimeoutConfig) TimeoutForTool(name string) time.Duration {
	if timeout, ok := t.PerTool[name]; ok {
		return timeout
	}
	return t.Default
}

// WithTimeouts sets per-tool execution timeouts.
func WithTimeouts(timeouts TimeoutConfig) Option {
	return func(r *Registry) {
		r.timeouts = timeouts
	}
}

// WithOutputFilters sets the output sanitization applied to every result.
func WithOutputFilters(filters OutputFilterConfig) Option {
	return func(r *Registry) {
		r.filters = normalizeOutputFilterConfig(filters)
	}
}

// WithRateLimits bounds how often each tool may be called.
func WithRateLimits(rates RateLimitConfig) Option {
	return func(r *Registry) {
		r.rates = rates
	}
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.log = logger.With().Str("component", "tools").Logger()
	}
}

// NewRegistry creates a registry with the built-in toolbox tools bound to
// box. A nil box yields an empty registry.
func NewRegistry(box *toolbox.Toolbox, opts ...Option) *Registry {
	r := &Registry{
		tools:    make(map[string]Tool),
		timeouts: DefaultTimeoutConfig(),
		filters:  DefaultOutputFilterConfig(),
		rates:    DefaultRateLimitConfig(),
		limiters: make(map[string]*toolRateLimiter),
		now:      time.Now,
		box:      box,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if box != nil {
		registerBuiltInTools(r, box)
	}
	return r
}

// Toolbox returns the toolbox the built-in tools operate on.
func (r *Registry) Toolbox() *toolbox.Toolbox {
	return r.box
}

// RegisterTool adds a tool to the registry.
func (r *Registry) RegisterTool(tool Tool) error {
	if tool == nil || tool.Name() == "" {
		return fmt.Errorf("%w: tool has no name", ErrInvalidArguments)
	}
	if !tool.CompatibleWith(HostAPIVersion) {
		return fmt.Errorf("%w: %s (version %s)", ErrIncompatibleTool, tool.Name(), tool.Version())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, tool.Name())
	}
	r.tools[tool.Name()] = tool
	r.order = append(r.order, tool.Name())
	r.limiters[tool.Name()] = newToolRateLimiter(r.rates.perMinute(tool.Name()), r.rates.Cooldowns[tool.Name()], r.now)
	return nil
}

func (r *Registry) mustRegister(tool Tool) {
	if err := r.RegisterTool(tool); err != nil {
		panic(err)
	}
}

// ToolNames returns the names of the tools the policy lets run, in
// registration order.
func (r *Registry) ToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if r.policy.allows(name) {
			names = append(names, name)
		}
	}
	return names
}

// HasTool reports whether name is registered, regardless of policy.
func (r *Registry) HasTool(name string) bool {
	_, ok := r.getTool(name)
	return ok
}

// Describe returns the name and description of each allowed tool.
func (r *Registry) Describe() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		if r.policy.allows(name) {
			out = append(out, r.tools[name])
		}
	}
	return out
}

// OpenAITools returns the allowed tools as OpenAI tool definitions.
func (r *Registry) OpenAITools() []openai.Tool {
	tools := r.Describe()
	defs := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return defs
}

// Execute runs the named tool. It never panics on bad input; every outcome
// is reported as text in the result.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) *ToolResult {
	result := &ToolResult{Function: name}
	logger := r.logger()

	tool, ok := r.getTool(name)
	if !ok {
		result.Error = fmt.Errorf("%w: %s", ErrToolNotFound, name)
		result.Result = fmt.Sprintf("Error: Tool '%s' not found. Available tools: %s", name, strings.Join(r.ToolNames(), ", "))
		logger.Debug().Str("tool", name).Msg("unknown tool requested")
		return result
	}
	if !r.policy.allows(name) {
		result.Error = NewPermissionError(name, "blocked by policy")
		result.Result = fmt.Sprintf("Error: Tool '%s' is blocked by policy.", name)
		logger.Warn().Str("tool", name).Msg("tool blocked by policy")
		return result
	}
	if err := r.limiter(name).Allow(); err != nil {
		result.Error = err
		result.Result = fmt.Sprintf("Error: Tool '%s' refused: %v", name, err)
		logger.Warn().Str("tool", name).Err(err).Msg("tool rate limited")
		return result
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if err := tool.Validate(args); err != nil {
		result.Error = fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		result.Result = fmt.Sprintf("Error: %v", result.Error)
		logger.Debug().Str("tool", name).Err(err).Msg("invalid tool arguments")
		return result
	}

	execCtx := ctx
	timeout := r.timeouts.TimeoutForTool(name)
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := tool.Execute(execCtx, args)
	if err != nil && ctx.Err() == nil && errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %s after %s", ErrToolTimeout, name, timeout)
	}
	elapsed := time.Since(start)

	result.Result, result.Truncated = sanitizeToolOutput(toolbox.Render(output, err), r.filters)
	if err != nil && apperrors.CodeOf(err) == "" {
		err = NewToolExecutionError(name, "execute", err)
	}
	result.Error = err

	event := logger.Debug()
	if err != nil {
		event = logger.Info().Err(err)
	}
	event.Str("tool", name).
		Dur("elapsed", elapsed).
		Int("chars", len(result.Result)).
		Bool("truncated", result.Truncated).
		Msg("tool executed")
	return result
}

// ExecuteOpenAIToolCall executes an OpenAI tool call payload.
func (r *Registry) ExecuteOpenAIToolCall(ctx context.Context, call openai.ToolCall) *ToolResult {
	name := call.Function.Name
	if name == "" {
		err := fmt.Errorf("%w: tool call missing function name", ErrInvalidArguments)
		return &ToolResult{
			Function: "unknown_tool",
			Error:    err,
			Result:   fmt.Sprintf("Error: %v", err),
		}
	}
	args, err := parseToolArgs(call.Function.Arguments)
	if err != nil {
		return invalidToolResult(name, fmt.Errorf("%w: %v", ErrInvalidArguments, err))
	}
	return r.Execute(ctx, name, args)
}

func (r *Registry) getTool(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

func (r *Registry) limiter(name string) *toolRateLimiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[name]
}

func (r *Registry) logger() zerolog.Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.log
}
