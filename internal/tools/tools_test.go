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
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"

	apperrors "ox/internal/errors"
	"ox/internal/toolbox"
)

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, string) {
	t.Helper()
	box, err := toolbox.New(t.TempDir(), toolbox.DefaultConfig())
	if err != nil {
		t.Fatalf("toolbox.New: %v", err)
	}
	return NewRegistry(box, opts...), box.Root()
}

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestNewRegistryRegistersBuiltins(t *testing.T) {
	registry, _ := newTestRegistry(t)
	want := []string{"ls", "read_files", "find", "grep", "tree"}
	if got := registry.ToolNames(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if registry.Toolbox() == nil {
		t.Fatal("expected toolbox to be set")
	}
}

func TestNewRegistryWithoutToolbox(t *testing.T) {
	registry := NewRegistry(nil)
	if names := registry.ToolNames(); len(names) != 0 {
		t.Fatalf("expected empty registry, got %v", names)
	}
}

func TestOpenAIToolsCarrySchemas(t *testing.T) {
	registry, _ := newTestRegistry(t)
	defs := registry.OpenAITools()
	if len(defs) != 5 {
		t.Fatalf("expected 5 tool definitions, got %d", len(defs))
	}
	for _, def := range defs {
		if def.Type != openai.ToolTypeFunction {
			t.Errorf("%s: expected function type", def.Function.Name)
		}
		params, ok := def.Function.Parameters.(map[string]interface{})
		if !ok {
			t.Fatalf("%s: parameters are %T", def.Function.Name, def.Function.Parameters)
		}
		if _, ok := params["properties"]; !ok {
			t.Errorf("%s: schema has no properties: %v", def.Function.Name, params)
		}
	}
	grep := defs[3].Function.Parameters.(map[string]interface{})["properties"].(map[string]interface{})
	for _, key := range []string{"pattern", "paths"} {
		if _, ok := grep[key]; !ok {
			t.Errorf("grep schema missing %q", key)
		}
	}
}

func TestExecuteListDirectory(t *testing.T) {
	registry, root := newTestRegistry(t)
	writeTestFile(t, root, "example.txt", "data")
	writeTestFile(t, root, "src/main.go", "package main")

	result := registry.Execute(context.Background(), "ls", nil)
	if result.Error != nil {
		t.Fatalf("expected no error, got: %v", result.Error)
	}
	if result.Result != "src/\nexample.txt" {
		t.Fatalf("unexpected listing: %q", result.Result)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	registry, _ := newTestRegistry(t)
	result := registry.Execute(context.Background(), "does_not_exist", nil)
	if !errors.Is(result.Error, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", result.Error)
	}
	if !strings.Contains(result.Result, "Available tools: ls, read_files, find, grep, tree") {
		t.Fatalf("expected available tools in result, got %q", result.Result)
	}
}

func TestPolicyDenyAndAllow(t *testing.T) {
	registry, _ := newTestRegistry(t, WithPolicy(Policy{Deny: []string{"tree"}}))
	result := registry.Execute(context.Background(), "tree", nil)
	if !errors.Is(result.Error, ErrToolNotAllowed) {
		t.Fatalf("expected ErrToolNotAllowed, got %v", result.Error)
	}
	if result.Result != "Error: Tool 'tree' is blocked by policy." {
		t.Fatalf("unexpected result %q", result.Result)
	}
	for _, name := range registry.ToolNames() {
		if name == "tree" {
			t.Fatal("denied tool should not be advertised")
		}
	}

	registry, _ = newTestRegistry(t, WithPolicy(Policy{Allow: []string{"ls", "grep"}, Deny: []string{"grep"}}))
	if got := registry.ToolNames(); !reflect.DeepEqual(got, []string{"ls"}) {
		t.Fatalf("expected only ls, got %v", got)
	}
	if len(registry.OpenAITools()) != 1 {
		t.Fatal("expected a single OpenAI tool")
	}
}

func TestExecuteValidatesArguments(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name string
		tool string
		args map[string]interface{}
	}{
		{name: "grep without pattern", tool: "grep", args: map[string]interface{}{"paths": []interface{}{"a.txt"}}},
		{name: "grep without paths", tool: "grep", args: map[string]interface{}{"pattern": "x"}},
		{name: "grep with empty paths", tool: "grep", args: map[string]interface{}{"pattern": "x", "paths": []interface{}{}}},
		{name: "find without pattern", tool: "find", args: map[string]interface{}{"path": "."}},
		{name: "read_files without paths", tool: "read_files", args: map[string]interface{}{}},
		{name: "tree with fractional depth", tool: "tree", args: map[string]interface{}{"max_depth": 1.5}},
		{name: "ls with numeric path", tool: "ls", args: map[string]interface{}{"path": 12.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := registry.Execute(ctx, tt.tool, tt.args)
			if !errors.Is(result.Error, ErrInvalidArguments) {
				t.Fatalf("expected ErrInvalidArguments, got %v (%q)", result.Error, result.Result)
			}
			if !strings.HasPrefix(result.Result, "Error: invalid tool arguments") {
				t.Fatalf("unexpected result %q", result.Result)
			}
		})
	}
}

func TestExecuteRendersToolboxErrors(t *testing.T) {
	registry, root := newTestRegistry(t)
	writeTestFile(t, root, "a.txt", "alpha")
	ctx := context.Background()

	result := registry.Execute(ctx, "ls", map[string]interface{}{"path": "../.."})
	if !strings.HasPrefix(result.Result, "Error: Access denied. Path '../..' is outside the allowed directory.") {
		t.Fatalf("unexpected result %q", result.Result)
	}
	if result.Error == nil {
		t.Fatal("expected error to be kept on the result")
	}

	result = registry.Execute(ctx, "tree", map[string]interface{}{"max_depth": 0.0})
	if result.Result != "Error: max_depth must be at least 1." {
		t.Fatalf("unexpected result %q", result.Result)
	}

	result = registry.Execute(ctx, "read_files", map[string]interface{}{"paths": []interface{}{}})
	if result.Result != "Error: No file paths specified." {
		t.Fatalf("unexpected result %q", result.Result)
	}
}

func TestExecuteReadFilesAcceptsSingleString(t *testing.T) {
	registry, root := newTestRegistry(t)
	writeTestFile(t, root, "notes.txt", "hello")

	result := registry.Execute(context.Background(), "read_files", map[string]interface{}{"paths": "notes.txt"})
	if result.Error != nil {
		t.Fatalf("unexpected error %v", result.Error)
	}
	if result.Result != "notes.txt\n\nhello" {
		t.Fatalf("unexpected result %q", result.Result)
	}
}

func TestExecuteFindGrepTree(t *testing.T) {
	registry, root := newTestRegistry(t)
	writeTestFile(t, root, "src/Util.go", "package src\nfunc Helper() {}\n")
	writeTestFile(t, root, "src/util_test.go", "package src\n")
	ctx := context.Background()

	result := registry.Execute(ctx, "find", map[string]interface{}{"pattern": "util"})
	if result.Result != "src/Util.go\nsrc/util_test.go" {
		t.Fatalf("unexpected find result %q", result.Result)
	}

	result = registry.Execute(ctx, "grep", map[string]interface{}{"pattern": "Helper", "paths": []interface{}{"src/*.go"}})
	if !strings.Contains(result.Result, "src/Util.go:2:func Helper() {}") {
		t.Fatalf("unexpected grep result %q", result.Result)
	}

	result = registry.Execute(ctx, "tree", map[string]interface{}{"max_depth": 2.0, "include_files": true})
	if result.Result != ".\n└── src\n\n1 directory, 0 files" {
		t.Fatalf("unexpected tree result %q", result.Result)
	}
}

func TestExecuteAppliesOutputFilters(t *testing.T) {
	registry, root := newTestRegistry(t, WithOutputFilters(OutputFilterConfig{MaxChars: 60, StripANSI: true, StripControl: true}))
	writeTestFile(t, root, "color.txt", "\x1b[31mred\x1b[0m\x07")
	writeTestFile(t, root, "big.txt", strings.Repeat("x", 500))
	ctx := context.Background()

	result := registry.Execute(ctx, "read_files", map[string]interface{}{"paths": []interface{}{"color.txt"}})
	if result.Result != "color.txt\n\nred" {
		t.Fatalf("expected ANSI and control chars stripped, got %q", result.Result)
	}

	result = registry.Execute(ctx, "read_files", map[string]interface{}{"paths": []interface{}{"big.txt"}})
	if !result.Truncated {
		t.Fatal("expected truncated result")
	}
	if utf8.RuneCountInString(result.Result) > 60 || !strings.HasSuffix(result.Result, toolbox.TruncationMarker) {
		t.Fatalf("unexpected truncated result %q", result.Result)
	}
}

func TestDefaultTimeoutConfig(t *testing.T) {
	timeouts := DefaultTimeoutConfig()
	for _, name := range []string{"find", "grep", "tree"} {
		if got := timeouts.TimeoutForTool(name); got != time.Minute {
			t.Fatalf("expected 1m for %s, got %s", name, got)
		}
	}
	if got := timeouts.TimeoutForTool("ls"); got != 30*time.Second {
		t.Fatalf("expected default for ls, got %s", got)
	}
	if got := (TimeoutConfig{}).TimeoutForTool("ls"); got != 0 {
		t.Fatalf("expected no timeout, got %s", got)
	}
}

func TestExecuteTimeout(t *testing.T) {
	registry := NewRegistry(nil, WithTimeouts(TimeoutConfig{Default: 20 * time.Millisecond}))
	err := registry.RegisterTool(&ToolDefinition{
		NameValue: "slow",
		ExecuteFunc: func(ctx context.Context, args map[string]interface{}) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	result := registry.Execute(context.Background(), "slow", nil)
	if !errors.Is(result.Error, ErrToolTimeout) {
		t.Fatalf("expected ErrToolTimeout, got %v", result.Error)
	}
	if !strings.HasPrefix(result.Result, "Error: tool timed out: slow") {
		t.Fatalf("unexpected result %q", result.Result)
	}
}

func TestExecuteTagsUncodedErrors(t *testing.T) {
	registry, _ := newTestRegistry(t)
	err := registry.RegisterTool(&ToolDefinition{
		NameValue: "broken",
		ExecuteFunc: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "", errors.New("disk on fire")
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	ctx := context.Background()

	result := registry.Execute(ctx, "broken", nil)
	if result.Result != "Error: disk on fire" {
		t.Fatalf("unexpected result %q", result.Result)
	}
	if code := apperrors.CodeOf(result.Error); code != apperrors.CodeToolExecution {
		t.Fatalf("expected %s, got %q (%v)", apperrors.CodeToolExecution, code, result.Error)
	}
	if !strings.Contains(result.Error.Error(), "tool broken failed during execute") {
		t.Fatalf("unexpected error %v", result.Error)
	}

	result = registry.Execute(ctx, "ls", map[string]interface{}{"path": "../.."})
	if code := apperrors.CodeOf(result.Error); code != apperrors.CodeOutsideRoot {
		t.Fatalf("expected toolbox code to survive, got %q", code)
	}
}

func TestExecuteRateLimited(t *testing.T) {
	registry, _ := newTestRegistry(t, WithRateLimits(RateLimitConfig{PerTool: map[string]int{"ls": 1}}))
	ctx := context.Background()

	if result := registry.Execute(ctx, "ls", nil); result.Error != nil {
		t.Fatalf("first call failed: %v", result.Error)
	}
	result := registry.Execute(ctx, "ls", nil)
	if !errors.Is(result.Error, ErrToolRateLimited) {
		t.Fatalf("expected ErrToolRateLimited, got %v", result.Error)
	}
	if result := registry.Execute(ctx, "find", map[string]interface{}{"pattern": "x"}); result.Error != nil {
		t.Fatalf("other tools should not be limited: %v", result.Error)
	}
}

func TestRegisterToolRejectsDuplicatesAndIncompatible(t *testing.T) {
	registry, _ := newTestRegistry(t)
	if err := registry.RegisterTool(&ToolDefinition{NameValue: "ls"}); !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool, got %v", err)
	}
	if err := registry.RegisterTool(&ToolDefinition{NameValue: "future", VersionValue: "2.0.0"}); !errors.Is(err, ErrIncompatibleTool) {
		t.Fatalf("expected ErrIncompatibleTool, got %v", err)
	}
	if err := registry.RegisterTool(&ToolDefinition{}); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments, got %v", err)
	}
}

func TestExecuteOpenAIToolCall(t *testing.T) {
	registry, root := newTestRegistry(t)
	writeTestFile(t, root, "a.txt", "alpha")

	call := openai.ToolCall{
		ID:   "call-1",
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      "read_files",
			Arguments: `{"paths": ["a.txt"]}`,
		},
	}
	result := registry.ExecuteOpenAIToolCall(context.Background(), call)
	if result.Error != nil {
		t.Fatalf("expected no error, got: %v", result.Error)
	}
	if result.Result != "a.txt\n\nalpha" {
		t.Fatalf("unexpected result %q", result.Result)
	}
}

func TestExecuteOpenAIToolCallInvalidArgs(t *testing.T) {
	registry, _ := newTestRegistry(t)
	call := openai.ToolCall{
		ID:   "call-1",
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      "ls",
			Arguments: `{"path": `,
		},
	}
	result := registry.ExecuteOpenAIToolCall(context.Background(), call)
	if !errors.Is(result.Error, ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments, got %v", result.Error)
	}

	call.Function = openai.FunctionCall{Arguments: `{}`}
	result = registry.ExecuteOpenAIToolCall(context.Background(), call)
	if result.Error == nil || result.Function != "unknown_tool" {
		t.Fatalf("expected missing-name error, got %+v", result)
	}
}

func TestValidateToolCall(t *testing.T) {
	registry, _ := newTestRegistry(t)
	if res := registry.ValidateToolCall("find", `{"pattern":"x"}`); res != nil {
		t.Fatalf("expected valid call, got %+v", res)
	}
	if res := registry.ValidateToolCall("find", `{}`); res == nil || !errors.Is(res.Error, ErrInvalidArguments) {
		t.Fatalf("expected invalid arguments, got %+v", res)
	}
	if res := registry.ValidateToolCall("nope", `{}`); res == nil || !errors.Is(res.Error, ErrToolNotFound) {
		t.Fatalf("expected not found, got %+v", res)
	}
}
