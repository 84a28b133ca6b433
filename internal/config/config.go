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

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "ox/internal/errors"
	"ox/internal/toolbox"
	"ox/internal/tools"
)

const (
	defaultModel              = "gpt-4o-mini"
	defaultAPIURL             = "https://api.openai.com/v1"
	dashScopeAPIURL           = "https://dashscope-intl.aliyuncs.com/compatible-mode/v1"
	defaultCommandHistoryFile = ".ox_history"
	defaultMaxToolRounds      = 25
)

// DefaultConfigFile is the file looked up in the working directory when no
// -config flag is given.
const DefaultConfigFile = "ox.json"

// Config represents the application configuration
type Config struct {
	APIKey             string            `json:"api_key"`
	APIURL             string            `json:"api_url,omitempty"`
	Model              string            `json:"model"`
	Temperature        *float32          `json:"temperature,omitempty"`
	MaxTokens          *int              `json:"max_tokens,omitempty"`
	WorkDir            string            `json:"work_dir,omitempty"`
	MaxToolRounds      int               `json:"max_tool_rounds,omitempty"`
	CommandHistoryFile string            `json:"command_history_file,omitempty"`
	ThemeFile          string            `json:"theme_file,omitempty"`
	Tools              ToolSettings      `json:"tools,omitempty"`
	ToolLimits         ToolLimits        `json:"tool_limits,omitempty"`
	ToolRateLimits     ToolRateLimits    `json:"tool_rate_limits,omitempty"`
	ToolTimeouts       ToolTimeouts      `json:"tool_timeouts,omitempty"`
	ToolOutputFilters  ToolOutputFilters `json:"tool_output_filters,omitempty"`
	Toolbox            ToolboxSettings   `json:"toolbox,omitempty"`
}

// ToolSettings describes tool allow/deny lists.
type ToolSettings struct {
	Allow []string `json:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty"`
}

// ToolLimits configures resource limits for tool execution.
type ToolLimits struct {
	MaxFileSizeBytes    int64 `json:"max_file_size_bytes,omitempty"`
	MaxDirectoryDepth   int   `json:"max_directory_depth,omitempty"`
	MaxDirectoryEntries int   `json:"max_directory_entries,omitempty"`
}

// ToolRateLimits configures tool rate limits and cooldowns.
type ToolRateLimits struct {
	DefaultPerMinute int            `json:"default_per_minute,omitempty"`
	PerTool          map[string]int `json:"per_tool,omitempty"`
	CooldownSeconds  map[string]int `json:"cooldown_seconds,omitempty"`
}

// ToolTimeouts configures tool execution timeouts.
type ToolTimeouts struct {
	DefaultSeconds int            `json:"default_seconds,omitempty"`
	PerToolSeconds map[string]int `json:"per_tool_seconds,omitempty"`
}

// ToolOutputFilters configures output sanitization for tool results.
type ToolOutputFilters struct {
	MaxChars     int  `json:"max_chars,omitempty"`
	StripANSI    bool `json:"strip_ansi,omitempty"`
	StripControl bool `json:"strip_control,omitempty"`
}

// ToolboxSettings configures the filesystem toolbox backends and bounds.
type ToolboxSettings struct {
	SearchBackend         string `json:"search_backend,omitempty"`
	TreeBackend           string `json:"tree_backend,omitempty"`
	MaxOutput             int    `json:"max_output,omitempty"`
	GrepContext           *int   `json:"grep_context,omitempty"`
	CommandTimeoutSeconds int    `json:"command_timeout_seconds,omitempty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	limits := toolbox.DefaultLimits()
	box := toolbox.DefaultConfig()
	timeouts := tools.DefaultTimeoutConfig()
	filters := tools.DefaultOutputFilterConfig()

	perToolSeconds := make(map[string]int, len(timeouts.PerTool))
	for name, timeout := range timeouts.PerTool {
		perToolSeconds[name] = int(timeout.Seconds())
	}
	grepContext := box.GrepContext

	return &Config{
		Model:              defaultModel,
		APIURL:             defaultAPIURL,
		MaxToolRounds:      defaultMaxToolRounds,
		CommandHistoryFile: defaultCommandHistoryFile,
		ToolLimits: ToolLimits{
			MaxFileSizeBytes:    limits.MaxFileSizeBytes,
			MaxDirectoryDepth:   limits.MaxDirectoryDepth,
			MaxDirectoryEntries: limits.MaxDirectoryEntries,
		},
		ToolRateLimits: ToolRateLimits{
			DefaultPerMinute: tools.DefaultRateLimitConfig().DefaultPerMinute,
		},
		ToolTimeouts: ToolTimeouts{
			DefaultSeconds: int(timeouts.Default.Seconds()),
			PerToolSeconds: perToolSeconds,
		},
		ToolOutputFilters: ToolOutputFilters{
			MaxChars:     filters.MaxChars,
			StripANSI:    filters.StripANSI,
			StripControl: filters.StripControl,
		},
		Toolbox: ToolboxSettings{
			SearchBackend:         string(box.FindBackend),
			TreeBackend:           string(box.TreeBackend),
			MaxOutput:             box.MaxOutput,
			GrepContext:           &grepContext,
			CommandTimeoutSeconds: int(box.CommandTimeout.Seconds()),
		},
	}
}

// LoadConfig loads configuration from a JSON or YAML file, then applies
// .env and environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeConfig, "could not read config file", err)
			}
			normalized, err := normalizeConfigData(data, isYAMLPath(path))
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeConfig, fmt.Sprintf("invalid config file %s", path), err)
			}
			if err := json.Unmarshal(normalized, config); err != nil {
				return nil, apperrors.Wrap(apperrors.CodeConfig, fmt.Sprintf("invalid config file %s", path), err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.Wrap(apperrors.CodeConfig, "could not stat config file", err)
		}
	}

	dotenv, err := readDotEnv(dotEnvCandidates(path)...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfig, "could not read .env file", err)
	}
	config.applyEnv(func(key string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return dotenv[key]
	})

	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.APIURL == "" {
		config.APIURL = defaultAPIURL
	}
	if config.MaxToolRounds <= 0 {
		config.MaxToolRounds = defaultMaxToolRounds
	}

	return config, nil
}

func isYAMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func dotEnvCandidates(configPath string) []string {
	candidates := []string{".env"}
	if configPath != "" {
		if dir := filepath.Dir(configPath); dir != "." {
			candidates = append(candidates, filepath.Join(dir, ".env"))
		}
	}
	return candidates
}

// readDotEnv merges the given .env files without touching the process
// environment. Earlier files win; missing files are skipped.
func readDotEnv(files ...string) (map[string]string, error) {
	merged := map[string]string{}
	for _, file := range files {
		values, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for key, val := range values {
			if _, ok := merged[key]; !ok {
				merged[key] = val
			}
		}
	}
	return merged, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if val := getenv("OPENAI_API_KEY"); val != "" {
		c.APIKey = val
	} else if val := getenv("DASHSCOPE_API_KEY"); val != "" {
		c.APIKey = val
		if c.APIURL == defaultAPIURL {
			c.APIURL = dashScopeAPIURL
		}
	}
	if val := getenv("OPENAI_API_URL"); val != "" {
		c.APIURL = val
	}
	if val := getenv("OX_MODEL"); val != "" {
		c.Model = val
	}
	if val := getenv("OX_WORK_DIR"); val != "" {
		c.WorkDir = val
	} else if val := getenv("WORK_DIR"); val != "" {
		c.WorkDir = val
	}
}

// RequireAPIKey reports an error when no API key is configured. Only the
// chat modes need one.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return apperrors.New(apperrors.CodeConfig, "API key is required (set api_key in ox.json or OPENAI_API_KEY/DASHSCOPE_API_KEY)")
	}
	return nil
}

// ResolveWorkDir returns the sandbox root: the configured work_dir, or the
// current directory when none is set.
func (c *Config) ResolveWorkDir() (string, error) {
	if c.WorkDir != "" {
		return c.WorkDir, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeConfig, "could not determine working directory", err)
	}
	return dir, nil
}

// ToolPolicy converts config settings into a tool policy.
func (c *Config) ToolPolicy() tools.Policy {
	return tools.Policy{
		Allow: append([]string(nil), c.Tools.Allow...),
		Deny:  append([]string(nil), c.Tools.Deny...),
	}
}

// ToolLimitsConfig returns tool limits for runtime enforcement.
func (c *Config) ToolLimitsConfig() toolbox.Limits {
	return toolbox.Limits{
		MaxFileSizeBytes:    c.ToolLimits.MaxFileSizeBytes,
		MaxDirectoryDepth:   c.ToolLimits.MaxDirectoryDepth,
		MaxDirectoryEntries: c.ToolLimits.MaxDirectoryEntries,
	}
}

// ToolboxConfig returns the toolbox configuration.
func (c *Config) ToolboxConfig() toolbox.Config {
	cfg := toolbox.DefaultConfig()
	cfg.Limits = c.ToolLimitsConfig()
	cfg.FindBackend = parseBackend(c.Toolbox.SearchBackend)
	cfg.TreeBackend = parseBackend(c.Toolbox.TreeBackend)
	if c.Toolbox.MaxOutput > 0 {
		cfg.MaxOutput = c.Toolbox.MaxOutput
	}
	if c.Toolbox.GrepContext != nil {
		cfg.GrepContext = *c.Toolbox.GrepContext
	}
	if c.Toolbox.CommandTimeoutSeconds > 0 {
		cfg.CommandTimeout = time.Duration(c.Toolbox.CommandTimeoutSeconds) * time.Second
	}
	return cfg
}

func parseBackend(value string) toolbox.Backend {
	if strings.EqualFold(strings.TrimSpace(value), string(toolbox.BackendExternal)) {
		return toolbox.BackendExternal
	}
	return toolbox.BackendNative
}

// ToolRateLimitsConfig returns rate limiting configuration for tools.
func (c *Config) ToolRateLimitsConfig() tools.RateLimitConfig {
	cooldowns := make(map[string]time.Duration, len(c.ToolRateLimits.CooldownSeconds))
	for name, seconds := range c.ToolRateLimits.CooldownSeconds {
		if seconds <= 0 {
			continue
		}
		cooldowns[name] = time.Duration(seconds) * time.Second
	}
	perTool := make(map[string]int, len(c.ToolRateLimits.PerTool))
	for name, rate := range c.ToolRateLimits.PerTool {
		perTool[name] = rate
	}

	return tools.RateLimitConfig{
		DefaultPerMinute: c.ToolRateLimits.DefaultPerMinute,
		PerTool:          perTool,
		Cooldowns:        cooldowns,
	}
}

// ToolTimeoutsConfig returns timeout configuration for tools.
func (c *Config) ToolTimeoutsConfig() tools.TimeoutConfig {
	perTool := make(map[string]time.Duration, len(c.ToolTimeouts.PerToolSeconds))
	for name, seconds := range c.ToolTimeouts.PerToolSeconds {
		if seconds <= 0 {
			continue
		}
		perTool[name] = time.Duration(seconds) * time.Second
	}

	var defaultTimeout time.Duration
	if c.ToolTimeouts.DefaultSeconds > 0 {
		defaultTimeout = time.Duration(c.ToolTimeouts.DefaultSeconds) * time.Second
	}

	return tools.TimeoutConfig{
		Default: defaultTimeout,
		PerTool: perTool,
	}
}

// ToolOutputFiltersConfig returns output filter configuration for tools.
func (c *Config) ToolOutputFiltersConfig() tools.OutputFilterConfig {
	return tools.OutputFilterConfig{
		MaxChars:     c.ToolOutputFilters.MaxChars,
		StripANSI:    c.ToolOutputFilters.StripANSI,
		StripControl: c.ToolOutputFilters.StripControl,
	}
}

// RegistryOptions returns the registry options derived from the config.
func (c *Config) RegistryOptions() []tools.Option {
	return []tools.Option{
		tools.WithPolicy(c.ToolPolicy()),
		tools.WithTimeouts(c.ToolTimeoutsConfig()),
		tools.WithOutputFilters(c.ToolOutputFiltersConfig()),
		tools.WithRateLimits(c.ToolRateLimitsConfig()),
	}
}

// ValidationWarning represents a non-fatal configuration issue
type ValidationWarning struct {
	Field   string
	Message string
}

// Validate checks the configuration for common issues and returns warnings
func (c *Config) Validate(registry *tools.Registry) []ValidationWarning {
	var warnings []ValidationWarning

	// OpenAI expects 0-2
	if c.Temperature != nil {
		temp := *c.Temperature
		if temp < 0 || temp > 2 {
			warnings = append(warnings, ValidationWarning{
				Field:   "temperature",
				Message: fmt.Sprintf("temperature %.2f is outside recommended range [0, 2]", temp),
			})
		}
	}

	if c.MaxTokens != nil {
		tokens := *c.MaxTokens
		if tokens <= 0 {
			warnings = append(warnings, ValidationWarning{
				Field:   "max_tokens",
				Message: fmt.Sprintf("max_tokens %d must be positive", tokens),
			})
		}
		if tokens > 128000 {
			warnings = append(warnings, ValidationWarning{
				Field:   "max_tokens",
				Message: fmt.Sprintf("max_tokens %d exceeds typical model limits", tokens),
			})
		}
	}

	if registry != nil {
		for _, toolName := range c.Tools.Allow {
			if !registry.HasTool(toolName) {
				warnings = append(warnings, ValidationWarning{
					Field:   "tools.allow",
					Message: fmt.Sprintf("tool %q in allow list is not registered", toolName),
				})
			}
		}
		for _, toolName := range c.Tools.Deny {
			if !registry.HasTool(toolName) {
				warnings = append(warnings, ValidationWarning{
					Field:   "tools.deny",
					Message: fmt.Sprintf("tool %q in deny list is not registered", toolName),
				})
			}
		}
	}

	for field, value := range map[string]string{
		"toolbox.search_backend": c.Toolbox.SearchBackend,
		"toolbox.tree_backend":   c.Toolbox.TreeBackend,
	} {
		if value == "" {
			continue
		}
		if !strings.EqualFold(value, string(toolbox.BackendNative)) && !strings.EqualFold(value, string(toolbox.BackendExternal)) {
			warnings = append(warnings, ValidationWarning{
				Field:   field,
				Message: fmt.Sprintf("unknown backend %q, using native", value),
			})
		}
	}

	if c.Toolbox.GrepContext != nil && *c.Toolbox.GrepContext < 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "toolbox.grep_context",
			Message: fmt.Sprintf("grep_context %d is negative, using default", *c.Toolbox.GrepContext),
		})
	}

	if c.MaxToolRounds <= 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "max_tool_rounds",
			Message: fmt.Sprintf("max_tool_rounds %d should be positive, using default", c.MaxToolRounds),
		})
	}

	return warnings
}
