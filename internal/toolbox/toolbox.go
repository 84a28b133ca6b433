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

// Package toolbox implements read-only filesystem operations confined to a
// single root directory: listing, reading, name search, content search and
// tree rendering. Every operation returns either its text payload or a coded
// error from ox/internal/errors; Render turns both into the text handed back
// to the model.
package toolbox

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "ox/internal/errors"
	"ox/internal/paths"
)

// Backend selects how find and tree do their work.
type Backend string

const (
	// BackendNative walks the filesystem in-process.
	BackendNative Backend = "native"
	// BackendExternal delegates to the host's find/tree binaries.
	BackendExternal Backend = "external"
)

const (
	defaultMaxOutput      = 4096
	defaultGrepContext    = 2
	defaultCommandTimeout = 10 * time.Second
)

// Config tunes a Toolbox.
type Config struct {
	Limits         Limits
	FindBackend    Backend
	TreeBackend    Backend
	MaxOutput      int
	GrepContext    int
	CommandTimeout time.Duration
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Limits:         DefaultLimits(),
		FindBackend:    BackendNative,
		TreeBackend:    BackendNative,
		MaxOutput:      defaultMaxOutput,
		GrepContext:    defaultGrepContext,
		CommandTimeout: defaultCommandTimeout,
	}
}

func normalizeConfig(cfg Config) Config {
	cfg.Limits = normalizeLimits(cfg.Limits)
	if cfg.FindBackend != BackendExternal {
		cfg.FindBackend = BackendNative
	}
	if cfg.TreeBackend != BackendExternal {
		cfg.TreeBackend = BackendNative
	}
	if cfg.MaxOutput <= 0 {
		cfg.MaxOutput = defaultMaxOutput
	}
	if cfg.GrepContext < 0 {
		cfg.GrepContext = defaultGrepContext
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	return cfg
}

// Toolbox performs filesystem operations below a fixed root. It holds no
// mutable state and is safe for concurrent use.
type Toolbox struct {
	root string
	cfg  Config
	log  zerolog.Logger
}

// Option customizes a Toolbox.
type Option func(*Toolbox)

// WithLogger attaches a logger for operation tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Toolbox) {
		t.log = logger.With().Str("component", "toolbox").Logger()
	}
}

// New binds a Toolbox to root. The root is made absolute and has its
// symlinks resolved once here; it never changes afterwards.
func New(root string, cfg Config, opts ...Option) (*Toolbox, error) {
	resolved, err := paths.CanonicalRoot(root)
	if err != nil {
		return nil, err
	}
	t := &Toolbox{
		root: resolved,
		cfg:  normalizeConfig(cfg),
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log.Info().Str("root", t.root).Msg("toolbox initialized")
	return t, nil
}

// Root returns the sandbox root.
func (t *Toolbox) Root() string {
	return t.root
}

// Config returns the effective configuration.
func (t *Toolbox) Config() Config {
	return t.cfg
}

// Render converts an operation outcome into the text handed to the model.
// Coded errors read "Error: <message>", except an unavailable external tool,
// whose message stands on its own.
func Render(output string, err error) string {
	if err == nil {
		return output
	}
	if apperrors.HasCode(err, apperrors.CodeToolUnavailable) {
		return err.Error()
	}
	return "Error: " + err.Error()
}

func (t *Toolbox) resolve(path string) (string, error) {
	resolved, err := paths.Resolve(t.root, path)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeOutsideRoot) {
			t.log.Warn().Str("path", path).Msg("attempted access outside root")
		}
		return "", err
	}
	return resolved, nil
}

// statDir resolves path and requires it to be a directory.
func (t *Toolbox) statDir(path string) (string, error) {
	resolved, err := t.resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", statError(path, err)
	}
	if !info.IsDir() {
		return "", apperrors.Newf(apperrors.CodeNotADirectory, "Path '%s' is not a directory.", path)
	}
	return resolved, nil
}

func statError(path string, err error) error {
	switch {
	case os.IsNotExist(err):
		return apperrors.Newf(apperrors.CodeNotFound, "Path '%s' does not exist.", path)
	case os.IsPermission(err):
		return apperrors.Newf(apperrors.CodePermission, "Permission denied to access '%s'.", path)
	default:
		return apperrors.Wrap(apperrors.CodeToolExecution, fmt.Sprintf("Could not access '%s'", path), err)
	}
}

func ensureContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func defaultPath(path string) string {
	if strings.TrimSpace(path) == "" {
		return "."
	}
	return path
}
