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
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"ox/internal/chat"
	"ox/internal/config"
	"ox/internal/mcpserver"
	"ox/internal/theme"
	"ox/internal/toolbox"
	"ox/internal/tools"
	"ox/internal/ui"
)

type runOptions struct {
	WorkDir    string
	ConfigPath string
	Model      string
	Quiet      bool
	Debug      bool
	MCP        bool
	Args       []string
}

// newChatSession is replaced in tests to avoid network calls.
var newChatSession = func(cfg *config.Config, registry *tools.Registry, logger zerolog.Logger) (*chat.Session, error) {
	return chat.NewSession(cfg, registry, chat.WithLogger(logger))
}

type app struct {
	cfg      *config.Config
	box      *toolbox.Toolbox
	registry *tools.Registry
	log      zerolog.Logger
}

func run(ctx context.Context, opts runOptions, stdin io.Reader, stdout, stderr io.Writer, logger zerolog.Logger) int {
	a, err := newApp(opts, logger)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	interactive := !opts.MCP && len(opts.Args) == 0 && isTerminal(stdin)
	if !interactive {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	if opts.MCP {
		srv, err := mcpserver.New(a.registry, Version, mcpserver.WithLogger(logger))
		if err == nil {
			err = srv.Serve(ctx, stdin, stdout)
		}
		if err != nil && ctx.Err() == nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	session, err := newChatSession(a.cfg, a.registry, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create chat session")
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	switch {
	case interactive:
		console := newConsole(a.cfg, stdout, true, logger)
		err = runREPL(ctx, a, session, console, opts.Debug)
	case len(opts.Args) > 0 && opts.Args[0] != "-":
		err = answerOnce(ctx, session, strings.Join(opts.Args, " "), stdout, eventConsole(a.cfg, stderr, opts.Quiet, logger))
	default:
		err = runBatch(ctx, session, stdin, stdout, eventConsole(a.cfg, stderr, opts.Quiet, logger))
	}
	if err != nil {
		logger.Error().Err(err).Msg("session failed")
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newApp(opts runOptions, logger zerolog.Logger) (*app, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultConfigFile
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.WorkDir != "" {
		cfg.WorkDir = opts.WorkDir
	}
	if opts.Model != "" {
		cfg.Model = opts.Model
	}

	root, err := cfg.ResolveWorkDir()
	if err != nil {
		return nil, err
	}
	box, err := toolbox.New(root, cfg.ToolboxConfig(), toolbox.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("invalid working directory: %w", err)
	}
	registry := tools.NewRegistry(box, append(cfg.RegistryOptions(), tools.WithLogger(logger))...)

	for _, warning := range cfg.Validate(registry) {
		logger.Warn().Str("field", warning.Field).Msg(warning.Message)
	}

	return &app{cfg: cfg, box: box, registry: registry, log: logger}, nil
}

// newConsole builds a console for out, with colors only on a terminal and
// when NO_COLOR is unset.
func newConsole(cfg *config.Config, out io.Writer, animate bool, logger zerolog.Logger) *ui.Console {
	tty := isTerminal(out)
	noColor := os.Getenv("NO_COLOR") != "" || !tty
	mgr, err := theme.NewManager(cfg.ThemeFile, noColor)
	if err != nil {
		logger.Warn().Err(err).Msg("falling back to default theme")
		mgr = theme.NewManagerWithTheme(theme.DefaultTheme(), noColor)
	}
	return ui.NewConsole(out, mgr.ColorScheme(), ui.WithStatusAnimation(animate && tty))
}

func eventConsole(cfg *config.Config, out io.Writer, quiet bool, logger zerolog.Logger) *ui.Console {
	if quiet {
		return nil
	}
	return newConsole(cfg, out, false, logger)
}

func isTerminal(v interface{}) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
