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
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	workDir    = flag.String("C", "", "Directory to explore (default: work_dir from config, else the current directory)")
	configPath = flag.String("config", "", "Configuration file, JSON or YAML (default: ox.json)")
	modelName  = flag.String("m", "", "Model to use instead of the configured one")
	quiet      = flag.Bool("q", false, "Print only the final answer in batch and one-shot mode")
	debugMode  = flag.Bool("d", false, "Enable debug mode")
	logFile    = flag.String("log-file", "", "Log file path (logs disabled by default)")
	mcpMode    = flag.Bool("mcp", false, "Serve the filesystem tools over MCP on stdin/stdout")
	version    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: ox [flags] [question... | -]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Without a question ox starts an interactive session. With '-' or a\n")
		fmt.Fprintf(flag.CommandLine.Output(), "non-terminal stdin the question is read from stdin.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		fmt.Println(Version)
		return
	}

	logger, closer, err := initLogger(*debugMode, *logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger.Info().Str("version", Version).Msg("ox starting")

	code := run(context.Background(), runOptions{
		WorkDir:    *workDir,
		ConfigPath: *configPath,
		Model:      *modelName,
		Quiet:      *quiet,
		Debug:      *debugMode,
		MCP:        *mcpMode,
		Args:       flag.Args(),
	}, os.Stdin, os.Stdout, os.Stderr, logger)

	if closer != nil {
		_ = closer.Close()
	}
	os.Exit(code)
}

func initLogger(debug bool, logFilePath string) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	// No logging to the console by default; it would mix with the conversation.
	var output io.Writer = io.Discard
	var closer io.Closer
	if logFilePath != "" {
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		closer = file
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger(), closer, nil
}
