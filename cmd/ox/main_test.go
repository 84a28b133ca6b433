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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitLoggerWithFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "ox.log")

	logger, closer, err := initLogger(false, logFile)
	if err != nil {
		t.Fatalf("initLogger failed: %v", err)
	}
	logger.Info().Msg("kept")
	logger.Debug().Msg("dropped")
	if closer == nil {
		t.Fatal("expected a closer for the log file")
	}
	_ = closer.Close()

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "kept") {
		t.Error("expected info message in log file")
	}
	if strings.Contains(string(content), "dropped") {
		t.Error("debug message should be filtered without -d")
	}
}

func TestInitLoggerDebugLevel(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "ox.log")
	logger, closer, err := initLogger(true, logFile)
	if err != nil {
		t.Fatalf("initLogger failed: %v", err)
	}
	logger.Debug().Msg("visible")
	_ = closer.Close()

	content, _ := os.ReadFile(logFile)
	if !strings.Contains(string(content), "visible") {
		t.Error("expected debug message with -d")
	}
}

func TestInitLoggerDefaultOutput(t *testing.T) {
	logger, closer, err := initLogger(false, "")
	if err != nil {
		t.Fatalf("initLogger failed: %v", err)
	}
	if closer != nil {
		t.Error("expected no closer without a log file")
	}
	logger.Info().Msg("This should be discarded")
}

func TestInitLoggerBadPath(t *testing.T) {
	if _, _, err := initLogger(false, filepath.Join(t.TempDir(), "missing", "ox.log")); err == nil {
		t.Fatal("expected error for unwritable log path")
	}
}

func TestFlagsDefined(t *testing.T) {
	for name, flag := range map[string]interface{}{
		"C": workDir, "config": configPath, "m": modelName, "q": quiet,
		"d": debugMode, "log-file": logFile, "mcp": mcpMode, "version": version,
	} {
		if flag == nil {
			t.Errorf("flag -%s should be defined", name)
		}
	}
	if Version == "" {
		t.Error("Version variable should not be empty")
	}
}
