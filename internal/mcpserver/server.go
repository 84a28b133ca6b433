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

// Package mcpserver exposes the tool registry to MCP clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"ox/internal/tools"
)

// ServerName is the implementation name announced during initialize.
const ServerName = "ox"

// Server serves the allowed tools of a registry.
type Server struct {
	registry *tools.Registry
	mcp      *server.MCPServer
	log      zerolog.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.log = logger.With().Str("component", "mcp").Logger()
	}
}

// New registers every tool the registry policy allows.
func New(registry *tools.Registry, version string, opts ...Option) (*Server, error) {
	s := &Server{
		registry: registry,
		mcp:      server.NewMCPServer(ServerName, version, server.WithToolCapabilities(false)),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, tool := range registry.Describe() {
		params := tool.Parameters()
		if params == nil {
			params = map[string]interface{}{"type": "object"}
		}
		schema, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode schema for tool %s: %w", tool.Name(), err)
		}
		s.mcp.AddTool(mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema), s.handler(tool.Name()))
	}
	s.log.Debug().Strs("tools", registry.ToolNames()).Msg("mcp tools registered")
	return s, nil
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := s.registry.Execute(ctx, name, request.GetArguments())
		if result.Error != nil {
			s.log.Debug().Str("tool", name).Err(result.Error).Msg("tool call failed")
			return mcp.NewToolResultError(result.Result), nil
		}
		return mcp.NewToolResultText(result.Result), nil
	}
}

// Serve answers JSON-RPC messages read from in until ctx is done or in is
// closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.log.Info().Msg("mcp server listening on stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// HandleMessage processes a single JSON-RPC message.
func (s *Server) HandleMessage(ctx context.Context, raw json.RawMessage) mcp.JSONRPCMessage {
	return s.mcp.HandleMessage(ctx, raw)
}
