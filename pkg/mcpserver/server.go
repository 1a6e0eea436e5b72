// Package mcpserver exposes the Studio tool set over the Model Context
// Protocol. The stdio transport carries the agent conversation, so nothing
// in this package may write to stdout.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/harun/studiobridge/pkg/toolcall"
)

const serverVersion = "0.1.0"

// Server hosts the MCP server bound to a tool registry.
type Server struct {
	mcpServer *mcp.Server
	registry  *toolcall.Registry
	logger    zerolog.Logger
}

// New creates an MCP server with every Studio tool registered.
func New(name string, registry *toolcall.Registry, logger zerolog.Logger) (*Server, error) {
	if name == "" {
		name = "studiobridge"
	}
	if registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: name, Version: serverVersion}, &mcp.ServerOptions{})

	mcp.AddTool(mcpServer, runScriptTool(), RunScriptHandler(registry))
	mcp.AddTool(mcpServer, insertInstanceTool(), InsertInstanceHandler(registry))
	mcp.AddTool(mcpServer, editScriptTool(), EditScriptHandler(registry))
	mcp.AddTool(mcpServer, getScriptTool(), GetScriptHandler(registry))
	mcp.AddTool(mcpServer, setPropertyTool(), SetPropertyHandler(registry))
	mcp.AddTool(mcpServer, listChildrenTool(), ListChildrenHandler(registry))
	mcp.AddTool(mcpServer, deleteInstanceTool(), DeleteInstanceHandler(registry))
	mcp.AddTool(mcpServer, moveInstanceTool(), MoveInstanceHandler(registry))
	mcp.AddTool(mcpServer, insertFreeModelTool(), InsertFreeModelHandler(registry))

	logger.Info().
		Str("name", name).
		Str("version", serverVersion).
		Int("tools", registry.Count()).
		Msg("MCP server created")

	return &Server{
		mcpServer: mcpServer,
		registry:  registry,
		logger:    logger,
	}, nil
}

// Run serves the MCP session over stdio until the context is cancelled or
// the agent disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info().Msg("Serving MCP over stdio")
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server stopped: %w", err)
	}
	return nil
}
