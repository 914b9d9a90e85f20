package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/phasechime/internal/mcp/handlers"
)

// Deps holds shared dependencies injected into MCP handlers.
// Either may be nil; the matching tool then reports itself unavailable.
type Deps struct {
	Sessions handlers.SessionLister
	Journal  handlers.NotificationLister
	Version  string
}

// NewServer creates and configures the MCP server with all tools registered.
func NewServer(deps *Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"phasechime",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	registerTools(s, deps)

	return s
}
