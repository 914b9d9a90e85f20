package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/phasechime/internal/mcp/handlers"
)

func registerTools(s *server.MCPServer, deps *Deps) {
	// list_sessions: sessions the watcher is tracking
	s.AddTool(
		mcp.NewTool("list_sessions",
			mcp.WithDescription("List agent sessions seen under the watched brain directory with their current artifact phase."),
			mcp.WithString("phase",
				mcp.Description("Only list sessions in this phase"),
				mcp.Enum("all", "task", "implementation_plan", "walkthrough"),
			),
		),
		handlers.ListSessions(deps.Sessions),
	)

	// list_notifications: dispatcher decision history
	s.AddTool(
		mcp.NewTool("list_notifications",
			mcp.WithDescription("List recent dispatcher decisions, newest first, including suppressed events."),
			mcp.WithString("notification_id",
				mcp.Description("Only decisions for this notification id (first 8 characters of the session id)"),
			),
			mcp.WithBoolean("delivered_only",
				mcp.Description("If true, hide suppressed events"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of entries to return (default: 20)"),
			),
			mcp.WithString("since",
				mcp.Description("RFC 3339 datetime; only decisions after this time"),
			),
		),
		handlers.ListNotifications(deps.Journal),
	)
}
