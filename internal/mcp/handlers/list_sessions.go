package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/phasechime/internal/artifact"
	"github.com/btouchard/phasechime/internal/tracker"
)

// SessionLister exposes the tracker's session snapshot.
type SessionLister interface {
	Sessions() []tracker.Session
}

// ListSessions returns a handler that lists the sessions the watcher is
// tracking and their current phase.
func ListSessions(sessions SessionLister) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if sessions == nil {
			return mcp.NewToolResultError("session tracking is not available in this process"), nil
		}

		args := req.GetArguments()
		phase, _ := args["phase"].(string)

		var matched []tracker.Session
		for _, s := range sessions.Sessions() {
			if phase != "" && phase != "all" && string(s.Phase) != phase {
				continue
			}
			matched = append(matched, s)
		}

		if len(matched) == 0 {
			return mcp.NewToolResultText("No sessions tracked."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "📂 Sessions (%d tracked)\n\n", len(matched))

		for _, s := range matched {
			fmt.Fprintf(&sb, "%s **%s** %s\n", phaseIcon(s.Phase), s.ID, phaseLabel(s.Phase))
			fmt.Fprintf(&sb, "  Last seen: %s\n\n", s.LastSeen.Local().Format(time.DateTime))
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func phaseLabel(p artifact.Phase) string {
	if p == artifact.PhaseNone {
		return "none"
	}
	return string(p)
}

func phaseIcon(p artifact.Phase) string {
	switch p {
	case artifact.PhaseTask:
		return "📝"
	case artifact.PhaseImplementationPlan:
		return "🛠"
	case artifact.PhaseWalkthrough:
		return "✅"
	default:
		return "❓"
	}
}
