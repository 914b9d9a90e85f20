package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/phasechime/internal/store"
)

// NotificationLister reads the notification journal.
type NotificationLister interface {
	ListNotifications(f store.NotificationFilter) ([]store.NotificationRecord, error)
}

// ListNotifications returns a handler that lists dispatcher decisions,
// newest first.
func ListNotifications(journal NotificationLister) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if journal == nil {
			return mcp.NewToolResultError("notification journal is disabled"), nil
		}

		args := req.GetArguments()

		filter := store.NotificationFilter{
			Limit: 20,
		}

		if id, ok := args["notification_id"].(string); ok {
			filter.NotificationID = id
		}
		if delivered, ok := args["delivered_only"].(bool); ok {
			filter.DeliveredOnly = delivered
		}
		if limit, ok := args["limit"].(float64); ok && limit > 0 {
			filter.Limit = int(limit)
		}
		if since, ok := args["since"].(string); ok && since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid since %q: expected RFC 3339", since)), nil
			}
			filter.Since = t
		}

		records, err := journal.ListNotifications(filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing notifications: %s", err)), nil
		}

		if len(records) == 0 {
			return mcp.NewToolResultText("No notifications found matching the given filters."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "🔔 Notifications (%d found)\n\n", len(records))

		for _, r := range records {
			fmt.Fprintf(&sb, "%s **%s** %s: %s\n", decisionIcon(r.Delivered), r.NotificationID, r.Kind, r.Reason)
			fmt.Fprintf(&sb, "  At: %s\n", r.CreatedAt.Local().Format(time.DateTime))
			if r.Cwd != "" {
				fmt.Fprintf(&sb, "  Dir: %s\n", r.Cwd)
			}
			sb.WriteString("\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func decisionIcon(delivered bool) string {
	if delivered {
		return "✅"
	}
	return "🔇"
}
