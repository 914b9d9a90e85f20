package notify

import (
	"github.com/btouchard/phasechime/internal/hook"
)

// MCPSender abstracts the mcp-go server broadcast method.
// Defined consumer-side per Go convention.
type MCPSender interface {
	SendNotificationToAllClients(method string, params map[string]any)
}

// MCPNotifier forwards delivered events to every connected MCP client.
type MCPNotifier struct {
	sender MCPSender
}

// NewMCPNotifier creates an MCPNotifier backed by sender.
func NewMCPNotifier(sender MCPSender) *MCPNotifier {
	return &MCPNotifier{sender: sender}
}

// Notify broadcasts a notifications/message for the event.
func (n *MCPNotifier) Notify(event hook.Event) {
	params := map[string]any{
		"level":  "info",
		"logger": "phasechime",
		"data": map[string]any{
			"kind":            string(event.Kind),
			"notification_id": event.Key(),
			"cwd":             event.Cwd,
		},
	}
	n.sender.SendNotificationToAllClients("notifications/message", params)
}
