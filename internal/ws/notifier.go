package ws

import (
	"github.com/accordhq/go-accord-backend/internal/services"
)

// HubNotifier adapts the hub to the service layer's Notifier contract.
// Notification payloads hit the wire exactly as the service built them.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier wraps hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// Publish implements services.Notifier.
func (n *HubNotifier) Publish(topic string, note services.Notification) {
	n.hub.Broadcast(topic, note)
}
