package ws

// Client-to-server frame protocol: the only inbound frames are keepalive
// pings. Server-to-client traffic is either a pong/error frame or a
// services.Notification serialized as-is.
const (
	frameTypePing  = "ping"
	frameTypePong  = "pong"
	frameTypeError = "error"
)

type frame struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}
