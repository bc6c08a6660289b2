package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBufSize  = 64
)

// Client is one WebSocket connection, pinned to a single conflict topic for
// its whole lifetime. The subscription is fixed at upgrade time because the
// endpoint is per conflict and access was already checked there.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	topic  string

	send chan []byte
	done chan struct{}
}

// NewClient wraps an accepted connection for userID on topic.
func NewClient(hub *Hub, conn *websocket.Conn, userID, topic string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		topic:  topic,
		send:   make(chan []byte, sendBufSize),
		done:   make(chan struct{}),
	}
}

// ReadPump consumes inbound frames until the peer goes away. The only
// client-initiated frame is an application-level ping; anything else is
// answered with an error frame and ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.detach(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var f frame
		if err := wsjson.Read(context.Background(), c.conn, &f); err != nil {
			if websocket.CloseStatus(err) == -1 {
				log.Debug().Err(err).Str("user_id", c.userID).Msg("ws read failed")
			}
			return
		}
		switch f.Type {
		case frameTypePing:
			c.enqueue(frame{Type: frameTypePong})
		default:
			c.enqueue(frame{Type: frameTypeError, Message: "unknown frame type: " + f.Type})
		}
	}
}

// WritePump drains the send buffer to the socket and keeps the connection
// alive with protocol pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case data := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// enqueue offers a frame to the send buffer without ever blocking the read
// loop. Dropped clients are skipped; only the hub closes done, and send is
// never closed, so this is safe against concurrent teardown.
func (c *Client) enqueue(f frame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- data:
	default:
	}
}
