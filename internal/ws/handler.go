package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"

	"github.com/accordhq/go-accord-backend/internal/services"
)

// AccessChecker gates WebSocket subscriptions. The negotiation service
// satisfies it: Get already merges not-found and access-denied, so a failed
// check leaks nothing about the conflict's existence.
type AccessChecker interface {
	Get(ctx context.Context, userID, slug string) (*services.ConflictView, error)
}

// ServeWS upgrades GET /ws/conflicts/:slug to a WebSocket subscribed to the
// conflict's topic. The caller must be an authenticated, visible participant;
// identity comes from upstream middleware with a header/query fallback
// (browsers cannot set headers on WebSocket upgrades).
func ServeWS(hub *Hub, access AccessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := wsUserID(c)
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing user identity"})
			return
		}

		slug := c.Param("slug")
		if _, err := access.Get(c.Request.Context(), uid, slug); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, services.ErrConflictNotFound) {
				status = http.StatusNotFound
			}
			c.AbortWithStatusJSON(status, gin.H{"message": "conflict not found"})
			return
		}

		conn, err := websocket.Accept(c.Writer, c.Request, nil)
		if err != nil {
			log.Debug().Err(err).Str("slug", slug).Msg("ws accept failed")
			return
		}

		client := NewClient(hub, conn, uid, services.TopicFor(slug))
		if !hub.attach(client) {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}

// wsUserID mirrors the HTTP layer's identity extraction, plus a query-param
// fallback for browser WebSocket clients.
func wsUserID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
		return h
	}
	return strings.TrimSpace(c.Query("user"))
}
