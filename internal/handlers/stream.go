package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/arbipink/chat-service/internal/identity"
	"github.com/arbipink/chat-service/internal/services"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// StreamHandler pushes live state snapshots over a websocket: the client's
// stand-in for the UI's live subscriptions. Every state change delivers a
// fresh whole snapshot; the client replaces what it has.
type StreamHandler struct {
	sessions *services.SessionManager
	provider identity.Provider
	upgrader websocket.Upgrader
}

func NewStreamHandler(sessions *services.SessionManager, provider identity.Provider) *StreamHandler {
	return &StreamHandler{
		sessions: sessions,
		provider: provider,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browsers cannot set Authorization headers on websockets.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleStream upgrades the connection and streams snapshots. The token
// rides in the query string; an optional chat_id opens that thread first.
func (h *StreamHandler) HandleStream(c *gin.Context) {
	token := c.Query("token")
	if _, ok := h.provider.Verify(token); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	cs, ok := h.sessions.Get(c.Request.Context(), token)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	if chatID := c.Query("chat_id"); chatID != "" && cs.ActiveChatID() != chatID {
		if err := cs.OpenChat(c.Request.Context(), chatID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Reader only detects the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	// Initial snapshot, then one per change signal.
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(cs.Snapshot()); err != nil {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-cs.Changes():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(cs.Snapshot()); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
