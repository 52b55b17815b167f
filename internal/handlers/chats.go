package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arbipink/chat-service/internal/models"
	"github.com/arbipink/chat-service/internal/services"
	"github.com/arbipink/chat-service/internal/store"
)

type ChatHandler struct {
	sessions *services.SessionManager
}

func NewChatHandler(sessions *services.SessionManager) *ChatHandler {
	return &ChatHandler{sessions: sessions}
}

// session resolves the caller's live chat store or writes a 401.
func (h *ChatHandler) session(c *gin.Context) (*store.ChatStore, bool) {
	token := c.GetString("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	cs, ok := h.sessions.Get(c.Request.Context(), token)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return nil, false
	}
	return cs, true
}

// GetChats returns the caller's inbox, newest conversation first
func (h *ChatHandler) GetChats(c *gin.Context) {
	cs, ok := h.session(c)
	if !ok {
		return
	}

	snap := cs.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"chats":        snap.Chats,
		"activeChatId": snap.ActiveChatID,
	})
}

// StartChat activates the room shared with the target email, creating it
// when none exists
func (h *ChatHandler) StartChat(c *gin.Context) {
	cs, ok := h.session(c)
	if !ok {
		return
	}

	var req models.StartChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chatID, err := cs.StartChat(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrSelfChat) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"chatId": chatID})
}

// OpenChat sets or clears the active room
func (h *ChatHandler) OpenChat(c *gin.Context) {
	cs, ok := h.session(c)
	if !ok {
		return
	}

	var req models.OpenChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chatID := ""
	if req.ChatID != nil {
		chatID = *req.ChatID
	}
	if err := cs.OpenChat(c.Request.Context(), chatID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
