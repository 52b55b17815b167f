package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arbipink/chat-service/internal/models"
	"github.com/arbipink/chat-service/internal/services"
	"github.com/arbipink/chat-service/internal/storage"
	"github.com/arbipink/chat-service/internal/store"
)

type MessageHandler struct {
	sessions *services.SessionManager
	messages storage.MessageStore
}

func NewMessageHandler(sessions *services.SessionManager, messages storage.MessageStore) *MessageHandler {
	return &MessageHandler{
		sessions: sessions,
		messages: messages,
	}
}

func (h *MessageHandler) session(c *gin.Context) (*store.ChatStore, bool) {
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

// openRoom makes chatId the caller's active room, so message operations
// land on the thread the client is looking at.
func (h *MessageHandler) openRoom(c *gin.Context, cs *store.ChatStore) bool {
	chatID := c.Param("chatId")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chatId is required"})
		return false
	}
	if cs.ActiveChatID() != chatID {
		if err := cs.OpenChat(c.Request.Context(), chatID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return false
		}
	}
	return true
}

// GetMessages retrieves the room's messages in send order
func (h *MessageHandler) GetMessages(c *gin.Context) {
	if _, ok := h.session(c); !ok {
		return
	}

	chatID := c.Param("chatId")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chatId is required"})
		return
	}

	msgs, err := h.messages.List(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage appends a message to the room
func (h *MessageHandler) SendMessage(c *gin.Context) {
	cs, ok := h.session(c)
	if !ok {
		return
	}
	if !h.openRoom(c, cs) {
		return
	}

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := cs.AddMessage(c.Request.Context(), req.Text, req.Image); err != nil {
		if errors.Is(err, store.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// ToggleStar flips the caller's star on a message
func (h *MessageHandler) ToggleStar(c *gin.Context) {
	cs, ok := h.session(c)
	if !ok {
		return
	}
	if !h.openRoom(c, cs) {
		return
	}

	messageID := c.Param("messageId")
	if messageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messageId is required"})
		return
	}

	var req models.ToggleStarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := cs.ToggleStarMessage(c.Request.Context(), messageID, req.StarredBy); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UpdateMessage edits a message's text and marks it edited
func (h *MessageHandler) UpdateMessage(c *gin.Context) {
	cs, ok := h.session(c)
	if !ok {
		return
	}
	if !h.openRoom(c, cs) {
		return
	}

	messageID := c.Param("messageId")
	if messageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messageId is required"})
		return
	}

	var req models.UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := cs.UpdateMessage(c.Request.Context(), messageID, req.Text); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteMessage hard-deletes a message
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	cs, ok := h.session(c)
	if !ok {
		return
	}
	if !h.openRoom(c, cs) {
		return
	}

	messageID := c.Param("messageId")
	if messageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messageId is required"})
		return
	}

	if err := cs.DeleteMessage(c.Request.Context(), messageID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetStarred returns the caller's starred messages, newest first
func (h *MessageHandler) GetStarred(c *gin.Context) {
	cs, ok := h.session(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"starred": cs.StarredMessages()})
}
