package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbipink/chat-service/internal/identity"
	"github.com/arbipink/chat-service/internal/middleware"
	"github.com/arbipink/chat-service/internal/services"
	"github.com/arbipink/chat-service/internal/storage/memory"
	"github.com/arbipink/chat-service/internal/store"
)

type apiTest struct {
	router *gin.Engine
}

func newAPITest(t *testing.T) *apiTest {
	t.Helper()
	gin.SetMode(gin.TestMode)

	profiles := memory.NewProfiles()
	rooms := memory.NewRooms()
	messages := memory.NewMessages()
	provider := identity.NewLocalProvider(profiles, nil)
	t.Cleanup(provider.Close)

	sessions := services.NewSessionManager(store.Config{
		Profiles: profiles,
		Rooms:    rooms,
		Messages: messages,
		Provider: provider,
	}, provider)
	t.Cleanup(sessions.Close)

	authService := services.NewAuthService(profiles, provider, sessions)

	authHandler := NewAuthHandler(authService, sessions)
	profileHandler := NewProfileHandler(authService)
	chatHandler := NewChatHandler(sessions)
	messageHandler := NewMessageHandler(sessions, messages)

	router := gin.New()
	api := router.Group("/api")
	{
		authRoutes := api.Group("/auth")
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authProtected := authRoutes.Group("")
		authProtected.Use(middleware.AuthMiddleware(provider))
		authProtected.POST("/logout", authHandler.Logout)
		authProtected.POST("/change-password", authHandler.ChangePassword)

		profile := api.Group("/profile")
		profile.Use(middleware.AuthMiddleware(provider))
		profile.GET("", profileHandler.GetProfile)
		profile.PUT("", profileHandler.UpdateProfile)

		chats := api.Group("/chats")
		chats.Use(middleware.AuthMiddleware(provider))
		chats.GET("", chatHandler.GetChats)
		chats.POST("", chatHandler.StartChat)
		chats.POST("/open", chatHandler.OpenChat)
		chats.GET("/:chatId/messages", messageHandler.GetMessages)
		chats.POST("/:chatId/messages", messageHandler.SendMessage)
		chats.PUT("/:chatId/messages/:messageId", messageHandler.UpdateMessage)
		chats.DELETE("/:chatId/messages/:messageId", messageHandler.DeleteMessage)
		chats.POST("/:chatId/messages/:messageId/star", messageHandler.ToggleStar)

		starred := api.Group("/starred")
		starred.Use(middleware.AuthMiddleware(provider))
		starred.GET("", messageHandler.GetStarred)
	}
	return &apiTest{router: router}
}

func (a *apiTest) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *apiTest) register(t *testing.T, username, email string) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username, "email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func TestRegisterEndpoint(t *testing.T) {
	a := newAPITest(t)

	a.register(t, "alice", "alice@x.test")

	w := a.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "alice two", "email": "alice@x.test", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "bob", "email": "bob@y.test",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing password fails binding")

	w = a.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "x", "email": "bob@y.test", "password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "username too short")
}

func TestLoginEndpoint(t *testing.T) {
	a := newAPITest(t)
	a.register(t, "alice", "alice@x.test")

	w := a.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "alice@x.test", "password": "secret123",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "alice@x.test", "password": "wrong1",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	a := newAPITest(t)

	w := a.do(t, http.MethodGet, "/api/chats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(t, http.MethodGet, "/api/chats", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.Header.Set("Authorization", "NotBearer xyz")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatAndMessageFlow(t *testing.T) {
	a := newAPITest(t)
	alice := a.register(t, "alice", "alice@x.test")

	// Self chat is rejected.
	w := a.do(t, http.MethodPost, "/api/chats", alice, gin.H{"email": "alice@x.test"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPost, "/api/chats", alice, gin.H{"email": "bob@y.test"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var started struct {
		ChatID string `json:"chatId"`
	}
	decode(t, w, &started)
	require.NotEmpty(t, started.ChatID)

	// Empty send is rejected before any write.
	w = a.do(t, http.MethodPost, "/api/chats/"+started.ChatID+"/messages", alice, gin.H{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPost, "/api/chats/"+started.ChatID+"/messages", alice, gin.H{"text": "hello bob"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(t, http.MethodGet, "/api/chats/"+started.ChatID+"/messages", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Messages []struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"messages"`
	}
	decode(t, w, &listed)
	require.Len(t, listed.Messages, 1)
	assert.Equal(t, "hello bob", listed.Messages[0].Text)
	msgID := listed.Messages[0].ID

	// Inbox shows the room with its summary once the room listener catches up.
	var inbox struct {
		Chats []struct {
			ID          string `json:"id"`
			LastMessage *struct {
				Text string `json:"text"`
			} `json:"lastMessage"`
		} `json:"chats"`
		ActiveChatID string `json:"activeChatId"`
	}
	require.Eventually(t, func() bool {
		w := a.do(t, http.MethodGet, "/api/chats", alice, nil)
		if w.Code != http.StatusOK {
			return false
		}
		decode(t, w, &inbox)
		return len(inbox.Chats) == 1 && inbox.Chats[0].LastMessage != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, started.ChatID, inbox.ActiveChatID)
	assert.Equal(t, "hello bob", inbox.Chats[0].LastMessage.Text)

	// Star it and wait for the derived view to catch up.
	w = a.do(t, http.MethodPost, "/api/chats/"+started.ChatID+"/messages/"+msgID+"/star", alice, gin.H{"starredBy": []string{}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Eventually(t, func() bool {
		w := a.do(t, http.MethodGet, "/api/starred", alice, nil)
		var starred struct {
			Starred []struct {
				ID string `json:"id"`
			} `json:"starred"`
		}
		decode(t, w, &starred)
		return len(starred.Starred) == 1 && starred.Starred[0].ID == msgID
	}, 2*time.Second, 5*time.Millisecond)

	// Edit, then delete.
	w = a.do(t, http.MethodPut, "/api/chats/"+started.ChatID+"/messages/"+msgID, alice, gin.H{"text": "hello again"})
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodGet, "/api/chats/"+started.ChatID+"/messages", alice, nil)
	var edited struct {
		Messages []struct {
			Text     string `json:"text"`
			IsUpdate bool   `json:"isUpdate"`
		} `json:"messages"`
	}
	decode(t, w, &edited)
	require.Len(t, edited.Messages, 1)
	assert.Equal(t, "hello again", edited.Messages[0].Text)
	assert.True(t, edited.Messages[0].IsUpdate)

	w = a.do(t, http.MethodDelete, "/api/chats/"+started.ChatID+"/messages/"+msgID, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodGet, "/api/chats/"+started.ChatID+"/messages", alice, nil)
	decode(t, w, &listed)
	assert.Empty(t, listed.Messages)
}

func TestOpenChatNullClosesThread(t *testing.T) {
	a := newAPITest(t)
	alice := a.register(t, "alice", "alice@x.test")

	w := a.do(t, http.MethodPost, "/api/chats", alice, gin.H{"email": "bob@y.test"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(t, http.MethodPost, "/api/chats/open", alice, gin.H{"chatId": nil})
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/api/chats", alice, nil)
	var inbox struct {
		ActiveChatID string `json:"activeChatId"`
	}
	decode(t, w, &inbox)
	assert.Empty(t, inbox.ActiveChatID)
}

func TestProfileEndpoints(t *testing.T) {
	a := newAPITest(t)
	alice := a.register(t, "alice", "alice@x.test")

	w := a.do(t, http.MethodGet, "/api/profile", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Profile struct {
			Username string `json:"username"`
			Status   string `json:"status"`
		} `json:"profile"`
	}
	decode(t, w, &got)
	assert.Equal(t, "alice", got.Profile.Username)

	w = a.do(t, http.MethodPut, "/api/profile", alice, gin.H{"username": "alice v2", "status": ""})
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/api/profile", alice, nil)
	decode(t, w, &got)
	assert.Equal(t, "alice v2", got.Profile.Username)
	assert.Equal(t, "Available", got.Profile.Status)
}

func TestChangePasswordEndpoint(t *testing.T) {
	a := newAPITest(t)
	alice := a.register(t, "alice", "alice@x.test")

	w := a.do(t, http.MethodPost, "/api/auth/change-password", alice, gin.H{
		"currentPassword": "wrong1", "newPassword": "newsecret1", "confirmPassword": "newsecret1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "current password is incorrect")

	w = a.do(t, http.MethodPost, "/api/auth/change-password", alice, gin.H{
		"currentPassword": "secret123", "newPassword": "newsecret1", "confirmPassword": "newsecret1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "alice@x.test", "password": "newsecret1",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	a := newAPITest(t)
	alice := a.register(t, "alice", "alice@x.test")

	w := a.do(t, http.MethodPost, "/api/auth/logout", alice, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(t, http.MethodGet, "/api/chats", alice, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
