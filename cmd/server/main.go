package main

import (
	"context"
	"log"
	"os"

	"firebase.google.com/go/auth"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/arbipink/chat-service/internal/config"
	"github.com/arbipink/chat-service/internal/handlers"
	"github.com/arbipink/chat-service/internal/identity"
	"github.com/arbipink/chat-service/internal/middleware"
	"github.com/arbipink/chat-service/internal/repository"
	"github.com/arbipink/chat-service/internal/services"
	"github.com/arbipink/chat-service/internal/storage"
	"github.com/arbipink/chat-service/internal/storage/local"
	"github.com/arbipink/chat-service/internal/storage/memory"
	"github.com/arbipink/chat-service/internal/store"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	var (
		profiles     storage.ProfileStore
		rooms        storage.RoomStore
		messages     storage.MessageStore
		firebaseAuth *auth.Client
		onLogout     func(ctx context.Context) error
	)

	backend := config.StorageBackend()
	switch backend {
	case "firestore":
		if err := config.InitFirebase(); err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
		defer config.CloseFirebase()
		profiles = repository.NewUserRepository(config.FirestoreClient)
		rooms = repository.NewChatRepository(config.FirestoreClient)
		messages = repository.NewMessageRepository(config.FirestoreClient)
		firebaseAuth = config.AuthClient

	case "local":
		opts := local.DefaultOptions()
		opts.KeepHistoryOnLogout = config.KeepHistoryOnLogout()
		stores, err := local.Open(context.Background(), config.LocalDBPath(), opts)
		if err != nil {
			log.Fatalf("Failed to open local storage: %v", err)
		}
		defer stores.Close()
		profiles = stores.Profiles
		rooms = stores.Rooms
		messages = stores.Messages
		onLogout = stores.ClearOnLogout
		log.Printf("💾 Local storage at %s", config.LocalDBPath())

	case "memory":
		profiles = memory.NewProfiles()
		rooms = memory.NewRooms()
		messages = memory.NewMessages()
		log.Println("💾 In-memory storage (state is lost on restart)")

	default:
		log.Fatalf("Unknown STORAGE_BACKEND %q (want firestore, local, or memory)", backend)
	}

	provider := identity.NewLocalProvider(profiles, firebaseAuth)
	defer provider.Close()

	storeConfig := store.Config{
		Profiles: profiles,
		Rooms:    rooms,
		Messages: messages,
		Provider: provider,
		OnLogout: onLogout,
	}
	sessions := services.NewSessionManager(storeConfig, provider)
	defer sessions.Close()

	authService := services.NewAuthService(profiles, provider, sessions)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Initialize Gin router
	router := gin.Default()

	// Apply middleware
	router.Use(middleware.CORS())

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, sessions)
	profileHandler := handlers.NewProfileHandler(authService)
	chatHandler := handlers.NewChatHandler(sessions)
	messageHandler := handlers.NewMessageHandler(sessions, messages)
	streamHandler := handlers.NewStreamHandler(sessions, provider)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Chat API is running",
			"backend": backend,
		})
	})

	// API routes group
	api := router.Group("/api")
	{
		// Auth routes (public)
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)

			// Protected routes
			authProtected := authRoutes.Group("")
			authProtected.Use(middleware.AuthMiddleware(provider))
			{
				authProtected.POST("/logout", authHandler.Logout)
				authProtected.POST("/change-password", authHandler.ChangePassword)
			}
		}

		// Profile routes (protected)
		profile := api.Group("/profile")
		profile.Use(middleware.AuthMiddleware(provider))
		{
			profile.GET("", profileHandler.GetProfile)
			profile.PUT("", profileHandler.UpdateProfile)
		}

		// Chat routes (protected)
		chats := api.Group("/chats")
		chats.Use(middleware.AuthMiddleware(provider))
		{
			chats.GET("", chatHandler.GetChats)
			chats.POST("", chatHandler.StartChat)
			chats.POST("/open", chatHandler.OpenChat)
			chats.GET("/:chatId/messages", messageHandler.GetMessages)
			chats.POST("/:chatId/messages", messageHandler.SendMessage)
			chats.PUT("/:chatId/messages/:messageId", messageHandler.UpdateMessage)
			chats.DELETE("/:chatId/messages/:messageId", messageHandler.DeleteMessage)
			chats.POST("/:chatId/messages/:messageId/star", messageHandler.ToggleStar)
		}

		// Starred messages (protected)
		starred := api.Group("/starred")
		starred.Use(middleware.AuthMiddleware(provider))
		{
			starred.GET("", messageHandler.GetStarred)
		}
	}

	// Live snapshot stream
	router.GET("/ws/stream", streamHandler.HandleStream)

	// Start server
	log.Printf("🚀 Server starting on port %s (storage: %s)", port, backend)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
