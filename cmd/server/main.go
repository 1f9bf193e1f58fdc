package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/termhub/backend/api/handlers"
	"github.com/termhub/backend/internal/chat"
	"github.com/termhub/backend/internal/db"
	"github.com/termhub/backend/internal/repository"
	"github.com/termhub/backend/internal/shell"
)

// Config is read from the environment with the TERMHUB prefix.
type Config struct {
	Port         string        `default:"8080"`
	DBPath       string        `envconfig:"DB_PATH" default:"data/termhub.db"`
	RecordDir    string        `envconfig:"RECORD_DIR" default:""`
	HistoryLimit int           `envconfig:"HISTORY_LIMIT" default:"20"`
	DefaultRoom  string        `envconfig:"DEFAULT_ROOM" default:"general"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"15s"`
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("termhub", &cfg); err != nil {
		log.Fatalf("Failed to read configuration: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}
	if cfg.RecordDir != "" {
		if err := os.MkdirAll(cfg.RecordDir, 0755); err != nil {
			log.Fatalf("Failed to create recording directory: %v", err)
		}
	}

	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.CloseDB()

	chatRepo := repository.NewChatRepository(database)
	connRepo := repository.NewConnectionRepository(database)

	registry := chat.NewRegistry()
	router := chat.NewRouter(registry)
	chatService := chat.NewService(registry, router, chatRepo, chat.Config{
		HistoryLimit: cfg.HistoryLimit,
		DefaultRoom:  cfg.DefaultRoom,
	})

	store := shell.NewStore()
	dialer := &shell.SSHDialer{Timeout: cfg.DialTimeout}
	proxy := shell.NewProxy(store, connRepo, dialer, shell.Config{
		RecordDir: cfg.RecordDir,
	})

	connectionHandler := handlers.NewConnectionHandler(connRepo)
	roomHandler := handlers.NewRoomHandler(chatRepo)
	wsHandler := handlers.NewWebSocketHandler(chatService, proxy)

	r := gin.Default()
	r.Use(corsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	api := r.Group("/api")
	{
		connectionHandler.RegisterRoutes(api)
		roomHandler.RegisterRoutes(api)
	}

	wsGroup := r.Group("/ws")
	{
		wsHandler.RegisterRoutes(wsGroup)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down server...")
		db.CloseDB()
		os.Exit(0)
	}()

	log.Printf("Starting server on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
