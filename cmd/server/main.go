package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatbridge/internal/catalog"
	"chatbridge/internal/config"
	"chatbridge/internal/database"
	"chatbridge/internal/handlers"
	"chatbridge/internal/logger"
	"chatbridge/internal/middleware"
	"chatbridge/internal/repository"
	"chatbridge/internal/router"
	"chatbridge/internal/services"
	"chatbridge/internal/websocket"
)

var log = logger.Get("server")

func fatal(msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	if err := logger.Configure(cfg.LogLevel); err != nil {
		fatal("Invalid LOG_LEVEL", err)
	}
	log.Info("Starting chat backend", "env", cfg.Env)

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		fatal("PostgreSQL connection failed", err)
	}
	defer pool.Close()
	log.Info("PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		fatal("Redis connection failed", err)
	}
	defer redisClients.Close()
	log.Info("Redis connected")

	// ──── Step 4: Run Database Migrations ────
	applied, err := database.RunMigrations(context.Background(), pool, cfg.MigrationsDir)
	if err != nil {
		fatal("Database migration failed", err)
	}
	log.Info("Database migrations applied", "count", applied)

	// ──── Step 5: Load Model Catalog ────
	cat, err := catalog.Load(cfg.ModelCatalogPath)
	if err != nil {
		fatal("Model catalog failed to load", err)
	}
	log.Info("Model catalog loaded", "models", len(cat.Models()))

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	chatRepo := repository.NewChatRepo(pool)
	messageRepo := repository.NewMessageRepo(pool)
	voteRepo := repository.NewVoteRepo(pool)

	// ──── Initialize Services ────
	completionTimeout := time.Duration(cfg.CompletionTimeoutSeconds) * time.Second
	completionService := services.NewCompletionService(services.CompletionConfig{
		APIKey:         cfg.CompletionAPIKey,
		BaseURL:        cfg.CompletionBaseURL,
		SystemPrompt:   cfg.SystemPrompt,
		MaxTokens:      cfg.CompletionMaxTokens,
		Temperature:    cfg.CompletionTemperature,
		ConcurrentReqs: cfg.CompletionConcurrentReqs,
		Timeout:        completionTimeout,
	}, cat)

	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	tokenStore := services.NewRedisTokenStore(redisClients.Store)
	authService := services.NewAuthService(userRepo, tokenStore, jwtAuth)
	publisher := services.NewUpdatePublisher(redisClients.Store)
	chatService := services.NewChatService(chatRepo, messageRepo, voteRepo, completionService, publisher)

	// ──── Step 6: Start Retention Scheduler ────
	retention, err := services.NewRetentionScheduler(chatRepo, cfg.ChatRetentionDays, cfg.RetentionSchedule)
	if err != nil {
		fatal("Retention scheduler failed", err)
	}
	retention.Start()

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth)

	// ──── Step 8: Start HTTP Server ────
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	r := router.New(jwtAuth, router.Handlers{
		Auth:      handlers.NewAuthHandler(authService),
		Chat:      handlers.NewChatHandler(chatService),
		Models:    handlers.NewModelsHandler(cat),
		WebSocket: wsHub.HandleWebSocket,
	}, authLimiter, cfg.FrontendURL)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// A chat turn waits on the completion service.
		WriteTimeout: completionTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down")
		retention.Stop()
		authLimiter.Stop()
		wsHub.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Info("Chat backend ready", "api", fmt.Sprintf("http://localhost:%s/api/v1", cfg.Port),
		"ws", fmt.Sprintf("ws://localhost:%s/api/v1/ws", cfg.Port))

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		fatal("Server error", err)
	}
}
