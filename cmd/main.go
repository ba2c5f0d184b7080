package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/vaais251/Smobile-market-place/internal/application/services"
	"github.com/vaais251/Smobile-market-place/internal/auth"
	"github.com/vaais251/Smobile-market-place/internal/config"
	"github.com/vaais251/Smobile-market-place/internal/infrastructure/database"
	"github.com/vaais251/Smobile-market-place/internal/infrastructure/websocket"
	"github.com/vaais251/Smobile-market-place/internal/interfaces/api"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	setupLogger(cfg)

	db, err := database.Open(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logrus.Fatalf("Failed to create token verifier: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logrus.Fatalf("Failed to connect to redis: %v", err)
		}
		logrus.Info("Redis connected, rate limiting enabled")
	}

	roomService := services.NewRoomService(db)
	provisioningService := services.NewProvisioningService(roomService)
	orderService := services.NewOrderService(db, provisioningService)

	registry := websocket.NewRegistry()
	gateway := websocket.NewGateway(registry, roomService, db, verifier, cfg.AllowInsecureWSAuth)
	if cfg.AllowInsecureWSAuth {
		logrus.Warn("Insecure websocket handshake is enabled; tokens are optional")
	}

	router := api.NewRouter(cfg, verifier, redisClient,
		api.NewChatHandler(roomService),
		api.NewOrderHandler(orderService),
		api.NewWebSocketHandler(gateway),
	)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server forced to shutdown: %v", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}
	logrus.Info("Server exited gracefully.")
}

func setupLogger(cfg *config.Config) {
	if cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logrus.SetLevel(level)
}
