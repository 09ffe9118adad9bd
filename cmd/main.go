package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/djrq/queue-service/internal/config"
	"github.com/djrq/queue-service/internal/handler"
	"github.com/djrq/queue-service/internal/hub"
	"github.com/djrq/queue-service/internal/ingest"
	"github.com/djrq/queue-service/internal/pubsub"
	"github.com/djrq/queue-service/internal/service"
	"github.com/djrq/queue-service/internal/store"
	pkglog "github.com/djrq/queue-service/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "queue-service"})
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting queue-service")

	// Create Redis store (queue data, handle registry + Publish)
	queueStore, err := store.NewRedisStore(store.RedisConfig{
		Address:       cfg.Redis.Address,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		UpdateChannel: cfg.Redis.UpdateChannel,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create redis store")
	}
	defer queueStore.Close()

	// Second Redis client for PSubscribe (a connection in subscriber mode
	// cannot run other commands)
	redisPubSub := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisPubSub.Close()

	// Create hub
	h := hub.NewHub(hub.Config{
		PingInterval:   cfg.WebSocket.PingInterval,
		PongWait:       cfg.WebSocket.PongWait,
		WriteWait:      cfg.WebSocket.WriteWait,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	})
	go h.Run()

	// Create services
	registry := service.NewRegistryService(queueStore, service.RegistryConfig{
		CleanupOrphans: cfg.Handles.CleanupOrphans,
	})
	queues := service.NewQueueService(queueStore, registry)

	ctx, cancel := context.WithCancel(context.Background())

	// Start Redis Pub/Sub subscriber for multi-instance snapshot fan-out
	subscriber := pubsub.NewSubscriber(redisPubSub, cfg.Redis.UpdateChannel, h, queues)
	go subscriber.Run(ctx)

	// Start Kafka consumer for chat-sourced request events
	var kafkaConsumer *ingest.ConfluentConsumer
	if cfg.Kafka.Enabled {
		if kc, err := ingest.NewConfluentConsumer(
			cfg.Kafka.Brokers,
			cfg.Kafka.Topic,
			cfg.Kafka.GroupID,
			queues, // QueueService implements ingest.RequestEventHandler
		); err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka consumer, chat ingest disabled")
		} else {
			if err := kc.Start(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to start kafka consumer")
			} else {
				kafkaConsumer = kc
			}
		}
	}

	// Create handlers
	wsHandler := handler.NewWSHandler(h, queues)
	httpHandler := handler.NewHTTPHandler(queues, registry)

	// Setup routes
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(pkglog.GinMiddleware(*logger))

	httpHandler.RegisterRoutes(router)
	router.GET("/ws", gin.WrapF(wsHandler.HandleWebSocket))

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Str("addr", addr).Msg("queue-service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down queue-service")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		cancel() // 1. stop Kafka consumer + pubsub subscriber

		if kafkaConsumer != nil {
			kafkaConsumer.Close() // 2. wait for in-flight Kafka event
		}
		<-subscriber.Done() // 3. wait for pub/sub goroutine to exit

		h.Stop() // 4. close all WS clients, stop Hub.Run()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("queue-service stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
