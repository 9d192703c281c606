package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linkup/internal/app/conversations"
	"linkup/internal/domain/chat"
	"linkup/internal/infra/broker/kafka"
	"linkup/internal/infra/config"
	mongodb "linkup/internal/infra/db/mongo"
	ginserver "linkup/internal/infra/http/gin"
	"linkup/internal/infra/obs"
	"linkup/internal/infra/storage/memory"
	"linkup/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	var store conversations.Store
	ready := func() error { return nil }
	switch cfg.StorageMode {
	case "mongo":
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			logger.Error("mongo connect failed", "error", err)
			os.Exit(1)
		}
		store = mongodb.NewChatStore(client.DB)
		ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}
	default:
		store = memory.NewChatStore()
	}

	var avatars conversations.AvatarResolver
	if cfg.S3Endpoint != "" {
		resolver, err := s3.NewAvatarResolver(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.AvatarURLTTL, logger)
		if err != nil {
			logger.Warn("avatar resolver unavailable, falling back to initials", "error", err)
		} else {
			avatars = resolver
		}
	}

	me := chat.UserID(cfg.UserID)
	directory := conversations.NewDirectory(store, avatars, logger)
	aggregator := conversations.NewAggregator(store, directory, logger)
	engine := conversations.NewEngine(me, aggregator, logger)
	engine.SetReloadDebounce(cfg.ReloadDebounce)
	searcher := conversations.NewSearcher(store, logger)
	searcher.SetDebounce(cfg.SearchDebounce)

	go func() {
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sync engine stopped", "error", err)
		}
	}()

	if len(cfg.KafkaBrokers) > 0 {
		bridge := kafka.NewEventBridge(engine, cfg.KafkaTopics, logger)
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, bridge)
		if err != nil {
			logger.Error("kafka consumer setup failed", "error", err)
			os.Exit(1)
		}
		go func() {
			defer consumer.Close()
			if err := consumer.Run(ctx, bridge.Topics()); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("kafka consumer stopped", "error", err)
			}
		}()
	} else {
		logger.Warn("KAFKA_BROKERS not set, realtime sync disabled")
	}

	handler := ginserver.ConversationHandler{
		Engine:   engine,
		Searcher: searcher,
		Me:       me,
		Logger:   logger,
	}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Ready: ready}, ginserver.Handlers{
		Conversations: handler,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "user_id", cfg.UserID)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
