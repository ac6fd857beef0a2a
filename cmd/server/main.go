package main

import (
	"log"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	mqcontracts "actions-service/contracts/mq"
	"actions-service/internal/client"
	"actions-service/internal/config"
	"actions-service/internal/handler"
	"actions-service/internal/httpserver"
	"actions-service/internal/mqhandler"
	"actions-service/internal/repository"
	"actions-service/internal/service/sync"
	"actions-service/internal/storage"
	"actions-service/pkg/logger"
	"actions-service/pkg/mq"
	"actions-service/pkg/redis"
	"actions-service/pkg/util"
)

func main() {
	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = "config/base.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logger.NewLogger()
	defer logger.Sync()

	logger.Info("Starting actions service", zap.String("port", cfg.Server.Port))

	// The store initializes lazily; a down database at boot degrades
	// persistence instead of killing the process.
	store := storage.New(cfg.DB.DSN(), int32(cfg.DB.PoolSize), logger)
	defer store.Close()

	taskRepo := repository.NewWorkItemRepository(store, repository.TableTasks, logger)
	todoRepo := repository.NewWorkItemRepository(store, repository.TableTodos, logger)
	followupRepo := repository.NewWorkItemRepository(store, repository.TableFollowups, logger)

	classificationClient := client.NewClassificationClient(cfg.Services.ClassificationURL, logger)
	messageClient := client.NewMessageClient(cfg.Services.MessageURL, logger)

	syncService := sync.NewService(classificationClient, messageClient, taskRepo, todoRepo, followupRepo, logger)

	var rdb *goredis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
	}

	if cfg.Sync.DedupTTLMinutes > 0 && rdb != nil {
		ttl := time.Duration(cfg.Sync.DedupTTLMinutes) * time.Minute
		syncService.SetDeduper(util.NewDeduper(rdb, ttl, logger))
		logger.Info("Sync deduplication enabled", zap.Duration("ttl", ttl))
	}

	if cfg.MQ.URL != "" {
		publisher, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			logger.Fatal("failed to init publisher", zap.Error(err))
		}
		defer publisher.Close()
		syncService.SetPublisher(publisher)

		classifiedHandler := mqhandler.NewClassifiedMessageHandler(syncService, logger)
		consumer, err := mq.NewConsumer(cfg.MQ.URL, "message.classified.q", mqcontracts.RoutingKeyMessageClassified, logger)
		if err != nil {
			logger.Fatal("failed to init consumer", zap.Error(err))
		}
		defer consumer.Close()
		consumer.SetHandler(classifiedHandler.HandleMessageClassified)
		if rdb != nil {
			consumer.SetRetryLimit(util.NewRetryCounter(rdb, time.Hour), 5)
		}
		go func() {
			if err := consumer.StartConsuming(); err != nil {
				logger.Fatal("consumer failed", zap.Error(err))
			}
		}()
	}

	taskHandler := handler.NewWorkItemHandler(taskRepo, "task", logger)
	todoHandler := handler.NewWorkItemHandler(todoRepo, "todo", logger)
	followupHandler := handler.NewWorkItemHandler(followupRepo, "followup", logger)
	syncHandler := handler.NewSyncHandler(syncService, logger)

	router := httpserver.NewRouter(taskHandler, todoHandler, followupHandler, syncHandler, logger, store)

	if err := router.Run(cfg.Server.Port); err != nil {
		logger.Fatal("server start failed", zap.Error(err))
	}
}
