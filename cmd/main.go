package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fleetwatch/internal/alert"
	"fleetwatch/internal/api"
	"fleetwatch/internal/config"
	"fleetwatch/internal/database"
	"fleetwatch/internal/engine"
	"fleetwatch/internal/ingest"
	"fleetwatch/internal/logger"
	"fleetwatch/internal/models"
	"fleetwatch/internal/notify"
	"fleetwatch/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		zlog.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close(db)

	gormStore := store.NewGormStore(db)

	// The engine reads configuration either from the database or, when a
	// rules file is configured, from a hot-reloaded in-memory snapshot.
	var (
		engineStore store.Store          = gormStore
		registry    store.DeviceRegistry = gormStore
	)
	if cfg.Rules.FilePath != "" {
		mem := store.NewMemoryStore()
		cf, err := store.LoadFile(cfg.Rules.FilePath)
		if err != nil {
			zlog.Fatal("failed to load rules file", zap.Error(err))
		}
		cf.Apply(mem)
		go func() {
			if err := store.Watch(ctx, cfg.Rules.FilePath, mem, zlog); err != nil {
				zlog.Error("rule file watcher stopped", zap.Error(err))
			}
		}()
		engineStore = mem
		registry = mem
	}

	dispatcher := notify.NewDispatcher(engineStore,
		time.Duration(cfg.Notify.TimeoutSeconds)*time.Second, zlog)
	dispatcher.Register(models.ChannelWebhook, notify.NewWebhookSender())
	dispatcher.Register(models.ChannelSMS, notify.NewWebhookSender())
	dispatcher.Register(models.ChannelPush, notify.NewWebhookSender())
	if cfg.Notify.SlackToken != "" {
		dispatcher.Register(models.ChannelSlack, notify.NewSlackSender(cfg.Notify.SlackToken))
	}
	if cfg.Notify.SMTPHost != "" {
		dispatcher.Register(models.ChannelEmail, notify.NewEmailSender(
			cfg.Notify.SMTPHost, cfg.Notify.SMTPPort,
			cfg.Notify.EmailFrom, cfg.Notify.EmailPassword))
	}

	manager := alert.NewManager(engineStore, dispatcher, zlog)
	manager.SetRepository(gormStore)
	scheduler := alert.NewScheduler(manager, dispatcher, zlog)
	manager.SetScheduler(scheduler)
	go scheduler.Run(ctx)

	retention := time.Duration(cfg.Engine.WindowRetentionMinutes) * time.Minute
	eng := engine.New(engineStore, registry, manager, retention, zlog)

	if cfg.Kafka.Enabled {
		consumer := ingest.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic,
			cfg.Kafka.GroupID, eng, zlog)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				zlog.Error("kafka consumer stopped", zap.Error(err))
			}
		}()
	}

	server := api.NewServer(manager, eng, gormStore, zlog)
	zlog.Info("starting fleetwatch engine", zap.Int("port", cfg.Server.Port))
	if err := server.Start(cfg.Server.Port); err != nil {
		zlog.Fatal("server exited", zap.Error(err))
	}
}
