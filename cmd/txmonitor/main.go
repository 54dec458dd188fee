package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aegisfin/txmonitor/internal/aggregates"
	"github.com/aegisfin/txmonitor/internal/aml"
	"github.com/aegisfin/txmonitor/internal/aml/screening"
	"github.com/aegisfin/txmonitor/internal/aml/scoring"
	"github.com/aegisfin/txmonitor/internal/aml/storage"
	"github.com/aegisfin/txmonitor/internal/config"
	"github.com/aegisfin/txmonitor/internal/consumer"
	"github.com/aegisfin/txmonitor/internal/messaging"
	"github.com/aegisfin/txmonitor/internal/server"
	"github.com/aegisfin/txmonitor/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()
	sugar := zapLogger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Windowed aggregate store
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	aggregateStore := aggregates.NewRedisAggregateStore(redisClient, cfg.Redis.KeyPrefix, sugar)

	// Alert repository
	db, err := storage.OpenPostgres(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		zapLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	alertRepo := storage.NewGormAlertRepository(db, sugar)

	// Sanctions reference set, refreshed out of band from the list file
	sanctionsSet := screening.NewSanctionsSet(nil, sugar)
	loader := screening.NewFileLoader(cfg.Sanctions.FilePath, cfg.Sanctions.RefreshInterval, sanctionsSet, sugar)
	if err := loader.Load(); err != nil {
		zapLogger.Fatal("Failed to load sanctions list", zap.Error(err))
	}
	go loader.Run(ctx)

	// Scoring engine with per-tenant threshold overrides
	scoringCfg, err := cfg.Scoring.ToScoringConfig()
	if err != nil {
		zapLogger.Fatal("Invalid scoring configuration", zap.Error(err))
	}
	overrides, err := cfg.TenantOverrides()
	if err != nil {
		zapLogger.Fatal("Invalid tenant scoring overrides", zap.Error(err))
	}
	engine, err := scoring.NewEngine(scoringCfg, overrides, aggregateStore, sanctionsSet, sugar)
	if err != nil {
		zapLogger.Fatal("Failed to create scoring engine", zap.Error(err))
	}

	// Stream adapters
	producer := messaging.NewKafkaProducer(&cfg.Kafka, zapLogger)
	defer producer.Close()
	kafkaConsumer := messaging.NewKafkaConsumer(&cfg.Kafka, zapLogger)
	defer kafkaConsumer.Close()

	publisher := messaging.NewAlertPublisher(producer, messaging.Topic(cfg.Topics.Alerts))
	dispatcher := aml.NewDispatcher(engine, alertRepo, publisher, sugar)

	txConsumer := consumer.NewTransactionConsumer(
		consumer.Config{
			TransactionsTopic: messaging.Topic(cfg.Topics.Transactions),
			QuarantineTopic:   messaging.Topic(cfg.Topics.Quarantine),
			GroupID:           cfg.GroupID,
		},
		kafkaConsumer,
		producer,
		dispatcher,
		aggregateStore,
		sugar,
	)
	if err := txConsumer.Start(ctx); err != nil {
		zapLogger.Fatal("Failed to start transaction consumer", zap.Error(err))
	}

	// Ops endpoints: liveness, readiness, metrics
	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("Failed to access database handle", zap.Error(err))
	}
	checks := map[string]server.ReadinessCheck{
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		"postgres": func(ctx context.Context) error { return sqlDB.PingContext(ctx) },
	}
	ops := server.NewOpsServer(cfg.Server.Host, cfg.Server.Port, checks, zapLogger)
	go func() {
		if err := ops.Start(); err != nil {
			zapLogger.Error("Ops server stopped", zap.Error(err))
			stop()
		}
	}()

	zapLogger.Info("AML transaction monitor started",
		zap.String("transactions_topic", cfg.Topics.Transactions),
		zap.String("alerts_topic", cfg.Topics.Alerts),
	)

	<-ctx.Done()
	zapLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Ops server shutdown failed", zap.Error(err))
	}
	if err := redisClient.Close(); err != nil {
		zapLogger.Error("Redis close failed", zap.Error(err))
	}
}
