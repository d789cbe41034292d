package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"staffdesk/account-worker/internal/app/worker/config"
	"staffdesk/account-worker/internal/app/worker/handler"
	"staffdesk/account-worker/internal/app/worker/processor"
	"staffdesk/account-worker/internal/app/worker/repository"
	"staffdesk/account-worker/internal/app/worker/service"
	"staffdesk/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Service, cfg.LogLevel)
	if cfg.Logstash != "" {
		if err := logger.InitLogstash(cfg.Logstash, cfg.Service, cfg.LogLevel); err != nil {
			logger.Warn().Err(err).Msg("Failed to connect to Logstash, using stdout only")
		}
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// === POSTGRESQL (GORM) ===
	// База учётных записей account-service, воркер только удаляет устаревшие строки
	db, err := connectDB(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	logger.Info().Str("database", cfg.Database.DBName).Msg("Connected to PostgreSQL")

	// === REDIS ===
	redisClient, err := connectRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()
	logger.Info().Str("addr", cfg.Redis.Address()).Msg("Connected to Redis")

	// === MONGODB ===
	mongoClient, err := connectMongoDB(cfg.Mongo)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()
	mongoDB := mongoClient.Database(cfg.Mongo.Database)
	indexCtx, indexCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := repository.EnsureFailureIndexes(indexCtx, mongoDB); err != nil {
		logger.Warn().Err(err).Msg("Failed to ensure MongoDB indexes")
	}
	indexCancel()
	logger.Info().Str("database", cfg.Mongo.Database).Msg("Connected to MongoDB")

	// === РЕПОЗИТОРИИ И СЕРВИСЫ ===
	accountRepo := repository.NewAccountRepository(db)
	tokenRepo := repository.NewRedisTokenRepository(redisClient)
	failureRepo := repository.NewFailureRepository(mongoDB)

	notifications := service.NewNotificationService(service.NewLogMailer(), cfg.Frontend.URL)
	maintenance := service.NewMaintenanceService(accountRepo, tokenRepo, cfg.Cron.PurgeOlderThan)

	// === KAFKA CONSUMER ===
	consumer := processor.NewKafkaConsumer(processor.ConsumerOptions{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		GroupID:      cfg.Kafka.GroupID,
		MinBytes:     cfg.Kafka.MinBytes,
		MaxBytes:     cfg.Kafka.MaxBytes,
		MaxRetries:   cfg.Notify.MaxRetries,
		RetryBackoff: cfg.Notify.RetryBackoff,
	}, notifications, failureRepo)
	consumer.Start(ctx)

	// === CRON ===
	scheduler := processor.NewCronScheduler(maintenance)
	if err := scheduler.Start(ctx, processor.Schedules{
		CleanupTokens: cfg.Cron.CleanupTokens,
		PurgeAccounts: cfg.Cron.PurgeAccounts,
		RunOnStart:    cfg.Cron.RunOnStart,
	}); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start cron scheduler")
	}

	// === HEALTHCHECK И МЕТРИКИ ===
	healthHandler := handler.NewHealthCheckHandler(db, redisClient, mongoClient, consumer, failureRepo)

	mux := http.NewServeMux()
	healthHandler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("Starting healthcheck HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	logger.Info().Str("topic", cfg.Kafka.Topic).Msg("Account Worker is running")

	// === GRACEFUL SHUTDOWN ===
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Account Worker...")

	// сначала перестаём брать новые сообщения, затем дожидаемся текущих задач
	consumer.Stop()
	scheduler.Stop()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server forced to shutdown")
	}

	logger.Info().Msg("Account Worker stopped gracefully")
}

// connectDB устанавливает соединение с PostgreSQL используя GORM
func connectDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
		if err == nil {
			sqlDB, sqlErr := db.DB()
			if sqlErr != nil {
				err = sqlErr
			} else if pingErr := sqlDB.Ping(); pingErr != nil {
				err = pingErr
			} else {
				sqlDB.SetMaxOpenConns(5)
				sqlDB.SetMaxIdleConns(2)
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
				sqlDB.SetConnMaxIdleTime(time.Minute)
				return db, nil
			}
		}
		logger.Warn().Err(err).Int("attempt", i+1).Msg("Failed to connect to database, retrying")
		time.Sleep(3 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect after 10 attempts: %w", err)
}

// connectRedis устанавливает соединение с Redis
func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     5,
	})

	for i := 0; i < 10; i++ {
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		logger.Warn().Int("attempt", i+1).Msg("Failed to connect to Redis, retrying")
		time.Sleep(3 * time.Second)
	}

	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to Redis after 10 attempts")
}

// connectMongoDB подключается к MongoDB с повторными попытками
func connectMongoDB(cfg config.MongoConfig) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(cfg.URI)

	var (
		client *mongo.Client
		err    error
	)
	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err = mongo.Connect(ctx, clientOptions)
		cancel()
		if err == nil {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = client.Ping(pingCtx, nil)
			pingCancel()
			if err == nil {
				return client, nil
			}
			_ = client.Disconnect(context.Background())
		}

		logger.Warn().Int("attempt", i+1).Err(err).Msg("Failed to connect to MongoDB, retrying")
		time.Sleep(3 * time.Second)
	}

	return nil, err
}
