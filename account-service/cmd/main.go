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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"staffdesk/account-service/internal/app/accounts/config"
	"staffdesk/account-service/internal/app/accounts/handler"
	"staffdesk/account-service/internal/app/accounts/infrastructure/messaging"
	"staffdesk/account-service/internal/app/accounts/infrastructure/oauth"
	"staffdesk/account-service/internal/app/accounts/repository"
	"staffdesk/account-service/internal/app/accounts/service"
	"staffdesk/account-service/internal/app/accounts/util"
	"staffdesk/pkg/logger"
	"staffdesk/pkg/metrics"
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
		} else {
			logger.Info().Str("logstash_addr", cfg.Logstash).Msg("Connected to Logstash")
		}
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := connectDB(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	logger.Info().
		Str("host", cfg.Database.Host).
		Str("database", cfg.Database.DBName).
		Msg("Connected to PostgreSQL")
	go metrics.ReportDbPoolStats(ctx, cfg.Service, db, 15*time.Second)

	redisClient := connectRedis(cfg.Redis)
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	err = redisClient.Ping(pingCtx).Err()
	pingCancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("addr", cfg.Redis.Address()).Msg("Connected to Redis")

	notifier := messaging.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer notifier.Close()
	logger.Info().Str("topic", cfg.Kafka.Topic).Msg("Initialized Kafka notifier")

	jwtManager := util.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.AccessTokenDuration, cfg.JWT.RefreshTokenDuration)
	envelope, err := util.NewEnvelope(cfg.JWE.Key)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize refresh token envelope")
	}
	actionTokens := util.NewActionTokenGenerator(cfg.Tokens.Secret, cfg.Tokens.MaxAge)

	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	roleCache := repository.NewRedisRoleCache(redisClient, cfg.Redis.RoleTTL)
	tokenRepo := repository.NewRedisTokenRepository(redisClient)

	roleService := service.NewRoleService(roleRepo, roleCache, cfg.Service)
	sessionService := service.NewSessionService(jwtManager, envelope, tokenRepo, userRepo)
	engine := service.NewPermissionEngine(roleService, userRepo, 0)
	userService := service.NewUserService(userRepo, roleService, engine, sessionService)

	// Вход через Google включается только при заданных client id и secret
	var (
		google service.IdentityProvider
		state  *util.StateSigner
	)
	if cfg.Google.Enabled() {
		discoveryCtx, discoveryCancel := context.WithTimeout(ctx, 15*time.Second)
		provider, err := oauth.NewGoogleProvider(discoveryCtx, cfg.Google)
		discoveryCancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize Google provider")
		}
		google = provider
		state = util.NewStateSigner(cfg.Tokens.Secret, cfg.Google.StateTTL)
		logger.Info().Str("issuer", cfg.Google.Issuer).Msg("Google login enabled")
	}

	accountService := service.NewAccountService(userRepo, roleService, sessionService, actionTokens, notifier, google, state)

	cookies := handler.NewSessionCookies(cfg.Cookies)
	router := handler.SetupRoutes(cfg.Service, cfg.Server.AllowedOrigins, handler.Handlers{
		Accounts:   handler.NewAccountHandler(accountService, cookies, cfg.Frontend.URL),
		Users:      handler.NewUserHandler(userService),
		Roles:      handler.NewRoleHandler(roleService),
		Middleware: handler.NewAuthMiddleware(sessionService, userRepo),
	})

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.Address()).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Ожидаем сигнала завершения (graceful shutdown)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server stopped gracefully")
}

// connectDB устанавливает соединение с PostgreSQL используя pgx connection pool
func connectDB(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.MaxConnIdleTime = 1 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	// Пробуем подключиться с повторными попытками
	var pool *pgxpool.Pool
	for i := 0; i < 10; i++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		logger.Warn().Err(err).Int("attempt", i+1).Msg("Failed to connect to database, retrying")
		time.Sleep(3 * time.Second)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect after 10 attempts: %w", err)
	}

	return pool, nil
}

// connectRedis создает и настраивает Redis клиент
func connectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})
}
