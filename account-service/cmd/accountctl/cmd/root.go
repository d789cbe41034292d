package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"staffdesk/account-service/internal/app/accounts/config"
	"staffdesk/account-service/internal/app/accounts/repository"
	"staffdesk/account-service/internal/app/accounts/service"
	"staffdesk/pkg/logger"
)

var (
	logLevel string
	timeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "accountctl",
	Short: "Administrative commands for the account service",
	Long: `accountctl prepares the account service database: it creates the default
roles and the first superuser. It reads the same environment as the service.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init("accountctl", logLevel)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for the whole command")
	rootCmd.AddCommand(setupRolesCmd)
	rootCmd.AddCommand(createSuperuserCmd)
}

// stores - подключения, нужные командам. close освобождает их.
type stores struct {
	bootstrap *service.Bootstrap
	close     func()
}

func openStores(ctx context.Context) (*stores, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// роли пишутся через сервис, поэтому снимки в кеше тоже сбрасываются
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	users := repository.NewUserRepository(pool)
	roles := service.NewRoleService(
		repository.NewRoleRepository(pool),
		repository.NewRedisRoleCache(redisClient, cfg.Redis.RoleTTL),
		"accountctl",
	)

	return &stores{
		bootstrap: service.NewBootstrap(roles, users),
		close: func() {
			_ = redisClient.Close()
			pool.Close()
		},
	}, nil
}
