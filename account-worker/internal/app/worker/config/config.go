package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит все настройки Account Worker
type Config struct {
	Service  string
	LogLevel string
	Logstash string
	HTTPAddr string // адрес healthcheck и /metrics

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Mongo    MongoConfig
	Notify   NotifyConfig
	Cron     CronConfig
	Frontend FrontendConfig
}

// DatabaseConfig - база учётных записей (та же, что у account-service)
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig - Redis, где account-service хранит выданные refresh токены
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// KafkaConfig - топик заданий на письма
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
}

// MongoConfig - хранилище отчётов о неотправленных письмах
type MongoConfig struct {
	URI      string
	Database string
}

// NotifyConfig - повторы отправки письма
type NotifyConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// CronConfig - расписания плановых задач (формат cron с секундами)
type CronConfig struct {
	CleanupTokens  string
	PurgeAccounts  string
	PurgeOlderThan time.Duration
	RunOnStart     bool
}

// FrontendConfig - адрес клиентского приложения для ссылок в письмах
type FrontendConfig struct {
	URL string
}

// Load загружает конфигурацию из переменных окружения (и .env, если он есть)
func Load() (*Config, error) {
	_ = godotenv.Load()

	backoff, err := getEnvDuration("NOTIFY_RETRY_BACKOFF", 10*time.Second)
	if err != nil {
		return nil, err
	}
	olderThan, err := getEnvDuration("PURGE_UNACTIVATED_AFTER", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}

	maxRetries := getEnvInt("NOTIFY_MAX_RETRIES", 5)
	if maxRetries < 1 {
		return nil, fmt.Errorf("NOTIFY_MAX_RETRIES must be positive, got %d", maxRetries)
	}

	return &Config{
		Service:  getEnv("SERVICE_NAME", "account-worker"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Logstash: getEnv("LOGSTASH_ADDR", ""),
		HTTPAddr: getEnv("HTTP_ADDR", ":8081"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "accounts"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:  getEnvList("KAFKA_BROKERS", "localhost:9092"),
			Topic:    getEnv("KAFKA_NOTIFICATIONS_TOPIC", "account_notifications"),
			GroupID:  getEnv("KAFKA_GROUP_ID", "account-worker-group"),
			MinBytes: getEnvInt("KAFKA_MIN_BYTES", 1),
			MaxBytes: getEnvInt("KAFKA_MAX_BYTES", 10e6),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "account_worker"),
		},
		Notify: NotifyConfig{
			MaxRetries:   maxRetries,
			RetryBackoff: backoff,
		},
		Cron: CronConfig{
			CleanupTokens:  getEnv("CRON_CLEANUP_TOKENS", "0 0 * * * *"),
			PurgeAccounts:  getEnv("CRON_PURGE_ACCOUNTS", "0 0 3 * * *"),
			PurgeOlderThan: olderThan,
			RunOnStart:     getEnvBool("CRON_RUN_ON_START", false),
		},
		Frontend: FrontendConfig{
			URL: strings.TrimSuffix(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		},
	}, nil
}

// DSN возвращает строку подключения к PostgreSQL в формате libpq
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Address возвращает адрес Redis в формате host:port
func (c *RedisConfig) Address() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvList(key, defaultValue string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
