package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidJWEKey - ключ шифрования refresh cookie не 32 байта
var ErrInvalidJWEKey = errors.New("JWE_KEY must be 32 bytes (64 hex chars or 32 raw bytes)")

// Config содержит все настройки сервиса учётных записей
type Config struct {
	Service  string
	LogLevel string
	Logstash string
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	JWT      JWTConfig
	JWE      JWEConfig
	Tokens   TokenConfig
	Cookies  CookieConfig
	Google   GoogleConfig
	Frontend FrontendConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Host           string
	Port           string
	AllowedOrigins []string
}

// DatabaseConfig - настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig - настройки подключения к Redis (кеш ролей и чёрный список токенов)
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	RoleTTL  time.Duration
}

// KafkaConfig - настройки очереди заданий уведомлений
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// JWTConfig - настройки подписанных токенов сессии
type JWTConfig struct {
	SecretKey            string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// JWEConfig - ключ шифрования refresh токена в cookie
type JWEConfig struct {
	Key []byte
}

// TokenConfig - одноразовые токены активации и сброса пароля
type TokenConfig struct {
	Secret string
	MaxAge time.Duration
}

// CookieConfig - атрибуты cookie сессии
type CookieConfig struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// GoogleConfig - OAuth клиент Google. Пустой ClientID отключает вход через Google.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Issuer       string
	StateTTL     time.Duration
}

// FrontendConfig - адрес клиентского приложения для редиректов
type FrontendConfig struct {
	URL string
}

// Load загружает конфигурацию из переменных окружения (и .env, если он есть)
func Load() (*Config, error) {
	// .env необязателен: в контейнере переменные приходят из окружения
	_ = godotenv.Load()

	accessDuration, err := getEnvDuration("JWT_ACCESS_DURATION", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	refreshDuration, err := getEnvDuration("JWT_REFRESH_DURATION", 15*24*time.Hour)
	if err != nil {
		return nil, err
	}
	tokenMaxAge, err := getEnvDuration("ACTION_TOKEN_MAX_AGE", 72*time.Hour)
	if err != nil {
		return nil, err
	}
	roleTTL, err := getEnvDuration("ROLE_CACHE_TTL", 600*time.Second)
	if err != nil {
		return nil, err
	}
	stateTTL, err := getEnvDuration("GOOGLE_STATE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	jweKey, err := ParseJWEKey(os.Getenv("JWE_KEY"))
	if err != nil {
		return nil, err
	}

	secret := getEnv("SECRET_KEY", "change-me-in-production")

	return &Config{
		Service:  getEnv("SERVICE_NAME", "account-service"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Logstash: getEnv("LOGSTASH_ADDR", ""),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("SERVER_PORT", "8080"),
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
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
			RoleTTL:  roleTTL,
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getEnv("KAFKA_NOTIFICATIONS_TOPIC", "account_notifications"),
		},
		JWT: JWTConfig{
			SecretKey:            getEnv("JWT_SECRET", secret),
			AccessTokenDuration:  accessDuration,
			RefreshTokenDuration: refreshDuration,
		},
		JWE: JWEConfig{Key: jweKey},
		Tokens: TokenConfig{
			Secret: secret,
			MaxAge: tokenMaxAge,
		},
		Cookies: CookieConfig{
			Domain:   getEnv("COOKIE_DOMAIN", ""),
			Secure:   getEnvBool("COOKIE_SECURE", true),
			SameSite: parseSameSite(getEnv("COOKIE_SAMESITE", "lax")),
		},
		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
			Issuer:       getEnv("GOOGLE_ISSUER", "https://accounts.google.com"),
			StateTTL:     stateTTL,
		},
		Frontend: FrontendConfig{
			URL: strings.TrimSuffix(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		},
	}, nil
}

// ParseJWEKey разбирает ключ сначала как hex, затем как сырые байты.
// Строка только из hex-цифр всегда считается hex и должна дать 32 байта:
// 32 hex-символа - это 16-байтный ключ, а не сырой.
// Ключ A256KW обязан быть ровно 32 байта.
func ParseJWEKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, fmt.Errorf("JWE_KEY is not set: %w", ErrInvalidJWEKey)
	}
	if decoded, err := hex.DecodeString(raw); err == nil {
		if len(decoded) != 32 {
			return nil, fmt.Errorf("JWE_KEY hex decodes to %d bytes: %w", len(decoded), ErrInvalidJWEKey)
		}
		return decoded, nil
	}
	if len(raw) == 32 {
		return []byte(raw), nil
	}
	return nil, ErrInvalidJWEKey
}

// DSN возвращает строку подключения к PostgreSQL
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

// Address возвращает адрес сервера в формате host:port
func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

// Enabled сообщает, настроен ли вход через Google
func (c *GoogleConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
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
	parts := strings.Split(getEnv(key, defaultValue), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(value) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
