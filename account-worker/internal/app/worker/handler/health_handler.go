package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/gorm"

	"staffdesk/account-worker/internal/app/worker/repository"
	"staffdesk/pkg/logger"
)

type mongoPinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

type consumerStats interface {
	Stats() kafka.ReaderStats
}

// HealthCheckHandler проверяет хранилища, с которыми работает воркер
type HealthCheckHandler struct {
	db          *gorm.DB
	redisClient *redis.Client
	mongo       mongoPinger
	consumer    consumerStats
	failures    repository.FailureRepository
}

func NewHealthCheckHandler(
	db *gorm.DB,
	redisClient *redis.Client,
	mongo mongoPinger,
	consumer consumerStats,
	failures repository.FailureRepository,
) *HealthCheckHandler {
	return &HealthCheckHandler{
		db:          db,
		redisClient: redisClient,
		mongo:       mongo,
		consumer:    consumer,
		failures:    failures,
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}

func (h *HealthCheckHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	overallStatus := "healthy"

	required := map[string]func(context.Context) error{
		"database": h.checkDatabase,
		"redis":    h.checkRedis,
		"mongodb":  h.checkMongo,
	}
	for name, check := range required {
		if err := check(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			overallStatus = "unhealthy"
		} else {
			checks[name] = "healthy"
		}
	}

	// предупреждения не влияют на общий статус
	if warning := h.checkConsumer(); warning != "" {
		checks["kafka"] = "warning: " + warning
	} else {
		checks["kafka"] = "healthy"
	}
	if warning := h.checkFailures(ctx); warning != "" {
		checks["notifications"] = "warning: " + warning
	} else {
		checks["notifications"] = "healthy"
	}

	response := HealthResponse{
		Status:    overallStatus,
		Checks:    checks,
		Timestamp: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")

	if overallStatus != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Warn().Err(err).Msg("Failed to write health response")
	}
}

func (h *HealthCheckHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.checkDatabase(ctx); err != nil {
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}

	if err := h.checkRedis(ctx); err != nil {
		http.Error(w, "redis not ready", http.StatusServiceUnavailable)
		return
	}

	if err := h.checkMongo(ctx); err != nil {
		http.Error(w, "mongodb not ready", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (h *HealthCheckHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}

func (h *HealthCheckHandler) checkDatabase(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (h *HealthCheckHandler) checkRedis(ctx context.Context) error {
	return h.redisClient.Ping(ctx).Err()
}

func (h *HealthCheckHandler) checkMongo(ctx context.Context) error {
	return h.mongo.Ping(ctx, readpref.Primary())
}

func (h *HealthCheckHandler) checkConsumer() string {
	stats := h.consumer.Stats()
	if stats.Errors > 0 {
		return fmt.Sprintf("%d fetch errors since last check, lag %d", stats.Errors, stats.Lag)
	}
	return ""
}

func (h *HealthCheckHandler) checkFailures(ctx context.Context) string {
	n, err := h.failures.CountSince(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		return "failure reports unavailable"
	}
	if n > 0 {
		return fmt.Sprintf("%d notifications failed in the last hour", n)
	}
	return ""
}

func (h *HealthCheckHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/health/readiness", h.Readiness)
	mux.HandleFunc("/health/liveness", h.Liveness)
}
