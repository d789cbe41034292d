package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// HTTP Метрики (общие для всех сервисов)
// =============================================================================

// HttpRequestsTotal - счётчик всех HTTP запросов
// Labels: service, method, path, status
// Пример запроса PromQL: rate(http_requests_total{service="account-service"}[5m])
var HttpRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	},
	[]string{"service", "method", "path", "status"},
)

// HttpRequestDuration - гистограмма времени ответа
// Labels: service, method, path
// Пример: histogram_quantile(0.95, rate(http_request_duration_seconds_bucket[5m]))
var HttpRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "http_request_duration_seconds",
		Help: "Duration of HTTP requests in seconds",
		// Бакеты для микросервисов: от 1ms до 10s
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"service", "method", "path"},
)

// HttpRequestsInFlight - текущее количество обрабатываемых запросов
var HttpRequestsInFlight = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Current number of HTTP requests being processed",
	},
	[]string{"service"},
)

// =============================================================================
// Database Метрики
// =============================================================================

// DbQueryDuration - время выполнения SQL запросов
var DbQueryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	},
	[]string{"service", "operation", "table"},
)

// DbConnectionsOpen - количество открытых соединений с БД
var DbConnectionsOpen = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "db_connections_open",
		Help: "Number of open database connections",
	},
	[]string{"service", "state"}, // state: idle, in_use
)

// DbErrors - счётчик ошибок базы данных
var DbErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "db_errors_total",
		Help: "Total number of database errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Redis Метрики
// =============================================================================

// RedisCacheHits - попадания в кеш
var RedisCacheHits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_cache_hits_total",
		Help: "Total number of Redis cache hits",
	},
	[]string{"service", "key_prefix"},
)

// RedisCacheMisses - промахи кеша
var RedisCacheMisses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_cache_misses_total",
		Help: "Total number of Redis cache misses",
	},
	[]string{"service", "key_prefix"},
)

// RedisOperationDuration - время операций Redis
var RedisOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "redis_operation_duration_seconds",
		Help:    "Duration of Redis operations in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	},
	[]string{"service", "operation"}, // operation: get, set, del, etc.
)

// RedisErrors - ошибки Redis
var RedisErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_errors_total",
		Help: "Total number of Redis errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Kafka Метрики
// =============================================================================

// KafkaMessagesProduced - отправленные сообщения
var KafkaMessagesProduced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_messages_produced_total",
		Help: "Total number of Kafka messages produced",
	},
	[]string{"service", "topic"},
)

// KafkaMessagesConsumed - полученные сообщения
var KafkaMessagesConsumed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_messages_consumed_total",
		Help: "Total number of Kafka messages consumed",
	},
	[]string{"service", "topic", "group"},
)

// KafkaProduceDuration - время отправки сообщения
var KafkaProduceDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "kafka_produce_duration_seconds",
		Help:    "Duration of Kafka produce operations",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	},
	[]string{"service", "topic"},
)

// KafkaConsumeDuration - время обработки сообщения
var KafkaConsumeDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "kafka_consume_duration_seconds",
		Help:    "Duration of Kafka message processing",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	},
	[]string{"service", "topic"},
)

// KafkaErrors - ошибки Kafka
var KafkaErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_errors_total",
		Help: "Total number of Kafka errors",
	},
	[]string{"service", "topic", "operation"}, // operation: produce, consume
)

// =============================================================================
// Business Метрики (учётные записи и авторизация)
// =============================================================================

// --- Account Service ---

// AuthRegistrations - регистрации пользователей
// Labels: method (password, google)
var AuthRegistrations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_registrations_total",
		Help: "Total number of user registrations",
	},
	[]string{"method"},
)

// AuthLogins - попытки входа
var AuthLogins = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Total number of login attempts",
	},
	[]string{"method", "status"}, // status: success, failed
)

// AuthTokensIssued - выданные токены
var AuthTokensIssued = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_tokens_issued_total",
		Help: "Total number of tokens issued",
	},
	[]string{"type"}, // access, refresh
)

// AuthRefreshRotations - ротации refresh токенов
var AuthRefreshRotations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_refresh_rotations_total",
		Help: "Total number of refresh token rotations",
	},
	[]string{"status"}, // success, rejected
)

// AuthTokensRevoked - отозванные refresh токены
var AuthTokensRevoked = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_tokens_revoked_total",
		Help: "Total number of refresh tokens put on the blacklist",
	},
	[]string{"reason"}, // logout, rotation, password_reset
)

// AuthEnvelopeFailures - неудачные расшифровки refresh cookie
var AuthEnvelopeFailures = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "auth_envelope_decrypt_failures_total",
		Help: "Total number of refresh envelopes that failed to decrypt",
	},
)

// AuthActionTokens - проверки одноразовых токенов активации и сброса пароля
var AuthActionTokens = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_action_tokens_total",
		Help: "Total number of one-time action token checks",
	},
	[]string{"purpose", "status"}, // purpose: activation, password_reset
)

// PermissionDecisions - решения движка прав
// Labels: check (model, object), result (allow, deny, error)
var PermissionDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "permission_decisions_total",
		Help: "Total number of permission decisions",
	},
	[]string{"check", "method", "result"},
)

// --- Account Worker ---

// WorkerNotifications - обработанные задания уведомлений
var WorkerNotifications = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "worker_notifications_total",
		Help: "Total number of notification jobs processed by worker",
	},
	[]string{"kind", "status"}, // status: sent, retried, failed
)

// WorkerMaintenanceRuns - запуски плановых задач
var WorkerMaintenanceRuns = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "worker_maintenance_runs_total",
		Help: "Total number of scheduled maintenance runs",
	},
	[]string{"job", "status"}, // success, failed
)

// WorkerMaintenanceAffected - количество затронутых записей плановыми задачами
var WorkerMaintenanceAffected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "worker_maintenance_affected_total",
		Help: "Total number of records removed by scheduled maintenance",
	},
	[]string{"job"},
)
