package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"staffdesk/account-worker/internal/app/worker/entity"
	"staffdesk/account-worker/internal/app/worker/repository"
	"staffdesk/account-worker/internal/app/worker/service"
	"staffdesk/pkg/logger"
	"staffdesk/pkg/metrics"
)

const serviceName = "account-worker"

var errStopped = errors.New("consumer stopped")

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Stats() kafka.ReaderStats
	Close() error
}

// ConsumerOptions - параметры подписки и повторов
type ConsumerOptions struct {
	Brokers      []string
	Topic        string
	GroupID      string
	MinBytes     int
	MaxBytes     int
	MaxRetries   int
	RetryBackoff time.Duration
}

// KafkaConsumer обрабатывает задания из топика account_notifications.
// Offset коммитится после доставки письма или после записи отчёта о неудаче.
type KafkaConsumer struct {
	reader   messageReader
	sender   service.NotificationSender
	failures repository.FailureRepository
	topic    string
	groupID  string
	retries  int
	backoff  time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewKafkaConsumer создает consumer группы opts.GroupID
func NewKafkaConsumer(opts ConsumerOptions, sender service.NotificationSender, failures repository.FailureRepository) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        opts.Brokers,
		Topic:          opts.Topic,
		GroupID:        opts.GroupID,
		MinBytes:       opts.MinBytes,
		MaxBytes:       opts.MaxBytes,
		StartOffset:    kafka.FirstOffset, // новая группа не должна терять уже поставленные письма
		CommitInterval: 0,                 // только явный CommitMessages
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: time.Second,
		ErrorLogger:    logger.Printf{Level: zerolog.ErrorLevel},
	})
	return newKafkaConsumer(reader, opts, sender, failures)
}

func newKafkaConsumer(reader messageReader, opts ConsumerOptions, sender service.NotificationSender, failures repository.FailureRepository) *KafkaConsumer {
	retries := opts.MaxRetries
	if retries < 1 {
		retries = 1
	}
	return &KafkaConsumer{
		reader:   reader,
		sender:   sender,
		failures: failures,
		topic:    opts.Topic,
		groupID:  opts.GroupID,
		retries:  retries,
		backoff:  opts.RetryBackoff,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start запускает consumer в отдельной горутине
func (c *KafkaConsumer) Start(ctx context.Context) {
	logger.Info().Str("topic", c.topic).Str("group", c.groupID).Msg("Starting Kafka consumer")
	go c.consume(ctx)
}

// Stop останавливает consumer и дожидается завершения текущего сообщения
func (c *KafkaConsumer) Stop() {
	logger.Info().Msg("Stopping Kafka consumer...")
	close(c.stopChan)
	<-c.doneChan
	if err := c.reader.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close Kafka reader")
	}
	logger.Info().Msg("Kafka consumer stopped")
}

// Stats возвращает статистику reader'а для healthcheck
func (c *KafkaConsumer) Stats() kafka.ReaderStats {
	return c.reader.Stats()
}

func (c *KafkaConsumer) consume(ctx context.Context) {
	defer close(c.doneChan)

	for {
		select {
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		message, err := c.reader.FetchMessage(readCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			metrics.RecordKafkaError(serviceName, c.topic, "fetch")
			logger.Error().Err(err).Msg("Error fetching message")
			if !c.sleep(ctx, time.Second) {
				return
			}
			continue
		}

		started := time.Now()
		if err := c.processMessage(ctx, message); err != nil {
			// остановка посреди повторов: сообщение придёт снова после перезапуска
			logger.Warn().Err(err).Int64("offset", message.Offset).Msg("Message left uncommitted")
			return
		}

		if err := c.reader.CommitMessages(ctx, message); err != nil {
			metrics.RecordKafkaError(serviceName, c.topic, "commit")
			logger.Error().Err(err).Int64("offset", message.Offset).Msg("Error committing message")
			continue
		}
		metrics.RecordKafkaMessageConsumed(serviceName, c.topic, c.groupID, time.Since(started))
	}
}

// processMessage возвращает ошибку только если обработку прервала остановка.
// Итоговая неудача отправки фиксируется отчётом, и сообщение считается обработанным.
func (c *KafkaConsumer) processMessage(ctx context.Context, message kafka.Message) error {
	var job entity.NotificationJob
	if err := json.Unmarshal(message.Value, &job); err != nil {
		metrics.WorkerNotifications.WithLabelValues("unknown", "failed").Inc()
		c.report(ctx, message, nil, 0, fmt.Errorf("failed to unmarshal notification job: %w", err))
		return nil
	}

	log := logger.Component("notifications").With().
		Str("kind", string(job.Kind)).
		Str("user_id", job.UserID.String()).
		Int64("offset", message.Offset).
		Int("partition", message.Partition).
		Logger()

	var (
		lastErr  error
		attempts int
	)
	for attempts = 1; attempts <= c.retries; attempts++ {
		lastErr = c.sender.Deliver(ctx, &job)
		if lastErr == nil {
			metrics.WorkerNotifications.WithLabelValues(string(job.Kind), "sent").Inc()
			log.Debug().Int("attempt", attempts).Msg("Notification delivered")
			return nil
		}
		if errors.Is(lastErr, service.ErrPermanent) || attempts == c.retries {
			break
		}

		metrics.WorkerNotifications.WithLabelValues(string(job.Kind), "retried").Inc()
		log.Warn().Err(lastErr).Int("attempt", attempts).Dur("backoff", c.backoff).Msg("Notification failed, retrying")
		if !c.sleep(ctx, c.backoff) {
			return errStopped
		}
	}

	metrics.WorkerNotifications.WithLabelValues(string(job.Kind), "failed").Inc()
	log.Error().Err(lastErr).Int("attempts", attempts).Msg("Notification dropped")
	c.report(ctx, message, &job, attempts, lastErr)
	return nil
}

// report сохраняет отчёт в MongoDB. Если и это не удалось, отчёт остаётся только в логе.
func (c *KafkaConsumer) report(ctx context.Context, message kafka.Message, job *entity.NotificationJob, attempts int, cause error) {
	failure := &entity.NotificationFailure{
		Kind:      "unknown",
		Attempts:  attempts,
		LastError: cause.Error(),
		Topic:     message.Topic,
		Partition: message.Partition,
		Offset:    message.Offset,
	}
	if job != nil {
		failure.Kind = string(job.Kind)
		failure.UserID = job.UserID.String()
		failure.Email = job.Email
	} else {
		failure.Payload = string(message.Value)
	}

	if err := c.failures.Save(ctx, failure); err != nil {
		logger.Error().Err(err).
			Str("kind", failure.Kind).
			Str("user_id", failure.UserID).
			Int64("offset", failure.Offset).
			Str("cause", failure.LastError).
			Msg("Failed to record notification failure")
	}
}

// sleep ждёт d, возвращает false при остановке
func (c *KafkaConsumer) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-c.stopChan:
		return false
	case <-ctx.Done():
		return false
	}
}
