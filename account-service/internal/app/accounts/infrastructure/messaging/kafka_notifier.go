package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"staffdesk/account-service/internal/app/accounts/entity"
	"staffdesk/pkg/logger"
	"staffdesk/pkg/metrics"
)

const serviceName = "account-service"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier публикует задания на письма в Kafka.
// Writer асинхронный: Enqueue не ждёт брокер, результат доставки приходит в complete.
type KafkaNotifier struct {
	writer messageWriter
	topic  string
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	n := &KafkaNotifier{topic: topic}
	n.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion:   n.complete,
		ErrorLogger:  logger.Printf{Level: zerolog.ErrorLevel},
	}
	return n
}

// Enqueue ставит задание в очередь writer'а. Ошибки только логируются: запрос пользователя уже выполнен.
func (n *KafkaNotifier) Enqueue(ctx context.Context, job entity.NotificationJob) {
	msg, err := n.message(job)
	if err != nil {
		metrics.RecordKafkaError(serviceName, n.topic, "encode")
		logger.Error().Err(err).Str("kind", string(job.Kind)).Msg("failed to encode notification job")
		return
	}

	// контекст запроса закончится раньше, чем writer отправит пачку
	if err := n.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		metrics.RecordKafkaError(serviceName, n.topic, "produce")
		logger.Error().Err(err).
			Str("kind", string(job.Kind)).
			Str("user_id", job.UserID.String()).
			Msg("failed to enqueue notification job")
	}
}

func (n *KafkaNotifier) message(job entity.NotificationJob) (kafka.Message, error) {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	value, err := json.Marshal(job)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal notification job: %w", err)
	}
	return kafka.Message{
		Key:   []byte(job.UserID.String()),
		Value: value,
		Time:  job.CreatedAt,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(job.Kind)},
		},
	}, nil
}

// complete вызывается writer'ом после попытки доставки пачки
func (n *KafkaNotifier) complete(messages []kafka.Message, err error) {
	if err != nil {
		for range messages {
			metrics.RecordKafkaError(serviceName, n.topic, "produce")
		}
		logger.Error().Err(err).Int("messages", len(messages)).Str("topic", n.topic).Msg("notification jobs were not delivered")
		return
	}

	for _, msg := range messages {
		metrics.RecordKafkaMessageProduced(serviceName, n.topic, time.Since(msg.Time))
	}
	logger.Debug().Int("messages", len(messages)).Str("topic", n.topic).Msg("notification jobs delivered")
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
