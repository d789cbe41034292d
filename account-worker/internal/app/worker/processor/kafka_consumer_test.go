package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"staffdesk/account-worker/internal/app/worker/entity"
	"staffdesk/account-worker/internal/app/worker/repository/mocks"
	"staffdesk/account-worker/internal/app/worker/service"
)

// MockNotificationSender мок для NotificationSender
type MockNotificationSender struct {
	mock.Mock
}

func (m *MockNotificationSender) Deliver(ctx context.Context, job *entity.NotificationJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// fakeReader отдаёт сообщения из канала и запоминает закоммиченные
type fakeReader struct {
	mu        sync.Mutex
	messages  chan kafka.Message
	committed []kafka.Message
	closed    bool
}

func newFakeReader() *fakeReader {
	return &fakeReader{messages: make(chan kafka.Message, 10)}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.messages:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return kafka.Message{}, context.DeadlineExceeded
	}
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Stats() kafka.ReaderStats {
	return kafka.ReaderStats{Topic: "account_notifications"}
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

// Хелперы

func newTestConsumer(retries int) (*KafkaConsumer, *fakeReader, *MockNotificationSender, *mocks.MockFailureRepository) {
	reader := newFakeReader()
	sender := new(MockNotificationSender)
	failures := new(mocks.MockFailureRepository)
	consumer := newKafkaConsumer(reader, ConsumerOptions{
		Topic:      "account_notifications",
		GroupID:    "account-worker-group",
		MaxRetries: retries,
	}, sender, failures)
	return consumer, reader, sender, failures
}

func jobMessage(t *testing.T, job entity.NotificationJob, offset int64) kafka.Message {
	t.Helper()
	value, err := json.Marshal(job)
	require.NoError(t, err)
	return kafka.Message{Topic: "account_notifications", Partition: 0, Offset: offset, Value: value}
}

func activationJob() entity.NotificationJob {
	return entity.NotificationJob{
		Kind:     entity.NotificationActivation,
		UserID:   uuid.New(),
		UID:      "dWlk",
		Username: "jane",
		Email:    "jane@example.com",
		Token:    "abc-123",
	}
}

// ===================== processMessage Tests =====================

func TestKafkaConsumer_ProcessMessage_Delivered(t *testing.T) {
	// Arrange
	consumer, _, sender, failures := newTestConsumer(5)
	ctx := context.Background()
	job := activationJob()

	sender.On("Deliver", ctx, mock.MatchedBy(func(j *entity.NotificationJob) bool {
		return j.UserID == job.UserID && j.Token == job.Token
	})).Return(nil).Once()

	// Act
	err := consumer.processMessage(ctx, jobMessage(t, job, 1))

	// Assert
	assert.NoError(t, err)
	sender.AssertExpectations(t)
	failures.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestKafkaConsumer_ProcessMessage_RetriesThenDelivers(t *testing.T) {
	consumer, _, sender, failures := newTestConsumer(5)
	ctx := context.Background()

	sender.On("Deliver", ctx, mock.Anything).Return(errors.New("smtp busy")).Twice()
	sender.On("Deliver", ctx, mock.Anything).Return(nil).Once()

	err := consumer.processMessage(ctx, jobMessage(t, activationJob(), 2))

	assert.NoError(t, err)
	sender.AssertNumberOfCalls(t, "Deliver", 3)
	failures.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestKafkaConsumer_ProcessMessage_RetriesExhausted(t *testing.T) {
	// Arrange
	consumer, _, sender, failures := newTestConsumer(3)
	ctx := context.Background()
	job := activationJob()

	sender.On("Deliver", ctx, mock.Anything).Return(errors.New("smtp down"))
	failures.On("Save", ctx, mock.MatchedBy(func(f *entity.NotificationFailure) bool {
		return f.Attempts == 3 &&
			f.Kind == string(entity.NotificationActivation) &&
			f.UserID == job.UserID.String() &&
			f.Email == job.Email &&
			f.Offset == 7 &&
			f.LastError != ""
	})).Return(nil).Once()

	// Act
	err := consumer.processMessage(ctx, jobMessage(t, job, 7))

	// Assert
	assert.NoError(t, err, "message is committed after the failure is recorded")
	sender.AssertNumberOfCalls(t, "Deliver", 3)
	failures.AssertExpectations(t)
}

func TestKafkaConsumer_ProcessMessage_PermanentErrorNotRetried(t *testing.T) {
	consumer, _, sender, failures := newTestConsumer(5)
	ctx := context.Background()

	sender.On("Deliver", ctx, mock.Anything).Return(fmt.Errorf("%w: unknown kind", service.ErrPermanent))
	failures.On("Save", ctx, mock.MatchedBy(func(f *entity.NotificationFailure) bool {
		return f.Attempts == 1
	})).Return(nil).Once()

	err := consumer.processMessage(ctx, jobMessage(t, activationJob(), 3))

	assert.NoError(t, err)
	sender.AssertNumberOfCalls(t, "Deliver", 1)
	failures.AssertExpectations(t)
}

func TestKafkaConsumer_ProcessMessage_MalformedPayload(t *testing.T) {
	consumer, _, sender, failures := newTestConsumer(5)
	ctx := context.Background()
	message := kafka.Message{Topic: "account_notifications", Offset: 9, Value: []byte("{not json")}

	failures.On("Save", ctx, mock.MatchedBy(func(f *entity.NotificationFailure) bool {
		return f.Kind == "unknown" && f.Payload == "{not json" && f.Attempts == 0
	})).Return(nil).Once()

	err := consumer.processMessage(ctx, message)

	assert.NoError(t, err)
	sender.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
	failures.AssertExpectations(t)
}

func TestKafkaConsumer_ProcessMessage_ReportStoreDown(t *testing.T) {
	// Arrange: отчёт не сохранился, сообщение всё равно считается обработанным
	consumer, _, sender, failures := newTestConsumer(1)
	ctx := context.Background()

	sender.On("Deliver", ctx, mock.Anything).Return(errors.New("smtp down"))
	failures.On("Save", ctx, mock.Anything).Return(errors.New("mongo unavailable"))

	// Act
	err := consumer.processMessage(ctx, jobMessage(t, activationJob(), 4))

	// Assert
	assert.NoError(t, err)
	failures.AssertNumberOfCalls(t, "Save", 1)
}

func TestKafkaConsumer_ProcessMessage_StoppedDuringBackoff(t *testing.T) {
	consumer, _, sender, failures := newTestConsumer(5)
	consumer.backoff = time.Hour
	ctx := context.Background()

	sender.On("Deliver", ctx, mock.Anything).Return(errors.New("smtp down"))
	close(consumer.stopChan)

	err := consumer.processMessage(ctx, jobMessage(t, activationJob(), 5))

	assert.ErrorIs(t, err, errStopped)
	sender.AssertNumberOfCalls(t, "Deliver", 1)
	failures.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// ===================== consume loop Tests =====================

func TestKafkaConsumer_StartStop_CommitsProcessed(t *testing.T) {
	// Arrange
	consumer, reader, sender, _ := newTestConsumer(5)
	sender.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	reader.messages <- jobMessage(t, activationJob(), 1)
	reader.messages <- jobMessage(t, activationJob(), 2)

	// Act
	consumer.Start(context.Background())

	// Assert
	assert.Eventually(t, func() bool { return reader.committedCount() == 2 }, time.Second, 5*time.Millisecond)
	consumer.Stop()

	reader.mu.Lock()
	defer reader.mu.Unlock()
	assert.True(t, reader.closed)
	assert.Equal(t, int64(1), reader.committed[0].Offset)
	assert.Equal(t, int64(2), reader.committed[1].Offset)
}

func TestKafkaConsumer_Stats(t *testing.T) {
	consumer, _, _, _ := newTestConsumer(5)

	assert.Equal(t, "account_notifications", consumer.Stats().Topic)
}
