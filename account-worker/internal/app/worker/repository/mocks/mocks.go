package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"staffdesk/account-worker/internal/app/worker/entity"
)

// MockAccountRepository мок для AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) PurgeUnactivated(ctx context.Context, createdBefore time.Time) (int64, error) {
	args := m.Called(ctx, createdBefore)
	return args.Get(0).(int64), args.Error(1)
}

// MockTokenRepository мок для TokenRepository
type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) PruneOutstanding(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockFailureRepository мок для FailureRepository
type MockFailureRepository struct {
	mock.Mock
}

func (m *MockFailureRepository) Save(ctx context.Context, failure *entity.NotificationFailure) error {
	args := m.Called(ctx, failure)
	return args.Error(0)
}

func (m *MockFailureRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(int64), args.Error(1)
}
