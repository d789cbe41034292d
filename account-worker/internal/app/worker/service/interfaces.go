package service

import (
	"context"

	"staffdesk/account-worker/internal/app/worker/entity"
)

// Mailer доставляет готовое письмо
type Mailer interface {
	Send(ctx context.Context, msg entity.EmailMessage) error
}

// NotificationSender обрабатывает одно задание из Kafka
type NotificationSender interface {
	Deliver(ctx context.Context, job *entity.NotificationJob) error
}

// MaintenanceRunner выполняет плановые задачи
type MaintenanceRunner interface {
	CleanupTokens(ctx context.Context) (int64, error)
	PurgeAccounts(ctx context.Context) (int64, error)
}
