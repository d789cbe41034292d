package repository

import (
	"context"
	"time"

	"staffdesk/account-worker/internal/app/worker/entity"
)

// AccountRepository - операции очистки над таблицей users
type AccountRepository interface {
	// PurgeUnactivated удаляет неактивированные и неподтверждённые учётные записи,
	// созданные раньше createdBefore. Возвращает число удалённых строк.
	PurgeUnactivated(ctx context.Context, createdBefore time.Time) (int64, error)
}

// TokenRepository - обслуживание реестра выданных refresh токенов в Redis
type TokenRepository interface {
	// PruneOutstanding убирает из множеств user_tokens:* идентификаторы истёкших токенов
	PruneOutstanding(ctx context.Context) (int64, error)
}

// FailureRepository - отчёты о неотправленных письмах
type FailureRepository interface {
	Save(ctx context.Context, failure *entity.NotificationFailure) error
	CountSince(ctx context.Context, since time.Time) (int64, error)
}
