package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"staffdesk/account-worker/internal/app/worker/entity"
	"staffdesk/pkg/metrics"
)

const serviceName = "account-worker"

// accountRepository реализует AccountRepository через GORM
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository создает репозиторий учётных записей
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

// PurgeUnactivated удаляет только записи с is_active=false И is_verified=false.
// Деактивированные пользователи уже подтверждали почту и под удаление не попадают.
// Связи user_roles удаляются каскадом.
func (r *accountRepository) PurgeUnactivated(ctx context.Context, createdBefore time.Time) (int64, error) {
	defer metrics.NewDbTimer(serviceName, metrics.DbOpDelete, "users").ObserveDuration()

	result := r.db.WithContext(ctx).
		Where("is_active = ? AND is_verified = ? AND created_at < ?", false, false, createdBefore).
		Delete(&entity.Account{})

	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpDelete)
		return 0, fmt.Errorf("failed to purge unactivated accounts: %w", result.Error)
	}

	return result.RowsAffected, nil
}
