package entity

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationKind - тип письма
type NotificationKind string

const (
	NotificationActivation    NotificationKind = "activation"
	NotificationPasswordReset NotificationKind = "password_reset"
)

// NotificationJob - задание из топика account_notifications.
// UID уже закодирован account-service и вставляется в ссылку как есть.
type NotificationJob struct {
	Kind      NotificationKind `json:"kind"`
	UserID    uuid.UUID        `json:"user_id"`
	UID       string           `json:"uid"`
	Username  string           `json:"username"`
	Email     string           `json:"email"`
	Token     string           `json:"token"`
	CreatedAt time.Time        `json:"created_at"`
}

// EmailMessage - готовое письмо для Mailer
type EmailMessage struct {
	To      string
	Subject string
	Body    string
	Link    string
}

// NotificationFailure - отчёт о письме, которое не удалось отправить, хранится в MongoDB
type NotificationFailure struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Kind      string             `bson:"kind"`
	UserID    string             `bson:"user_id,omitempty"`
	Email     string             `bson:"email,omitempty"`
	Attempts  int                `bson:"attempts"`
	LastError string             `bson:"last_error"`
	Payload   string             `bson:"payload,omitempty"` // сырое сообщение, если его не удалось разобрать
	Topic     string             `bson:"topic"`
	Partition int                `bson:"partition"`
	Offset    int64              `bson:"offset"`
	FailedAt  time.Time          `bson:"failed_at"`
}

// Account - строка users, нужная задаче очистки
type Account struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username   string    `gorm:"type:varchar(150);not null"`
	IsActive   bool      `gorm:"not null;default:false"`
	IsVerified bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (Account) TableName() string {
	return "users"
}

// MaintenanceJob - имя плановой задачи, оно же метка в метриках
type MaintenanceJob string

const (
	JobCleanupTokens MaintenanceJob = "cleanup_blacklisted_tokens"
	JobPurgeAccounts MaintenanceJob = "purge_unactivated_accounts"
)
