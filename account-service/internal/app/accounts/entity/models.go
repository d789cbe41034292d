package entity

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UnusablePasswordPrefix помечает учётную запись без локального пароля (вход только через Google)
const UnusablePasswordPrefix = "!"

// ResourceUser - тип ресурса, к которому привязаны роли управления пользователями
const ResourceUser = "user"

// Стандартные роли, создаваемые командой setup-roles
const (
	RoleAdmin    = "Admin"
	RoleManager  = "Manager"
	RoleEmployee = "Employee"
)

// User представляет учётную запись (principal)
type User struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	Username          string     `json:"username" db:"username"`
	Email             string     `json:"email" db:"email"`
	FirstName         string     `json:"first_name" db:"first_name"`
	LastName          string     `json:"last_name" db:"last_name"`
	PasswordHash      string     `json:"-" db:"password_hash"`
	IsActive          bool       `json:"is_active" db:"is_active"`
	IsVerified        bool       `json:"is_verified" db:"is_verified"`
	IsSuperuser       bool       `json:"is_superuser" db:"is_superuser"`
	ManagerID         *uuid.UUID `json:"manager_id,omitempty" db:"manager_id"`
	RoleIDs           []int      `json:"role_ids" db:"-"`
	PasswordChangedAt *time.Time `json:"-" db:"password_changed_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// HasUsablePassword сообщает, можно ли войти в учётную запись по паролю
func (u *User) HasUsablePassword() bool {
	return u.PasswordHash != "" && !strings.HasPrefix(u.PasswordHash, UnusablePasswordPrefix)
}

// SetPasswordHash меняет хэш и отмечает время смены пароля.
// Время обрезается до микросекунд: столько хранит PostgreSQL, иначе токен сброса не сойдётся после чтения из БД.
func (u *User) SetPasswordHash(hash string, now time.Time) {
	changed := now.UTC().Truncate(time.Microsecond)
	u.PasswordHash = hash
	u.PasswordChangedAt = &changed
}

// TokenState возвращает значения полей, к которым привязан одноразовый токен данного назначения.
// Изменение любого из них делает ранее выданный токен недействительным.
func (u *User) TokenState(purpose TokenPurpose) []string {
	switch purpose {
	case PurposeActivation:
		return []string{strconv.FormatBool(u.IsActive), strconv.FormatBool(u.IsVerified)}
	case PurposePasswordReset:
		changed := ""
		if u.PasswordChangedAt != nil {
			changed = u.PasswordChangedAt.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano)
		}
		return []string{changed, u.Username}
	default:
		return nil
	}
}

// IsDeactivated сообщает, что подтверждённая учётная запись отключена.
// Неактивный, но не подтверждённый пользователь - это незавершённая регистрация с временной сессией.
func (u *User) IsDeactivated() bool {
	return !u.IsActive && u.IsVerified
}

// HasRole проверяет, назначена ли пользователю роль
func (u *User) HasRole(roleID int) bool {
	for _, id := range u.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Role - роль с уровнем (меньше = сильнее) и флагами операций над типом ресурса
type Role struct {
	ID         int       `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Level      int       `json:"level" db:"level"`
	Content    string    `json:"content" db:"content"`
	CanAdd     bool      `json:"can_add" db:"can_add"`
	CanEdit    bool      `json:"can_edit" db:"can_edit"`
	CanViewAll bool      `json:"can_view_all" db:"can_view_all"`
	CanDelete  bool      `json:"can_delete" db:"can_delete"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Snapshot возвращает неизменяемую копию полей роли, нужных для проверки прав
func (r *Role) Snapshot() RoleSnapshot {
	return RoleSnapshot{
		ID:         r.ID,
		Level:      r.Level,
		Content:    r.Content,
		CanAdd:     r.CanAdd,
		CanEdit:    r.CanEdit,
		CanViewAll: r.CanViewAll,
		CanDelete:  r.CanDelete,
	}
}

// RoleSnapshot - закешированное представление роли
type RoleSnapshot struct {
	ID         int    `json:"id"`
	Level      int    `json:"level"`
	Content    string `json:"content_id"`
	CanAdd     bool   `json:"can_add"`
	CanEdit    bool   `json:"can_edit"`
	CanViewAll bool   `json:"can_view_all"`
	CanDelete  bool   `json:"can_delete"`
}

// TokenPurpose - назначение одноразового токена
type TokenPurpose string

const (
	PurposeActivation    TokenPurpose = "activation"
	PurposePasswordReset TokenPurpose = "password_reset"
)

// TokenType - тип подписанного токена сессии
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// TokenPair содержит access и подписанный refresh токены
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"-"`
	RefreshJTI   string    `json:"-"`
	AccessExp    time.Time `json:"access_expires_at"`
	RefreshExp   time.Time `json:"-"`
}

// Session - выданная пара токенов вместе с зашифрованным refresh токеном для cookie
type Session struct {
	UserID   uuid.UUID
	Tokens   TokenPair
	Envelope string
}

// NotificationKind - тип письма, которое отправит воркер
type NotificationKind string

const (
	NotificationActivation    NotificationKind = "activation"
	NotificationPasswordReset NotificationKind = "password_reset"
)

// NotificationJob - задание на отправку письма, публикуется в Kafka
type NotificationJob struct {
	Kind      NotificationKind `json:"kind"`
	UserID    uuid.UUID        `json:"user_id"`
	UID       string           `json:"uid"`
	Username  string           `json:"username"`
	Email     string           `json:"email"`
	Token     string           `json:"token"`
	CreatedAt time.Time        `json:"created_at"`
}

// GoogleIdentity - подтверждённые Google данные пользователя
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
}
