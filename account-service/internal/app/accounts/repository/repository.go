package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"staffdesk/account-service/internal/app/accounts/entity"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrCacheMiss     = errors.New("cache miss")
)

// DB - часть pgxpool.Pool, которой пользуются репозитории
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByLogin(ctx context.Context, login string) (*entity.User, error)
	List(ctx context.Context) ([]entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	SetRoles(ctx context.Context, userID uuid.UUID, roleIDs []int) error
	SetActivation(ctx context.Context, id uuid.UUID, isActive, isVerified bool) error
	SetPassword(ctx context.Context, id uuid.UUID, hash string, changedAt time.Time) error
	ManagerOf(ctx context.Context, id uuid.UUID) (*uuid.UUID, error)
}

type RoleRepository interface {
	GetByID(ctx context.Context, id int) (*entity.Role, error)
	GetByName(ctx context.Context, name string) (*entity.Role, error)
	List(ctx context.Context) ([]entity.Role, error)
	Create(ctx context.Context, role *entity.Role) error
	Update(ctx context.Context, role *entity.Role) error
	Delete(ctx context.Context, id int) error
}

// RoleCache - общий кеш снимков ролей (ключ role:{id})
type RoleCache interface {
	Get(ctx context.Context, id int) (*entity.RoleSnapshot, error)
	Set(ctx context.Context, snapshot entity.RoleSnapshot) error
	Delete(ctx context.Context, id int) error
}

// OutstandingToken - выданный и ещё не истёкший refresh токен
type OutstandingToken struct {
	JTI       string
	ExpiresAt time.Time
}

type TokenRepository interface {
	SaveOutstanding(ctx context.Context, userID uuid.UUID, jti string, expiresAt time.Time) error
	ListOutstanding(ctx context.Context, userID uuid.UUID) ([]OutstandingToken, error)
	// AddToBlacklist возвращает false, если jti уже был в чёрном списке
	AddToBlacklist(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}
