package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"staffdesk/account-service/internal/app/accounts/entity"
)

const userColumns = `
	u.id, u.username, u.email, u.first_name, u.last_name, u.password_hash,
	u.is_active, u.is_verified, u.is_superuser, u.manager_id, u.password_changed_at,
	u.created_at, u.updated_at,
	COALESCE(array_agg(ur.role_id ORDER BY ur.role_id) FILTER (WHERE ur.role_id IS NOT NULL), '{}') AS role_ids`

const userFrom = `
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id`

type userRepository struct {
	db DB
}

// NewUserRepository создает репозиторий пользователей поверх pgx
func NewUserRepository(db DB) UserRepository {
	return &userRepository{db: db}
}

// Create создает пользователя и назначает ему роли в одной транзакции
func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO users (
			id, username, email, first_name, last_name, password_hash,
			is_active, is_verified, is_superuser, manager_id, password_changed_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	`
	_, err = tx.Exec(ctx, query,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName, user.PasswordHash,
		user.IsActive, user.IsVerified, user.IsSuperuser, user.ManagerID, user.PasswordChangedAt,
		user.CreatedAt,
	)
	if err != nil {
		return mapWriteError("failed to create user", err)
	}

	if err := insertUserRoles(ctx, tx, user.ID, user.RoleIDs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit user: %w", err)
	}
	user.UpdatedAt = user.CreatedAt
	return nil
}

// GetByID получает пользователя по ID
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	query := `SELECT` + userColumns + userFrom + ` WHERE u.id = $1 GROUP BY u.id`
	return r.getOne(ctx, "id", query, id)
}

// GetByUsername получает пользователя по имени
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	query := `SELECT` + userColumns + userFrom + ` WHERE u.username = $1 GROUP BY u.id`
	return r.getOne(ctx, "username", query, username)
}

// GetByEmail получает пользователя по email без учёта регистра
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	query := `SELECT` + userColumns + userFrom + ` WHERE lower(u.email) = lower($1) GROUP BY u.id`
	return r.getOne(ctx, "email", query, email)
}

// GetByLogin ищет пользователя по имени или email, совпадение по имени приоритетнее
func (r *userRepository) GetByLogin(ctx context.Context, login string) (*entity.User, error) {
	query := `SELECT` + userColumns + userFrom + `
		WHERE u.username = $1 OR lower(u.email) = lower($1)
		GROUP BY u.id
		ORDER BY (u.username = $1) DESC
		LIMIT 1`
	return r.getOne(ctx, "login", query, login)
}

func (r *userRepository) getOne(ctx context.Context, by string, query string, arg any) (*entity.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", by, err)
	}
	return user, nil
}

// List возвращает всех пользователей, упорядоченных по имени
func (r *userRepository) List(ctx context.Context) ([]entity.User, error) {
	query := `SELECT` + userColumns + userFrom + ` GROUP BY u.id ORDER BY u.username`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []entity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// Update сохраняет профиль, менеджера и флаг активности
func (r *userRepository) Update(ctx context.Context, user *entity.User) error {
	query := `
		UPDATE users
		SET username = $2, email = $3, first_name = $4, last_name = $5,
		    is_active = $6, manager_id = $7, updated_at = $8
		WHERE id = $1
	`
	user.UpdatedAt = time.Now().UTC()
	tag, err := r.db.Exec(ctx, query,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName,
		user.IsActive, user.ManagerID, user.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("failed to update user", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRoles заменяет набор ролей пользователя
func (r *userRepository) SetRoles(ctx context.Context, userID uuid.UUID, roleIDs []int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear user roles: %w", err)
	}
	if err := insertUserRoles(ctx, tx, userID, roleIDs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit user roles: %w", err)
	}
	return nil
}

// SetActivation сохраняет флаги is_active и is_verified
func (r *userRepository) SetActivation(ctx context.Context, id uuid.UUID, isActive, isVerified bool) error {
	query := `UPDATE users SET is_active = $2, is_verified = $3, updated_at = now() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, isActive, isVerified)
	if err != nil {
		return fmt.Errorf("failed to set activation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPassword сохраняет новый хэш пароля и время его смены
func (r *userRepository) SetPassword(ctx context.Context, id uuid.UUID, hash string, changedAt time.Time) error {
	query := `UPDATE users SET password_hash = $2, password_changed_at = $3, updated_at = now() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, hash, changedAt)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ManagerOf возвращает непосредственного менеджера пользователя (nil для корня иерархии)
func (r *userRepository) ManagerOf(ctx context.Context, id uuid.UUID) (*uuid.UUID, error) {
	var managerID *uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT manager_id FROM users WHERE id = $1`, id).Scan(&managerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get manager: %w", err)
	}
	return managerID, nil
}

func insertUserRoles(ctx context.Context, tx pgx.Tx, userID uuid.UUID, roleIDs []int) error {
	if len(roleIDs) == 0 {
		return nil
	}
	ids := make([]int32, len(roleIDs))
	for i, id := range roleIDs {
		ids[i] = int32(id)
	}

	query := `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, unnest($2::int[])
		ON CONFLICT DO NOTHING
	`
	if _, err := tx.Exec(ctx, query, userID, ids); err != nil {
		return mapWriteError("failed to assign roles", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*entity.User, error) {
	var (
		user    entity.User
		roleIDs []int32
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.IsActive,
		&user.IsVerified,
		&user.IsSuperuser,
		&user.ManagerID,
		&user.PasswordChangedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
		&roleIDs,
	)
	if err != nil {
		return nil, err
	}

	user.RoleIDs = make([]int, len(roleIDs))
	for i, id := range roleIDs {
		user.RoleIDs[i] = int(id)
	}
	return &user, nil
}
