package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"staffdesk/account-service/internal/app/accounts/entity"
)

const roleColumns = `id, name, level, content, can_add, can_edit, can_view_all, can_delete, created_at`

type roleRepository struct {
	db DB
}

// NewRoleRepository создает новый репозиторий ролей
func NewRoleRepository(db DB) RoleRepository {
	return &roleRepository{db: db}
}

// GetByID получает роль по ID
func (r *roleRepository) GetByID(ctx context.Context, id int) (*entity.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = $1`

	role, err := scanRole(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get role by id: %w", err)
	}
	return role, nil
}

// GetByName получает роль по имени
func (r *roleRepository) GetByName(ctx context.Context, name string) (*entity.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE name = $1`

	role, err := scanRole(r.db.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get role by name: %w", err)
	}
	return role, nil
}

// List возвращает все роли от самой сильной к самой слабой
func (r *roleRepository) List(ctx context.Context) ([]entity.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles ORDER BY level, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []entity.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}

	return roles, nil
}

// Create создает роль и заполняет ID и created_at
func (r *roleRepository) Create(ctx context.Context, role *entity.Role) error {
	query := `
		INSERT INTO roles (name, level, content, can_add, can_edit, can_view_all, can_delete)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		role.Name, role.Level, role.Content, role.CanAdd, role.CanEdit, role.CanViewAll, role.CanDelete,
	).Scan(&role.ID, &role.CreatedAt)
	if err != nil {
		return mapWriteError("failed to create role", err)
	}
	return nil
}

// Update сохраняет все поля роли
func (r *roleRepository) Update(ctx context.Context, role *entity.Role) error {
	query := `
		UPDATE roles
		SET name = $2, level = $3, content = $4, can_add = $5, can_edit = $6, can_view_all = $7, can_delete = $8
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		role.ID, role.Name, role.Level, role.Content, role.CanAdd, role.CanEdit, role.CanViewAll, role.CanDelete,
	)
	if err != nil {
		return mapWriteError("failed to update role", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет роль (назначения снимаются каскадно)
func (r *roleRepository) Delete(ctx context.Context, id int) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRole(row pgx.Row) (*entity.Role, error) {
	var role entity.Role
	err := row.Scan(
		&role.ID,
		&role.Name,
		&role.Level,
		&role.Content,
		&role.CanAdd,
		&role.CanEdit,
		&role.CanViewAll,
		&role.CanDelete,
		&role.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &role, nil
}
