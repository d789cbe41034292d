package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"staffdesk/account-service/internal/app/accounts/entity"
	"staffdesk/account-service/internal/app/accounts/repository"
	"staffdesk/account-service/internal/app/accounts/util"
	"staffdesk/pkg/logger"
)

// DefaultRoles - роли, без которых сервис не работает: Employee назначается при регистрации
func DefaultRoles() []entity.Role {
	return []entity.Role{
		{Name: entity.RoleAdmin, Level: 1, Content: entity.ResourceUser,
			CanAdd: true, CanEdit: true, CanViewAll: true, CanDelete: true},
		{Name: entity.RoleManager, Level: 2, Content: entity.ResourceUser,
			CanAdd: true, CanEdit: true, CanViewAll: true, CanDelete: true},
		{Name: entity.RoleEmployee, Level: 999, Content: entity.ResourceUser},
	}
}

// RoleSetupResult - итог для одной роли из DefaultRoles
type RoleSetupResult struct {
	Role    entity.Role
	Created bool
}

// Bootstrap выполняет первичную настройку: роли по умолчанию и первый суперпользователь
type Bootstrap struct {
	roles *RoleService
	users repository.UserRepository
}

func NewBootstrap(roles *RoleService, users repository.UserRepository) *Bootstrap {
	return &Bootstrap{roles: roles, users: users}
}

// SetupRoles создаёт недостающие роли по умолчанию. Повторный запуск ничего не меняет.
func (b *Bootstrap) SetupRoles(ctx context.Context) ([]RoleSetupResult, error) {
	defaults := DefaultRoles()
	results := make([]RoleSetupResult, 0, len(defaults))
	for _, def := range defaults {
		role, created, err := b.roles.EnsureRole(ctx, def)
		if err != nil {
			return results, fmt.Errorf("ensure role %q: %w", def.Name, err)
		}
		results = append(results, RoleSetupResult{Role: *role, Created: created})
		if created {
			logger.Info().Str("role", role.Name).Int("role_id", role.ID).Msg("role created")
		}
	}
	return results, nil
}

// CreateSuperuser создаёт активного подтверждённого суперпользователя с ролью Admin
func (b *Bootstrap) CreateSuperuser(ctx context.Context, username, email, password string) (*entity.User, error) {
	req := &entity.CreateUserRequest{Username: username, Email: email, Password: password}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	admin, err := b.roles.GetByName(ctx, entity.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("role %q is missing, run setup-roles first: %w", entity.RoleAdmin, err)
	}

	if err := checkAvailable(ctx, b.users, username, email); err != nil {
		return nil, err
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &entity.User{
		ID:          uuid.New(),
		Username:    username,
		Email:       email,
		IsActive:    true,
		IsVerified:  true,
		IsSuperuser: true,
		RoleIDs:     []int{admin.ID},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	user.SetPasswordHash(hash, now)

	if err := b.users.Create(ctx, user); err != nil {
		return nil, mapUserWriteError(err)
	}
	logger.Info().Str("user_id", user.ID.String()).Str("username", username).Msg("superuser created")
	return user, nil
}
