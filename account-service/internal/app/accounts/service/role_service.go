package service

import (
	"context"
	"errors"
	"fmt"

	"staffdesk/account-service/internal/app/accounts/entity"
	"staffdesk/account-service/internal/app/accounts/repository"
	"staffdesk/pkg/logger"
	"staffdesk/pkg/metrics"
)

const roleCachePrefix = "role"

// RoleService управляет ролями и их кешем.
// Чтение снимков идёт через кеш, любое изменение роли синхронно удаляет её снимок.
type RoleService struct {
	roleRepo repository.RoleRepository
	cache    repository.RoleCache
	service  string
}

// NewRoleService создает сервис ролей
func NewRoleService(roleRepo repository.RoleRepository, cache repository.RoleCache, serviceName string) *RoleService {
	return &RoleService{
		roleRepo: roleRepo,
		cache:    cache,
		service:  serviceName,
	}
}

// GetSnapshot возвращает снимок роли из кеша, при промахе загружает из БД и кладёт в кеш.
// Недоступный кеш не мешает: чтение уходит в БД.
func (s *RoleService) GetSnapshot(ctx context.Context, id int) (*entity.RoleSnapshot, error) {
	cached, cacheErr := s.cache.Get(ctx, id)
	switch {
	case cacheErr == nil:
		metrics.RecordCacheHit(s.service, roleCachePrefix)
		return cached, nil
	case errors.Is(cacheErr, repository.ErrCacheMiss):
		metrics.RecordCacheMiss(s.service, roleCachePrefix)
	default:
		metrics.RecordRedisError(s.service, metrics.RedisOpGet)
		logger.Warn().Err(cacheErr).Int("role_id", id).Msg("role cache unavailable, reading from database")
	}

	role, err := s.roleRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, transient("load role", err)
	}

	snapshot := role.Snapshot()
	if cacheErr == nil || errors.Is(cacheErr, repository.ErrCacheMiss) {
		if err := s.cache.Set(ctx, snapshot); err != nil {
			metrics.RecordRedisError(s.service, metrics.RedisOpSet)
			logger.Warn().Err(err).Int("role_id", id).Msg("failed to cache role")
		}
	}
	return &snapshot, nil
}

// Get возвращает роль из БД
func (s *RoleService) Get(ctx context.Context, id int) (*entity.Role, error) {
	role, err := s.roleRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// GetByName возвращает роль по имени
func (s *RoleService) GetByName(ctx context.Context, name string) (*entity.Role, error) {
	role, err := s.roleRepo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role by name: %w", err)
	}
	return role, nil
}

// List возвращает все роли
func (s *RoleService) List(ctx context.Context) ([]entity.Role, error) {
	roles, err := s.roleRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	if roles == nil {
		roles = []entity.Role{}
	}
	return roles, nil
}

// Create создает роль
func (s *RoleService) Create(ctx context.Context, req *entity.CreateRoleRequest) (*entity.Role, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	role := &entity.Role{
		Name:       req.Name,
		Level:      req.Level,
		Content:    req.Content,
		CanAdd:     req.CanAdd,
		CanEdit:    req.CanEdit,
		CanViewAll: req.CanViewAll,
		CanDelete:  req.CanDelete,
	}
	if err := s.save(ctx, role, s.roleRepo.Create); err != nil {
		return nil, err
	}
	return role, nil
}

// Update частично обновляет роль
func (s *RoleService) Update(ctx context.Context, id int, req *entity.UpdateRoleRequest) (*entity.Role, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	role, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		role.Name = *req.Name
	}
	if req.Level != nil {
		role.Level = *req.Level
	}
	if req.Content != nil {
		role.Content = *req.Content
	}
	if req.CanAdd != nil {
		role.CanAdd = *req.CanAdd
	}
	if req.CanEdit != nil {
		role.CanEdit = *req.CanEdit
	}
	if req.CanViewAll != nil {
		role.CanViewAll = *req.CanViewAll
	}
	if req.CanDelete != nil {
		role.CanDelete = *req.CanDelete
	}

	if err := s.save(ctx, role, s.roleRepo.Update); err != nil {
		return nil, err
	}
	return role, nil
}

// Delete удаляет роль и её снимок в кеше
func (s *RoleService) Delete(ctx context.Context, id int) error {
	if err := s.roleRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("failed to delete role: %w", err)
	}
	return s.evict(ctx, id)
}

// EnsureRole создает роль, если роли с таким именем ещё нет. Возвращает true, если роль создана.
func (s *RoleService) EnsureRole(ctx context.Context, role entity.Role) (*entity.Role, bool, error) {
	existing, err := s.GetByName(ctx, role.Name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrRoleNotFound) {
		return nil, false, err
	}

	if err := s.save(ctx, &role, s.roleRepo.Create); err != nil {
		return nil, false, err
	}
	return &role, true, nil
}

func (s *RoleService) save(ctx context.Context, role *entity.Role, write func(context.Context, *entity.Role) error) error {
	if err := write(ctx, role); err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyExists):
			return ErrRoleExists
		case errors.Is(err, repository.ErrNotFound):
			return ErrRoleNotFound
		}
		return fmt.Errorf("failed to save role: %w", err)
	}
	return s.evict(ctx, role.ID)
}

// evict удаляет снимок роли. Ошибка означает, что запись в БД уже сохранена, а снимок мог остаться до истечения TTL.
func (s *RoleService) evict(ctx context.Context, id int) error {
	if err := s.cache.Delete(ctx, id); err != nil {
		metrics.RecordRedisError(s.service, metrics.RedisOpDel)
		logger.Error().Err(err).Int("role_id", id).Msg("failed to evict role from cache")
		return transient("evict role snapshot", err)
	}
	return nil
}
