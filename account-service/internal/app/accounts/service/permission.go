package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"staffdesk/account-service/internal/app/accounts/entity"
	"staffdesk/account-service/internal/app/accounts/repository"
	"staffdesk/pkg/logger"
	"staffdesk/pkg/metrics"
)

// DefaultMaxHierarchyDepth ограничивает подъём по цепочке менеджеров
const DefaultMaxHierarchyDepth = 64

// RoleSource отдаёт снимки ролей (обычно через кеш)
type RoleSource interface {
	GetSnapshot(ctx context.Context, id int) (*entity.RoleSnapshot, error)
}

// HierarchySource отдаёт непосредственного менеджера пользователя
type HierarchySource interface {
	ManagerOf(ctx context.Context, id uuid.UUID) (*uuid.UUID, error)
}

// ManagerForest - иерархия в памяти: пользователь -> менеджер
type ManagerForest map[uuid.UUID]uuid.UUID

func (f ManagerForest) ManagerOf(_ context.Context, id uuid.UUID) (*uuid.UUID, error) {
	parent, ok := f[id]
	if !ok {
		return nil, nil
	}
	return &parent, nil
}

// PermissionEngine решает, может ли пользователь выполнить метод над типом ресурса или конкретным объектом.
// Любая ошибка зависимостей приводит к отказу.
type PermissionEngine struct {
	roles     RoleSource
	hierarchy HierarchySource
	maxDepth  int
}

// NewPermissionEngine создает движок прав
func NewPermissionEngine(roles RoleSource, hierarchy HierarchySource, maxDepth int) *PermissionEngine {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxHierarchyDepth
	}
	return &PermissionEngine{roles: roles, hierarchy: hierarchy, maxDepth: maxDepth}
}

// HasPermission проверяет право на метод над типом ресурса.
// Для POST нужна целевая роль: её уровень должен быть строго больше уровня роли, дающей can_add.
func (e *PermissionEngine) HasPermission(ctx context.Context, principal *entity.User, method, resourceType string, targetRoleID *int) (bool, error) {
	allowed, err := e.hasPermission(ctx, principal, method, resourceType, targetRoleID)
	metrics.RecordPermissionDecision("model", method, allowed, err)
	if err != nil {
		return false, err
	}
	return allowed, nil
}

func (e *PermissionEngine) hasPermission(ctx context.Context, principal *entity.User, method, resourceType string, targetRoleID *int) (bool, error) {
	if method == http.MethodOptions {
		return true, nil
	}
	if principal == nil {
		return false, nil
	}
	if principal.IsSuperuser {
		return true, nil
	}
	if len(principal.RoleIDs) == 0 {
		return false, nil
	}

	var target *entity.RoleSnapshot
	for _, roleID := range principal.RoleIDs {
		role, err := e.roles.GetSnapshot(ctx, roleID)
		if err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				// назначение на удалённую роль ничего не даёт
				continue
			}
			return false, err
		}
		if role.Content != resourceType {
			continue
		}

		switch method {
		case http.MethodGet, http.MethodHead:
			if role.CanViewAll {
				return true, nil
			}
		case http.MethodPut, http.MethodPatch:
			if role.CanEdit {
				return true, nil
			}
		case http.MethodDelete:
			if role.CanDelete {
				return true, nil
			}
		case http.MethodPost:
			if !role.CanAdd {
				continue
			}
			if targetRoleID == nil {
				return false, nil
			}
			if target == nil {
				target, err = e.roles.GetSnapshot(ctx, *targetRoleID)
				if err != nil {
					if errors.Is(err, ErrRoleNotFound) {
						return false, nil
					}
					return false, err
				}
			}
			if target.Level > role.Level {
				return true, nil
			}
		}
	}

	return false, nil
}

// HasObjectPermission проверяет право на метод над конкретным пользователем.
// Чтение разрешено всем прошедшим HasPermission, изменение только менеджерам ресурса по цепочке.
func (e *PermissionEngine) HasObjectPermission(ctx context.Context, principal *entity.User, method string, resource *entity.User) (bool, error) {
	allowed, err := e.hasObjectPermission(ctx, principal, method, resource)
	metrics.RecordPermissionDecision("object", method, allowed, err)
	if err != nil {
		return false, err
	}
	return allowed, nil
}

func (e *PermissionEngine) hasObjectPermission(ctx context.Context, principal *entity.User, method string, resource *entity.User) (bool, error) {
	if principal == nil || resource == nil {
		return false, nil
	}
	if principal.IsSuperuser {
		return true, nil
	}

	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true, nil
	case http.MethodPut, http.MethodPatch, http.MethodDelete:
		return e.IsUnderManager(ctx, principal.ID, resource)
	default:
		return false, nil
	}
}

// IsUnderManager сообщает, является ли managerID менеджером ресурса напрямую или через цепочку
func (e *PermissionEngine) IsUnderManager(ctx context.Context, managerID uuid.UUID, resource *entity.User) (bool, error) {
	return e.reaches(ctx, resource.ID, resource.ManagerID, managerID)
}

// WouldCreateCycle сообщает, замкнёт ли назначение newManagerID менеджером userID цепочку на себя
func (e *PermissionEngine) WouldCreateCycle(ctx context.Context, userID, newManagerID uuid.UUID) (bool, error) {
	if userID == newManagerID {
		return true, nil
	}
	return e.reaches(ctx, newManagerID, &newManagerID, userID)
}

// reaches поднимается по менеджерам от start и ищет target.
// Обход ограничен множеством посещённых узлов и maxDepth, поэтому завершается и на испорченных данных.
func (e *PermissionEngine) reaches(ctx context.Context, origin uuid.UUID, start *uuid.UUID, target uuid.UUID) (bool, error) {
	visited := map[uuid.UUID]struct{}{origin: {}}
	current := start

	for depth := 0; current != nil; depth++ {
		if *current == target {
			return true, nil
		}
		if depth >= e.maxDepth {
			logger.Warn().Str("origin", origin.String()).Int("max_depth", e.maxDepth).Msg("manager chain too deep, denying")
			return false, nil
		}
		if _, seen := visited[*current]; seen && depth > 0 {
			logger.Warn().Str("origin", origin.String()).Str("node", current.String()).Msg("cycle in manager chain, denying")
			return false, nil
		}
		visited[*current] = struct{}{}

		next, err := e.hierarchy.ManagerOf(ctx, *current)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				logger.Warn().Str("node", current.String()).Msg("dangling manager reference")
				return false, nil
			}
			return false, transient("load manager", err)
		}
		current = next
	}

	return false, nil
}
