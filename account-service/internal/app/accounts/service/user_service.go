package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"staffdesk/account-service/internal/app/accounts/entity"
	"staffdesk/account-service/internal/app/accounts/repository"
	"staffdesk/account-service/internal/app/accounts/util"
	"staffdesk/pkg/logger"
)

// SessionRevoker отзывает все сессии пользователя
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID uuid.UUID) (int, error)
}

// RoleLookup загружает роль по ID
type RoleLookup interface {
	Get(ctx context.Context, id int) (*entity.Role, error)
	GetByName(ctx context.Context, name string) (*entity.Role, error)
}

// UserService - справочник пользователей. Каждая операция проходит проверку прав.
type UserService struct {
	users    repository.UserRepository
	roles    RoleLookup
	engine   *PermissionEngine
	sessions SessionRevoker
	now      func() time.Time
}

func NewUserService(users repository.UserRepository, roles RoleLookup, engine *PermissionEngine, sessions SessionRevoker) *UserService {
	return &UserService{
		users:    users,
		roles:    roles,
		engine:   engine,
		sessions: sessions,
		now:      time.Now,
	}
}

// List возвращает пользователей: текущий первым, остальные по username
func (s *UserService) List(ctx context.Context, principal *entity.User) ([]entity.User, error) {
	if err := s.authorize(ctx, principal, http.MethodGet, nil); err != nil {
		return nil, err
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, transient("list users", err)
	}

	sort.SliceStable(users, func(i, j int) bool {
		iSelf, jSelf := users[i].ID == principal.ID, users[j].ID == principal.ID
		if iSelf != jSelf {
			return iSelf
		}
		return users[i].Username < users[j].Username
	})
	return users, nil
}

// Get возвращает пользователя по ID
func (s *UserService) Get(ctx context.Context, principal *entity.User, id uuid.UUID) (*entity.User, error) {
	if err := s.authorize(ctx, principal, http.MethodGet, nil); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeObject(ctx, principal, http.MethodGet, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Create создает пользователя. Каждая назначаемая роль должна быть слабее роли создателя.
// Если менеджер не указан, им становится создатель (кроме суперпользователя).
func (s *UserService) Create(ctx context.Context, principal *entity.User, req *entity.CreateUserRequest) (*entity.User, error) {
	if principal == nil {
		return nil, ErrUnauthenticated
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	roleIDs, err := s.resolveRoles(ctx, req.RoleIDs)
	if err != nil {
		return nil, err
	}
	for _, roleID := range roleIDs {
		if err := s.authorize(ctx, principal, http.MethodPost, &roleID); err != nil {
			return nil, err
		}
	}

	managerID := req.ManagerID
	if managerID == nil && !principal.IsSuperuser {
		managerID = &principal.ID
	}
	if managerID != nil {
		if _, err := s.users.GetByID(ctx, *managerID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, NewValidationError("manager_id", "Unknown manager.")
			}
			return nil, transient("load manager", err)
		}
	}

	if err := checkAvailable(ctx, s.users, req.Username, req.Email); err != nil {
		return nil, err
	}

	hash, err := util.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &entity.User{
		ID:        uuid.New(),
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		IsActive:  true,
		ManagerID: managerID,
		RoleIDs:   roleIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	user.SetPasswordHash(hash, now)

	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapUserWriteError(err)
	}

	logger.Info().
		Str("user_id", user.ID.String()).
		Str("created_by", principal.ID.String()).
		Ints("role_ids", roleIDs).
		Msg("user created")
	return user, nil
}

// Update частично обновляет пользователя (PUT и PATCH).
// Новые роли проходят ту же проверку уровня, что и при создании; смена менеджера не может замкнуть цепочку.
func (s *UserService) Update(ctx context.Context, principal *entity.User, method string, id uuid.UUID, req *entity.UpdateUserRequest) (*entity.User, error) {
	if err := s.authorize(ctx, principal, method, nil); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeObject(ctx, principal, method, user); err != nil {
		return nil, err
	}

	if req.Email != nil && *req.Email != user.Email {
		if err := checkAvailable(ctx, s.users, "", *req.Email); err != nil {
			return nil, err
		}
		user.Email = *req.Email
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if req.ManagerID != nil {
		if err := s.checkManager(ctx, user.ID, *req.ManagerID); err != nil {
			return nil, err
		}
		user.ManagerID = req.ManagerID
	}

	var roleIDs []int
	if req.RoleIDs != nil {
		roleIDs, err = s.resolveRoles(ctx, req.RoleIDs)
		if err != nil {
			return nil, err
		}
		for _, roleID := range roleIDs {
			if user.HasRole(roleID) {
				continue
			}
			if err := s.authorize(ctx, principal, http.MethodPost, &roleID); err != nil {
				return nil, err
			}
		}
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, mapUserWriteError(err)
	}
	if roleIDs != nil {
		if err := s.users.SetRoles(ctx, user.ID, roleIDs); err != nil {
			return nil, mapUserWriteError(err)
		}
		user.RoleIDs = roleIDs
	}

	if req.IsActive != nil && !*req.IsActive {
		s.revokeSessions(ctx, user.ID)
	}
	return user, nil
}

// Deactivate отключает пользователя и отзывает его сессии. Запись не удаляется.
func (s *UserService) Deactivate(ctx context.Context, principal *entity.User, id uuid.UUID) error {
	if err := s.authorize(ctx, principal, http.MethodDelete, nil); err != nil {
		return err
	}
	if principal.ID == id {
		return NewValidationError("id", "You cannot deactivate your own account.")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeObject(ctx, principal, http.MethodDelete, user); err != nil {
		return err
	}

	if err := s.users.SetActivation(ctx, user.ID, false, user.IsVerified); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return transient("deactivate user", err)
	}
	s.revokeSessions(ctx, user.ID)

	logger.Info().Str("user_id", user.ID.String()).Str("deactivated_by", principal.ID.String()).Msg("user deactivated")
	return nil
}

func (s *UserService) authorize(ctx context.Context, principal *entity.User, method string, targetRoleID *int) error {
	if principal == nil {
		return ErrUnauthenticated
	}
	allowed, err := s.engine.HasPermission(ctx, principal, method, entity.ResourceUser, targetRoleID)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrPermissionDenied
	}
	return nil
}

func (s *UserService) authorizeObject(ctx context.Context, principal *entity.User, method string, user *entity.User) error {
	allowed, err := s.engine.HasObjectPermission(ctx, principal, method, user)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrPermissionDenied
	}
	return nil
}

func (s *UserService) load(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, transient("load user", err)
	}
	return user, nil
}

// resolveRoles проверяет, что роли существуют; пустой список заменяется ролью по умолчанию
func (s *UserService) resolveRoles(ctx context.Context, ids []int) ([]int, error) {
	if len(ids) == 0 {
		role, err := s.roles.GetByName(ctx, entity.RoleEmployee)
		if err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				return nil, fmt.Errorf("default role %q is missing: %w", entity.RoleEmployee, err)
			}
			return nil, transient("load default role", err)
		}
		return []int{role.ID}, nil
	}

	seen := make(map[int]struct{}, len(ids))
	resolved := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if _, err := s.roles.Get(ctx, id); err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				return nil, NewValidationError("role_ids", fmt.Sprintf("Invalid role id %d.", id))
			}
			return nil, transient("load role", err)
		}
		resolved = append(resolved, id)
	}
	return resolved, nil
}

func (s *UserService) checkManager(ctx context.Context, userID, managerID uuid.UUID) error {
	if _, err := s.users.GetByID(ctx, managerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewValidationError("manager_id", "Unknown manager.")
		}
		return transient("load manager", err)
	}

	cycle, err := s.engine.WouldCreateCycle(ctx, userID, managerID)
	if err != nil {
		return err
	}
	if cycle {
		return NewValidationError("manager_id", "This manager assignment would create a cycle.")
	}
	return nil
}

func (s *UserService) revokeSessions(ctx context.Context, userID uuid.UUID) {
	revoked, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to revoke sessions of deactivated user")
		return
	}
	logger.Info().Str("user_id", userID.String()).Int("revoked_sessions", revoked).Msg("sessions revoked")
}
