package entity

import (
	"time"

	"github.com/google/uuid"
)

// SignupRequest - запрос на регистрацию
type SignupRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=150,excludesall= "`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
	Password  string `json:"password" validate:"required,min=8"`
	Password2 string `json:"password2" validate:"required"`
}

// LoginRequest - вход по имени пользователя или email
type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// PasswordResetRequest - запрос письма для сброса пароля
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetConfirmRequest - новый пароль по ссылке из письма
type PasswordResetConfirmRequest struct {
	Password  string `json:"password" validate:"required,min=8"`
	Password2 string `json:"password2" validate:"required"`
}

// CreateUserRequest - создание пользователя администратором или менеджером
type CreateUserRequest struct {
	Username  string     `json:"username" validate:"required,min=3,max=150,excludesall= "`
	Email     string     `json:"email" validate:"required,email"`
	FirstName string     `json:"first_name" validate:"max=150"`
	LastName  string     `json:"last_name" validate:"max=150"`
	Password  string     `json:"password" validate:"required,min=8"`
	RoleIDs   []int      `json:"role_ids"`
	ManagerID *uuid.UUID `json:"manager_id,omitempty"`
}

// UpdateUserRequest - частичное обновление пользователя (PUT и PATCH)
type UpdateUserRequest struct {
	Email     *string    `json:"email,omitempty" validate:"omitempty,email"`
	FirstName *string    `json:"first_name,omitempty" validate:"omitempty,max=150"`
	LastName  *string    `json:"last_name,omitempty" validate:"omitempty,max=150"`
	RoleIDs   []int      `json:"role_ids,omitempty"`
	ManagerID *uuid.UUID `json:"manager_id,omitempty"`
	IsActive  *bool      `json:"is_active,omitempty"`
}

// CreateRoleRequest - запрос на создание роли
type CreateRoleRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	Level      int    `json:"level" validate:"required,min=1"`
	Content    string `json:"content" validate:"required"`
	CanAdd     bool   `json:"can_add"`
	CanEdit    bool   `json:"can_edit"`
	CanViewAll bool   `json:"can_view_all"`
	CanDelete  bool   `json:"can_delete"`
}

// UpdateRoleRequest - запрос на обновление роли
type UpdateRoleRequest struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Level      *int    `json:"level,omitempty" validate:"omitempty,min=1"`
	Content    *string `json:"content,omitempty"`
	CanAdd     *bool   `json:"can_add,omitempty"`
	CanEdit    *bool   `json:"can_edit,omitempty"`
	CanViewAll *bool   `json:"can_view_all,omitempty"`
	CanDelete  *bool   `json:"can_delete,omitempty"`
}

// UserResponse - полное представление пользователя
type UserResponse struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	IsActive    bool       `json:"is_active"`
	IsVerified  bool       `json:"is_verified"`
	IsSuperuser bool       `json:"is_superuser"`
	ManagerID   *uuid.UUID `json:"manager_id,omitempty"`
	RoleIDs     []int      `json:"role_ids"`
	CreatedAt   time.Time  `json:"created_at"`
}

// UserSummary - сокращённое представление для пользователей без прав суперпользователя
type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	RoleIDs   []int     `json:"role_ids"`
}

// NewUserResponse собирает полное представление пользователя
func NewUserResponse(u *User) UserResponse {
	roles := u.RoleIDs
	if roles == nil {
		roles = []int{}
	}
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsActive:    u.IsActive,
		IsVerified:  u.IsVerified,
		IsSuperuser: u.IsSuperuser,
		ManagerID:   u.ManagerID,
		RoleIDs:     roles,
		CreatedAt:   u.CreatedAt,
	}
}

// NewUserSummary собирает сокращённое представление пользователя
func NewUserSummary(u *User) UserSummary {
	roles := u.RoleIDs
	if roles == nil {
		roles = []int{}
	}
	return UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		RoleIDs:   roles,
	}
}

// SessionResponse - ответ после входа: access токен и пользователь.
// Refresh токен в тело не попадает, только в зашифрованную cookie.
type SessionResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"access_expires_at"`
}

// ErrorResponse - стандартный ответ об ошибке
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// SuccessResponse - стандартный ответ об успехе
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
