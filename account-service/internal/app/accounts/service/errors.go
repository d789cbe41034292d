package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrInvalidCredentials  = errors.New("invalid login or password")
	ErrUnauthenticated     = errors.New("authentication required")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("already exists")
	ErrTokenInvalid        = errors.New("invalid or expired token")
	ErrDecryptionFailed    = errors.New("session envelope cannot be decrypted")
	ErrTransientDependency = errors.New("dependency temporarily unavailable")
	ErrProviderDisabled    = errors.New("identity provider is not configured")
	ErrProviderFailed      = errors.New("identity provider rejected the login")
)

var (
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	ErrRoleNotFound = fmt.Errorf("role %w", ErrNotFound)
	ErrUserExists   = fmt.Errorf("user %w", ErrConflict)
	ErrRoleExists   = fmt.Errorf("role %w", ErrConflict)
)

// ValidationError описывает ошибки по полям запроса
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError создаёт ошибку для одного поля
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// transient помечает ошибку хранилища как временную недоступность зависимости
func transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrTransientDependency, err)
}

// ConflictError - занятые уникальные поля (username, email)
type ConflictError struct {
	Fields map[string]string
}

func (e *ConflictError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "already exists: " + strings.Join(keys, ", ")
}

func (e *ConflictError) Unwrap() error {
	return ErrUserExists
}
