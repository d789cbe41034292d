package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"staffdesk/account-service/internal/app/accounts/entity"
	"staffdesk/account-service/internal/app/accounts/repository"
)

// Хелпер: окружение с авторизованным суперпользователем
func newRoleHandlerEnv(t *testing.T) (*testEnv, *entity.Session) {
	env := newTestEnv(t)
	root := newTestUser("root", adminRoleID)
	root.IsSuperuser = true
	return env, env.signIn(t, root)
}

// ==================== Role Handler Tests ====================

func TestRoleHandler_ListRoles(t *testing.T) {
	// Arrange
	env, session := newRoleHandlerEnv(t)
	roles := make([]entity.Role, 0, 3)
	for _, r := range testRoles() {
		roles = append(roles, *r)
	}
	env.roleRepo.On("List", mock.Anything).Return(roles, nil)

	// Act
	rec := env.serve(withSession(httptest.NewRequest(http.MethodGet, "/roles", nil), session))

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	var resp []entity.Role
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 3)
}

func TestRoleHandler_GetRole(t *testing.T) {
	env, session := newRoleHandlerEnv(t)
	env.expectRoles()
	env.roleRepo.On("GetByID", mock.Anything, 404).Return(nil, repository.ErrNotFound)

	rec := env.serve(withSession(httptest.NewRequest(http.MethodGet, "/roles/2", nil), session))
	require.Equal(t, http.StatusOK, rec.Code)
	var role entity.Role
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &role))
	assert.Equal(t, entity.RoleManager, role.Name)

	rec = env.serve(withSession(httptest.NewRequest(http.MethodGet, "/roles/404", nil), session))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.serve(withSession(httptest.NewRequest(http.MethodGet, "/roles/abc", nil), session))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid role ID", decodeError(t, rec).Message)
}

func TestRoleHandler_CreateRole(t *testing.T) {
	// Arrange
	env, session := newRoleHandlerEnv(t)
	env.roleRepo.On("Create", mock.Anything, mock.AnythingOfType("*entity.Role")).
		Run(func(args mock.Arguments) { args.Get(1).(*entity.Role).ID = 10 }).
		Return(nil)
	env.roleCache.On("Delete", mock.Anything, 10).Return(nil)

	req := jsonRequest(http.MethodPost, "/roles", entity.CreateRoleRequest{
		Name: "Team Lead", Level: 3, Content: entity.ResourceUser, CanAdd: true, CanViewAll: true,
	})

	// Act
	rec := env.serve(withSession(req, session))

	// Assert
	require.Equal(t, http.StatusCreated, rec.Code)
	var role entity.Role
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &role))
	assert.Equal(t, 10, role.ID)
	assert.Equal(t, "Team Lead", role.Name)
}

func TestRoleHandler_CreateRole_ValidationError(t *testing.T) {
	env, session := newRoleHandlerEnv(t)

	rec := env.serve(withSession(jsonRequest(http.MethodPost, "/roles", entity.CreateRoleRequest{Name: "No Level"}), session))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decodeError(t, rec).Fields
	assert.Contains(t, fields, "level")
	assert.Contains(t, fields, "content")
	env.roleRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRoleHandler_UpdateRole_EvictsCache(t *testing.T) {
	// Arrange
	env, session := newRoleHandlerEnv(t)
	env.expectRoles()
	env.roleRepo.On("Update", mock.Anything, mock.AnythingOfType("*entity.Role")).Return(nil)
	env.roleCache.On("Delete", mock.Anything, managerRoleID).Return(nil)
	canDelete := false

	// Act
	rec := env.serve(withSession(jsonRequest(http.MethodPut, "/roles/2", entity.UpdateRoleRequest{CanDelete: &canDelete}), session))

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	env.roleCache.AssertCalled(t, "Delete", mock.Anything, managerRoleID)
}

func TestRoleHandler_UpdateRole_EvictionFails(t *testing.T) {
	env, session := newRoleHandlerEnv(t)
	env.expectRoles()
	env.roleRepo.On("Update", mock.Anything, mock.AnythingOfType("*entity.Role")).Return(nil)
	env.roleCache.On("Delete", mock.Anything, managerRoleID).Return(errors.New("redis: connection refused"))
	level := 5

	rec := env.serve(withSession(jsonRequest(http.MethodPut, "/roles/2", entity.UpdateRoleRequest{Level: &level}), session))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRoleHandler_DeleteRole(t *testing.T) {
	env, session := newRoleHandlerEnv(t)
	env.roleRepo.On("Delete", mock.Anything, 3).Return(nil)
	env.roleRepo.On("Delete", mock.Anything, 404).Return(repository.ErrNotFound)
	env.roleCache.On("Delete", mock.Anything, 3).Return(nil)

	rec := env.serve(withSession(httptest.NewRequest(http.MethodDelete, "/roles/3", nil), session))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.serve(withSession(httptest.NewRequest(http.MethodDelete, "/roles/404", nil), session))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
