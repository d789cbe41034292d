package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"staffdesk/account-service/internal/app/accounts/entity"
	"staffdesk/account-service/internal/app/accounts/service"
)

var (
	collectionMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	itemMethods       = []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}
)

type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	viewer := principal(c)
	users, err := h.users.List(c.Request.Context(), viewer)
	if err != nil {
		respondError(c, err, "Failed to list users")
		return
	}

	resp := make([]interface{}, 0, len(users))
	for i := range users {
		resp = append(resp, present(viewer, &users[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	viewer := principal(c)
	user, err := h.users.Get(c.Request.Context(), viewer, id)
	if err != nil {
		respondError(c, err, "Failed to get user")
		return
	}
	c.JSON(http.StatusOK, present(viewer, user))
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req entity.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	viewer := principal(c)
	user, err := h.users.Create(c.Request.Context(), viewer, &req)
	if err != nil {
		respondError(c, err, "Failed to create user")
		return
	}
	c.JSON(http.StatusCreated, present(viewer, user))
}

// UpdateUser обслуживает и PUT, и PATCH: отсутствующие поля не меняются
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	var req entity.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	viewer := principal(c)
	user, err := h.users.Update(c.Request.Context(), viewer, c.Request.Method, id, &req)
	if err != nil {
		respondError(c, err, "Failed to update user")
		return
	}
	c.JSON(http.StatusOK, present(viewer, user))
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	if err := h.users.Deactivate(c.Request.Context(), principal(c), id); err != nil {
		respondError(c, err, "Failed to deactivate user")
		return
	}
	c.JSON(http.StatusOK, entity.SuccessResponse{Message: "User deactivated"})
}

// Options доступен без входа
func (h *UserHandler) Options(c *gin.Context) {
	methods := collectionMethods
	if c.Param("id") != "" {
		methods = itemMethods
	}
	c.Header("Allow", strings.Join(methods, ", "))
	c.Status(http.StatusOK)
}

// present отдаёт полную запись суперпользователю и самому пользователю, остальным сокращённую
func present(viewer, user *entity.User) interface{} {
	if viewer != nil && (viewer.IsSuperuser || viewer.ID == user.ID) {
		return entity.NewUserResponse(user)
	}
	return entity.NewUserSummary(user)
}

func userIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid user ID")
		return uuid.Nil, false
	}
	return id, true
}
