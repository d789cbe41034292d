package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"staffdesk/account-service/internal/app/accounts/entity"
	"staffdesk/account-service/internal/app/accounts/service"
)

type RoleHandler struct {
	roles *service.RoleService
}

func NewRoleHandler(roles *service.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roles.List(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to list roles")
		return
	}
	c.JSON(http.StatusOK, roles)
}

func (h *RoleHandler) GetRole(c *gin.Context) {
	id, ok := roleIDParam(c)
	if !ok {
		return
	}

	role, err := h.roles.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to get role")
		return
	}
	c.JSON(http.StatusOK, role)
}

func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req entity.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	role, err := h.roles.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create role")
		return
	}
	c.JSON(http.StatusCreated, role)
}

func (h *RoleHandler) UpdateRole(c *gin.Context) {
	id, ok := roleIDParam(c)
	if !ok {
		return
	}

	var req entity.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	role, err := h.roles.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err, "Failed to update role")
		return
	}
	c.JSON(http.StatusOK, role)
}

func (h *RoleHandler) DeleteRole(c *gin.Context) {
	id, ok := roleIDParam(c)
	if !ok {
		return
	}

	if err := h.roles.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete role")
		return
	}
	c.JSON(http.StatusOK, entity.SuccessResponse{Message: "Role deleted successfully"})
}

func roleIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid role ID")
		return 0, false
	}
	return id, true
}
