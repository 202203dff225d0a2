package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/people-workflow/internal/application/service"
)

// SavePersonRequest is the body of PUT /api/orgs/:org/directory/people/:person
type SavePersonRequest struct {
	DisplayName string `json:"display_name"`
	ManagerID   string `json:"manager_id"`
}

// RoleHoldersResponse lists the people holding a role
type RoleHoldersResponse struct {
	RoleID  string   `json:"role_id"`
	Holders []string `json:"holders"`
}

func (h *Handlers) directoryConfigured(c *gin.Context) bool {
	if h.services.Directory == nil {
		c.JSON(http.StatusNotImplemented, Response{Success: false, Error: "directory is not configured"})
		return false
	}
	return true
}

// SavePerson handles PUT /api/orgs/:org/directory/people/:person
func (h *Handlers) SavePerson(c *gin.Context) {
	if !h.directoryConfigured(c) {
		return
	}
	var req SavePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	person := service.Person{ID: c.Param("person"), DisplayName: req.DisplayName, ManagerID: req.ManagerID}
	if err := h.services.Directory.SavePerson(c.Request.Context(), c.Param("org"), person); err != nil {
		h.respondError(c, err, "save person")
		return
	}
	ok(c, http.StatusOK, person)
}

// ListRoleHolders handles GET /api/orgs/:org/directory/roles/:role
func (h *Handlers) ListRoleHolders(c *gin.Context) {
	if !h.directoryConfigured(c) {
		return
	}
	holders, err := h.services.Directory.RoleHolders(c.Request.Context(), c.Param("org"), c.Param("role"))
	if err != nil {
		h.respondError(c, err, "list role holders")
		return
	}
	ok(c, http.StatusOK, RoleHoldersResponse{RoleID: c.Param("role"), Holders: holders})
}

// AssignRole handles PUT /api/orgs/:org/directory/roles/:role/holders/:person
func (h *Handlers) AssignRole(c *gin.Context) {
	if !h.directoryConfigured(c) {
		return
	}
	if err := h.services.Directory.AssignRole(c.Request.Context(), c.Param("org"), c.Param("role"), c.Param("person")); err != nil {
		h.respondError(c, err, "assign role")
		return
	}
	ok(c, http.StatusOK, gin.H{"role_id": c.Param("role"), "person_id": c.Param("person")})
}

// RevokeRole handles DELETE /api/orgs/:org/directory/roles/:role/holders/:person
func (h *Handlers) RevokeRole(c *gin.Context) {
	if !h.directoryConfigured(c) {
		return
	}
	if err := h.services.Directory.RevokeRole(c.Request.Context(), c.Param("org"), c.Param("role"), c.Param("person")); err != nil {
		h.respondError(c, err, "revoke role")
		return
	}
	ok(c, http.StatusOK, gin.H{"role_id": c.Param("role"), "person_id": c.Param("person")})
}
