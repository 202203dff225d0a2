package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/people-workflow/internal/domain/entity"
	"github.com/garyjia/people-workflow/internal/templates"
)

// CreateTemplateRequest is the body of POST /api/templates
type CreateTemplateRequest struct {
	OrgID          string `json:"org_id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Module         string `json:"module"`
	TriggerType    string `json:"trigger_type"`
	Status         string `json:"status"`
	Enabled        *bool  `json:"enabled"`
	DefaultOwnerID string `json:"default_owner_id"`
	DefaultDueDays *int   `json:"default_due_days"`
}

// AddStepRequest is the body of POST /api/templates/:id/steps
type AddStepRequest struct {
	ParentStepID      *int64                  `json:"parent_step_id"`
	OrderIndex        int                     `json:"order_index"`
	Kind              string                  `json:"kind"`
	Name              string                  `json:"name"`
	Description       string                  `json:"description"`
	Assignment        entity.AssignmentPolicy `json:"assignment"`
	DefaultAssigneeID string                  `json:"default_assignee_id"`
	DueOffsetDays     *int                    `json:"due_offset_days"`
	DueAnchor         string                  `json:"due_anchor"`
	Required          *bool                   `json:"required"`
	AttachmentPolicy  string                  `json:"attachment_policy"`
}

// AddEdgeRequest is the body of POST /api/templates/:id/edges
type AddEdgeRequest struct {
	FromStepID      int64  `json:"from_step_id"`
	ToStepID        int64  `json:"to_step_id"`
	Condition       string `json:"condition"`
	ConditionConfig string `json:"condition_config"`
}

// SetStatusRequest is the body of PUT /api/templates/:id/status
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetEnabledRequest is the body of PUT /api/templates/:id/enabled
type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// CreateTemplate handles POST /api/templates
func (h *Handlers) CreateTemplate(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	triggerType := req.TriggerType
	if triggerType == "" {
		triggerType = entity.TriggerTypeManual
	}
	tpl := &entity.Template{
		OrgID:          req.OrgID,
		Name:           req.Name,
		Description:    req.Description,
		Module:         req.Module,
		TriggerType:    triggerType,
		Status:         req.Status,
		Enabled:        enabled,
		DefaultOwnerID: req.DefaultOwnerID,
		DefaultDueDays: req.DefaultDueDays,
	}
	if err := h.services.Templates.CreateTemplate(c.Request.Context(), tpl); err != nil {
		h.respondError(c, err, "create template")
		return
	}
	ok(c, http.StatusCreated, tpl)
}

// ImportTemplates handles POST /api/templates/import with a YAML body.
// The org_id query parameter overrides the org of every definition.
func (h *Handlers) ImportTemplates(c *gin.Context) {
	if h.services.Importer == nil {
		c.JSON(http.StatusNotImplemented, Response{Success: false, Error: "template import is not configured"})
		return
	}
	defs, err := templates.Load(c.Request.Body)
	if err != nil {
		h.respondError(c, err, "import templates")
		return
	}
	created, err := h.services.Importer.Import(c.Request.Context(), defs, c.Query("org_id"))
	if err != nil {
		h.respondError(c, err, "import templates")
		return
	}
	ok(c, http.StatusCreated, created)
}

// ListTemplates handles GET /api/templates?org_id=&module=
func (h *Handlers) ListTemplates(c *gin.Context) {
	orgID := c.Query("org_id")
	if orgID == "" {
		badRequest(c, "org_id is required")
		return
	}
	list, err := h.services.Templates.ListTemplates(c.Request.Context(), orgID, c.Query("module"))
	if err != nil {
		h.respondError(c, err, "list templates")
		return
	}
	if list == nil {
		list = []*entity.Template{}
	}
	ok(c, http.StatusOK, list)
}

// GetTemplate handles GET /api/templates/:id
func (h *Handlers) GetTemplate(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	detail, err := h.services.Templates.GetTemplate(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "get template")
		return
	}
	ok(c, http.StatusOK, detail)
}

// DeleteTemplate handles DELETE /api/templates/:id
func (h *Handlers) DeleteTemplate(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.services.Templates.DeleteTemplate(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "delete template")
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id})
}

// AddStep handles POST /api/templates/:id/steps
func (h *Handlers) AddStep(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req AddStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	required := true
	if req.Required != nil {
		required = *req.Required
	}
	step := &entity.TemplateStep{
		TemplateID:        id,
		ParentStepID:      req.ParentStepID,
		OrderIndex:        req.OrderIndex,
		Kind:              req.Kind,
		Name:              req.Name,
		Description:       req.Description,
		Assignment:        req.Assignment,
		DefaultAssigneeID: req.DefaultAssigneeID,
		DueOffsetDays:     req.DueOffsetDays,
		DueAnchor:         req.DueAnchor,
		Required:          required,
		AttachmentPolicy:  req.AttachmentPolicy,
	}
	if err := h.services.Templates.AddStep(c.Request.Context(), step); err != nil {
		h.respondError(c, err, "add step")
		return
	}
	ok(c, http.StatusCreated, step)
}

// AddEdge handles POST /api/templates/:id/edges
func (h *Handlers) AddEdge(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req AddEdgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	edge := &entity.TemplateEdge{
		TemplateID:      id,
		FromStepID:      req.FromStepID,
		ToStepID:        req.ToStepID,
		Condition:       req.Condition,
		ConditionConfig: req.ConditionConfig,
	}
	if err := h.services.Templates.AddEdge(c.Request.Context(), edge); err != nil {
		h.respondError(c, err, "add edge")
		return
	}
	ok(c, http.StatusCreated, edge)
}

// SetTemplateStatus handles PUT /api/templates/:id/status
func (h *Handlers) SetTemplateStatus(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	tpl, err := h.services.Templates.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.respondError(c, err, "set template status")
		return
	}
	ok(c, http.StatusOK, tpl)
}

// SetTemplateEnabled handles PUT /api/templates/:id/enabled
func (h *Handlers) SetTemplateEnabled(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req SetEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "enabled is required")
		return
	}
	tpl, err := h.services.Templates.SetEnabled(c.Request.Context(), id, *req.Enabled)
	if err != nil {
		h.respondError(c, err, "set template enabled")
		return
	}
	ok(c, http.StatusOK, tpl)
}
