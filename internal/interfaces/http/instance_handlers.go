package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/people-workflow/internal/application/port"
	"github.com/garyjia/people-workflow/internal/application/workflow"
	"github.com/garyjia/people-workflow/internal/domain/entity"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ListInstancesRequest represents query parameters for listing instances
type ListInstancesRequest struct {
	OrgID      string `form:"org_id"`
	EntityType string `form:"entity_type"`
	EntityID   string `form:"entity_id"`
	TemplateID int64  `form:"template_id"`
	Status     string `form:"status"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}

// InstanceSummary is an instance with its cached progress
type InstanceSummary struct {
	*entity.Instance
	Progress float64 `json:"progress"`
}

// InstanceActionRequest is the body of cancel, hold and resume
type InstanceActionRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

// AdvanceStepRequest is the body of POST /api/steps/:id/advance
type AdvanceStepRequest struct {
	Status  string `json:"status" binding:"required"`
	ActorID string `json:"actor_id"`
	Notes   string `json:"notes"`
}

// Instantiate handles POST /api/instances
func (h *Handlers) Instantiate(c *gin.Context) {
	var req workflow.InstantiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	inst, err := h.services.Engine.Instantiate(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err, "instantiate")
		return
	}
	ok(c, http.StatusCreated, inst)
}

// ListInstances handles GET /api/instances
func (h *Handlers) ListInstances(c *gin.Context) {
	var req ListInstancesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	if req.Limit <= 0 || req.Limit > maxListLimit {
		req.Limit = defaultListLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	filter := port.InstanceFilter{
		OrgID:      req.OrgID,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		TemplateID: req.TemplateID,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}
	if req.Status != "" {
		for _, s := range strings.Split(req.Status, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Statuses = append(filter.Statuses, s)
			}
		}
	}

	list, err := h.services.Instances.ListInstances(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err, "list instances")
		return
	}
	out := make([]InstanceSummary, 0, len(list))
	for _, inst := range list {
		out = append(out, InstanceSummary{Instance: inst, Progress: inst.Progress()})
	}
	ok(c, http.StatusOK, out)
}

// GetInstance handles GET /api/instances/:id
func (h *Handlers) GetInstance(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	detail, err := h.services.Instances.GetInstance(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "get instance")
		return
	}
	ok(c, http.StatusOK, detail)
}

// ExportProgress handles GET /api/instances/export?org_id=
func (h *Handlers) ExportProgress(c *gin.Context) {
	orgID := c.Query("org_id")
	if orgID == "" {
		badRequest(c, "org_id is required")
		return
	}

	var buf bytes.Buffer
	if err := h.services.Instances.ExportProgress(c.Request.Context(), orgID, &buf); err != nil {
		h.respondError(c, err, "export progress")
		return
	}

	filename := fmt.Sprintf("workflow-progress-%s-%s.xlsx", orgID, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Length", strconv.Itoa(buf.Len()))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// CancelInstance handles POST /api/instances/:id/cancel
func (h *Handlers) CancelInstance(c *gin.Context) {
	h.instanceAction(c, "cancel instance", func(id int64, req InstanceActionRequest) (*entity.Instance, error) {
		return h.services.Engine.CancelInstance(c.Request.Context(), id, req.ActorID, req.Reason)
	})
}

// HoldInstance handles POST /api/instances/:id/hold
func (h *Handlers) HoldInstance(c *gin.Context) {
	h.instanceAction(c, "hold instance", func(id int64, req InstanceActionRequest) (*entity.Instance, error) {
		return h.services.Engine.HoldInstance(c.Request.Context(), id, req.ActorID, req.Reason)
	})
}

// ResumeInstance handles POST /api/instances/:id/resume
func (h *Handlers) ResumeInstance(c *gin.Context) {
	h.instanceAction(c, "resume instance", func(id int64, req InstanceActionRequest) (*entity.Instance, error) {
		return h.services.Engine.ResumeInstance(c.Request.Context(), id, req.ActorID)
	})
}

func (h *Handlers) instanceAction(c *gin.Context, op string, fn func(int64, InstanceActionRequest) (*entity.Instance, error)) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req InstanceActionRequest
	// the body is optional
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	inst, err := fn(id, req)
	if err != nil {
		h.respondError(c, err, op)
		return
	}
	ok(c, http.StatusOK, inst)
}

// AdvanceStep handles POST /api/steps/:id/advance
func (h *Handlers) AdvanceStep(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req AdvanceStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	res, err := h.services.Engine.AdvanceStep(c.Request.Context(), workflow.AdvanceRequest{
		StepID:  id,
		Status:  req.Status,
		ActorID: req.ActorID,
		Notes:   req.Notes,
	})
	if err != nil {
		h.respondError(c, err, "advance step")
		return
	}
	ok(c, http.StatusOK, res)
}
