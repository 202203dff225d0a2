package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/people-workflow/internal/domain/entity"
	"github.com/garyjia/people-workflow/internal/domain/event"
)

const maxEventBody = 1 << 20

// SaveSettingsRequest is the body of PUT /api/orgs/:org/settings
type SaveSettingsRequest struct {
	Rules []entity.TriggerRule `json:"rules"`
}

// IngestEvents handles POST /api/events. The body is one event or an array
// of events; the response carries the processor result.
func (h *Handlers) IngestEvents(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBody))
	if err != nil {
		badRequest(c, "failed to read body")
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		badRequest(c, "empty body")
		return
	}

	var events []event.EntityEvent
	if body[0] == '[' {
		err = json.Unmarshal(body, &events)
	} else {
		var evt event.EntityEvent
		err = json.Unmarshal(body, &evt)
		events = []event.EntityEvent{evt}
	}
	if err != nil {
		badRequest(c, "invalid event payload")
		return
	}

	res := h.services.Events.HandleBatch(c.Request.Context(), events)
	ok(c, http.StatusOK, res)
}

// GetSettings handles GET /api/orgs/:org/settings
func (h *Handlers) GetSettings(c *gin.Context) {
	settings, err := h.services.Settings.Get(c.Request.Context(), c.Param("org"))
	if err != nil {
		h.respondError(c, err, "get settings")
		return
	}
	ok(c, http.StatusOK, settings)
}

// SaveSettings handles PUT /api/orgs/:org/settings
func (h *Handlers) SaveSettings(c *gin.Context) {
	var req SaveSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	saved, err := h.services.Settings.Save(c.Request.Context(), &entity.TriggerSettings{
		OrgID: c.Param("org"),
		Rules: req.Rules,
	})
	if err != nil {
		h.respondError(c, err, "save settings")
		return
	}
	ok(c, http.StatusOK, saved)
}
