package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/people-workflow/internal/application/service"
	"github.com/garyjia/people-workflow/internal/application/workflow"
	"github.com/garyjia/people-workflow/internal/domain/event"
	domainwf "github.com/garyjia/people-workflow/internal/domain/workflow"
	"github.com/garyjia/people-workflow/internal/templates"
)

// statusFor maps an application error to an HTTP status code
func statusFor(err error) int {
	switch {
	case workflow.IsRejected(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domainwf.ErrTemplateNotFound),
		errors.Is(err, domainwf.ErrInstanceNotFound),
		errors.Is(err, domainwf.ErrStepNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainwf.ErrInvalidTransition),
		errors.Is(err, domainwf.ErrInstanceTerminal),
		errors.Is(err, domainwf.ErrInstanceOnHold),
		errors.Is(err, domainwf.ErrTemplateInUse),
		errors.Is(err, domainwf.ErrDuplicateOrderIndex):
		return http.StatusConflict
	case errors.Is(err, domainwf.ErrInvalidState),
		errors.Is(err, domainwf.ErrInvalidTemplate),
		errors.Is(err, domainwf.ErrEmptyTemplate),
		errors.Is(err, domainwf.ErrTemplateNotEligible),
		errors.Is(err, workflow.ErrInvalidRequest),
		errors.Is(err, service.ErrInvalidSettings),
		errors.Is(err, service.ErrInvalidDirectoryEntry),
		errors.Is(err, event.ErrInvalidEntityEvent),
		errors.Is(err, templates.ErrInvalidDefinition):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error envelope. Internal errors are logged and
// their detail is not exposed.
func (h *Handlers) respondError(c *gin.Context, err error, op string) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "op", op, "error", err)
		msg = op + " failed"
	}
	c.JSON(status, Response{Success: false, Error: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}
