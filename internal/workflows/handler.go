package workflows

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"verdict/internal/constants"
	"verdict/internal/logger"
	"verdict/pkg/errors"
)

type Handler struct {
	service Service
	logger  logger.Logger
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine, mutating ...gin.HandlerFunc) {
	v1 := router.Group("/api/v1")
	{
		workflows := v1.Group("/workflows")
		{
			workflows.GET("", h.ListEvents)
			workflows.GET("/:workflow_id", h.GetEvents)

			guarded := workflows.Group("", mutating...)
			{
				guarded.POST("", h.CreateEvent)
			}
		}
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

// CreateEvent godoc
// @Summary      Record a workflow event
// @Description  Append an immutable workflow event. Events are never updated or deleted.
// @Tags         workflows
// @Accept       json
// @Produce      json
// @Param        event  body      CreateEventRequest  true  "Workflow event data"
// @Success      201    {object}  models.WorkflowEvent
// @Failure      400    {object}  errors.ErrorResponse
// @Failure      500    {object}  errors.ErrorResponse
// @Router       /workflows [post]
func (h *Handler) CreateEvent(c *gin.Context) {
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	event, err := h.service.CreateEvent(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

// ListEvents godoc
// @Summary      List workflow events
// @Description  List workflow events across all workflows, newest first
// @Tags         workflows
// @Accept       json
// @Produce      json
// @Param        limit   query     int  false  "Maximum number of events to return (1-1000)"  default(100)
// @Param        offset  query     int  false  "Number of events to skip"                     default(0)
// @Success      200     {array}   models.WorkflowEvent
// @Failure      500     {object}  errors.ErrorResponse
// @Router       /workflows [get]
func (h *Handler) ListEvents(c *gin.Context) {
	limit := parseQueryInt(c.Query("limit"), constants.DefaultLimit)
	offset := parseQueryInt(c.Query("offset"), 0)

	events, err := h.service.ListEvents(c.Request.Context(), limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

// GetEvents godoc
// @Summary      Get events for a workflow
// @Description  Get the full event history of one workflow, newest first
// @Tags         workflows
// @Accept       json
// @Produce      json
// @Param        workflow_id  path      string  true  "Workflow ID"
// @Success      200          {array}   models.WorkflowEvent
// @Failure      404          {object}  errors.ErrorResponse
// @Failure      500          {object}  errors.ErrorResponse
// @Router       /workflows/{workflow_id} [get]
func (h *Handler) GetEvents(c *gin.Context) {
	events, err := h.service.GetEvents(c.Request.Context(), c.Param("workflow_id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

func parseQueryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 || parsed > constants.MaxLimit {
		return fallback
	}
	return parsed
}
