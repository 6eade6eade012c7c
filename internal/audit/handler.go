package audit

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
		workflows := v1.Group("/workflows", mutating...)
		{
			workflows.POST("/:workflow_id/audit", h.AuditWorkflow)
			workflows.POST("/:workflow_id/replay/:decision_id", h.ReplayDecision)
		}

		decisions := v1.Group("/decisions")
		{
			decisions.GET("", h.ListDecisions)
			decisions.GET("/:workflow_id", h.GetWorkflowDecisions)
			decisions.GET("/:workflow_id/latest", h.GetLatestDecision)
		}

		v1.GET("/dashboard/stats", h.DashboardStats)
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

// AuditWorkflow godoc
// @Summary      Audit a workflow
// @Description  Run a compliance audit against the most recent event of a workflow and persist the decision.
// @Tags         audits
// @Produce      json
// @Param        workflow_id  path      string  true  "Workflow ID"
// @Success      201          {object}  models.ComplianceDecision
// @Failure      404          {object}  errors.ErrorResponse
// @Failure      500          {object}  errors.ErrorResponse
// @Router       /workflows/{workflow_id}/audit [post]
func (h *Handler) AuditWorkflow(c *gin.Context) {
	workflowID := c.Param("workflow_id")

	decision, err := h.service.AuditWorkflow(c.Request.Context(), workflowID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, decision)
}

// ReplayDecision godoc
// @Summary      Replay a past decision
// @Description  Re-run a past audit against the exact rule revisions and workflow event it originally evaluated. Produces a new decision record.
// @Tags         audits
// @Produce      json
// @Param        workflow_id  path      string  true  "Workflow ID"
// @Param        decision_id  path      string  true  "Decision ID"
// @Success      201          {object}  models.ComplianceDecision
// @Failure      404          {object}  errors.ErrorResponse
// @Failure      500          {object}  errors.ErrorResponse
// @Router       /workflows/{workflow_id}/replay/{decision_id} [post]
func (h *Handler) ReplayDecision(c *gin.Context) {
	workflowID := c.Param("workflow_id")
	decisionID := c.Param("decision_id")

	decision, err := h.service.ReplayDecision(c.Request.Context(), workflowID, decisionID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, decision)
}

// ListDecisions godoc
// @Summary      List compliance decisions
// @Tags         decisions
// @Produce      json
// @Param        limit   query     int  false  "Maximum results"  default(100)
// @Param        offset  query     int  false  "Results offset"   default(0)
// @Success      200     {array}   models.ComplianceDecision
// @Failure      500     {object}  errors.ErrorResponse
// @Router       /decisions [get]
func (h *Handler) ListDecisions(c *gin.Context) {
	limit := parseQueryInt(c.Query("limit"), constants.DefaultLimit)
	offset := parseQueryInt(c.Query("offset"), 0)

	decisions, err := h.service.ListDecisions(c.Request.Context(), limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, decisions)
}

// GetWorkflowDecisions godoc
// @Summary      Get a workflow's decision history
// @Tags         decisions
// @Produce      json
// @Param        workflow_id  path      string  true  "Workflow ID"
// @Success      200          {array}   models.ComplianceDecision
// @Failure      404          {object}  errors.ErrorResponse
// @Router       /decisions/{workflow_id} [get]
func (h *Handler) GetWorkflowDecisions(c *gin.Context) {
	workflowID := c.Param("workflow_id")

	decisions, err := h.service.GetWorkflowDecisions(c.Request.Context(), workflowID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, decisions)
}

// GetLatestDecision godoc
// @Summary      Get a workflow's latest decision
// @Tags         decisions
// @Produce      json
// @Param        workflow_id  path      string  true  "Workflow ID"
// @Success      200          {object}  models.ComplianceDecision
// @Failure      404          {object}  errors.ErrorResponse
// @Router       /decisions/{workflow_id}/latest [get]
func (h *Handler) GetLatestDecision(c *gin.Context) {
	workflowID := c.Param("workflow_id")

	decision, err := h.service.GetLatestDecision(c.Request.Context(), workflowID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

// DashboardStats godoc
// @Summary      Compliance dashboard aggregates
// @Description  Totals by outcome, the ten most recent audits, and the five most recent non-compliant decisions.
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  DashboardStats
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /dashboard/stats [get]
func (h *Handler) DashboardStats(c *gin.Context) {
	stats, err := h.service.DashboardStats(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func parseQueryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
