package rules

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
		rules := v1.Group("/rules")
		{
			rules.GET("", h.ListRules)
			rules.GET("/:rule_id", h.GetRule)
			rules.GET("/:rule_id/structured", h.ListStructuredRules)

			guarded := rules.Group("", mutating...)
			{
				guarded.POST("", h.CreateRule)
				guarded.PUT("/:rule_id", h.UpdateRule)
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

// CreateRule godoc
// @Summary      Create a compliance rule
// @Description  Persist a new compliance rule and interpret it into structured form. The rule write is rolled back if interpretation fails.
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        rule  body      CreateRuleRequest  true  "Compliance rule data"
// @Success      201   {object}  models.ComplianceRule
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      409   {object}  errors.ErrorResponse
// @Failure      422   {object}  errors.ErrorResponse
// @Failure      500   {object}  errors.ErrorResponse
// @Router       /rules [post]
func (h *Handler) CreateRule(c *gin.Context) {
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	rule, err := h.service.CreateRule(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// UpdateRule godoc
// @Summary      Update a compliance rule
// @Description  Apply an edit as a new rule version and re-interpret it. The edit is rolled back if re-interpretation fails.
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        rule_id  path      string             true  "Rule ID"
// @Param        rule     body      UpdateRuleRequest  true  "Updated rule data"
// @Success      200      {object}  models.ComplianceRule
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      404      {object}  errors.ErrorResponse
// @Failure      422      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /rules/{rule_id} [put]
func (h *Handler) UpdateRule(c *gin.Context) {
	ruleID := c.Param("rule_id")
	var req UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	rule, err := h.service.UpdateRule(c.Request.Context(), ruleID, req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// GetRule godoc
// @Summary      Get a compliance rule
// @Description  Get a compliance rule by its rule ID
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        rule_id  path      string  true  "Rule ID"
// @Success      200      {object}  models.ComplianceRule
// @Failure      404      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /rules/{rule_id} [get]
func (h *Handler) GetRule(c *gin.Context) {
	rule, err := h.service.GetRule(c.Request.Context(), c.Param("rule_id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// ListRules godoc
// @Summary      List compliance rules
// @Description  List compliance rules with pagination
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        limit   query     int  false  "Maximum number of rules to return (1-1000)"  default(100)
// @Param        offset  query     int  false  "Number of rules to skip"                     default(0)
// @Success      200     {array}   models.ComplianceRule
// @Failure      500     {object}  errors.ErrorResponse
// @Router       /rules [get]
func (h *Handler) ListRules(c *gin.Context) {
	limit := parseQueryInt(c.Query("limit"), constants.DefaultLimit)
	offset := parseQueryInt(c.Query("offset"), 0)

	rules, err := h.service.ListRules(c.Request.Context(), limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, rules)
}

// ListStructuredRules godoc
// @Summary      List structured versions of a rule
// @Description  Get every structured interpretation recorded for a rule, newest first
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        rule_id  path      string  true  "Rule ID"
// @Success      200      {array}   models.StructuredRule
// @Failure      404      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /rules/{rule_id}/structured [get]
func (h *Handler) ListStructuredRules(c *gin.Context) {
	versions, err := h.service.ListStructuredRules(c.Request.Context(), c.Param("rule_id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, versions)
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
