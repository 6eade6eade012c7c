package rules

import (
	"context"
	"strconv"

	"verdict/internal/constants"
	"verdict/internal/logger"
	pkgerrors "verdict/pkg/errors"
	"verdict/pkg/logging"
	"verdict/pkg/metrics"
	"verdict/pkg/models"
)

// Interpreter is the reasoning stage that turns a free-text rule into its
// structured form. It is satisfied by reasoning.Interpreter.
type Interpreter interface {
	Interpret(ctx context.Context, rule models.ComplianceRule) (models.StructuredRule, error)
}

type Service interface {
	CreateRule(ctx context.Context, req CreateRuleRequest) (*models.ComplianceRule, error)
	UpdateRule(ctx context.Context, ruleID string, req UpdateRuleRequest) (*models.ComplianceRule, error)
	GetRule(ctx context.Context, ruleID string) (*models.ComplianceRule, error)
	ListRules(ctx context.Context, limit, offset int) ([]models.ComplianceRule, error)
	ListStructuredRules(ctx context.Context, ruleID string) ([]models.StructuredRule, error)
}

type service struct {
	repo        Repository
	interpreter Interpreter
	logger      logger.Logger
}

func NewService(repo Repository, interpreter Interpreter, log logger.Logger) Service {
	return &service{
		repo:        repo,
		interpreter: interpreter,
		logger:      log,
	}
}

// CreateRule persists the rule and immediately interprets it. A rule must
// never go live uninterpreted, so a failed interpretation undoes the rule
// write before the error is surfaced.
func (s *service) CreateRule(ctx context.Context, req CreateRuleRequest) (*models.ComplianceRule, error) {
	if err := ValidateCreateRule(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	rule := &models.ComplianceRule{
		RuleID:   req.RuleID,
		Category: models.RuleCategory(req.Category),
		RuleText: req.RuleText,
		Severity: models.RuleSeverity(req.Severity),
		Version:  "1",
		Status:   models.RuleStatusActive,
	}
	if req.EffectiveFrom != nil {
		rule.EffectiveFrom = *req.EffectiveFrom
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrConflict) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	structured, err := s.interpreter.Interpret(ctx, *rule)
	if err != nil {
		s.rollbackCreate(ctx, rule, err)
		return nil, pkgerrors.ErrRuleMutationRolledBack.
			WithCause(err).
			WithDetail("rule_id", rule.RuleID)
	}

	if err := s.repo.CreateStructuredRule(ctx, &structured); err != nil {
		s.rollbackCreate(ctx, rule, err)
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	s.refreshActiveRulesGauge(ctx)
	s.logger.InfowCtx(ctx, "Compliance rule created",
		"rule_id", rule.RuleID,
		"version", rule.Version,
		"changed_by", changedBy(ctx),
	)

	return rule, nil
}

// UpdateRule applies the edit as a new version and re-interprets. A failed
// re-interpretation restores the previous values so the live rule always
// matches its latest structured form.
func (s *service) UpdateRule(ctx context.Context, ruleID string, req UpdateRuleRequest) (*models.ComplianceRule, error) {
	if err := ValidateUpdateRule(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	rule, err := s.repo.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	previous := *rule

	if req.Category != nil {
		rule.Category = models.RuleCategory(*req.Category)
	}
	if req.RuleText != nil {
		rule.RuleText = *req.RuleText
	}
	if req.Severity != nil {
		rule.Severity = models.RuleSeverity(*req.Severity)
	}
	if req.Status != nil {
		rule.Status = models.RuleStatus(*req.Status)
	}
	rule.Version = nextVersion(rule.Version)

	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	structured, err := s.interpreter.Interpret(ctx, *rule)
	if err != nil {
		s.rollbackUpdate(ctx, &previous, err)
		return nil, pkgerrors.ErrRuleMutationRolledBack.
			WithCause(err).
			WithDetail("rule_id", rule.RuleID)
	}

	if err := s.repo.CreateStructuredRule(ctx, &structured); err != nil {
		s.rollbackUpdate(ctx, &previous, err)
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	s.refreshActiveRulesGauge(ctx)
	s.logger.InfowCtx(ctx, "Compliance rule updated",
		"rule_id", rule.RuleID,
		"version", rule.Version,
		"changed_by", changedBy(ctx),
	)

	return rule, nil
}

func (s *service) GetRule(ctx context.Context, ruleID string) (*models.ComplianceRule, error) {
	return s.repo.GetRule(ctx, ruleID)
}

func (s *service) ListRules(ctx context.Context, limit, offset int) ([]models.ComplianceRule, error) {
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	rules, err := s.repo.ListRules(ctx, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return rules, nil
}

func (s *service) ListStructuredRules(ctx context.Context, ruleID string) ([]models.StructuredRule, error) {
	if _, err := s.repo.GetRule(ctx, ruleID); err != nil {
		return nil, err
	}
	versions, err := s.repo.ListStructuredRules(ctx, ruleID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return versions, nil
}

func (s *service) rollbackCreate(ctx context.Context, rule *models.ComplianceRule, cause error) {
	s.logger.WarnwCtx(ctx, "Rolling back rule creation after failed interpretation",
		"rule_id", rule.RuleID,
		"error", cause,
	)
	if err := s.repo.DeleteRule(ctx, rule.ID); err != nil {
		s.logger.ErrorwCtx(ctx, "Rollback of rule creation failed",
			"rule_id", rule.RuleID,
			"error", err,
		)
	}
}

func (s *service) rollbackUpdate(ctx context.Context, previous *models.ComplianceRule, cause error) {
	s.logger.WarnwCtx(ctx, "Rolling back rule update after failed interpretation",
		"rule_id", previous.RuleID,
		"restored_version", previous.Version,
		"error", cause,
	)
	if err := s.repo.UpdateRule(ctx, previous); err != nil {
		s.logger.ErrorwCtx(ctx, "Rollback of rule update failed",
			"rule_id", previous.RuleID,
			"error", err,
		)
	}
}

func (s *service) refreshActiveRulesGauge(ctx context.Context) {
	active, err := s.repo.ListActiveRules(ctx)
	if err != nil {
		return
	}
	metrics.ActiveRules.Set(float64(len(active)))
}

// nextVersion increments a numeric version string. Versions are assigned by
// the service starting at "1"; a non-numeric value can only come from
// hand-seeded data and gets a suffix so the new version stays distinct.
func nextVersion(version string) string {
	if n, err := strconv.Atoi(version); err == nil {
		return strconv.Itoa(n + 1)
	}
	return version + ".1"
}

func changedBy(ctx context.Context) string {
	if principal := logging.GetPrincipal(ctx); principal != "" {
		return principal
	}
	return "system"
}
