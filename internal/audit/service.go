package audit

import (
	"context"
	"fmt"
	"time"

	"verdict/internal/constants"
	"verdict/internal/decision"
	"verdict/internal/logger"
	pkgerrors "verdict/pkg/errors"
	"verdict/pkg/metrics"
	"verdict/pkg/models"
)

// Pipeline states, logged as each audit advances. PERSISTED is terminal; a
// reasoning failure still reaches it because the degraded REQUIRES_REVIEW
// decision is persisted like any other.
const (
	stateStarted     = "STARTED"
	stateRulesLoaded = "RULES_LOADED"
	stateReasoning   = "REASONING"
	stateDecided     = "DECIDED"
	statePersisted   = "PERSISTED"
)

// EventSource provides the workflow events an audit evaluates.
type EventSource interface {
	GetLatestEvent(ctx context.Context, workflowID string) (*models.WorkflowEvent, error)
	GetLatestEventBefore(ctx context.Context, workflowID string, cutoff time.Time) (*models.WorkflowEvent, error)
}

// RuleSource provides the rule set an audit evaluates against.
type RuleSource interface {
	ListActiveRules(ctx context.Context) ([]models.ComplianceRule, error)
	GetLatestStructuredRule(ctx context.Context, ruleID string) (*models.StructuredRule, error)
	GetStructuredRuleVersion(ctx context.Context, key models.RuleVersionKey) (*models.StructuredRule, error)
}

// Evaluator runs the compliance reasoning protocol over a workflow event.
type Evaluator interface {
	Evaluate(ctx context.Context, event models.WorkflowEvent, rules []models.StructuredRule) (models.EvaluationResult, error)
}

type Service interface {
	AuditWorkflow(ctx context.Context, workflowID string) (*models.ComplianceDecision, error)
	ReplayDecision(ctx context.Context, workflowID, decisionID string) (*models.ComplianceDecision, error)
	GetLatestDecision(ctx context.Context, workflowID string) (*models.ComplianceDecision, error)
	GetWorkflowDecisions(ctx context.Context, workflowID string) ([]models.ComplianceDecision, error)
	ListDecisions(ctx context.Context, limit, offset int) ([]models.ComplianceDecision, error)
	DashboardStats(ctx context.Context) (*DashboardStats, error)
}

// DashboardStats is the aggregate view served to the compliance dashboard.
type DashboardStats struct {
	TotalAudits     int64                       `json:"total_audits"`
	ComplianceStats map[string]int64            `json:"compliance_stats"`
	RecentAudits    []models.ComplianceDecision `json:"recent_audits"`
	Alerts          []models.ComplianceDecision `json:"alerts"`
}

type service struct {
	repo      Repository
	events    EventSource
	rules     RuleSource
	evaluator Evaluator
	cache     *DecisionCache
	publisher *DecisionEventPublisher
	logger    logger.Logger
}

func NewService(
	repo Repository,
	events EventSource,
	rules RuleSource,
	evaluator Evaluator,
	cache *DecisionCache,
	publisher *DecisionEventPublisher,
	log logger.Logger,
) Service {
	return &service{
		repo:      repo,
		events:    events,
		rules:     rules,
		evaluator: evaluator,
		cache:     cache,
		publisher: publisher,
		logger:    log,
	}
}

// AuditWorkflow runs the full pipeline against the most recent event of a
// workflow. It returns an error only when there is nothing to audit or the
// decision cannot be persisted; a reasoning failure is absorbed into a
// REQUIRES_REVIEW decision so the audit trail records the attempt.
func (s *service) AuditWorkflow(ctx context.Context, workflowID string) (*models.ComplianceDecision, error) {
	start := time.Now()
	s.logger.InfowCtx(ctx, "Audit started", "workflow_id", workflowID, "state", stateStarted)

	event, err := s.events.GetLatestEvent(ctx, workflowID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	structured, severities, ruleVersions, err := s.resolveActiveRules(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.InfowCtx(ctx, "Rules loaded",
		"workflow_id", workflowID,
		"state", stateRulesLoaded,
		"rule_count", len(structured),
	)

	rec, err := s.evaluateAndDecide(ctx, *event, structured, severities, ruleVersions)
	if err != nil {
		return nil, err
	}

	return s.finish(ctx, rec, false, start)
}

// ReplayDecision re-runs a past audit against the exact rule revisions it
// originally evaluated and the event in force at the time it was made. The
// replay produces a new decision row; the original is never touched.
func (s *service) ReplayDecision(ctx context.Context, workflowID, decisionID string) (*models.ComplianceDecision, error) {
	start := time.Now()

	original, err := s.repo.GetDecision(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	if original.WorkflowID != workflowID {
		return nil, pkgerrors.ErrNotFound.
			WithDetail("decision_id", decisionID).
			WithDetail("workflow_id", workflowID)
	}

	s.logger.InfowCtx(ctx, "Replay started",
		"workflow_id", workflowID,
		"decision_id", decisionID,
		"state", stateStarted,
	)

	event, err := s.events.GetLatestEventBefore(ctx, workflowID, original.CreatedAt)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	structured, severities := s.resolvePinnedRules(ctx, original.RuleVersions)
	s.logger.InfowCtx(ctx, "Pinned rules loaded",
		"workflow_id", workflowID,
		"state", stateRulesLoaded,
		"rule_count", len(structured),
	)

	rec, err := s.evaluateAndDecide(ctx, *event, structured, severities, original.RuleVersions)
	if err != nil {
		return nil, err
	}

	return s.finish(ctx, rec, true, start)
}

// resolveActiveRules loads every active rule's current structured form. Rules
// without one are skipped: a rule only exists for evaluation once it has been
// interpreted.
func (s *service) resolveActiveRules(ctx context.Context) ([]models.StructuredRule, map[string]models.RuleSeverity, map[string]string, error) {
	active, err := s.rules.ListActiveRules(ctx)
	if err != nil {
		return nil, nil, nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	structured := []models.StructuredRule{}
	severities := make(map[string]models.RuleSeverity)
	ruleVersions := make(map[string]string)

	for _, rule := range active {
		sr, err := s.rules.GetLatestStructuredRule(ctx, rule.RuleID)
		if err != nil {
			if pkgerrors.IsNotFound(err) {
				s.logger.WarnwCtx(ctx, "Active rule has no structured form, skipping",
					"rule_id", rule.RuleID,
				)
				continue
			}
			return nil, nil, nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
		}
		structured = append(structured, *sr)
		severities[sr.RuleID] = sr.Severity
		ruleVersions[sr.RuleID] = sr.Version
	}

	return structured, severities, ruleVersions, nil
}

// resolvePinnedRules loads the exact (rule_id, version) revisions recorded in
// a past decision. Missing revisions are skipped with a warning rather than
// failing the replay; structured rows are append-only so this only happens
// when data predates the immutability triggers.
func (s *service) resolvePinnedRules(ctx context.Context, ruleVersions map[string]string) ([]models.StructuredRule, map[string]models.RuleSeverity) {
	structured := []models.StructuredRule{}
	severities := make(map[string]models.RuleSeverity)

	for ruleID, version := range ruleVersions {
		sr, err := s.rules.GetStructuredRuleVersion(ctx, models.RuleVersionKey{RuleID: ruleID, Version: version})
		if err != nil {
			s.logger.WarnwCtx(ctx, "Pinned rule revision unavailable, skipping",
				"rule_id", ruleID,
				"version", version,
				"error", err,
			)
			continue
		}
		structured = append(structured, *sr)
		severities[sr.RuleID] = sr.Severity
	}

	return structured, severities
}

// evaluateAndDecide runs the reasoner and the decision engine, degrading to
// REQUIRES_REVIEW when reasoning fails. It builds the decision record but
// does not persist it.
func (s *service) evaluateAndDecide(
	ctx context.Context,
	event models.WorkflowEvent,
	structured []models.StructuredRule,
	severities map[string]models.RuleSeverity,
	ruleVersions map[string]string,
) (*models.ComplianceDecision, error) {
	if ruleVersions == nil {
		ruleVersions = map[string]string{}
	}

	rec := &models.ComplianceDecision{
		WorkflowID:   event.WorkflowID,
		RuleVersions: ruleVersions,
	}

	if len(structured) == 0 {
		rec.Decision = models.OutcomeCompliant
		rec.ViolatedRules = []string{}
		rec.ReasoningTrace = []models.TraceEntry{{
			RuleID: "System",
			Steps: []models.ReasoningStep{{
				Step:   "Rule Resolution",
				Result: "No Rules Applicable",
				Detail: "no structured rules were available for evaluation, workflow is compliant by default",
			}},
		}}
		return rec, nil
	}

	s.logger.InfowCtx(ctx, "Reasoning over rules",
		"workflow_id", event.WorkflowID,
		"state", stateReasoning,
		"rule_count", len(structured),
	)

	result, err := s.evaluator.Evaluate(ctx, event, structured)
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Reasoning failed, decision degraded to manual review",
			"workflow_id", event.WorkflowID,
			"error", err,
		)
		rec.Decision = models.OutcomeRequiresReview
		rec.ViolatedRules = []string{}
		rec.ReasoningTrace = []models.TraceEntry{{
			RuleID: "System Diagnostic",
			Steps: []models.ReasoningStep{{
				Step:   "AI Reasoning Protocol",
				Result: "Execution Failed",
				Detail: fmt.Sprintf("reasoning did not produce a usable evaluation (%v), manual review required", err),
			}},
		}}
		return rec, nil
	}

	evaluations := decision.ResolveConflicts(result.Evaluations)
	rec.Decision = decision.Decide(evaluations, severities)
	rec.ViolatedRules = decision.ViolatedRules(evaluations)
	rec.ReasoningTrace = buildTrace(evaluations)

	for _, sr := range structured {
		metrics.IncRuleCoverage(sr.RuleID)
	}

	s.logger.InfowCtx(ctx, "Decision reached",
		"workflow_id", event.WorkflowID,
		"state", stateDecided,
		"decision", rec.Decision,
		"violated_rules", rec.ViolatedRules,
	)

	return rec, nil
}

func (s *service) finish(ctx context.Context, rec *models.ComplianceDecision, replayed bool, start time.Time) (*models.ComplianceDecision, error) {
	if err := s.repo.CreateDecision(ctx, rec); err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrImmutabilityViolation) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	s.logger.InfowCtx(ctx, "Decision persisted",
		"workflow_id", rec.WorkflowID,
		"decision_id", rec.ID,
		"state", statePersisted,
		"decision", rec.Decision,
		"replayed", replayed,
	)

	s.cache.SetLatest(ctx, rec)
	if s.publisher != nil {
		s.publisher.PublishDecision(ctx, rec, replayed)
	}

	metrics.IncAudit(string(rec.Decision))
	metrics.ObserveAuditDuration(string(rec.Decision), time.Since(start))

	return rec, nil
}

func (s *service) GetLatestDecision(ctx context.Context, workflowID string) (*models.ComplianceDecision, error) {
	if cached, ok := s.cache.GetLatest(ctx, workflowID); ok {
		return cached, nil
	}

	decisions, err := s.repo.GetDecisionsByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	latest := &decisions[0]
	s.cache.SetLatest(ctx, latest)
	return latest, nil
}

func (s *service) GetWorkflowDecisions(ctx context.Context, workflowID string) ([]models.ComplianceDecision, error) {
	return s.repo.GetDecisionsByWorkflow(ctx, workflowID)
}

func (s *service) ListDecisions(ctx context.Context, limit, offset int) ([]models.ComplianceDecision, error) {
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	decisions, err := s.repo.ListDecisions(ctx, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return decisions, nil
}

func (s *service) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	counts, err := s.repo.CountByOutcome(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	stats := &DashboardStats{
		ComplianceStats: map[string]int64{
			string(models.OutcomeCompliant):      0,
			string(models.OutcomeNonCompliant):   0,
			string(models.OutcomeRequiresReview): 0,
		},
	}
	for outcome, count := range counts {
		stats.ComplianceStats[string(outcome)] = count
		stats.TotalAudits += count
	}

	recent, err := s.repo.ListDecisions(ctx, 10, 0)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	stats.RecentAudits = recent

	alerts, err := s.repo.ListByOutcome(ctx, models.OutcomeNonCompliant, 5)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	stats.Alerts = alerts

	return stats, nil
}

func buildTrace(evaluations []models.RuleEvaluation) []models.TraceEntry {
	trace := make([]models.TraceEntry, 0, len(evaluations))
	for _, eval := range evaluations {
		trace = append(trace, models.TraceEntry{
			RuleID: eval.RuleID,
			Steps:  eval.ReasoningSteps,
		})
	}
	return trace
}
