package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	pkgerrors "verdict/pkg/errors"
	"verdict/pkg/metrics"
	"verdict/pkg/models"
)

// Repository persists compliance decisions. The table is insert-only; the
// database rejects updates and deletes so the audit trail cannot be rewritten.
type Repository interface {
	CreateDecision(ctx context.Context, decision *models.ComplianceDecision) error
	GetDecision(ctx context.Context, id string) (*models.ComplianceDecision, error)
	ListDecisions(ctx context.Context, limit, offset int) ([]models.ComplianceDecision, error)
	GetDecisionsByWorkflow(ctx context.Context, workflowID string) ([]models.ComplianceDecision, error)
	CountByOutcome(ctx context.Context) (map[models.DecisionOutcome]int64, error)
	ListByOutcome(ctx context.Context, outcome models.DecisionOutcome, limit int) ([]models.ComplianceDecision, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

const decisionColumns = "id, workflow_id, decision, violated_rules, reasoning_trace, rule_versions, created_at"

func (r *PostgresRepository) CreateDecision(ctx context.Context, decision *models.ComplianceDecision) error {
	if decision.ID == "" {
		decision.ID = uuid.New().String()
	}
	if decision.CreatedAt.IsZero() {
		decision.CreatedAt = time.Now()
	}

	trace, err := json.Marshal(decision.ReasoningTrace)
	if err != nil {
		return fmt.Errorf("failed to marshal reasoning trace: %w", err)
	}
	versions, err := json.Marshal(decision.RuleVersions)
	if err != nil {
		return fmt.Errorf("failed to marshal rule versions: %w", err)
	}

	query := `
		INSERT INTO compliance_decisions (` + decisionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		decision.ID, decision.WorkflowID, decision.Decision,
		pq.Array(decision.ViolatedRules), trace, versions, decision.CreatedAt,
	)
	if err != nil {
		metrics.IncDatabaseQuery("create_decision", "error")
		return mapImmutabilityError(err, "failed to create compliance decision")
	}

	metrics.IncDatabaseQuery("create_decision", "success")
	return nil
}

func (r *PostgresRepository) GetDecision(ctx context.Context, id string) (*models.ComplianceDecision, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM compliance_decisions
		WHERE id = $1
	`

	decision, err := scanDecision(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.ErrNotFound.WithDetail("decision_id", id)
		}
		return nil, fmt.Errorf("failed to get compliance decision: %w", err)
	}
	return decision, nil
}

func (r *PostgresRepository) ListDecisions(ctx context.Context, limit, offset int) ([]models.ComplianceDecision, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM compliance_decisions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list compliance decisions: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

func (r *PostgresRepository) GetDecisionsByWorkflow(ctx context.Context, workflowID string) ([]models.ComplianceDecision, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM compliance_decisions
		WHERE workflow_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions for workflow: %w", err)
	}
	defer rows.Close()

	decisions, err := scanDecisions(rows)
	if err != nil {
		return nil, err
	}
	if len(decisions) == 0 {
		return nil, pkgerrors.ErrNotFound.WithDetail("workflow_id", workflowID)
	}
	return decisions, nil
}

func (r *PostgresRepository) CountByOutcome(ctx context.Context) (map[models.DecisionOutcome]int64, error) {
	query := `
		SELECT decision, COUNT(*)
		FROM compliance_decisions
		GROUP BY decision
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count decisions: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.DecisionOutcome]int64)
	for rows.Next() {
		var outcome models.DecisionOutcome
		var count int64
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("failed to scan decision count: %w", err)
		}
		counts[outcome] = count
	}
	return counts, rows.Err()
}

func (r *PostgresRepository) ListByOutcome(ctx context.Context, outcome models.DecisionOutcome, limit int) ([]models.ComplianceDecision, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM compliance_decisions
		WHERE decision = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, outcome, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions by outcome: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDecision(row rowScanner) (*models.ComplianceDecision, error) {
	var decision models.ComplianceDecision
	var violated pq.StringArray
	var trace, versions []byte

	err := row.Scan(
		&decision.ID, &decision.WorkflowID, &decision.Decision,
		&violated, &trace, &versions, &decision.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	decision.ViolatedRules = []string(violated)
	if decision.ViolatedRules == nil {
		decision.ViolatedRules = []string{}
	}
	if err := json.Unmarshal(trace, &decision.ReasoningTrace); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reasoning trace: %w", err)
	}
	if err := json.Unmarshal(versions, &decision.RuleVersions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule versions: %w", err)
	}
	return &decision, nil
}

func scanDecisions(rows *sql.Rows) ([]models.ComplianceDecision, error) {
	decisions := []models.ComplianceDecision{}
	for rows.Next() {
		decision, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan compliance decision: %w", err)
		}
		decisions = append(decisions, *decision)
	}
	return decisions, rows.Err()
}

func mapImmutabilityError(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "P0001" && strings.Contains(pqErr.Message, "append-only") {
		return pkgerrors.ErrImmutabilityViolation.WithCause(err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
