package rules

import (
	"context"
	"database/sql"
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

type Repository interface {
	CreateRule(ctx context.Context, rule *models.ComplianceRule) error
	GetRule(ctx context.Context, ruleID string) (*models.ComplianceRule, error)
	ListRules(ctx context.Context, limit, offset int) ([]models.ComplianceRule, error)
	ListActiveRules(ctx context.Context) ([]models.ComplianceRule, error)
	UpdateRule(ctx context.Context, rule *models.ComplianceRule) error
	DeleteRule(ctx context.Context, id string) error

	CreateStructuredRule(ctx context.Context, rule *models.StructuredRule) error
	ListStructuredRules(ctx context.Context, ruleID string) ([]models.StructuredRule, error)
	GetLatestStructuredRule(ctx context.Context, ruleID string) (*models.StructuredRule, error)
	GetStructuredRuleVersion(ctx context.Context, key models.RuleVersionKey) (*models.StructuredRule, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateRule(ctx context.Context, rule *models.ComplianceRule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.EffectiveFrom.IsZero() {
		rule.EffectiveFrom = time.Now()
	}

	query := `
		INSERT INTO compliance_rules (id, rule_id, category, rule_text, severity, version, status, effective_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		rule.ID, rule.RuleID, rule.Category, rule.RuleText,
		rule.Severity, rule.Version, rule.Status, rule.EffectiveFrom,
	)
	if err != nil {
		metrics.IncDatabaseQuery("create_rule", "error")
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("rule '%s' already exists", rule.RuleID))
		}
		return fmt.Errorf("failed to create rule: %w", err)
	}

	metrics.IncDatabaseQuery("create_rule", "success")
	return nil
}

func (r *PostgresRepository) GetRule(ctx context.Context, ruleID string) (*models.ComplianceRule, error) {
	query := `
		SELECT id, rule_id, category, rule_text, severity, version, status, effective_from
		FROM compliance_rules
		WHERE rule_id = $1
	`

	row := r.db.QueryRowContext(ctx, query, ruleID)

	var rule models.ComplianceRule
	err := row.Scan(
		&rule.ID, &rule.RuleID, &rule.Category, &rule.RuleText,
		&rule.Severity, &rule.Version, &rule.Status, &rule.EffectiveFrom,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("rule_id", ruleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return &rule, nil
}

func (r *PostgresRepository) ListRules(ctx context.Context, limit, offset int) ([]models.ComplianceRule, error) {
	query := `
		SELECT id, rule_id, category, rule_text, severity, version, status, effective_from
		FROM compliance_rules
		ORDER BY rule_id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	return scanRules(ctx, rows)
}

func (r *PostgresRepository) ListActiveRules(ctx context.Context) ([]models.ComplianceRule, error) {
	query := `
		SELECT id, rule_id, category, rule_text, severity, version, status, effective_from
		FROM compliance_rules
		WHERE status = $1
		ORDER BY rule_id
	`

	rows, err := r.db.QueryContext(ctx, query, models.RuleStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	defer rows.Close()

	return scanRules(ctx, rows)
}

func (r *PostgresRepository) UpdateRule(ctx context.Context, rule *models.ComplianceRule) error {
	query := `
		UPDATE compliance_rules
		SET category = $1, rule_text = $2, severity = $3, version = $4, status = $5
		WHERE id = $6
	`

	res, err := r.db.ExecContext(ctx, query,
		rule.Category, rule.RuleText, rule.Severity,
		rule.Version, rule.Status, rule.ID,
	)
	if err != nil {
		metrics.IncDatabaseQuery("update_rule", "error")
		return fmt.Errorf("failed to update rule: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithDetail("id", rule.ID)
	}

	metrics.IncDatabaseQuery("update_rule", "success")
	return nil
}

// DeleteRule removes a rule row. This exists only for the compensating
// rollback after a failed interpretation; there is no delete endpoint.
func (r *PostgresRepository) DeleteRule(ctx context.Context, id string) error {
	query := `DELETE FROM compliance_rules WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	return nil
}

func (r *PostgresRepository) CreateStructuredRule(ctx context.Context, rule *models.StructuredRule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	rule.CreatedAt = time.Now()

	query := `
		INSERT INTO structured_rules (id, rule_id, version, applicability_conditions, obligations, exceptions, severity, raw_model_output, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		rule.ID, rule.RuleID, rule.Version,
		pq.Array(rule.ApplicabilityConditions), pq.Array(rule.Obligations), pq.Array(rule.Exceptions),
		rule.Severity, rule.RawModelOutput, rule.CreatedAt,
	)
	if err != nil {
		metrics.IncDatabaseQuery("create_structured_rule", "error")
		return mapImmutabilityError(err, "failed to create structured rule")
	}

	metrics.IncDatabaseQuery("create_structured_rule", "success")
	return nil
}

func (r *PostgresRepository) ListStructuredRules(ctx context.Context, ruleID string) ([]models.StructuredRule, error) {
	query := `
		SELECT id, rule_id, version, applicability_conditions, obligations, exceptions, severity, raw_model_output, created_at
		FROM structured_rules
		WHERE rule_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list structured rules: %w", err)
	}
	defer rows.Close()

	var rules []models.StructuredRule
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		rule, err := scanStructuredRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}

	return rules, nil
}

func (r *PostgresRepository) GetLatestStructuredRule(ctx context.Context, ruleID string) (*models.StructuredRule, error) {
	query := `
		SELECT id, rule_id, version, applicability_conditions, obligations, exceptions, severity, raw_model_output, created_at
		FROM structured_rules
		WHERE rule_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, ruleID)
	rule, err := scanStructuredRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("rule_id", ruleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest structured rule: %w", err)
	}

	return rule, nil
}

func (r *PostgresRepository) GetStructuredRuleVersion(ctx context.Context, key models.RuleVersionKey) (*models.StructuredRule, error) {
	query := `
		SELECT id, rule_id, version, applicability_conditions, obligations, exceptions, severity, raw_model_output, created_at
		FROM structured_rules
		WHERE rule_id = $1 AND version = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, key.RuleID, key.Version)
	rule, err := scanStructuredRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.
			WithDetail("rule_id", key.RuleID).
			WithDetail("version", key.Version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get structured rule version: %w", err)
	}

	return rule, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStructuredRule(row rowScanner) (*models.StructuredRule, error) {
	var rule models.StructuredRule
	var conditions, obligations, exceptions pq.StringArray

	err := row.Scan(
		&rule.ID, &rule.RuleID, &rule.Version,
		&conditions, &obligations, &exceptions,
		&rule.Severity, &rule.RawModelOutput, &rule.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.ApplicabilityConditions = conditions
	rule.Obligations = obligations
	rule.Exceptions = exceptions
	return &rule, nil
}

func scanRules(ctx context.Context, rows *sql.Rows) ([]models.ComplianceRule, error) {
	var rules []models.ComplianceRule
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		var rule models.ComplianceRule
		if err := rows.Scan(
			&rule.ID, &rule.RuleID, &rule.Category, &rule.RuleText,
			&rule.Severity, &rule.Version, &rule.Status, &rule.EffectiveFrom,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

// mapImmutabilityError translates the append-only trigger exception raised by
// the database into the domain error.
func mapImmutabilityError(err error, msg string) error {
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "P0001" && strings.Contains(pqErr.Message, "append-only") {
			return pkgerrors.ErrImmutabilityViolation.WithCause(err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
