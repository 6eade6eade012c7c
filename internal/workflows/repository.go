package workflows

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

type Repository interface {
	CreateEvent(ctx context.Context, event *models.WorkflowEvent) error
	ListEvents(ctx context.Context, limit, offset int) ([]models.WorkflowEvent, error)
	GetEvents(ctx context.Context, workflowID string) ([]models.WorkflowEvent, error)
	GetLatestEvent(ctx context.Context, workflowID string) (*models.WorkflowEvent, error)
	GetLatestEventBefore(ctx context.Context, workflowID string, cutoff time.Time) (*models.WorkflowEvent, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateEvent(ctx context.Context, event *models.WorkflowEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.SubmittedAt.IsZero() {
		event.SubmittedAt = time.Now()
	}

	attrs, err := json.Marshal(event.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	query := `
		INSERT INTO workflow_events (id, workflow_id, workflow_type, attributes, actor_id, source_system, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.WorkflowID, event.WorkflowType, attrs,
		event.ActorID, event.SourceSystem, event.SubmittedAt,
	)
	if err != nil {
		metrics.IncDatabaseQuery("create_event", "error")
		return mapImmutabilityError(err, "failed to create workflow event")
	}

	metrics.IncDatabaseQuery("create_event", "success")
	return nil
}

func (r *PostgresRepository) ListEvents(ctx context.Context, limit, offset int) ([]models.WorkflowEvent, error) {
	query := `
		SELECT id, workflow_id, workflow_type, attributes, actor_id, source_system, submitted_at
		FROM workflow_events
		ORDER BY submitted_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow events: %w", err)
	}
	defer rows.Close()

	return scanEvents(ctx, rows)
}

func (r *PostgresRepository) GetEvents(ctx context.Context, workflowID string) ([]models.WorkflowEvent, error) {
	query := `
		SELECT id, workflow_id, workflow_type, attributes, actor_id, source_system, submitted_at
		FROM workflow_events
		WHERE workflow_id = $1
		ORDER BY submitted_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow events: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, pkgerrors.ErrNotFound.WithDetail("workflow_id", workflowID)
	}

	return events, nil
}

func (r *PostgresRepository) GetLatestEvent(ctx context.Context, workflowID string) (*models.WorkflowEvent, error) {
	query := `
		SELECT id, workflow_id, workflow_type, attributes, actor_id, source_system, submitted_at
		FROM workflow_events
		WHERE workflow_id = $1
		ORDER BY submitted_at DESC
		LIMIT 1
	`

	return r.queryEvent(ctx, query, workflowID)
}

// GetLatestEventBefore returns the event in force at cutoff, the most recent
// event submitted at or before that instant. Replay uses it to reconstruct
// what the original audit saw.
func (r *PostgresRepository) GetLatestEventBefore(ctx context.Context, workflowID string, cutoff time.Time) (*models.WorkflowEvent, error) {
	query := `
		SELECT id, workflow_id, workflow_type, attributes, actor_id, source_system, submitted_at
		FROM workflow_events
		WHERE workflow_id = $1 AND submitted_at <= $2
		ORDER BY submitted_at DESC
		LIMIT 1
	`

	return r.queryEvent(ctx, query, workflowID, cutoff)
}

func (r *PostgresRepository) queryEvent(ctx context.Context, query string, args ...interface{}) (*models.WorkflowEvent, error) {
	row := r.db.QueryRowContext(ctx, query, args...)

	var event models.WorkflowEvent
	var attrs []byte
	err := row.Scan(
		&event.ID, &event.WorkflowID, &event.WorkflowType, &attrs,
		&event.ActorID, &event.SourceSystem, &event.SubmittedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("workflow_id", fmt.Sprintf("%v", args[0]))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow event: %w", err)
	}

	if err := json.Unmarshal(attrs, &event.Attributes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
	}

	return &event, nil
}

func scanEvents(ctx context.Context, rows *sql.Rows) ([]models.WorkflowEvent, error) {
	var events []models.WorkflowEvent
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		var event models.WorkflowEvent
		var attrs []byte
		if err := rows.Scan(
			&event.ID, &event.WorkflowID, &event.WorkflowType, &attrs,
			&event.ActorID, &event.SourceSystem, &event.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workflow event: %w", err)
		}
		if err := json.Unmarshal(attrs, &event.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
		}
		events = append(events, event)
	}

	return events, nil
}

func mapImmutabilityError(err error, msg string) error {
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "P0001" && strings.Contains(pqErr.Message, "append-only") {
			return pkgerrors.ErrImmutabilityViolation.WithCause(err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
