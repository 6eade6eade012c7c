package workflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"verdict/internal/constants"
	"verdict/internal/logger"
	pkgerrors "verdict/pkg/errors"
	"verdict/pkg/models"
)

type Service interface {
	CreateEvent(ctx context.Context, req CreateEventRequest) (*models.WorkflowEvent, error)
	ListEvents(ctx context.Context, limit, offset int) ([]models.WorkflowEvent, error)
	GetEvents(ctx context.Context, workflowID string) ([]models.WorkflowEvent, error)
	GetLatestEvent(ctx context.Context, workflowID string) (*models.WorkflowEvent, error)
	GetLatestEventBefore(ctx context.Context, workflowID string, cutoff time.Time) (*models.WorkflowEvent, error)
}

type service struct {
	repo   Repository
	logger logger.Logger
}

func NewService(repo Repository, log logger.Logger) Service {
	return &service{
		repo:   repo,
		logger: log,
	}
}

func (s *service) CreateEvent(ctx context.Context, req CreateEventRequest) (*models.WorkflowEvent, error) {
	if err := validateCreateEvent(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	event := &models.WorkflowEvent{
		WorkflowID:   req.WorkflowID,
		WorkflowType: models.WorkflowType(req.WorkflowType),
		Attributes:   req.Attributes,
		ActorID:      req.ActorID,
		SourceSystem: req.SourceSystem,
	}
	if req.SubmittedAt != nil {
		event.SubmittedAt = *req.SubmittedAt
	}

	if err := s.repo.CreateEvent(ctx, event); err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrImmutabilityViolation) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	s.logger.InfowCtx(ctx, "Workflow event recorded",
		"workflow_id", event.WorkflowID,
		"workflow_type", event.WorkflowType,
		"actor_id", event.ActorID,
	)

	return event, nil
}

func (s *service) ListEvents(ctx context.Context, limit, offset int) ([]models.WorkflowEvent, error) {
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	events, err := s.repo.ListEvents(ctx, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return events, nil
}

func (s *service) GetEvents(ctx context.Context, workflowID string) ([]models.WorkflowEvent, error) {
	return s.repo.GetEvents(ctx, workflowID)
}

func (s *service) GetLatestEvent(ctx context.Context, workflowID string) (*models.WorkflowEvent, error) {
	return s.repo.GetLatestEvent(ctx, workflowID)
}

func (s *service) GetLatestEventBefore(ctx context.Context, workflowID string, cutoff time.Time) (*models.WorkflowEvent, error) {
	return s.repo.GetLatestEventBefore(ctx, workflowID, cutoff)
}

func validateCreateEvent(req CreateEventRequest) error {
	if strings.TrimSpace(req.WorkflowID) == "" {
		return fmt.Errorf("workflow_id is required")
	}
	if !models.WorkflowType(req.WorkflowType).Valid() {
		return fmt.Errorf("invalid workflow_type: %s", req.WorkflowType)
	}
	if strings.TrimSpace(req.ActorID) == "" {
		return fmt.Errorf("actor_id is required")
	}
	if req.Attributes == nil {
		return fmt.Errorf("attributes are required")
	}
	return nil
}
