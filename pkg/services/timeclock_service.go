package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/apperrors"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/models"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/notify"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/repositories"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/webhook"
)

// TimeclockService is the terminal-facing time tracking ledger. An operator
// works on at most one operation at a time; starting while another entry is
// open is rejected rather than silently switched.
type TimeclockService interface {
	// StartTiming opens a time entry for the operator on the operation and
	// moves a not_started or on_hold operation to in_progress. A completed
	// operation is terminal and rejects further timing with
	// ErrPreconditionFailed.
	StartTiming(ctx context.Context, tenantID, operationID uuid.UUID, operatorID string) (*models.TimeEntry, error)
	// StopTiming closes the operator's open entry on the operation and
	// accumulates the duration into the operation's actual minutes.
	StopTiming(ctx context.Context, tenantID, operationID uuid.UUID, operatorID string) (*models.TimeEntry, error)
	// CompleteOperation marks the operation completed. It refuses while any
	// operator still has an open entry against it.
	CompleteOperation(ctx context.Context, tenantID, operationID uuid.UUID) (*models.Operation, error)
	// GetActiveEntry returns the operator's open entry, or ErrNotFound.
	GetActiveEntry(ctx context.Context, tenantID uuid.UUID, operatorID string) (*models.TimeEntry, error)
}

type timeclockService struct {
	timeEntries repositories.TimeEntryRepository
	operations  repositories.OperationRepository
	notifier    notify.Notifier
	webhooks    *webhook.Dispatcher
	logger      *zap.Logger
}

// NewTimeclockService creates a timeclock service.
func NewTimeclockService(timeEntries repositories.TimeEntryRepository, operations repositories.OperationRepository,
	notifier notify.Notifier, webhooks *webhook.Dispatcher, logger *zap.Logger) TimeclockService {
	return &timeclockService{
		timeEntries: timeEntries,
		operations:  operations,
		notifier:    notifier,
		webhooks:    webhooks,
		logger:      logger.Named("timeclock-service"),
	}
}

var _ TimeclockService = (*timeclockService)(nil)

func (s *timeclockService) StartTiming(ctx context.Context, tenantID, operationID uuid.UUID, operatorID string) (*models.TimeEntry, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	if operatorID == "" {
		return nil, fmt.Errorf("%w: operator_id is required", apperrors.ErrValidation)
	}

	entry, err := s.timeEntries.Start(ctx, tenantID, operationID, operatorID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Timing started",
		zap.String("operation_id", operationID.String()),
		zap.String("operator_id", operatorID))

	s.publishChange(ctx, notify.ActionInsert, tenantID, entry.ID, "time_entries")
	s.publishChange(ctx, notify.ActionUpdate, tenantID, operationID, "operations")
	return entry, nil
}

func (s *timeclockService) StopTiming(ctx context.Context, tenantID, operationID uuid.UUID, operatorID string) (*models.TimeEntry, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	if operatorID == "" {
		return nil, fmt.Errorf("%w: operator_id is required", apperrors.ErrValidation)
	}

	entry, err := s.timeEntries.Stop(ctx, operationID, operatorID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Timing stopped",
		zap.String("operation_id", operationID.String()),
		zap.String("operator_id", operatorID),
		zap.Int("duration_minutes", entry.DurationMinutes))

	s.publishChange(ctx, notify.ActionUpdate, tenantID, entry.ID, "time_entries")
	s.publishChange(ctx, notify.ActionUpdate, tenantID, operationID, "operations")
	return entry, nil
}

func (s *timeclockService) CompleteOperation(ctx context.Context, tenantID, operationID uuid.UUID) (*models.Operation, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	if err := s.operations.CompleteIfIdle(ctx, operationID); err != nil {
		return nil, err
	}

	op, err := s.operations.Get(ctx, operationID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Operation completed",
		zap.String("operation_id", operationID.String()),
		zap.Int("actual_minutes", op.ActualMinutes))

	s.publishChange(ctx, notify.ActionUpdate, tenantID, operationID, "operations")
	if s.webhooks != nil {
		s.webhooks.Dispatch(ctx, webhook.EventName("operations", "completed"), tenantID, op)
	}
	return op, nil
}

func (s *timeclockService) GetActiveEntry(ctx context.Context, tenantID uuid.UUID, operatorID string) (*models.TimeEntry, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	if operatorID == "" {
		return nil, fmt.Errorf("%w: operator_id is required", apperrors.ErrValidation)
	}
	return s.timeEntries.GetActiveByOperator(ctx, operatorID)
}

func (s *timeclockService) publishChange(ctx context.Context, action notify.Action, tenantID, rowID uuid.UUID, table string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Publish(ctx, notify.ChangeEvent{
		Table:    table,
		Action:   action,
		TenantID: tenantID,
		RowID:    rowID,
		At:       time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("Failed to publish change event",
			zap.String("table", table),
			zap.Error(err))
	}
}
