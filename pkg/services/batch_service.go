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

// CreateBatchInput carries the caller's intent when forming a batch.
type CreateBatchInput struct {
	BatchType         models.BatchType `json:"batch_type"`
	CellID            uuid.UUID        `json:"cell_id"`
	OperationIDs      []uuid.UUID      `json:"operation_ids"`
	EfficiencyPercent *float64         `json:"efficiency_percent,omitempty"`
}

// BatchDetail is a batch with member completion figures attached.
type BatchDetail struct {
	models.Batch
	TotalOperations     int     `json:"total_operations"`
	CompletedOperations int     `json:"completed_operations"`
	CompletionPercent   float64 `json:"completion_percent"`
}

// BatchService manages the batch lifecycle: grouping eligible operations,
// forming batches, and walking them through draft, ready, in_progress and
// completed (or cancelled).
type BatchService interface {
	// GetGroupableOperations returns batchable operations at a cell,
	// partitioned by material and thickness.
	GetGroupableOperations(ctx context.Context, tenantID, cellID uuid.UUID) ([]models.MaterialGroup, error)
	CreateBatch(ctx context.Context, tenantID uuid.UUID, input CreateBatchInput) (*models.Batch, error)
	GetBatch(ctx context.Context, tenantID, batchID uuid.UUID) (*BatchDetail, error)
	MarkBatchReady(ctx context.Context, tenantID, batchID uuid.UUID) (*models.Batch, error)
	StartBatch(ctx context.Context, tenantID, batchID uuid.UUID, startedBy string) (*models.Batch, error)
	CompleteBatch(ctx context.Context, tenantID, batchID uuid.UUID) (*models.Batch, error)
	CancelBatch(ctx context.Context, tenantID, batchID uuid.UUID) (*models.Batch, error)
}

type batchService struct {
	batches    repositories.BatchRepository
	operations repositories.OperationRepository
	cells      repositories.CellRepository
	notifier   notify.Notifier
	webhooks   *webhook.Dispatcher
	logger     *zap.Logger
}

// NewBatchService creates a batch service.
func NewBatchService(batches repositories.BatchRepository, operations repositories.OperationRepository,
	cells repositories.CellRepository, notifier notify.Notifier, webhooks *webhook.Dispatcher,
	logger *zap.Logger) BatchService {
	return &batchService{
		batches:    batches,
		operations: operations,
		cells:      cells,
		notifier:   notifier,
		webhooks:   webhooks,
		logger:     logger.Named("batch-service"),
	}
}

var _ BatchService = (*batchService)(nil)

func (s *batchService) GetGroupableOperations(ctx context.Context, tenantID, cellID uuid.UUID) ([]models.MaterialGroup, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	if _, err := s.cells.Get(ctx, cellID); err != nil {
		return nil, err
	}

	ops, err := s.operations.ListGroupable(ctx, cellID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groupable operations: %w", err)
	}

	// ListGroupable orders by (material, thickness), so contiguous runs
	// form the groups.
	var groups []models.MaterialGroup
	for _, g := range ops {
		n := len(groups)
		if n == 0 || groups[n-1].Material != g.Material || groups[n-1].Thickness != g.Thickness {
			groups = append(groups, models.MaterialGroup{
				Material:  g.Material,
				Thickness: g.Thickness,
			})
			n++
		}
		groups[n-1].Operations = append(groups[n-1].Operations, g.Operation)
	}
	return groups, nil
}

func (s *batchService) CreateBatch(ctx context.Context, tenantID uuid.UUID, input CreateBatchInput) (*models.Batch, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	if !models.ValidBatchType(input.BatchType) {
		return nil, fmt.Errorf("%w: unknown batch type %q", apperrors.ErrValidation, input.BatchType)
	}
	if len(input.OperationIDs) == 0 {
		return nil, fmt.Errorf("%w: a batch needs at least one operation", apperrors.ErrValidation)
	}

	if _, err := s.cells.Get(ctx, input.CellID); err != nil {
		return nil, err
	}

	// The groupable set already enforces single-cell, not_started and
	// not-yet-batched; anything requested but absent fails one of those.
	eligible, err := s.operations.ListGroupable(ctx, input.CellID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groupable operations: %w", err)
	}
	byID := make(map[uuid.UUID]repositories.GroupableOperation, len(eligible))
	for _, g := range eligible {
		byID[g.Operation.ID] = g
	}

	seen := make(map[uuid.UUID]bool, len(input.OperationIDs))
	var material, thickness string
	for i, opID := range input.OperationIDs {
		if seen[opID] {
			return nil, fmt.Errorf("%w: operation %s listed twice", apperrors.ErrValidation, opID)
		}
		seen[opID] = true

		g, ok := byID[opID]
		if !ok {
			return nil, fmt.Errorf("%w: operation %s is not groupable at this cell", apperrors.ErrValidation, opID)
		}
		if i == 0 {
			material, thickness = g.Material, g.Thickness
			continue
		}
		if input.BatchType.NestingSensitive() && (g.Material != material || g.Thickness != thickness) {
			return nil, fmt.Errorf("%w: %s batches require uniform material and thickness",
				apperrors.ErrValidation, input.BatchType)
		}
	}
	if !input.BatchType.NestingSensitive() {
		// Mixed membership is allowed; record a compatibility key only
		// when it happens to be uniform.
		for _, opID := range input.OperationIDs {
			g := byID[opID]
			if g.Material != material || g.Thickness != thickness {
				material, thickness = "", ""
				break
			}
		}
	}

	number, err := s.batches.NextBatchNumber(ctx)
	if err != nil {
		return nil, err
	}

	batch := &models.Batch{
		TenantID:          tenantID,
		BatchNumber:       number,
		BatchType:         input.BatchType,
		CellID:            input.CellID,
		Material:          material,
		Thickness:         thickness,
		EfficiencyPercent: input.EfficiencyPercent,
	}
	if err := s.batches.Create(ctx, batch, input.OperationIDs); err != nil {
		return nil, err
	}

	s.logger.Info("Batch created",
		zap.String("batch_id", batch.ID.String()),
		zap.String("batch_number", batch.BatchNumber),
		zap.String("batch_type", string(batch.BatchType)),
		zap.Int("operations", len(input.OperationIDs)))

	s.publish(ctx, notify.ActionInsert, batch, "created")
	return batch, nil
}

func (s *batchService) GetBatch(ctx context.Context, tenantID, batchID uuid.UUID) (*BatchDetail, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	batch, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	total, completed, err := s.batches.MemberCounts(ctx, batchID)
	if err != nil {
		return nil, err
	}

	return &BatchDetail{
		Batch:               *batch,
		TotalOperations:     total,
		CompletedOperations: completed,
		CompletionPercent:   models.CompletionPercent(completed, total),
	}, nil
}

func (s *batchService) MarkBatchReady(ctx context.Context, tenantID, batchID uuid.UUID) (*models.Batch, error) {
	return s.transition(ctx, tenantID, batchID, "ready", func() error {
		return s.batches.Ready(ctx, batchID)
	})
}

func (s *batchService) StartBatch(ctx context.Context, tenantID, batchID uuid.UUID, startedBy string) (*models.Batch, error) {
	if startedBy == "" {
		return nil, fmt.Errorf("%w: started_by is required", apperrors.ErrValidation)
	}
	return s.transition(ctx, tenantID, batchID, "started", func() error {
		return s.batches.Start(ctx, batchID, startedBy)
	})
}

// CompleteBatch closes the batch without requiring every member operation to
// be completed; stragglers are finished individually at the terminal.
func (s *batchService) CompleteBatch(ctx context.Context, tenantID, batchID uuid.UUID) (*models.Batch, error) {
	return s.transition(ctx, tenantID, batchID, "completed", func() error {
		return s.batches.Complete(ctx, batchID)
	})
}

func (s *batchService) CancelBatch(ctx context.Context, tenantID, batchID uuid.UUID) (*models.Batch, error) {
	return s.transition(ctx, tenantID, batchID, "cancelled", func() error {
		return s.batches.Cancel(ctx, batchID)
	})
}

func (s *batchService) transition(ctx context.Context, tenantID, batchID uuid.UUID, verb string, apply func() error) (*models.Batch, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	if err := apply(); err != nil {
		return nil, err
	}

	batch, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Batch transitioned",
		zap.String("batch_id", batchID.String()),
		zap.String("status", string(batch.Status)))

	s.publish(ctx, notify.ActionUpdate, batch, verb)
	return batch, nil
}

func (s *batchService) publish(ctx context.Context, action notify.Action, batch *models.Batch, verb string) {
	if s.notifier != nil {
		err := s.notifier.Publish(ctx, notify.ChangeEvent{
			Table:    "batches",
			Action:   action,
			TenantID: batch.TenantID,
			RowID:    batch.ID,
			At:       time.Now().UTC(),
		})
		if err != nil {
			s.logger.Warn("Failed to publish batch change", zap.Error(err))
		}
	}
	if s.webhooks != nil {
		s.webhooks.Dispatch(ctx, webhook.EventName("batches", verb), batch.TenantID, batch)
	}
}
