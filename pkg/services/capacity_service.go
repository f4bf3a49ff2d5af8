package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/models"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/repositories"
)

// CapacityService computes per-cell QRM capacity metrics: WIP against the
// configured limit, utilization, queueing history and throughput, and the
// advisory next-cell capacity check operators see before moving work
// forward. All methods are pure reads.
type CapacityService interface {
	GetCellMetrics(ctx context.Context, tenantID, cellID uuid.UUID) (*models.CellMetrics, error)
	CheckNextCellCapacity(ctx context.Context, tenantID, currentCellID uuid.UUID) (*models.NextCellCapacity, error)
}

type capacityService struct {
	cells       repositories.CellRepository
	operations  repositories.OperationRepository
	historyDays int
	logger      *zap.Logger
}

// NewCapacityService creates a capacity service. historyDays is the
// trailing window for wait-time and throughput computations.
func NewCapacityService(cells repositories.CellRepository, operations repositories.OperationRepository, historyDays int, logger *zap.Logger) CapacityService {
	if historyDays <= 0 {
		historyDays = 30
	}
	return &capacityService{
		cells:       cells,
		operations:  operations,
		historyDays: historyDays,
		logger:      logger.Named("capacity-service"),
	}
}

var _ CapacityService = (*capacityService)(nil)

func (s *capacityService) GetCellMetrics(ctx context.Context, tenantID, cellID uuid.UUID) (*models.CellMetrics, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	cell, err := s.cells.Get(ctx, cellID)
	if err != nil {
		return nil, err
	}

	wip, err := s.cells.CountInProgress(ctx, cellID)
	if err != nil {
		return nil, fmt.Errorf("failed to count WIP for cell %s: %w", cellID, err)
	}

	since := time.Now().AddDate(0, 0, -s.historyDays)
	stats, err := s.operations.WaitStats(ctx, cellID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to compute history for cell %s: %w", cellID, err)
	}

	metrics := &models.CellMetrics{
		CellID:         cell.ID,
		CellName:       cell.Name,
		WIPCount:       wip,
		WIPLimit:       cell.WIPLimit,
		AvgWaitMinutes: stats.AvgWaitMinutes,
	}

	// A cell without a configured limit reports zero utilization rather
	// than a division error; AtCapacity is false for it by construction.
	if cell.WIPLimit > 0 {
		metrics.Utilization = float64(wip) / float64(cell.WIPLimit)
	}

	windowHours := float64(s.historyDays) * 24
	if windowHours > 0 {
		metrics.ThroughputPerHour = float64(stats.CompletedCount) / windowHours
	}

	return metrics, nil
}

func (s *capacityService) CheckNextCellCapacity(ctx context.Context, tenantID, currentCellID uuid.UUID) (*models.NextCellCapacity, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	current, err := s.cells.Get(ctx, currentCellID)
	if err != nil {
		return nil, err
	}

	next, err := s.cells.NextInSequence(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("failed to look up next cell after %s: %w", currentCellID, err)
	}
	if next == nil {
		// Last cell in the routing sequence: nothing to warn about.
		return &models.NextCellCapacity{HasNext: false}, nil
	}

	wip, err := s.cells.CountInProgress(ctx, next.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count WIP for cell %s: %w", next.ID, err)
	}

	capacity := &models.NextCellCapacity{
		HasNext:  true,
		CellID:   next.ID,
		CellName: next.Name,
		WIPCount: wip,
		WIPLimit: next.WIPLimit,
	}
	if next.WIPLimit > 0 {
		capacity.AvailableCapacity = next.WIPLimit - wip
		if capacity.AvailableCapacity < 0 {
			capacity.AvailableCapacity = 0
		}
		capacity.AtCapacity = wip >= next.WIPLimit
	} else {
		capacity.Unlimited = true
	}

	return capacity, nil
}
