package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/apperrors"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/models"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/repositories"
)

// RoutingService derives the ordered sequence of cells a part's or job's
// operations pass through, with per-cell operation and completion counts.
type RoutingService interface {
	GetPartRouting(ctx context.Context, tenantID, partID uuid.UUID) ([]models.RoutingEntry, error)
	GetJobRouting(ctx context.Context, tenantID, jobID uuid.UUID) ([]models.RoutingEntry, error)
	// GetJobsRouting computes routing for several jobs in one query pass.
	// Results are identical to calling GetJobRouting per job; jobs unknown
	// to the tenant are omitted from the result map.
	GetJobsRouting(ctx context.Context, tenantID uuid.UUID, jobIDs []uuid.UUID) (map[uuid.UUID][]models.RoutingEntry, error)
}

type routingService struct {
	parts      repositories.PartRepository
	jobs       repositories.JobRepository
	operations repositories.OperationRepository
	logger     *zap.Logger
}

// NewRoutingService creates a routing service.
func NewRoutingService(parts repositories.PartRepository, jobs repositories.JobRepository, operations repositories.OperationRepository, logger *zap.Logger) RoutingService {
	return &routingService{
		parts:      parts,
		jobs:       jobs,
		operations: operations,
		logger:     logger.Named("routing-service"),
	}
}

var _ RoutingService = (*routingService)(nil)

// aggregate folds routing operations into per-cell entries ordered by cell
// sequence. Cells sharing a sequence value sort by cell id for stability.
// Operations without a cell are excluded, not an error.
func aggregate(ops []models.RoutingOperation) []models.RoutingEntry {
	byCell := make(map[uuid.UUID]*models.RoutingEntry)
	for _, op := range ops {
		if op.CellID == nil {
			continue
		}
		entry, ok := byCell[*op.CellID]
		if !ok {
			entry = &models.RoutingEntry{
				CellID:    *op.CellID,
				CellName:  op.CellName,
				CellColor: op.CellColor,
				Sequence:  op.CellSequence,
			}
			byCell[*op.CellID] = entry
		}
		entry.OperationCount++
		if op.Status == models.OperationStatusCompleted {
			entry.CompletedOperations++
		}
	}

	entries := make([]models.RoutingEntry, 0, len(byCell))
	for _, entry := range byCell {
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Sequence != entries[j].Sequence {
			return entries[i].Sequence < entries[j].Sequence
		}
		return entries[i].CellID.String() < entries[j].CellID.String()
	})
	return entries
}

func (s *routingService) GetPartRouting(ctx context.Context, tenantID, partID uuid.UUID) ([]models.RoutingEntry, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	if _, err := s.parts.Get(ctx, partID); err != nil {
		return nil, err
	}

	ops, err := s.operations.ListRoutingByPart(ctx, partID)
	if err != nil {
		return nil, fmt.Errorf("failed to load routing for part %s: %w", partID, err)
	}
	return aggregate(ops), nil
}

func (s *routingService) GetJobRouting(ctx context.Context, tenantID, jobID uuid.UUID) ([]models.RoutingEntry, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	if _, err := s.jobs.Get(ctx, jobID); err != nil {
		return nil, err
	}

	ops, err := s.operations.ListRoutingByJobs(ctx, []uuid.UUID{jobID})
	if err != nil {
		return nil, fmt.Errorf("failed to load routing for job %s: %w", jobID, err)
	}
	return aggregate(ops), nil
}

func (s *routingService) GetJobsRouting(ctx context.Context, tenantID uuid.UUID, jobIDs []uuid.UUID) (map[uuid.UUID][]models.RoutingEntry, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	if len(jobIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one job id is required", apperrors.ErrValidation)
	}

	known, err := s.jobs.Exist(ctx, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to check jobs: %w", err)
	}

	ops, err := s.operations.ListRoutingByJobs(ctx, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load routing for jobs: %w", err)
	}

	// Partition by originating job, then aggregate each partition exactly
	// as the single-job path does.
	byJob := make(map[uuid.UUID][]models.RoutingOperation)
	for _, op := range ops {
		byJob[op.JobID] = append(byJob[op.JobID], op)
	}

	result := make(map[uuid.UUID][]models.RoutingEntry, len(jobIDs))
	for _, jobID := range jobIDs {
		if !known[jobID] {
			continue
		}
		result[jobID] = aggregate(byJob[jobID])
	}
	return result, nil
}
