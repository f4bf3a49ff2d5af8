package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/models"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/repositories"
)

// AssemblyService checks sub-assembly readiness. The check is advisory:
// welding a frame before every bracket is done is sometimes the right call,
// so the terminal shows the warning and lets the operator proceed.
type AssemblyService interface {
	// CheckAssemblyReadiness returns a warning listing incomplete children
	// of the part, or nil when all children are completed (or the part has
	// none).
	CheckAssemblyReadiness(ctx context.Context, tenantID, partID uuid.UUID) (*models.AssemblyWarning, error)
}

type assemblyService struct {
	parts  repositories.PartRepository
	logger *zap.Logger
}

// NewAssemblyService creates an assembly service.
func NewAssemblyService(parts repositories.PartRepository, logger *zap.Logger) AssemblyService {
	return &assemblyService{
		parts:  parts,
		logger: logger.Named("assembly-service"),
	}
}

var _ AssemblyService = (*assemblyService)(nil)

func (s *assemblyService) CheckAssemblyReadiness(ctx context.Context, tenantID, partID uuid.UUID) (*models.AssemblyWarning, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	if _, err := s.parts.Get(ctx, partID); err != nil {
		return nil, err
	}

	children, err := s.parts.ListChildren(ctx, partID)
	if err != nil {
		return nil, fmt.Errorf("failed to list child parts: %w", err)
	}

	var incomplete []models.ChildPart
	for _, child := range children {
		if child.Status != models.PartStatusCompleted {
			incomplete = append(incomplete, models.ChildPart{
				ID:         child.ID,
				PartNumber: child.PartNumber,
				Status:     child.Status,
			})
		}
	}
	if len(incomplete) == 0 {
		return nil, nil
	}

	s.logger.Debug("Assembly has incomplete children",
		zap.String("part_id", partID.String()),
		zap.Int("incomplete", len(incomplete)))

	return &models.AssemblyWarning{
		PartID:             partID,
		IncompleteChildren: incomplete,
	}, nil
}
