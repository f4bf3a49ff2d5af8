package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/apperrors"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/cad"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/models"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/notify"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/repositories"
)

// PartService exposes part reads and the PMI extraction handoff.
type PartService interface {
	GetPart(ctx context.Context, tenantID, partID uuid.UUID) (*models.Part, error)
	// GetPMIStatus returns the typed extraction status parsed from the
	// part's metadata, or ErrNotFound when the part carries none.
	GetPMIStatus(ctx context.Context, tenantID, partID uuid.UUID) (*cad.Status, error)
	// RequestPMIExtraction hands the part's file to the CAD service and
	// marks the part's metadata pending. Returns ErrPreconditionFailed when
	// the CAD service is not configured.
	RequestPMIExtraction(ctx context.Context, tenantID, partID uuid.UUID, fileURL, fileName string) error
}

type partService struct {
	parts    repositories.PartRepository
	cad      *cad.Client
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewPartService creates a part service. The CAD client may be nil when the
// service is not configured.
func NewPartService(parts repositories.PartRepository, cadClient *cad.Client, notifier notify.Notifier, logger *zap.Logger) PartService {
	return &partService{
		parts:    parts,
		cad:      cadClient,
		notifier: notifier,
		logger:   logger.Named("part-service"),
	}
}

var _ PartService = (*partService)(nil)

func (s *partService) GetPart(ctx context.Context, tenantID, partID uuid.UUID) (*models.Part, error) {
	if err := requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.parts.Get(ctx, partID)
}

func (s *partService) GetPMIStatus(ctx context.Context, tenantID, partID uuid.UUID) (*cad.Status, error) {
	part, err := s.GetPart(ctx, tenantID, partID)
	if err != nil {
		return nil, err
	}
	status, ok := cad.StatusFromMetadata(part.Metadata)
	if !ok {
		return nil, fmt.Errorf("%w: part has no PMI data", apperrors.ErrNotFound)
	}
	return &status, nil
}

func (s *partService) RequestPMIExtraction(ctx context.Context, tenantID, partID uuid.UUID, fileURL, fileName string) error {
	if err := requireTenant(ctx, tenantID); err != nil {
		return err
	}
	if !s.cad.Enabled() {
		return fmt.Errorf("%w: CAD service is not configured", apperrors.ErrPreconditionFailed)
	}
	if fileURL == "" {
		return fmt.Errorf("%w: file_url is required", apperrors.ErrValidation)
	}

	if _, err := s.parts.Get(ctx, partID); err != nil {
		return err
	}

	resp, err := s.cad.ProcessAsync(ctx, cad.ProcessRequest{
		PartID:   partID,
		FileURL:  fileURL,
		FileName: fileName,
	})
	if err != nil {
		return err
	}
	if !resp.Accepted {
		return fmt.Errorf("%w: CAD service declined: %s", apperrors.ErrPreconditionFailed, resp.Message)
	}

	// Seed the write-back contract; the extractor overwrites these fields
	// as it progresses.
	err = s.parts.MergeMetadata(ctx, partID, map[string]interface{}{
		"pmi_status":   string(cad.StatePending),
		"pmi_progress": 0,
		"pmi_stage":    "queued",
	})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		pubErr := s.notifier.Publish(ctx, notify.ChangeEvent{
			Table:    "parts",
			Action:   notify.ActionUpdate,
			TenantID: tenantID,
			RowID:    partID,
			At:       time.Now().UTC(),
		})
		if pubErr != nil {
			s.logger.Warn("Failed to publish part change", zap.Error(pubErr))
		}
	}

	s.logger.Info("PMI extraction requested",
		zap.String("part_id", partID.String()),
		zap.String("file_name", fileName))
	return nil
}
