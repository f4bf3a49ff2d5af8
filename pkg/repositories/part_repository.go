package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/apperrors"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/database"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/models"
)

// PartRepository defines data access for parts.
type PartRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Part, error)
	// ListChildren returns the direct child parts of a sub-assembly.
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]models.Part, error)
	// MergeMetadata merges the given fields into the part's metadata,
	// preserving keys it does not name. Used by the PMI write-back flow.
	MergeMetadata(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
}

type partRepository struct{}

// NewPartRepository creates a new part repository.
func NewPartRepository() PartRepository {
	return &partRepository{}
}

const partColumns = `id, tenant_id, job_id, parent_part_id, part_number,
	material, thickness, quantity, status, metadata, created_at, updated_at`

func scanPart(row pgx.Row) (*models.Part, error) {
	var p models.Part
	var metadata []byte
	err := row.Scan(&p.ID, &p.TenantID, &p.JobID, &p.ParentPartID, &p.PartNumber,
		&p.Material, &p.Thickness, &p.Quantity, &p.Status, &metadata,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal part metadata: %w", err)
		}
	}
	return &p, nil
}

func (r *partRepository) Get(ctx context.Context, id uuid.UUID) (*models.Part, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	part, err := scanPart(scope.Conn.QueryRow(ctx,
		"SELECT "+partColumns+" FROM parts WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get part: %w", err)
	}
	return part, nil
}

func (r *partRepository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]models.Part, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	rows, err := scope.Conn.Query(ctx,
		"SELECT "+partColumns+" FROM parts WHERE parent_part_id = $1 ORDER BY part_number", parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list child parts: %w", err)
	}
	defer rows.Close()

	var parts []models.Part
	for rows.Next() {
		var p models.Part
		var metadata []byte
		if err := rows.Scan(&p.ID, &p.TenantID, &p.JobID, &p.ParentPartID,
			&p.PartNumber, &p.Material, &p.Thickness, &p.Quantity, &p.Status,
			&metadata, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan part: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal part metadata: %w", err)
			}
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

func (r *partRepository) MergeMetadata(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata patch: %w", err)
	}

	tag, err := scope.Conn.Exec(ctx, `
		UPDATE parts
		SET metadata = metadata || $2::jsonb, updated_at = now()
		WHERE id = $1`, id, patch)
	if err != nil {
		return fmt.Errorf("failed to merge part metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
