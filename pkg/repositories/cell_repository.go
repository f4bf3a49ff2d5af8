// Package repositories contains PostgreSQL data access for the engine.
// All methods run on a tenant-scoped connection taken from the context
// (see pkg/database.TenantScope); RLS filters rows to the current tenant.
package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/apperrors"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/database"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/models"
)

// CellRepository defines data access for production cells.
type CellRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Cell, error)
	ListActive(ctx context.Context) ([]models.Cell, error)
	// NextInSequence returns the next active cell after the given cell in
	// the tenant's routing order, or nil when the cell is last.
	NextInSequence(ctx context.Context, current *models.Cell) (*models.Cell, error)
	// CountInProgress returns the number of operations currently
	// in_progress at the cell.
	CountInProgress(ctx context.Context, cellID uuid.UUID) (int, error)
}

type cellRepository struct{}

// NewCellRepository creates a new cell repository.
func NewCellRepository() CellRepository {
	return &cellRepository{}
}

const cellColumns = "id, tenant_id, name, color, sequence, wip_limit, active, created_at, updated_at"

func scanCell(row pgx.Row) (*models.Cell, error) {
	var c models.Cell
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Color, &c.Sequence,
		&c.WIPLimit, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *cellRepository) Get(ctx context.Context, id uuid.UUID) (*models.Cell, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	cell, err := scanCell(scope.Conn.QueryRow(ctx,
		"SELECT "+cellColumns+" FROM cells WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get cell: %w", err)
	}
	return cell, nil
}

func (r *cellRepository) ListActive(ctx context.Context) ([]models.Cell, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	rows, err := scope.Conn.Query(ctx,
		"SELECT "+cellColumns+" FROM cells WHERE active ORDER BY sequence, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list cells: %w", err)
	}
	defer rows.Close()

	var cells []models.Cell
	for rows.Next() {
		var c models.Cell
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Color, &c.Sequence,
			&c.WIPLimit, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// NextInSequence orders by (sequence, id) so cells sharing a sequence value
// resolve deterministically.
func (r *cellRepository) NextInSequence(ctx context.Context, current *models.Cell) (*models.Cell, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + cellColumns + `
		FROM cells
		WHERE active AND (sequence, id) > ($1, $2)
		ORDER BY sequence, id
		LIMIT 1`

	cell, err := scanCell(scope.Conn.QueryRow(ctx, query, current.Sequence, current.ID))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Last cell in the routing sequence.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get next cell: %w", err)
	}
	return cell, nil
}

func (r *cellRepository) CountInProgress(ctx context.Context, cellID uuid.UUID) (int, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no tenant scope in context")
	}

	var count int
	err := scope.Conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM operations WHERE cell_id = $1 AND status = 'in_progress'",
		cellID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count WIP: %w", err)
	}
	return count, nil
}
