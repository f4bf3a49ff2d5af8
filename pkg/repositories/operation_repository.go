package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/apperrors"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/database"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/models"
)

// CellWaitStats holds historical queueing and throughput figures for a cell.
type CellWaitStats struct {
	// AvgWaitMinutes is the mean time operations waited between creation
	// and their first time entry.
	AvgWaitMinutes float64
	// CompletedCount is the number of operations completed in the window.
	CompletedCount int
}

// OperationRepository defines data access for operations.
type OperationRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Operation, error)
	// ListRoutingByPart returns the part's operations joined to their cells.
	ListRoutingByPart(ctx context.Context, partID uuid.UUID) ([]models.RoutingOperation, error)
	// ListRoutingByJobs returns all operations under the given jobs in one
	// query pass, joined to cells, tagged with the originating job.
	ListRoutingByJobs(ctx context.Context, jobIDs []uuid.UUID) ([]models.RoutingOperation, error)
	// ListGroupable returns not_started operations at the cell that are
	// not yet members of any batch, with part material/thickness attached.
	ListGroupable(ctx context.Context, cellID uuid.UUID) ([]GroupableOperation, error)
	// CompleteIfIdle marks the operation completed only when it is not
	// already completed and has no open time entry. Returns ErrNotFound
	// when the operation does not exist and ErrPreconditionFailed when a
	// precondition blocks the transition.
	CompleteIfIdle(ctx context.Context, id uuid.UUID) error
	// WaitStats computes queueing and throughput history at a cell since
	// the given instant.
	WaitStats(ctx context.Context, cellID uuid.UUID, since time.Time) (*CellWaitStats, error)
}

type operationRepository struct{}

// NewOperationRepository creates a new operation repository.
func NewOperationRepository() OperationRepository {
	return &operationRepository{}
}

const operationColumns = `id, tenant_id, part_id, cell_id, description, status,
	sequence, estimated_minutes, actual_minutes, assigned_operator, created_at, updated_at`

func scanOperation(row pgx.Row) (*models.Operation, error) {
	var op models.Operation
	err := row.Scan(&op.ID, &op.TenantID, &op.PartID, &op.CellID, &op.Description,
		&op.Status, &op.Sequence, &op.EstimatedMinutes, &op.ActualMinutes,
		&op.AssignedOperator, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &op, nil
}

func (r *operationRepository) Get(ctx context.Context, id uuid.UUID) (*models.Operation, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	op, err := scanOperation(scope.Conn.QueryRow(ctx,
		"SELECT "+operationColumns+" FROM operations WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}
	return op, nil
}

const routingQuery = `
	SELECT p.job_id, o.part_id, o.cell_id, COALESCE(c.name, ''), COALESCE(c.color, ''),
	       COALESCE(c.sequence, 0), o.status
	FROM operations o
	JOIN parts p ON p.id = o.part_id
	LEFT JOIN cells c ON c.id = o.cell_id`

func scanRoutingOperations(rows pgx.Rows) ([]models.RoutingOperation, error) {
	defer rows.Close()

	var ops []models.RoutingOperation
	for rows.Next() {
		var ro models.RoutingOperation
		if err := rows.Scan(&ro.JobID, &ro.PartID, &ro.CellID, &ro.CellName,
			&ro.CellColor, &ro.CellSequence, &ro.Status); err != nil {
			return nil, fmt.Errorf("failed to scan routing operation: %w", err)
		}
		ops = append(ops, ro)
	}
	return ops, rows.Err()
}

func (r *operationRepository) ListRoutingByPart(ctx context.Context, partID uuid.UUID) ([]models.RoutingOperation, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	rows, err := scope.Conn.Query(ctx, routingQuery+" WHERE o.part_id = $1", partID)
	if err != nil {
		return nil, fmt.Errorf("failed to query part routing: %w", err)
	}
	return scanRoutingOperations(rows)
}

func (r *operationRepository) ListRoutingByJobs(ctx context.Context, jobIDs []uuid.UUID) ([]models.RoutingOperation, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	rows, err := scope.Conn.Query(ctx, routingQuery+" WHERE p.job_id = ANY($1)", jobIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query job routing: %w", err)
	}
	return scanRoutingOperations(rows)
}

// GroupableOperation pairs an eligible operation with the nesting
// compatibility key taken from its owning part.
type GroupableOperation struct {
	Operation models.Operation
	Material  string
	Thickness string
}

func (r *operationRepository) ListGroupable(ctx context.Context, cellID uuid.UUID) ([]GroupableOperation, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT o.id, o.tenant_id, o.part_id, o.cell_id, o.description, o.status,
		       o.sequence, o.estimated_minutes, o.actual_minutes, o.assigned_operator,
		       o.created_at, o.updated_at, p.material, p.thickness
		FROM operations o
		JOIN parts p ON p.id = o.part_id
		WHERE o.cell_id = $1
		  AND o.status = 'not_started'
		  AND NOT EXISTS (SELECT 1 FROM batch_operations bo WHERE bo.operation_id = o.id)
		ORDER BY p.material, p.thickness, o.created_at`

	rows, err := scope.Conn.Query(ctx, query, cellID)
	if err != nil {
		return nil, fmt.Errorf("failed to query groupable operations: %w", err)
	}
	defer rows.Close()

	var ops []GroupableOperation
	for rows.Next() {
		var g GroupableOperation
		op := &g.Operation
		if err := rows.Scan(&op.ID, &op.TenantID, &op.PartID, &op.CellID,
			&op.Description, &op.Status, &op.Sequence, &op.EstimatedMinutes,
			&op.ActualMinutes, &op.AssignedOperator, &op.CreatedAt, &op.UpdatedAt,
			&g.Material, &g.Thickness); err != nil {
			return nil, fmt.Errorf("failed to scan groupable operation: %w", err)
		}
		ops = append(ops, g)
	}
	return ops, rows.Err()
}

func (r *operationRepository) CompleteIfIdle(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	// Conditional update keeps the precondition check and the transition in
	// one statement, so racing callers cannot interleave between them.
	query := `
		UPDATE operations
		SET status = 'completed', updated_at = now()
		WHERE id = $1
		  AND status <> 'completed'
		  AND NOT EXISTS (
			SELECT 1 FROM time_entries te
			WHERE te.operation_id = $1 AND te.ended_at IS NULL
		  )`

	tag, err := scope.Conn.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to complete operation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish missing operation from a blocked precondition.
		var exists bool
		if err := scope.Conn.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM operations WHERE id = $1)", id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check operation existence: %w", err)
		}
		if !exists {
			return apperrors.ErrNotFound
		}
		return apperrors.ErrPreconditionFailed
	}
	return nil
}

func (r *operationRepository) WaitStats(ctx context.Context, cellID uuid.UUID, since time.Time) (*CellWaitStats, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	// Queueing time is the gap between operation creation and the first
	// time entry against it.
	waitQuery := `
		SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (first_start - o.created_at)) / 60), 0)
		FROM operations o
		JOIN LATERAL (
			SELECT MIN(te.started_at) AS first_start
			FROM time_entries te
			WHERE te.operation_id = o.id
		) t ON t.first_start IS NOT NULL
		WHERE o.cell_id = $1 AND o.created_at >= $2`

	stats := &CellWaitStats{}
	if err := scope.Conn.QueryRow(ctx, waitQuery, cellID, since).Scan(&stats.AvgWaitMinutes); err != nil {
		return nil, fmt.Errorf("failed to compute wait stats: %w", err)
	}

	completedQuery := `
		SELECT COUNT(*)
		FROM operations
		WHERE cell_id = $1 AND status = 'completed' AND updated_at >= $2`

	if err := scope.Conn.QueryRow(ctx, completedQuery, cellID, since).Scan(&stats.CompletedCount); err != nil {
		return nil, fmt.Errorf("failed to count completed operations: %w", err)
	}

	return stats, nil
}
