package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/apperrors"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/database"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/models"
)

// BatchRepository defines data access for production batches.
type BatchRepository interface {
	// Create inserts the batch and associates the given operations in one
	// transaction. Returns ErrConflict when an operation is already in a
	// batch.
	Create(ctx context.Context, batch *models.Batch, operationIDs []uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.Batch, error)
	// MemberCounts returns total and completed member operation counts.
	MemberCounts(ctx context.Context, id uuid.UUID) (total, completed int, err error)
	// Ready transitions draft -> ready.
	Ready(ctx context.Context, id uuid.UUID) error
	// Start transitions draft|ready -> in_progress, stamps started_at/by
	// and moves not_started member operations to in_progress.
	Start(ctx context.Context, id uuid.UUID, startedBy string) error
	// Complete transitions in_progress -> completed. Member operations are
	// left as they are; per-operation completion is tracked independently.
	Complete(ctx context.Context, id uuid.UUID) error
	// Cancel transitions draft|ready -> cancelled and releases member
	// operations for regrouping.
	Cancel(ctx context.Context, id uuid.UUID) error
	// NextBatchNumber allocates a tenant-visible batch number.
	NextBatchNumber(ctx context.Context) (string, error)
}

type batchRepository struct{}

// NewBatchRepository creates a new batch repository.
func NewBatchRepository() BatchRepository {
	return &batchRepository{}
}

const batchColumns = `id, tenant_id, batch_number, batch_type, status, cell_id,
	material, thickness, operations_count, efficiency_percent,
	started_at, started_by, completed_at, created_at, updated_at`

func scanBatch(row pgx.Row) (*models.Batch, error) {
	var b models.Batch
	err := row.Scan(&b.ID, &b.TenantID, &b.BatchNumber, &b.BatchType, &b.Status,
		&b.CellID, &b.Material, &b.Thickness, &b.OperationsCount,
		&b.EfficiencyPercent, &b.StartedAt, &b.StartedBy, &b.CompletedAt,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *batchRepository) Create(ctx context.Context, batch *models.Batch, operationIDs []uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	insert := `
		INSERT INTO batches (tenant_id, batch_number, batch_type, status, cell_id,
		                     material, thickness, operations_count, efficiency_percent, started_by)
		VALUES ($1, $2, $3, 'draft', $4, $5, $6, $7, $8, '')
		RETURNING ` + batchColumns

	created, err := scanBatch(tx.QueryRow(ctx, insert,
		batch.TenantID, batch.BatchNumber, batch.BatchType, batch.CellID,
		batch.Material, batch.Thickness, len(operationIDs), batch.EfficiencyPercent))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	*batch = *created

	for _, opID := range operationIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO batch_operations (batch_id, operation_id, tenant_id)
			VALUES ($1, $2, $3)`, batch.ID, opID, batch.TenantID)
		if err != nil {
			// Unique index on operation_id: already a member of a batch.
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return apperrors.ErrConflict
			}
			return fmt.Errorf("failed to associate operation %s: %w", opID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *batchRepository) Get(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	batch, err := scanBatch(scope.Conn.QueryRow(ctx,
		"SELECT "+batchColumns+" FROM batches WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return batch, nil
}

func (r *batchRepository) MemberCounts(ctx context.Context, id uuid.UUID) (int, int, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return 0, 0, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE o.status = 'completed')
		FROM batch_operations bo
		JOIN operations o ON o.id = bo.operation_id
		WHERE bo.batch_id = $1`

	var total, completed int
	if err := scope.Conn.QueryRow(ctx, query, id).Scan(&total, &completed); err != nil {
		return 0, 0, fmt.Errorf("failed to count batch members: %w", err)
	}
	return total, completed, nil
}

// transition performs a conditional status update. Exactly one racing caller
// wins; losers see zero rows affected and get ErrInvalidState (or
// ErrNotFound when the batch does not exist at all).
func (r *batchRepository) transition(ctx context.Context, id uuid.UUID, query string, args ...interface{}) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to transition batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := scope.Conn.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM batches WHERE id = $1)", id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check batch existence: %w", err)
		}
		if !exists {
			return apperrors.ErrNotFound
		}
		return apperrors.ErrInvalidState
	}
	return nil
}

func (r *batchRepository) Ready(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, id, `
		UPDATE batches
		SET status = 'ready', updated_at = now()
		WHERE id = $1 AND status = 'draft'`, id)
}

func (r *batchRepository) Start(ctx context.Context, id uuid.UUID, startedBy string) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	tag, err := tx.Exec(ctx, `
		UPDATE batches
		SET status = 'in_progress', started_at = now(), started_by = $2, updated_at = now()
		WHERE id = $1 AND status IN ('draft', 'ready')`, id, startedBy)
	if err != nil {
		return fmt.Errorf("failed to start batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM batches WHERE id = $1)", id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check batch existence: %w", err)
		}
		if !exists {
			return apperrors.ErrNotFound
		}
		return apperrors.ErrInvalidState
	}

	// Members the operators have not yet touched move with the batch.
	_, err = tx.Exec(ctx, `
		UPDATE operations
		SET status = 'in_progress', updated_at = now()
		WHERE status = 'not_started'
		  AND id IN (SELECT operation_id FROM batch_operations WHERE batch_id = $1)`, id)
	if err != nil {
		return fmt.Errorf("failed to start batch operations: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *batchRepository) Complete(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, id, `
		UPDATE batches
		SET status = 'completed', completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'in_progress'`, id)
}

func (r *batchRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	tag, err := tx.Exec(ctx, `
		UPDATE batches
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status IN ('draft', 'ready')`, id)
	if err != nil {
		return fmt.Errorf("failed to cancel batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM batches WHERE id = $1)", id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check batch existence: %w", err)
		}
		if !exists {
			return apperrors.ErrNotFound
		}
		return apperrors.ErrInvalidState
	}

	// Release members so they become groupable again.
	if _, err := tx.Exec(ctx,
		"DELETE FROM batch_operations WHERE batch_id = $1", id); err != nil {
		return fmt.Errorf("failed to release batch operations: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *batchRepository) NextBatchNumber(ctx context.Context) (string, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return "", fmt.Errorf("no tenant scope in context")
	}

	var n int64
	if err := scope.Conn.QueryRow(ctx, "SELECT nextval('batch_number_seq')").Scan(&n); err != nil {
		return "", fmt.Errorf("failed to allocate batch number: %w", err)
	}
	return fmt.Sprintf("BT-%06d", n), nil
}
