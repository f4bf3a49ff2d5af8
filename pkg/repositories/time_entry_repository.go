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

// TimeEntryRepository defines data access for operator time entries.
// Start and Stop run as single transactions so a cancelled or retried caller
// never observes a half-applied mutation.
type TimeEntryRepository interface {
	// Start opens a time entry and moves the operation to in_progress.
	// Returns ErrConflict when the operator already has an open entry,
	// ErrNotFound when the operation does not exist, and
	// ErrPreconditionFailed when the operation is already completed.
	Start(ctx context.Context, tenantID, operationID uuid.UUID, operatorID string) (*models.TimeEntry, error)
	// Stop closes the operator's open entry on the operation, computes the
	// duration, and accumulates it into the operation's actual_minutes.
	// Returns ErrNotFound when no open entry matches.
	Stop(ctx context.Context, operationID uuid.UUID, operatorID string) (*models.TimeEntry, error)
	// GetActiveByOperator returns the operator's open entry, or
	// ErrNotFound when none is open.
	GetActiveByOperator(ctx context.Context, operatorID string) (*models.TimeEntry, error)
}

type timeEntryRepository struct{}

// NewTimeEntryRepository creates a new time entry repository.
func NewTimeEntryRepository() TimeEntryRepository {
	return &timeEntryRepository{}
}

const timeEntryColumns = "id, tenant_id, operation_id, operator_id, started_at, ended_at, duration_minutes, created_at"

func scanTimeEntry(row pgx.Row) (*models.TimeEntry, error) {
	var e models.TimeEntry
	err := row.Scan(&e.ID, &e.TenantID, &e.OperationID, &e.OperatorID,
		&e.StartedAt, &e.EndedAt, &e.DurationMinutes, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *timeEntryRepository) Start(ctx context.Context, tenantID, operationID uuid.UUID, operatorID string) (*models.TimeEntry, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	// Verify the operation exists within the tenant before opening an entry.
	var opStatus models.OperationStatus
	err = tx.QueryRow(ctx, "SELECT status FROM operations WHERE id = $1", operationID).Scan(&opStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to check operation: %w", err)
	}
	// Completed is terminal: no further timing may accumulate on it.
	if opStatus == models.OperationStatusCompleted {
		return nil, fmt.Errorf("%w: operation is completed", apperrors.ErrPreconditionFailed)
	}

	insert := `
		INSERT INTO time_entries (tenant_id, operation_id, operator_id, started_at)
		VALUES ($1, $2, $3, now())
		RETURNING ` + timeEntryColumns

	entry, err := scanTimeEntry(tx.QueryRow(ctx, insert, tenantID, operationID, operatorID))
	if err != nil {
		// The partial unique index on (tenant_id, operator_id) WHERE
		// ended_at IS NULL serializes racing starts; the loser lands here.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("failed to insert time entry: %w", err)
	}

	if opStatus == models.OperationStatusNotStarted || opStatus == models.OperationStatusOnHold {
		_, err = tx.Exec(ctx, `
			UPDATE operations
			SET status = 'in_progress', assigned_operator = $2, updated_at = now()
			WHERE id = $1`, operationID, operatorID)
		if err != nil {
			return nil, fmt.Errorf("failed to start operation: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entry, nil
}

func (r *timeEntryRepository) Stop(ctx context.Context, operationID uuid.UUID, operatorID string) (*models.TimeEntry, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	closeQuery := `
		UPDATE time_entries
		SET ended_at = now(),
		    duration_minutes = GREATEST(1, ROUND(EXTRACT(EPOCH FROM (now() - started_at)) / 60)::int)
		WHERE operation_id = $1 AND operator_id = $2 AND ended_at IS NULL
		RETURNING ` + timeEntryColumns

	entry, err := scanTimeEntry(tx.QueryRow(ctx, closeQuery, operationID, operatorID))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to close time entry: %w", err)
	}

	// Accumulate the closed duration into the operation in the same
	// transaction; a partially applied stop is a correctness bug.
	_, err = tx.Exec(ctx, `
		UPDATE operations
		SET actual_minutes = actual_minutes + $2, updated_at = now()
		WHERE id = $1`, operationID, entry.DurationMinutes)
	if err != nil {
		return nil, fmt.Errorf("failed to accumulate actual time: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entry, nil
}

func (r *timeEntryRepository) GetActiveByOperator(ctx context.Context, operatorID string) (*models.TimeEntry, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	entry, err := scanTimeEntry(scope.Conn.QueryRow(ctx,
		"SELECT "+timeEntryColumns+" FROM time_entries WHERE operator_id = $1 AND ended_at IS NULL",
		operatorID))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get active entry: %w", err)
	}
	return entry, nil
}
