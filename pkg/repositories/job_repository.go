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

// JobRepository defines data access for jobs.
type JobRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
	// Exist filters the given ids down to jobs visible to the tenant.
	Exist(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}

type jobRepository struct{}

// NewJobRepository creates a new job repository.
func NewJobRepository() JobRepository {
	return &jobRepository{}
}

const jobColumns = "id, tenant_id, job_number, customer, status, due_date, started_at, created_at, updated_at"

func (r *jobRepository) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	var j models.Job
	err := scope.Conn.QueryRow(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE id = $1", id).Scan(
		&j.ID, &j.TenantID, &j.JobNumber, &j.Customer, &j.Status,
		&j.DueDate, &j.StartedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &j, nil
}

func (r *jobRepository) Exist(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	rows, err := scope.Conn.Query(ctx, "SELECT id FROM jobs WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check jobs: %w", err)
	}
	defer rows.Close()

	found := make(map[uuid.UUID]bool, len(ids))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan job id: %w", err)
		}
		found[id] = true
	}
	return found, rows.Err()
}
