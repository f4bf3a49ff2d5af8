package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/apperrors"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/models"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/repositories"
)

// memStore is shared in-memory state behind the repository mocks, so the
// service tests can exercise flows that cross repositories (timing moves an
// operation, batching claims it) without a database.
type memStore struct {
	mu           sync.Mutex
	cells        map[uuid.UUID]*models.Cell
	jobs         map[uuid.UUID]*models.Job
	parts        map[uuid.UUID]*models.Part
	operations   map[uuid.UUID]*models.Operation
	entries      map[uuid.UUID]*models.TimeEntry
	batches      map[uuid.UUID]*models.Batch
	batchMembers map[uuid.UUID][]uuid.UUID
	opBatch      map[uuid.UUID]uuid.UUID
	waitStats    map[uuid.UUID]repositories.CellWaitStats
	batchSeq     int64
}

func newMemStore() *memStore {
	return &memStore{
		cells:        make(map[uuid.UUID]*models.Cell),
		jobs:         make(map[uuid.UUID]*models.Job),
		parts:        make(map[uuid.UUID]*models.Part),
		operations:   make(map[uuid.UUID]*models.Operation),
		entries:      make(map[uuid.UUID]*models.TimeEntry),
		batches:      make(map[uuid.UUID]*models.Batch),
		batchMembers: make(map[uuid.UUID][]uuid.UUID),
		opBatch:      make(map[uuid.UUID]uuid.UUID),
		waitStats:    make(map[uuid.UUID]repositories.CellWaitStats),
	}
}

func (s *memStore) addCell(tenantID uuid.UUID, name string, sequence, wipLimit int) *models.Cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &models.Cell{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     name,
		Color:    "#808080",
		Sequence: sequence,
		WIPLimit: wipLimit,
		Active:   true,
	}
	s.cells[c.ID] = c
	return c
}

func (s *memStore) addJob(tenantID uuid.UUID, number string) *models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := &models.Job{
		ID:        uuid.New(),
		TenantID:  tenantID,
		JobNumber: number,
		Status:    models.JobStatusInProgress,
	}
	s.jobs[j.ID] = j
	return j
}

func (s *memStore) addPart(job *models.Job, number, material, thickness string) *models.Part {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &models.Part{
		ID:         uuid.New(),
		TenantID:   job.TenantID,
		JobID:      job.ID,
		PartNumber: number,
		Material:   material,
		Thickness:  thickness,
		Quantity:   1,
		Status:     models.PartStatusPending,
	}
	s.parts[p.ID] = p
	return p
}

func (s *memStore) addChildPart(parent *models.Part, number string, status models.PartStatus) *models.Part {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &models.Part{
		ID:           uuid.New(),
		TenantID:     parent.TenantID,
		JobID:        parent.JobID,
		ParentPartID: &parent.ID,
		PartNumber:   number,
		Status:       status,
		Quantity:     1,
	}
	s.parts[p.ID] = p
	return p
}

func (s *memStore) addOperation(part *models.Part, cell *models.Cell, sequence int, status models.OperationStatus) *models.Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	op := &models.Operation{
		ID:        uuid.New(),
		TenantID:  part.TenantID,
		PartID:    part.ID,
		Status:    status,
		Sequence:  sequence,
		CreatedAt: time.Now(),
	}
	if cell != nil {
		op.CellID = &cell.ID
	}
	s.operations[op.ID] = op
	return op
}

// lessUUID matches PostgreSQL uuid ordering (byte-wise).
func lessUUID(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

type mockCellRepo struct{ store *memStore }

var _ repositories.CellRepository = (*mockCellRepo)(nil)

func (r *mockCellRepo) Get(_ context.Context, id uuid.UUID) (*models.Cell, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.cells[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *mockCellRepo) ListActive(_ context.Context) ([]models.Cell, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var cells []models.Cell
	for _, c := range r.store.cells {
		if c.Active {
			cells = append(cells, *c)
		}
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Sequence != cells[j].Sequence {
			return cells[i].Sequence < cells[j].Sequence
		}
		return lessUUID(cells[i].ID, cells[j].ID)
	})
	return cells, nil
}

func (r *mockCellRepo) NextInSequence(_ context.Context, current *models.Cell) (*models.Cell, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var next *models.Cell
	for _, c := range r.store.cells {
		if !c.Active {
			continue
		}
		after := c.Sequence > current.Sequence ||
			(c.Sequence == current.Sequence && lessUUID(current.ID, c.ID))
		if !after {
			continue
		}
		if next == nil || c.Sequence < next.Sequence ||
			(c.Sequence == next.Sequence && lessUUID(c.ID, next.ID)) {
			next = c
		}
	}
	if next == nil {
		return nil, nil
	}
	cp := *next
	return &cp, nil
}

func (r *mockCellRepo) CountInProgress(_ context.Context, cellID uuid.UUID) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	count := 0
	for _, op := range r.store.operations {
		if op.CellID != nil && *op.CellID == cellID && op.Status == models.OperationStatusInProgress {
			count++
		}
	}
	return count, nil
}

type mockJobRepo struct{ store *memStore }

var _ repositories.JobRepository = (*mockJobRepo)(nil)

func (r *mockJobRepo) Get(_ context.Context, id uuid.UUID) (*models.Job, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	j, ok := r.store.jobs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *mockJobRepo) Exist(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	found := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.store.jobs[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

type mockPartRepo struct{ store *memStore }

var _ repositories.PartRepository = (*mockPartRepo)(nil)

func (r *mockPartRepo) Get(_ context.Context, id uuid.UUID) (*models.Part, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.parts[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *mockPartRepo) ListChildren(_ context.Context, parentID uuid.UUID) ([]models.Part, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var children []models.Part
	for _, p := range r.store.parts {
		if p.ParentPartID != nil && *p.ParentPartID == parentID {
			children = append(children, *p)
		}
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i].PartNumber < children[j].PartNumber
	})
	return children, nil
}

func (r *mockPartRepo) MergeMetadata(_ context.Context, id uuid.UUID, fields map[string]interface{}) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.parts[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if p.Metadata == nil {
		p.Metadata = make(map[string]interface{})
	}
	for k, v := range fields {
		p.Metadata[k] = v
	}
	return nil
}

type mockOperationRepo struct{ store *memStore }

var _ repositories.OperationRepository = (*mockOperationRepo)(nil)

func (r *mockOperationRepo) Get(_ context.Context, id uuid.UUID) (*models.Operation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	op, ok := r.store.operations[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *op
	return &cp, nil
}

func (r *mockOperationRepo) routingRow(op *models.Operation) models.RoutingOperation {
	ro := models.RoutingOperation{
		JobID:  r.store.parts[op.PartID].JobID,
		PartID: op.PartID,
		CellID: op.CellID,
		Status: op.Status,
	}
	if op.CellID != nil {
		if c, ok := r.store.cells[*op.CellID]; ok {
			ro.CellName = c.Name
			ro.CellColor = c.Color
			ro.CellSequence = c.Sequence
		}
	}
	return ro
}

func (r *mockOperationRepo) ListRoutingByPart(_ context.Context, partID uuid.UUID) ([]models.RoutingOperation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.RoutingOperation
	for _, op := range r.store.operations {
		if op.PartID == partID {
			out = append(out, r.routingRow(op))
		}
	}
	return out, nil
}

func (r *mockOperationRepo) ListRoutingByJobs(_ context.Context, jobIDs []uuid.UUID) ([]models.RoutingOperation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(jobIDs))
	for _, id := range jobIDs {
		wanted[id] = true
	}
	var out []models.RoutingOperation
	for _, op := range r.store.operations {
		part, ok := r.store.parts[op.PartID]
		if !ok || !wanted[part.JobID] {
			continue
		}
		out = append(out, r.routingRow(op))
	}
	return out, nil
}

func (r *mockOperationRepo) ListGroupable(_ context.Context, cellID uuid.UUID) ([]repositories.GroupableOperation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []repositories.GroupableOperation
	for _, op := range r.store.operations {
		if op.CellID == nil || *op.CellID != cellID || op.Status != models.OperationStatusNotStarted {
			continue
		}
		if _, batched := r.store.opBatch[op.ID]; batched {
			continue
		}
		part := r.store.parts[op.PartID]
		out = append(out, repositories.GroupableOperation{
			Operation: *op,
			Material:  part.Material,
			Thickness: part.Thickness,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Material != out[j].Material {
			return out[i].Material < out[j].Material
		}
		if out[i].Thickness != out[j].Thickness {
			return out[i].Thickness < out[j].Thickness
		}
		return out[i].Operation.CreatedAt.Before(out[j].Operation.CreatedAt)
	})
	return out, nil
}

func (r *mockOperationRepo) CompleteIfIdle(_ context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	op, ok := r.store.operations[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if op.Status == models.OperationStatusCompleted {
		return apperrors.ErrPreconditionFailed
	}
	for _, e := range r.store.entries {
		if e.OperationID == id && e.EndedAt == nil {
			return apperrors.ErrPreconditionFailed
		}
	}
	op.Status = models.OperationStatusCompleted
	return nil
}

func (r *mockOperationRepo) WaitStats(_ context.Context, cellID uuid.UUID, _ time.Time) (*repositories.CellWaitStats, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stats := r.store.waitStats[cellID]
	return &stats, nil
}

type mockTimeEntryRepo struct{ store *memStore }

var _ repositories.TimeEntryRepository = (*mockTimeEntryRepo)(nil)

func (r *mockTimeEntryRepo) Start(_ context.Context, tenantID, operationID uuid.UUID, operatorID string) (*models.TimeEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	op, ok := r.store.operations[operationID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if op.Status == models.OperationStatusCompleted {
		return nil, apperrors.ErrPreconditionFailed
	}
	for _, e := range r.store.entries {
		if e.OperatorID == operatorID && e.EndedAt == nil {
			return nil, apperrors.ErrConflict
		}
	}
	entry := &models.TimeEntry{
		ID:          uuid.New(),
		TenantID:    tenantID,
		OperationID: operationID,
		OperatorID:  operatorID,
		StartedAt:   time.Now(),
		CreatedAt:   time.Now(),
	}
	r.store.entries[entry.ID] = entry
	if op.Status == models.OperationStatusNotStarted || op.Status == models.OperationStatusOnHold {
		op.Status = models.OperationStatusInProgress
		op.AssignedOperator = operatorID
	}
	cp := *entry
	return &cp, nil
}

func (r *mockTimeEntryRepo) Stop(_ context.Context, operationID uuid.UUID, operatorID string) (*models.TimeEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, e := range r.store.entries {
		if e.OperationID != operationID || e.OperatorID != operatorID || e.EndedAt != nil {
			continue
		}
		now := time.Now()
		e.EndedAt = &now
		mins := int(now.Sub(e.StartedAt).Round(time.Minute) / time.Minute)
		if mins < 1 {
			mins = 1
		}
		e.DurationMinutes = mins
		if op, ok := r.store.operations[operationID]; ok {
			op.ActualMinutes += mins
		}
		cp := *e
		return &cp, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *mockTimeEntryRepo) GetActiveByOperator(_ context.Context, operatorID string) (*models.TimeEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, e := range r.store.entries {
		if e.OperatorID == operatorID && e.EndedAt == nil {
			cp := *e
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

type mockBatchRepo struct{ store *memStore }

var _ repositories.BatchRepository = (*mockBatchRepo)(nil)

func (r *mockBatchRepo) Create(_ context.Context, batch *models.Batch, operationIDs []uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, opID := range operationIDs {
		if _, taken := r.store.opBatch[opID]; taken {
			return apperrors.ErrConflict
		}
	}
	batch.ID = uuid.New()
	batch.Status = models.BatchStatusDraft
	batch.OperationsCount = len(operationIDs)
	batch.CreatedAt = time.Now()
	batch.UpdatedAt = batch.CreatedAt
	cp := *batch
	r.store.batches[batch.ID] = &cp
	r.store.batchMembers[batch.ID] = append([]uuid.UUID(nil), operationIDs...)
	for _, opID := range operationIDs {
		r.store.opBatch[opID] = batch.ID
	}
	return nil
}

func (r *mockBatchRepo) Get(_ context.Context, id uuid.UUID) (*models.Batch, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	b, ok := r.store.batches[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *mockBatchRepo) MemberCounts(_ context.Context, id uuid.UUID) (int, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	members := r.store.batchMembers[id]
	completed := 0
	for _, opID := range members {
		if op, ok := r.store.operations[opID]; ok && op.Status == models.OperationStatusCompleted {
			completed++
		}
	}
	return len(members), completed, nil
}

func (r *mockBatchRepo) transition(id uuid.UUID, from []models.BatchStatus, to models.BatchStatus) (*models.Batch, error) {
	b, ok := r.store.batches[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	for _, s := range from {
		if b.Status == s {
			b.Status = to
			b.UpdatedAt = time.Now()
			return b, nil
		}
	}
	return nil, apperrors.ErrInvalidState
}

func (r *mockBatchRepo) Ready(_ context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	_, err := r.transition(id, []models.BatchStatus{models.BatchStatusDraft}, models.BatchStatusReady)
	return err
}

func (r *mockBatchRepo) Start(_ context.Context, id uuid.UUID, startedBy string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	b, err := r.transition(id,
		[]models.BatchStatus{models.BatchStatusDraft, models.BatchStatusReady},
		models.BatchStatusInProgress)
	if err != nil {
		return err
	}
	now := time.Now()
	b.StartedAt = &now
	b.StartedBy = startedBy
	for _, opID := range r.store.batchMembers[id] {
		if op, ok := r.store.operations[opID]; ok && op.Status == models.OperationStatusNotStarted {
			op.Status = models.OperationStatusInProgress
		}
	}
	return nil
}

func (r *mockBatchRepo) Complete(_ context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	b, err := r.transition(id,
		[]models.BatchStatus{models.BatchStatusInProgress}, models.BatchStatusCompleted)
	if err != nil {
		return err
	}
	now := time.Now()
	b.CompletedAt = &now
	return nil
}

func (r *mockBatchRepo) Cancel(_ context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	_, err := r.transition(id,
		[]models.BatchStatus{models.BatchStatusDraft, models.BatchStatusReady},
		models.BatchStatusCancelled)
	if err != nil {
		return err
	}
	for _, opID := range r.store.batchMembers[id] {
		delete(r.store.opBatch, opID)
	}
	delete(r.store.batchMembers, id)
	return nil
}

func (r *mockBatchRepo) NextBatchNumber(_ context.Context) (string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.batchSeq++
	return fmt.Sprintf("BT-%06d", r.store.batchSeq), nil
}
