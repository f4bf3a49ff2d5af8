package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/apperrors"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/models"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/notify"
)

type batchFixture struct {
	store    *memStore
	svc      BatchService
	notifier *notify.MemoryNotifier
	tenantID uuid.UUID
}

func newBatchFixture(t *testing.T) *batchFixture {
	t.Helper()
	store := newMemStore()
	notifier := notify.NewMemoryNotifier()
	t.Cleanup(func() { notifier.Close() })
	return &batchFixture{
		store:    store,
		notifier: notifier,
		tenantID: uuid.New(),
		svc: NewBatchService(&mockBatchRepo{store}, &mockOperationRepo{store},
			&mockCellRepo{store}, notifier, nil, zap.NewNop()),
	}
}

func (f *batchFixture) seedGroupable(t *testing.T, cell *models.Cell, material, thickness string, n int) []uuid.UUID {
	t.Helper()
	job := f.store.addJob(f.tenantID, "J-"+material)
	part := f.store.addPart(job, "P-"+material, material, thickness)
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		op := f.store.addOperation(part, cell, i+1, models.OperationStatusNotStarted)
		ids = append(ids, op.ID)
	}
	return ids
}

func TestGetGroupableOperations(t *testing.T) {
	f := newBatchFixture(t)
	cell := f.store.addCell(f.tenantID, "Laser", 1, 5)

	f.seedGroupable(t, cell, "steel", "3", 2)
	f.seedGroupable(t, cell, "steel", "5", 1)
	f.seedGroupable(t, cell, "alu", "3", 1)

	groups, err := f.svc.GetGroupableOperations(context.Background(), f.tenantID, cell.ID)
	require.NoError(t, err)
	require.Len(t, groups, 3)

	// Groups arrive ordered by (material, thickness).
	assert.Equal(t, "alu", groups[0].Material)
	assert.Equal(t, "steel", groups[1].Material)
	assert.Equal(t, "3", groups[1].Thickness)
	assert.Len(t, groups[1].Operations, 2)
	assert.Equal(t, "5", groups[2].Thickness)
}

func TestGetGroupableOperationsExcludesStartedAndBatched(t *testing.T) {
	f := newBatchFixture(t)
	cell := f.store.addCell(f.tenantID, "Laser", 1, 5)
	ctx := context.Background()

	ids := f.seedGroupable(t, cell, "steel", "3", 3)
	job := f.store.addJob(f.tenantID, "J-2")
	part := f.store.addPart(job, "P-2", "steel", "3")
	f.store.addOperation(part, cell, 1, models.OperationStatusInProgress)

	_, err := f.svc.CreateBatch(ctx, f.tenantID, CreateBatchInput{
		BatchType:    models.BatchTypeLaserNesting,
		CellID:       cell.ID,
		OperationIDs: ids[:2],
	})
	require.NoError(t, err)

	groups, err := f.svc.GetGroupableOperations(ctx, f.tenantID, cell.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Operations, 1)
	assert.Equal(t, ids[2], groups[0].Operations[0].ID)
}

func TestCreateBatch(t *testing.T) {
	f := newBatchFixture(t)
	cell := f.store.addCell(f.tenantID, "Laser", 1, 5)
	ids := f.seedGroupable(t, cell, "steel", "3", 3)

	var events []notify.ChangeEvent
	unsub := f.notifier.Subscribe("batches", notify.Filter{TenantID: f.tenantID},
		func(ev notify.ChangeEvent) { events = append(events, ev) })
	defer unsub()

	batch, err := f.svc.CreateBatch(context.Background(), f.tenantID, CreateBatchInput{
		BatchType:    models.BatchTypeLaserNesting,
		CellID:       cell.ID,
		OperationIDs: ids,
	})
	require.NoError(t, err)

	assert.Equal(t, models.BatchStatusDraft, batch.Status)
	assert.Equal(t, "BT-000001", batch.BatchNumber)
	assert.Equal(t, "steel", batch.Material)
	assert.Equal(t, "3", batch.Thickness)
	assert.Equal(t, 3, batch.OperationsCount)

	require.Len(t, events, 1)
	assert.Equal(t, notify.ActionInsert, events[0].Action)
	assert.Equal(t, batch.ID, events[0].RowID)
}

func TestCreateBatchValidation(t *testing.T) {
	f := newBatchFixture(t)
	cell := f.store.addCell(f.tenantID, "Laser", 1, 5)
	ids := f.seedGroupable(t, cell, "steel", "3", 2)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateBatchInput
	}{
		{"no operations", CreateBatchInput{
			BatchType: models.BatchTypeLaserNesting, CellID: cell.ID}},
		{"unknown batch type", CreateBatchInput{
			BatchType: "bucket", CellID: cell.ID, OperationIDs: ids}},
		{"duplicate operation", CreateBatchInput{
			BatchType: models.BatchTypeLaserNesting, CellID: cell.ID,
			OperationIDs: []uuid.UUID{ids[0], ids[0]}}},
		{"operation from nowhere", CreateBatchInput{
			BatchType: models.BatchTypeLaserNesting, CellID: cell.ID,
			OperationIDs: []uuid.UUID{uuid.New()}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateBatch(ctx, f.tenantID, tt.input)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestCreateBatchMixedMaterialRejectedForNesting(t *testing.T) {
	f := newBatchFixture(t)
	cell := f.store.addCell(f.tenantID, "Laser", 1, 5)
	steel := f.seedGroupable(t, cell, "steel", "3", 1)
	alu := f.seedGroupable(t, cell, "alu", "3", 1)

	_, err := f.svc.CreateBatch(context.Background(), f.tenantID, CreateBatchInput{
		BatchType:    models.BatchTypeLaserNesting,
		CellID:       cell.ID,
		OperationIDs: []uuid.UUID{steel[0], alu[0]},
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCreateBatchMixedMaterialAllowedForGeneral(t *testing.T) {
	f := newBatchFixture(t)
	cell := f.store.addCell(f.tenantID, "Deburr", 4, 0)
	steel := f.seedGroupable(t, cell, "steel", "3", 1)
	alu := f.seedGroupable(t, cell, "alu", "3", 1)

	batch, err := f.svc.CreateBatch(context.Background(), f.tenantID, CreateBatchInput{
		BatchType:    models.BatchTypeGeneral,
		CellID:       cell.ID,
		OperationIDs: []uuid.UUID{steel[0], alu[0]},
	})
	require.NoError(t, err)

	// Mixed membership leaves the compatibility key empty.
	assert.Empty(t, batch.Material)
	assert.Empty(t, batch.Thickness)
}

func TestCreateBatchOperationAlreadyBatched(t *testing.T) {
	f := newBatchFixture(t)
	cell := f.store.addCell(f.tenantID, "Laser", 1, 5)
	ids := f.seedGroupable(t, cell, "steel", "3", 1)
	ctx := context.Background()

	_, err := f.svc.CreateBatch(ctx, f.tenantID, CreateBatchInput{
		BatchType: models.BatchTypeLaserNesting, CellID: cell.ID, OperationIDs: ids})
	require.NoError(t, err)

	// Once claimed the operation is no longer groupable.
	_, err = f.svc.CreateBatch(ctx, f.tenantID, CreateBatchInput{
		BatchType: models.BatchTypeLaserNesting, CellID: cell.ID, OperationIDs: ids})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestBatchLifecycle(t *testing.T) {
	f := newBatchFixture(t)
	cell := f.store.addCell(f.tenantID, "Laser", 1, 5)
	ids := f.seedGroupable(t, cell, "steel", "3", 2)
	ctx := context.Background()

	batch, err := f.svc.CreateBatch(ctx, f.tenantID, CreateBatchInput{
		BatchType: models.BatchTypeLaserNesting, CellID: cell.ID, OperationIDs: ids})
	require.NoError(t, err)

	batch, err = f.svc.MarkBatchReady(ctx, f.tenantID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusReady, batch.Status)

	batch, err = f.svc.StartBatch(ctx, f.tenantID, batch.ID, "op-7")
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusInProgress, batch.Status)
	assert.Equal(t, "op-7", batch.StartedBy)
	require.NotNil(t, batch.StartedAt)

	// Starting the batch pulls untouched members along.
	for _, id := range ids {
		assert.Equal(t, models.OperationStatusInProgress, f.store.operations[id].Status)
	}

	batch, err = f.svc.CompleteBatch(ctx, f.tenantID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, batch.Status)
	require.NotNil(t, batch.CompletedAt)
}

func TestBatchInvalidTransitions(t *testing.T) {
	f := newBatchFixture(t)
	cell := f.store.addCell(f.tenantID, "Laser", 1, 5)
	ids := f.seedGroupable(t, cell, "steel", "3", 1)
	ctx := context.Background()

	batch, err := f.svc.CreateBatch(ctx, f.tenantID, CreateBatchInput{
		BatchType: models.BatchTypeLaserNesting, CellID: cell.ID, OperationIDs: ids})
	require.NoError(t, err)

	// draft -> completed skips in_progress.
	_, err = f.svc.CompleteBatch(ctx, f.tenantID, batch.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	_, err = f.svc.StartBatch(ctx, f.tenantID, batch.ID, "op-7")
	require.NoError(t, err)

	// in_progress can no longer be cancelled.
	_, err = f.svc.CancelBatch(ctx, f.tenantID, batch.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	_, err = f.svc.MarkBatchReady(ctx, f.tenantID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStartBatchFromDraft(t *testing.T) {
	f := newBatchFixture(t)
	cell := f.store.addCell(f.tenantID, "Laser", 1, 5)
	ids := f.seedGroupable(t, cell, "steel", "3", 1)
	ctx := context.Background()

	batch, err := f.svc.CreateBatch(ctx, f.tenantID, CreateBatchInput{
		BatchType: models.BatchTypeLaserNesting, CellID: cell.ID, OperationIDs: ids})
	require.NoError(t, err)

	// ready is optional; draft starts directly.
	batch, err = f.svc.StartBatch(ctx, f.tenantID, batch.ID, "op-7")
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusInProgress, batch.Status)

	_, err = f.svc.StartBatch(ctx, f.tenantID, batch.ID, "op-8")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestCancelBatchReleasesOperations(t *testing.T) {
	f := newBatchFixture(t)
	cell := f.store.addCell(f.tenantID, "Laser", 1, 5)
	ids := f.seedGroupable(t, cell, "steel", "3", 2)
	ctx := context.Background()

	batch, err := f.svc.CreateBatch(ctx, f.tenantID, CreateBatchInput{
		BatchType: models.BatchTypeLaserNesting, CellID: cell.ID, OperationIDs: ids})
	require.NoError(t, err)

	batch, err = f.svc.CancelBatch(ctx, f.tenantID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCancelled, batch.Status)

	// Released members are groupable again.
	groups, err := f.svc.GetGroupableOperations(ctx, f.tenantID, cell.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Operations, 2)
}

func TestGetBatchCompletion(t *testing.T) {
	f := newBatchFixture(t)
	cell := f.store.addCell(f.tenantID, "Laser", 1, 5)
	ids := f.seedGroupable(t, cell, "steel", "3", 4)
	ctx := context.Background()

	batch, err := f.svc.CreateBatch(ctx, f.tenantID, CreateBatchInput{
		BatchType: models.BatchTypeLaserNesting, CellID: cell.ID, OperationIDs: ids})
	require.NoError(t, err)

	f.store.operations[ids[0]].Status = models.OperationStatusCompleted

	detail, err := f.svc.GetBatch(ctx, f.tenantID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, detail.TotalOperations)
	assert.Equal(t, 1, detail.CompletedOperations)
	assert.InDelta(t, 25.0, detail.CompletionPercent, 1e-9)
}

func TestStartBatchRequiresOperator(t *testing.T) {
	f := newBatchFixture(t)
	_, err := f.svc.StartBatch(context.Background(), f.tenantID, uuid.New(), "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
