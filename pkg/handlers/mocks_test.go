package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/cad"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/database"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/models"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/services"
)

// testTenantMiddleware stamps a fixed tenant into the request context,
// standing in for the real middleware's scope acquisition.
func testTenantMiddleware(tenantID uuid.UUID) TenantMiddleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx := database.SetTenantID(r.Context(), tenantID)
			next(w, r.WithContext(ctx))
		}
	}
}

type stubCapacityService struct {
	metrics func(tenantID, cellID uuid.UUID) (*models.CellMetrics, error)
	next    func(tenantID, cellID uuid.UUID) (*models.NextCellCapacity, error)
}

var _ services.CapacityService = (*stubCapacityService)(nil)

func (s *stubCapacityService) GetCellMetrics(_ context.Context, tenantID, cellID uuid.UUID) (*models.CellMetrics, error) {
	return s.metrics(tenantID, cellID)
}

func (s *stubCapacityService) CheckNextCellCapacity(_ context.Context, tenantID, cellID uuid.UUID) (*models.NextCellCapacity, error) {
	return s.next(tenantID, cellID)
}

type stubBatchService struct {
	groupable  func(tenantID, cellID uuid.UUID) ([]models.MaterialGroup, error)
	create     func(tenantID uuid.UUID, input services.CreateBatchInput) (*models.Batch, error)
	get        func(tenantID, batchID uuid.UUID) (*services.BatchDetail, error)
	transition func(tenantID, batchID uuid.UUID) (*models.Batch, error)
}

var _ services.BatchService = (*stubBatchService)(nil)

func (s *stubBatchService) GetGroupableOperations(_ context.Context, tenantID, cellID uuid.UUID) ([]models.MaterialGroup, error) {
	return s.groupable(tenantID, cellID)
}

func (s *stubBatchService) CreateBatch(_ context.Context, tenantID uuid.UUID, input services.CreateBatchInput) (*models.Batch, error) {
	return s.create(tenantID, input)
}

func (s *stubBatchService) GetBatch(_ context.Context, tenantID, batchID uuid.UUID) (*services.BatchDetail, error) {
	return s.get(tenantID, batchID)
}

func (s *stubBatchService) MarkBatchReady(_ context.Context, tenantID, batchID uuid.UUID) (*models.Batch, error) {
	return s.transition(tenantID, batchID)
}

func (s *stubBatchService) StartBatch(_ context.Context, tenantID, batchID uuid.UUID, _ string) (*models.Batch, error) {
	return s.transition(tenantID, batchID)
}

func (s *stubBatchService) CompleteBatch(_ context.Context, tenantID, batchID uuid.UUID) (*models.Batch, error) {
	return s.transition(tenantID, batchID)
}

func (s *stubBatchService) CancelBatch(_ context.Context, tenantID, batchID uuid.UUID) (*models.Batch, error) {
	return s.transition(tenantID, batchID)
}

type stubTimeclockService struct {
	start    func(tenantID, operationID uuid.UUID, operatorID string) (*models.TimeEntry, error)
	stop     func(tenantID, operationID uuid.UUID, operatorID string) (*models.TimeEntry, error)
	complete func(tenantID, operationID uuid.UUID) (*models.Operation, error)
	active   func(tenantID uuid.UUID, operatorID string) (*models.TimeEntry, error)
}

var _ services.TimeclockService = (*stubTimeclockService)(nil)

func (s *stubTimeclockService) StartTiming(_ context.Context, tenantID, operationID uuid.UUID, operatorID string) (*models.TimeEntry, error) {
	return s.start(tenantID, operationID, operatorID)
}

func (s *stubTimeclockService) StopTiming(_ context.Context, tenantID, operationID uuid.UUID, operatorID string) (*models.TimeEntry, error) {
	return s.stop(tenantID, operationID, operatorID)
}

func (s *stubTimeclockService) CompleteOperation(_ context.Context, tenantID, operationID uuid.UUID) (*models.Operation, error) {
	return s.complete(tenantID, operationID)
}

func (s *stubTimeclockService) GetActiveEntry(_ context.Context, tenantID uuid.UUID, operatorID string) (*models.TimeEntry, error) {
	return s.active(tenantID, operatorID)
}

type stubRoutingService struct {
	part func(tenantID, partID uuid.UUID) ([]models.RoutingEntry, error)
	job  func(tenantID, jobID uuid.UUID) ([]models.RoutingEntry, error)
	jobs func(tenantID uuid.UUID, jobIDs []uuid.UUID) (map[uuid.UUID][]models.RoutingEntry, error)
}

var _ services.RoutingService = (*stubRoutingService)(nil)

func (s *stubRoutingService) GetPartRouting(_ context.Context, tenantID, partID uuid.UUID) ([]models.RoutingEntry, error) {
	return s.part(tenantID, partID)
}

func (s *stubRoutingService) GetJobRouting(_ context.Context, tenantID, jobID uuid.UUID) ([]models.RoutingEntry, error) {
	return s.job(tenantID, jobID)
}

func (s *stubRoutingService) GetJobsRouting(_ context.Context, tenantID uuid.UUID, jobIDs []uuid.UUID) (map[uuid.UUID][]models.RoutingEntry, error) {
	return s.jobs(tenantID, jobIDs)
}

type stubPartService struct {
	get     func(tenantID, partID uuid.UUID) (*models.Part, error)
	status  func(tenantID, partID uuid.UUID) (*cad.Status, error)
	request func(tenantID, partID uuid.UUID, fileURL, fileName string) error
}

var _ services.PartService = (*stubPartService)(nil)

func (s *stubPartService) GetPart(_ context.Context, tenantID, partID uuid.UUID) (*models.Part, error) {
	return s.get(tenantID, partID)
}

func (s *stubPartService) GetPMIStatus(_ context.Context, tenantID, partID uuid.UUID) (*cad.Status, error) {
	return s.status(tenantID, partID)
}

func (s *stubPartService) RequestPMIExtraction(_ context.Context, tenantID, partID uuid.UUID, fileURL, fileName string) error {
	return s.request(tenantID, partID, fileURL, fileName)
}

type stubAssemblyService struct {
	check func(tenantID, partID uuid.UUID) (*models.AssemblyWarning, error)
}

var _ services.AssemblyService = (*stubAssemblyService)(nil)

func (s *stubAssemblyService) CheckAssemblyReadiness(_ context.Context, tenantID, partID uuid.UUID) (*models.AssemblyWarning, error) {
	return s.check(tenantID, partID)
}
