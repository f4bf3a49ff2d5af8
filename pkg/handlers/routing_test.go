package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/apperrors"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/models"
)

func TestPartRoutingEndpoint(t *testing.T) {
	tenantID := uuid.New()
	partID := uuid.New()

	routing := &stubRoutingService{
		part: func(_, gotPart uuid.UUID) ([]models.RoutingEntry, error) {
			assert.Equal(t, partID, gotPart)
			return []models.RoutingEntry{
				{CellName: "Laser", Sequence: 1, OperationCount: 2, CompletedOperations: 1},
				{CellName: "Press", Sequence: 2, OperationCount: 1},
			}, nil
		},
	}

	mux := http.NewServeMux()
	NewRoutingHandler(routing, zap.NewNop()).RegisterRoutes(mux, testTenantMiddleware(tenantID))

	req := httptest.NewRequest(http.MethodGet, "/api/parts/"+partID.String()+"/routing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp RoutingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Routing, 2)
	assert.Equal(t, "Laser", resp.Routing[0].CellName)
}

func TestJobRoutingEndpointNotFound(t *testing.T) {
	routing := &stubRoutingService{
		job: func(_, _ uuid.UUID) ([]models.RoutingEntry, error) {
			return nil, apperrors.ErrNotFound
		},
	}

	mux := http.NewServeMux()
	NewRoutingHandler(routing, zap.NewNop()).RegisterRoutes(mux, testTenantMiddleware(uuid.New()))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+uuid.NewString()+"/routing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobsRoutingEndpoint(t *testing.T) {
	tenantID := uuid.New()
	jobID := uuid.New()

	routing := &stubRoutingService{
		jobs: func(_ uuid.UUID, jobIDs []uuid.UUID) (map[uuid.UUID][]models.RoutingEntry, error) {
			require.Equal(t, []uuid.UUID{jobID}, jobIDs)
			return map[uuid.UUID][]models.RoutingEntry{
				jobID: {{CellName: "Laser", Sequence: 1, OperationCount: 1}},
			}, nil
		},
	}

	mux := http.NewServeMux()
	NewRoutingHandler(routing, zap.NewNop()).RegisterRoutes(mux, testTenantMiddleware(tenantID))

	req := httptest.NewRequest(http.MethodPost, "/api/routing/jobs",
		strings.NewReader(`{"job_ids":["`+jobID.String()+`"]}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp JobsRoutingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Routing, jobID)
	assert.Equal(t, "Laser", resp.Routing[jobID][0].CellName)
}

func TestJobsRoutingEndpointBadBody(t *testing.T) {
	mux := http.NewServeMux()
	NewRoutingHandler(&stubRoutingService{}, zap.NewNop()).
		RegisterRoutes(mux, testTenantMiddleware(uuid.New()))

	req := httptest.NewRequest(http.MethodPost, "/api/routing/jobs", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
