package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/section-allocator/internal/dto"
	internalmiddleware "github.com/noah-isme/section-allocator/internal/middleware"
	"github.com/noah-isme/section-allocator/internal/models"
	"github.com/noah-isme/section-allocator/internal/service"
	appErrors "github.com/noah-isme/section-allocator/pkg/errors"
	"github.com/noah-isme/section-allocator/pkg/jobs"
)

type allocationRunnerMock struct {
	generated   []dto.GenerateRequest
	reoptimized []dto.ReoptimizeRequest
	err         error
}

func (m *allocationRunnerMock) Generate(_ context.Context, req dto.GenerateRequest) (*dto.AllocationResult, error) {
	m.generated = append(m.generated, req)
	if m.err != nil {
		return nil, m.err
	}
	x := "X"
	return &dto.AllocationResult{RunID: "run-1", Status: dto.RunStatusCompleted, Assignments: map[string]*string{"S001": &x, "S002": nil}}, nil
}

func (m *allocationRunnerMock) Reoptimize(_ context.Context, req dto.ReoptimizeRequest) (*dto.AllocationResult, error) {
	m.reoptimized = append(m.reoptimized, req)
	if m.err != nil {
		return nil, m.err
	}
	return &dto.AllocationResult{RunID: "run-2", Status: dto.RunStatusCompleted, Assignments: map[string]*string{}}, nil
}

type reoptimizeQueueMock struct {
	enqueued []dto.ReoptimizeRequest
	err      error
}

func (q *reoptimizeQueueMock) Enqueue(req dto.ReoptimizeRequest) (*dto.ReoptimizeAccepted, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.enqueued = append(q.enqueued, req)
	return &dto.ReoptimizeAccepted{JobID: "job-1", Status: jobs.StateQueued}, nil
}

func (q *reoptimizeQueueMock) State(id string) (jobs.JobState, error) {
	if id != "job-1" {
		return jobs.JobState{}, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	return jobs.JobState{ID: id, Status: jobs.StateSucceeded}, nil
}

type rosterExporterMock struct {
	format string
}

func (e *rosterExporterMock) Roster(_ context.Context, format string) (*service.ExportFile, error) {
	e.format = format
	if format == "xlsx" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	return &service.ExportFile{Filename: "roster.csv", ContentType: "text/csv", Data: []byte("student_id\n")}, nil
}

type allocationTestDeps struct {
	runner   *allocationRunnerMock
	queue    *reoptimizeQueueMock
	exporter *rosterExporterMock
}

func buildAllocationRouter(role models.UserRole) (*gin.Engine, *allocationTestDeps) {
	gin.SetMode(gin.TestMode)
	deps := &allocationTestDeps{runner: &allocationRunnerMock{}, queue: &reoptimizeQueueMock{}, exporter: &rosterExporterMock{}}
	h := &AllocationHandler{runner: deps.runner, queue: deps.queue, exporter: deps.exporter}

	router := gin.New()
	RegisterRoutes(router, Routes{
		APIPrefix:   "/api/v1",
		Allocations: h,
		Metrics:     NewMetricsHandler(service.NewMetricsService()),
		Auth: func(c *gin.Context) {
			if role != "" {
				c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "op-1", Role: role})
			}
			c.Next()
		},
	})
	return router, deps
}

func performRequest(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAllocationHandlerGenerate(t *testing.T) {
	router, deps := buildAllocationRouter(models.RoleAdmin)

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/allocations/generate", bytes.NewBufferString(`{"semester":"Fall","seed":9}`))
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, deps.runner.generated, 1)
	assert.Equal(t, "Fall", deps.runner.generated[0].Semester)
	assert.Equal(t, int64(9), deps.runner.generated[0].Seed)

	var body struct {
		Data dto.AllocationResult     `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.Data.RunID)
	assert.Nil(t, body.Data.Assignments["S002"])
	assert.Equal(t, 1.0, body.Meta["assigned"])
	assert.Equal(t, 1.0, body.Meta["notAssigned"])
	assert.Equal(t, "op-1", body.Meta["requestedBy"])
}

func TestAllocationHandlerGenerateEmptyBody(t *testing.T) {
	router, deps := buildAllocationRouter(models.RoleSuperAdmin)

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/allocations/generate", nil)
	resp := performRequest(router, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, deps.runner.generated, 1)
}

func TestAllocationHandlerGenerateForbiddenForRegistrar(t *testing.T) {
	router, deps := buildAllocationRouter(models.RoleRegistrar)

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/allocations/generate", nil)
	resp := performRequest(router, req)

	require.Equal(t, http.StatusForbidden, resp.Code)
	assert.Empty(t, deps.runner.generated)
}

func TestAllocationHandlerUnauthenticated(t *testing.T) {
	router, _ := buildAllocationRouter("")

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/allocations/reoptimize", bytes.NewBufferString(`{}`))
	resp := performRequest(router, req)

	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAllocationHandlerGenerateMapsServiceErrors(t *testing.T) {
	router, deps := buildAllocationRouter(models.RoleAdmin)
	deps.runner.err = appErrors.Clone(appErrors.ErrPersistence, "")

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/allocations/generate", nil)
	resp := performRequest(router, req)

	require.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, resp.Body.String(), appErrors.ErrPersistence.Code)
}

func TestAllocationHandlerReoptimizeSync(t *testing.T) {
	router, deps := buildAllocationRouter(models.RoleRegistrar)

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/allocations/reoptimize", bytes.NewBufferString(`{"affectedStudentIds":["S001"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, deps.runner.reoptimized, 1)
	assert.Equal(t, []string{"S001"}, deps.runner.reoptimized[0].AffectedStudentIDs)
	assert.Empty(t, deps.queue.enqueued)
}

func TestAllocationHandlerReoptimizeAsync(t *testing.T) {
	router, deps := buildAllocationRouter(models.RoleAdmin)

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/allocations/reoptimize?async=true", bytes.NewBufferString(`{"affectedStudentIds":["S001","S002"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)

	require.Equal(t, http.StatusAccepted, resp.Code)
	require.Len(t, deps.queue.enqueued, 1)
	assert.Empty(t, deps.runner.reoptimized)
	assert.Contains(t, resp.Body.String(), `"jobId":"job-1"`)

	req, _ = http.NewRequest(http.MethodGet, "/api/v1/allocations/jobs/job-1", nil)
	resp = performRequest(router, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), jobs.StateSucceeded)

	req, _ = http.NewRequest(http.MethodGet, "/api/v1/allocations/jobs/nope", nil)
	resp = performRequest(router, req)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAllocationHandlerReoptimizeQueueFull(t *testing.T) {
	router, deps := buildAllocationRouter(models.RoleAdmin)
	deps.queue.err = appErrors.Clone(appErrors.ErrQueueSaturated, "")

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/allocations/reoptimize", bytes.NewBufferString(`{"affectedStudentIds":["S001"],"async":true}`))
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)

	require.Equal(t, http.StatusTooManyRequests, resp.Code)
}

func TestAllocationHandlerReoptimizeBadPayload(t *testing.T) {
	router, _ := buildAllocationRouter(models.RoleAdmin)

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/allocations/reoptimize", bytes.NewBufferString(`{"affectedStudentIds":`))
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	req, _ = http.NewRequest(http.MethodPost, "/api/v1/allocations/reoptimize?async=maybe", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp = performRequest(router, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAllocationHandlerExport(t *testing.T) {
	router, deps := buildAllocationRouter(models.RoleRegistrar)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/allocations/export?format=csv", nil)
	resp := performRequest(router, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "csv", deps.exporter.format)
	assert.Equal(t, "text/csv", resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "roster.csv")

	req, _ = http.NewRequest(http.MethodGet, "/api/v1/allocations/export?format=xlsx", nil)
	resp = performRequest(router, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}
