package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/section-allocator/internal/dto"
	"github.com/noah-isme/section-allocator/internal/service"
	appErrors "github.com/noah-isme/section-allocator/pkg/errors"
	"github.com/noah-isme/section-allocator/pkg/jobs"
	"github.com/noah-isme/section-allocator/pkg/response"
)

type allocationRunner interface {
	Generate(ctx context.Context, req dto.GenerateRequest) (*dto.AllocationResult, error)
	Reoptimize(ctx context.Context, req dto.ReoptimizeRequest) (*dto.AllocationResult, error)
}

type reoptimizeQueue interface {
	Enqueue(req dto.ReoptimizeRequest) (*dto.ReoptimizeAccepted, error)
	State(jobID string) (jobs.JobState, error)
}

type rosterExporter interface {
	Roster(ctx context.Context, format string) (*service.ExportFile, error)
}

// AllocationHandler exposes allocation runs and roster export.
type AllocationHandler struct {
	runner   allocationRunner
	queue    reoptimizeQueue
	exporter rosterExporter
}

// NewAllocationHandler constructs the handler. dispatcher may be nil, in which case async
// reoptimization is rejected.
func NewAllocationHandler(svc *service.AllocationService, dispatcher *service.ReoptimizeDispatcher, exporter *service.ExportService) *AllocationHandler {
	h := &AllocationHandler{runner: svc}
	if dispatcher != nil {
		h.queue = dispatcher
	}
	if exporter != nil {
		h.exporter = exporter
	}
	return h
}

// Generate godoc
// @Summary Allocate every eligible student to a section
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body dto.GenerateRequest false "Generate payload"
// @Success 200 {object} response.Envelope
// @Router /allocations/generate [post]
func (h *AllocationHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.runner.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, runMeta(c, result))
}

// Reoptimize godoc
// @Summary Recompute allocations for the affected students only
// @Description With async=true the run is queued and a job ID is returned.
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body dto.ReoptimizeRequest true "Reoptimize payload"
// @Param async query bool false "Queue the run"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /allocations/reoptimize [post]
func (h *AllocationHandler) Reoptimize(c *gin.Context) {
	var req dto.ReoptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reoptimize payload"))
		return
	}
	if raw := c.Query("async"); raw != "" {
		async, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "async must be a boolean"))
			return
		}
		req.Async = async
	}

	if req.Async {
		if h.queue == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "background reoptimization disabled"))
			return
		}
		accepted, err := h.queue.Enqueue(req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, accepted)
		return
	}

	result, err := h.runner.Reoptimize(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, runMeta(c, result))
}

// Job godoc
// @Summary Get the state of a queued reoptimization
// @Tags Allocations
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /allocations/jobs/{id} [get]
func (h *AllocationHandler) Job(c *gin.Context) {
	if h.queue == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "job not found"))
		return
	}
	state, err := h.queue.State(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state)
}

// Export godoc
// @Summary Download the current roster
// @Tags Allocations
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /allocations/export [get]
func (h *AllocationHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "export disabled"))
		return
	}
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.exporter.Roster(c.Request.Context(), query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func bindOptionalJSON(c *gin.Context, dest interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func runMeta(c *gin.Context, result *dto.AllocationResult) map[string]interface{} {
	assigned := 0
	for _, sectionID := range result.Assignments {
		if sectionID != nil {
			assigned++
		}
	}
	meta := map[string]interface{}{
		"assigned":    assigned,
		"notAssigned": len(result.Assignments) - assigned,
	}
	if operator := currentOperator(c); operator != "" {
		meta["requestedBy"] = operator
	}
	return meta
}
