package dto

import (
	"github.com/noah-isme/section-allocator/internal/engine"
)

// Allocation run statuses.
const (
	RunStatusCompleted  = "completed"
	RunStatusInfeasible = "infeasible"
	RunStatusEmpty      = "empty"
)

// GenerateRequest starts a full-population run.
type GenerateRequest struct {
	// Semester labels the demand forecast; defaults to the configured label.
	Semester string `json:"semester" validate:"omitempty,max=64"`
	// Seed overrides the configured random seed; zero keeps the configured one.
	Seed int64 `json:"seed"`
	// RefreshDemand drops cached forecasts for the semester before predicting.
	RefreshDemand bool `json:"refreshDemand"`
}

// ReoptimizeRequest recomputes allocations for the listed students only.
type ReoptimizeRequest struct {
	AffectedStudentIDs []string `json:"affectedStudentIds" validate:"omitempty,dive,required,max=64"`
	Seed               int64    `json:"seed"`
	// Async hands the run to the background queue and returns a job ID.
	Async bool `json:"async"`
}

// SolverSummary reports the repair stage.
type SolverSummary struct {
	Status     string `json:"status"`
	Matched    int    `json:"matched"`
	Assigned   int    `json:"assigned"`
	DurationMs int64  `json:"durationMs"`
	Reason     string `json:"reason,omitempty"`
}

// AllocationResult is returned by Generate and Reoptimize.
type AllocationResult struct {
	RunID    string `json:"runId"`
	Mode     string `json:"mode"`
	Status   string `json:"status"`
	Semester string `json:"semester,omitempty"`
	Seed     int64  `json:"seed"`
	// Assignments maps student ID to section ID; null means not assigned.
	Assignments          map[string]*string `json:"assignments"`
	Ineligible           []string           `json:"ineligible"`
	UnknownStudents      []string           `json:"unknownStudents,omitempty"`
	UnassignableSections []string           `json:"unassignableSections"`
	Search               engine.SearchStats `json:"search"`
	Solver               *SolverSummary     `json:"solver,omitempty"`
	Violations           []engine.Violation `json:"violations,omitempty"`
	DemandFallback       bool               `json:"demandFallback"`
}

// ReoptimizeAccepted acknowledges an asynchronous reoptimization.
type ReoptimizeAccepted struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// ExportQuery selects the roster format.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
