package models

import "time"

// AssignmentStatus tags an allocation row.
type AssignmentStatus string

const (
	AssignmentStatusAssigned    AssignmentStatus = "assigned"
	AssignmentStatusNotAssigned AssignmentStatus = "not_assigned"
)

// RunMode identifies which entry point produced a run.
type RunMode string

const (
	RunModeGenerate   RunMode = "generate"
	RunModeReoptimize RunMode = "reoptimize"
)

// Assignment is the allocation outcome for one student in one run. Rows are append-only;
// the latest row of a student is its current assignment.
type Assignment struct {
	ID        string           `db:"id" json:"id"`
	RunID     string           `db:"run_id" json:"run_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	SectionID *string          `db:"section_id" json:"section_id"`
	Status    AssignmentStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// IsAssigned reports whether the row holds a seat.
func (a Assignment) IsAssigned() bool {
	return a.Status == AssignmentStatusAssigned && a.SectionID != nil
}

// SectionSeats counts occupied seats per section.
type SectionSeats struct {
	SectionID string `db:"section_id" json:"section_id"`
	Seats     int    `db:"seats" json:"seats"`
}
