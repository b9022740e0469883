package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/section-allocator/internal/models"
)

const insertAssignmentQuery = `
INSERT INTO assignments (id, run_id, student_id, section_id, status, created_at)
VALUES (:id, :run_id, :student_id, :section_id, :status, :created_at)`

// AssignmentRepository persists allocation outcomes. Rows are appended per run.
type AssignmentRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// SaveBatch appends rows atomically.
func (r *AssignmentRepository) SaveBatch(ctx context.Context, rows []models.Assignment) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := r.insert(ctx, tx, rows); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignments: %w", err)
	}
	return nil
}

// ReplaceForStudents clears the existing rows of studentIDs (section NULL, not_assigned) and
// appends rows in the same transaction. Rows of other students are not touched.
func (r *AssignmentRepository) ReplaceForStudents(ctx context.Context, studentIDs []string, rows []models.Assignment) error {
	if len(studentIDs) == 0 && len(rows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if len(studentIDs) > 0 {
		const clear = `UPDATE assignments SET section_id = NULL, status = $1 WHERE student_id = ANY($2)`
		if _, err := tx.ExecContext(ctx, clear, models.AssignmentStatusNotAssigned, pq.Array(studentIDs)); err != nil {
			return fmt.Errorf("clear assignments: %w", err)
		}
	}
	if err := r.insert(ctx, tx, rows); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignments: %w", err)
	}
	return nil
}

// ListCurrent returns the latest row of every student ordered by student ID.
func (r *AssignmentRepository) ListCurrent(ctx context.Context) ([]models.Assignment, error) {
	var rows []models.Assignment
	if err := r.db.SelectContext(ctx, &rows, currentAssignmentsQuery); err != nil {
		return nil, fmt.Errorf("list current assignments: %w", err)
	}
	return rows, nil
}

// ListByRun returns the rows written by one run.
func (r *AssignmentRepository) ListByRun(ctx context.Context, runID string) ([]models.Assignment, error) {
	const query = `SELECT id, run_id, student_id, section_id, status, created_at
FROM assignments WHERE run_id = $1 ORDER BY student_id`
	var rows []models.Assignment
	if err := r.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("list assignments by run: %w", err)
	}
	return rows, nil
}

func (r *AssignmentRepository) insert(ctx context.Context, exec sqlx.ExtContext, rows []models.Assignment) error {
	now := r.now()
	for i := range rows {
		row := &rows[i]
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, exec, insertAssignmentQuery, row); err != nil {
			return fmt.Errorf("insert assignment for %s: %w", row.StudentID, err)
		}
	}
	return nil
}
