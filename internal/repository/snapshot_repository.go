package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/section-allocator/internal/models"
)

const (
	snapshotStudentsQuery = `SELECT id, full_name, cgpa, payment_cleared, evaluation_done, level, COALESCE(department, '') AS department
FROM students`
	snapshotCoursesQuery = `SELECT id, title, level, credits, COALESCE(prerequisites, '{}') AS prerequisites
FROM courses ORDER BY id`
	snapshotSectionsQuery = `SELECT id, course_id, code, day, start_time, end_time, COALESCE(room, '') AS room, capacity, faculty_id
FROM sections ORDER BY id`
	snapshotFacultyQuery = `SELECT id, code, name, max_load, available
FROM faculty ORDER BY id`
	snapshotPreferencesQuery = `SELECT id, student_id, course_id, COALESCE(preferred_sections, '') AS preferred_sections, COALESCE(time_preference, '') AS time_preference
FROM preferences`
	snapshotCompletedQuery = `SELECT student_id, course_id
FROM completed_courses`
	currentAssignmentsQuery = `SELECT DISTINCT ON (student_id) id, run_id, student_id, section_id, status, created_at
FROM assignments ORDER BY student_id, created_at DESC, id DESC`
)

// SnapshotRepository reads the allocation input as one consistent snapshot.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository constructs the repository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Load reads students, catalog, preferences, completed courses and current assignments inside a
// single read-only repeatable-read transaction. When scope lists student IDs, only those students,
// their preferences and completed courses are read; the catalog and current assignments are
// always read in full so seat usage of everyone else is visible.
func (r *SnapshotRepository) Load(ctx context.Context, scope models.SnapshotScope) (*models.Snapshot, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	snap := &models.Snapshot{}
	scoped := len(scope.StudentIDs) > 0

	if err := selectScoped(ctx, tx, &snap.Students, snapshotStudentsQuery, "id", "id", scoped, scope.StudentIDs); err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	if err := tx.SelectContext(ctx, &snap.Courses, snapshotCoursesQuery); err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	if err := tx.SelectContext(ctx, &snap.Sections, snapshotSectionsQuery); err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	if err := tx.SelectContext(ctx, &snap.Faculty, snapshotFacultyQuery); err != nil {
		return nil, fmt.Errorf("load faculty: %w", err)
	}
	if err := selectScoped(ctx, tx, &snap.Preferences, snapshotPreferencesQuery, "student_id", "id", scoped, scope.StudentIDs); err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	var completed []models.CompletedCourse
	if err := selectScoped(ctx, tx, &completed, snapshotCompletedQuery, "student_id", "student_id, course_id", scoped, scope.StudentIDs); err != nil {
		return nil, fmt.Errorf("load completed courses: %w", err)
	}
	snap.Completed = make(map[string][]string)
	for _, c := range completed {
		snap.Completed[c.StudentID] = append(snap.Completed[c.StudentID], c.CourseID)
	}

	var current []models.Assignment
	if err := tx.SelectContext(ctx, &current, currentAssignmentsQuery); err != nil {
		return nil, fmt.Errorf("load current assignments: %w", err)
	}
	snap.Current = make(map[string]models.Assignment, len(current))
	for _, a := range current {
		snap.Current[a.StudentID] = a
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot tx: %w", err)
	}
	return snap, nil
}

func selectScoped(ctx context.Context, q sqlx.QueryerContext, dest interface{}, base, column, order string, scoped bool, ids []string) error {
	if !scoped {
		return sqlx.SelectContext(ctx, q, dest, base+" ORDER BY "+order)
	}
	query := fmt.Sprintf("%s WHERE %s = ANY($1) ORDER BY %s", base, column, order)
	return sqlx.SelectContext(ctx, q, dest, query, pq.Array(ids))
}
