package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// EnrollmentStats holds historical enrollment means for one course.
type EnrollmentStats struct {
	SemesterMean sql.NullFloat64 `db:"semester_mean"`
	CourseMean   sql.NullFloat64 `db:"course_mean"`
}

// EnrollmentHistoryRepository reads past enrollment for demand forecasting.
type EnrollmentHistoryRepository struct {
	db *sqlx.DB
}

// NewEnrollmentHistoryRepository constructs the repository.
func NewEnrollmentHistoryRepository(db *sqlx.DB) *EnrollmentHistoryRepository {
	return &EnrollmentHistoryRepository{db: db}
}

// Stats returns the mean enrollment of courseID in the given semester label and across all semesters.
func (r *EnrollmentHistoryRepository) Stats(ctx context.Context, courseID, semester string) (EnrollmentStats, error) {
	const query = `SELECT AVG(enrollment) FILTER (WHERE semester = $1) AS semester_mean, AVG(enrollment) AS course_mean
FROM enrollment_history WHERE course_id = $2`
	var stats EnrollmentStats
	if err := r.db.GetContext(ctx, &stats, query, semester, courseID); err != nil {
		return EnrollmentStats{}, fmt.Errorf("enrollment stats for %s: %w", courseID, err)
	}
	return stats, nil
}
