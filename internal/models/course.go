package models

import "github.com/lib/pq"

// Course groups sections. Prerequisites are course IDs; the graph is assumed acyclic.
type Course struct {
	ID            string         `db:"id" json:"id"`
	Title         string         `db:"title" json:"title"`
	Level         int            `db:"level" json:"level"`
	Credits       int            `db:"credits" json:"credits"`
	Prerequisites pq.StringArray `db:"prerequisites" json:"prerequisites"`
}

// CompletedCourse records a course a student has passed.
type CompletedCourse struct {
	StudentID string `db:"student_id" json:"student_id"`
	CourseID  string `db:"course_id" json:"course_id"`
}
