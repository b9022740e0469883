package models

// EnrollmentHistory is the observed enrollment of a course in a past semester.
type EnrollmentHistory struct {
	Semester   string  `db:"semester" json:"semester"`
	CourseID   string  `db:"course_id" json:"course_id"`
	Enrollment float64 `db:"enrollment" json:"enrollment"`
}
