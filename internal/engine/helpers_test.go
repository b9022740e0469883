package engine

import (
	"fmt"

	"github.com/noah-isme/section-allocator/internal/models"
)

func strPtr(s string) *string { return &s }

func newSection(id, course, code, start string, capacity int, faculty string) models.Section {
	sec := models.Section{ID: id, CourseID: course, Code: code, Day: "Mon", StartTime: start, EndTime: "23:00", Room: "R-" + id, Capacity: capacity}
	if faculty != "" {
		sec.FacultyID = strPtr(faculty)
	}
	return sec
}

func newStudents(n int) []models.Student {
	out := make([]models.Student, n)
	for i := range out {
		out[i] = models.Student{ID: fmt.Sprintf("S%03d", i+1), CGPA: 3.0, PaymentCleared: true, EvaluationDone: true, Level: 1, Department: "CS"}
	}
	return out
}

func countAssigned(m map[string]*string) int {
	n := 0
	for _, v := range m {
		if v != nil {
			n++
		}
	}
	return n
}
