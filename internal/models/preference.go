package models

import "strings"

// Preference is a student's stated wish for one course.
type Preference struct {
	ID                int64  `db:"id" json:"id"`
	StudentID         string `db:"student_id" json:"student_id"`
	CourseID          string `db:"course_id" json:"course_id"`
	PreferredSections string `db:"preferred_sections" json:"preferred_sections"`
	TimePreference    string `db:"time_preference" json:"time_preference"`
}

// PreferredCodes splits the comma separated section code list, dropping blanks.
func (p Preference) PreferredCodes() []string {
	if strings.TrimSpace(p.PreferredSections) == "" {
		return nil
	}
	parts := strings.Split(p.PreferredSections, ",")
	codes := make([]string, 0, len(parts))
	for _, part := range parts {
		if code := strings.TrimSpace(part); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}
