package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Section is one offering of a course. A nil FacultyID makes the section permanently unassignable.
type Section struct {
	ID        string  `db:"id" json:"id"`
	CourseID  string  `db:"course_id" json:"course_id"`
	Code      string  `db:"code" json:"code"`
	Day       string  `db:"day" json:"day"`
	StartTime string  `db:"start_time" json:"start_time"`
	EndTime   string  `db:"end_time" json:"end_time"`
	Room      string  `db:"room" json:"room"`
	Capacity  int     `db:"capacity" json:"capacity"`
	FacultyID *string `db:"faculty_id" json:"faculty_id,omitempty"`
}

// HasFaculty reports whether a faculty member is attached.
func (s Section) HasFaculty() bool {
	return s.FacultyID != nil && *s.FacultyID != ""
}

// StartMinutes returns the start time as minutes after midnight.
func (s Section) StartMinutes() (int, error) {
	return ParseClock(s.StartTime)
}

// EndMinutes returns the end time as minutes after midnight.
func (s Section) EndMinutes() (int, error) {
	return ParseClock(s.EndTime)
}

// ParseClock parses "HH:MM" (an optional ":SS" suffix is ignored) into minutes after midnight.
func ParseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock %q", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return h*60 + m, nil
}
