package export

import (
	"fmt"
	"sort"
	"strings"
)

// Roster columns in output order.
var RosterHeaders = []string{"student_id", "student_name", "course_id", "section_code", "day", "start", "end", "room", "status"}

// RosterRow is one student's current allocation flattened for export.
type RosterRow struct {
	StudentID   string
	StudentName string
	CourseID    string
	SectionCode string
	Day         string
	Start       string
	End         string
	Room        string
	Status      string
}

func (r RosterRow) record() []string {
	return []string{r.StudentID, r.StudentName, r.CourseID, r.SectionCode, r.Day, r.Start, r.End, r.Room, r.Status}
}

// SectionFill summarises seat usage of one section for the PDF footer table.
type SectionFill struct {
	CourseID    string
	SectionCode string
	Capacity    int
	Assigned    int
}

// Label renders "COURSE/CODE".
func (f SectionFill) Label() string {
	return fmt.Sprintf("%s/%s", f.CourseID, f.SectionCode)
}

// SortRows orders rows by course, section and student so exports are stable across runs.
// Unassigned students sort last.
func SortRows(rows []RosterRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if (a.SectionCode == "") != (b.SectionCode == "") {
			return b.SectionCode == ""
		}
		if a.CourseID != b.CourseID {
			return a.CourseID < b.CourseID
		}
		if a.SectionCode != b.SectionCode {
			return a.SectionCode < b.SectionCode
		}
		return strings.Compare(a.StudentID, b.StudentID) < 0
	})
}
