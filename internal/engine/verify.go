package engine

import (
	"fmt"
	"sort"

	"github.com/noah-isme/section-allocator/internal/models"
)

// Violation kinds reported by Verify.
const (
	ViolationUnknownSection     = "unknown_section"
	ViolationNoFaculty          = "no_faculty"
	ViolationFacultyUnavailable = "faculty_unavailable"
	ViolationOverCapacity       = "over_capacity"
)

// Violation describes one broken hard constraint.
type Violation struct {
	Kind      string `json:"kind"`
	SectionID string `json:"sectionId"`
	StudentID string `json:"studentId,omitempty"`
	Detail    string `json:"detail"`
}

// Verify checks assignments against the section catalog. capacity overrides nominal capacity for
// the listed sections and may be nil; faculty may be nil when availability is unknown.
// Violations are ordered by section then student.
func Verify(assignments map[string]*string, sections []models.Section, faculty map[string]models.Faculty, capacity map[string]int) []Violation {
	byID := make(map[string]models.Section, len(sections))
	for _, s := range sections {
		byID[s.ID] = s
	}

	students := make([]string, 0, len(assignments))
	for id := range assignments {
		students = append(students, id)
	}
	sort.Strings(students)

	violations := make([]Violation, 0)
	counts := make(map[string]int)
	for _, studentID := range students {
		sectionID := assignments[studentID]
		if sectionID == nil {
			continue
		}
		sec, ok := byID[*sectionID]
		if !ok {
			violations = append(violations, Violation{Kind: ViolationUnknownSection, SectionID: *sectionID, StudentID: studentID, Detail: "section not in catalog"})
			continue
		}
		counts[sec.ID]++
		if !sec.HasFaculty() {
			violations = append(violations, Violation{Kind: ViolationNoFaculty, SectionID: sec.ID, StudentID: studentID, Detail: "section has no faculty"})
			continue
		}
		if f, known := faculty[*sec.FacultyID]; known && !f.Available {
			violations = append(violations, Violation{Kind: ViolationFacultyUnavailable, SectionID: sec.ID, StudentID: studentID, Detail: fmt.Sprintf("faculty %s unavailable", f.ID)})
		}
	}

	sectionIDs := make([]string, 0, len(counts))
	for id := range counts {
		sectionIDs = append(sectionIDs, id)
	}
	sort.Strings(sectionIDs)
	for _, id := range sectionIDs {
		limit := byID[id].Capacity
		if override, ok := capacity[id]; ok {
			limit = override
		}
		if counts[id] > limit {
			violations = append(violations, Violation{Kind: ViolationOverCapacity, SectionID: id, Detail: fmt.Sprintf("%d assigned, capacity %d", counts[id], limit)})
		}
	}

	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].SectionID != violations[j].SectionID {
			return violations[i].SectionID < violations[j].SectionID
		}
		return violations[i].StudentID < violations[j].StudentID
	})
	return violations
}
