package engine

import (
	"sort"

	"github.com/noah-isme/section-allocator/internal/models"
)

// Unassigned marks a gene with no section.
const Unassigned = -1

// Individual holds one gene per cohort student: an index into Problem.Sections or Unassigned.
type Individual []int

// Clone returns an independent copy.
func (ind Individual) Clone() Individual {
	out := make(Individual, len(ind))
	copy(out, ind)
	return out
}

// PreferenceIndex maps student ID and course ID to the preference in effect.
type PreferenceIndex map[string]map[string]models.Preference

// NewPreferenceIndex indexes prefs in the order given. When a (student, course) pair appears more
// than once the last row wins, so callers must pass rows ordered by ID.
func NewPreferenceIndex(prefs []models.Preference) PreferenceIndex {
	idx := make(PreferenceIndex)
	for _, p := range prefs {
		byCourse, ok := idx[p.StudentID]
		if !ok {
			byCourse = make(map[string]models.Preference)
			idx[p.StudentID] = byCourse
		}
		byCourse[p.CourseID] = p
	}
	return idx
}

// Lookup returns the preference for (studentID, courseID).
func (idx PreferenceIndex) Lookup(studentID, courseID string) (models.Preference, bool) {
	p, ok := idx[studentID][courseID]
	return p, ok
}

// Problem is the immutable input shared by the search and repair stages.
type Problem struct {
	// Students is the cohort ordered by ID; gene i belongs to Students[i].
	Students []models.Student
	Sections []models.Section

	Priorities  map[string]float64
	Demand      map[string]float64
	Preferences PreferenceIndex

	Faculty       map[string]models.Faculty
	Prerequisites *PrerequisiteIndex
}

// NewProblem copies the cohort sorted by ID and the section catalog sorted by ID.
func NewProblem(cohort []models.Student, sections []models.Section) *Problem {
	students := append([]models.Student(nil), cohort...)
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })

	catalog := append([]models.Section(nil), sections...)
	sort.Slice(catalog, func(i, j int) bool { return catalog[i].ID < catalog[j].ID })

	return &Problem{
		Students:    students,
		Sections:    catalog,
		Priorities:  map[string]float64{},
		Demand:      map[string]float64{},
		Preferences: PreferenceIndex{},
	}
}

// Degenerate reports whether there is nothing to search over.
func (p *Problem) Degenerate() bool {
	return len(p.Students) == 0 || len(p.Sections) == 0
}

// EmptyIndividual returns an all-unassigned individual for the cohort.
func (p *Problem) EmptyIndividual() Individual {
	ind := make(Individual, len(p.Students))
	for i := range ind {
		ind[i] = Unassigned
	}
	return ind
}

// Mapping converts an individual into student ID => section ID (nil when unassigned).
func (p *Problem) Mapping(ind Individual) map[string]*string {
	out := make(map[string]*string, len(p.Students))
	for i, s := range p.Students {
		if i >= len(ind) || ind[i] == Unassigned || ind[i] >= len(p.Sections) {
			out[s.ID] = nil
			continue
		}
		id := p.Sections[ind[i]].ID
		out[s.ID] = &id
	}
	return out
}

// usable reports whether section i can ever take a student: it needs faculty, and that faculty
// must not be marked unavailable when faculty records are known.
func (p *Problem) usable(i int) bool {
	sec := p.Sections[i]
	if !sec.HasFaculty() {
		return false
	}
	if p.Faculty == nil {
		return true
	}
	f, ok := p.Faculty[*sec.FacultyID]
	return !ok || f.Available
}
