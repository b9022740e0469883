package models

// SnapshotScope narrows the student-scoped reads of a snapshot. Empty StudentIDs means everyone.
type SnapshotScope struct {
	StudentIDs []string
}

// Snapshot is the immutable input of a single allocation run.
type Snapshot struct {
	Students    []Student
	Courses     []Course
	Sections    []Section
	Faculty     []Faculty
	Preferences []Preference
	// Completed maps student ID to passed course IDs.
	Completed map[string][]string
	// Current holds the latest assignment row of every student that has one.
	Current map[string]Assignment
}

// FacultyByID indexes the faculty list.
func (s *Snapshot) FacultyByID() map[string]Faculty {
	out := make(map[string]Faculty, len(s.Faculty))
	for _, f := range s.Faculty {
		out[f.ID] = f
	}
	return out
}

// OccupiedSeats counts seats held by current assignments of students not in exclude.
func (s *Snapshot) OccupiedSeats(exclude map[string]struct{}) map[string]int {
	out := make(map[string]int)
	for studentID, a := range s.Current {
		if _, skip := exclude[studentID]; skip {
			continue
		}
		if a.IsAssigned() {
			out[*a.SectionID]++
		}
	}
	return out
}
