package engine

import (
	"sort"

	"github.com/noah-isme/section-allocator/internal/models"
)

const (
	defaultPriorityThreshold = 3.5
	defaultPriorityWeight    = 1.0
)

// EligibilityConfig controls how priority is granted.
type EligibilityConfig struct {
	PriorityThreshold float64
	PriorityWeight    float64
}

// DefaultEligibilityConfig returns the CGPA >= 3.5 => 1.0 policy.
func DefaultEligibilityConfig() EligibilityConfig {
	return EligibilityConfig{PriorityThreshold: defaultPriorityThreshold, PriorityWeight: defaultPriorityWeight}
}

// Eligibility is the evaluator verdict for one student.
type Eligibility struct {
	StudentID  string  `json:"studentId"`
	Eligible   bool    `json:"eligible"`
	Priority   float64 `json:"priority"`
	Level      int     `json:"level"`
	Department string  `json:"department"`
}

// Evaluator decides eligibility and priority. It is pure and safe for concurrent use.
type Evaluator struct {
	cfg EligibilityConfig
}

// NewEvaluator constructs an Evaluator, filling unset fields with defaults.
func NewEvaluator(cfg EligibilityConfig) *Evaluator {
	if cfg.PriorityThreshold <= 0 {
		cfg.PriorityThreshold = defaultPriorityThreshold
	}
	if cfg.PriorityWeight <= 0 {
		cfg.PriorityWeight = defaultPriorityWeight
	}
	return &Evaluator{cfg: cfg}
}

// Evaluate returns the verdict for a single student. CGPA outside [0,4] is not rejected.
func (e *Evaluator) Evaluate(student models.Student) Eligibility {
	priority := 0.0
	if student.CGPA >= e.cfg.PriorityThreshold {
		priority = e.cfg.PriorityWeight
	}
	return Eligibility{
		StudentID:  student.ID,
		Eligible:   student.PaymentCleared && student.EvaluationDone,
		Priority:   priority,
		Level:      student.Level,
		Department: student.Department,
	}
}

// EvaluateAll returns a verdict for every student keyed by student ID.
func (e *Evaluator) EvaluateAll(students []models.Student) map[string]Eligibility {
	out := make(map[string]Eligibility, len(students))
	for _, s := range students {
		out[s.ID] = e.Evaluate(s)
	}
	return out
}

// Partition splits students into the eligible cohort (sorted by ID) and the sorted IDs of
// ineligible students, and returns the priority of every eligible student.
func (e *Evaluator) Partition(students []models.Student) ([]models.Student, []string, map[string]float64) {
	eligible := make([]models.Student, 0, len(students))
	ineligible := make([]string, 0)
	priorities := make(map[string]float64, len(students))

	for _, s := range students {
		verdict := e.Evaluate(s)
		if !verdict.Eligible {
			ineligible = append(ineligible, s.ID)
			continue
		}
		eligible = append(eligible, s)
		priorities[s.ID] = verdict.Priority
	}

	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
	sort.Strings(ineligible)
	return eligible, ineligible, priorities
}

// PrerequisiteIndex answers whether a student has passed every prerequisite of a course.
type PrerequisiteIndex struct {
	prereqs   map[string][]string
	completed map[string]map[string]struct{}
}

// NewPrerequisiteIndex builds an index from the course catalog and completed courses per student.
func NewPrerequisiteIndex(courses []models.Course, completed map[string][]string) *PrerequisiteIndex {
	idx := &PrerequisiteIndex{
		prereqs:   make(map[string][]string, len(courses)),
		completed: make(map[string]map[string]struct{}, len(completed)),
	}
	for _, c := range courses {
		if len(c.Prerequisites) > 0 {
			idx.prereqs[c.ID] = append([]string(nil), c.Prerequisites...)
		}
	}
	for studentID, courseIDs := range completed {
		set := make(map[string]struct{}, len(courseIDs))
		for _, id := range courseIDs {
			set[id] = struct{}{}
		}
		idx.completed[studentID] = set
	}
	return idx
}

// Satisfied reports whether studentID may take courseID. A nil index allows everything.
func (p *PrerequisiteIndex) Satisfied(studentID, courseID string) bool {
	if p == nil {
		return true
	}
	required := p.prereqs[courseID]
	if len(required) == 0 {
		return true
	}
	passed := p.completed[studentID]
	for _, r := range required {
		if _, ok := passed[r]; !ok {
			return false
		}
	}
	return true
}
