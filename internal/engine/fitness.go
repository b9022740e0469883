package engine

import (
	"fmt"
	"strings"

	"github.com/noah-isme/section-allocator/internal/models"
)

// FitnessWeights scales each soft objective term.
type FitnessWeights struct {
	Preference          float64
	EarlyMorningPenalty float64
	Priority            float64
	Demand              float64
}

// DefaultFitnessWeights returns the policy weights: priority 3, preference 2, demand 0.1, penalty 1.
func DefaultFitnessWeights() FitnessWeights {
	return FitnessWeights{Preference: 2.0, EarlyMorningPenalty: 1.0, Priority: 3.0, Demand: 0.1}
}

// Validate enforces non-negative weights ordered priority > preference > demand.
func (w FitnessWeights) Validate() error {
	if w.Preference < 0 || w.EarlyMorningPenalty < 0 || w.Priority < 0 || w.Demand < 0 {
		return fmt.Errorf("fitness weights must be non-negative")
	}
	if !(w.Priority > w.Preference && w.Preference > w.Demand) {
		return fmt.Errorf("fitness weights must satisfy priority > preference > demand (got %.2f, %.2f, %.2f)",
			w.Priority, w.Preference, w.Demand)
	}
	return nil
}

// EarlyMorningWindow is the half-open start-time range [Start, End) in minutes after midnight.
type EarlyMorningWindow struct {
	Start int
	End   int
}

// DefaultEarlyMorningWindow covers sections starting from 08:00 up to 09:00.
func DefaultEarlyMorningWindow() EarlyMorningWindow {
	return EarlyMorningWindow{Start: 8 * 60, End: 9 * 60}
}

// ParseEarlyMorningWindow parses "HH:MM" bounds.
func ParseEarlyMorningWindow(start, end string) (EarlyMorningWindow, error) {
	s, err := models.ParseClock(start)
	if err != nil {
		return EarlyMorningWindow{}, err
	}
	e, err := models.ParseClock(end)
	if err != nil {
		return EarlyMorningWindow{}, err
	}
	if e <= s {
		return EarlyMorningWindow{}, fmt.Errorf("early morning window end %s must be after start %s", end, start)
	}
	return EarlyMorningWindow{Start: s, End: e}, nil
}

// Contains reports whether minute falls inside the window.
func (w EarlyMorningWindow) Contains(minute int) bool {
	return minute >= w.Start && minute < w.End
}

// AvoidsEarlyMorning reports whether a free-form time preference asks to avoid early sections.
func AvoidsEarlyMorning(timePreference string) bool {
	switch strings.ToLower(strings.TrimSpace(timePreference)) {
	case "avoid_08", "avoid_early_morning", "avoid early morning":
		return true
	default:
		return false
	}
}

type studentCourseTerms struct {
	preferred  map[string]struct{}
	avoidEarly bool
}

// fitnessEvaluator scores individuals. It is read-only after construction and shared by workers.
type fitnessEvaluator struct {
	weights FitnessWeights
	window  EarlyMorningWindow

	sectionCode   []string
	sectionCourse []string
	sectionEarly  []bool
	priority      []float64
	terms         []map[string]studentCourseTerms
	demand        map[string]float64
}

func newFitnessEvaluator(p *Problem, weights FitnessWeights, window EarlyMorningWindow) *fitnessEvaluator {
	f := &fitnessEvaluator{
		weights:       weights,
		window:        window,
		sectionCode:   make([]string, len(p.Sections)),
		sectionCourse: make([]string, len(p.Sections)),
		sectionEarly:  make([]bool, len(p.Sections)),
		priority:      make([]float64, len(p.Students)),
		terms:         make([]map[string]studentCourseTerms, len(p.Students)),
		demand:        p.Demand,
	}

	for i, sec := range p.Sections {
		f.sectionCode[i] = sec.Code
		f.sectionCourse[i] = sec.CourseID
		if start, err := sec.StartMinutes(); err == nil {
			f.sectionEarly[i] = window.Contains(start)
		}
	}

	for i, st := range p.Students {
		f.priority[i] = p.Priorities[st.ID]
		byCourse := p.Preferences[st.ID]
		if len(byCourse) == 0 {
			continue
		}
		terms := make(map[string]studentCourseTerms, len(byCourse))
		for courseID, pref := range byCourse {
			t := studentCourseTerms{avoidEarly: AvoidsEarlyMorning(pref.TimePreference)}
			if codes := pref.PreferredCodes(); len(codes) > 0 {
				t.preferred = make(map[string]struct{}, len(codes))
				for _, c := range codes {
					t.preferred[c] = struct{}{}
				}
			}
			terms[courseID] = t
		}
		f.terms[i] = terms
	}

	return f
}

// score sums the per-student contributions. Unassigned genes contribute nothing.
func (f *fitnessEvaluator) score(ind Individual) float64 {
	total := 0.0
	for i, gene := range ind {
		if gene == Unassigned {
			continue
		}
		total += f.gene(i, gene)
	}
	return total
}

func (f *fitnessEvaluator) gene(student, section int) float64 {
	course := f.sectionCourse[section]
	value := f.weights.Priority*f.priority[student] + f.weights.Demand*f.demand[course]

	if terms, ok := f.terms[student][course]; ok {
		if _, hit := terms.preferred[f.sectionCode[section]]; hit {
			value += f.weights.Preference
		}
		if terms.avoidEarly && f.sectionEarly[section] {
			value -= f.weights.EarlyMorningPenalty
		}
	}
	return value
}
