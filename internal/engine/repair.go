package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Repair outcomes.
const (
	RepairStatusOptimal    = "optimal"
	RepairStatusFeasible   = "feasible"
	RepairStatusInfeasible = "infeasible"
)

const defaultSolverBudget = 10 * time.Second

// RepairOptions adjusts the model for a single solve.
type RepairOptions struct {
	// CapacityOverride replaces the nominal capacity of the listed sections.
	CapacityOverride map[string]int
	// EnforcePrerequisites drops sections whose course prerequisites a student has not passed.
	EnforcePrerequisites bool
}

// RepairResult is the hard-feasible projection of a candidate.
type RepairResult struct {
	Assignments map[string]*string `json:"assignments"`
	Status      string             `json:"status"`
	Matched     int                `json:"matched"`
	Assigned    int                `json:"assigned"`
	// Unassignable lists section IDs that no student could be placed in.
	Unassignable []string      `json:"unassignableSections"`
	Reason       string        `json:"reason,omitempty"`
	Duration     time.Duration `json:"durationNs"`
}

// InvalidModelError reports a model that cannot be solved, such as a negative capacity.
type InvalidModelError struct {
	Reason string
}

func (e *InvalidModelError) Error() string {
	return "invalid repair model: " + e.Reason
}

// repairGroup is a set of interchangeable students: same candidate, priority tier and allowed sections.
type repairGroup struct {
	members   []int
	candidate int
	priority  bool
	allowed   []int
	node      int
	edges     []groupEdge
}

type groupEdge struct {
	section int
	index   int
}

type repairModel struct {
	graph        *flowGraph
	source, sink int
	groups       []*repairGroup
	capacity     []int64
	unassignable []string
}

// buildRepairModel turns the problem into a flow network. Students and sections are indexed as in p.
func buildRepairModel(p *Problem, candidate Individual, opts RepairOptions) (*repairModel, error) {
	capacity := make([]int64, len(p.Sections))
	usable := make([]bool, len(p.Sections))
	unassignable := make([]string, 0)
	for i, sec := range p.Sections {
		c := sec.Capacity
		if override, ok := opts.CapacityOverride[sec.ID]; ok {
			c = override
		}
		if c < 0 {
			return nil, &InvalidModelError{Reason: fmt.Sprintf("section %s has negative capacity %d", sec.ID, c)}
		}
		capacity[i] = int64(c)
		usable[i] = c > 0 && p.usable(i)
		if !usable[i] {
			unassignable = append(unassignable, sec.ID)
		}
	}

	groups := make(map[string]*repairGroup)
	order := make([]string, 0)
	for i, st := range p.Students {
		cand := Unassigned
		if i < len(candidate) {
			cand = candidate[i]
		}
		prio := p.Priorities[st.ID] > 0

		blocked := make([]string, 0)
		allowed := make([]int, 0, len(p.Sections))
		for s := range p.Sections {
			if !usable[s] {
				continue
			}
			courseID := p.Sections[s].CourseID
			if opts.EnforcePrerequisites && !p.Prerequisites.Satisfied(st.ID, courseID) {
				blocked = append(blocked, courseID)
				continue
			}
			allowed = append(allowed, s)
		}

		key := fmt.Sprintf("%d|%t|%s", cand, prio, strings.Join(dedupSorted(blocked), ","))
		g, ok := groups[key]
		if !ok {
			g = &repairGroup{candidate: cand, priority: prio, allowed: allowed}
			groups[key] = g
			order = append(order, key)
		}
		g.members = append(g.members, i)
	}

	// source, sink, one node per group, one node per section
	graph := newFlowGraph(2 + len(order) + len(p.Sections))
	model := &repairModel{graph: graph, source: 0, sink: 1, capacity: capacity, unassignable: unassignable}
	sectionNode := func(s int) int { return 2 + len(order) + s }

	matchWeight := int64(2*len(p.Students) + 1)
	for gi, key := range order {
		g := groups[key]
		g.node = 2 + gi
		size := int64(len(g.members))
		graph.addEdge(model.source, g.node, size, 0)

		fill := int64(1)
		if g.priority {
			fill = 2
		}
		for _, s := range g.allowed {
			cost := -fill
			if s == g.candidate {
				cost -= matchWeight
			}
			idx := graph.addEdge(g.node, sectionNode(s), size, cost)
			g.edges = append(g.edges, groupEdge{section: s, index: idx})
		}
		model.groups = append(model.groups, g)
	}
	for s := range p.Sections {
		if usable[s] {
			graph.addEdge(sectionNode(s), model.sink, capacity[s], 0)
		}
	}

	return model, nil
}

func dedupSorted(in []string) []string {
	if len(in) < 2 {
		return in
	}
	sort.Strings(in)
	out := in[:1]
	for _, v := range in[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// decode distributes group flow onto members. Members are taken in cohort order, so the outcome
// is deterministic; the candidate section is filled first.
func (m *repairModel) decode(p *Problem) (Individual, int) {
	out := p.EmptyIndividual()
	matched := 0
	for _, g := range m.groups {
		edges := append([]groupEdge(nil), g.edges...)
		sort.SliceStable(edges, func(i, j int) bool {
			return edges[i].section == g.candidate && edges[j].section != g.candidate
		})
		size := int64(len(g.members))
		next := 0
		for _, e := range edges {
			flow := m.graph.flowOn(g.node, e.index, size)
			for ; flow > 0 && next < len(g.members); flow-- {
				out[g.members[next]] = e.section
				if e.section == g.candidate {
					matched++
				}
				next++
			}
		}
	}
	return out, matched
}

// RepairSolver projects a candidate onto the feasible region: at most one section per student,
// section capacity respected, no section without available faculty.
type RepairSolver struct {
	budget time.Duration
	logger *zap.Logger
}

// NewRepairSolver constructs a solver bounded by budget per solve.
func NewRepairSolver(budget time.Duration, logger *zap.Logger) *RepairSolver {
	if budget <= 0 {
		budget = defaultSolverBudget
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepairSolver{budget: budget, logger: logger}
}

// Solve maximises the number of students kept on their candidate section and then fills the
// remaining seats, preferring priority students. When the budget runs out with a partial
// solution the incumbent is returned as feasible; with nothing found, or for an invalid model,
// every student is unassigned and the status is infeasible. Cancelling ctx returns ctx.Err().
func (r *RepairSolver) Solve(ctx context.Context, p *Problem, candidate Individual, opts RepairOptions) (RepairResult, error) {
	start := time.Now()
	result := RepairResult{Status: RepairStatusOptimal}

	model, err := buildRepairModel(p, candidate, opts)
	if err != nil {
		r.logger.Warn("repair model rejected", zap.Error(err))
		result.Status = RepairStatusInfeasible
		result.Reason = err.Error()
		result.Assignments = p.Mapping(p.EmptyIndividual())
		result.Duration = time.Since(start)
		return result, nil
	}
	result.Unassignable = model.unassignable

	if len(p.Students) == 0 {
		result.Assignments = map[string]*string{}
		result.Duration = time.Since(start)
		return result, nil
	}

	outcome, err := model.graph.minCostFlow(ctx, model.source, model.sink, start.Add(r.budget))
	if err != nil {
		return RepairResult{}, err
	}

	switch {
	case outcome.complete:
		result.Status = RepairStatusOptimal
	case outcome.flow > 0:
		result.Status = RepairStatusFeasible
	default:
		result.Status = RepairStatusInfeasible
		result.Reason = "time budget exhausted"
		result.Assignments = p.Mapping(p.EmptyIndividual())
		result.Duration = time.Since(start)
		r.logger.Warn("repair budget exhausted without a solution", zap.Duration("budget", r.budget))
		return result, nil
	}

	final, matched := model.decode(p)
	result.Assignments = p.Mapping(final)
	result.Matched = matched
	result.Assigned = int(outcome.flow)
	result.Duration = time.Since(start)

	r.logger.Debug("repair solved",
		zap.String("status", result.Status),
		zap.Int("students", len(p.Students)),
		zap.Int("groups", len(model.groups)),
		zap.Int("matched", result.Matched),
		zap.Int("assigned", result.Assigned),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}
