package service

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/section-allocator/internal/dto"
	"github.com/noah-isme/section-allocator/internal/engine"
	"github.com/noah-isme/section-allocator/internal/models"
	"github.com/noah-isme/section-allocator/pkg/config"
	appErrors "github.com/noah-isme/section-allocator/pkg/errors"
	"github.com/noah-isme/section-allocator/pkg/logger"
)

const runStatusFailed = "failed"

type snapshotReader interface {
	Load(ctx context.Context, scope models.SnapshotScope) (*models.Snapshot, error)
}

type assignmentWriter interface {
	SaveBatch(ctx context.Context, rows []models.Assignment) error
	ReplaceForStudents(ctx context.Context, studentIDs []string, rows []models.Assignment) error
}

type candidateSearcher interface {
	Run(ctx context.Context, p *engine.Problem, rng *rand.Rand) (engine.Individual, engine.SearchStats, error)
}

type repairer interface {
	Solve(ctx context.Context, p *engine.Problem, candidate engine.Individual, opts engine.RepairOptions) (engine.RepairResult, error)
}

type forecastInvalidator interface {
	Invalidate(ctx context.Context, semester string) error
}

// AllocationConfig governs orchestrator behaviour.
type AllocationConfig struct {
	SemesterLabel         string
	RunTimeout            time.Duration
	Seed                  int64
	CapacityMode          string
	EnforcePrerequisites  bool
	VerifyAfterSolve      bool
	MaxReoptimizeStudents int
	GuardWeight           int64
}

// AllocationConfigFromScheduler maps scheduler settings onto the orchestrator config.
func AllocationConfigFromScheduler(cfg config.SchedulerConfig) AllocationConfig {
	return AllocationConfig{
		SemesterLabel:         cfg.SemesterLabel,
		RunTimeout:            cfg.RunTimeout,
		Seed:                  cfg.Seed,
		CapacityMode:          cfg.CapacityMode,
		EnforcePrerequisites:  cfg.EnforcePrerequisites,
		VerifyAfterSolve:      cfg.VerifyAfterSolve,
		MaxReoptimizeStudents: cfg.MaxReoptimizeStudents,
	}
}

// AllocationService runs the eligibility, search, repair and persist pipeline.
type AllocationService struct {
	snapshots      snapshotReader
	assignments    assignmentWriter
	evaluator      *engine.Evaluator
	fullSearch     candidateSearcher
	targetedSearch candidateSearcher
	solver         repairer
	forecaster     DemandForecaster
	metrics        *MetricsService
	validator      *validator.Validate
	logger         *zap.Logger
	cfg            AllocationConfig
	guard          *runGuard
	now            func() time.Time
}

// NewAllocationService wires allocation dependencies.
func NewAllocationService(
	snapshots snapshotReader,
	assignments assignmentWriter,
	evaluator *engine.Evaluator,
	fullSearch candidateSearcher,
	targetedSearch candidateSearcher,
	solver repairer,
	forecaster DemandForecaster,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg AllocationConfig,
) *AllocationService {
	if evaluator == nil {
		evaluator = engine.NewEvaluator(engine.DefaultEligibilityConfig())
	}
	if targetedSearch == nil {
		targetedSearch = fullSearch
	}
	if forecaster == nil {
		forecaster = ZeroDemandForecaster{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SemesterLabel == "" {
		cfg.SemesterLabel = "Spring"
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}
	if cfg.CapacityMode != config.CapacityModeNominal {
		cfg.CapacityMode = config.CapacityModeRemaining
	}
	return &AllocationService{
		snapshots:      snapshots,
		assignments:    assignments,
		evaluator:      evaluator,
		fullSearch:     fullSearch,
		targetedSearch: targetedSearch,
		solver:         solver,
		forecaster:     forecaster,
		metrics:        metrics,
		validator:      validate,
		logger:         logger,
		cfg:            cfg,
		guard:          newRunGuard(cfg.GuardWeight),
		now:            time.Now,
	}
}

// solveOutcome carries the search and repair stages of one run.
type solveOutcome struct {
	assignments map[string]*string
	search      engine.SearchStats
	repair      *engine.RepairResult
}

// Generate allocates every eligible student against the full section catalog and appends one
// assignment row per eligible student. Students outside the cohort who still hold a seat get a
// not_assigned row in the same batch so the seat is released.
func (s *AllocationService) Generate(ctx context.Context, req dto.GenerateRequest) (*dto.AllocationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generate payload")
	}

	semester := req.Semester
	if semester == "" {
		semester = s.cfg.SemesterLabel
	}
	seed := s.seed(req.Seed)
	runID := uuid.NewString()
	mode := string(models.RunModeGenerate)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	release, err := s.guard.acquireAll(ctx)
	if err != nil {
		return nil, s.runError(err, "wait for allocation slot")
	}
	defer release()

	log := logger.WithRun(ctx, s.logger, runID, mode)
	start := s.now()
	log.Info("allocation run started", zap.String("semester", semester), zap.Int64("seed", seed))

	snap, err := s.snapshots.Load(ctx, models.SnapshotScope{})
	if err != nil {
		s.metrics.RecordRun(mode, runStatusFailed, s.now().Sub(start), 0, 0)
		return nil, s.runError(err, "load allocation snapshot")
	}

	eligible, ineligible, priorities := s.evaluator.Partition(snap.Students)
	problem := s.buildProblem(snap, eligible, priorities)

	result := &dto.AllocationResult{
		RunID:      runID,
		Mode:       mode,
		Semester:   semester,
		Seed:       seed,
		Ineligible: ineligible,
	}

	var outcome solveOutcome
	if problem.Degenerate() {
		outcome.assignments = problem.Mapping(problem.EmptyIndividual())
		result.Status = dto.RunStatusEmpty
	} else {
		if req.RefreshDemand {
			s.refreshDemand(ctx, log, semester)
		}
		problem.Demand, result.DemandFallback = s.demandWeights(ctx, log, semester, problem.Sections)

		outcome, err = s.solve(ctx, log, mode, problem, s.fullSearch, seed, engine.RepairOptions{EnforcePrerequisites: s.cfg.EnforcePrerequisites})
		if err != nil {
			s.metrics.RecordRun(mode, runStatusFailed, s.now().Sub(start), 0, 0)
			return nil, s.runError(err, "solve allocation")
		}
		result.Status = statusFromRepair(outcome.repair)
	}

	if err := s.verify(log, result, outcome.assignments, problem, nil); err != nil {
		s.metrics.RecordRun(mode, runStatusFailed, s.now().Sub(start), 0, 0)
		return nil, err
	}

	rows := s.assignmentRows(runID, problem, outcome.assignments)
	rows = append(rows, s.releasedSeatRows(runID, snap, problem)...)
	if err := s.assignments.SaveBatch(ctx, rows); err != nil {
		log.Error("persist assignments failed", zap.Error(err))
		s.metrics.RecordRun(mode, runStatusFailed, s.now().Sub(start), 0, 0)
		return nil, appErrors.WrapAs(err, appErrors.ErrPersistence, appErrors.ErrPersistence.Message)
	}

	s.finish(log, result, outcome, start)
	return result, nil
}

// Reoptimize recomputes assignments for the affected students only. Rows of every other student
// are untouched; in remaining capacity mode their seats are subtracted from section capacity and
// the run excludes every other run. In nominal mode runs over disjoint students proceed together.
func (s *AllocationService) Reoptimize(ctx context.Context, req dto.ReoptimizeRequest) (*dto.AllocationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reoptimize payload")
	}

	mode := string(models.RunModeReoptimize)
	affected := dedupeIDs(req.AffectedStudentIDs)
	if len(affected) == 0 {
		return &dto.AllocationResult{
			Mode:                 mode,
			Status:               dto.RunStatusEmpty,
			Assignments:          map[string]*string{},
			Ineligible:           []string{},
			UnassignableSections: []string{},
		}, nil
	}
	if s.cfg.MaxReoptimizeStudents > 0 && len(affected) > s.cfg.MaxReoptimizeStudents {
		return nil, appErrors.Clone(appErrors.ErrValidation, "too many affected students")
	}

	seed := s.seed(req.Seed)
	runID := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	// Remaining capacity reads everyone else's seats; hold the whole guard from snapshot to persist.
	acquire := func(ctx context.Context) (func(), error) { return s.guard.acquireStudents(ctx, affected) }
	if s.cfg.CapacityMode == config.CapacityModeRemaining {
		acquire = s.guard.acquireAll
	}
	release, err := acquire(ctx)
	if err != nil {
		return nil, s.runError(err, "wait for affected students")
	}
	defer release()

	log := logger.WithRun(ctx, s.logger, runID, mode)
	start := s.now()
	log.Info("allocation run started", zap.Int("affected", len(affected)), zap.Int64("seed", seed))

	snap, err := s.snapshots.Load(ctx, models.SnapshotScope{StudentIDs: affected})
	if err != nil {
		s.metrics.RecordRun(mode, runStatusFailed, s.now().Sub(start), 0, 0)
		return nil, s.runError(err, "load allocation snapshot")
	}

	known, unknown := splitKnown(affected, snap.Students)
	eligible, ineligible, priorities := s.evaluator.Partition(snap.Students)
	problem := s.buildProblem(snap, eligible, priorities)

	result := &dto.AllocationResult{
		RunID:           runID,
		Mode:            mode,
		Seed:            seed,
		Ineligible:      ineligible,
		UnknownStudents: unknown,
	}
	if len(unknown) > 0 {
		log.Warn("unknown students ignored", zap.Strings("student_ids", unknown))
	}

	var capacity map[string]int
	if s.cfg.CapacityMode == config.CapacityModeRemaining {
		capacity = remainingCapacity(snap, known)
	}

	var outcome solveOutcome
	if problem.Degenerate() {
		outcome.assignments = problem.Mapping(problem.EmptyIndividual())
		result.Status = dto.RunStatusEmpty
	} else {
		opts := engine.RepairOptions{CapacityOverride: capacity, EnforcePrerequisites: s.cfg.EnforcePrerequisites}
		outcome, err = s.solve(ctx, log, mode, problem, s.targetedSearch, seed, opts)
		if err != nil {
			s.metrics.RecordRun(mode, runStatusFailed, s.now().Sub(start), 0, 0)
			return nil, s.runError(err, "solve allocation")
		}
		result.Status = statusFromRepair(outcome.repair)
	}

	if err := s.verify(log, result, outcome.assignments, problem, capacity); err != nil {
		s.metrics.RecordRun(mode, runStatusFailed, s.now().Sub(start), 0, 0)
		return nil, err
	}

	if len(known) > 0 {
		rows := s.assignmentRows(runID, problem, outcome.assignments)
		if err := s.assignments.ReplaceForStudents(ctx, known, rows); err != nil {
			log.Error("replace assignments failed", zap.Error(err))
			s.metrics.RecordRun(mode, runStatusFailed, s.now().Sub(start), 0, 0)
			return nil, appErrors.WrapAs(err, appErrors.ErrPersistence, appErrors.ErrPersistence.Message)
		}
	}

	s.finish(log, result, outcome, start)
	return result, nil
}

func (s *AllocationService) buildProblem(snap *models.Snapshot, cohort []models.Student, priorities map[string]float64) *engine.Problem {
	problem := engine.NewProblem(cohort, snap.Sections)
	problem.Priorities = priorities
	problem.Preferences = engine.NewPreferenceIndex(snap.Preferences)
	problem.Faculty = snap.FacultyByID()
	if s.cfg.EnforcePrerequisites {
		problem.Prerequisites = engine.NewPrerequisiteIndex(snap.Courses, snap.Completed)
	}
	return problem
}

func (s *AllocationService) solve(ctx context.Context, log *zap.Logger, mode string, problem *engine.Problem, search candidateSearcher, seed int64, opts engine.RepairOptions) (solveOutcome, error) {
	rng := rand.New(rand.NewSource(seed))

	candidate, stats, err := search.Run(ctx, problem, rng)
	if err != nil {
		return solveOutcome{}, err
	}
	s.metrics.ObserveSearch(mode, stats.BestFitness, stats.Duration)
	log.Debug("search finished",
		zap.Int("generations", stats.Generations),
		zap.Float64("best_fitness", stats.BestFitness),
		zap.Duration("duration", stats.Duration),
	)

	repaired, err := s.solver.Solve(ctx, problem, candidate, opts)
	if err != nil {
		return solveOutcome{}, err
	}
	s.metrics.ObserveSolver(repaired.Status, repaired.Duration)
	if repaired.Status == engine.RepairStatusInfeasible {
		log.Warn("repair found no feasible allocation", zap.String("reason", repaired.Reason))
	}

	return solveOutcome{assignments: repaired.Assignments, search: stats, repair: &repaired}, nil
}

// demandWeights asks the forecaster for every course offered. Any failure yields zero demand for
// all courses.
func (s *AllocationService) demandWeights(ctx context.Context, log *zap.Logger, semester string, sections []models.Section) (map[string]float64, bool) {
	courses := make([]string, 0)
	seen := make(map[string]struct{})
	for _, sec := range sections {
		if _, ok := seen[sec.CourseID]; ok {
			continue
		}
		seen[sec.CourseID] = struct{}{}
		courses = append(courses, sec.CourseID)
	}
	sort.Strings(courses)

	demand := make(map[string]float64, len(courses))
	for _, courseID := range courses {
		value, err := s.forecaster.PredictDemand(ctx, courseID, semester)
		if err != nil {
			log.Warn("demand forecast unavailable, using zero demand", zap.String("course_id", courseID), zap.Error(err))
			s.metrics.RecordForecastFallback()
			return map[string]float64{}, true
		}
		demand[courseID] = value
	}
	return demand, false
}

func (s *AllocationService) refreshDemand(ctx context.Context, log *zap.Logger, semester string) {
	inv, ok := s.forecaster.(forecastInvalidator)
	if !ok {
		return
	}
	if err := inv.Invalidate(ctx, semester); err != nil {
		log.Warn("demand cache refresh failed", zap.Error(err))
	}
}

func (s *AllocationService) verify(log *zap.Logger, result *dto.AllocationResult, assignments map[string]*string, problem *engine.Problem, capacity map[string]int) error {
	if !s.cfg.VerifyAfterSolve {
		return nil
	}
	violations := engine.Verify(assignments, problem.Sections, problem.Faculty, capacity)
	if len(violations) == 0 {
		return nil
	}
	result.Violations = violations
	log.Error("allocation violates hard constraints", zap.Int("violations", len(violations)))
	return appErrors.Clone(appErrors.ErrInvariantBroken, violations[0].Kind+" on section "+violations[0].SectionID)
}

func (s *AllocationService) assignmentRows(runID string, problem *engine.Problem, assignments map[string]*string) []models.Assignment {
	createdAt := s.now().UTC()
	rows := make([]models.Assignment, 0, len(problem.Students))
	for _, student := range problem.Students {
		row := models.Assignment{
			ID:        uuid.NewString(),
			RunID:     runID,
			StudentID: student.ID,
			Status:    models.AssignmentStatusNotAssigned,
			CreatedAt: createdAt,
		}
		if sectionID := assignments[student.ID]; sectionID != nil {
			id := *sectionID
			row.SectionID = &id
			row.Status = models.AssignmentStatusAssigned
		}
		rows = append(rows, row)
	}
	return rows
}

// releasedSeatRows clears the seat of every student whose current row is assigned but who is not
// part of the cohort, such as students who became ineligible or left the catalog.
func (s *AllocationService) releasedSeatRows(runID string, snap *models.Snapshot, problem *engine.Problem) []models.Assignment {
	inCohort := make(map[string]struct{}, len(problem.Students))
	for _, st := range problem.Students {
		inCohort[st.ID] = struct{}{}
	}
	stale := make([]string, 0)
	for studentID, current := range snap.Current {
		if _, ok := inCohort[studentID]; ok || !current.IsAssigned() {
			continue
		}
		stale = append(stale, studentID)
	}
	sort.Strings(stale)

	createdAt := s.now().UTC()
	rows := make([]models.Assignment, 0, len(stale))
	for _, studentID := range stale {
		rows = append(rows, models.Assignment{
			ID:        uuid.NewString(),
			RunID:     runID,
			StudentID: studentID,
			Status:    models.AssignmentStatusNotAssigned,
			CreatedAt: createdAt,
		})
	}
	return rows
}

func (s *AllocationService) finish(log *zap.Logger, result *dto.AllocationResult, outcome solveOutcome, start time.Time) {
	result.Assignments = outcome.assignments
	result.Search = outcome.search
	result.UnassignableSections = []string{}
	if outcome.repair != nil {
		result.UnassignableSections = append(result.UnassignableSections, outcome.repair.Unassignable...)
		result.Solver = &dto.SolverSummary{
			Status:     outcome.repair.Status,
			Matched:    outcome.repair.Matched,
			Assigned:   outcome.repair.Assigned,
			DurationMs: outcome.repair.Duration.Milliseconds(),
			Reason:     outcome.repair.Reason,
		}
	}
	if result.Ineligible == nil {
		result.Ineligible = []string{}
	}

	assigned := 0
	for _, sectionID := range result.Assignments {
		if sectionID != nil {
			assigned++
		}
	}
	unassigned := len(result.Assignments) - assigned
	elapsed := s.now().Sub(start)

	s.metrics.RecordRun(result.Mode, result.Status, elapsed, assigned, unassigned)
	log.Info("allocation run finished",
		zap.String("status", result.Status),
		zap.Int("assigned", assigned),
		zap.Int("not_assigned", unassigned),
		zap.Int("ineligible", len(result.Ineligible)),
		zap.Duration("duration", elapsed),
	)
}

func (s *AllocationService) seed(requested int64) int64 {
	switch {
	case requested != 0:
		return requested
	case s.cfg.Seed != 0:
		return s.cfg.Seed
	default:
		return s.now().UnixNano()
	}
}

func (s *AllocationService) runError(err error, message string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return appErrors.WrapAs(err, appErrors.ErrRunCancelled, appErrors.ErrRunCancelled.Message)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	s.logger.Error(message, zap.Error(err))
	return appErrors.WrapAs(err, appErrors.ErrInternal, message)
}

func statusFromRepair(r *engine.RepairResult) string {
	if r != nil && r.Status == engine.RepairStatusInfeasible {
		return dto.RunStatusInfeasible
	}
	return dto.RunStatusCompleted
}

// remainingCapacity subtracts seats held by students outside affected from nominal capacity.
func remainingCapacity(snap *models.Snapshot, affected []string) map[string]int {
	exclude := make(map[string]struct{}, len(affected))
	for _, id := range affected {
		exclude[id] = struct{}{}
	}
	occupied := snap.OccupiedSeats(exclude)

	capacity := make(map[string]int, len(snap.Sections))
	for _, sec := range snap.Sections {
		left := sec.Capacity - occupied[sec.ID]
		if left < 0 {
			left = 0
		}
		capacity[sec.ID] = left
	}
	return capacity
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// splitKnown partitions requested IDs by whether the snapshot holds the student.
func splitKnown(requested []string, students []models.Student) ([]string, []string) {
	present := make(map[string]struct{}, len(students))
	for _, st := range students {
		present[st.ID] = struct{}{}
	}
	known := make([]string, 0, len(requested))
	unknown := make([]string, 0)
	for _, id := range requested {
		if _, ok := present[id]; ok {
			known = append(known, id)
		} else {
			unknown = append(unknown, id)
		}
	}
	return known, unknown
}
