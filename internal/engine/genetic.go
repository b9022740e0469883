package engine

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GeneticConfig tunes the heuristic search.
type GeneticConfig struct {
	PopulationSize int
	Generations    int
	EliteCount     int
	ParentPool     int
	// MutationRate applies to children produced during reproduction.
	MutationRate float64
	// DefaultMutationRate applies when Mutate is called with a non-positive rate.
	DefaultMutationRate float64
	// UnassignProbability leaves negative-priority students unassigned at initialisation.
	UnassignProbability float64
	Workers             int

	Weights FitnessWeights
	Window  EarlyMorningWindow
}

// DefaultGeneticConfig is the full-population profile.
func DefaultGeneticConfig() GeneticConfig {
	return GeneticConfig{
		PopulationSize:      30,
		Generations:         60,
		EliteCount:          2,
		ParentPool:          10,
		MutationRate:        0.15,
		DefaultMutationRate: 0.1,
		UnassignProbability: 0.3,
		Workers:             runtime.GOMAXPROCS(0),
		Weights:             DefaultFitnessWeights(),
		Window:              DefaultEarlyMorningWindow(),
	}
}

// ReoptimizeGeneticConfig is the smaller profile for targeted runs.
func ReoptimizeGeneticConfig() GeneticConfig {
	cfg := DefaultGeneticConfig()
	cfg.PopulationSize = 20
	cfg.Generations = 20
	return cfg
}

func (c GeneticConfig) normalize() GeneticConfig {
	def := DefaultGeneticConfig()
	if c.PopulationSize <= 0 {
		c.PopulationSize = def.PopulationSize
	}
	if c.Generations < 0 {
		c.Generations = 0
	}
	if c.EliteCount < 0 {
		c.EliteCount = 0
	}
	if c.EliteCount > c.PopulationSize {
		c.EliteCount = c.PopulationSize
	}
	if c.ParentPool <= 0 {
		c.ParentPool = def.ParentPool
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		c.MutationRate = def.MutationRate
	}
	if c.DefaultMutationRate <= 0 || c.DefaultMutationRate > 1 {
		c.DefaultMutationRate = def.DefaultMutationRate
	}
	if c.UnassignProbability < 0 || c.UnassignProbability > 1 {
		c.UnassignProbability = def.UnassignProbability
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.Weights == (FitnessWeights{}) {
		c.Weights = def.Weights
	}
	if c.Window == (EarlyMorningWindow{}) {
		c.Window = def.Window
	}
	return c
}

// SearchStats summarises one search run.
type SearchStats struct {
	Generations int           `json:"generations"`
	Evaluations int           `json:"evaluations"`
	BestFitness float64       `json:"bestFitness"`
	Duration    time.Duration `json:"durationNs"`
}

// GeneticOptimizer produces a warm-start candidate for the repair solver. It never enforces
// capacity or faculty constraints.
type GeneticOptimizer struct {
	cfg    GeneticConfig
	logger *zap.Logger
}

// NewGeneticOptimizer constructs the optimizer.
func NewGeneticOptimizer(cfg GeneticConfig, logger *zap.Logger) (*GeneticOptimizer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.normalize()
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	return &GeneticOptimizer{cfg: cfg, logger: logger}, nil
}

// Config returns the effective configuration.
func (g *GeneticOptimizer) Config() GeneticConfig {
	return g.cfg
}

type scored struct {
	ind   Individual
	score float64
}

// Run searches for the fittest individual. rng must not be shared with other goroutines.
func (g *GeneticOptimizer) Run(ctx context.Context, p *Problem, rng *rand.Rand) (Individual, SearchStats, error) {
	start := time.Now()
	stats := SearchStats{}
	if rng == nil {
		return nil, stats, fmt.Errorf("genetic optimizer requires a random source")
	}
	if p.Degenerate() {
		stats.Duration = time.Since(start)
		return p.EmptyIndividual(), stats, nil
	}

	fitness := newFitnessEvaluator(p, g.cfg.Weights, g.cfg.Window)
	population := g.initialPopulation(p, rng)

	for gen := 0; gen < g.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		ranked, err := g.rank(ctx, fitness, population)
		if err != nil {
			return nil, stats, err
		}
		stats.Evaluations += len(ranked)
		stats.Generations++
		population = g.nextGeneration(ranked, len(p.Sections), rng)
	}

	ranked, err := g.rank(ctx, fitness, population)
	if err != nil {
		return nil, stats, err
	}
	stats.Evaluations += len(ranked)
	stats.BestFitness = ranked[0].score
	stats.Duration = time.Since(start)

	g.logger.Debug("genetic search finished",
		zap.Int("students", len(p.Students)),
		zap.Int("sections", len(p.Sections)),
		zap.Int("generations", stats.Generations),
		zap.Float64("best_fitness", stats.BestFitness),
		zap.Duration("duration", stats.Duration),
	)

	return ranked[0].ind, stats, nil
}

func (g *GeneticOptimizer) initialPopulation(p *Problem, rng *rand.Rand) []Individual {
	population := make([]Individual, g.cfg.PopulationSize)
	for i := range population {
		ind := make(Individual, len(p.Students))
		for j, st := range p.Students {
			if p.Priorities[st.ID] < 0 && rng.Float64() < g.cfg.UnassignProbability {
				ind[j] = Unassigned
				continue
			}
			ind[j] = rng.Intn(len(p.Sections))
		}
		population[i] = ind
	}
	return population
}

// rank scores the population concurrently and sorts it by descending fitness. All scores are
// collected before sorting.
func (g *GeneticOptimizer) rank(ctx context.Context, fitness *fitnessEvaluator, population []Individual) ([]scored, error) {
	out := make([]scored, len(population))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)
	for i := range population {
		i := i
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			out[i] = scored{ind: population[i], score: fitness.score(population[i])}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out, nil
}

func (g *GeneticOptimizer) nextGeneration(ranked []scored, numSections int, rng *rand.Rand) []Individual {
	next := make([]Individual, 0, g.cfg.PopulationSize)
	for i := 0; i < g.cfg.EliteCount && i < len(ranked); i++ {
		next = append(next, ranked[i].ind)
	}

	pool := g.cfg.ParentPool
	if pool > len(ranked) {
		pool = len(ranked)
	}
	for len(next) < g.cfg.PopulationSize {
		a, b := pickParents(pool, rng)
		child := crossover(ranked[a].ind, ranked[b].ind, rng)
		mutateInPlace(child, numSections, g.cfg.MutationRate, rng)
		next = append(next, child)
	}
	return next
}

// pickParents draws two distinct indices uniformly from [0, pool). A pool of one yields the same index twice.
func pickParents(pool int, rng *rand.Rand) (int, int) {
	if pool < 2 {
		return 0, 0
	}
	a := rng.Intn(pool)
	b := rng.Intn(pool - 1)
	if b >= a {
		b++
	}
	return a, b
}

// crossover is single-point: genes before the cut come from p1, the rest from p2.
func crossover(p1, p2 Individual, rng *rand.Rand) Individual {
	n := len(p1)
	if n < 2 {
		return p1.Clone()
	}
	cut := rng.Intn(n-1) + 1
	child := make(Individual, n)
	copy(child[:cut], p1[:cut])
	copy(child[cut:], p2[cut:])
	return child
}

func mutateInPlace(ind Individual, numSections int, rate float64, rng *rand.Rand) {
	if numSections == 0 {
		return
	}
	for i := range ind {
		if rng.Float64() < rate {
			ind[i] = rng.Intn(numSections)
		}
	}
}

// Mutate returns a copy of ind where each gene is replaced by a uniformly random section with
// probability rate. A non-positive rate uses the configured default.
func (g *GeneticOptimizer) Mutate(ind Individual, numSections int, rate float64, rng *rand.Rand) Individual {
	if rate <= 0 {
		rate = g.cfg.DefaultMutationRate
	}
	out := ind.Clone()
	mutateInPlace(out, numSections, rate, rng)
	return out
}
