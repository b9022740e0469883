package engine

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/section-allocator/internal/models"
)

func newOptimizer(t *testing.T, cfg GeneticConfig) *GeneticOptimizer {
	t.Helper()
	g, err := NewGeneticOptimizer(cfg, nil)
	require.NoError(t, err)
	return g
}

func preferenceProblem() *Problem {
	sections := []models.Section{
		newSection("X1", "CS101", "A", "08:00", 5, "F1"),
		newSection("X2", "CS101", "B", "10:00", 5, "F1"),
		newSection("X3", "CS101", "C", "13:00", 5, "F2"),
	}
	students := newStudents(6)
	p := NewProblem(students, sections)
	prefs := make([]models.Preference, 0, len(students))
	for i, st := range students {
		prefs = append(prefs, models.Preference{ID: int64(i + 1), StudentID: st.ID, CourseID: "CS101", PreferredSections: "C"})
		p.Priorities[st.ID] = 0
	}
	p.Preferences = NewPreferenceIndex(prefs)
	return p
}

func TestGeneticDegenerateInput(t *testing.T) {
	g := newOptimizer(t, DefaultGeneticConfig())

	noSections := NewProblem(newStudents(3), nil)
	best, stats, err := g.Run(context.Background(), noSections, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, Individual{Unassigned, Unassigned, Unassigned}, best)
	assert.Zero(t, stats.Generations)

	noStudents := NewProblem(nil, []models.Section{newSection("X1", "CS101", "A", "10:00", 1, "F1")})
	best, _, err = g.Run(context.Background(), noStudents, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Empty(t, best)
}

func TestGeneticDeterministicForSeed(t *testing.T) {
	g := newOptimizer(t, GeneticConfig{PopulationSize: 12, Generations: 15, Workers: 3})
	p := preferenceProblem()

	a, statsA, err := g.Run(context.Background(), p, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	b, statsB, err := g.Run(context.Background(), p, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, statsA.BestFitness, statsB.BestFitness)
	assert.Equal(t, 15, statsA.Generations)
	assert.Equal(t, 16*12, statsA.Evaluations)
}

func TestGeneticFindsPreferredSections(t *testing.T) {
	g := newOptimizer(t, DefaultGeneticConfig())
	p := preferenceProblem()

	best, stats, err := g.Run(context.Background(), p, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	require.Len(t, best, len(p.Students))

	hits := 0
	for _, gene := range best {
		require.True(t, gene >= 0 && gene < len(p.Sections))
		if p.Sections[gene].Code == "C" {
			hits++
		}
	}
	// elitism keeps the best seen individual, and 60 generations over 6 genes converge
	assert.GreaterOrEqual(t, hits, 5)
	assert.GreaterOrEqual(t, stats.BestFitness, 10.0)
}

func TestGeneticNegativePriorityMayStayUnassigned(t *testing.T) {
	g := newOptimizer(t, GeneticConfig{PopulationSize: 10, Generations: 0, UnassignProbability: 1})
	p := NewProblem(newStudents(4), []models.Section{newSection("X1", "CS101", "A", "10:00", 1, "F1")})
	for _, st := range p.Students {
		p.Priorities[st.ID] = -1
	}

	best, _, err := g.Run(context.Background(), p, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	assert.Equal(t, p.EmptyIndividual(), best)
}

func TestGeneticCancelled(t *testing.T) {
	g := newOptimizer(t, DefaultGeneticConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := g.Run(ctx, preferenceProblem(), rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGeneticRequiresRandomSource(t *testing.T) {
	g := newOptimizer(t, DefaultGeneticConfig())
	_, _, err := g.Run(context.Background(), preferenceProblem(), nil)
	assert.Error(t, err)
}

func TestNewGeneticOptimizerRejectsWeightOrder(t *testing.T) {
	_, err := NewGeneticOptimizer(GeneticConfig{Weights: FitnessWeights{Preference: 5, Priority: 1, Demand: 0.1}}, nil)
	assert.Error(t, err)
}

func TestReoptimizeProfile(t *testing.T) {
	cfg := ReoptimizeGeneticConfig()
	assert.Equal(t, 20, cfg.PopulationSize)
	assert.Equal(t, 20, cfg.Generations)
	assert.Equal(t, 2, cfg.EliteCount)
	assert.Equal(t, 0.15, cfg.MutationRate)
}

func TestPickParentsDistinct(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 500; i++ {
		a, b := pickParents(10, rng)
		require.NotEqual(t, a, b)
		require.True(t, a >= 0 && a < 10 && b >= 0 && b < 10)
	}
	a, b := pickParents(1, rng)
	assert.Equal(t, 0, a)
	assert.Equal(t, 0, b)
}

func TestCrossoverSinglePoint(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	p1 := Individual{0, 0, 0, 0, 0}
	p2 := Individual{1, 1, 1, 1, 1}

	for i := 0; i < 100; i++ {
		child := crossover(p1, p2, rng)
		cut := 0
		for cut < len(child) && child[cut] == 0 {
			cut++
		}
		require.True(t, cut >= 1 && cut <= len(child)-1, "cut %d", cut)
		for _, gene := range child[cut:] {
			require.Equal(t, 1, gene)
		}
	}

	single := crossover(Individual{2}, Individual{3}, rng)
	assert.Equal(t, Individual{2}, single)
}

func TestMutateUsesDefaultRateAndCopies(t *testing.T) {
	g := newOptimizer(t, GeneticConfig{DefaultMutationRate: 1})
	ind := Individual{Unassigned, Unassigned, Unassigned}

	out := g.Mutate(ind, 4, 0, rand.New(rand.NewSource(1)))
	assert.Equal(t, Individual{Unassigned, Unassigned, Unassigned}, ind)
	for _, gene := range out {
		assert.True(t, gene >= 0 && gene < 4)
	}

	untouched := g.Mutate(ind, 0, 1, rand.New(rand.NewSource(1)))
	assert.Equal(t, ind, untouched)
}
