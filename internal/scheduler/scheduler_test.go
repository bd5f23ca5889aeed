package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/timetable"
)

func newPrototype(t *testing.T, rooms int, classes ...*domain.CourseClass) *timetable.Schedule {
	t.Helper()

	cat := &domain.Catalogue{Days: 5, DayHours: 8}
	for i := 0; i < rooms; i++ {
		cat.Rooms = append(cat.Rooms, &domain.Room{ID: i, Name: fmt.Sprintf("R%d", i), Seats: 30})
	}
	for i, cc := range classes {
		cc.ID = i
		cat.Classes = append(cat.Classes, cc)
	}

	prototype, err := timetable.NewPrototype(cat)
	require.NoError(t, err)
	return prototype
}

func mixedPrototype(t *testing.T) *timetable.Schedule {
	return newPrototype(t, 2,
		&domain.CourseClass{ProfessorID: 1, GroupIDs: []int{1}, Duration: 2, Seats: 20},
		&domain.CourseClass{ProfessorID: 2, GroupIDs: []int{1, 2}, Duration: 3, Seats: 40},
		&domain.CourseClass{ProfessorID: 1, GroupIDs: []int{2}, Duration: 1, LabRequired: true, Seats: 10},
		&domain.CourseClass{ProfessorID: 3, GroupIDs: []int{3}, Duration: 4, Seats: 25},
	)
}

func testParameters(size int) Parameters {
	p := DefaultParameters()
	p.PopulationSize = size
	p.MaxGenerations = 50
	return p
}

// recordingStrategy 不做任何进化，只记录调用
type recordingStrategy struct {
	size     int
	reforms  int
	replaced [][]*timetable.Schedule
}

func (r *recordingStrategy) Initialize(pop []*timetable.Schedule, positions [][]float64) {}

func (r *recordingStrategy) Crossing(rng timetable.Random, pop []*timetable.Schedule) []*timetable.Schedule {
	return nil
}

func (r *recordingStrategy) Replacement(rng timetable.Random, generation int, pop []*timetable.Schedule) []*timetable.Schedule {
	next := append([]*timetable.Schedule(nil), pop[:r.size]...)
	r.replaced = append(r.replaced, next)
	return next
}

func (r *recordingStrategy) Reform() {
	r.reforms++
}

func TestParametersValidate(t *testing.T) {
	valid := DefaultParameters()
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		modify func(p *Parameters)
	}{
		{"population too small", func(p *Parameters) { p.PopulationSize = 1 }},
		{"no generations", func(p *Parameters) { p.MaxGenerations = 0 }},
		{"negative repeat", func(p *Parameters) { p.MaxRepeat = -1 }},
		{"no crossover points", func(p *Parameters) { p.NumberOfCrossoverPoints = 0 }},
		{"no mutation size", func(p *Parameters) { p.MutationSize = 0 }},
		{"crossover probability above 100", func(p *Parameters) { p.CrossoverProbability = 101 }},
		{"negative mutation probability", func(p *Parameters) { p.MutationProbability = -1 }},
		{"unknown crossover mode", func(p *Parameters) { p.CrossoverMode = "uniform" }},
		{"negative scale factor", func(p *Parameters) { p.ScaleFactor = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParameters()
			tt.modify(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParameters)
		})
	}
}

func TestNewParametersDefaultsCrossoverMode(t *testing.T) {
	p := NewParameters(domain.OptimizerParameters{PopulationSize: 10, MaxGenerations: 20})
	assert.Equal(t, CrossoverKPoint, p.CrossoverMode)
	assert.Equal(t, 10, p.PopulationSize)
	assert.Equal(t, 20, p.MaxGenerations)
}

func TestReplacementOrdersFrontsByFitness(t *testing.T) {
	prototype := newPrototype(t, 1,
		&domain.CourseClass{ProfessorID: 1, GroupIDs: []int{1}, Duration: 1},
		&domain.CourseClass{ProfessorID: 1, GroupIDs: []int{1}, Duration: 1},
	)
	conflicted := prototype.MakeEmpty()
	conflicted.ApplyPositions([]float64{0, 0, 0, 0, 0, 0})
	clean := prototype.MakeEmpty()
	clean.ApplyPositions([]float64{0, 0, 0, 0, 0, 1})

	params := testParameters(2)
	engine := NewNSGA(&params)
	next := engine.Replacement(nil, 0, []*timetable.Schedule{conflicted, conflicted.Clone(), clean, conflicted.Clone()})

	require.Len(t, next, 2)
	assert.Same(t, clean, next[0])
	assert.Equal(t, 0, next[0].Rank())
	assert.Equal(t, 1, next[1].Rank())
}

func TestReplacementKeepsPopulationSize(t *testing.T) {
	prototype := mixedPrototype(t)
	rng := rand.New(rand.NewSource(42))

	params := testParameters(10)
	engine := NewNSGA(&params)

	pop := make([]*timetable.Schedule, 25)
	for i := range pop {
		pop[i], _ = prototype.MakeRandom(rng, nil)
	}

	next := engine.Replacement(rng, 0, pop)
	require.Len(t, next, 10)

	best := 0.0
	for _, s := range pop {
		best = max(best, s.Fitness())
	}
	assert.Equal(t, best, next[0].Fitness())
	for i := 1; i < len(next); i++ {
		assert.GreaterOrEqual(t, next[i].Rank(), next[i-1].Rank())
	}
}

func TestCrossingProducesOffspring(t *testing.T) {
	prototype := mixedPrototype(t)
	rng := rand.New(rand.NewSource(42))

	pop := make([]*timetable.Schedule, 6)
	for i := range pop {
		pop[i], _ = prototype.MakeRandom(rng, nil)
	}

	params := testParameters(6)
	assert.Len(t, NewNSGA(&params).Crossing(rng, pop), 6)

	params.CrossoverMode = CrossoverDifferential
	assert.Len(t, NewNSGA(&params).Crossing(rng, pop), 6)
}

func TestReformRaisesCrossoverThenMutation(t *testing.T) {
	params := testParameters(4)
	params.CrossoverProbability = 94
	params.MutationProbability = 29
	engine := NewNSGA(&params)

	engine.Reform()
	assert.Equal(t, 95.0, params.CrossoverProbability)
	assert.Equal(t, 29.0, params.MutationProbability)

	engine.Reform()
	assert.Equal(t, 95.0, params.CrossoverProbability)
	assert.Equal(t, 30.0, params.MutationProbability)

	engine.Reform()
	assert.Equal(t, 95.0, params.CrossoverProbability)
	assert.Equal(t, 30.0, params.MutationProbability)
}

func TestQPSOAlphaAnneals(t *testing.T) {
	params := testParameters(4)
	params.MaxGenerations = 100
	q := NewQPSO(NewNSGA(&params), &params)

	assert.InDelta(t, 0.96, q.alpha(0), 1e-12)
	assert.InDelta(t, 0.73, q.alpha(50), 1e-12)
	assert.InDelta(t, 0.5, q.alpha(100), 1e-12)
	assert.Greater(t, q.alpha(10), q.alpha(11))
}

func TestQPSOInitializeAllocatesPerSlot(t *testing.T) {
	prototype := mixedPrototype(t)
	rng := rand.New(rand.NewSource(42))

	params := testParameters(5)
	q := NewQPSO(&recordingStrategy{size: 5}, &params)

	pop := make([]*timetable.Schedule, 5)
	positions := make([][]float64, 5)
	for i := range pop {
		pop[i], positions[i] = prototype.MakeRandom(rng, []float64{})
	}
	q.Initialize(pop, positions)

	assert.Equal(t, prototype.PositionLength(), q.chromlen)
	assert.Len(t, q.pBestScore, 5)
	require.Len(t, q.pBestPosition, 5)
	require.Len(t, q.currentPosition, 5)
	for i := range pop {
		assert.Equal(t, positions[i], q.pBestPosition[i])
		assert.Equal(t, positions[i], q.currentPosition[i])
		assert.Equal(t, pop[i].Fitness(), q.pBestScore[i])
	}
	require.NotNil(t, q.gBestTrial)
	for _, s := range pop {
		assert.False(t, s.Dominates(q.gBestTrial))
	}
}

func TestQPSOGuardNeverAdoptsDominatedPosition(t *testing.T) {
	prototype := mixedPrototype(t)
	rng := rand.New(rand.NewSource(7))

	const size = 8
	params := testParameters(size)
	inner := &recordingStrategy{size: size}
	q := NewQPSO(inner, &params)

	pop := make([]*timetable.Schedule, size)
	positions := make([][]float64, size)
	for i := range pop {
		pop[i], positions[i] = prototype.MakeRandom(rng, []float64{})
	}
	q.Initialize(pop, positions)

	for gen := 0; gen < 20; gen++ {
		before := make([]*timetable.Schedule, size)
		for i, s := range pop {
			before[i] = s.Clone()
		}

		pop = q.Replacement(rng, gen, pop)
		require.Len(t, pop, size)

		for i, after := range pop {
			if after.Dominates(before[i]) {
				continue
			}
			// 没有采用新位置时，槽中的染色体和位置都保持原样
			assert.Equal(t, before[i].Reservations(), after.Reservations())
			current := make([]float64, after.PositionLength())
			after.ExtractPositions(current)
			assert.Equal(t, current, q.currentPosition[i])
		}
	}
}

func TestOptimizerConvergesOnTrivialCatalogue(t *testing.T) {
	prototype := newPrototype(t, 1,
		&domain.CourseClass{ProfessorID: 1, GroupIDs: []int{1}, Duration: 1},
		&domain.CourseClass{ProfessorID: 2, GroupIDs: []int{2}, Duration: 1},
	)

	for _, mode := range []string{CrossoverKPoint, CrossoverDifferential} {
		t.Run(mode, func(t *testing.T) {
			params := testParameters(10)
			params.CrossoverMode = mode
			o, err := New(prototype, params, WithRandom(rand.New(rand.NewSource(42))))
			require.NoError(t, err)

			result, err := o.Run(context.Background())
			require.NoError(t, err)
			assert.True(t, result.Converged)
			assert.LessOrEqual(t, result.Generations, 50)
			assert.InDelta(t, 1.0, result.Best.Fitness(), 1e-12)

			reservations := result.Reservations()
			require.Len(t, reservations, 2)
			assert.NotEqual(t,
				[2]int{reservations[0].Day, reservations[0].StartTime},
				[2]int{reservations[1].Day, reservations[1].StartTime})
		})
	}
}

func TestOptimizerReportsEveryGeneration(t *testing.T) {
	params := testParameters(6)
	params.MaxGenerations = 5
	params.MinFitness = 2

	var generations []int
	reporter := ReporterFunc(func(fitness float64, generation int) {
		generations = append(generations, generation)
	})

	o, err := New(mixedPrototype(t), params,
		WithRandom(rand.New(rand.NewSource(42))),
		WithReporter(reporter),
	)
	require.NoError(t, err)

	result, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Converged)
	assert.Equal(t, 5, result.Generations)
	assert.Equal(t, []int{1, 2, 3, 4}, generations)
}

func TestOptimizerReformsOnStagnation(t *testing.T) {
	prototype := newPrototype(t, 1, &domain.CourseClass{ProfessorID: 1, GroupIDs: []int{1}, Duration: 1})

	params := testParameters(3)
	params.MaxGenerations = 5
	params.MinFitness = 2
	params.MaxRepeat = 0

	inner := &recordingStrategy{size: 3}
	o, err := New(prototype, params,
		WithRandom(rand.New(rand.NewSource(42))),
		WithStrategy(func(*Parameters) Strategy { return inner }),
	)
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	require.NoError(t, err)
	// 第 1 代记录最优值，第 2、3、4 代停滞
	assert.Equal(t, 3, inner.reforms)
}

func TestOptimizerStopsWhenCancelled(t *testing.T) {
	o, err := New(mixedPrototype(t), testParameters(4), WithRandom(rand.New(rand.NewSource(42))))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := o.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 0, result.Generations)
	assert.NotNil(t, result.Best)
}

func TestNewRejectsInvalidParameters(t *testing.T) {
	_, err := New(mixedPrototype(t), testParameters(1))
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = New(nil, testParameters(4))
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestConsoleReporterFormat(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleReporter(&buf).Report(0.5, 3)
	assert.Equal(t, "Fitness: 0.500000\tGeneration: 3\r", buf.String())
}
