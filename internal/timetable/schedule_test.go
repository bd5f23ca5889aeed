package timetable

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
)

func newTestCatalogue(rooms int, days int, hours int, classes ...*domain.CourseClass) *domain.Catalogue {
	cat := &domain.Catalogue{Days: days, DayHours: hours}
	for i := 0; i < rooms; i++ {
		cat.Rooms = append(cat.Rooms, &domain.Room{ID: i, Name: fmt.Sprintf("R%d", i), Seats: 30})
	}
	for i, cc := range classes {
		cc.ID = i
		cat.Classes = append(cat.Classes, cc)
	}
	return cat
}

func mixedCatalogue() *domain.Catalogue {
	return newTestCatalogue(3, 5, 8,
		&domain.CourseClass{ProfessorID: 1, GroupIDs: []int{1}, Duration: 2, Seats: 20},
		&domain.CourseClass{ProfessorID: 2, GroupIDs: []int{1, 2}, Duration: 3, Seats: 40},
		&domain.CourseClass{ProfessorID: 1, GroupIDs: []int{2}, Duration: 1, LabRequired: true, Seats: 10},
		&domain.CourseClass{ProfessorID: 3, GroupIDs: []int{3}, Duration: 8, Seats: 25},
		&domain.CourseClass{ProfessorID: 2, GroupIDs: []int{3}, Duration: 4, Seats: 15},
	)
}

// assertConsistent 检查占用表和教学班表是否一致
func assertConsistent(t *testing.T, s *Schedule) {
	t.Helper()

	cat := s.catalogue
	occupied := make(map[int][]int)
	for cell, ids := range s.slots {
		for _, id := range ids {
			occupied[id] = append(occupied[id], cell)
		}
	}

	for id, cc := range cat.Classes {
		r := s.Reservation(id)
		require.GreaterOrEqual(t, r.Day, 0)
		require.Less(t, r.Day, cat.Days)
		require.GreaterOrEqual(t, r.Room, 0)
		require.Less(t, r.Room, cat.NumberOfRooms())
		require.GreaterOrEqual(t, r.Time, 0)
		require.LessOrEqual(t, r.Time+cc.Duration, cat.DayHours)

		expected := make([]int, 0, cc.Duration)
		for j := 0; j < cc.Duration; j++ {
			expected = append(expected, s.codec.Encode(Reservation{Day: r.Day, Room: r.Room, Time: r.Time + j}))
		}
		got := occupied[id]
		slices.Sort(got)
		require.Equal(t, expected, got, "class %d", id)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec(4, 12)
	seen := make(map[int]bool)
	for day := 0; day < 5; day++ {
		for room := 0; room < 4; room++ {
			for hour := 0; hour < 12; hour++ {
				r := Reservation{Day: day, Room: room, Time: hour}
				code := codec.Encode(r)
				assert.Equal(t, room+4*hour+4*12*day, code)
				assert.Equal(t, r, codec.Decode(code))
				assert.False(t, seen[code])
				seen[code] = true
			}
		}
	}
	assert.Len(t, seen, 5*4*12)
}

func TestNewPrototypeRejectsDegenerateCatalogue(t *testing.T) {
	tests := []struct {
		name string
		cat  *domain.Catalogue
	}{
		{"nil", nil},
		{"no rooms", newTestCatalogue(0, 5, 8, &domain.CourseClass{Duration: 1})},
		{"no classes", newTestCatalogue(1, 5, 8)},
		{"duration exceeds day", newTestCatalogue(1, 5, 8, &domain.CourseClass{Duration: 9})},
		{"zero duration", newTestCatalogue(1, 5, 8, &domain.CourseClass{Duration: 0})},
		{"zero days", newTestCatalogue(1, 0, 8, &domain.CourseClass{Duration: 1})},
		{"zero hours", newTestCatalogue(1, 5, 0, &domain.CourseClass{Duration: 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPrototype(tt.cat)
			assert.ErrorIs(t, err, ErrInvalidCatalogue)
		})
	}
}

func TestMakeRandomPopulatesEveryClass(t *testing.T) {
	prototype, err := NewPrototype(mixedCatalogue())
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 50; i++ {
		s, positions := prototype.MakeRandom(rng, make([]float64, 0))
		assertConsistent(t, s)
		require.Len(t, positions, s.PositionLength())

		extracted := make([]float64, s.PositionLength())
		s.ExtractPositions(extracted)
		assert.Equal(t, positions, extracted)
	}

	s, positions := prototype.MakeRandom(rng, nil)
	assert.Nil(t, positions)
	assertConsistent(t, s)
}

func TestExtractThenApplyIsIdempotent(t *testing.T) {
	prototype, err := NewPrototype(mixedCatalogue())
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 50; i++ {
		s, _ := prototype.MakeRandom(rng, nil)
		positions := make([]float64, s.PositionLength())
		s.ExtractPositions(positions)

		applied := prototype.MakeEmpty()
		applied.ApplyPositions(positions)
		assert.Equal(t, s.Reservations(), applied.Reservations())
		assert.Equal(t, s.Fitness(), applied.Fitness())
		assert.Equal(t, s.Criteria(), applied.Criteria())
		assertConsistent(t, applied)

		// 在已有的染色体上重新应用同一个向量也不应改变结果
		s.ApplyPositions(positions)
		assert.Equal(t, applied.Reservations(), s.Reservations())
		assertConsistent(t, s)
	}
}

func TestApplyPositionsFoldsArbitraryValues(t *testing.T) {
	cat := mixedCatalogue()
	prototype, err := NewPrototype(cat)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(3))

	special := []float64{-1e9, 1e18, -0.5, 37.3, math.NaN(), math.Inf(1), math.Inf(-1), -7, 0, 1e-300}
	s, _ := prototype.MakeRandom(rng, nil)
	for round := 0; round < 30; round++ {
		positions := make([]float64, s.PositionLength())
		for i := range positions {
			if round%2 == 0 {
				positions[i] = special[(i+round)%len(special)]
			} else {
				positions[i] = (rng.Float64() - 0.5) * 1e6
			}
		}
		s.ApplyPositions(positions)
		assertConsistent(t, s)
	}
}

func TestCalculateFitnessIsDeterministic(t *testing.T) {
	prototype, err := NewPrototype(mixedCatalogue())
	require.NoError(t, err)
	s, _ := prototype.MakeRandom(rand.New(rand.NewSource(11)), nil)

	fitness, criteria := s.Fitness(), s.Criteria()
	for i := 0; i < 5; i++ {
		s.CalculateFitness()
		assert.Equal(t, fitness, s.Fitness())
		assert.Equal(t, criteria, s.Criteria())
	}
}

func TestForcedConflictCollapsesFitness(t *testing.T) {
	cat := newTestCatalogue(1, 5, 8,
		&domain.CourseClass{ProfessorID: 1, GroupIDs: []int{1}, Duration: 1},
		&domain.CourseClass{ProfessorID: 1, GroupIDs: []int{1}, Duration: 1},
	)
	prototype, err := NewPrototype(cat)
	require.NoError(t, err)

	s := prototype.MakeEmpty()
	s.ApplyPositions([]float64{0, 0, 0, 0, 0, 0})
	assertConsistent(t, s)
	assert.Equal(t, 0.0, s.Fitness())
	assert.Equal(t, []bool{
		false, true, true, false, false,
		false, true, true, false, false,
	}, s.Criteria())

	// 分开放置后所有约束都满足，得分 10 / (2*5)
	s.ApplyPositions([]float64{0, 0, 0, 0, 0, 1})
	assertConsistent(t, s)
	assert.InDelta(t, 1.0, s.Fitness(), 1e-12)
	assert.Equal(t, 10, s.Satisfied())
}

func TestFitnessHalvesOnMissingSeatsAndComputers(t *testing.T) {
	cat := newTestCatalogue(1, 5, 8,
		&domain.CourseClass{ProfessorID: 1, GroupIDs: []int{1}, Duration: 1, Seats: 100, LabRequired: true},
	)
	prototype, err := NewPrototype(cat)
	require.NoError(t, err)

	s := prototype.MakeEmpty()
	s.ApplyPositions([]float64{0, 0, 0})
	// 1 -> 0.5 -> 0.25 -> 1.25 -> 2.25
	assert.InDelta(t, 2.25/5, s.Fitness(), 1e-12)
	assert.Equal(t, []bool{true, false, false, true, true}, s.Criteria())
}

func TestMutateKeepsOccupancyConsistent(t *testing.T) {
	prototype, err := NewPrototype(mixedCatalogue())
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(5))

	s, _ := prototype.MakeRandom(rng, nil)
	for i := 0; i < 100; i++ {
		s.Mutate(rng, 3, 100)
		assertConsistent(t, s)
	}

	before := s.Reservations()
	s.Mutate(rng, 3, 0)
	assert.Equal(t, before, s.Reservations())
}

func TestCrossoverPointsMarksExactlyK(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for k := 0; k <= 10; k++ {
		cp := crossoverPoints(rng, 10, k)
		cnt := 0
		for _, marked := range cp {
			if marked {
				cnt++
			}
		}
		assert.Equal(t, k, cnt)
	}

	// k 大于教学班数量时最多标记全部下标
	cp := crossoverPoints(rng, 3, 8)
	assert.Equal(t, []bool{true, true, true}, cp)
}

func TestCrossoverKPointCombinesParents(t *testing.T) {
	prototype, err := NewPrototype(mixedCatalogue())
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(13))

	for i := 0; i < 50; i++ {
		a, _ := prototype.MakeRandom(rng, nil)
		b, _ := prototype.MakeRandom(rng, nil)

		child := a.CrossoverKPoint(rng, b, 2, 100)
		assertConsistent(t, child)

		ra, rb, rc := a.Reservations(), b.Reservations(), child.Reservations()
		switches := 0
		from := -1
		for id := range rc {
			var src int
			switch {
			case rc[id] == ra[id] && rc[id] == rb[id]:
				continue
			case rc[id] == ra[id]:
				src = 0
			case rc[id] == rb[id]:
				src = 1
			default:
				t.Fatalf("class %d does not come from either parent", id)
			}
			if from >= 0 && src != from {
				switches++
			}
			from = src
		}
		assert.LessOrEqual(t, switches, 2)
	}

	a, _ := prototype.MakeRandom(rng, nil)
	b, _ := prototype.MakeRandom(rng, nil)
	clone := a.CrossoverKPoint(rng, b, 2, 0)
	assert.Equal(t, a.Reservations(), clone.Reservations())
	assert.Equal(t, a.Fitness(), clone.Fitness())
}

func TestCrossoverDifferentialStaysInDomain(t *testing.T) {
	prototype, err := NewPrototype(mixedCatalogue())
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(17))

	for i := 0; i < 50; i++ {
		parent, _ := prototype.MakeRandom(rng, nil)
		d1, _ := prototype.MakeRandom(rng, nil)
		d2, _ := prototype.MakeRandom(rng, nil)
		d3, _ := prototype.MakeRandom(rng, nil)

		child := parent.CrossoverDifferential(rng, parent, d1, d2, d3, 3.5, 50)
		assertConsistent(t, child)
	}

	// 概率为 0 时只有一个教学班被差分更新
	parent, _ := prototype.MakeRandom(rng, nil)
	child := parent.CrossoverDifferential(rng, parent, parent, parent, parent, 0.5, 0)
	assert.Equal(t, parent.Reservations(), child.Reservations())
}

func TestCriteriaDistanceAndDominates(t *testing.T) {
	cat := newTestCatalogue(1, 5, 8,
		&domain.CourseClass{ProfessorID: 1, GroupIDs: []int{1}, Duration: 1},
		&domain.CourseClass{ProfessorID: 1, GroupIDs: []int{1}, Duration: 1},
	)
	prototype, err := NewPrototype(cat)
	require.NoError(t, err)

	conflicted := prototype.MakeEmpty()
	conflicted.ApplyPositions([]float64{0, 0, 0, 0, 0, 0})
	clean := prototype.MakeEmpty()
	clean.ApplyPositions([]float64{0, 0, 0, 0, 0, 1})

	assert.Equal(t, 6, clean.CriteriaDistance(conflicted))
	assert.Equal(t, 0, clean.CriteriaDistance(clean.Clone()))
	assert.True(t, clean.Dominates(conflicted))
	assert.False(t, conflicted.Dominates(clean))
	assert.False(t, clean.Dominates(clean.Clone()))
}

func TestCloneIsIndependent(t *testing.T) {
	prototype, err := NewPrototype(mixedCatalogue())
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(19))

	s, _ := prototype.MakeRandom(rng, nil)
	before := s.Reservations()
	c := s.Clone()
	c.Mutate(rng, 5, 100)

	assert.Equal(t, before, s.Reservations())
	assertConsistent(t, s)
	assertConsistent(t, c)
}
