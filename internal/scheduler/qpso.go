package scheduler

import (
	"math"

	"github.com/sysu-ecnc-dev/timetabler/backend/internal/timetable"
	"gonum.org/v1/gonum/floats"
)

// 收缩扩张系数的上下界
const (
	alpha0 = 0.5
	alpha1 = 0.96
)

// QPSO 在内部引擎的 Replacement 之前，对种群的前 PopulationSize 个位置执行量子粒子群位置更新
// 交叉和 Reform 直接交给内部引擎
type QPSO struct {
	Strategy
	params *Parameters

	chromlen int
	// 以下数组按种群位置（槽）索引，与槽中具体是哪一个染色体无关
	pBestScore      []float64
	pBestPosition   [][]float64
	currentPosition [][]float64

	gBest      []float64
	gBestTrial *timetable.Schedule
}

func NewQPSO(inner Strategy, params *Parameters) *QPSO {
	return &QPSO{
		Strategy: inner,
		params:   params,
	}
}

func (q *QPSO) Initialize(pop []*timetable.Schedule, positions [][]float64) {
	size := q.params.PopulationSize
	q.chromlen = len(positions[0])
	q.pBestScore = make([]float64, size)
	q.pBestPosition = make([][]float64, size)
	q.currentPosition = make([][]float64, size)
	q.gBest = make([]float64, q.chromlen)
	q.gBestTrial = nil

	for i := 0; i < size; i++ {
		q.pBestScore[i] = pop[i].Fitness()
		q.pBestPosition[i] = make([]float64, q.chromlen)
		copy(q.pBestPosition[i], positions[i])
		q.currentPosition[i] = make([]float64, q.chromlen)
		copy(q.currentPosition[i], positions[i])
		q.updateGlobalBest(pop[i])
	}

	q.Strategy.Initialize(pop, positions)
}

func (q *QPSO) Replacement(rng timetable.Random, generation int, pop []*timetable.Schedule) []*timetable.Schedule {
	q.updatePositions(rng, generation, pop)
	return q.Strategy.Replacement(rng, generation, pop)
}

// updatePositions 更新个体最优、全局最优以及每个槽的当前位置，并用新位置替换槽中的染色体
func (q *QPSO) updatePositions(rng timetable.Random, generation int, pop []*timetable.Schedule) {
	size := min(q.params.PopulationSize, len(pop))
	mBest := make([]float64, q.chromlen)

	for i := 0; i < size; i++ {
		if fitness := pop[i].Fitness(); fitness > q.pBestScore[i] {
			q.pBestScore[i] = fitness
			pop[i].ExtractPositions(q.currentPosition[i])
			copy(q.pBestPosition[i], q.currentPosition[i])
		}
		q.updateGlobalBest(pop[i])
		floats.Add(mBest, q.pBestPosition[i])
	}
	floats.Scale(1/float64(size), mBest)

	alpha := q.alpha(generation)
	for i := 0; i < size; i++ {
		pBest, current := q.pBestPosition[i], q.currentPosition[i]
		for j := 0; j < q.chromlen; j++ {
			phi := rng.Float64()
			// u 取 (0, 1]，避免 ln(1/0)
			u := 1 - rng.Float64()
			p := phi*pBest[j] + (1-phi)*q.gBest[j]
			// 以 p 为中心、以 mBest 与 pBest 的差为标准差的高斯吸引子
			attractor := p + rng.NormFloat64()*(mBest[j]-pBest[j])
			if rng.Float64()*100 < q.params.MutationProbability {
				attractor = p
			}

			step := alpha * math.Abs(mBest[j]-current[j]) * math.Log(1/u)
			if rng.Float64() < 0.5 {
				current[j] += attractor + step
			} else {
				current[j] += attractor - step
			}
		}

		pop[i] = q.optimum(current, pop[i])
	}
}

// alpha 随迭代次数从 alpha1 线性退火到 alpha0
func (q *QPSO) alpha(generation int) float64 {
	maxIterations := float64(q.params.MaxGenerations)
	return alpha0 + (maxIterations-float64(generation))*(alpha1-alpha0)/maxIterations
}

// updateGlobalBest 只有当 s 支配当前全局最优时才更新全局最优位置
func (q *QPSO) updateGlobalBest(s *timetable.Schedule) {
	if q.gBestTrial != nil && !s.Dominates(q.gBestTrial) {
		return
	}
	s.ExtractPositions(q.gBest)
	q.gBestTrial = s.Clone()
}

// optimum 用新位置构造试探染色体，只有试探染色体支配原染色体时才采用新位置
// 否则把 position 重置为原染色体的实际位置，并保留原染色体
func (q *QPSO) optimum(position []float64, s *timetable.Schedule) *timetable.Schedule {
	trial := s.MakeEmpty()
	trial.ApplyPositions(position)
	if trial.Dominates(s) {
		return trial
	}

	s.ExtractPositions(position)
	return s
}
