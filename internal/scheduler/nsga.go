package scheduler

import (
	"cmp"
	"math"
	"slices"

	"github.com/samber/lo"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/timetable"
)

// NSGA: 基于非支配排序和拥挤距离的进化引擎
type NSGA struct {
	params *Parameters
}

// NewNSGA 创建引擎，params 与优化器共享，Reform 会直接修改其中的概率
func NewNSGA(params *Parameters) *NSGA {
	return &NSGA{params: params}
}

func (e *NSGA) Initialize(pop []*timetable.Schedule, positions [][]float64) {}

// Crossing 根据交叉方式由当前种群产生子代
func (e *NSGA) Crossing(rng timetable.Random, pop []*timetable.Schedule) []*timetable.Schedule {
	// 差分交叉至少需要 parent 以外的三个个体
	if e.params.CrossoverMode == CrossoverDifferential && len(pop) >= 4 {
		return e.differentialCrossing(rng, pop)
	}
	return e.kPointCrossing(rng, pop)
}

// kPointCrossing 随机两两配对，每对父本产生两个子代
func (e *NSGA) kPointCrossing(rng timetable.Random, pop []*timetable.Schedule) []*timetable.Schedule {
	order := shuffle(rng, len(pop))
	offspring := make([]*timetable.Schedule, 0, len(pop))
	for m := 0; m+1 < len(order); m += 2 {
		p0, p1 := pop[order[m]], pop[order[m+1]]
		offspring = append(offspring,
			p0.CrossoverKPoint(rng, p1, e.params.NumberOfCrossoverPoints, e.params.CrossoverProbability),
			p1.CrossoverKPoint(rng, p0, e.params.NumberOfCrossoverPoints, e.params.CrossoverProbability),
		)
	}
	return offspring
}

// differentialCrossing 为每个个体随机挑选三个互不相同的捐赠者
func (e *NSGA) differentialCrossing(rng timetable.Random, pop []*timetable.Schedule) []*timetable.Schedule {
	offspring := make([]*timetable.Schedule, 0, len(pop))
	for i, parent := range pop {
		donors := make([]int, 0, 3)
		for len(donors) < 3 {
			d := rng.Intn(len(pop))
			if d != i && !slices.Contains(donors, d) {
				donors = append(donors, d)
			}
		}
		offspring = append(offspring, parent.CrossoverDifferential(rng, parent,
			pop[donors[0]], pop[donors[1]], pop[donors[2]],
			e.params.ScaleFactor, e.params.CrossoverProbability))
	}
	return offspring
}

// Replacement 非支配排序后按前沿依次选出 PopulationSize 个个体
// 最后一个放不下的前沿按拥挤距离挑选；每个前沿内部按适应度从高到低排列，因此 pop[0] 为当前最优
func (e *NSGA) Replacement(rng timetable.Random, generation int, pop []*timetable.Schedule) []*timetable.Schedule {
	size := e.params.PopulationSize
	next := make([]*timetable.Schedule, 0, size)

	for _, indices := range nonDominatedSort(pop) {
		front := lo.Map(indices, func(i int, _ int) *timetable.Schedule {
			return pop[i]
		})

		if len(next)+len(front) > size {
			crowdingDistance(front)
			slices.SortStableFunc(front, func(a, b *timetable.Schedule) int {
				return cmp.Compare(b.Diversity(), a.Diversity())
			})
			front = front[:size-len(next)]
		}

		sortByFitness(front)
		next = append(next, front...)
		if len(next) == size {
			break
		}
	}

	return next
}

// Reform 停滞时调用，先提高交叉概率，交叉概率到顶后再提高变异概率
func (e *NSGA) Reform() {
	if e.params.CrossoverProbability < 95 {
		e.params.CrossoverProbability++
	} else if e.params.MutationProbability < 30 {
		e.params.MutationProbability++
	}
}

// nonDominatedSort 快速非支配排序，返回每个前沿在 pop 中的下标，同时写入 Rank
func nonDominatedSort(pop []*timetable.Schedule) [][]int {
	n := len(pop)
	dominated := make([][]int, n) // p 支配的个体
	count := make([]int, n)       // 支配 p 的个体数量
	fronts := [][]int{{}}

	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			if p == q {
				continue
			}
			if pop[p].Dominates(pop[q]) {
				dominated[p] = append(dominated[p], q)
			} else if pop[q].Dominates(pop[p]) {
				count[p]++
			}
		}
		if count[p] == 0 {
			pop[p].SetRank(0)
			fronts[0] = append(fronts[0], p)
		}
	}

	for i := 0; len(fronts[i]) > 0; i++ {
		next := []int{}
		for _, p := range fronts[i] {
			for _, q := range dominated[p] {
				count[q]--
				if count[q] == 0 {
					pop[q].SetRank(i + 1)
					next = append(next, q)
				}
			}
		}
		fronts = append(fronts, next)
	}

	return fronts[:len(fronts)-1]
}

// crowdingDistance 计算前沿中每个个体的拥挤距离并写入 Diversity
// 距离由相邻个体的适应度差和约束标志位的汉明距离两部分组成，边界个体取最大值
func crowdingDistance(front []*timetable.Schedule) {
	n := len(front)
	sorted := slices.Clone(front)
	slices.SortStableFunc(sorted, func(a, b *timetable.Schedule) int {
		return cmp.Compare(a.Fitness(), b.Fitness())
	})

	if n <= 2 {
		for _, s := range sorted {
			s.SetDiversity(math.MaxFloat64)
		}
		return
	}

	sorted[0].SetDiversity(math.MaxFloat64)
	sorted[n-1].SetDiversity(math.MaxFloat64)

	span := sorted[n-1].Fitness() - sorted[0].Fitness()
	criteria := float64(sorted[0].Catalogue().NumberOfCourseClasses() * timetable.CriteriaNum)
	for i := 1; i < n-1; i++ {
		d := 0.0
		if span > 0 {
			d += (sorted[i+1].Fitness() - sorted[i-1].Fitness()) / span
		}
		d += float64(sorted[i-1].CriteriaDistance(sorted[i+1])) / criteria
		sorted[i].SetDiversity(d)
	}
}

// sortByFitness 按适应度从高到低排序，适应度相同时满足约束多的在前
func sortByFitness(pop []*timetable.Schedule) {
	slices.SortStableFunc(pop, func(a, b *timetable.Schedule) int {
		if c := cmp.Compare(b.Fitness(), a.Fitness()); c != 0 {
			return c
		}
		return cmp.Compare(b.Satisfied(), a.Satisfied())
	})
}

// shuffle 返回 [0, n) 的一个随机排列
func shuffle(rng timetable.Random, n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}
