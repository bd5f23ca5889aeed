package scheduler

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/timetable"
)

// 最优适应度变化不超过该值时视为停滞
const stagnationEpsilon = 1e-6

// Strategy 是进化引擎的可插拔策略
type Strategy interface {
	// Initialize 在第一代之前调用，positions[i] 为 pop[i] 随机生成时的连续位置
	Initialize(pop []*timetable.Schedule, positions [][]float64)
	// Crossing 由当前种群产生子代
	Crossing(rng timetable.Random, pop []*timetable.Schedule) []*timetable.Schedule
	// Replacement 从扩充后的种群中选出下一代，返回的第一个个体为当前最优
	Replacement(rng timetable.Random, generation int, pop []*timetable.Schedule) []*timetable.Schedule
	// Reform 在停滞时调整引擎参数
	Reform()
}

// StrategyFactory 根据共享的参数创建策略
type StrategyFactory func(params *Parameters) Strategy

// HybridStrategy: NSGA 引擎 + QPSO 位置更新
func HybridStrategy(params *Parameters) Strategy {
	return NewQPSO(NewNSGA(params), params)
}

// NSGAStrategy: 只使用 NSGA 引擎
func NSGAStrategy(params *Parameters) Strategy {
	return NewNSGA(params)
}

type Optimizer struct {
	prototype *timetable.Schedule
	params    *Parameters
	strategy  Strategy
	rng       timetable.Random
	reporter  Reporter
}

type Option func(*Optimizer)

func WithStrategy(factory StrategyFactory) Option {
	return func(o *Optimizer) {
		o.strategy = factory(o.params)
	}
}

func WithRandom(rng timetable.Random) Option {
	return func(o *Optimizer) {
		o.rng = rng
	}
}

func WithReporter(reporter Reporter) Option {
	return func(o *Optimizer) {
		o.reporter = reporter
	}
}

// New 创建优化器，默认使用混合策略、按当前时间播种的随机数以及不输出任何进度
func New(prototype *timetable.Schedule, params Parameters, opts ...Option) (*Optimizer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if prototype == nil {
		return nil, fmt.Errorf("%w: 原型染色体为空", ErrInvalidParameters)
	}

	o := &Optimizer{
		prototype: prototype,
		params:    &params,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		reporter:  nopReporter{},
	}
	o.strategy = HybridStrategy(o.params)
	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// Parameters 返回当前参数，Reform 可能已经修改了其中的概率
func (o *Optimizer) Parameters() Parameters {
	return *o.params
}

type Result struct {
	Best        *timetable.Schedule
	Generations int
	Converged   bool // 适应度是否达到 MinFitness
}

// Reservations 把最优课表转换为可持久化的预约列表
func (r *Result) Reservations() []domain.TimetableReservation {
	reservations := make([]domain.TimetableReservation, 0)
	for id, res := range r.Best.Reservations() {
		reservations = append(reservations, domain.TimetableReservation{
			ClassID:   id,
			Day:       res.Day,
			RoomID:    res.Room,
			StartTime: res.Time,
		})
	}
	return reservations
}

// Run 执行优化直到适应度超过 MinFitness 或达到最大迭代次数
// 每一代开始时检查 ctx，被取消时返回当前最优结果以及 ctx.Err()
func (o *Optimizer) Run(ctx context.Context) (*Result, error) {
	p := o.params

	// 生成初始种群
	cur := make([]*timetable.Schedule, p.PopulationSize)
	positions := make([][]float64, p.PopulationSize)
	for i := range cur {
		cur[i], positions[i] = o.prototype.MakeRandom(o.rng, make([]float64, 0, o.prototype.PositionLength()))
	}
	o.strategy.Initialize(cur, positions)

	best := cur[0]
	repeat := 0
	lastBestFit := 0.0

	gen := 0
	for ; gen < p.MaxGenerations; gen++ {
		if err := ctx.Err(); err != nil {
			return &Result{Best: best, Generations: gen}, err
		}

		if gen > 0 {
			o.reporter.Report(best.Fitness(), gen)

			if best.Fitness() > p.MinFitness {
				return &Result{Best: best, Generations: gen, Converged: true}, nil
			}

			if math.Abs(best.Fitness()-lastBestFit) <= stagnationEpsilon {
				repeat++
			} else {
				repeat = 0
				lastBestFit = best.Fitness()
			}

			if float64(repeat) > float64(p.MaxRepeat)/100 {
				o.strategy.Reform()
			}
		}

		// 交叉
		offspring := o.strategy.Crossing(o.rng, cur)

		// 变异
		for _, child := range offspring {
			child.Mutate(o.rng, p.MutationSize, p.MutationProbability)
		}

		leader := cur[0]
		grown := make([]*timetable.Schedule, 0, len(cur)+len(offspring))
		grown = append(grown, cur...)
		grown = append(grown, offspring...)

		// 替换
		next := o.strategy.Replacement(o.rng, gen, grown)
		if next[0].Dominates(leader) {
			best = next[0]
		} else {
			best = leader
		}

		cur = next
	}

	return &Result{Best: best, Generations: gen, Converged: best.Fitness() > p.MinFitness}, nil
}
