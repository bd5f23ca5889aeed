package scheduler

import (
	"errors"
	"fmt"

	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
)

var ErrInvalidParameters = errors.New("无效的优化参数")

// 交叉方式
const (
	CrossoverKPoint       = "kpoint"
	CrossoverDifferential = "differential"
)

// 优化算法参数，概率均为百分比
type Parameters struct {
	PopulationSize          int     // 种群大小
	MaxGenerations          int     // 最大迭代次数
	MinFitness              float64 // 适应度超过该值即停止
	MaxRepeat               int     // 停滞阈值，停滞代数超过 MaxRepeat/100 时触发 Reform
	NumberOfCrossoverPoints int     // 多点交叉的交叉点数量
	MutationSize            int     // 每次变异移动的教学班数量
	CrossoverProbability    float64 // 交叉概率
	MutationProbability     float64 // 变异概率
	CrossoverMode           string  // kpoint 或 differential
	ScaleFactor             float64 // 差分交叉的缩放因子
}

func DefaultParameters() Parameters {
	return Parameters{
		PopulationSize:          100,
		MaxGenerations:          5000,
		MinFitness:              0.999,
		MaxRepeat:               9999,
		NumberOfCrossoverPoints: 2,
		MutationSize:            2,
		CrossoverProbability:    80,
		MutationProbability:     3,
		CrossoverMode:           CrossoverKPoint,
		ScaleFactor:             0.5,
	}
}

// NewParameters 把接口传入的参数转换为算法参数，未设置的交叉方式使用 kpoint
func NewParameters(p domain.OptimizerParameters) Parameters {
	mode := p.CrossoverMode
	if mode == "" {
		mode = CrossoverKPoint
	}
	return Parameters{
		PopulationSize:          p.PopulationSize,
		MaxGenerations:          p.MaxGenerations,
		MinFitness:              p.MinFitness,
		MaxRepeat:               p.MaxRepeat,
		NumberOfCrossoverPoints: p.NumberOfCrossoverPoints,
		MutationSize:            p.MutationSize,
		CrossoverProbability:    p.CrossoverProbability,
		MutationProbability:     p.MutationProbability,
		CrossoverMode:           mode,
		ScaleFactor:             p.ScaleFactor,
	}
}

func (p *Parameters) Validate() error {
	if p.PopulationSize < 2 {
		return fmt.Errorf("%w: 种群大小至少为 2，实际为 %d", ErrInvalidParameters, p.PopulationSize)
	}
	if p.MaxGenerations <= 0 {
		return fmt.Errorf("%w: 最大迭代次数必须大于 0", ErrInvalidParameters)
	}
	if p.MaxRepeat < 0 {
		return fmt.Errorf("%w: 停滞阈值不能为负数", ErrInvalidParameters)
	}
	if p.NumberOfCrossoverPoints <= 0 {
		return fmt.Errorf("%w: 交叉点数量必须大于 0", ErrInvalidParameters)
	}
	if p.MutationSize <= 0 {
		return fmt.Errorf("%w: 变异数量必须大于 0", ErrInvalidParameters)
	}
	if p.CrossoverProbability < 0 || p.CrossoverProbability > 100 {
		return fmt.Errorf("%w: 交叉概率必须在 [0, 100] 之间", ErrInvalidParameters)
	}
	if p.MutationProbability < 0 || p.MutationProbability > 100 {
		return fmt.Errorf("%w: 变异概率必须在 [0, 100] 之间", ErrInvalidParameters)
	}
	if p.CrossoverMode != CrossoverKPoint && p.CrossoverMode != CrossoverDifferential {
		return fmt.Errorf("%w: 未知的交叉方式 %q", ErrInvalidParameters, p.CrossoverMode)
	}
	if p.ScaleFactor < 0 {
		return fmt.Errorf("%w: 缩放因子不能为负数", ErrInvalidParameters)
	}
	return nil
}
