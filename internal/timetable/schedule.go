package timetable

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
)

var ErrInvalidCatalogue = errors.New("无效的排课配置")

// Random 是所有随机算子共用的随机数来源，*rand.Rand 满足该接口
type Random interface {
	Intn(n int) int
	Float64() float64
	NormFloat64() float64
}

// Schedule: 一个候选课表（染色体）
type Schedule struct {
	catalogue *domain.Catalogue
	codec     Codec

	// 占用表，每个单元格对应某一天某一小时的某一间教室，保存占用它的教学班 ID
	slots [][]int
	// 教学班 ID -> 预约编码，-1 表示还没有被放置
	classes []int
	// 每个教学班 CriteriaNum 个约束的满足情况
	criteria []bool
	fitness  float64

	// 以下两个字段由进化引擎维护
	rank      int
	diversity float64
}

// NewPrototype 校验排课配置并返回一个原型染色体，后续的染色体都通过原型创建
func NewPrototype(cat *domain.Catalogue) (*Schedule, error) {
	if err := validateCatalogue(cat); err != nil {
		return nil, err
	}

	s := &Schedule{
		catalogue: cat,
		codec:     NewCodec(cat.NumberOfRooms(), cat.DayHours),
	}
	s.reset()
	return s, nil
}

func validateCatalogue(cat *domain.Catalogue) error {
	if cat == nil {
		return fmt.Errorf("%w: 配置为空", ErrInvalidCatalogue)
	}
	if cat.Days <= 0 {
		return fmt.Errorf("%w: 天数必须大于 0", ErrInvalidCatalogue)
	}
	if cat.DayHours <= 0 {
		return fmt.Errorf("%w: 每天的课时数必须大于 0", ErrInvalidCatalogue)
	}
	if len(cat.Rooms) == 0 {
		return fmt.Errorf("%w: 没有任何教室", ErrInvalidCatalogue)
	}
	if len(cat.Classes) == 0 {
		return fmt.Errorf("%w: 没有任何教学班", ErrInvalidCatalogue)
	}
	for i, room := range cat.Rooms {
		if room == nil || room.ID != i {
			return fmt.Errorf("%w: 教室 %d 的 ID 不连续", ErrInvalidCatalogue, i)
		}
	}
	for i, cc := range cat.Classes {
		if cc == nil || cc.ID != i {
			return fmt.Errorf("%w: 教学班 %d 的 ID 不连续", ErrInvalidCatalogue, i)
		}
		if cc.Duration <= 0 || cc.Duration > cat.DayHours {
			return fmt.Errorf("%w: 教学班 %d 的时长 %d 超出范围 [1, %d]", ErrInvalidCatalogue, i, cc.Duration, cat.DayHours)
		}
	}
	return nil
}

func (s *Schedule) reset() {
	cat := s.catalogue
	s.slots = make([][]int, cat.Days*cat.DayHours*cat.NumberOfRooms())
	s.classes = make([]int, cat.NumberOfCourseClasses())
	for i := range s.classes {
		s.classes[i] = -1
	}
	s.criteria = make([]bool, cat.NumberOfCourseClasses()*CriteriaNum)
	s.fitness = 0
}

// MakeEmpty 创建一个与原型配置相同、但没有放置任何教学班的染色体
func (s *Schedule) MakeEmpty() *Schedule {
	n := &Schedule{
		catalogue: s.catalogue,
		codec:     s.codec,
	}
	n.reset()
	return n
}

// MakeRandom 随机放置所有教学班
// positions 不为 nil 时，会按教学班顺序把 (day, room, time) 追加进去并返回
func (s *Schedule) MakeRandom(rng Random, positions []float64) (*Schedule, []float64) {
	n := s.MakeEmpty()
	for _, cc := range s.catalogue.Classes {
		r := n.randomReservation(rng, cc)
		if positions != nil {
			positions = append(positions, float64(r.Day), float64(r.Room), float64(r.Time))
		}
		n.repair(cc.ID, r)
	}
	n.CalculateFitness()
	return n, positions
}

// Clone 深拷贝染色体
func (s *Schedule) Clone() *Schedule {
	n := &Schedule{
		catalogue: s.catalogue,
		codec:     s.codec,
		slots:     make([][]int, len(s.slots)),
		classes:   slices.Clone(s.classes),
		criteria:  slices.Clone(s.criteria),
		fitness:   s.fitness,
		rank:      s.rank,
		diversity: s.diversity,
	}
	for i, slot := range s.slots {
		if len(slot) > 0 {
			n.slots[i] = slices.Clone(slot)
		}
	}
	return n
}

func (s *Schedule) randomReservation(rng Random, cc *domain.CourseClass) Reservation {
	return Reservation{
		Day:  rng.Intn(s.catalogue.Days),
		Room: rng.Intn(s.catalogue.NumberOfRooms()),
		Time: rng.Intn(s.catalogue.DayHours - cc.Duration + 1),
	}
}

// cell 返回预约编码 code 对应教学班第 j 个小时所在的单元格
func (s *Schedule) cell(code int, j int) int {
	return code + j*s.catalogue.NumberOfRooms()
}

// place 将教学班写入占用表和教学班表
func (s *Schedule) place(id int, code int) {
	dur := s.catalogue.Classes[id].Duration
	for j := 0; j < dur; j++ {
		c := s.cell(code, j)
		s.slots[c] = append(s.slots[c], id)
	}
	s.classes[id] = code
}

// remove 把教学班从它当前占用的单元格中移除
func (s *Schedule) remove(id int) {
	code := s.classes[id]
	if code < 0 {
		return
	}
	dur := s.catalogue.Classes[id].Duration
	for j := 0; j < dur; j++ {
		c := s.cell(code, j)
		if k := slices.Index(s.slots[c], id); k >= 0 {
			s.slots[c] = slices.Delete(s.slots[c], k, k+1)
		}
	}
	s.classes[id] = -1
}

// repair 将教学班移动到新的位置，保证占用表和教学班表一致
func (s *Schedule) repair(id int, r Reservation) {
	s.remove(id)
	s.place(id, s.codec.Encode(r))
}

// CalculateFitness 计算染色体的适应度
// 房间冲突、老师冲突、学生组冲突会将累计得分清零；座位或电脑不足会使得分减半
func (s *Schedule) CalculateFitness() {
	cat := s.catalogue
	score := 0.0

	for id, cc := range cat.Classes {
		code := s.classes[id]
		ci := id * CriteriaNum
		if code < 0 {
			// 尚未放置的教学班不满足任何约束
			score = 0
			for k := 0; k < CriteriaNum; k++ {
				s.criteria[ci+k] = false
			}
			continue
		}
		r := s.codec.Decode(code)

		ro := s.isRoomOverlapped(code, cc.Duration)
		if ro {
			score = 0
		} else {
			score++
		}
		s.criteria[ci+CriterionRoomNotOverlapped] = !ro

		room := cat.RoomByID(r.Room)
		s.criteria[ci+CriterionSeatEnough] = isSeatEnough(room, cc)
		if s.criteria[ci+CriterionSeatEnough] {
			score++
		} else {
			score /= 2
		}

		s.criteria[ci+CriterionComputerEnough] = isComputerEnough(room, cc)
		if s.criteria[ci+CriterionComputerEnough] {
			score++
		} else {
			score /= 2
		}

		po, gro := s.isOverlappedProfStudentGrp(cc, r)
		if po {
			score = 0
		} else {
			score++
		}
		s.criteria[ci+CriterionProfessorNotOverlapped] = !po

		if gro {
			score = 0
		} else {
			score++
		}
		s.criteria[ci+CriterionGroupNotOverlapped] = !gro
	}

	// 分母并不是得分的上界，只在 Days == 5 时恰好归一化，这里保持与原有结果兼容
	s.fitness = score / float64(cat.NumberOfCourseClasses()*cat.Days)
}

// Satisfied 返回满足的约束数量
func (s *Schedule) Satisfied() int {
	cnt := 0
	for _, ok := range s.criteria {
		if ok {
			cnt++
		}
	}
	return cnt
}

// Objectives 返回参与 Pareto 比较的目标值，越大越好
func (s *Schedule) Objectives() []float64 {
	return []float64{s.fitness, float64(s.Satisfied())}
}

// Dominates 判断 s 是否 Pareto 支配 other
func (s *Schedule) Dominates(other *Schedule) bool {
	a, b := s.Objectives(), other.Objectives()
	better := false
	for i := range a {
		if a[i] < b[i] {
			return false
		}
		if a[i] > b[i] {
			better = true
		}
	}
	return better
}

// CriteriaDistance 返回两个染色体约束标志位的汉明距离
func (s *Schedule) CriteriaDistance(other *Schedule) int {
	d := 0
	for i := 0; i < len(s.criteria) && i < len(other.criteria); i++ {
		if s.criteria[i] != other.criteria[i] {
			d++
		}
	}
	return d
}

func (s *Schedule) Fitness() float64 {
	return s.fitness
}

func (s *Schedule) Criteria() []bool {
	return slices.Clone(s.criteria)
}

func (s *Schedule) Catalogue() *domain.Catalogue {
	return s.catalogue
}

func (s *Schedule) Rank() int {
	return s.rank
}

func (s *Schedule) SetRank(rank int) {
	s.rank = rank
}

func (s *Schedule) Diversity() float64 {
	return s.diversity
}

func (s *Schedule) SetDiversity(diversity float64) {
	s.diversity = diversity
}

// Reservation 返回教学班当前所在的位置
func (s *Schedule) Reservation(classID int) Reservation {
	return s.codec.Decode(s.classes[classID])
}

// Reservations 按教学班顺序返回所有位置
func (s *Schedule) Reservations() []Reservation {
	res := make([]Reservation, len(s.classes))
	for id, code := range s.classes {
		res[id] = s.codec.Decode(code)
	}
	return res
}
