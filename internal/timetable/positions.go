package timetable

import "math"

// PositionLength 返回连续位置向量的长度，每个教学班占 (day, room, time) 三个分量
func (s *Schedule) PositionLength() int {
	return len(s.classes) * 3
}

// ExtractPositions 按教学班顺序把 (day, room, time) 写入 positions
// positions 的长度不能小于 PositionLength()
func (s *Schedule) ExtractPositions(positions []float64) {
	i := 0
	for id := range s.classes {
		r := s.Reservation(id)
		positions[i] = float64(r.Day)
		positions[i+1] = float64(r.Room)
		positions[i+2] = float64(r.Time)
		i += 3
	}
}

// ApplyPositions 将连续位置向量折叠回合法的离散位置并重新放置所有教学班
// 任意实数（包括负数、越界值）都会通过 |v| mod size 映射到合法范围内
func (s *Schedule) ApplyPositions(positions []float64) {
	cat := s.catalogue
	i := 0
	for _, cc := range cat.Classes {
		r := Reservation{
			Day:  fold(positions[i], cat.Days),
			Room: fold(positions[i+1], cat.NumberOfRooms()),
			Time: fold(positions[i+2], cat.DayHours-cc.Duration+1),
		}
		i += 3
		s.repair(cc.ID, r)
	}

	s.CalculateFitness()
}

// fold 把实数映射到 [0, size)
func fold(v float64, size int) int {
	if size <= 1 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Mod(math.Abs(v), float64(size)))
}
