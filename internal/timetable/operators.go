package timetable

// 概率参数均为百分比，取值范围 [0, 100]

// CrossoverKPoint 多点交叉
// 以 probability% 的概率进行交叉，否则直接返回自身的拷贝
func (s *Schedule) CrossoverKPoint(rng Random, other *Schedule, k int, probability float64) *Schedule {
	if rng.Float64()*100 >= probability {
		return s.Clone()
	}

	n := s.MakeEmpty()
	size := len(s.classes)
	cp := crossoverPoints(rng, size, k)

	// 随机选择从哪个父本开始
	first := rng.Intn(2) == 0
	for i := 0; i < size; i++ {
		src := other
		if first {
			src = s
		}
		n.place(i, src.classes[i])

		// 到达交叉点后切换父本
		if cp[i] {
			first = !first
		}
	}

	n.CalculateFitness()
	return n
}

// crossoverPoints 在 [0, size) 中随机标记 k 个不同的交叉点
func crossoverPoints(rng Random, size int, k int) []bool {
	cp := make([]bool, size)
	k = min(k, size)
	for i := k; i > 0; i-- {
		for {
			p := rng.Intn(size)
			if !cp[p] {
				cp[p] = true
				break
			}
		}
	}
	return cp
}

// CrossoverDifferential 差分交叉
// 对每个教学班，以 probability% 的概率（以及一个必定选中的随机下标）取
// donor3 + scaleFactor*(donor1-donor2)，其余教学班直接沿用 parent 的位置
func (s *Schedule) CrossoverDifferential(rng Random, parent, donor1, donor2, donor3 *Schedule, scaleFactor float64, probability float64) *Schedule {
	cat := s.catalogue
	size := len(s.classes)
	jrand := rng.Intn(size)

	n := s.MakeEmpty()
	for i, cc := range cat.Classes {
		if rng.Float64()*100 >= probability && i != jrand {
			n.place(i, parent.classes[i])
			continue
		}

		r1, r2, r3 := donor1.Reservation(i), donor2.Reservation(i), donor3.Reservation(i)
		r := Reservation{
			Day:  clamp(int(float64(r3.Day)+scaleFactor*float64(r1.Day-r2.Day)), 0, cat.Days-1),
			Room: clamp(int(float64(r3.Room)+scaleFactor*float64(r1.Room-r2.Room)), 0, cat.NumberOfRooms()-1),
			Time: clamp(int(float64(r3.Time)+scaleFactor*float64(r1.Time-r2.Time)), 0, cat.DayHours-cc.Duration),
		}
		n.place(i, n.codec.Encode(r))
	}

	n.CalculateFitness()
	return n
}

func clamp(v int, lo int, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Mutate 以 probability% 的概率随机移动 size 个教学班
func (s *Schedule) Mutate(rng Random, size int, probability float64) {
	if rng.Float64()*100 >= probability {
		return
	}

	numberOfClasses := len(s.classes)
	for i := size; i > 0; i-- {
		id := rng.Intn(numberOfClasses)
		s.repair(id, s.randomReservation(rng, s.catalogue.Classes[id]))
	}

	s.CalculateFitness()
}
