package timetable

import "github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"

// 每个教学班需要检查的约束数量
const CriteriaNum = 5

// 约束在 criteria 数组中的偏移
const (
	CriterionRoomNotOverlapped = iota
	CriterionSeatEnough
	CriterionComputerEnough
	CriterionProfessorNotOverlapped
	CriterionGroupNotOverlapped
)

// isRoomOverlapped 检查教学班占用的单元格中是否存在其它教学班
func (s *Schedule) isRoomOverlapped(code int, dur int) bool {
	for j := 0; j < dur; j++ {
		if len(s.slots[s.cell(code, j)]) > 1 {
			return true
		}
	}
	return false
}

func isSeatEnough(r *domain.Room, cc *domain.CourseClass) bool {
	return r.Seats >= cc.Seats
}

func isComputerEnough(r *domain.Room, cc *domain.CourseClass) bool {
	return !cc.LabRequired || r.Lab
}

// isOverlappedProfStudentGrp 检查同一时间段内（所有教室）老师和学生组是否冲突
func (s *Schedule) isOverlappedProfStudentGrp(cc *domain.CourseClass, r Reservation) (po bool, gro bool) {
	rooms := s.catalogue.NumberOfRooms()
	for j := 0; j < cc.Duration; j++ {
		// 同一 (day, time) 的所有教室在占用表中是连续的
		base := s.codec.Encode(Reservation{Day: r.Day, Room: 0, Time: r.Time + j})
		for room := 0; room < rooms; room++ {
			for _, id := range s.slots[base+room] {
				if id == cc.ID {
					continue
				}
				other := s.catalogue.Classes[id]
				if !po && cc.ProfessorOverlaps(other) {
					po = true
				}
				if !gro && cc.GroupsOverlap(other) {
					gro = true
				}
				if po && gro {
					return po, gro
				}
			}
		}
	}
	return po, gro
}
