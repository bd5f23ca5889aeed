package utils

import (
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
)

// DescribeTimetable 把预约中的各种 ID 换成名称，并按上课日、开始时间、教室排序
func DescribeTimetable(cat *domain.Catalogue, reservations []domain.TimetableReservation) []domain.TimetableEntry {
	professors := lo.KeyBy(cat.Professors, func(p *domain.Professor) int { return p.ID })
	courses := lo.KeyBy(cat.Courses, func(c *domain.Course) int { return c.ID })
	groups := lo.KeyBy(cat.Groups, func(g *domain.StudentsGroup) int { return g.ID })

	entries := make([]domain.TimetableEntry, 0, len(reservations))
	for _, res := range reservations {
		if res.ClassID < 0 || res.ClassID >= len(cat.Classes) {
			continue
		}
		cc := cat.Classes[res.ClassID]

		entry := domain.TimetableEntry{
			ClassID:   cc.ID,
			Day:       res.Day,
			StartTime: res.StartTime,
			EndTime:   res.StartTime + cc.Duration,
		}
		if p, ok := professors[cc.ProfessorID]; ok {
			entry.Professor = p.Name
		}
		if c, ok := courses[cc.CourseID]; ok {
			entry.Course = c.Name
		}
		if room := cat.RoomByID(res.RoomID); room != nil {
			entry.Room = room.Name
		}
		entry.Groups = strings.Join(lo.FilterMap(cc.GroupIDs, func(id int, _ int) (string, bool) {
			g, ok := groups[id]
			if !ok {
				return "", false
			}
			return g.Name, true
		}), "、")

		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.Room < b.Room
	})

	return entries
}
