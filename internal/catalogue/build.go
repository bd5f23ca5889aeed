package catalogue

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/timetable"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Build 校验配置文件并解析引用关系，生成带有连续 ID 的排课配置
func Build(doc *Document, days int, dayHours int) (*domain.Catalogue, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: 配置为空", timetable.ErrInvalidCatalogue)
	}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", timetable.ErrInvalidCatalogue, err)
	}

	if doc.Days > 0 {
		days = doc.Days
	}
	if doc.DayHours > 0 {
		dayHours = doc.DayHours
	}

	professors := lo.KeyBy(doc.Professors, func(p ProfessorEntry) int { return p.ID })
	courses := lo.KeyBy(doc.Courses, func(c CourseEntry) int { return c.ID })
	groups := lo.KeyBy(doc.Groups, func(g GroupEntry) int { return g.ID })

	if len(professors) != len(doc.Professors) {
		return nil, fmt.Errorf("%w: 老师 ID 重复", timetable.ErrInvalidCatalogue)
	}
	if len(courses) != len(doc.Courses) {
		return nil, fmt.Errorf("%w: 课程 ID 重复", timetable.ErrInvalidCatalogue)
	}
	if len(groups) != len(doc.Groups) {
		return nil, fmt.Errorf("%w: 学生组 ID 重复", timetable.ErrInvalidCatalogue)
	}

	cat := &domain.Catalogue{
		Days:     days,
		DayHours: dayHours,
		Professors: lo.Map(doc.Professors, func(p ProfessorEntry, _ int) *domain.Professor {
			return &domain.Professor{ID: p.ID, Name: p.Name}
		}),
		Courses: lo.Map(doc.Courses, func(c CourseEntry, _ int) *domain.Course {
			return &domain.Course{ID: c.ID, Name: c.Name}
		}),
		Groups: lo.Map(doc.Groups, func(g GroupEntry, _ int) *domain.StudentsGroup {
			return &domain.StudentsGroup{ID: g.ID, Name: g.Name, Size: g.Size}
		}),
		Rooms: lo.Map(doc.Rooms, func(r RoomEntry, i int) *domain.Room {
			return &domain.Room{ID: i, Name: r.Name, Lab: r.Lab, Seats: r.Size}
		}),
	}

	for i, c := range doc.Classes {
		if _, ok := professors[c.Professor]; !ok {
			return nil, fmt.Errorf("%w: 教学班 %d 引用了不存在的老师 %d", timetable.ErrInvalidCatalogue, i, c.Professor)
		}
		if _, ok := courses[c.Course]; !ok {
			return nil, fmt.Errorf("%w: 教学班 %d 引用了不存在的课程 %d", timetable.ErrInvalidCatalogue, i, c.Course)
		}

		// 教学班的人数为所有学生组人数之和
		groupIDs := lo.Uniq(c.Groups)
		seats := 0
		for _, id := range groupIDs {
			g, ok := groups[id]
			if !ok {
				return nil, fmt.Errorf("%w: 教学班 %d 引用了不存在的学生组 %d", timetable.ErrInvalidCatalogue, i, id)
			}
			seats += g.Size
		}

		duration := c.Duration
		if duration == 0 {
			duration = 1
		}

		cat.Classes = append(cat.Classes, &domain.CourseClass{
			ID:          i,
			ProfessorID: c.Professor,
			CourseID:    c.Course,
			GroupIDs:    groupIDs,
			Duration:    duration,
			LabRequired: c.Lab,
			Seats:       seats,
		})
	}

	// 天数、课时数、时长等约束与染色体的要求保持一致
	if _, err := timetable.NewPrototype(cat); err != nil {
		return nil, err
	}

	return cat, nil
}
