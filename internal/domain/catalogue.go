package domain

import "slices"

type Room struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Lab   bool   `json:"lab"`
	Seats int    `json:"seats"`
}

type Professor struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type StudentsGroup struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Size int    `json:"size"`
}

type Course struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CourseClass: 一个需要排进课表的教学班
// ID 是加载时分配的连续下标，决定了染色体中课程的顺序
type CourseClass struct {
	ID          int   `json:"id"`
	ProfessorID int   `json:"professorID"`
	CourseID    int   `json:"courseID"`
	GroupIDs    []int `json:"groupIDs"`
	Duration    int   `json:"duration"` // 单位：小时
	LabRequired bool  `json:"labRequired"`
	Seats       int   `json:"seats"` // 所有学生组人数之和
}

// ProfessorOverlaps 判断两个教学班是否由同一位老师授课
func (c *CourseClass) ProfessorOverlaps(other *CourseClass) bool {
	return c.ProfessorID == other.ProfessorID
}

// GroupsOverlap 判断两个教学班是否存在共同的学生组
func (c *CourseClass) GroupsOverlap(other *CourseClass) bool {
	for _, id := range c.GroupIDs {
		if slices.Contains(other.GroupIDs, id) {
			return true
		}
	}
	return false
}

// Catalogue 是排课问题的静态配置
type Catalogue struct {
	Days       int              `json:"days"`
	DayHours   int              `json:"dayHours"`
	Professors []*Professor     `json:"professors"`
	Courses    []*Course        `json:"courses"`
	Groups     []*StudentsGroup `json:"groups"`
	Rooms      []*Room          `json:"rooms"`
	Classes    []*CourseClass   `json:"classes"`
}

func (c *Catalogue) NumberOfRooms() int {
	return len(c.Rooms)
}

func (c *Catalogue) NumberOfCourseClasses() int {
	return len(c.Classes)
}

// RoomByID 返回指定 ID 的教室，不存在时返回 nil
func (c *Catalogue) RoomByID(id int) *Room {
	if id < 0 || id >= len(c.Rooms) {
		return nil
	}
	return c.Rooms[id]
}
