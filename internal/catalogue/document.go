package catalogue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document 是排课配置文件的内容，引用关系使用文件中的 ID 表示
// Days、DayHours 为 0 时使用调用方给定的默认值
type Document struct {
	Days       int              `json:"days,omitempty" yaml:"days,omitempty" validate:"min=0"`
	DayHours   int              `json:"dayHours,omitempty" yaml:"dayHours,omitempty" validate:"min=0"`
	Professors []ProfessorEntry `json:"professors" yaml:"professors" validate:"required,min=1,dive"`
	Courses    []CourseEntry    `json:"courses" yaml:"courses" validate:"required,min=1,dive"`
	Groups     []GroupEntry     `json:"groups" yaml:"groups" validate:"dive"`
	Rooms      []RoomEntry      `json:"rooms" yaml:"rooms" validate:"required,min=1,dive"`
	Classes    []ClassEntry     `json:"classes" yaml:"classes" validate:"required,min=1,dive"`
}

type ProfessorEntry struct {
	ID   int    `json:"id" yaml:"id" csv:"id" validate:"required"`
	Name string `json:"name" yaml:"name" csv:"name" validate:"required"`
}

type CourseEntry struct {
	ID   int    `json:"id" yaml:"id" csv:"id" validate:"required"`
	Name string `json:"name" yaml:"name" csv:"name"`
}

type GroupEntry struct {
	ID   int    `json:"id" yaml:"id" csv:"id" validate:"required"`
	Name string `json:"name" yaml:"name" csv:"name"`
	Size int    `json:"size" yaml:"size" csv:"size" validate:"min=0"`
}

// RoomEntry 没有 ID，教室按出现顺序编号
type RoomEntry struct {
	Name string `json:"name" yaml:"name" csv:"name" validate:"required"`
	Lab  bool   `json:"lab" yaml:"lab" csv:"lab"`
	Size int    `json:"size" yaml:"size" csv:"size" validate:"min=1"`
}

// ClassEntry 的 Duration 为 0 时按 1 小时处理
type ClassEntry struct {
	Professor int    `json:"professor" yaml:"professor" csv:"professor" validate:"required"`
	Course    int    `json:"course" yaml:"course" csv:"course" validate:"required"`
	Duration  int    `json:"duration,omitempty" yaml:"duration,omitempty" csv:"duration" validate:"min=0"`
	Lab       bool   `json:"lab" yaml:"lab" csv:"lab"`
	Groups    IDList `json:"groups" yaml:"groups" csv:"groups"`
}

// IDList 兼容单个 ID 和 ID 列表两种写法，CSV 中用分号分隔
type IDList []int

func (l *IDList) UnmarshalJSON(data []byte) error {
	var id int
	if err := json.Unmarshal(data, &id); err == nil {
		*l = IDList{id}
		return nil
	}

	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("无法解析 ID 列表 %s: %w", string(data), err)
	}
	*l = ids
	return nil
}

func (l *IDList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var id int
		if err := value.Decode(&id); err != nil {
			return err
		}
		*l = IDList{id}
		return nil
	case yaml.SequenceNode:
		var ids []int
		if err := value.Decode(&ids); err != nil {
			return err
		}
		*l = ids
		return nil
	default:
		return fmt.Errorf("第 %d 行: ID 列表必须是数字或数组", value.Line)
	}
}

func (l *IDList) UnmarshalCSV(field string) error {
	ids := IDList{}
	for _, s := range strings.FieldsFunc(field, func(r rune) bool {
		return r == ';' || r == ' '
	}) {
		id, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("无法解析 ID %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	*l = ids
	return nil
}

func (l IDList) MarshalCSV() (string, error) {
	s := make([]string, 0, len(l))
	for _, id := range l {
		s = append(s, strconv.Itoa(id))
	}
	return strings.Join(s, ";"), nil
}
