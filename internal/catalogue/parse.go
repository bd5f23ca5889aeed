package catalogue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"
)

// ParseJSON 解析 JSON 配置
// 以 [ 开头时按逐条记录的格式解析：[{"prof": {...}}, {"room": {...}}, {"class": {...}}, ...]
// 否则按 Document 的结构解析
func ParseJSON(data []byte) (*Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return parseRecords(data)
	}

	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("无法解析 JSON 配置: %w", err)
	}
	return doc, nil
}

// 逐条记录格式中的教学班，学生组既可以写成 group 也可以写成 groups
type classRecord struct {
	ClassEntry
	Group IDList `json:"group"`
}

func parseRecords(data []byte) (*Document, error) {
	var records []map[string]json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("无法解析 JSON 配置: %w", err)
	}

	doc := &Document{}
	for i, record := range records {
		for key, raw := range record {
			var err error
			switch key {
			case "prof":
				var p ProfessorEntry
				err = json.Unmarshal(raw, &p)
				doc.Professors = append(doc.Professors, p)
			case "course":
				var c CourseEntry
				err = json.Unmarshal(raw, &c)
				doc.Courses = append(doc.Courses, c)
			case "room":
				var r RoomEntry
				err = json.Unmarshal(raw, &r)
				doc.Rooms = append(doc.Rooms, r)
			case "group":
				var g GroupEntry
				err = json.Unmarshal(raw, &g)
				doc.Groups = append(doc.Groups, g)
			case "class":
				var c classRecord
				err = json.Unmarshal(raw, &c)
				c.Groups = append(c.Groups, c.Group...)
				doc.Classes = append(doc.Classes, c.ClassEntry)
			default:
				err = fmt.Errorf("未知的记录类型 %q", key)
			}
			if err != nil {
				return nil, fmt.Errorf("第 %d 条记录: %w", i, err)
			}
		}
	}

	return doc, nil
}

func ParseYAML(data []byte) (*Document, error) {
	doc := &Document{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("无法解析 YAML 配置: %w", err)
	}
	return doc, nil
}

// LoadCSVDir 从目录中读取 professors.csv、courses.csv、groups.csv、rooms.csv、classes.csv
// groups.csv 可以不存在
func LoadCSVDir(dir string) (*Document, error) {
	doc := &Document{}

	if err := unmarshalCSVFile(filepath.Join(dir, "professors.csv"), &doc.Professors); err != nil {
		return nil, err
	}
	if err := unmarshalCSVFile(filepath.Join(dir, "courses.csv"), &doc.Courses); err != nil {
		return nil, err
	}
	if err := unmarshalCSVFile(filepath.Join(dir, "groups.csv"), &doc.Groups); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err := unmarshalCSVFile(filepath.Join(dir, "rooms.csv"), &doc.Rooms); err != nil {
		return nil, err
	}
	if err := unmarshalCSVFile(filepath.Join(dir, "classes.csv"), &doc.Classes); err != nil {
		return nil, err
	}

	return doc, nil
}

func unmarshalCSVFile(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("无法解析 %s: %w", path, err)
	}
	return nil
}

// LoadFile 根据路径选择解析方式：目录按 CSV 读取，.xls 按 Excel 读取，.yaml/.yml 按 YAML 解析，其余按 JSON 解析
func LoadFile(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return LoadCSVDir(path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".xls" {
		return LoadXLS(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch ext {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}
