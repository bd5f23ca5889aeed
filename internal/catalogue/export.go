package catalogue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"
)

// WriteFile 与 LoadFile 对应：.yaml/.yml 写 YAML，.json 写 JSON，其余路径视为目录并写入 CSV 文件
func WriteFile(path string, doc *Document) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := yaml.Marshal(doc)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	case ".json":
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	default:
		return WriteCSVDir(path, doc)
	}
}

func WriteCSVDir(dir string, doc *Document) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	files := []struct {
		name string
		in   any
	}{
		{"professors.csv", &doc.Professors},
		{"courses.csv", &doc.Courses},
		{"groups.csv", &doc.Groups},
		{"rooms.csv", &doc.Rooms},
		{"classes.csv", &doc.Classes},
	}
	for _, f := range files {
		if err := marshalCSVFile(filepath.Join(dir, f.name), f.in); err != nil {
			return err
		}
	}

	return nil
}

func marshalCSVFile(path string, in any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gocsv.MarshalFile(in, f); err != nil {
		return fmt.Errorf("无法写入 %s: %w", path, err)
	}
	return nil
}
