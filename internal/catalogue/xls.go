package catalogue

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/gocarina/gocsv"
)

// LoadXLS 读取 Excel 97-2003 工作簿，工作表名与 CSV 文件名相同（professors、courses、groups、rooms、classes）
// 每个工作表的第一行为表头，groups 工作表可以不存在
func LoadXLS(path string) (*Document, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("无法打开 %s: %w", path, err)
	}

	sheets := make(map[string][][]string)
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		sheets[strings.ToLower(strings.TrimSpace(sheet.Name))] = sheetRows(sheet)
	}

	doc := &Document{}
	targets := []struct {
		name     string
		out      any
		optional bool
	}{
		{"professors", &doc.Professors, false},
		{"courses", &doc.Courses, false},
		{"groups", &doc.Groups, true},
		{"rooms", &doc.Rooms, false},
		{"classes", &doc.Classes, false},
	}
	for _, t := range targets {
		rows, ok := sheets[t.name]
		if !ok {
			if t.optional {
				continue
			}
			return nil, fmt.Errorf("%s 中缺少工作表 %s", path, t.name)
		}
		if err := unmarshalRows(rows, t.out); err != nil {
			return nil, fmt.Errorf("无法解析工作表 %s: %w", t.name, err)
		}
	}

	return doc, nil
}

// sheetRows 按表头的列数读取所有非空行
func sheetRows(sheet *xls.WorkSheet) [][]string {
	rows := [][]string{}
	width := 0
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		if width == 0 {
			width = row.LastCol()
		}

		cells := make([]string, width)
		empty := true
		for j := range cells {
			cells[j] = strings.TrimSpace(row.Col(j))
			if cells[j] != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, cells)
		}
	}
	return rows
}

// unmarshalRows 把二维表（第一行为表头）按 csv 标签解析到 out 中
func unmarshalRows(rows [][]string, out any) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return gocsv.UnmarshalBytes(buf.Bytes(), out)
}
