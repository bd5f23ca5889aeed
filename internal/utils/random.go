package utils

import (
	"fmt"
	"math/rand"

	"github.com/mozillazg/go-pinyin"
	"github.com/samber/lo"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/catalogue"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "霞", "飞", "玲", "超",
	"华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌", "庆",
	"建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

var courseNames = []string{
	"高等数学", "线性代数", "概率论与数理统计", "大学物理", "程序设计基础",
	"数据结构", "计算机组成原理", "操作系统", "计算机网络", "数据库系统",
	"编译原理", "软件工程", "离散数学", "大学英语", "人工智能导论",
}

var majors = []string{"计科", "软工", "网安", "数学", "物理", "电子"}

var buildings = []string{"A", "B", "C", "D", "E"}

func GenerateRandomChineseName(rng *rand.Rand) string {
	surname := commonSurnames[rng.Intn(len(commonSurnames))]
	nameLength := rng.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rng.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

var digits = "0123456789"

// GenerateUsernameFromChineseName 取每个字拼音的前缀，再拼上几位数字
func GenerateUsernameFromChineseName(rng *rand.Rand, chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, py := range pinyinArray {
		length := rng.Intn(len(py)) + 1
		username += py[:length]
	}

	digitsLength := rng.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rng.Intn(len(digits))])
	}

	return username
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")

func GenerateRandomPassword(rng *rand.Rand, length int) string {
	randomPassword := make([]rune, length)
	for i := range randomPassword {
		randomPassword[i] = letters[rng.Intn(len(letters))]
	}
	return string(randomPassword)
}

type CatalogueSize struct {
	Professors int
	Courses    int
	Groups     int
	Rooms      int
	Classes    int
	Days       int
	DayHours   int
}

// GenerateRandomCatalogue 随机生成一份排课配置
// 老师的姓名是随机的中文名，课程、学生组、教室的名称从固定的词表中组合
// 除 Groups 以外的数量都必须大于 0
func GenerateRandomCatalogue(rng *rand.Rand, size CatalogueSize) *catalogue.Document {
	doc := &catalogue.Document{
		Days:     size.Days,
		DayHours: size.DayHours,
	}

	// 老师的名字不能重复，否则生成的配置难以阅读
	names := map[string]bool{}
	for len(doc.Professors) < size.Professors {
		name := GenerateRandomChineseName(rng)
		if names[name] {
			continue
		}
		names[name] = true
		doc.Professors = append(doc.Professors, catalogue.ProfessorEntry{
			ID:   len(doc.Professors) + 1,
			Name: name,
		})
	}

	for i := 0; i < size.Courses; i++ {
		name := courseNames[i%len(courseNames)]
		if i >= len(courseNames) {
			name = fmt.Sprintf("%s（%d）", name, i/len(courseNames)+1)
		}
		doc.Courses = append(doc.Courses, catalogue.CourseEntry{ID: i + 1, Name: name})
	}

	for i := 0; i < size.Groups; i++ {
		doc.Groups = append(doc.Groups, catalogue.GroupEntry{
			ID:   i + 1,
			Name: fmt.Sprintf("%s%d班", majors[i%len(majors)], i/len(majors)+1),
			Size: rng.Intn(21) + 20,
		})
	}

	for i := 0; i < size.Rooms; i++ {
		lab := rng.Intn(4) == 0
		seats := (rng.Intn(6) + 3) * 20
		if lab {
			seats = (rng.Intn(3) + 2) * 20
		}
		doc.Rooms = append(doc.Rooms, catalogue.RoomEntry{
			Name: fmt.Sprintf("%s%d%02d", buildings[i%len(buildings)], rng.Intn(5)+1, i+1),
			Lab:  lab,
			Size: seats,
		})
	}

	maxDuration := min(3, size.DayHours)
	groupIDs := lo.Map(doc.Groups, func(g catalogue.GroupEntry, _ int) int {
		return g.ID
	})
	for i := 0; i < size.Classes; i++ {
		class := catalogue.ClassEntry{
			Professor: rng.Intn(len(doc.Professors)) + 1,
			Course:    rng.Intn(len(doc.Courses)) + 1,
			Duration:  rng.Intn(maxDuration) + 1,
			Lab:       rng.Intn(5) == 0,
		}
		if len(groupIDs) > 0 {
			n := rng.Intn(min(2, len(groupIDs))) + 1
			class.Groups = lo.Map(rng.Perm(len(groupIDs))[:n], func(j int, _ int) int {
				return groupIDs[j]
			})
		}
		doc.Classes = append(doc.Classes, class)
	}

	return doc
}
