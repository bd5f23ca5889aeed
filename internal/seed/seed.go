package seed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/sysu-ecnc-dev/timetabler/backend/internal/catalogue"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

type Store interface {
	CreateUser(user *domain.User) error
	CreateTimetableRun(run *domain.TimetableRun) error
}

// SeedUsers 插入 n 个随机排课员，所有人使用同一个密码，返回成功插入的数量
func SeedUsers(store Store, rng *rand.Rand, n int, password string, emailDomain string) int {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("无法加密密码", "error", err)
		return 0
	}

	cnt := 0
	for i := 0; i < n; i++ {
		fullName := utils.GenerateRandomChineseName(rng)
		username := utils.GenerateUsernameFromChineseName(rng, fullName)

		user := &domain.User{
			Username:     username,
			PasswordHash: string(hashedPassword),
			FullName:     fullName,
			Email:        fmt.Sprintf("%s@%s", username, emailDomain),
			Role:         domain.RolePlanner,
		}
		if err := store.CreateUser(user); err != nil {
			// 随机生成的用户名可能重复
			slog.Error("无法插入用户", "username", username, "error", err)
			continue
		}
		cnt++
	}

	return cnt
}

// SeedTimetableRuns 插入 n 个使用随机配置的排课任务，任务处于 pending 状态
func SeedTimetableRuns(store Store, rng *rand.Rand, n int, createdBy int64, size utils.CatalogueSize, params domain.OptimizerParameters) int {
	cnt := 0
	for i := 0; i < n; i++ {
		doc := utils.GenerateRandomCatalogue(rng, size)
		run, err := newRun(fmt.Sprintf("随机排课任务 %d", i+1), createdBy, doc, params)
		if err != nil {
			slog.Error("无法生成排课任务", "error", err)
			continue
		}
		if err := store.CreateTimetableRun(run); err != nil {
			slog.Error("无法插入排课任务", "error", err)
			continue
		}
		cnt++
	}

	return cnt
}

// ImportCatalogue 从文件中读取真实的排课配置，校验通过后作为新的排课任务插入
func ImportCatalogue(store Store, path string, name string, createdBy int64, days int, dayHours int, params domain.OptimizerParameters) (*domain.TimetableRun, error) {
	doc, err := catalogue.LoadFile(path)
	if err != nil {
		return nil, err
	}

	cat, err := catalogue.Build(doc, days, dayHours)
	if err != nil {
		return nil, err
	}
	slog.Info("读取排课配置成功",
		"professors", len(cat.Professors),
		"courses", len(cat.Courses),
		"rooms", len(cat.Rooms),
		"classes", len(cat.Classes),
	)

	// 天数和课时数写回文档，之后运行时不再依赖默认值
	doc.Days = cat.Days
	doc.DayHours = cat.DayHours

	run, err := newRun(name, createdBy, doc, params)
	if err != nil {
		return nil, err
	}
	if err := store.CreateTimetableRun(run); err != nil {
		return nil, err
	}

	return run, nil
}

func newRun(name string, createdBy int64, doc *catalogue.Document, params domain.OptimizerParameters) (*domain.TimetableRun, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	return &domain.TimetableRun{
		Name:       name,
		CreatedBy:  createdBy,
		Catalogue:  raw,
		Parameters: params,
		Status:     domain.TimetableRunPending,
	}, nil
}
