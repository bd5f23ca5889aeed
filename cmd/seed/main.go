package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/timetabler/backend/internal/catalogue"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/config"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/repository"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/seed"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var seedValue int64
	var out string
	var file string
	var name string
	var createdBy int64
	size := utils.CatalogueSize{}

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机用户, 2: 生成随机排课配置文件, 3: 插入随机排课任务, 4: 导入排课配置文件)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量")
	flag.Int64Var(&seedValue, "seed", 0, "随机数种子，0 表示使用当前时间")
	flag.StringVar(&out, "out", "catalogue.yaml", "随机排课配置的输出路径，不是 .json/.yaml/.yml 时按目录写出 CSV")
	flag.StringVar(&file, "file", "", "要导入的排课配置文件")
	flag.StringVar(&name, "name", "导入的排课任务", "导入后排课任务的名称")
	flag.Int64Var(&createdBy, "created-by", 1, "排课任务的创建者 ID")
	flag.IntVar(&size.Professors, "professors", 10, "随机配置中老师的数量")
	flag.IntVar(&size.Courses, "courses", 12, "随机配置中课程的数量")
	flag.IntVar(&size.Groups, "groups", 8, "随机配置中学生组的数量")
	flag.IntVar(&size.Rooms, "rooms", 6, "随机配置中教室的数量")
	flag.IntVar(&size.Classes, "classes", 40, "随机配置中教学班的数量")
	flag.IntVar(&size.Days, "days", 5, "随机配置中每周的天数")
	flag.IntVar(&size.DayHours, "day-hours", 12, "随机配置中每天的课时数")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if seedValue == 0 {
		seedValue = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seedValue))

	// 生成配置文件不需要数据库
	if op == 2 {
		if size.Professors <= 0 || size.Courses <= 0 || size.Rooms <= 0 || size.Classes <= 0 || size.Days <= 0 || size.DayHours <= 0 {
			slog.Error("请输入合法的配置规模")
			return
		}
		doc := utils.GenerateRandomCatalogue(rng, size)
		if err := catalogue.WriteFile(out, doc); err != nil {
			slog.Error("无法写出排课配置", slog.String("error", err.Error()))
			return
		}
		slog.Info("生成排课配置成功", slog.String("path", out), slog.Int64("seed", seedValue))
		return
	}

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			slog.Error("请输入合法的用户数量")
			return
		}
		cnt := seed.SeedUsers(repo, rng, n, cfg.Seed.User.Password, cfg.Seed.EmailDomain)
		slog.Info("插入用户成功", slog.Int("count", cnt))
	case 3:
		if n <= 0 {
			slog.Error("请输入合法的排课任务数量")
			return
		}
		cnt := seed.SeedTimetableRuns(repo, rng, n, createdBy, size, cfg.DefaultOptimizerParameters())
		slog.Info("插入排课任务成功", slog.Int("count", cnt))
	case 4:
		if file == "" {
			slog.Error("请指定要导入的排课配置文件")
			return
		}
		run, err := seed.ImportCatalogue(repo, file, name, createdBy, cfg.Optimizer.Days, cfg.Optimizer.DayHours, cfg.DefaultOptimizerParameters())
		if err != nil {
			slog.Error("无法导入排课配置", slog.String("error", err.Error()))
			return
		}
		slog.Info("导入排课配置成功", slog.Int64("runID", run.ID))
	default:
		slog.Error("指定的操作非法")
	}
}
