package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gocarina/gocsv"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/catalogue"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/timetable"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/utils"
)

// solve 在本地直接求解一份排课配置，不依赖数据库和消息队列
func main() {
	params := scheduler.DefaultParameters()

	var path string
	var out string
	var mode string
	var days int
	var dayHours int
	var seedValue int64

	flag.StringVar(&path, "catalogue", "", "排课配置文件，支持 .json/.yaml/.yml/.xls 以及 CSV 目录")
	flag.StringVar(&out, "out", "", "排课结果的 CSV 输出路径，为空时输出到终端")
	flag.StringVar(&mode, "mode", "hybrid", "优化策略 (hybrid: QPSO + NSGA, nsga: 仅 NSGA)")
	flag.IntVar(&days, "days", 5, "配置文件未指定时每周的天数")
	flag.IntVar(&dayHours, "day-hours", 12, "配置文件未指定时每天的课时数")
	flag.Int64Var(&seedValue, "seed", 0, "随机数种子，0 表示使用当前时间")
	flag.IntVar(&params.PopulationSize, "population", params.PopulationSize, "种群大小")
	flag.IntVar(&params.MaxGenerations, "generations", params.MaxGenerations, "最大迭代次数")
	flag.Float64Var(&params.MinFitness, "min-fitness", params.MinFitness, "适应度超过该值即停止")
	flag.IntVar(&params.MaxRepeat, "max-repeat", params.MaxRepeat, "停滞阈值")
	flag.IntVar(&params.NumberOfCrossoverPoints, "crossover-points", params.NumberOfCrossoverPoints, "交叉点数量")
	flag.IntVar(&params.MutationSize, "mutation-size", params.MutationSize, "每次变异移动的教学班数量")
	flag.Float64Var(&params.CrossoverProbability, "crossover-probability", params.CrossoverProbability, "交叉概率（百分比）")
	flag.Float64Var(&params.MutationProbability, "mutation-probability", params.MutationProbability, "变异概率（百分比）")
	flag.StringVar(&params.CrossoverMode, "crossover-mode", params.CrossoverMode, "交叉方式 (kpoint, differential)")
	flag.Float64Var(&params.ScaleFactor, "scale-factor", params.ScaleFactor, "差分交叉的缩放因子")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if path == "" {
		slog.Error("请指定排课配置文件")
		os.Exit(2)
	}

	var strategy scheduler.StrategyFactory
	switch mode {
	case "hybrid":
		strategy = scheduler.HybridStrategy
	case "nsga":
		strategy = scheduler.NSGAStrategy
	default:
		slog.Error("未知的优化策略", slog.String("mode", mode))
		os.Exit(2)
	}

	/**********************************************
	 * 读取排课配置
	 **********************************************/
	doc, err := catalogue.LoadFile(path)
	if err != nil {
		slog.Error("无法读取排课配置", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cat, err := catalogue.Build(doc, days, dayHours)
	if err != nil {
		slog.Error("排课配置无效", slog.String("error", err.Error()))
		os.Exit(1)
	}
	prototype, err := timetable.NewPrototype(cat)
	if err != nil {
		slog.Error("排课配置无效", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if seedValue == 0 {
		seedValue = time.Now().UnixNano()
	}

	opt, err := scheduler.New(prototype, params,
		scheduler.WithStrategy(strategy),
		scheduler.WithRandom(rand.New(rand.NewSource(seedValue))),
		scheduler.WithReporter(scheduler.NewConsoleReporter(os.Stdout)),
	)
	if err != nil {
		slog.Error("无法创建优化器", slog.String("error", err.Error()))
		os.Exit(1)
	}

	/**********************************************
	 * 求解，CTRL+C 时输出当前最优结果
	 **********************************************/
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	res, err := opt.Run(ctx)
	fmt.Println()
	if err != nil {
		slog.Warn("排课被中断，输出当前最优结果", slog.String("error", err.Error()))
	}
	if res == nil || res.Best == nil {
		os.Exit(1)
	}

	reservations := res.Reservations()
	if err := utils.ValidateTimetableResult(cat, reservations); err != nil {
		slog.Error("排课结果无效", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("Completed in %.3f secs with peak memory usage of %s.\n", time.Since(start).Seconds(), peakMemory())
	fmt.Printf("Fitness: %f\tGenerations: %d\tConverged: %t\tSeed: %d\n", res.Best.Fitness(), res.Generations, res.Converged, seedValue)

	/**********************************************
	 * 输出排课结果
	 **********************************************/
	entries := utils.DescribeTimetable(cat, reservations)
	if out == "" {
		if err := gocsv.Marshal(entries, os.Stdout); err != nil {
			slog.Error("无法输出排课结果", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	f, err := os.Create(out)
	if err != nil {
		slog.Error("无法创建输出文件", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(entries, f); err != nil {
		slog.Error("无法写出排课结果", slog.String("error", err.Error()))
		return
	}
	slog.Info("排课结果已写出", slog.String("path", out), slog.Int("classes", len(entries)))
}

// peakMemory 返回进程向操作系统申请的内存总量
func peakMemory() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return humanize.IBytes(m.Sys)
}
