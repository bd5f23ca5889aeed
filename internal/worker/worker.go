package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sysu-ecnc-dev/timetabler/backend/internal/catalogue"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/timetable"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/utils"
)

// ErrInterrupted 表示排课因为 worker 退出而中断，任务需要重新入队
var ErrInterrupted = errors.New("排课被中断")

type Store interface {
	GetTimetableRunByID(id int64) (*domain.TimetableRun, error)
	UpdateTimetableRunStatus(run *domain.TimetableRun) error
	InsertTimetableResult(result *domain.TimetableResult) error
}

// ReporterFactory 为一次排课创建进度上报器，返回的 close 在排课结束后调用
type ReporterFactory func(runID int64) (reporter scheduler.Reporter, close func())

type Worker struct {
	store       Store
	notify      func(msg domain.MailMessage) error
	newReporter ReporterFactory

	days       int
	dayHours   int
	runTimeout time.Duration
	logEvery   int
}

type Option func(*Worker)

func WithNotifier(notify func(msg domain.MailMessage) error) Option {
	return func(w *Worker) {
		w.notify = notify
	}
}

func WithReporterFactory(factory ReporterFactory) Option {
	return func(w *Worker) {
		w.newReporter = factory
	}
}

// WithLogEvery 每隔 n 代输出一次日志，n 为 0 时不输出
func WithLogEvery(n int) Option {
	return func(w *Worker) {
		w.logEvery = n
	}
}

func New(store Store, days int, dayHours int, runTimeout time.Duration, opts ...Option) *Worker {
	w := &Worker{
		store:      store,
		notify:     func(domain.MailMessage) error { return nil },
		days:       days,
		dayHours:   dayHours,
		runTimeout: runTimeout,
		logEvery:   500,
		newReporter: func(int64) (scheduler.Reporter, func()) {
			return scheduler.ReporterFunc(func(float64, int) {}), func() {}
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Process 执行一次排课任务
// 返回 nil 表示消息可以确认，返回错误表示消息需要重新入队
func (w *Worker) Process(ctx context.Context, job domain.TimetableJob) error {
	run, err := w.store.GetTimetableRunByID(job.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Warn("排课任务不存在，可能已被删除", "runID", job.RunID)
			return nil
		}
		return err
	}

	if run.Status == domain.TimetableRunCompleted || run.Status == domain.TimetableRunFailed {
		slog.Warn("排课任务已经结束，跳过", "runID", run.ID, "status", run.Status)
		return nil
	}

	run.Status = domain.TimetableRunRunning
	if err := w.store.UpdateTimetableRunStatus(run); err != nil {
		return err
	}
	slog.Info("开始排课", "runID", run.ID, "name", run.Name)

	start := time.Now()
	result, err := w.solve(ctx, run)
	if err != nil {
		if errors.Is(err, ErrInterrupted) {
			// 恢复为 pending，等待重新投递
			run.Status = domain.TimetableRunPending
			if updateErr := w.store.UpdateTimetableRunStatus(run); updateErr != nil {
				slog.Error("无法恢复排课任务状态", "runID", run.ID, "error", updateErr)
			}
			return err
		}

		slog.Error("排课失败", "runID", run.ID, "error", err)
		run.Status = domain.TimetableRunFailed
		run.ErrorMessage = err.Error()
		if err := w.store.UpdateTimetableRunStatus(run); err != nil {
			return err
		}
		w.sendMail(run, "timetable_failed", domain.TimetableFailedMailData{
			RunID:  run.ID,
			Name:   run.Name,
			Reason: run.ErrorMessage,
		})
		return nil
	}

	if err := w.store.InsertTimetableResult(result); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Warn("排课任务在排课过程中被删除", "runID", run.ID)
			return nil
		}
		return err
	}
	slog.Info("排课完成", "runID", run.ID, "fitness", result.Fitness, "generations", result.Generations, "duration", time.Since(start))

	w.sendMail(run, "timetable_completed", domain.TimetableCompletedMailData{
		RunID:       run.ID,
		Name:        run.Name,
		Fitness:     result.Fitness,
		Generations: result.Generations,
	})
	return nil
}

func (w *Worker) solve(ctx context.Context, run *domain.TimetableRun) (*domain.TimetableResult, error) {
	doc, err := catalogue.ParseJSON(run.Catalogue)
	if err != nil {
		return nil, err
	}
	cat, err := catalogue.Build(doc, w.days, w.dayHours)
	if err != nil {
		return nil, err
	}
	prototype, err := timetable.NewPrototype(cat)
	if err != nil {
		return nil, err
	}

	seed := run.Parameters.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	reporter, closeReporter := w.newReporter(run.ID)
	defer closeReporter()

	if w.logEvery > 0 {
		reporter = scheduler.MultiReporter(reporter, scheduler.ReporterFunc(func(fitness float64, generation int) {
			if generation%w.logEvery == 0 {
				slog.Info("排课进度", "runID", run.ID, "fitness", fitness, "generation", generation)
			}
		}))
	}

	opt, err := scheduler.New(prototype, scheduler.NewParameters(run.Parameters),
		scheduler.WithRandom(rand.New(rand.NewSource(seed))),
		scheduler.WithReporter(reporter),
	)
	if err != nil {
		return nil, err
	}

	runCtx := ctx
	if w.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.runTimeout)
		defer cancel()
	}

	res, err := opt.Run(runCtx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
	case errors.Is(err, context.DeadlineExceeded):
		// 超时后使用当前的最优结果
		slog.Warn("排课超时，使用当前最优结果", "runID", run.ID, "generations", res.Generations)
	default:
		return nil, err
	}

	reservations := res.Reservations()
	if err := utils.ValidateTimetableResult(cat, reservations); err != nil {
		return nil, err
	}

	return &domain.TimetableResult{
		RunID:        run.ID,
		Fitness:      res.Best.Fitness(),
		Generations:  res.Generations,
		Reservations: reservations,
	}, nil
}

func (w *Worker) sendMail(run *domain.TimetableRun, kind string, data any) {
	if run.NotifyEmail == "" {
		return
	}

	if err := w.notify(domain.MailMessage{Type: kind, To: run.NotifyEmail, Data: data}); err != nil {
		slog.Error("无法发送排课通知", "runID", run.ID, "error", err)
	}
}
