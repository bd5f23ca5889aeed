package progress

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
)

func Key(runID int64) string {
	return fmt.Sprintf("timetable_run_%d_progress", runID)
}

type sink func(ctx context.Context, p domain.TimetableProgress) error

// Reporter 把优化进度写入 redis
// Report 不会阻塞：后台协程只写最新的进度，来不及写的旧进度直接丢弃
type Reporter struct {
	runID   int64
	timeout time.Duration
	write   sink

	latest chan domain.TimetableProgress
	done   chan struct{}
}

func NewRedisReporter(rdb *redis.Client, runID int64, expiration time.Duration, timeout time.Duration) *Reporter {
	return newReporter(runID, timeout, func(ctx context.Context, p domain.TimetableProgress) error {
		key := Key(p.RunID)
		_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"fitness", p.Fitness,
				"generation", p.Generation,
				"updatedAt", p.UpdatedAt.Unix(),
			)
			pipe.Expire(ctx, key, expiration)
			return nil
		})
		return err
	})
}

func newReporter(runID int64, timeout time.Duration, write sink) *Reporter {
	r := &Reporter{
		runID:   runID,
		timeout: timeout,
		write:   write,
		latest:  make(chan domain.TimetableProgress, 1),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *Reporter) Report(fitness float64, generation int) {
	p := domain.TimetableProgress{
		RunID:      r.runID,
		Fitness:    fitness,
		Generation: generation,
		UpdatedAt:  time.Now(),
	}

	for {
		select {
		case r.latest <- p:
			return
		default:
		}

		// 缓冲区中还有没写出去的旧进度，丢掉它
		select {
		case <-r.latest:
		default:
		}
	}
}

// Close 写出最后一条进度后返回，调用之后不能再调用 Report
func (r *Reporter) Close() {
	close(r.latest)
	<-r.done
}

func (r *Reporter) loop() {
	defer close(r.done)

	for p := range r.latest {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.write(ctx, p); err != nil {
			slog.Warn("无法写入排课进度", "runID", r.runID, "error", err)
		}
		cancel()
	}
}

// Get 读取排课进度，不存在时返回 redis.Nil
func Get(ctx context.Context, rdb *redis.Client, runID int64) (*domain.TimetableProgress, error) {
	values, err := rdb.HGetAll(ctx, Key(runID)).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, redis.Nil
	}

	return parse(runID, values)
}

func parse(runID int64, values map[string]string) (*domain.TimetableProgress, error) {
	fitness, err := strconv.ParseFloat(values["fitness"], 64)
	if err != nil {
		return nil, fmt.Errorf("无效的适应度 %q: %w", values["fitness"], err)
	}
	generation, err := strconv.Atoi(values["generation"])
	if err != nil {
		return nil, fmt.Errorf("无效的迭代次数 %q: %w", values["generation"], err)
	}
	updatedAt, err := strconv.ParseInt(values["updatedAt"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("无效的更新时间 %q: %w", values["updatedAt"], err)
	}

	return &domain.TimetableProgress{
		RunID:      runID,
		Fitness:    fitness,
		Generation: generation,
		UpdatedAt:  time.Unix(updatedAt, 0),
	}, nil
}

func Delete(ctx context.Context, rdb *redis.Client, runID int64) error {
	return rdb.Del(ctx, Key(runID)).Err()
}
