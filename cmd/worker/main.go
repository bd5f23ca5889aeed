package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc/pool"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/config"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/progress"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/repository"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/worker"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer pingCancel()

	if err := dbpool.PingContext(pingCtx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer rdb.Close()

	/**********************************************
	 * 连接 rabbitmq
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 rabbitmq", "error", err)
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法建立通道", "error", err)
		return
	}
	defer ch.Close()

	for _, queue := range []string{domain.TimetableQueue, domain.EmailQueue} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			logger.Error("无法声明队列", "queue", queue, "error", err)
			return
		}
	}

	// 同时最多处理 Concurrency 个排课任务，多余的消息留在队列中
	if err := ch.Qos(cfg.Worker.Concurrency, 0, false); err != nil {
		logger.Error("无法设置预取数量", "error", err)
		return
	}

	msgs, err := ch.Consume(domain.TimetableQueue, "", false, false, false, false, nil)
	if err != nil {
		logger.Error("无法消费消息", "error", err)
		return
	}

	/**********************************************
	 * 创建 worker
	 **********************************************/
	var publishMu sync.Mutex
	notify := func(msg domain.MailMessage) error {
		body, err := json.Marshal(msg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)
		defer cancel()

		publishMu.Lock()
		defer publishMu.Unlock()
		return ch.PublishWithContext(ctx, "", domain.EmailQueue, true, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Body:         body,
		})
	}

	reporterFactory := func(runID int64) (scheduler.Reporter, func()) {
		r := progress.NewRedisReporter(rdb, runID,
			time.Duration(cfg.Redis.ProgressExpiration)*time.Second,
			time.Duration(cfg.Redis.OperationExpiration)*time.Second,
		)
		return r, r.Close
	}

	w := worker.New(repo, cfg.Optimizer.Days, cfg.Optimizer.DayHours,
		time.Duration(cfg.Worker.RunTimeout)*time.Second,
		worker.WithNotifier(notify),
		worker.WithReporterFactory(reporterFactory),
	)

	/**********************************************
	 * 处理消息
	 **********************************************/
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := pool.New().WithMaxGoroutines(cfg.Worker.Concurrency)

	logger.Info("等待排课任务...（按 CTRL+C 退出）", "concurrency", cfg.Worker.Concurrency)

loop:
	for {
		select {
		case <-quit:
			break loop
		case msg, ok := <-msgs:
			if !ok {
				logger.Error("消息通道已关闭")
				break loop
			}

			p.Go(func() {
				job := domain.TimetableJob{}
				if err := json.Unmarshal(msg.Body, &job); err != nil {
					logger.Error("排课任务反序列化失败", "error", err)
					_ = msg.Nack(false, false)
					return
				}

				if err := w.Process(ctx, job); err != nil {
					logger.Error("排课任务需要重试", "runID", job.RunID, "error", err)
					_ = msg.Nack(false, true)
					return
				}

				_ = msg.Ack(false)
			})
		}
	}

	// 中断正在进行的排课，让它们重新入队
	logger.Info("正在关闭 worker...")
	cancel()
	p.Wait()
	logger.Info("worker 已成功关闭")
}
