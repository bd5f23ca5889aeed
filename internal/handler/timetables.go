package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/catalogue"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/progress"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/utils"
)

// buildCatalogue 解析并校验请求中的排课配置，天数和课时数的默认值来自配置
func (h *Handler) buildCatalogue(raw json.RawMessage) (*domain.Catalogue, error) {
	doc, err := catalogue.ParseJSON(raw)
	if err != nil {
		return nil, err
	}
	return catalogue.Build(doc, h.config.Optimizer.Days, h.config.Optimizer.DayHours)
}

func (h *Handler) CreateTimetableRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string                     `json:"name" validate:"required,max=100"`
		NotifyEmail string                     `json:"notifyEmail" validate:"omitempty,email"`
		Catalogue   json.RawMessage            `json:"catalogue" validate:"required"`
		Parameters  domain.OptimizerParameters `json:"parameters" validate:"-"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 未提交的参数使用配置中的默认值
	params := h.config.DefaultOptimizerParameters().Merge(req.Parameters)
	if err := h.validate.Struct(params); err != nil {
		h.badRequest(w, r, err)
		return
	}
	sp := scheduler.NewParameters(params)
	if err := sp.Validate(); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 提前构建一次，退化的配置不会进入队列
	if _, err := h.buildCatalogue(req.Catalogue); err != nil {
		h.badRequest(w, r, err)
		return
	}

	sub, err := h.currentUserID(r)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	run := &domain.TimetableRun{
		Name:        req.Name,
		CreatedBy:   sub,
		NotifyEmail: req.NotifyEmail,
		Catalogue:   req.Catalogue,
		Parameters:  params,
	}
	if err := h.repository.CreateTimetableRun(run); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 投递到排课队列
	if err := h.publish(domain.TimetableQueue, domain.TimetableJob{RunID: run.ID}); err != nil {
		run.Status = domain.TimetableRunFailed
		run.ErrorMessage = "无法投递排课任务"
		if updateErr := h.repository.UpdateTimetableRunStatus(run); updateErr != nil {
			slog.Error("无法更新排课任务状态", "runID", run.ID, "error", updateErr)
		}
		h.internalServerError(w, r, err)
		return
	}

	run.Catalogue = nil
	h.successResponse(w, r, "排课任务已创建", run)
}

func (h *Handler) GetAllTimetableRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.repository.GetAllTimetableRuns()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取排课任务列表成功", runs)
}

func (h *Handler) GetTimetableRun(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(TimetableRunCtx).(*domain.TimetableRun)
	h.successResponse(w, r, "获取排课任务成功", run)
}

func (h *Handler) DeleteTimetableRun(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(TimetableRunCtx).(*domain.TimetableRun)

	if err := h.repository.DeleteTimetableRun(run.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 进度会自动过期，删除失败不影响结果
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationExpiration)*time.Second)
	defer cancel()
	if err := progress.Delete(ctx, h.redisClient, run.ID); err != nil {
		slog.Warn("无法删除排课进度", "runID", run.ID, "error", err)
	}

	h.successResponse(w, r, "删除排课任务成功", nil)
}

func (h *Handler) GetTimetableProgress(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(TimetableRunCtx).(*domain.TimetableRun)

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationExpiration)*time.Second)
	defer cancel()

	p, err := progress.Get(ctx, h.redisClient, run.ID)
	if err != nil {
		switch {
		case errors.Is(err, redis.Nil):
			h.successResponse(w, r, "暂无排课进度", nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "获取排课进度成功", p)
}

// GetTimetableResult 默认返回 JSON，?format=csv 时以 CSV 文件的形式返回便于阅读的课表
func (h *Handler) GetTimetableResult(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(TimetableRunCtx).(*domain.TimetableRun)

	result, err := h.repository.GetTimetableResultByRunID(run.ID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "排课结果不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	cat, err := h.buildCatalogue(run.Catalogue)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	result.Entries = utils.DescribeTimetable(cat, result.Reservations)

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename=timetable.csv")
		if err := gocsv.Marshal(result.Entries, w); err != nil {
			h.logInternalServerError(r, err)
		}
		return
	}

	h.successResponse(w, r, "获取排课结果成功", result)
}
