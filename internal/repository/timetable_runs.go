package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
)

func (r *Repository) CreateTimetableRun(run *domain.TimetableRun) error {
	parameters, err := json.Marshal(run.Parameters)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO timetable_runs (name, created_by, notify_email, catalogue, parameters)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, status, created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	params := []any{run.Name, run.CreatedBy, run.NotifyEmail, []byte(run.Catalogue), parameters}
	dst := []any{&run.ID, &run.Status, &run.CreatedAt, &run.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, params...).Scan(dst...); err != nil {
		return err
	}

	return nil
}

// GetTimetableRunByID 返回完整的运行记录，包括排课配置
func (r *Repository) GetTimetableRunByID(id int64) (*domain.TimetableRun, error) {
	query := `
		SELECT
			name,
			created_by,
			notify_email,
			catalogue,
			parameters,
			status,
			best_fitness,
			generations,
			error_message,
			created_at,
			finished_at,
			version
		FROM timetable_runs
		WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	run := &domain.TimetableRun{
		ID: id,
	}

	var catalogue, parameters []byte
	dst := []any{
		&run.Name,
		&run.CreatedBy,
		&run.NotifyEmail,
		&catalogue,
		&parameters,
		&run.Status,
		&run.BestFitness,
		&run.Generations,
		&run.ErrorMessage,
		&run.CreatedAt,
		&run.FinishedAt,
		&run.Version,
	}

	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	run.Catalogue = catalogue
	if err := json.Unmarshal(parameters, &run.Parameters); err != nil {
		return nil, err
	}

	return run, nil
}

// GetAllTimetableRuns 列表中不返回排课配置
func (r *Repository) GetAllTimetableRuns() ([]*domain.TimetableRun, error) {
	query := `
		SELECT
			id,
			name,
			created_by,
			notify_email,
			parameters,
			status,
			best_fitness,
			generations,
			error_message,
			created_at,
			finished_at,
			version
		FROM timetable_runs
		ORDER BY created_at DESC
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*domain.TimetableRun{}
	for rows.Next() {
		var run domain.TimetableRun
		var parameters []byte
		dst := []any{
			&run.ID,
			&run.Name,
			&run.CreatedBy,
			&run.NotifyEmail,
			&parameters,
			&run.Status,
			&run.BestFitness,
			&run.Generations,
			&run.ErrorMessage,
			&run.CreatedAt,
			&run.FinishedAt,
			&run.Version,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(parameters, &run.Parameters); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

func (r *Repository) DeleteTimetableRun(id int64) error {
	query := `
		DELETE FROM timetable_runs WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	if _, err := r.dbpool.ExecContext(ctx, query, id); err != nil {
		return err
	}

	return nil
}

// UpdateTimetableRunStatus 更新运行状态，状态为 completed 或 failed 时同时记录结束时间
func (r *Repository) UpdateTimetableRunStatus(run *domain.TimetableRun) error {
	query := `
		UPDATE timetable_runs
		SET
			status = $1,
			best_fitness = $2,
			generations = $3,
			error_message = $4,
			finished_at = CASE WHEN $1::text IN ('completed', 'failed') THEN NOW() ELSE NULL END,
			version = version + 1
		WHERE id = $5
		RETURNING finished_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	params := []any{run.Status, run.BestFitness, run.Generations, run.ErrorMessage, run.ID}
	if err := r.dbpool.QueryRowContext(ctx, query, params...).Scan(&run.FinishedAt, &run.Version); err != nil {
		return err
	}

	return nil
}
