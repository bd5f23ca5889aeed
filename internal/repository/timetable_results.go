package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
)

// InsertTimetableResult 在一个事务中写入排课结果，并把运行状态标记为 completed
func (r *Repository) InsertTimetableResult(result *domain.TimetableResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 先将之前的排课结果删除
	query := `DELETE FROM timetable_run_reservations WHERE run_id = $1`
	if _, err := tx.ExecContext(ctx, query, result.RunID); err != nil {
		return err
	}

	for _, reservation := range result.Reservations {
		query := `
			INSERT INTO timetable_run_reservations (run_id, class_id, day, room_id, start_time)
			VALUES ($1, $2, $3, $4, $5)
		`

		args := []any{result.RunID, reservation.ClassID, reservation.Day, reservation.RoomID, reservation.StartTime}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	query = `
		UPDATE timetable_runs
		SET
			status = 'completed',
			best_fitness = $1,
			generations = $2,
			error_message = '',
			finished_at = NOW(),
			version = version + 1
		WHERE id = $3
	`
	res, err := tx.ExecContext(ctx, query, result.Fitness, result.Generations, result.RunID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// 运行记录在排课过程中被删除了
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

// GetTimetableResultByRunID 只有状态为 completed 的运行才有结果，否则返回 sql.ErrNoRows
func (r *Repository) GetTimetableResultByRunID(runID int64) (*domain.TimetableResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT
			tr.best_fitness,
			tr.generations,
			trr.class_id,
			trr.day,
			trr.room_id,
			trr.start_time
		FROM timetable_runs tr
		LEFT JOIN timetable_run_reservations trr ON tr.id = trr.run_id
		WHERE tr.id = $1 AND tr.status = 'completed'
		ORDER BY trr.class_id
	`

	rows, err := r.dbpool.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &domain.TimetableResult{
		RunID:        runID,
		Reservations: make([]domain.TimetableReservation, 0),
	}

	found := false
	for rows.Next() {
		var row struct {
			classID   sql.NullInt64
			day       sql.NullInt64
			roomID    sql.NullInt64
			startTime sql.NullInt64
		}

		dst := []any{
			&result.Fitness,
			&result.Generations,
			&row.classID,
			&row.day,
			&row.roomID,
			&row.startTime,
		}

		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		found = true

		if !row.classID.Valid {
			// 没有任何预约，说明排课配置中没有教学班，这在业务上是不可能的
			continue
		}

		result.Reservations = append(result.Reservations, domain.TimetableReservation{
			ClassID:   int(row.classID.Int64),
			Day:       int(row.day.Int64),
			RoomID:    int(row.roomID.Int64),
			StartTime: int(row.startTime.Int64),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !found {
		return nil, sql.ErrNoRows
	}

	return result, nil
}
