package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/devid8642/weather-alert/pkg/model"
)

func (s *SQLStore) GetOrCreateIntervalSchedule(ctx context.Context, every int, period string) (*model.IntervalSchedule, error) {
	if every <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %d", every)
	}

	_, err := s.exec(ctx,
		`INSERT INTO interval_schedules (every, period) VALUES (?, ?) ON CONFLICT (every, period) DO NOTHING`,
		every, period,
	)
	if err != nil {
		return nil, fmt.Errorf("insert interval schedule: %w", err)
	}

	var is model.IntervalSchedule
	err = s.queryRow(ctx,
		`SELECT id, every, period FROM interval_schedules WHERE every = ? AND period = ?`, every, period,
	).Scan(&is.ID, &is.Every, &is.Period)
	if err != nil {
		return nil, fmt.Errorf("get interval schedule: %w", err)
	}
	return &is, nil
}

const periodicTaskSelect = `SELECT t.id, t.name, t.task, t.args, t.interval_id, i.id, i.every, i.period,
	t.alert_config_id, t.enabled, t.last_run_at, t.total_run_count, t.date_changed
	FROM periodic_tasks t JOIN interval_schedules i ON i.id = t.interval_id`

func scanPeriodicTask(row rowScanner) (*model.PeriodicTask, error) {
	var (
		t        model.PeriodicTask
		configID sql.NullInt64
		lastRun  sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Task, &t.Args, &t.IntervalID,
		&t.Interval.ID, &t.Interval.Every, &t.Interval.Period,
		&configID, &t.Enabled, &lastRun, &t.TotalRunCount, &t.DateChanged); err != nil {
		return nil, err
	}
	if configID.Valid {
		id := configID.Int64
		t.AlertConfigID = &id
	}
	if lastRun.Valid {
		at := lastRun.Time
		t.LastRunAt = &at
	}
	return &t, nil
}

func (s *SQLStore) CreatePeriodicTask(ctx context.Context, task *model.PeriodicTask) error {
	if task.Args == "" {
		task.Args = "[]"
	}
	task.DateChanged = time.Now().UTC()

	id, err := s.insert(ctx,
		`INSERT INTO periodic_tasks (name, task, args, interval_id, alert_config_id, enabled, total_run_count, date_changed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.Name, task.Task, task.Args, task.IntervalID, nullableID(task.AlertConfigID),
		task.Enabled, task.TotalRunCount, task.DateChanged,
	)
	if err != nil {
		return fmt.Errorf("insert periodic task: %w", err)
	}
	task.ID = id
	return nil
}

func (s *SQLStore) GetPeriodicTask(ctx context.Context, name string) (*model.PeriodicTask, error) {
	t, err := scanPeriodicTask(s.queryRow(ctx, periodicTaskSelect+" WHERE t.name = ?", name))
	if err != nil {
		return nil, notFound(err, "periodic task", fmt.Sprintf("%q", name))
	}
	return t, nil
}

// UpdatePeriodicTask rewrites the schedule fields of the task with the given name.
func (s *SQLStore) UpdatePeriodicTask(ctx context.Context, task *model.PeriodicTask) error {
	task.DateChanged = time.Now().UTC()

	result, err := s.exec(ctx,
		`UPDATE periodic_tasks SET task = ?, args = ?, interval_id = ?, alert_config_id = ?, enabled = ?, date_changed = ?
		 WHERE name = ?`,
		task.Task, task.Args, task.IntervalID, nullableID(task.AlertConfigID),
		task.Enabled, task.DateChanged, task.Name,
	)
	if err != nil {
		return fmt.Errorf("update periodic task: %w", err)
	}
	return expectAffected(result, "periodic task", fmt.Sprintf("%q", task.Name))
}

func (s *SQLStore) DeletePeriodicTask(ctx context.Context, name string) error {
	result, err := s.exec(ctx, `DELETE FROM periodic_tasks WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete periodic task: %w", err)
	}
	return expectAffected(result, "periodic task", fmt.Sprintf("%q", name))
}

func (s *SQLStore) ListPeriodicTasks(ctx context.Context) ([]model.PeriodicTask, error) {
	rows, err := s.query(ctx, periodicTaskSelect+" ORDER BY t.id")
	if err != nil {
		return nil, fmt.Errorf("list periodic tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.PeriodicTask{}
	for rows.Next() {
		t, err := scanPeriodicTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan periodic task row: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *SQLStore) RecordTaskRun(ctx context.Context, name string, at time.Time) error {
	result, err := s.exec(ctx,
		`UPDATE periodic_tasks SET last_run_at = ?, total_run_count = total_run_count + 1 WHERE name = ?`,
		at.UTC(), name,
	)
	if err != nil {
		return fmt.Errorf("record task run: %w", err)
	}
	return expectAffected(result, "periodic task", fmt.Sprintf("%q", name))
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
