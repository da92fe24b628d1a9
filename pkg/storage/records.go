package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/devid8642/weather-alert/pkg/model"
)

const alertSelect = `SELECT a.id, a.location_id, l.name, a.temperature, a.threshold, a.timestamp, a.notified
	FROM alerts a JOIN locations l ON l.id = a.location_id`

func scanAlert(row rowScanner) (*model.Alert, error) {
	var a model.Alert
	if err := row.Scan(&a.ID, &a.LocationID, &a.LocationName, &a.Temperature,
		&a.Threshold, &a.Timestamp, &a.Notified); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLStore) CreateAlert(ctx context.Context, alert *model.Alert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}

	id, err := s.insert(ctx,
		`INSERT INTO alerts (location_id, temperature, threshold, timestamp, notified) VALUES (?, ?, ?, ?, ?)`,
		alert.LocationID, alert.Temperature, alert.Threshold, alert.Timestamp, alert.Notified,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	alert.ID = id
	return nil
}

func (s *SQLStore) GetAlert(ctx context.Context, id int64) (*model.Alert, error) {
	a, err := scanAlert(s.queryRow(ctx, alertSelect+" WHERE a.id = ?", id))
	if err != nil {
		return nil, notFound(err, "alert", id)
	}
	return a, nil
}

func (s *SQLStore) ListAlerts(ctx context.Context, filter model.ListFilter) ([]model.Alert, error) {
	query := alertSelect
	where, args := buildWhereClause("a.location_id", filter.LocationID)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY a.timestamp DESC, a.id DESC"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	alerts := []model.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

func (s *SQLStore) MarkAlertNotified(ctx context.Context, id int64) error {
	result, err := s.exec(ctx, `UPDATE alerts SET notified = ? WHERE id = ?`, true, id)
	if err != nil {
		return fmt.Errorf("mark alert notified: %w", err)
	}
	return expectAffected(result, "alert", id)
}

func (s *SQLStore) CreateTemperatureLog(ctx context.Context, log *model.TemperatureLog) error {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	id, err := s.insert(ctx,
		`INSERT INTO temperature_logs (location_id, temperature, timestamp) VALUES (?, ?, ?)`,
		log.LocationID, log.Temperature, log.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert temperature log: %w", err)
	}
	log.ID = id
	return nil
}

func (s *SQLStore) GetTemperatureLog(ctx context.Context, id int64) (*model.TemperatureLog, error) {
	var t model.TemperatureLog
	err := s.queryRow(ctx,
		`SELECT id, location_id, temperature, timestamp FROM temperature_logs WHERE id = ?`, id,
	).Scan(&t.ID, &t.LocationID, &t.Temperature, &t.Timestamp)
	if err != nil {
		return nil, notFound(err, "temperature log", id)
	}
	return &t, nil
}

func (s *SQLStore) ListTemperatureLogs(ctx context.Context, filter model.ListFilter) ([]model.TemperatureLog, error) {
	query := "SELECT id, location_id, temperature, timestamp FROM temperature_logs"
	where, args := buildWhereClause("location_id", filter.LocationID)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY timestamp DESC, id DESC"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list temperature logs: %w", err)
	}
	defer rows.Close()

	logs := []model.TemperatureLog{}
	for rows.Next() {
		var t model.TemperatureLog
		if err := rows.Scan(&t.ID, &t.LocationID, &t.Temperature, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan temperature log row: %w", err)
		}
		logs = append(logs, t)
	}
	return logs, rows.Err()
}
