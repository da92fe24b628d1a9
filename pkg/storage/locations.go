package storage

import (
	"context"
	"fmt"

	"github.com/devid8642/weather-alert/pkg/model"
)

func (s *SQLStore) CreateLocation(ctx context.Context, loc *model.Location) error {
	id, err := s.insert(ctx,
		`INSERT INTO locations (name, latitude, longitude) VALUES (?, ?, ?)`,
		loc.Name, loc.Latitude, loc.Longitude,
	)
	if err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	loc.ID = id
	return nil
}

func (s *SQLStore) GetLocation(ctx context.Context, id int64) (*model.Location, error) {
	var l model.Location
	err := s.queryRow(ctx,
		`SELECT id, name, latitude, longitude FROM locations WHERE id = ?`, id,
	).Scan(&l.ID, &l.Name, &l.Latitude, &l.Longitude)
	if err != nil {
		return nil, notFound(err, "location", id)
	}
	return &l, nil
}

func (s *SQLStore) ListLocations(ctx context.Context) ([]model.Location, error) {
	rows, err := s.query(ctx, `SELECT id, name, latitude, longitude FROM locations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	locations := []model.Location{}
	for rows.Next() {
		var l model.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Latitude, &l.Longitude); err != nil {
			return nil, fmt.Errorf("scan location row: %w", err)
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (s *SQLStore) DeleteLocation(ctx context.Context, id int64) error {
	result, err := s.exec(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	return expectAffected(result, "location", id)
}

const alertConfigColumns = `c.id, c.location_id, c.temperature_threshold, c.check_interval_minutes,
	l.id, l.name, l.latitude, l.longitude`

const alertConfigFrom = ` FROM alert_configs c JOIN locations l ON l.id = c.location_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlertConfig(row rowScanner) (*model.AlertConfig, error) {
	var c model.AlertConfig
	var l model.Location
	if err := row.Scan(&c.ID, &c.LocationID, &c.TemperatureThreshold, &c.CheckIntervalMinutes,
		&l.ID, &l.Name, &l.Latitude, &l.Longitude); err != nil {
		return nil, err
	}
	c.Location = &l
	return &c, nil
}

func (s *SQLStore) CreateAlertConfig(ctx context.Context, cfg *model.AlertConfig) error {
	if cfg.CheckIntervalMinutes == 0 {
		cfg.CheckIntervalMinutes = model.DefaultCheckIntervalMinutes
	}

	id, err := s.insert(ctx,
		`INSERT INTO alert_configs (location_id, temperature_threshold, check_interval_minutes) VALUES (?, ?, ?)`,
		cfg.LocationID, cfg.TemperatureThreshold, cfg.CheckIntervalMinutes,
	)
	if err != nil {
		return fmt.Errorf("insert alert config: %w", err)
	}
	cfg.ID = id
	return nil
}

func (s *SQLStore) GetAlertConfig(ctx context.Context, id int64) (*model.AlertConfig, error) {
	cfg, err := scanAlertConfig(s.queryRow(ctx,
		"SELECT "+alertConfigColumns+alertConfigFrom+" WHERE c.id = ?", id))
	if err != nil {
		return nil, notFound(err, "alert config", id)
	}
	return cfg, nil
}

func (s *SQLStore) ListAlertConfigs(ctx context.Context) ([]model.AlertConfig, error) {
	rows, err := s.query(ctx, "SELECT "+alertConfigColumns+alertConfigFrom+" ORDER BY c.id")
	if err != nil {
		return nil, fmt.Errorf("list alert configs: %w", err)
	}
	defer rows.Close()

	configs := []model.AlertConfig{}
	for rows.Next() {
		cfg, err := scanAlertConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert config row: %w", err)
		}
		configs = append(configs, *cfg)
	}
	return configs, rows.Err()
}

func (s *SQLStore) UpdateAlertConfig(ctx context.Context, cfg *model.AlertConfig) error {
	result, err := s.exec(ctx,
		`UPDATE alert_configs SET temperature_threshold = ?, check_interval_minutes = ? WHERE id = ?`,
		cfg.TemperatureThreshold, cfg.CheckIntervalMinutes, cfg.ID,
	)
	if err != nil {
		return fmt.Errorf("update alert config: %w", err)
	}
	return expectAffected(result, "alert config", cfg.ID)
}

func (s *SQLStore) DeleteAlertConfig(ctx context.Context, id int64) error {
	result, err := s.exec(ctx, `DELETE FROM alert_configs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete alert config: %w", err)
	}
	return expectAffected(result, "alert config", id)
}
