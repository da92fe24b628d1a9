package storage

import (
	"database/sql"
	"fmt"
)

// migration holds one schema step for each supported dialect.
type migration struct {
	sqlite   string
	postgres string
}

var migrations = []migration{
	// Migration 1: initial schema
	{
		sqlite: `CREATE TABLE IF NOT EXISTS locations (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		name      TEXT NOT NULL,
		latitude  REAL NOT NULL,
		longitude REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS alert_configs (
		id                     INTEGER PRIMARY KEY AUTOINCREMENT,
		location_id            INTEGER NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
		temperature_threshold  REAL NOT NULL,
		check_interval_minutes INTEGER NOT NULL DEFAULT 30 CHECK(check_interval_minutes > 0)
	);

	CREATE TABLE IF NOT EXISTS alerts (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		location_id INTEGER NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
		temperature REAL NOT NULL,
		threshold   REAL NOT NULL,
		timestamp   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		notified    BOOLEAN NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS temperature_logs (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		location_id INTEGER NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
		temperature REAL NOT NULL,
		timestamp   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_alert_configs_location ON alert_configs(location_id);
	CREATE INDEX IF NOT EXISTS idx_alerts_location ON alerts(location_id);
	CREATE INDEX IF NOT EXISTS idx_temperature_logs_location ON temperature_logs(location_id);
	CREATE INDEX IF NOT EXISTS idx_temperature_logs_timestamp ON temperature_logs(timestamp);

	CREATE TABLE IF NOT EXISTS interval_schedules (
		id     INTEGER PRIMARY KEY AUTOINCREMENT,
		every  INTEGER NOT NULL CHECK(every > 0),
		period TEXT NOT NULL,
		UNIQUE(every, period)
	);

	CREATE TABLE IF NOT EXISTS periodic_tasks (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		name            TEXT NOT NULL UNIQUE,
		task            TEXT NOT NULL,
		args            TEXT NOT NULL DEFAULT '[]',
		interval_id     INTEGER NOT NULL REFERENCES interval_schedules(id),
		alert_config_id INTEGER REFERENCES alert_configs(id) ON DELETE CASCADE,
		enabled         BOOLEAN NOT NULL DEFAULT 1,
		last_run_at     DATETIME,
		total_run_count INTEGER NOT NULL DEFAULT 0,
		date_changed    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
		postgres: `CREATE TABLE IF NOT EXISTS locations (
		id        BIGSERIAL PRIMARY KEY,
		name      TEXT NOT NULL,
		latitude  DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL
	);

	CREATE TABLE IF NOT EXISTS alert_configs (
		id                     BIGSERIAL PRIMARY KEY,
		location_id            BIGINT NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
		temperature_threshold  DOUBLE PRECISION NOT NULL,
		check_interval_minutes INTEGER NOT NULL DEFAULT 30 CHECK(check_interval_minutes > 0)
	);

	CREATE TABLE IF NOT EXISTS alerts (
		id          BIGSERIAL PRIMARY KEY,
		location_id BIGINT NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
		temperature DOUBLE PRECISION NOT NULL,
		threshold   DOUBLE PRECISION NOT NULL,
		timestamp   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		notified    BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS temperature_logs (
		id          BIGSERIAL PRIMARY KEY,
		location_id BIGINT NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
		temperature DOUBLE PRECISION NOT NULL,
		timestamp   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_alert_configs_location ON alert_configs(location_id);
	CREATE INDEX IF NOT EXISTS idx_alerts_location ON alerts(location_id);
	CREATE INDEX IF NOT EXISTS idx_temperature_logs_location ON temperature_logs(location_id);
	CREATE INDEX IF NOT EXISTS idx_temperature_logs_timestamp ON temperature_logs(timestamp);

	CREATE TABLE IF NOT EXISTS interval_schedules (
		id     BIGSERIAL PRIMARY KEY,
		every  INTEGER NOT NULL CHECK(every > 0),
		period TEXT NOT NULL,
		UNIQUE(every, period)
	);

	CREATE TABLE IF NOT EXISTS periodic_tasks (
		id              BIGSERIAL PRIMARY KEY,
		name            TEXT NOT NULL UNIQUE,
		task            TEXT NOT NULL,
		args            TEXT NOT NULL DEFAULT '[]',
		interval_id     BIGINT NOT NULL REFERENCES interval_schedules(id),
		alert_config_id BIGINT REFERENCES alert_configs(id) ON DELETE CASCADE,
		enabled         BOOLEAN NOT NULL DEFAULT TRUE,
		last_run_at     TIMESTAMPTZ,
		total_run_count BIGINT NOT NULL DEFAULT 0,
		date_changed    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	},
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB, d dialect) error {
	// Ensure migration tracking table exists
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(d.schema(migrations[i])); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(d.rebind("INSERT INTO schema_migrations (version) VALUES (?)"), i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
