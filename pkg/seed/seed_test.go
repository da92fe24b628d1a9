package seed_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devid8642/weather-alert/pkg/model"
	"github.com/devid8642/weather-alert/pkg/schedule"
	"github.com/devid8642/weather-alert/pkg/seed"
	"github.com/devid8642/weather-alert/pkg/storage"
)

const fixture = `
locations:
  - name: Teresina
    latitude: -5.09
    longitude: -42.80
    alerts:
      - threshold: 38
        interval_minutes: 15
      - threshold: 40
  - name: Curitiba
    latitude: -25.43
    longitude: -49.27
`

func TestParse(t *testing.T) {
	f, err := seed.Parse([]byte(fixture))
	require.NoError(t, err)
	require.Len(t, f.Locations, 2)
	assert.Equal(t, "Teresina", f.Locations[0].Name)
	require.Len(t, f.Locations[0].Alerts, 2)
	assert.Equal(t, 15, f.Locations[0].Alerts[0].IntervalMinutes)
	assert.Equal(t, 0, f.Locations[0].Alerts[1].IntervalMinutes)
	assert.Empty(t, f.Locations[1].Alerts)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "locations: [unclosed"},
		{"empty", "locations: []"},
		{"missing name", "locations:\n  - latitude: 1\n    longitude: 1\n"},
		{"out of range", "locations:\n  - name: x\n    latitude: 91\n    longitude: 0\n"},
		{"negative interval", "locations:\n  - name: x\n    latitude: 0\n    longitude: 0\n    alerts:\n      - threshold: 1\n        interval_minutes: -5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := seed.Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := seed.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))

	store, err := storage.NewSQLite(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	sync := schedule.NewSynchronizer(store, logger)

	f, err := seed.Load(path)
	require.NoError(t, err)

	ctx := context.Background()
	sum, err := seed.Apply(ctx, store, sync, f)
	require.NoError(t, err)
	assert.Equal(t, seed.Summary{Locations: 2, AlertConfigs: 2}, sum)

	cfgs, err := store.ListAlertConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)

	intervals := map[int]bool{}
	for _, c := range cfgs {
		intervals[c.CheckIntervalMinutes] = true
		_, err := store.GetPeriodicTask(ctx, schedule.TaskName(c.ID))
		assert.NoError(t, err)
	}
	assert.Equal(t, map[int]bool{15: true, model.DefaultCheckIntervalMinutes: true}, intervals)
}
