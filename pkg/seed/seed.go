package seed

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/devid8642/weather-alert/pkg/model"
	"github.com/devid8642/weather-alert/pkg/schedule"
	"github.com/devid8642/weather-alert/pkg/storage"
)

// File is a fixture of locations and their alert configs.
type File struct {
	Locations []Location `yaml:"locations"`
}

// Location is one seeded location.
type Location struct {
	Name      string   `yaml:"name"`
	Latitude  float64  `yaml:"latitude"`
	Longitude float64  `yaml:"longitude"`
	Alerts    []Config `yaml:"alerts"`
}

// Config is one seeded alert config. A zero interval uses the default.
type Config struct {
	Threshold       float64 `yaml:"threshold"`
	IntervalMinutes int     `yaml:"interval_minutes"`
}

// Summary counts what Apply created.
type Summary struct {
	Locations    int
	AlertConfigs int
}

// Load reads and validates a YAML seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates raw YAML seed data.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed data: %w", err)
	}

	if len(f.Locations) == 0 {
		return nil, fmt.Errorf("no locations defined")
	}
	for i, loc := range f.Locations {
		if loc.Name == "" {
			return nil, fmt.Errorf("location %d: missing name", i)
		}
		if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
			return nil, fmt.Errorf("location %q: coordinates out of range", loc.Name)
		}
		for _, c := range loc.Alerts {
			if c.IntervalMinutes < 0 {
				return nil, fmt.Errorf("location %q: negative interval %d", loc.Name, c.IntervalMinutes)
			}
		}
	}

	return &f, nil
}

// Apply creates every location and schedules its alert configs. Each
// config goes through the synchronizer so its periodic task exists.
func Apply(ctx context.Context, store storage.Storage, sync *schedule.Synchronizer, f *File) (Summary, error) {
	var sum Summary
	for _, l := range f.Locations {
		loc := &model.Location{Name: l.Name, Latitude: l.Latitude, Longitude: l.Longitude}
		if err := store.CreateLocation(ctx, loc); err != nil {
			return sum, fmt.Errorf("create location %q: %w", l.Name, err)
		}
		sum.Locations++

		for _, c := range l.Alerts {
			if _, err := sync.Create(ctx, loc.ID, c.Threshold, c.IntervalMinutes); err != nil {
				return sum, fmt.Errorf("create alert config for %q: %w", l.Name, err)
			}
			sum.AlertConfigs++
		}
	}
	return sum, nil
}
