package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/devid8642/weather-alert/pkg/monitor"
	"github.com/devid8642/weather-alert/pkg/schedule"
)

// ParseConfigArgs decodes the single-element [config_id] argument list.
func ParseConfigArgs(args json.RawMessage) (int64, error) {
	var ids []int64
	if err := json.Unmarshal(args, &ids); err != nil {
		return 0, fmt.Errorf("decode task args %s: %w", string(args), err)
	}
	if len(ids) != 1 {
		return 0, fmt.Errorf("expected one config id in task args, got %d", len(ids))
	}
	return ids[0], nil
}

// CheckTemperatureTask adapts the evaluator to a TaskFunc.
func CheckTemperatureTask(ev *monitor.Evaluator) TaskFunc {
	return func(ctx context.Context, args json.RawMessage) error {
		id, err := ParseConfigArgs(args)
		if err != nil {
			return err
		}
		_, err = ev.Check(ctx, id)
		return err
	}
}

// RegisterDefaults registers every task the service schedules.
func RegisterDefaults(r *Registry, ev *monitor.Evaluator) error {
	return r.Register(schedule.TaskCheckTemperature, CheckTemperatureTask(ev))
}
