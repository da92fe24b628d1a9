package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/devid8642/weather-alert/pkg/model"
)

func TestIntervalSchedule_Duration_Minutes(t *testing.T) {
	s := model.IntervalSchedule{Every: 30, Period: model.PeriodMinutes}
	assert.Equal(t, 30*time.Minute, s.Duration())
}

func TestIntervalSchedule_Duration_OtherPeriods(t *testing.T) {
	assert.Equal(t, 45*time.Second, model.IntervalSchedule{Every: 45, Period: "seconds"}.Duration())
	assert.Equal(t, 2*time.Hour, model.IntervalSchedule{Every: 2, Period: "hours"}.Duration())
}

func TestIntervalSchedule_Duration_UnknownPeriodIsMinutes(t *testing.T) {
	s := model.IntervalSchedule{Every: 5, Period: ""}
	assert.Equal(t, 5*time.Minute, s.Duration())
}
