package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasswallet/router/internal/models"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.October, day, hour, minute, 0, 0, time.UTC)
}

func TestFixedWindowBoundaries(t *testing.T) {
	w := DefaultWorkingHours()
	a := models.Agent{}

	assert.False(t, w.Within(a, at(14, 8, 59)))
	assert.True(t, w.Within(a, at(14, 9, 0)))
	assert.True(t, w.Within(a, at(14, 16, 59)))
	assert.False(t, w.Within(a, at(14, 17, 0)))
	// Weekends are not special in the fixed window.
	assert.True(t, w.Within(a, at(17, 10, 0)))
}

func TestScheduleWindowUsesAgentTimezone(t *testing.T) {
	agent := DefaultAgents()[0] // America/New_York, weekdays 09:00-17:00
	w := ScheduleWindow{}

	assert.False(t, w.Within(agent, at(14, 10, 0)), "06:00 in New York")
	assert.True(t, w.Within(agent, at(14, 14, 0)), "10:00 in New York")
	assert.False(t, w.Within(agent, at(14, 21, 30)), "17:30 in New York")
	assert.False(t, w.Within(agent, at(17, 15, 0)), "Saturday")
}

func TestScheduleWindowShortDayNames(t *testing.T) {
	agent := models.Agent{Availability: models.AgentAvailability{
		Schedule: map[string]models.Shift{"Wed": {Start: "22:00", End: "23:30"}},
	}}
	w := ScheduleWindow{}

	assert.True(t, w.Within(agent, at(14, 22, 15)))
	assert.False(t, w.Within(agent, at(14, 23, 30)))
	assert.False(t, w.Within(agent, at(15, 22, 15)), "Thursday has no shift")
}

func TestScheduleWindowFallsBackWithoutSchedule(t *testing.T) {
	w := ScheduleWindow{Fallback: FixedWindow{StartHour: 0, EndHour: 1}}
	agent := models.Agent{}

	assert.True(t, w.Within(agent, at(14, 0, 30)))
	assert.False(t, w.Within(agent, at(14, 10, 0)))
}

func TestScheduleWindowInvalidShift(t *testing.T) {
	agent := models.Agent{Availability: models.AgentAvailability{
		Schedule: map[string]models.Shift{"wednesday": {Start: "nine", End: "17:00"}},
	}}
	assert.False(t, ScheduleWindow{}.Within(agent, at(14, 10, 0)))
}

func TestNewWorkingHours(t *testing.T) {
	w, err := NewWorkingHours("", 9, 17)
	require.NoError(t, err)
	assert.Equal(t, FixedWindow{StartHour: 9, EndHour: 17}, w)

	w, err = NewWorkingHours("Schedule", 8, 18)
	require.NoError(t, err)
	assert.IsType(t, ScheduleWindow{}, w)

	_, err = NewWorkingHours("lunar", 9, 17)
	assert.Error(t, err)

	_, err = NewWorkingHours(WorkingHoursFixed, 17, 9)
	assert.Error(t, err)

	_, err = NewWorkingHours(WorkingHoursFixed, 0, 25)
	assert.Error(t, err)
}
