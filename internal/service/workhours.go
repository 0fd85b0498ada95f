package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/glasswallet/router/internal/models"
)

const (
	WorkingHoursFixed    = "fixed"
	WorkingHoursSchedule = "schedule"
)

type WorkingHours interface {
	Within(a models.Agent, now time.Time) bool
}

// FixedWindow ignores the agent's schedule and timezone and checks the hour
// of now against [StartHour, EndHour).
type FixedWindow struct {
	StartHour int
	EndHour   int
}

func DefaultWorkingHours() FixedWindow {
	return FixedWindow{StartHour: 9, EndHour: 17}
}

func (w FixedWindow) Within(_ models.Agent, now time.Time) bool {
	h := now.Hour()
	return h >= w.StartHour && h < w.EndHour
}

// ScheduleWindow checks now against the agent's weekly schedule in the
// agent's timezone. Agents without a schedule fall back to Fallback.
type ScheduleWindow struct {
	Fallback WorkingHours
}

func (w ScheduleWindow) Within(a models.Agent, now time.Time) bool {
	if len(a.Availability.Schedule) == 0 {
		if w.Fallback == nil {
			return DefaultWorkingHours().Within(a, now)
		}
		return w.Fallback.Within(a, now)
	}

	local := now
	if tz := strings.TrimSpace(a.Availability.Timezone); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			local = now.In(loc)
		}
	}

	shift, ok := lookupShift(a.Availability.Schedule, local.Weekday())
	if !ok {
		return false
	}
	start, err := parseClock(shift.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(shift.End)
	if err != nil {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= start && minute < end
}

// NewWorkingHours builds the policy named by mode. Unknown modes and empty
// or inverted windows are an error.
func NewWorkingHours(mode string, startHour, endHour int) (WorkingHours, error) {
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return nil, fmt.Errorf("invalid working hours window [%d, %d)", startHour, endHour)
	}
	fixed := FixedWindow{StartHour: startHour, EndHour: endHour}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", WorkingHoursFixed:
		return fixed, nil
	case WorkingHoursSchedule:
		return ScheduleWindow{Fallback: fixed}, nil
	default:
		return nil, fmt.Errorf("unknown working hours mode %q", mode)
	}
}

func lookupShift(schedule map[string]models.Shift, day time.Weekday) (models.Shift, bool) {
	name := strings.ToLower(day.String())
	for k, v := range schedule {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == name || key == name[:3] {
			return v, true
		}
	}
	return models.Shift{}, false
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
