// Package schedule decides whether a timer may start or keep running against
// a sub-task's recurring weekly availability window. Everything here is pure
// calendar arithmetic over a supplied instant; nothing touches storage.
package schedule

import (
	"fmt"
	"time"

	"timeclock/models"
)

const (
	secondsPerDay = 24 * 60 * 60

	// defaultEndOfDay applies when a window has a start time but no end time.
	defaultEndOfDay = "23:59"
)

// Evaluation answers "can a timer start now" for one sub-task. StartsIn and
// EndsIn are second counts for live countdowns; they are nil when not
// applicable.
type Evaluation struct {
	CanStart       bool   `json:"can_start"`
	IsScheduled    bool   `json:"is_scheduled"`
	IsActiveWindow bool   `json:"is_active_window"`
	Ended          bool   `json:"ended,omitempty"`
	Reason         string `json:"reason,omitempty"`
	StartsIn       *int64 `json:"starts_in_seconds,omitempty"`
	EndsIn         *int64 `json:"ends_in_seconds,omitempty"`
}

// Evaluate applies the window rules for the sub-task at the given instant.
// Weekdays follow time.Weekday numbering, 0=Sunday..6=Saturday. The weekday
// and clock are taken from now's location, so callers pass an instant already
// in the user's timezone.
func Evaluate(sub *models.SubTask, now time.Time) Evaluation {
	if sub.BillingMode != models.BillingScheduled || sub.StartTime == "" {
		return Evaluation{CanStart: true}
	}

	startSec, err := parseClock(sub.StartTime)
	if err != nil {
		// A malformed window never blocks tracking.
		return Evaluation{CanStart: true}
	}
	endClock := sub.EndTime
	if endClock == "" {
		endClock = defaultEndOfDay
	}
	endSec, err := parseClock(endClock)
	if err != nil {
		endSec, _ = parseClock(defaultEndOfDay)
	}

	today := int(now.Weekday())
	nowSec := int64(now.Hour()*3600 + now.Minute()*60 + now.Second())
	days := []int(sub.ScheduleDays)

	if len(days) > 0 && !containsDay(days, today) {
		offset := nextDayOffset(days, today)
		startsIn := int64(offset)*secondsPerDay - nowSec + startSec
		return Evaluation{
			IsScheduled: true,
			Reason:      fmt.Sprintf("not scheduled today; next window opens %s at %s", dayName((today+offset)%7), sub.StartTime),
			StartsIn:    &startsIn,
		}
	}

	if nowSec < startSec {
		startsIn := startSec - nowSec
		return Evaluation{
			IsScheduled: true,
			Reason:      fmt.Sprintf("window opens at %s", sub.StartTime),
			StartsIn:    &startsIn,
		}
	}

	if nowSec > endSec {
		// Today's window is over; count down to the next day that is
		// actually scheduled (every day qualifies when no days are set).
		offset := nextDayOffset(days, today)
		startsIn := int64(offset)*secondsPerDay - nowSec + startSec
		return Evaluation{
			IsScheduled: true,
			Ended:       true,
			Reason:      fmt.Sprintf("window ended at %s", endClock),
			StartsIn:    &startsIn,
		}
	}

	endsIn := endSec - nowSec
	return Evaluation{
		CanStart:       true,
		IsScheduled:    true,
		IsActiveWindow: true,
		EndsIn:         &endsIn,
	}
}

// nextDayOffset returns the smallest d in 1..7 such that today+d lands on a
// scheduled day. An empty day set schedules every day, so the offset is 1.
func nextDayOffset(days []int, today int) int {
	if len(days) == 0 {
		return 1
	}
	for d := 1; d <= 7; d++ {
		if containsDay(days, (today+d)%7) {
			return d
		}
	}
	return 7
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

// parseClock converts an "HH:MM" clock string to seconds since midnight.
func parseClock(clock string) (int64, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", clock, err)
	}
	return int64(t.Hour()*3600 + t.Minute()*60), nil
}

func dayName(day int) string {
	return time.Weekday(day).String()
}
