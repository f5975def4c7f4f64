package schedule

import "fmt"

type DisplayStatus string

const (
	StatusLocked       DisplayStatus = "locked"
	StatusStartingSoon DisplayStatus = "starting_soon"
	StatusActive       DisplayStatus = "active"
	StatusEnded        DisplayStatus = "ended"
	StatusNoSchedule   DisplayStatus = "no_schedule"
)

// startingSoonThreshold is how close a window opening has to be before the
// lock state is presented as "starting soon".
const startingSoonThreshold = 30 * 60

// Display holds what clients render next to a sub-task: a coarse state plus
// an HH:MM:SS countdown to the relevant boundary.
type Display struct {
	Status    DisplayStatus `json:"status"`
	Countdown string        `json:"countdown,omitempty"`
}

func (e Evaluation) Display() Display {
	if !e.IsScheduled {
		return Display{Status: StatusNoSchedule}
	}
	if e.IsActiveWindow {
		d := Display{Status: StatusActive}
		if e.EndsIn != nil {
			d.Countdown = FormatCountdown(*e.EndsIn)
		}
		return d
	}
	if e.Ended {
		d := Display{Status: StatusEnded}
		if e.StartsIn != nil {
			d.Countdown = FormatCountdown(*e.StartsIn)
		}
		return d
	}

	d := Display{Status: StatusLocked}
	if e.StartsIn != nil {
		d.Countdown = FormatCountdown(*e.StartsIn)
		if *e.StartsIn <= startingSoonThreshold {
			d.Status = StatusStartingSoon
		}
	}
	return d
}

// FormatCountdown renders seconds as HH:MM:SS. Hours run past 24 for
// multi-day waits.
func FormatCountdown(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}
