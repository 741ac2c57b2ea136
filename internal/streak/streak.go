// Package streak derives current and longest streaks from a habit's log
// history. The computation runs in full on every log mutation; no
// incremental state is carried between runs.
package streak

import (
	"time"

	"github.com/dstark/habitforge/internal/dates"
	"github.com/dstark/habitforge/internal/model"
)

// Compute returns the current and longest streak for a habit given its
// full log history. logs must be sorted by date descending (newest first),
// which is how the log store returns them.
//
// The current streak walks expected days backward from today: at step i
// the log must exist for exactly today-i and be completed, otherwise the
// walk stops. A missing or incomplete log for today truncates the current
// streak to zero.
//
// The longest streak is the longest run of completed logs in the history,
// resetting on any log that is not completed. Callers are responsible for
// keeping a habit's persisted longest streak monotonic.
func Compute(logs []model.DailyLog, today time.Time) (current, longest int) {
	day := dates.DayKey(today)

	for i, l := range logs {
		expected := dates.DaysBefore(day, i)
		if dates.DayKey(l.Date).Equal(expected) && l.Completed {
			current++
		} else {
			break
		}
	}

	run := 0
	for _, l := range logs {
		if l.Completed {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}

	return current, longest
}
