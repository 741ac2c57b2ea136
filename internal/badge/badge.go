// Package badge evaluates the achievement catalog against a habit's state.
// The catalog is a fixed ordered list of rules; each rule is checked
// independently and a user earns a given badge kind at most once.
package badge

import (
	"time"

	"github.com/dstark/habitforge/internal/model"
)

// Rule pairs a badge's metadata with its qualifying predicate. logsDesc is
// the habit's full log history sorted by date descending.
type Rule struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Qualifies   func(h *model.Habit, logsDesc []model.DailyLog) bool
}

var Catalog = []Rule{
	{
		ID:          "7-day-streak",
		Name:        "7-Day Warrior",
		Description: "Completed 7 days in a row!",
		Icon:        "🔥",
		Qualifies: func(h *model.Habit, _ []model.DailyLog) bool {
			return h.CurrentStreak >= 7
		},
	},
	{
		ID:          "30-day-streak",
		Name:        "Monthly Master",
		Description: "Completed 30 days in a row!",
		Icon:        "🏆",
		Qualifies: func(h *model.Habit, _ []model.DailyLog) bool {
			return h.CurrentStreak >= 30
		},
	},
	{
		ID:          "comeback-hero",
		Name:        "Comeback Hero",
		Description: "Returned strong after a break!",
		Icon:        "💪",
		Qualifies:   hadComeback,
	},
	{
		ID:          "perfect-week",
		Name:        "Perfect Week",
		Description: "Completed your first week!",
		Icon:        "⭐",
		Qualifies: func(h *model.Habit, _ []model.DailyLog) bool {
			return h.TotalCompletions >= 7
		},
	},
}

// hadComeback fires when the habit is back on a streak of 3+ after a run of
// 3+ consecutive missed logs somewhere in the last 10 entries. The final
// entry of the window is not examined, and at least 2 logs are required.
func hadComeback(h *model.Habit, logsDesc []model.DailyLog) bool {
	if len(logsDesc) < 2 || h.CurrentStreak < 3 {
		return false
	}

	recent := logsDesc
	if len(recent) > 10 {
		recent = recent[:10]
	}

	missed := 0
	for i := 0; i < len(recent)-1; i++ {
		if !recent[i].Completed {
			missed++
			if missed >= 3 {
				return true
			}
		} else {
			missed = 0
		}
	}
	return false
}

// Evaluate returns the badges a habit's owner newly qualifies for. owned
// holds the badge kind ids the user already has; kinds in it are never
// returned, so running an evaluation twice can never duplicate a badge.
func Evaluate(h *model.Habit, logsDesc []model.DailyLog, owned map[string]bool, now time.Time) []model.Badge {
	var earned []model.Badge
	for _, rule := range Catalog {
		if owned[rule.ID] {
			continue
		}
		if !rule.Qualifies(h, logsDesc) {
			continue
		}
		habitID := h.ID
		earned = append(earned, model.Badge{
			UserID:      h.UserID,
			BadgeID:     rule.ID,
			Name:        rule.Name,
			Description: rule.Description,
			Icon:        rule.Icon,
			HabitID:     &habitID,
			EarnedAt:    now,
		})
	}
	return earned
}
