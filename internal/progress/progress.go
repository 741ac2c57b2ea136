// Package progress orchestrates the streak, badge, and XP bookkeeping that
// keeps the User, Habit, and DailyLog records consistent across log
// mutations and habit deletion.
//
// Each operation is a sequence of store writes with no wrapping
// transaction: a failure aborts the remaining steps but already-committed
// writes stay. Concurrent mutations of the same habit or user race with
// last-write-wins semantics; only the one-log-per-day constraint is
// enforced by the database.
package progress

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dstark/habitforge/internal/badge"
	"github.com/dstark/habitforge/internal/dates"
	"github.com/dstark/habitforge/internal/model"
	"github.com/dstark/habitforge/internal/store"
	"github.com/dstark/habitforge/internal/streak"
	"github.com/dstark/habitforge/internal/xp"
)

var (
	ErrHabitNotFound = errors.New("habit not found")
	ErrLogNotFound   = errors.New("log not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateLog  = errors.New("log already exists for this date")
)

type Coordinator struct {
	users  *store.UserStore
	habits *store.HabitStore
	logs   *store.LogStore
	logger *slog.Logger
	now    func() time.Time
}

func NewCoordinator(us *store.UserStore, hs *store.HabitStore, ls *store.LogStore, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		users:  us,
		habits: hs,
		logs:   ls,
		logger: logger,
		now:    time.Now,
	}
}

// Snapshot is the user's gamification state returned after habit deletion.
type Snapshot struct {
	TotalXP int           `json:"total_xp"`
	Level   int           `json:"level"`
	Badges  []model.Badge `json:"badges"`
}

// CreateLog records one day's outcome for a habit. At most one log may
// exist per habit per day; a second attempt returns ErrDuplicateLog. A
// completed log earns the habit's per-completion XP, frozen on the log.
// Streaks are recomputed and badges evaluated on every call.
func (c *Coordinator) CreateLog(habitID, userID int64, date time.Time, completed bool, note string) (*model.DailyLog, error) {
	habit, err := c.habits.GetForUser(habitID, userID)
	if err != nil {
		return nil, err
	}
	if habit == nil {
		return nil, ErrHabitNotFound
	}

	day := dates.DayKey(date)
	existing, err := c.logs.GetByHabitAndDate(habitID, day)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateLog
	}

	xpEarned := 0
	if completed {
		xpEarned = habit.XPPerCompletion
	}
	logEntry, err := c.logs.Create(habitID, userID, day, completed, note, xpEarned)
	if err != nil {
		if store.IsDuplicateDay(err) {
			return nil, ErrDuplicateLog
		}
		return nil, fmt.Errorf("create log: %w", err)
	}

	if completed {
		habit.TotalCompletions++
		if err := c.addXP(userID, habit.XPPerCompletion); err != nil {
			return nil, err
		}
	}

	if err := c.refreshStreaks(habit); err != nil {
		return nil, err
	}
	if err := c.awardBadges(habit); err != nil {
		return nil, err
	}

	return logEntry, nil
}

// UpdateLog rewrites a log's completed flag and/or note. Flipping the
// completed flag adjusts the habit's completion count and the user's XP by
// the habit's current per-completion value, both floored at zero; the
// log's frozen XP is rewritten to match the new state. Streaks and badges
// are refreshed even for note-only edits.
func (c *Coordinator) UpdateLog(habitID, userID, logID int64, completed *bool, note *string) (*model.DailyLog, error) {
	habit, err := c.habits.GetForUser(habitID, userID)
	if err != nil {
		return nil, err
	}
	if habit == nil {
		return nil, ErrHabitNotFound
	}

	logEntry, err := c.logs.GetForHabit(logID, habitID)
	if err != nil {
		return nil, err
	}
	if logEntry == nil {
		return nil, ErrLogNotFound
	}

	wasCompleted := logEntry.Completed
	if completed != nil {
		logEntry.Completed = *completed
	}
	if note != nil {
		logEntry.Note = *note
	}
	xpEarned := 0
	if logEntry.Completed {
		xpEarned = habit.XPPerCompletion
	}

	updated, err := c.logs.Update(logEntry.ID, logEntry.Completed, logEntry.Note, xpEarned)
	if err != nil {
		return nil, fmt.Errorf("update log: %w", err)
	}

	if logEntry.Completed != wasCompleted {
		if logEntry.Completed {
			habit.TotalCompletions++
			err = c.addXP(userID, habit.XPPerCompletion)
		} else {
			habit.TotalCompletions--
			if habit.TotalCompletions < 0 {
				habit.TotalCompletions = 0
			}
			err = c.addXP(userID, -habit.XPPerCompletion)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := c.refreshStreaks(habit); err != nil {
		return nil, err
	}
	if err := c.awardBadges(habit); err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteHabit removes a habit with its logs, then rebuilds the user's
// gamification state from what remains: total XP is recomputed as the sum
// of frozen xp_earned across the remaining habits' logs rather than
// decremented, so any drift the incremental paths accumulated is repaired
// here. Badges earned by the deleted habit are removed.
func (c *Coordinator) DeleteHabit(habitID, userID int64) (*Snapshot, error) {
	habit, err := c.habits.GetForUser(habitID, userID)
	if err != nil {
		return nil, err
	}
	if habit == nil {
		return nil, ErrHabitNotFound
	}

	if err := c.habits.Delete(habitID); err != nil {
		return nil, err
	}
	if err := c.logs.DeleteByHabit(habitID); err != nil {
		return nil, err
	}

	user, err := c.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	remaining, err := c.habits.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	totalXP := 0
	if len(remaining) > 0 {
		totalXP, err = c.logs.SumXPForUser(userID)
		if err != nil {
			return nil, err
		}
	} else {
		// No habits left: clear any orphaned logs and reset to zero.
		if err := c.logs.DeleteByUser(userID); err != nil {
			return nil, err
		}
	}

	if err := c.users.DeleteBadgesForHabit(userID, habitID); err != nil {
		return nil, err
	}

	level := xp.Level(totalXP)
	if err := c.users.UpdateGamification(userID, totalXP, level); err != nil {
		return nil, err
	}

	badges, err := c.users.ListBadges(userID)
	if err != nil {
		return nil, err
	}

	c.logger.Info("habit deleted",
		"habit_id", habitID,
		"user_id", userID,
		"remaining_habits", len(remaining),
		"total_xp", totalXP,
		"level", level,
	)

	return &Snapshot{TotalXP: totalXP, Level: level, Badges: badges}, nil
}

// addXP applies a signed XP delta to the user, flooring at zero, and
// recomputes the level.
func (c *Coordinator) addXP(userID int64, delta int) error {
	user, err := c.users.GetByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	total := user.TotalXP + delta
	if total < 0 {
		total = 0
	}
	return c.users.UpdateGamification(userID, total, xp.Level(total))
}

// refreshStreaks recomputes the habit's streaks from its full history and
// persists them together with the completion count. The stored longest
// streak never decreases, even if history is edited downward.
func (c *Coordinator) refreshStreaks(habit *model.Habit) error {
	logs, err := c.logs.ListByHabit(habit.ID)
	if err != nil {
		return err
	}

	current, longest := streak.Compute(logs, c.now())
	habit.CurrentStreak = current
	if longest > habit.LongestStreak {
		habit.LongestStreak = longest
	}

	return c.habits.UpdateStats(habit.ID, habit.CurrentStreak, habit.LongestStreak, habit.TotalCompletions)
}

// awardBadges runs the badge catalog against the habit's current state and
// appends anything newly earned in one save.
func (c *Coordinator) awardBadges(habit *model.Habit) error {
	logs, err := c.logs.ListByHabit(habit.ID)
	if err != nil {
		return err
	}

	existing, err := c.users.ListBadges(habit.UserID)
	if err != nil {
		return err
	}
	owned := make(map[string]bool, len(existing))
	for _, b := range existing {
		owned[b.BadgeID] = true
	}

	earned := badge.Evaluate(habit, logs, owned, c.now())
	if len(earned) == 0 {
		return nil
	}

	for _, b := range earned {
		c.logger.Info("badge earned", "user_id", b.UserID, "habit_id", habit.ID, "badge", b.BadgeID)
	}
	return c.users.AddBadges(habit.UserID, earned)
}
