package progress

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dstark/habitforge/internal/database"
	"github.com/dstark/habitforge/internal/dates"
	"github.com/dstark/habitforge/internal/model"
	"github.com/dstark/habitforge/internal/store"
)

var today = time.Date(2026, 6, 20, 15, 30, 0, 0, time.UTC)

type fixture struct {
	users  *store.UserStore
	habits *store.HabitStore
	logs   *store.LogStore
	coord  *Coordinator
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		users:  store.NewUserStore(db),
		habits: store.NewHabitStore(db),
		logs:   store.NewLogStore(db),
	}
	f.coord = NewCoordinator(f.users, f.habits, f.logs, slog.Default())
	f.coord.now = func() time.Time { return today }
	return f
}

func (f *fixture) user(t *testing.T) *model.User {
	t.Helper()
	u, err := f.users.Create("maren", "maren@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) habit(t *testing.T, userID int64, xpPerCompletion int) *model.Habit {
	t.Helper()
	h, err := f.habits.Create(userID, "Morning run", "Run before work", "fitness", "🏃", "#40c463", "daily", "medium", xpPerCompletion, nil, false)
	if err != nil {
		t.Fatalf("create habit: %v", err)
	}
	return h
}

func daysAgo(n int) time.Time {
	return dates.DaysBefore(today, n)
}

func TestCreateLogAwardsXPAndLevel(t *testing.T) {
	f := setup(t)
	u := f.user(t)
	h := f.habit(t, u.ID, 10)

	logEntry, err := f.coord.CreateLog(h.ID, u.ID, today, true, "felt good")
	if err != nil {
		t.Fatalf("create log: %v", err)
	}
	if logEntry.XPEarned != 10 {
		t.Errorf("xp_earned = %d, want 10", logEntry.XPEarned)
	}
	if !logEntry.Date.Equal(daysAgo(0)) {
		t.Errorf("date = %v, want day key %v", logEntry.Date, daysAgo(0))
	}

	user, _ := f.users.GetByID(u.ID)
	if user.TotalXP != 10 {
		t.Errorf("total_xp = %d, want 10", user.TotalXP)
	}
	if user.Level != 1 {
		t.Errorf("level = %d, want 1", user.Level)
	}

	habit, _ := f.habits.GetByID(h.ID)
	if habit.TotalCompletions != 1 {
		t.Errorf("total_completions = %d, want 1", habit.TotalCompletions)
	}
	if habit.CurrentStreak != 1 || habit.LongestStreak != 1 {
		t.Errorf("streaks = (%d, %d), want (1, 1)", habit.CurrentStreak, habit.LongestStreak)
	}
}

func TestCreateLogNotCompletedEarnsNothing(t *testing.T) {
	f := setup(t)
	u := f.user(t)
	h := f.habit(t, u.ID, 10)

	logEntry, err := f.coord.CreateLog(h.ID, u.ID, today, false, "skipped")
	if err != nil {
		t.Fatalf("create log: %v", err)
	}
	if logEntry.XPEarned != 0 {
		t.Errorf("xp_earned = %d, want 0", logEntry.XPEarned)
	}

	user, _ := f.users.GetByID(u.ID)
	if user.TotalXP != 0 || user.Level != 0 {
		t.Errorf("user = (%d XP, level %d), want (0, 0)", user.TotalXP, user.Level)
	}
	habit, _ := f.habits.GetByID(h.ID)
	if habit.TotalCompletions != 0 {
		t.Errorf("total_completions = %d, want 0", habit.TotalCompletions)
	}
}

func TestCreateLogDuplicateDay(t *testing.T) {
	f := setup(t)
	u := f.user(t)
	h := f.habit(t, u.ID, 10)

	if _, err := f.coord.CreateLog(h.ID, u.ID, today, true, ""); err != nil {
		t.Fatalf("first log: %v", err)
	}
	// Same calendar day at a different time of day still collides.
	_, err := f.coord.CreateLog(h.ID, u.ID, today.Add(3*time.Hour), true, "")
	if !errors.Is(err, ErrDuplicateLog) {
		t.Fatalf("err = %v, want ErrDuplicateLog", err)
	}

	user, _ := f.users.GetByID(u.ID)
	if user.TotalXP != 10 {
		t.Errorf("total_xp = %d after rejected duplicate, want 10", user.TotalXP)
	}
}

func TestCreateLogHabitNotFound(t *testing.T) {
	f := setup(t)
	u := f.user(t)

	if _, err := f.coord.CreateLog(999, u.ID, today, true, ""); !errors.Is(err, ErrHabitNotFound) {
		t.Fatalf("err = %v, want ErrHabitNotFound", err)
	}
}

func TestCreateLogWrongOwner(t *testing.T) {
	f := setup(t)
	u := f.user(t)
	h := f.habit(t, u.ID, 10)

	other, err := f.users.Create("sam", "sam@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := f.coord.CreateLog(h.ID, other.ID, today, true, ""); !errors.Is(err, ErrHabitNotFound) {
		t.Fatalf("err = %v, want ErrHabitNotFound for another user's habit", err)
	}
}

// Crossing 100 XP raises the level: 95 + 10 = 105 → level 2.
func TestLevelUpAtHundred(t *testing.T) {
	f := setup(t)
	u := f.user(t)
	h := f.habit(t, u.ID, 10)

	if err := f.users.UpdateGamification(u.ID, 95, 1); err != nil {
		t.Fatalf("seed xp: %v", err)
	}

	if _, err := f.coord.CreateLog(h.ID, u.ID, today, true, ""); err != nil {
		t.Fatalf("create log: %v", err)
	}

	user, _ := f.users.GetByID(u.ID)
	if user.TotalXP != 105 {
		t.Errorf("total_xp = %d, want 105", user.TotalXP)
	}
	if user.Level != 2 {
		t.Errorf("level = %d, want 2", user.Level)
	}
}

func TestUpdateLogSameCompletedIsNoOp(t *testing.T) {
	f := setup(t)
	u := f.user(t)
	h := f.habit(t, u.ID, 10)

	logEntry, err := f.coord.CreateLog(h.ID, u.ID, today, true, "")
	if err != nil {
		t.Fatalf("create log: %v", err)
	}

	completed := true
	note := "still done"
	if _, err := f.coord.UpdateLog(h.ID, u.ID, logEntry.ID, &completed, &note); err != nil {
		t.Fatalf("update log: %v", err)
	}

	user, _ := f.users.GetByID(u.ID)
	if user.TotalXP != 10 {
		t.Errorf("total_xp = %d after no-op toggle, want 10", user.TotalXP)
	}
	habit, _ := f.habits.GetByID(h.ID)
	if habit.TotalCompletions != 1 {
		t.Errorf("total_completions = %d after no-op toggle, want 1", habit.TotalCompletions)
	}

	got, _ := f.logs.GetByID(logEntry.ID)
	if got.Note != "still done" {
		t.Errorf("note = %q, want %q", got.Note, "still done")
	}
}

func TestUpdateLogToggleOffAndOn(t *testing.T) {
	f := setup(t)
	u := f.user(t)
	h := f.habit(t, u.ID, 20)

	logEntry, err := f.coord.CreateLog(h.ID, u.ID, today, true, "")
	if err != nil {
		t.Fatalf("create log: %v", err)
	}

	off := false
	if _, err := f.coord.UpdateLog(h.ID, u.ID, logEntry.ID, &off, nil); err != nil {
		t.Fatalf("toggle off: %v", err)
	}

	user, _ := f.users.GetByID(u.ID)
	if user.TotalXP != 0 || user.Level != 0 {
		t.Errorf("user = (%d XP, level %d) after toggle off, want (0, 0)", user.TotalXP, user.Level)
	}
	habit, _ := f.habits.GetByID(h.ID)
	if habit.TotalCompletions != 0 {
		t.Errorf("total_completions = %d after toggle off, want 0", habit.TotalCompletions)
	}
	got, _ := f.logs.GetByID(logEntry.ID)
	if got.XPEarned != 0 {
		t.Errorf("xp_earned = %d after toggle off, want 0", got.XPEarned)
	}

	on := true
	if _, err := f.coord.UpdateLog(h.ID, u.ID, logEntry.ID, &on, nil); err != nil {
		t.Fatalf("toggle on: %v", err)
	}

	user, _ = f.users.GetByID(u.ID)
	if user.TotalXP != 20 {
		t.Errorf("total_xp = %d after toggle on, want 20", user.TotalXP)
	}
	got, _ = f.logs.GetByID(logEntry.ID)
	if got.XPEarned != 20 {
		t.Errorf("xp_earned = %d after toggle on, want 20", got.XPEarned)
	}
}

func TestUpdateLogXPNeverNegative(t *testing.T) {
	f := setup(t)
	u := f.user(t)
	h := f.habit(t, u.ID, 20)

	logEntry, err := f.coord.CreateLog(h.ID, u.ID, today, true, "")
	if err != nil {
		t.Fatalf("create log: %v", err)
	}

	// Drain the XP out from under the toggle, then flip it off.
	if err := f.users.UpdateGamification(u.ID, 5, 1); err != nil {
		t.Fatalf("seed xp: %v", err)
	}
	off := false
	if _, err := f.coord.UpdateLog(h.ID, u.ID, logEntry.ID, &off, nil); err != nil {
		t.Fatalf("toggle off: %v", err)
	}

	user, _ := f.users.GetByID(u.ID)
	if user.TotalXP != 0 {
		t.Errorf("total_xp = %d, want floor at 0", user.TotalXP)
	}
	if user.Level != 0 {
		t.Errorf("level = %d, want 0", user.Level)
	}
}

func TestUpdateLogNotFound(t *testing.T) {
	f := setup(t)
	u := f.user(t)
	h := f.habit(t, u.ID, 10)

	on := true
	if _, err := f.coord.UpdateLog(h.ID, u.ID, 999, &on, nil); !errors.Is(err, ErrLogNotFound) {
		t.Fatalf("err = %v, want ErrLogNotFound", err)
	}
}

func TestStreakAcrossDays(t *testing.T) {
	f := setup(t)
	u := f.user(t)
	h := f.habit(t, u.ID, 10)

	// Completed today, yesterday, two days ago; a completed log four days
	// ago with a gap at day three.
	for _, n := range []int{4, 2, 1, 0} {
		if _, err := f.coord.CreateLog(h.ID, u.ID, daysAgo(n), true, ""); err != nil {
			t.Fatalf("log day -%d: %v", n, err)
		}
	}

	habit, _ := f.habits.GetByID(h.ID)
	if habit.CurrentStreak != 3 {
		t.Errorf("current_streak = %d, want 3 (gap stops the walk)", habit.CurrentStreak)
	}
	if habit.CurrentStreak > habit.LongestStreak {
		t.Errorf("current %d > longest %d", habit.CurrentStreak, habit.LongestStreak)
	}

	// Filling the gap extends the run to five consecutive days.
	if _, err := f.coord.CreateLog(h.ID, u.ID, daysAgo(3), true, ""); err != nil {
		t.Fatalf("fill gap: %v", err)
	}
	habit, _ = f.habits.GetByID(h.ID)
	if habit.CurrentStreak != 5 {
		t.Errorf("current_streak = %d after gap fill, want 5", habit.CurrentStreak)
	}
	if habit.LongestStreak != 5 {
		t.Errorf("longest_streak = %d after gap fill, want 5", habit.LongestStreak)
	}
}

func TestLongestStreakIsMonotonic(t *testing.T) {
	f := setup(t)
	u := f.user(t)
	h := f.habit(t, u.ID, 10)

	var logIDs []int64
	for n := 4; n >= 0; n-- {
		l, err := f.coord.CreateLog(h.ID, u.ID, daysAgo(n), true, "")
		if err != nil {
			t.Fatalf("log day -%d: %v", n, err)
		}
		logIDs = append(logIDs, l.ID)
	}

	habit, _ := f.habits.GetByID(h.ID)
	if habit.LongestStreak != 5 {
		t.Fatalf("longest_streak = %d, want 5", habit.LongestStreak)
	}

	// Editing history downward breaks the current streak but must not
	// shrink the longest.
	off := false
	if _, err := f.coord.UpdateLog(h.ID, u.ID, logIDs[2], &off, nil); err != nil {
		t.Fatalf("toggle middle day off: %v", err)
	}

	habit, _ = f.habits.GetByID(h.ID)
	if habit.CurrentStreak != 2 {
		t.Errorf("current_streak = %d, want 2", habit.CurrentStreak)
	}
	if habit.LongestStreak != 5 {
		t.Errorf("longest_streak = %d, want 5 (monotonic)", habit.LongestStreak)
	}
}

func TestSevenDayBadgeAwardedOnce(t *testing.T) {
	f := setup(t)
	u := f.user(t)
	h := f.habit(t, u.ID, 10)

	for n := 6; n >= 0; n-- {
		if _, err := f.coord.CreateLog(h.ID, u.ID, daysAgo(n), true, ""); err != nil {
			t.Fatalf("log day -%d: %v", n, err)
		}
	}

	badges, _ := f.users.ListBadges(u.ID)
	var streakBadges int
	for _, b := range badges {
		if b.BadgeID == "7-day-streak" {
			streakBadges++
		}
	}
	if streakBadges != 1 {
		t.Fatalf("7-day-streak count = %d, want 1", streakBadges)
	}

	// An eighth day re-runs the evaluation but must not duplicate.
	f.coord.now = func() time.Time { return today.AddDate(0, 0, 1) }
	if _, err := f.coord.CreateLog(h.ID, u.ID, today.AddDate(0, 0, 1), true, ""); err != nil {
		t.Fatalf("eighth day: %v", err)
	}

	badges, _ = f.users.ListBadges(u.ID)
	streakBadges = 0
	for _, b := range badges {
		if b.BadgeID == "7-day-streak" {
			streakBadges++
		}
	}
	if streakBadges != 1 {
		t.Errorf("7-day-streak count = %d after streak 8, want 1", streakBadges)
	}
}

func TestPerfectWeekBadge(t *testing.T) {
	f := setup(t)
	u := f.user(t)
	h := f.habit(t, u.ID, 5)

	// Seven completions that are not consecutive days.
	for _, n := range []int{0, 2, 4, 6, 8, 10, 12} {
		if _, err := f.coord.CreateLog(h.ID, u.ID, daysAgo(n), true, ""); err != nil {
			t.Fatalf("log day -%d: %v", n, err)
		}
	}

	badges, _ := f.users.ListBadges(u.ID)
	found := false
	for _, b := range badges {
		if b.BadgeID == "perfect-week" {
			found = true
		}
	}
	if !found {
		t.Error("expected perfect-week badge at 7 completions")
	}
}

func TestDeleteHabitReconcilesUser(t *testing.T) {
	f := setup(t)
	u := f.user(t)
	keep := f.habit(t, u.ID, 10)
	drop, err := f.habits.Create(u.ID, "Read", "Read 20 pages", "learning", "📚", "#58a6ff", "daily", "hard", 20, nil, false)
	if err != nil {
		t.Fatalf("create habit: %v", err)
	}

	// 40 XP on the kept habit, and enough streak on the dropped one to
	// earn a badge referencing it.
	for n := 3; n >= 0; n-- {
		if _, err := f.coord.CreateLog(keep.ID, u.ID, daysAgo(n), true, ""); err != nil {
			t.Fatalf("keep log -%d: %v", n, err)
		}
	}
	for n := 6; n >= 0; n-- {
		if _, err := f.coord.CreateLog(drop.ID, u.ID, daysAgo(n), true, ""); err != nil {
			t.Fatalf("drop log -%d: %v", n, err)
		}
	}

	badges, _ := f.users.ListBadges(u.ID)
	if len(badges) == 0 {
		t.Fatal("expected badges before deletion")
	}

	snap, err := f.coord.DeleteHabit(drop.ID, u.ID)
	if err != nil {
		t.Fatalf("delete habit: %v", err)
	}

	if snap.TotalXP != 40 {
		t.Errorf("total_xp = %d, want exactly 40 from the remaining habit", snap.TotalXP)
	}
	if snap.Level != 1 {
		t.Errorf("level = %d, want 1", snap.Level)
	}
	for _, b := range snap.Badges {
		if b.HabitID != nil && *b.HabitID == drop.ID {
			t.Errorf("badge %s still references deleted habit", b.BadgeID)
		}
	}

	if h, _ := f.habits.GetByID(drop.ID); h != nil {
		t.Error("deleted habit still present")
	}
	if logs, _ := f.logs.ListByHabit(drop.ID); len(logs) != 0 {
		t.Errorf("deleted habit still has %d logs", len(logs))
	}
}

func TestDeleteLastHabitResetsToZero(t *testing.T) {
	f := setup(t)
	u := f.user(t)
	h := f.habit(t, u.ID, 10)

	for n := 2; n >= 0; n-- {
		if _, err := f.coord.CreateLog(h.ID, u.ID, daysAgo(n), true, ""); err != nil {
			t.Fatalf("log day -%d: %v", n, err)
		}
	}

	snap, err := f.coord.DeleteHabit(h.ID, u.ID)
	if err != nil {
		t.Fatalf("delete habit: %v", err)
	}
	if snap.TotalXP != 0 || snap.Level != 0 {
		t.Errorf("snapshot = (%d XP, level %d), want (0, 0)", snap.TotalXP, snap.Level)
	}

	user, _ := f.users.GetByID(u.ID)
	if user.TotalXP != 0 || user.Level != 0 {
		t.Errorf("user = (%d XP, level %d), want (0, 0)", user.TotalXP, user.Level)
	}
}

func TestDeleteHabitNotFound(t *testing.T) {
	f := setup(t)
	u := f.user(t)

	if _, err := f.coord.DeleteHabit(999, u.ID); !errors.Is(err, ErrHabitNotFound) {
		t.Fatalf("err = %v, want ErrHabitNotFound", err)
	}
}
