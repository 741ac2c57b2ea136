package model

import "time"

type Habit struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	Icon             string    `json:"icon"`
	Color            string    `json:"color"`
	CurrentStreak    int       `json:"current_streak"`
	LongestStreak    int       `json:"longest_streak"`
	TotalCompletions int       `json:"total_completions"`
	XPPerCompletion  int       `json:"xp_per_completion"`
	GoalType         string    `json:"goal_type"`
	DifficultyLevel  string    `json:"difficulty_level"`
	ReminderTime     *string   `json:"reminder_time"`
	ReminderEnabled  bool      `json:"reminder_enabled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DailyLog records one day's outcome for a habit. Date is a day key
// (midnight UTC); at most one log exists per habit per day. XPEarned is
// frozen at write time and is not recalculated if the habit's
// xp_per_completion later changes.
type DailyLog struct {
	ID        int64     `json:"id"`
	HabitID   int64     `json:"habit_id"`
	UserID    int64     `json:"user_id"`
	Date      time.Time `json:"date"`
	Completed bool      `json:"completed"`
	Note      string    `json:"note"`
	XPEarned  int       `json:"xp_earned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
