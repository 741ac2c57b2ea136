package store

import (
	"database/sql"
	"fmt"

	"github.com/dstark/habitforge/internal/model"
)

type HabitStore struct {
	db *sql.DB
}

func NewHabitStore(db *sql.DB) *HabitStore {
	return &HabitStore{db: db}
}

func scanHabit(scanner interface{ Scan(...any) error }) (*model.Habit, error) {
	var h model.Habit
	var reminderTime sql.NullString
	var reminderEnabled int

	err := scanner.Scan(
		&h.ID, &h.UserID, &h.Name, &h.Description, &h.Category,
		&h.Icon, &h.Color, &h.CurrentStreak, &h.LongestStreak,
		&h.TotalCompletions, &h.XPPerCompletion, &h.GoalType,
		&h.DifficultyLevel, &reminderTime, &reminderEnabled,
		&h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if reminderTime.Valid {
		h.ReminderTime = &reminderTime.String
	}
	h.ReminderEnabled = reminderEnabled != 0
	return &h, nil
}

const habitCols = `id, user_id, name, description, category, icon, color, current_streak, longest_streak, total_completions, xp_per_completion, goal_type, difficulty_level, reminder_time, reminder_enabled, created_at, updated_at`

func (s *HabitStore) Create(userID int64, name, description, category, icon, color, goalType, difficultyLevel string, xpPerCompletion int, reminderTime *string, reminderEnabled bool) (*model.Habit, error) {
	var rt sql.NullString
	if reminderTime != nil {
		rt = sql.NullString{String: *reminderTime, Valid: true}
	}
	var re int
	if reminderEnabled {
		re = 1
	}

	result, err := s.db.Exec(
		`INSERT INTO habits (user_id, name, description, category, icon, color, goal_type, difficulty_level, xp_per_completion, reminder_time, reminder_enabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, name, description, category, icon, color, goalType, difficultyLevel, xpPerCompletion, rt, re,
	)
	if err != nil {
		return nil, fmt.Errorf("insert habit: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *HabitStore) GetByID(id int64) (*model.Habit, error) {
	row := s.db.QueryRow(`SELECT `+habitCols+` FROM habits WHERE id = ?`, id)
	h, err := scanHabit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return h, nil
}

// GetForUser returns the habit only if it belongs to the given user.
func (s *HabitStore) GetForUser(id, userID int64) (*model.Habit, error) {
	row := s.db.QueryRow(`SELECT `+habitCols+` FROM habits WHERE id = ? AND user_id = ?`, id, userID)
	h, err := scanHabit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get habit for user: %w", err)
	}
	return h, nil
}

// ListByUser returns a user's habits, newest first.
func (s *HabitStore) ListByUser(userID int64) ([]model.Habit, error) {
	rows, err := s.db.Query(
		`SELECT `+habitCols+` FROM habits WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var habits []model.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		habits = append(habits, *h)
	}
	return habits, rows.Err()
}

// UpdateStats persists the recomputed streak and completion counters.
func (s *HabitStore) UpdateStats(id int64, currentStreak, longestStreak, totalCompletions int) error {
	_, err := s.db.Exec(
		`UPDATE habits SET current_streak = ?, longest_streak = ?, total_completions = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		currentStreak, longestStreak, totalCompletions, id,
	)
	if err != nil {
		return fmt.Errorf("update habit stats: %w", err)
	}
	return nil
}

func (s *HabitStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM habits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	return nil
}

func (s *HabitStore) Count() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM habits`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count habits: %w", err)
	}
	return n, nil
}

// CategoryCount is one row of the habits-by-category breakdown.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// CountByCategory returns habit counts per category, most popular first.
func (s *HabitStore) CountByCategory() ([]CategoryCount, error) {
	rows, err := s.db.Query(
		`SELECT category, COUNT(*) AS n FROM habits GROUP BY category ORDER BY n DESC, category ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}
	defer rows.Close()

	var counts []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// ListWithReminders returns habits that have reminders enabled and a
// reminder time set.
func (s *HabitStore) ListWithReminders() ([]model.Habit, error) {
	rows, err := s.db.Query(
		`SELECT ` + habitCols + ` FROM habits WHERE reminder_enabled = 1 AND reminder_time IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("list habits with reminders: %w", err)
	}
	defer rows.Close()

	var habits []model.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		habits = append(habits, *h)
	}
	return habits, rows.Err()
}
