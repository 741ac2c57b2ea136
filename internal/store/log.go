package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dstark/habitforge/internal/dates"
	"github.com/dstark/habitforge/internal/model"
)

type LogStore struct {
	db *sql.DB
}

func NewLogStore(db *sql.DB) *LogStore {
	return &LogStore{db: db}
}

func scanLog(scanner interface{ Scan(...any) error }) (*model.DailyLog, error) {
	var l model.DailyLog
	var day string
	var completed int

	err := scanner.Scan(
		&l.ID, &l.HabitID, &l.UserID, &day, &completed,
		&l.Note, &l.XPEarned, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Date, err = dates.Parse(day)
	if err != nil {
		return nil, fmt.Errorf("parse log date %q: %w", day, err)
	}
	l.Completed = completed != 0
	return &l, nil
}

const logCols = `id, habit_id, user_id, log_date, completed, note, xp_earned, created_at, updated_at`

// IsDuplicateDay reports whether err is the unique-constraint violation for
// the one-log-per-habit-per-day rule.
func IsDuplicateDay(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: daily_logs.habit_id, daily_logs.log_date")
}

// Create inserts a log for the habit on the given day. The date is stored
// as a day key; inserting a second log for the same (habit, day) fails the
// unique constraint (see IsDuplicateDay).
func (s *LogStore) Create(habitID, userID int64, date time.Time, completed bool, note string, xpEarned int) (*model.DailyLog, error) {
	var c int
	if completed {
		c = 1
	}

	result, err := s.db.Exec(
		`INSERT INTO daily_logs (habit_id, user_id, log_date, completed, note, xp_earned) VALUES (?, ?, ?, ?, ?, ?)`,
		habitID, userID, dates.Format(date), c, note, xpEarned,
	)
	if err != nil {
		return nil, fmt.Errorf("insert log: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *LogStore) GetByID(id int64) (*model.DailyLog, error) {
	row := s.db.QueryRow(`SELECT `+logCols+` FROM daily_logs WHERE id = ?`, id)
	l, err := scanLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get log: %w", err)
	}
	return l, nil
}

// GetForHabit returns the log only if it belongs to the given habit.
func (s *LogStore) GetForHabit(id, habitID int64) (*model.DailyLog, error) {
	row := s.db.QueryRow(`SELECT `+logCols+` FROM daily_logs WHERE id = ? AND habit_id = ?`, id, habitID)
	l, err := scanLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get log for habit: %w", err)
	}
	return l, nil
}

func (s *LogStore) GetByHabitAndDate(habitID int64, day time.Time) (*model.DailyLog, error) {
	row := s.db.QueryRow(
		`SELECT `+logCols+` FROM daily_logs WHERE habit_id = ? AND log_date = ?`,
		habitID, dates.Format(day),
	)
	l, err := scanLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get log by date: %w", err)
	}
	return l, nil
}

// ListByHabit returns a habit's full history, newest first. The streak and
// badge engines depend on this ordering.
func (s *LogStore) ListByHabit(habitID int64) ([]model.DailyLog, error) {
	rows, err := s.db.Query(
		`SELECT `+logCols+` FROM daily_logs WHERE habit_id = ? ORDER BY log_date DESC`,
		habitID,
	)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var logs []model.DailyLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

// Update rewrites a log's completed flag, note, and frozen XP value.
func (s *LogStore) Update(id int64, completed bool, note string, xpEarned int) (*model.DailyLog, error) {
	var c int
	if completed {
		c = 1
	}

	_, err := s.db.Exec(
		`UPDATE daily_logs SET completed = ?, note = ?, xp_earned = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		c, note, xpEarned, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update log: %w", err)
	}
	return s.GetByID(id)
}

func (s *LogStore) DeleteByHabit(habitID int64) error {
	_, err := s.db.Exec(`DELETE FROM daily_logs WHERE habit_id = ?`, habitID)
	if err != nil {
		return fmt.Errorf("delete logs by habit: %w", err)
	}
	return nil
}

func (s *LogStore) DeleteByUser(userID int64) error {
	_, err := s.db.Exec(`DELETE FROM daily_logs WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete logs by user: %w", err)
	}
	return nil
}

// SumXPForUser totals the frozen xp_earned over the user's logs whose habit
// still exists. Orphaned logs never count toward the total.
func (s *LogStore) SumXPForUser(userID int64) (int, error) {
	var total int
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(l.xp_earned), 0)
		 FROM daily_logs l
		 JOIN habits h ON h.id = l.habit_id
		 WHERE l.user_id = ?`,
		userID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum xp: %w", err)
	}
	return total, nil
}

// CompletedOn reports whether the habit has a completed log for the day.
func (s *LogStore) CompletedOn(habitID int64, day time.Time) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM daily_logs WHERE habit_id = ? AND log_date = ? AND completed = 1`,
		habitID, dates.Format(day),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check completed: %w", err)
	}
	return n > 0, nil
}

func (s *LogStore) Count() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM daily_logs`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count logs: %w", err)
	}
	return n, nil
}

func (s *LogStore) CountCompleted() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM daily_logs WHERE completed = 1`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed logs: %w", err)
	}
	return n, nil
}

// CountActiveUsersSince counts distinct users with a log dated on or after
// the given day.
func (s *LogStore) CountActiveUsersSince(day time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(
		`SELECT COUNT(DISTINCT user_id) FROM daily_logs WHERE log_date >= ?`,
		dates.Format(day),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}
	return n, nil
}
