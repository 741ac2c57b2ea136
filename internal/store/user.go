package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dstark/habitforge/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.TotalXP, &u.Level, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, username, email, password_hash, total_xp, level, role, created_at, updated_at`

func (s *UserStore) Create(username, email, passwordHash string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)`,
		username, email, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByUsername(username string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

// UpdateGamification persists a user's XP total and derived level.
func (s *UserStore) UpdateGamification(id int64, totalXP, level int) error {
	_, err := s.db.Exec(
		`UPDATE users SET total_xp = ?, level = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		totalXP, level, id,
	)
	if err != nil {
		return fmt.Errorf("update gamification: %w", err)
	}
	return nil
}

// List returns all users, newest first.
func (s *UserStore) List() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *UserStore) Count() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *UserStore) CountCreatedSince(t time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE created_at >= ?`, t.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count new users: %w", err)
	}
	return n, nil
}

// --- Badge methods ---

func scanBadge(scanner interface{ Scan(...any) error }) (*model.Badge, error) {
	var b model.Badge
	var habitID sql.NullInt64

	err := scanner.Scan(
		&b.ID, &b.UserID, &b.BadgeID, &b.Name, &b.Description,
		&b.Icon, &habitID, &b.EarnedAt,
	)
	if err != nil {
		return nil, err
	}

	if habitID.Valid {
		b.HabitID = &habitID.Int64
	}
	return &b, nil
}

const badgeCols = `id, user_id, badge_id, name, description, icon, habit_id, earned_at`

// ListBadges returns a user's badges in the order they were earned.
func (s *UserStore) ListBadges(userID int64) ([]model.Badge, error) {
	rows, err := s.db.Query(
		`SELECT `+badgeCols+` FROM badges WHERE user_id = ? ORDER BY earned_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	var badges []model.Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		badges = append(badges, *b)
	}
	return badges, rows.Err()
}

// AddBadges appends newly earned badges in a single transaction.
func (s *UserStore) AddBadges(userID int64, badges []model.Badge) error {
	if len(badges) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, b := range badges {
		var habitID sql.NullInt64
		if b.HabitID != nil {
			habitID = sql.NullInt64{Int64: *b.HabitID, Valid: true}
		}
		_, err := tx.Exec(
			`INSERT INTO badges (user_id, badge_id, name, description, icon, habit_id, earned_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			userID, b.BadgeID, b.Name, b.Description, b.Icon, habitID, b.EarnedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert badge %s: %w", b.BadgeID, err)
		}
	}
	return tx.Commit()
}

// DeleteBadgesForHabit removes every badge of the user that was earned by
// the given habit.
func (s *UserStore) DeleteBadgesForHabit(userID, habitID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM badges WHERE user_id = ? AND habit_id = ?`,
		userID, habitID,
	)
	if err != nil {
		return fmt.Errorf("delete badges for habit: %w", err)
	}
	return nil
}
