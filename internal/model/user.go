package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	TotalXP      int       `json:"total_xp"`
	Level        int       `json:"level"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Badge is an achievement permanently attached to a user once earned.
// HabitID points at the habit that earned it; the badge is removed when
// that habit is deleted.
type Badge struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	BadgeID     string    `json:"badge_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	HabitID     *int64    `json:"habit_id"`
	EarnedAt    time.Time `json:"earned_at"`
}
