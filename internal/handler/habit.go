package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dstark/habitforge/internal/auth"
	"github.com/dstark/habitforge/internal/model"
	"github.com/dstark/habitforge/internal/progress"
	"github.com/dstark/habitforge/internal/store"
	"github.com/dstark/habitforge/internal/xp"
)

type HabitHandler struct {
	habitStore *store.HabitStore
	logStore   *store.LogStore
	coord      *progress.Coordinator
	logger     *slog.Logger
}

func NewHabitHandler(hs *store.HabitStore, ls *store.LogStore, coord *progress.Coordinator, logger *slog.Logger) *HabitHandler {
	return &HabitHandler{habitStore: hs, logStore: ls, coord: coord, logger: logger}
}

type habitRequest struct {
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	Icon            string  `json:"icon"`
	Color           string  `json:"color"`
	GoalType        string  `json:"goal_type"`
	DifficultyLevel string  `json:"difficulty_level"`
	ReminderTime    *string `json:"reminder_time"`
	ReminderEnabled bool    `json:"reminder_enabled"`
}

func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req habitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Category == "" {
		req.Category = "general"
	}
	if req.Icon == "" {
		req.Icon = "✅"
	}
	if req.Color == "" {
		req.Color = "#40c463"
	}
	if req.GoalType == "" {
		req.GoalType = "daily"
	}
	if req.DifficultyLevel == "" {
		req.DifficultyLevel = "medium"
	}
	if req.ReminderTime != nil {
		if _, err := time.Parse("15:04", *req.ReminderTime); err != nil {
			writeError(w, http.StatusBadRequest, "reminder_time must be HH:MM")
			return
		}
	}

	habit, err := h.habitStore.Create(
		userID, req.Name, req.Description, req.Category, req.Icon, req.Color,
		req.GoalType, req.DifficultyLevel, xp.ForDifficulty(req.DifficultyLevel),
		req.ReminderTime, req.ReminderEnabled,
	)
	if err != nil {
		h.logger.Error("create habit", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create habit")
		return
	}

	writeJSON(w, http.StatusCreated, habit)
}

func (h *HabitHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	habits, err := h.habitStore.ListByUser(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list habits")
		return
	}
	if habits == nil {
		habits = []model.Habit{}
	}
	writeJSON(w, http.StatusOK, habits)
}

func (h *HabitHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	habit, err := h.habitStore.GetForUser(id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get habit")
		return
	}
	if habit == nil {
		writeError(w, http.StatusNotFound, "habit not found")
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

// Delete removes the habit and returns the user's reconciled gamification
// state so the client can update XP, level, and badges in one round trip.
func (h *HabitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	snapshot, err := h.coord.DeleteHabit(id, userID)
	if err != nil {
		if errors.Is(err, progress.ErrHabitNotFound) {
			writeError(w, http.StatusNotFound, "habit not found")
			return
		}
		h.logger.Error("delete habit", "habit_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete habit")
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func (h *HabitHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	habit, err := h.habitStore.GetForUser(id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get habit")
		return
	}
	if habit == nil {
		writeError(w, http.StatusNotFound, "habit not found")
		return
	}

	logs, err := h.logStore.ListByHabit(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	if logs == nil {
		logs = []model.DailyLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

type logRequest struct {
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	Note      string `json:"note"`
}

// parseLogDate accepts RFC 3339 timestamps or bare YYYY-MM-DD dates; an
// empty string means today.
func parseLogDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func (h *HabitHandler) CreateLog(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req logRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	date, err := parseLogDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	logEntry, err := h.coord.CreateLog(id, userID, date, req.Completed, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, progress.ErrHabitNotFound):
			writeError(w, http.StatusNotFound, "habit not found")
		case errors.Is(err, progress.ErrDuplicateLog):
			writeError(w, http.StatusConflict, "log already exists for this date")
		default:
			h.logger.Error("create log", "habit_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create log")
		}
		return
	}

	writeJSON(w, http.StatusCreated, logEntry)
}

type logUpdateRequest struct {
	Completed *bool   `json:"completed"`
	Note      *string `json:"note"`
}

func (h *HabitHandler) UpdateLog(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	logID, err := strconv.ParseInt(r.PathValue("log_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid log_id")
		return
	}

	var req logUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	logEntry, err := h.coord.UpdateLog(id, userID, logID, req.Completed, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, progress.ErrHabitNotFound):
			writeError(w, http.StatusNotFound, "habit not found")
		case errors.Is(err, progress.ErrLogNotFound):
			writeError(w, http.StatusNotFound, "log not found")
		default:
			h.logger.Error("update log", "log_id", logID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update log")
		}
		return
	}

	writeJSON(w, http.StatusOK, logEntry)
}
