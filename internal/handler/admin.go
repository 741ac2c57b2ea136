package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dstark/habitforge/internal/backup"
	"github.com/dstark/habitforge/internal/dates"
	"github.com/dstark/habitforge/internal/model"
	"github.com/dstark/habitforge/internal/store"
)

type AdminHandler struct {
	userStore   *store.UserStore
	habitStore  *store.HabitStore
	logStore    *store.LogStore
	backupStore *store.BackupStore
	backupMgr   *backup.Manager
	logger      *slog.Logger
}

func NewAdminHandler(us *store.UserStore, hs *store.HabitStore, ls *store.LogStore, bs *store.BackupStore, mgr *backup.Manager, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{userStore: us, habitStore: hs, logStore: ls, backupStore: bs, backupMgr: mgr, logger: logger}
}

func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.userStore.List()
	if err != nil {
		h.logger.Error("list users", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

type statsResponse struct {
	TotalUsers       int64                 `json:"total_users"`
	TotalHabits      int64                 `json:"total_habits"`
	TotalLogs        int64                 `json:"total_logs"`
	CompletedLogs    int64                 `json:"completed_logs"`
	CompletionRate   float64               `json:"completion_rate"`
	NewUsersWeek     int64                 `json:"new_users_week"`
	ActiveUsersWeek  int64                 `json:"active_users_week"`
	HabitsByCategory []store.CategoryCount `json:"habits_by_category"`
}

// Stats aggregates platform-wide usage numbers for the admin dashboard.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var (
		stats statsResponse
		err   error
	)

	if stats.TotalUsers, err = h.userStore.Count(); err != nil {
		h.statsError(w, "count users", err)
		return
	}
	if stats.TotalHabits, err = h.habitStore.Count(); err != nil {
		h.statsError(w, "count habits", err)
		return
	}
	if stats.TotalLogs, err = h.logStore.Count(); err != nil {
		h.statsError(w, "count logs", err)
		return
	}
	if stats.CompletedLogs, err = h.logStore.CountCompleted(); err != nil {
		h.statsError(w, "count completed logs", err)
		return
	}
	if stats.TotalLogs > 0 {
		stats.CompletionRate = float64(stats.CompletedLogs) / float64(stats.TotalLogs)
	}

	weekAgo := time.Now().AddDate(0, 0, -7)
	if stats.NewUsersWeek, err = h.userStore.CountCreatedSince(weekAgo); err != nil {
		h.statsError(w, "count new users", err)
		return
	}
	if stats.ActiveUsersWeek, err = h.logStore.CountActiveUsersSince(dates.DayKey(weekAgo)); err != nil {
		h.statsError(w, "count active users", err)
		return
	}

	if stats.HabitsByCategory, err = h.habitStore.CountByCategory(); err != nil {
		h.statsError(w, "count by category", err)
		return
	}
	if stats.HabitsByCategory == nil {
		stats.HabitsByCategory = []store.CategoryCount{}
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) statsError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("admin stats", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "failed to compute stats")
}

const backupHistoryLimit = 50

type backupsResponse struct {
	Status  backup.Status        `json:"status"`
	Backups []model.BackupRecord `json:"backups"`
}

// Backups returns the backup manager status and recent backup history.
func (h *AdminHandler) Backups(w http.ResponseWriter, r *http.Request) {
	records, err := h.backupStore.List(backupHistoryLimit)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if records == nil {
		records = []model.BackupRecord{}
	}
	writeJSON(w, http.StatusOK, backupsResponse{Status: h.backupMgr.Status(), Backups: records})
}

// TriggerBackup runs a backup immediately instead of waiting for the
// scheduled hour.
func (h *AdminHandler) TriggerBackup(w http.ResponseWriter, r *http.Request) {
	if !h.backupMgr.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	}

	id, err := h.backupMgr.RunNow(r.Context())
	if err != nil {
		h.logger.Error("manual backup", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}

	h.logger.Info("manual backup completed", "backup_id", id)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     id,
		"status": h.backupMgr.Status(),
	})
}
