package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dstark/habitforge/internal/backup"
	"github.com/dstark/habitforge/internal/handler"
	"github.com/dstark/habitforge/internal/middleware"
	"github.com/dstark/habitforge/internal/progress"
	"github.com/dstark/habitforge/internal/push"
	"github.com/dstark/habitforge/internal/store"
)

// PushConfig holds the VAPID key pair. Push notifications stay disabled
// when either key is empty.
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
}

type Server struct {
	db            *sql.DB
	authH         *handler.AuthHandler
	habitH        *handler.HabitHandler
	adminH        *handler.AdminHandler
	pushH         *handler.PushHandler
	userStore     *store.UserStore
	jwtSecret     []byte
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	pushScheduler *push.Scheduler
	logger        *slog.Logger
}

func New(db *sql.DB, jwtSecret []byte, backupCfg backup.Config, pushCfg PushConfig, logger *slog.Logger) *Server {
	userStore := store.NewUserStore(db)
	habitStore := store.NewHabitStore(db)
	logStore := store.NewLogStore(db)
	pushStore := store.NewPushStore(db)
	backupStore := store.NewBackupStore(db)

	coord := progress.NewCoordinator(userStore, habitStore, logStore, logger.With("component", "progress"))

	backupMgr := backup.NewManager(backupCfg, db, backupStore, logger.With("component", "backup"))

	var pushSvc *push.Service
	var pushSched *push.Scheduler
	var pushH *handler.PushHandler
	if pushCfg.VAPIDPublicKey != "" && pushCfg.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(pushCfg.VAPIDPublicKey, pushCfg.VAPIDPrivateKey)
		pushSched = push.NewScheduler(pushSvc, pushStore, habitStore, logStore, logger.With("component", "push"))
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler"))
	}

	return &Server{
		db:            db,
		authH:         handler.NewAuthHandler(userStore, jwtSecret, logger.With("component", "auth")),
		habitH:        handler.NewHabitHandler(habitStore, logStore, coord, logger.With("component", "habit")),
		adminH:        handler.NewAdminHandler(userStore, habitStore, logStore, backupStore, backupMgr, logger.With("component", "admin")),
		pushH:         pushH,
		userStore:     userStore,
		jwtSecret:     jwtSecret,
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		pushScheduler: pushSched,
		logger:        logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// PushScheduler returns the push notification scheduler, nil when push is
// not configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/signup", s.rateLimitedHandler(s.authH.Signup))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.jwtSecret, s.userStore)
	outerMux.Handle("/api/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Habit API routes
	mux.HandleFunc("POST /api/habits", s.habitH.Create)
	mux.HandleFunc("GET /api/habits", s.habitH.List)
	mux.HandleFunc("GET /api/habits/{id}", s.habitH.Get)
	mux.HandleFunc("DELETE /api/habits/{id}", s.habitH.Delete)

	// Daily log API routes
	mux.HandleFunc("GET /api/habits/{id}/logs", s.habitH.ListLogs)
	mux.HandleFunc("POST /api/habits/{id}/logs", s.habitH.CreateLog)
	mux.HandleFunc("PUT /api/habits/{id}/logs/{log_id}", s.habitH.UpdateLog)

	// Push notification API routes
	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	}

	// Admin routes — additionally gated on the admin role
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET /api/admin/users", s.adminH.Users)
	adminMux.HandleFunc("GET /api/admin/stats", s.adminH.Stats)
	adminMux.HandleFunc("GET /api/admin/backups", s.adminH.Backups)
	adminMux.HandleFunc("POST /api/admin/backups", s.adminH.TriggerBackup)
	mux.Handle("/api/admin/", middleware.RequireAdmin(adminMux))
}
