package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dstark/habitforge/internal/dates"
	"github.com/dstark/habitforge/internal/model"
	"github.com/dstark/habitforge/internal/store"
)

// Scheduler periodically checks habits with reminders enabled and notifies
// their owners when the reminder time arrives and the habit has not been
// completed yet today.
type Scheduler struct {
	mu       sync.RWMutex
	service  *Service
	push     *store.PushStore
	habits   *store.HabitStore
	logs     *store.LogStore
	logger   *slog.Logger
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}

	// sent dedupes reminders per habit per day across ticks.
	sent map[string]bool
}

func NewScheduler(svc *Service, pushStore *store.PushStore, habitStore *store.HabitStore, logStore *store.LogStore, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service:  svc,
		push:     pushStore,
		habits:   habitStore,
		logs:     logStore,
		logger:   logger,
		interval: 60 * time.Second,
		sent:     make(map[string]bool),
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(time.Now().UTC())
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(now time.Time) {
	habits, err := s.habits.ListWithReminders()
	if err != nil {
		s.logger.Error("reminder scheduler: list habits", "error", err)
		return
	}

	today := dates.DayKey(now)
	clock := now.Format("15:04")

	for _, habit := range habits {
		if habit.ReminderTime == nil || *habit.ReminderTime != clock {
			continue
		}

		key := fmt.Sprintf("%d-%s", habit.ID, dates.Format(today))
		s.mu.Lock()
		already := s.sent[key]
		if !already {
			s.sent[key] = true
		}
		s.mu.Unlock()
		if already {
			continue
		}

		completed, err := s.logs.CompletedOn(habit.ID, today)
		if err != nil {
			s.logger.Error("reminder scheduler: check completion", "habit_id", habit.ID, "error", err)
			continue
		}
		if completed {
			continue
		}

		s.remind(&habit)
	}

	s.pruneSent(today)
}

func (s *Scheduler) remind(habit *model.Habit) {
	subs, err := s.push.ListByUser(habit.UserID)
	if err != nil {
		s.logger.Error("reminder scheduler: list subscriptions", "user_id", habit.UserID, "error", err)
		return
	}

	payload := Payload{
		Title: "Habit Reminder",
		Body:  fmt.Sprintf("%s Time for %s", habit.Icon, habit.Name),
		URL:   fmt.Sprintf("/habits/%d", habit.ID),
		Tag:   fmt.Sprintf("habit-reminder-%d", habit.ID),
	}

	for _, sub := range subs {
		if err := s.service.Send(&sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				s.push.DeleteByEndpoint(sub.Endpoint)
			} else {
				s.logger.Error("reminder scheduler: send", "habit_id", habit.ID, "error", err)
			}
		}
	}
}

// pruneSent drops dedupe entries from previous days.
func (s *Scheduler) pruneSent(today time.Time) {
	suffix := "-" + dates.Format(today)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.sent {
		if len(key) < len(suffix) || key[len(key)-len(suffix):] != suffix {
			delete(s.sent, key)
		}
	}
}
