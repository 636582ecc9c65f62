package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/recurrence"
	"github.com/dukerupert/nudge/internal/store"
)

const defaultTitle = "Habit Reminder"

// Event types published by Service and Reconciler.
const (
	EventScheduled = "reminder_scheduled"
	EventCancelled = "reminder_cancelled"
	EventOrphans   = "reminder_orphans_cleaned"
)

// Event describes a change to a habit's reminders.
type Event struct {
	Type    string
	HabitID int64
	IDs     []string
}

// Config holds the Service's platform wiring. Zero values pick defaults:
// a physical device, time.Now and the "Habit Reminder" title.
type Config struct {
	Platform model.Platform
	Device   Device
	Now      func() time.Time
	Title    string
	OnEvent  func(Event)
}

// Service schedules, updates, reschedules and cancels habit reminders.
type Service struct {
	backend    Backend
	gate       *PermissionGate
	strategy   TriggerStrategy
	schedules  *store.ScheduleStore
	reconciler *Reconciler
	device     Device
	now        func() time.Time
	title      string
	onEvent    func(Event)
	logger     *slog.Logger
}

func NewService(backend Backend, schedules *store.ScheduleStore, cfg Config, logger *slog.Logger) *Service {
	if cfg.Device == nil {
		cfg.Device = StaticDevice(true)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Title == "" {
		cfg.Title = defaultTitle
	}
	if cfg.OnEvent == nil {
		cfg.OnEvent = func(Event) {}
	}
	return &Service{
		backend:    backend,
		gate:       NewPermissionGate(backend, cfg.Platform, logger),
		strategy:   StrategyFor(cfg.Platform),
		schedules:  schedules,
		reconciler: NewReconciler(backend, schedules, cfg.OnEvent, logger),
		device:     cfg.Device,
		now:        cfg.Now,
		title:      cfg.Title,
		onEvent:    cfg.OnEvent,
		logger:     logger,
	}
}

// RequestPermission runs the permission gate.
func (s *Service) RequestPermission(ctx context.Context) bool {
	return s.gate.RequestPermission(ctx)
}

// Strategy returns the trigger strategy in use.
func (s *Service) Strategy() TriggerStrategy {
	return s.strategy
}

// Schedule submits one notification per selected weekday and overwrites
// the habit's schedule entry with the resulting ids. A denied permission or
// a non-physical device yields an empty list, not an error. A weekday that
// fails to schedule is logged and left out.
func (s *Service) Schedule(ctx context.Context, h model.HabitReminder) ([]string, error) {
	if !s.device.IsPhysicalDevice() {
		s.logger.Info("reminders need a physical device, skipping", "habit_id", h.HabitID)
		return []string{}, nil
	}

	if !s.gate.RequestPermission(ctx) {
		return []string{}, nil
	}

	hour, minute, err := recurrence.ParseClock(h.Time)
	if err != nil {
		return []string{}, fmt.Errorf("%w: %v", ErrInvalidTime, err)
	}

	slots := make([]string, len(h.DaysOfWeek))
	var g errgroup.Group
	for i, selected := range h.DaysOfWeek {
		if !selected {
			continue
		}
		weekday := i + 1
		g.Go(func() error {
			trigger := s.strategy.Build(hour, minute, weekday, s.now())
			id, err := s.backend.Schedule(ctx, s.content(h), trigger)
			if err != nil {
				s.logger.Warn("schedule reminder", "habit_id", h.HabitID, "weekday", weekday, "error", err)
				return nil
			}
			slots[i] = id
			return nil
		})
	}
	g.Wait()

	ids := make([]string, 0, len(slots))
	for _, id := range slots {
		if id != "" {
			ids = append(ids, id)
		}
	}

	if err := s.schedules.Set(h.HabitID, ids); err != nil {
		return ids, err
	}

	s.logger.Info("reminders scheduled", "habit_id", h.HabitID, "count", len(ids), "selected_days", h.SelectedDays())
	s.onEvent(Event{Type: EventScheduled, HabitID: h.HabitID, IDs: ids})
	return ids, nil
}

func (s *Service) content(h model.HabitReminder) model.NotificationContent {
	return model.NotificationContent{
		Title: s.title,
		Body:  fmt.Sprintf("Don't forget: %s", h.Name),
		Sound: "default",
		Data: model.NotificationData{
			HabitID:   h.HabitID,
			Type:      model.NotifTypeHabitReminder,
			Timestamp: s.now().UnixMilli(),
		},
	}
}

// Cancel removes every notification the habit owns. Ids from the schedule
// entry are cancelled first, then the platform queue is scanned for records
// tagged with the habit that the entry missed. A failure on one id is logged
// and does not stop the others; the entry is deleted once both passes ran.
// Only failures to read the store or list the platform are returned.
func (s *Service) Cancel(ctx context.Context, habitID int64) error {
	ids, _, err := s.schedules.Get(habitID)
	if err != nil {
		return fmt.Errorf("cancel habit %d: %w", habitID, err)
	}

	attempted := make(map[string]bool, len(ids))
	var failures error
	for _, id := range ids {
		attempted[id] = true
		failures = multierr.Append(failures, s.cancelOne(ctx, habitID, id))
	}

	records, err := s.backend.Scheduled(ctx)
	if err != nil {
		return fmt.Errorf("cancel habit %d: list scheduled: %w", habitID, err)
	}

	var strays []string
	for _, rec := range records {
		if !rec.IsHabitReminder() || rec.Content.Data.HabitID != habitID || attempted[rec.ID] {
			continue
		}
		attempted[rec.ID] = true
		strays = append(strays, rec.ID)
		failures = multierr.Append(failures, s.cancelOne(ctx, habitID, rec.ID))
	}
	if len(strays) > 0 {
		s.logger.Warn("cancelled untracked reminders", "habit_id", habitID, "ids", strays)
	}

	if err := s.schedules.Delete(habitID); err != nil {
		return fmt.Errorf("cancel habit %d: %w", habitID, err)
	}

	if failures != nil {
		s.logger.Warn("some reminder cancellations failed", "habit_id", habitID, "failed", len(multierr.Errors(failures)), "error", failures)
	}

	cancelled := make([]string, 0, len(attempted))
	for id := range attempted {
		cancelled = append(cancelled, id)
	}
	s.onEvent(Event{Type: EventCancelled, HabitID: habitID, IDs: cancelled})
	return nil
}

func (s *Service) cancelOne(ctx context.Context, habitID int64, id string) error {
	err := s.backend.Cancel(ctx, id)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotificationNotFound) {
		s.logger.Debug("reminder already gone", "habit_id", habitID, "id", id)
		return nil
	}
	return fmt.Errorf("cancel %s: %w", id, err)
}

// Update replaces the habit's reminders with a new configuration. The
// schedule step runs even if cancelling failed: anything left behind is no
// longer tracked and the reconciler removes it.
func (s *Service) Update(ctx context.Context, h model.HabitReminder) ([]string, error) {
	cancelErr := s.Cancel(ctx, h.HabitID)
	if cancelErr != nil {
		s.logger.Warn("update reminders: cancel", "habit_id", h.HabitID, "error", cancelErr)
	}
	ids, err := s.Schedule(ctx, h)
	return ids, multierr.Append(cancelErr, err)
}

// Reschedule re-derives the habit's next occurrences after a completion.
// Calendar triggers recur on their own, so it only acts when the strategy
// consumes triggers on firing; otherwise it returns nil, nil.
func (s *Service) Reschedule(ctx context.Context, h model.HabitReminder) ([]string, error) {
	if !s.strategy.NeedsPostCompletionReschedule() {
		return nil, nil
	}
	return s.Update(ctx, h)
}

// CleanupOrphans runs the orphan reconciler.
func (s *Service) CleanupOrphans(ctx context.Context) (Report, error) {
	return s.reconciler.Cleanup(ctx)
}

// Tracked returns the ids stored for a habit and whether it has an entry.
func (s *Service) Tracked(habitID int64) ([]string, bool, error) {
	return s.schedules.Get(habitID)
}

// PermissionStatus reports the platform's current decision without prompting.
func (s *Service) PermissionStatus(ctx context.Context) (model.PermissionStatus, error) {
	return s.backend.Permissions(ctx)
}

// Scheduled lists the platform queue.
func (s *Service) Scheduled(ctx context.Context) ([]model.NotificationRecord, error) {
	return s.backend.Scheduled(ctx)
}
