package reminder

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/multierr"

	"github.com/dukerupert/nudge/internal/store"
)

// Report summarizes one orphan sweep.
type Report struct {
	Scanned   int      `json:"scanned"`
	Tracked   int      `json:"tracked"`
	Orphans   int      `json:"orphans"`
	Cancelled int      `json:"cancelled"`
	OrphanIDs []string `json:"orphan_ids,omitempty"`
}

// Reconciler cancels habit reminders the platform holds but the schedule
// store does not track. Ownership comes only from the store; a tracked id is
// never cancelled, whether or not its habit still exists elsewhere.
type Reconciler struct {
	backend   Backend
	schedules *store.ScheduleStore
	onEvent   func(Event)
	logger    *slog.Logger
}

func NewReconciler(backend Backend, schedules *store.ScheduleStore, onEvent func(Event), logger *slog.Logger) *Reconciler {
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	return &Reconciler{backend: backend, schedules: schedules, onEvent: onEvent, logger: logger}
}

// Cleanup runs one sweep. The returned error combines individual cancel
// failures; listing or store read failures abort before anything is
// cancelled.
func (r *Reconciler) Cleanup(ctx context.Context) (Report, error) {
	var report Report

	records, err := r.backend.Scheduled(ctx)
	if err != nil {
		return report, fmt.Errorf("cleanup orphans: list scheduled: %w", err)
	}

	tracked, err := r.schedules.TrackedIDs()
	if err != nil {
		return report, fmt.Errorf("cleanup orphans: %w", err)
	}

	var failures error
	for _, rec := range records {
		if !rec.IsHabitReminder() {
			continue
		}
		report.Scanned++
		if _, ok := tracked[rec.ID]; ok {
			report.Tracked++
			continue
		}

		report.Orphans++
		report.OrphanIDs = append(report.OrphanIDs, rec.ID)
		if err := r.backend.Cancel(ctx, rec.ID); err != nil {
			r.logger.Warn("cancel orphaned reminder", "id", rec.ID, "habit_id", rec.Content.Data.HabitID, "error", err)
			failures = multierr.Append(failures, fmt.Errorf("cancel orphan %s: %w", rec.ID, err))
			continue
		}
		report.Cancelled++
	}

	if report.Orphans > 0 {
		r.logger.Info("orphaned reminders cleaned", "orphans", report.Orphans, "cancelled", report.Cancelled)
		r.onEvent(Event{Type: EventOrphans, IDs: report.OrphanIDs})
	} else {
		r.logger.Debug("no orphaned reminders", "scanned", report.Scanned)
	}
	return report, failures
}
