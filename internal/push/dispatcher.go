package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/notify"
	"github.com/dukerupert/nudge/internal/recurrence"
	"github.com/dukerupert/nudge/internal/store"
)

// DispatcherConfig configures a Dispatcher. Zero values pick defaults.
type DispatcherConfig struct {
	Interval  time.Duration
	Retention time.Duration
	Desktop   notify.Notifier
	Now       func() time.Time
	// OnFire is called after a record has been delivered.
	OnFire func(rec model.NotificationRecord, delivered int)
}

// Dispatcher periodically fires due reminders from the local queue. Repeating
// records move to their next weekly occurrence; one-shot records are removed
// once fired.
type Dispatcher struct {
	mu        sync.RWMutex
	sender    Sender
	queue     *store.QueueStore
	push      *store.PushStore
	desktop   notify.Notifier
	now       func() time.Time
	onFire    func(model.NotificationRecord, int)
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewDispatcher creates a dispatcher. sender may be nil when web push is not
// configured; reminders then go only to the desktop notifier.
func NewDispatcher(sender Sender, queue *store.QueueStore, pushStore *store.PushStore, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	if cfg.Desktop == nil {
		cfg.Desktop = notify.Noop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.OnFire == nil {
		cfg.OnFire = func(model.NotificationRecord, int) {}
	}
	return &Dispatcher{
		sender:    sender,
		queue:     queue,
		push:      pushStore,
		desktop:   cfg.Desktop,
		now:       cfg.Now,
		onFire:    cfg.OnFire,
		interval:  cfg.Interval,
		retention: cfg.Retention,
		logger:    logger,
	}
}

// Start begins the dispatch loop.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	d.mu.Unlock()

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := d.Tick(ctx); err != nil {
					d.logger.Error("dispatch tick", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the dispatcher.
func (d *Dispatcher) Stop() {
	d.mu.RLock()
	cancel := d.cancel
	done := d.done
	d.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Tick fires every due record once and returns how many fired.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	now := d.now()
	due, err := d.queue.ListDue(now)
	if err != nil {
		return 0, err
	}

	fired := 0
	for _, rec := range due {
		if ctx.Err() != nil {
			return fired, ctx.Err()
		}
		if err := d.fire(ctx, rec, now); err != nil {
			d.logger.Error("fire reminder", "id", rec.ID, "habit_id", rec.Content.Data.HabitID, "error", err)
			continue
		}
		fired++
	}

	if err := d.push.CleanupDeliveries(now.Add(-d.retention)); err != nil {
		d.logger.Warn("prune delivery log", "error", err)
	}
	return fired, nil
}

func (d *Dispatcher) fire(ctx context.Context, rec model.NotificationRecord, now time.Time) error {
	delivered, failed := d.deliverPush(ctx, rec)

	if d.desktop.IsSupported() {
		if err := d.desktop.Send(rec.Content.Title, rec.Content.Body, rec.Content.Sound != ""); err != nil {
			d.logger.Warn("desktop notification", "id", rec.ID, "error", err)
			failed++
		} else {
			delivered++
		}
	}

	if err := d.push.RecordDelivery(rec.ID, rec.Content.Data.HabitID, delivered, failed, now); err != nil {
		d.logger.Warn("record delivery", "id", rec.ID, "error", err)
	}

	if rec.Trigger.Repeats {
		next := recurrence.NextOccurrence(now, rec.Trigger.Weekday, rec.Trigger.Hour, rec.Trigger.Minute)
		if err := d.queue.Advance(rec.ID, next); err != nil {
			return err
		}
	} else if _, err := d.queue.Delete(rec.ID); err != nil {
		return err
	}

	d.logger.Info("reminder fired", "id", rec.ID, "habit_id", rec.Content.Data.HabitID, "delivered", delivered, "failed", failed)
	d.onFire(rec, delivered)
	return nil
}

func (d *Dispatcher) deliverPush(ctx context.Context, rec model.NotificationRecord) (delivered, failed int) {
	if d.sender == nil {
		return 0, 0
	}

	subs, err := d.push.List()
	if err != nil {
		d.logger.Error("list push subscriptions", "error", err)
		return 0, 0
	}

	payload := Payload{
		Title:   rec.Content.Title,
		Body:    rec.Content.Body,
		URL:     "/",
		Tag:     fmt.Sprintf("habit-%d", rec.Content.Data.HabitID),
		HabitID: rec.Content.Data.HabitID,
	}
	for i := range subs {
		sub := &subs[i]
		err := d.sender.Send(ctx, sub, payload)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrExpired):
			d.logger.Info("push subscription expired, removing", "subscription_id", sub.ID)
			if err := d.push.DeleteByEndpoint(sub.Endpoint); err != nil {
				d.logger.Warn("delete expired subscription", "subscription_id", sub.ID, "error", err)
			}
			failed++
		default:
			d.logger.Warn("send push", "subscription_id", sub.ID, "error", err)
			failed++
		}
	}
	return delivered, failed
}
