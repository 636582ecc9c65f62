package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/recurrence"
	"github.com/dukerupert/nudge/internal/store"
)

// PermissionKey is the settings key holding the user's permission decision.
const PermissionKey = "notification_permission"

// Prompter asks the user whether notifications may be shown.
type Prompter interface {
	Prompt(ctx context.Context) (bool, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context) (bool, error)

func (f PrompterFunc) Prompt(ctx context.Context) (bool, error) {
	return f(ctx)
}

// AutoPrompter answers every prompt with a fixed decision.
func AutoPrompter(grant bool) Prompter {
	return PrompterFunc(func(context.Context) (bool, error) { return grant, nil })
}

// LiveBackend is the local notification platform: records live in SQLite
// and the push dispatcher fires them when due.
type LiveBackend struct {
	queue    *store.QueueStore
	channels *store.ChannelStore
	settings store.KeyValue
	prompter Prompter
	now      func() time.Time
	newID    func() string

	// mu serializes permission prompts.
	mu sync.Mutex
}

func NewLiveBackend(queue *store.QueueStore, channels *store.ChannelStore, settings store.KeyValue, prompter Prompter, now func() time.Time) *LiveBackend {
	if now == nil {
		now = time.Now
	}
	return &LiveBackend{
		queue:    queue,
		channels: channels,
		settings: settings,
		prompter: prompter,
		now:      now,
		newID:    uuid.NewString,
	}
}

func (b *LiveBackend) Permissions(ctx context.Context) (model.PermissionStatus, error) {
	value, ok, err := b.settings.Lookup(PermissionKey)
	if err != nil {
		return "", fmt.Errorf("read permission: %w", err)
	}
	if !ok {
		return model.PermissionUndetermined, nil
	}
	return model.PermissionStatus(value), nil
}

// RequestPermission prompts once; an earlier decision is returned as is.
func (b *LiveBackend) RequestPermission(ctx context.Context) (model.PermissionStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	status, err := b.Permissions(ctx)
	if err != nil {
		return "", err
	}
	if status != model.PermissionUndetermined {
		return status, nil
	}
	if b.prompter == nil {
		return model.PermissionUndetermined, nil
	}

	granted, err := b.prompter.Prompt(ctx)
	if err != nil {
		return "", fmt.Errorf("prompt for permission: %w", err)
	}
	status = model.PermissionDenied
	if granted {
		status = model.PermissionGranted
	}
	if err := b.settings.Set(PermissionKey, string(status)); err != nil {
		return "", fmt.Errorf("save permission: %w", err)
	}
	return status, nil
}

// SetPermission records a decision directly, e.g. from a settings screen.
func (b *LiveBackend) SetPermission(status model.PermissionStatus) error {
	if err := b.settings.Set(PermissionKey, string(status)); err != nil {
		return fmt.Errorf("save permission: %w", err)
	}
	return nil
}

func (b *LiveBackend) CreateChannel(ctx context.Context, ch model.Channel) error {
	return b.channels.Upsert(ch)
}

func (b *LiveBackend) Schedule(ctx context.Context, content model.NotificationContent, trigger model.Trigger) (string, error) {
	status, err := b.Permissions(ctx)
	if err != nil {
		return "", err
	}
	if status != model.PermissionGranted {
		return "", ErrPermissionDenied
	}

	now := b.now()
	var next time.Time
	switch trigger.Kind {
	case model.TriggerCalendar:
		if trigger.Weekday < 1 || trigger.Weekday > 7 {
			return "", fmt.Errorf("calendar trigger weekday %d out of range", trigger.Weekday)
		}
		next = recurrence.NextOccurrence(now, trigger.Weekday, trigger.Hour, trigger.Minute)
	case model.TriggerInterval:
		if trigger.DelaySeconds < 0 {
			return "", fmt.Errorf("interval trigger delay %d is negative", trigger.DelaySeconds)
		}
		next = now.Add(time.Duration(trigger.DelaySeconds) * time.Second)
	default:
		return "", fmt.Errorf("unsupported trigger kind %q", trigger.Kind)
	}

	rec := model.NotificationRecord{
		ID:         b.newID(),
		Content:    content,
		Trigger:    trigger,
		NextFireAt: next,
		CreatedAt:  now,
	}
	if err := b.queue.Insert(rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (b *LiveBackend) Cancel(ctx context.Context, id string) error {
	existed, err := b.queue.Delete(id)
	if err != nil {
		return err
	}
	if !existed {
		return fmt.Errorf("cancel %s: %w", id, ErrNotificationNotFound)
	}
	return nil
}

func (b *LiveBackend) CancelAll(ctx context.Context) error {
	_, err := b.queue.DeleteAll()
	return err
}

func (b *LiveBackend) Scheduled(ctx context.Context) ([]model.NotificationRecord, error) {
	return b.queue.List()
}
