package reminder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/store"
)

// fakeBackend is an in-memory platform with failure injection.
type fakeBackend struct {
	mu sync.Mutex

	status    model.PermissionStatus
	grant     bool
	requested int
	channels  []model.Channel

	records       map[string]model.NotificationRecord
	seq           int
	scheduleCalls int
	cancelCalls   []string

	failWeekday map[int]bool
	failCancel  map[string]bool
	failList    error
}

func newFakeBackend(status model.PermissionStatus) *fakeBackend {
	return &fakeBackend{
		status:      status,
		grant:       true,
		records:     make(map[string]model.NotificationRecord),
		failWeekday: make(map[int]bool),
		failCancel:  make(map[string]bool),
	}
}

func (f *fakeBackend) Permissions(context.Context) (model.PermissionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *fakeBackend) RequestPermission(context.Context) (model.PermissionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested++
	if f.status == model.PermissionUndetermined {
		f.status = model.PermissionDenied
		if f.grant {
			f.status = model.PermissionGranted
		}
	}
	return f.status, nil
}

func (f *fakeBackend) CreateChannel(_ context.Context, ch model.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, ch)
	return nil
}

func (f *fakeBackend) Schedule(_ context.Context, content model.NotificationContent, trigger model.Trigger) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduleCalls++
	if f.failWeekday[trigger.Weekday] {
		return "", fmt.Errorf("platform rejected weekday %d", trigger.Weekday)
	}
	f.seq++
	id := fmt.Sprintf("n-%d", f.seq)
	f.records[id] = model.NotificationRecord{ID: id, Content: content, Trigger: trigger}
	return id, nil
}

func (f *fakeBackend) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls = append(f.cancelCalls, id)
	if f.failCancel[id] {
		return errors.New("platform cancel failed")
	}
	if _, ok := f.records[id]; !ok {
		return ErrNotificationNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeBackend) CancelAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = make(map[string]model.NotificationRecord)
	return nil
}

func (f *fakeBackend) Scheduled(context.Context) ([]model.NotificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	out := make([]model.NotificationRecord, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// add places a record on the platform directly, bypassing the service.
func (f *fakeBackend) add(id string, habitID int64, typ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[id] = model.NotificationRecord{
		ID:      id,
		Content: model.NotificationContent{Data: model.NotificationData{HabitID: habitID, Type: typ}},
	}
}

func (f *fakeBackend) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[id]
	return ok
}

func (f *fakeBackend) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// wednesdayNoon is 2026-03-04 12:00 UTC, a Wednesday.
var wednesdayNoon = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newScheduleStore() *store.ScheduleStore {
	return store.NewScheduleStore(store.NewMemoryKV())
}

func newTestService(t *testing.T, backend Backend, platform model.Platform) (*Service, *store.ScheduleStore) {
	t.Helper()
	schedules := newScheduleStore()
	svc := NewService(backend, schedules, Config{
		Platform: platform,
		Now:      fixedClock(wednesdayNoon),
	}, discardLogger())
	return svc, schedules
}

func days(idx ...int) [7]bool {
	var mask [7]bool
	for _, i := range idx {
		mask[i] = true
	}
	return mask
}
