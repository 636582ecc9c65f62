package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/nudge/internal/database"
	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/reminder"
	"github.com/dukerupert/nudge/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// brokenKV fails every write, standing in for a store that cannot persist.
type brokenKV struct{ store.MemoryKV }

func (*brokenKV) Update(string, func(string, bool) (string, error)) error {
	return errors.New("disk full")
}

func setupReminderHandler(t *testing.T, permission model.PermissionStatus, kv store.KeyValue) *ReminderHandler {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	now := func() time.Time { return time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) }
	backend := reminder.NewLiveBackend(store.NewQueueStore(db), store.NewChannelStore(db), store.NewSettingsStore(db), nil, now)
	if err := backend.SetPermission(permission); err != nil {
		t.Fatalf("SetPermission: %v", err)
	}
	if kv == nil {
		kv = store.NewSettingsStore(db)
	}
	svc := reminder.NewService(backend, store.NewScheduleStore(kv), reminder.Config{
		Platform: model.PlatformIOS,
		Now:      now,
	}, testLogger())
	return NewReminderHandler(svc, testLogger())
}

func habitRequest(method, id, body string) *http.Request {
	req := httptest.NewRequest(method, "/api/habits/"+id+"/reminders", strings.NewReader(body))
	req.SetPathValue("id", id)
	return req
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestScheduleHandler(t *testing.T) {
	h := setupReminderHandler(t, model.PermissionGranted, nil)

	rec := httptest.NewRecorder()
	h.Schedule(rec, habitRequest("POST", "5", `{"name":"Stretch","days":"MO,WE","time":"07:30"}`))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	resp := decodeBody[reminderResponse](t, rec)
	if resp.HabitID != 5 || len(resp.IDs) != 2 || resp.Warning != "" {
		t.Errorf("response = %+v", resp)
	}

	rec = httptest.NewRecorder()
	h.Get(rec, habitRequest("GET", "5", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	got := decodeBody[reminderResponse](t, rec)
	if len(got.IDs) != 2 {
		t.Errorf("tracked ids = %v", got.IDs)
	}
}

func TestScheduleHandlerDaysArray(t *testing.T) {
	h := setupReminderHandler(t, model.PermissionGranted, nil)

	rec := httptest.NewRecorder()
	h.Schedule(rec, habitRequest("POST", "1", `{"name":"Run","days_of_week":[true,false,false,false,false,false,true],"time":"06:00"}`))

	resp := decodeBody[reminderResponse](t, rec)
	if rec.Code != http.StatusCreated || len(resp.IDs) != 2 {
		t.Errorf("status = %d, response = %+v", rec.Code, resp)
	}
}

func TestScheduleHandlerValidation(t *testing.T) {
	h := setupReminderHandler(t, model.PermissionGranted, nil)

	tests := []struct {
		name string
		id   string
		body string
	}{
		{"bad id", "abc", `{"time":"07:00"}`},
		{"bad json", "1", `{`},
		{"bad time", "1", `{"time":"7pm"}`},
		{"missing time", "1", `{"days":"daily"}`},
		{"bad days", "1", `{"days":"someday","time":"07:00"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Schedule(rec, habitRequest("POST", tt.id, tt.body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestScheduleHandlerPermissionDenied(t *testing.T) {
	h := setupReminderHandler(t, model.PermissionDenied, nil)

	rec := httptest.NewRecorder()
	h.Schedule(rec, habitRequest("POST", "1", `{"days":"daily","time":"07:00"}`))

	resp := decodeBody[reminderResponse](t, rec)
	if rec.Code != http.StatusCreated || len(resp.IDs) != 0 || resp.IDs == nil {
		t.Errorf("status = %d, response = %+v", rec.Code, resp)
	}
}

func TestScheduleHandlerSoftFailure(t *testing.T) {
	h := setupReminderHandler(t, model.PermissionGranted, &brokenKV{})

	rec := httptest.NewRecorder()
	h.Schedule(rec, habitRequest("POST", "1", `{"days":"MO","time":"07:00"}`))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	resp := decodeBody[reminderResponse](t, rec)
	if resp.Warning == "" {
		t.Error("expected a warning when reminders could not be stored")
	}
}

func TestUpdateAndCancelHandlers(t *testing.T) {
	h := setupReminderHandler(t, model.PermissionGranted, nil)

	h.Schedule(httptest.NewRecorder(), habitRequest("POST", "3", `{"days":"weekdays","time":"07:00"}`))

	rec := httptest.NewRecorder()
	h.Update(rec, habitRequest("PUT", "3", `{"days":"weekends","time":"09:00"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}
	if resp := decodeBody[reminderResponse](t, rec); len(resp.IDs) != 2 {
		t.Errorf("update ids = %v", resp.IDs)
	}

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/api/reminders", nil))
	if records := decodeBody[[]model.NotificationRecord](t, rec); len(records) != 2 {
		t.Errorf("queued = %d, want 2", len(records))
	}

	rec = httptest.NewRecorder()
	h.Cancel(rec, habitRequest("DELETE", "3", ""))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cancel status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Get(rec, habitRequest("GET", "3", ""))
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after cancel status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/api/reminders", nil))
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("list after cancel = %s", body)
	}
}

func TestCompleteHandlerCalendar(t *testing.T) {
	h := setupReminderHandler(t, model.PermissionGranted, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/habits/2/complete", strings.NewReader(`{"days":"daily","time":"07:00"}`))
	req.SetPathValue("id", "2")
	h.Complete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeBody[completeResponse](t, rec)
	if resp.Rescheduled || len(resp.IDs) != 0 {
		t.Errorf("calendar completion should not reschedule: %+v", resp)
	}
}

func TestCleanupAndPermissionHandlers(t *testing.T) {
	h := setupReminderHandler(t, model.PermissionGranted, nil)

	rec := httptest.NewRecorder()
	h.Cleanup(rec, httptest.NewRequest("POST", "/api/reminders/cleanup", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("cleanup status = %d", rec.Code)
	}
	if report := decodeBody[reminder.Report](t, rec); report.Orphans != 0 {
		t.Errorf("report = %+v", report)
	}

	rec = httptest.NewRecorder()
	h.Permission(rec, httptest.NewRequest("POST", "/api/permission", nil))
	resp := decodeBody[struct {
		Granted bool   `json:"granted"`
		Status  string `json:"status"`
	}](t, rec)
	if !resp.Granted || resp.Status != "granted" {
		t.Errorf("permission = %+v", resp)
	}
}
