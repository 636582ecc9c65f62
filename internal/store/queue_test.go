package store

import (
	"testing"
	"time"

	"github.com/dukerupert/nudge/internal/model"
)

func testRecord(id string, habitID int64, next time.Time) model.NotificationRecord {
	return model.NotificationRecord{
		ID: id,
		Content: model.NotificationContent{
			Title: "Habit Reminder",
			Body:  "Don't forget: Read",
			Sound: "default",
			Data: model.NotificationData{
				HabitID:   habitID,
				Type:      model.NotifTypeHabitReminder,
				Timestamp: 1700000000000,
			},
		},
		Trigger: model.Trigger{
			Kind:    model.TriggerCalendar,
			Weekday: 3,
			Hour:    7,
			Minute:  30,
			Repeats: true,
		},
		NextFireAt: next,
	}
}

func TestQueueInsertGet(t *testing.T) {
	q := NewQueueStore(setupTestDB(t))
	next := time.Date(2026, 3, 4, 7, 30, 0, 0, time.UTC)

	if err := q.Insert(testRecord("n1", 7, next)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := q.Get("n1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected record")
	}
	if got.Content.Data.HabitID != 7 {
		t.Errorf("habit_id = %d, want 7", got.Content.Data.HabitID)
	}
	if got.Content.Data.Type != model.NotifTypeHabitReminder {
		t.Errorf("type = %q", got.Content.Data.Type)
	}
	if got.Trigger.Kind != model.TriggerCalendar || !got.Trigger.Repeats || got.Trigger.Weekday != 3 {
		t.Errorf("trigger = %+v", got.Trigger)
	}
	if !got.NextFireAt.Equal(next) {
		t.Errorf("next_fire_at = %v, want %v", got.NextFireAt, next)
	}
	if got.Content.Body != "Don't forget: Read" {
		t.Errorf("body = %q", got.Content.Body)
	}

	missing, err := q.Get("nope")
	if err != nil || missing != nil {
		t.Errorf("Get(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestQueueListDue(t *testing.T) {
	q := NewQueueStore(setupTestDB(t))
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	q.Insert(testRecord("past", 1, now.Add(-time.Hour)))
	q.Insert(testRecord("exact", 1, now))
	q.Insert(testRecord("future", 1, now.Add(time.Minute)))

	due, err := q.ListDue(now)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("due = %d, want 2", len(due))
	}
	if due[0].ID != "past" || due[1].ID != "exact" {
		t.Errorf("order = %s, %s; want past, exact", due[0].ID, due[1].ID)
	}

	all, _ := q.List()
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}
}

func TestQueueAdvanceAndDelete(t *testing.T) {
	q := NewQueueStore(setupTestDB(t))
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	q.Insert(testRecord("n1", 1, now))

	next := now.AddDate(0, 0, 7)
	if err := q.Advance("n1", next); err != nil {
		t.Fatalf("advance: %v", err)
	}
	got, _ := q.Get("n1")
	if !got.NextFireAt.Equal(next) {
		t.Errorf("next_fire_at = %v, want %v", got.NextFireAt, next)
	}

	existed, err := q.Delete("n1")
	if err != nil || !existed {
		t.Fatalf("delete = %v, %v", existed, err)
	}
	existed, err = q.Delete("n1")
	if err != nil || existed {
		t.Errorf("second delete = %v, %v; want false, nil", existed, err)
	}
}

func TestQueueDeleteAll(t *testing.T) {
	q := NewQueueStore(setupTestDB(t))
	now := time.Now()
	q.Insert(testRecord("a", 1, now))
	q.Insert(testRecord("b", 2, now))

	n, err := q.DeleteAll()
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	all, _ := q.List()
	if len(all) != 0 {
		t.Errorf("remaining = %d, want 0", len(all))
	}
}
