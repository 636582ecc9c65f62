package model

import "time"

// NotifTypeHabitReminder tags every notification this service schedules so
// the reconciler can attribute platform records back to a habit.
const NotifTypeHabitReminder = "habit_reminder"

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformNone    Platform = "none"
)

type PermissionStatus string

const (
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
	PermissionUndetermined PermissionStatus = "undetermined"
	PermissionUnavailable  PermissionStatus = "unavailable"
)

// HabitReminder is the reminder configuration of one habit as supplied by
// the habit domain. DaysOfWeek index 0 is Monday, index 6 is Sunday.
type HabitReminder struct {
	HabitID    int64   `json:"habit_id"`
	Name       string  `json:"name"`
	DaysOfWeek [7]bool `json:"days_of_week"`
	Time       string  `json:"time"`
}

// SelectedDays returns the number of weekdays with a reminder.
func (h HabitReminder) SelectedDays() int {
	n := 0
	for _, on := range h.DaysOfWeek {
		if on {
			n++
		}
	}
	return n
}

type NotificationData struct {
	HabitID   int64  `json:"habit_id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type NotificationContent struct {
	Title string           `json:"title"`
	Body  string           `json:"body"`
	Sound string           `json:"sound,omitempty"`
	Data  NotificationData `json:"data"`
}

type TriggerKind string

const (
	TriggerCalendar TriggerKind = "calendar"
	TriggerInterval TriggerKind = "interval"
)

// Trigger tells the notification platform when to fire. Calendar triggers
// use Weekday/Hour/Minute with ISO weekdays (1 = Monday ... 7 = Sunday);
// interval triggers use DelaySeconds from the moment they are scheduled.
type Trigger struct {
	Kind         TriggerKind `json:"kind"`
	Weekday      int         `json:"weekday,omitempty"`
	Hour         int         `json:"hour"`
	Minute       int         `json:"minute"`
	DelaySeconds int64       `json:"delay_seconds,omitempty"`
	Repeats      bool        `json:"repeats"`
	ChannelID    string      `json:"channel_id,omitempty"`
}

// NotificationRecord is one notification held by the platform queue.
type NotificationRecord struct {
	ID         string              `json:"id"`
	Content    NotificationContent `json:"content"`
	Trigger    Trigger             `json:"trigger"`
	NextFireAt time.Time           `json:"next_fire_at"`
	CreatedAt  time.Time           `json:"created_at"`
}

// IsHabitReminder reports whether the record was scheduled by this service.
func (r NotificationRecord) IsHabitReminder() bool {
	return r.Content.Data.Type == NotifTypeHabitReminder
}

type ChannelImportance string

const (
	ImportanceDefault ChannelImportance = "default"
	ImportanceHigh    ChannelImportance = "high"
)

// Channel is an Android-style notification channel.
type Channel struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Importance       ChannelImportance `json:"importance"`
	VibrationPattern []int             `json:"vibration_pattern"`
	Sound            string            `json:"sound"`
	CreatedAt        time.Time         `json:"created_at"`
}
