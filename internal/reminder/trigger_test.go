package reminder

import (
	"testing"
	"time"

	"github.com/dukerupert/nudge/internal/model"
)

func TestCalendarStrategyBuild(t *testing.T) {
	tr := CalendarStrategy{}.Build(7, 30, 5, wednesdayNoon)

	if tr.Kind != model.TriggerCalendar {
		t.Errorf("kind = %q, want calendar", tr.Kind)
	}
	if tr.Weekday != 5 || tr.Hour != 7 || tr.Minute != 30 {
		t.Errorf("trigger = %+v, want weekday 5 at 07:30", tr)
	}
	if !tr.Repeats {
		t.Error("calendar trigger should repeat")
	}
	if tr.DelaySeconds != 0 {
		t.Errorf("delay = %d, want 0", tr.DelaySeconds)
	}
}

func TestOneShotDelay(t *testing.T) {
	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		now     time.Time
		weekday int
		hour    int
		minute  int
		want    int64
	}{
		{
			name:    "same weekday earlier time rolls to next week",
			now:     wednesdayNoon,
			weekday: 3, hour: 8, minute: 0,
			want: 7*86400 - 4*3600,
		},
		{
			name:    "same weekday later today",
			now:     wednesdayNoon,
			weekday: 3, hour: 18, minute: 30,
			want: 6*3600 + 30*60,
		},
		{
			name:    "same weekday same minute is not now",
			now:     wednesdayNoon,
			weekday: 3, hour: 12, minute: 0,
			want: 7 * 86400,
		},
		{
			name:    "friday from monday",
			now:     monday,
			weekday: 5, hour: 9, minute: 0,
			want: 4*86400 - 3600,
		},
		{
			name:    "friday from monday later in the day",
			now:     monday,
			weekday: 5, hour: 21, minute: 15,
			want: 4*86400 + 11*3600 + 15*60,
		},
		{
			name:    "sunday from wednesday",
			now:     wednesdayNoon,
			weekday: 7, hour: 12, minute: 0,
			want: 4 * 86400,
		},
		{
			name:    "partial seconds round up",
			now:     wednesdayNoon.Add(500 * time.Millisecond),
			weekday: 3, hour: 12, minute: 1,
			want: 60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OneShotDelaySeconds(tt.now, tt.hour, tt.minute, tt.weekday)
			if got != tt.want {
				t.Errorf("delay = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOneShotStrategyBuild(t *testing.T) {
	s := OneShotStrategy{ChannelID: ReminderChannelID}
	tr := s.Build(8, 0, 3, wednesdayNoon)

	if tr.Kind != model.TriggerInterval {
		t.Errorf("kind = %q, want interval", tr.Kind)
	}
	if tr.Repeats {
		t.Error("one-shot trigger must not repeat")
	}
	if tr.DelaySeconds != 7*86400-4*3600 {
		t.Errorf("delay = %d", tr.DelaySeconds)
	}
	if tr.ChannelID != ReminderChannelID {
		t.Errorf("channel = %q", tr.ChannelID)
	}

	// Delay is recomputed from the clock it is given, never cached.
	later := s.Build(8, 0, 3, wednesdayNoon.Add(time.Hour))
	if later.DelaySeconds != tr.DelaySeconds-3600 {
		t.Errorf("later delay = %d, want %d", later.DelaySeconds, tr.DelaySeconds-3600)
	}
}

func TestStrategyFor(t *testing.T) {
	if _, ok := StrategyFor(model.PlatformIOS).(CalendarStrategy); !ok {
		t.Error("ios should use CalendarStrategy")
	}
	if _, ok := StrategyFor(model.PlatformAndroid).(OneShotStrategy); !ok {
		t.Error("android should use OneShotStrategy")
	}
	if StrategyFor(model.PlatformIOS).NeedsPostCompletionReschedule() {
		t.Error("calendar triggers recur on their own")
	}
	if !StrategyFor(model.PlatformAndroid).NeedsPostCompletionReschedule() {
		t.Error("one-shot triggers must be rescheduled after completion")
	}
}
