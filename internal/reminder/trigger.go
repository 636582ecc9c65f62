package reminder

import (
	"math"
	"time"

	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/recurrence"
)

// TriggerStrategy builds platform triggers for one weekday occurrence.
// weekday is ISO (1 = Monday ... 7 = Sunday).
type TriggerStrategy interface {
	Build(hour, minute, weekday int, now time.Time) model.Trigger
	// NeedsPostCompletionReschedule is true when fired triggers are consumed
	// and must be re-submitted to keep weekly recurrence.
	NeedsPostCompletionReschedule() bool
}

// CalendarStrategy emits repeating calendar triggers; the platform keeps
// firing them every week.
type CalendarStrategy struct{}

func (CalendarStrategy) Build(hour, minute, weekday int, _ time.Time) model.Trigger {
	return model.Trigger{
		Kind:    model.TriggerCalendar,
		Weekday: weekday,
		Hour:    hour,
		Minute:  minute,
		Repeats: true,
	}
}

func (CalendarStrategy) NeedsPostCompletionReschedule() bool { return false }

// OneShotStrategy emits single-fire delay triggers for platforms without a
// repeating calendar primitive.
type OneShotStrategy struct {
	ChannelID string
}

func (s OneShotStrategy) Build(hour, minute, weekday int, now time.Time) model.Trigger {
	return model.Trigger{
		Kind:         model.TriggerInterval,
		Weekday:      weekday,
		Hour:         hour,
		Minute:       minute,
		DelaySeconds: OneShotDelaySeconds(now, hour, minute, weekday),
		Repeats:      false,
		ChannelID:    s.ChannelID,
	}
}

func (OneShotStrategy) NeedsPostCompletionReschedule() bool { return true }

// OneShotDelaySeconds returns the whole seconds from now until the next
// weekday/hour/minute strictly in the future. A target equal to or earlier
// than now on the same weekday rolls to next week. Partial seconds round up
// so the trigger never fires ahead of the target.
func OneShotDelaySeconds(now time.Time, hour, minute, weekday int) int64 {
	next := recurrence.NextOccurrence(now, weekday, hour, minute)
	return int64(math.Ceil(next.Sub(now).Seconds()))
}

// StrategyFor picks the trigger strategy for a platform family.
func StrategyFor(p model.Platform) TriggerStrategy {
	if p == model.PlatformAndroid {
		return OneShotStrategy{ChannelID: ReminderChannelID}
	}
	return CalendarStrategy{}
}
