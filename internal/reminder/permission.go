package reminder

import (
	"context"
	"log/slog"

	"github.com/dukerupert/nudge/internal/model"
)

// ReminderChannelID is the Android channel every habit reminder posts to.
const ReminderChannelID = "habit-reminders"

// ReminderChannel is created on Android before reminders are scheduled.
var ReminderChannel = model.Channel{
	ID:               ReminderChannelID,
	Name:             "Habit Reminders",
	Importance:       model.ImportanceHigh,
	VibrationPattern: []int{0, 250, 250, 250},
	Sound:            "default",
}

// PermissionGate asks the platform for notification authorization.
type PermissionGate struct {
	backend  Backend
	platform model.Platform
	logger   *slog.Logger
}

func NewPermissionGate(backend Backend, platform model.Platform, logger *slog.Logger) *PermissionGate {
	return &PermissionGate{backend: backend, platform: platform, logger: logger}
}

// RequestPermission returns whether reminders may be scheduled. It prompts
// only when the user has not decided yet and never returns an error: a
// missing platform or failed query reads as false.
func (g *PermissionGate) RequestPermission(ctx context.Context) bool {
	status, err := g.backend.Permissions(ctx)
	if err != nil {
		g.logger.Warn("read notification permission", "error", err)
		return false
	}
	if status == model.PermissionUnavailable {
		return false
	}

	if status == model.PermissionUndetermined {
		status, err = g.backend.RequestPermission(ctx)
		if err != nil {
			g.logger.Warn("request notification permission", "error", err)
			return false
		}
	}

	if g.platform == model.PlatformAndroid {
		if err := g.backend.CreateChannel(ctx, ReminderChannel); err != nil {
			g.logger.Warn("create notification channel", "channel", ReminderChannelID, "error", err)
		}
	}

	if status != model.PermissionGranted {
		g.logger.Info("notification permission not granted", "status", status)
		return false
	}
	return true
}
