// Package reminder schedules recurring habit reminders on a notification
// platform and keeps a persisted record of what was scheduled in sync with
// what the platform actually holds.
package reminder

import (
	"context"
	"errors"

	"github.com/dukerupert/nudge/internal/model"
)

var (
	// ErrPermissionDenied means the user declined notifications.
	ErrPermissionDenied = errors.New("notification permission denied")
	// ErrPlatformUnavailable means no notification platform is present.
	ErrPlatformUnavailable = errors.New("notification platform unavailable")
	// ErrNotificationNotFound is returned by Backend.Cancel for unknown ids.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrInvalidTime means a reminder time was not a valid "HH:MM".
	ErrInvalidTime = errors.New("invalid reminder time")
)

// Backend is the notification platform bridge.
type Backend interface {
	Permissions(ctx context.Context) (model.PermissionStatus, error)
	RequestPermission(ctx context.Context) (model.PermissionStatus, error)
	CreateChannel(ctx context.Context, ch model.Channel) error
	Schedule(ctx context.Context, content model.NotificationContent, trigger model.Trigger) (string, error)
	Cancel(ctx context.Context, id string) error
	CancelAll(ctx context.Context) error
	Scheduled(ctx context.Context) ([]model.NotificationRecord, error)
}

// NullBackend stands in when no notification platform is available. Every
// call succeeds as a no-op except Schedule, and permission always reads as
// unavailable.
type NullBackend struct{}

func (NullBackend) Permissions(context.Context) (model.PermissionStatus, error) {
	return model.PermissionUnavailable, nil
}

func (NullBackend) RequestPermission(context.Context) (model.PermissionStatus, error) {
	return model.PermissionUnavailable, nil
}

func (NullBackend) CreateChannel(context.Context, model.Channel) error {
	return nil
}

func (NullBackend) Schedule(context.Context, model.NotificationContent, model.Trigger) (string, error) {
	return "", ErrPlatformUnavailable
}

func (NullBackend) Cancel(context.Context, string) error {
	return nil
}

func (NullBackend) CancelAll(context.Context) error {
	return nil
}

func (NullBackend) Scheduled(context.Context) ([]model.NotificationRecord, error) {
	return nil, nil
}
