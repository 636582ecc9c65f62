package model

import "time"

type PushSubscription struct {
	ID         int64     `json:"id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Delivery records one firing of a queued notification.
type Delivery struct {
	ID             int64     `json:"id"`
	NotificationID string    `json:"notification_id"`
	HabitID        int64     `json:"habit_id"`
	Delivered      int       `json:"delivered"`
	Failed         int       `json:"failed"`
	FiredAt        time.Time `json:"fired_at"`
}
