package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/nudge/internal/model"
)

// QueueStore persists the local notification platform's scheduled records.
type QueueStore struct {
	db *sql.DB
}

func NewQueueStore(db *sql.DB) *QueueStore {
	return &QueueStore{db: db}
}

const queueColumns = `id, habit_id, type, title, body, sound, data_ts, trigger_kind, weekday, hour, minute,
	delay_seconds, repeats, channel_id, next_fire_at, created_at`

func (s *QueueStore) Insert(rec model.NotificationRecord) error {
	var repeats int
	if rec.Trigger.Repeats {
		repeats = 1
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO scheduled_notifications (`+queueColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Content.Data.HabitID, rec.Content.Data.Type, rec.Content.Title, rec.Content.Body,
		rec.Content.Sound, rec.Content.Data.Timestamp, string(rec.Trigger.Kind), rec.Trigger.Weekday,
		rec.Trigger.Hour, rec.Trigger.Minute, rec.Trigger.DelaySeconds, repeats, rec.Trigger.ChannelID,
		rec.NextFireAt.Unix(), createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert scheduled notification: %w", err)
	}
	return nil
}

// Get returns nil, nil when the record does not exist.
func (s *QueueStore) Get(id string) (*model.NotificationRecord, error) {
	rows, err := s.db.Query(`SELECT `+queueColumns+` FROM scheduled_notifications WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get scheduled notification: %w", err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// Delete removes a record and reports whether it existed.
func (s *QueueStore) Delete(id string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM scheduled_notifications WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete scheduled notification: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (s *QueueStore) DeleteAll() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM scheduled_notifications`)
	if err != nil {
		return 0, fmt.Errorf("delete all scheduled notifications: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// List returns every record ordered by next fire time.
func (s *QueueStore) List() ([]model.NotificationRecord, error) {
	rows, err := s.db.Query(`SELECT ` + queueColumns + ` FROM scheduled_notifications ORDER BY next_fire_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list scheduled notifications: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListDue returns records whose next fire time is at or before now.
func (s *QueueStore) ListDue(now time.Time) ([]model.NotificationRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+queueColumns+` FROM scheduled_notifications WHERE next_fire_at <= ? ORDER BY next_fire_at, id`,
		now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("list due notifications: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Advance moves a repeating record to its next fire time.
func (s *QueueStore) Advance(id string, next time.Time) error {
	_, err := s.db.Exec(`UPDATE scheduled_notifications SET next_fire_at = ? WHERE id = ?`, next.Unix(), id)
	if err != nil {
		return fmt.Errorf("advance scheduled notification: %w", err)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]model.NotificationRecord, error) {
	var recs []model.NotificationRecord
	for rows.Next() {
		var rec model.NotificationRecord
		var kind string
		var repeats int
		var nextFire int64
		if err := rows.Scan(
			&rec.ID, &rec.Content.Data.HabitID, &rec.Content.Data.Type, &rec.Content.Title, &rec.Content.Body,
			&rec.Content.Sound, &rec.Content.Data.Timestamp, &kind, &rec.Trigger.Weekday, &rec.Trigger.Hour,
			&rec.Trigger.Minute, &rec.Trigger.DelaySeconds, &repeats, &rec.Trigger.ChannelID, &nextFire, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan scheduled notification: %w", err)
		}
		rec.Trigger.Kind = model.TriggerKind(kind)
		rec.Trigger.Repeats = repeats != 0
		rec.NextFireAt = time.Unix(nextFire, 0).UTC()
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
