package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/nudge/internal/model"
)

type ChannelStore struct {
	db *sql.DB
}

func NewChannelStore(db *sql.DB) *ChannelStore {
	return &ChannelStore{db: db}
}

// Upsert creates or replaces a channel. Calling it repeatedly with the same
// config leaves a single row.
func (s *ChannelStore) Upsert(ch model.Channel) error {
	pattern, err := json.Marshal(ch.VibrationPattern)
	if err != nil {
		return fmt.Errorf("marshal vibration pattern: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO notification_channels (id, name, importance, vibration_pattern, sound)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, importance = excluded.importance,
		   vibration_pattern = excluded.vibration_pattern, sound = excluded.sound`,
		ch.ID, ch.Name, string(ch.Importance), string(pattern), ch.Sound,
	)
	if err != nil {
		return fmt.Errorf("upsert channel %q: %w", ch.ID, err)
	}
	return nil
}

// Get returns nil, nil when the channel does not exist.
func (s *ChannelStore) Get(id string) (*model.Channel, error) {
	var ch model.Channel
	var importance, pattern string
	err := s.db.QueryRow(
		`SELECT id, name, importance, vibration_pattern, sound, created_at FROM notification_channels WHERE id = ?`, id,
	).Scan(&ch.ID, &ch.Name, &importance, &pattern, &ch.Sound, &ch.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel %q: %w", id, err)
	}
	ch.Importance = model.ChannelImportance(importance)
	if err := json.Unmarshal([]byte(pattern), &ch.VibrationPattern); err != nil {
		return nil, fmt.Errorf("decode vibration pattern: %w", err)
	}
	return &ch, nil
}

func (s *ChannelStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM notification_channels`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count channels: %w", err)
	}
	return n, nil
}
