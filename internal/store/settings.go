package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotFound is returned when a keyed row does not exist.
var ErrNotFound = errors.New("not found")

// KeyValue is the persisted key-value collaborator used for small JSON blobs.
type KeyValue interface {
	Lookup(key string) (string, bool, error)
	Set(key, value string) error
	// Update runs a read-modify-write of one key atomically with respect to
	// other Update calls on the same store.
	Update(key string, fn func(value string, ok bool) (string, error)) error
}

type SettingsStore struct {
	db *sql.DB
	// mu serializes Update so a deferred transaction never has to upgrade
	// its read lock against another writer.
	mu sync.Mutex
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(key string) (string, error) {
	value, ok, err := s.Lookup(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("setting %q: %w", key, ErrNotFound)
	}
	return value, nil
}

// Lookup returns the value for key and whether it exists.
func (s *SettingsStore) Lookup(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SettingsStore) GetAll() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("get all settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func (s *SettingsStore) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

func (s *SettingsStore) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete setting %q: %w", key, err)
	}
	return nil
}

// Update reads key, applies fn and writes the result inside one transaction.
// If fn returns an error nothing is written.
func (s *SettingsStore) Update(key string, fn func(value string, ok bool) (string, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin update %q: %w", key, err)
	}
	defer tx.Rollback()

	var current string
	ok := true
	err = tx.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&current)
	if err == sql.ErrNoRows {
		ok = false
	} else if err != nil {
		return fmt.Errorf("read setting %q: %w", key, err)
	}

	next, err := fn(current, ok)
	if err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, next, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("write setting %q: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit setting %q: %w", key, err)
	}
	return nil
}
