package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
)

// ScheduleKey is the settings key holding the habit -> notification id map.
const ScheduleKey = "habit_notification_ids"

// ScheduleStore records which platform notification ids belong to which
// habit. It is the only durable ownership record; the platform queue is the
// source of truth for existence.
//
// Each call performs its own read-modify-write of the blob, so operations on
// different habits never lose each other's entries. Concurrent writes to the
// same habit race and the last writer wins.
type ScheduleStore struct {
	kv KeyValue
}

func NewScheduleStore(kv KeyValue) *ScheduleStore {
	return &ScheduleStore{kv: kv}
}

// Get returns the ids stored for habitID. ok is false when the habit has no
// entry at all, which differs from an entry with zero ids.
func (s *ScheduleStore) Get(habitID int64) (ids []string, ok bool, err error) {
	entries, err := s.All()
	if err != nil {
		return nil, false, err
	}
	ids, ok = entries[habitID]
	return ids, ok, nil
}

// Set overwrites the entry for habitID. An empty list is a valid entry.
func (s *ScheduleStore) Set(habitID int64, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	err := s.kv.Update(ScheduleKey, func(raw string, ok bool) (string, error) {
		entries := decodeSchedule(raw, ok)
		entries[habitID] = ids
		return encodeSchedule(entries)
	})
	if err != nil {
		return fmt.Errorf("set schedule for habit %d: %w", habitID, err)
	}
	return nil
}

// Delete removes the habit's key. Deleting a missing key is not an error.
func (s *ScheduleStore) Delete(habitID int64) error {
	err := s.kv.Update(ScheduleKey, func(raw string, ok bool) (string, error) {
		entries := decodeSchedule(raw, ok)
		delete(entries, habitID)
		return encodeSchedule(entries)
	})
	if err != nil {
		return fmt.Errorf("delete schedule for habit %d: %w", habitID, err)
	}
	return nil
}

// All returns every entry. A corrupt blob reads as an empty map.
func (s *ScheduleStore) All() (map[int64][]string, error) {
	raw, ok, err := s.kv.Lookup(ScheduleKey)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	return decodeSchedule(raw, ok), nil
}

// TrackedIDs flattens all entries into an id -> habit id index.
func (s *ScheduleStore) TrackedIDs() (map[string]int64, error) {
	entries, err := s.All()
	if err != nil {
		return nil, err
	}
	tracked := make(map[string]int64)
	for habitID, ids := range entries {
		for _, id := range ids {
			tracked[id] = habitID
		}
	}
	return tracked, nil
}

// HabitIDs returns the habits that have an entry, in ascending order.
func (s *ScheduleStore) HabitIDs() ([]int64, error) {
	entries, err := s.All()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func decodeSchedule(raw string, ok bool) map[int64][]string {
	entries := make(map[int64][]string)
	if !ok || raw == "" {
		return entries
	}
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		slog.Warn("schedule store corrupt, treating as empty", "key", ScheduleKey, "error", err)
		return make(map[int64][]string)
	}
	return entries
}

func encodeSchedule(entries map[int64][]string) (string, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshal schedule: %w", err)
	}
	return string(data), nil
}
