package store

import "sync"

// MemoryKV is an in-process KeyValue, used where nothing needs to survive a
// restart.
type MemoryKV struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Lookup(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Update(key string, fn func(value string, ok bool) (string, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.values[key]
	next, err := fn(current, ok)
	if err != nil {
		return err
	}
	m.values[key] = next
	return nil
}
