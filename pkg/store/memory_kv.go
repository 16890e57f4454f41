package store

import (
	"context"
	"sync"
)

// MemoryKV keeps keys in memory behind a mutex and fans change events out
// to local subscribers. Single instance only; the default for tests and
// standalone runs.
type MemoryKV struct {
	mu     sync.Mutex
	data   map[string]string
	subs   map[int]chan Event
	nextID int
}

// NewMemoryKV constructs an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		data: make(map[string]string),
		subs: make(map[int]chan Event),
	}
}

// Get returns the value under key and whether it exists.
func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	value, ok := m.data[key]
	m.mu.Unlock()
	return value, ok, nil
}

// Set stores value under key and notifies subscribers.
func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.publishLocked(Event{Key: key, Value: value})
	m.mu.Unlock()
	return nil
}

// Remove deletes key and notifies subscribers.
func (m *MemoryKV) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	if _, ok := m.data[key]; ok {
		delete(m.data, key)
		m.publishLocked(Event{Key: key, Removed: true})
	}
	m.mu.Unlock()
	return nil
}

// Subscribe registers a change listener until cancel is called.
func (m *MemoryKV) Subscribe(_ context.Context) (<-chan Event, func(), error) {
	ch := make(chan Event, 64)
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
		m.mu.Unlock()
	}
	return ch, cancel, nil
}

// publishLocked delivers ev to every subscriber without blocking; a slow
// subscriber misses the event and catches up on the next poll tick.
func (m *MemoryKV) publishLocked(ev Event) {
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
