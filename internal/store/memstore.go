package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store used by tests and by snapshot import
// dry-runs. Mutations notify subscribers synchronously.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Record
	subscribers map[string]map[int]func(map[string]Record)
	nextSub     int
}

func NewMemory() *Memory {
	return &Memory{
		collections: map[string]map[string]Record{},
		subscribers: map[string]map[int]func(map[string]Record){},
	}
}

func (m *Memory) GetAll(_ context.Context, collection string) (map[string]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneCollection(m.collections[collection]), nil
}

func (m *Memory) GetByID(_ context.Context, collection, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return append(Record(nil), rec...), nil
}

func (m *Memory) Put(_ context.Context, collection, id string, rec Record) error {
	m.mu.Lock()
	if m.collections[collection] == nil {
		m.collections[collection] = map[string]Record{}
	}
	m.collections[collection][id] = append(Record(nil), rec...)
	snapshot := cloneCollection(m.collections[collection])
	fns := m.subscriberList(collection)
	m.mu.Unlock()
	for _, fn := range fns {
		fn(snapshot)
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	if _, ok := m.collections[collection][id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.collections[collection], id)
	snapshot := cloneCollection(m.collections[collection])
	fns := m.subscriberList(collection)
	m.mu.Unlock()
	for _, fn := range fns {
		fn(snapshot)
	}
	return nil
}

func (m *Memory) Subscribe(collection string, fn func(map[string]Record)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribers[collection] == nil {
		m.subscribers[collection] = map[int]func(map[string]Record){}
	}
	id := m.nextSub
	m.nextSub++
	m.subscribers[collection][id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers[collection], id)
	}
}

// subscriberList must be called with mu held.
func (m *Memory) subscriberList(collection string) []func(map[string]Record) {
	fns := make([]func(map[string]Record), 0, len(m.subscribers[collection]))
	for _, fn := range m.subscribers[collection] {
		fns = append(fns, fn)
	}
	return fns
}

func cloneCollection(src map[string]Record) map[string]Record {
	out := make(map[string]Record, len(src))
	for id, rec := range src {
		out[id] = append(Record(nil), rec...)
	}
	return out
}
