package session

import (
	"context"
	"sync"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/parsers"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/risk"
)

type memoryEntry struct {
	events   []parsers.Event
	verdicts []risk.Verdict
}

// Memory is the default in-process session store.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*memoryEntry
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*memoryEntry)}
}

func (m *Memory) PutEvents(_ context.Context, id string, events []parsers.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.entry(id)
	entry.events = append([]parsers.Event(nil), events...)
	entry.verdicts = nil // stale verdicts do not survive a new event set
	return nil
}

func (m *Memory) AppendEvents(_ context.Context, id string, events []parsers.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.entry(id)
	entry.events = append(entry.events, events...)
	entry.verdicts = nil
	return nil
}

func (m *Memory) GetEvents(_ context.Context, id string) ([]parsers.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.sessions[id]
	if !ok || entry.events == nil {
		return nil, ErrNotFound
	}
	return append([]parsers.Event(nil), entry.events...), nil
}

func (m *Memory) PutVerdicts(_ context.Context, id string, verdicts []risk.Verdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(id).verdicts = append([]risk.Verdict(nil), verdicts...)
	return nil
}

func (m *Memory) GetVerdicts(_ context.Context, id string) ([]risk.Verdict, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.sessions[id]
	if !ok || entry.verdicts == nil {
		return nil, ErrNotFound
	}
	return append([]risk.Verdict(nil), entry.verdicts...), nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) entry(id string) *memoryEntry {
	entry, ok := m.sessions[id]
	if !ok {
		entry = &memoryEntry{}
		m.sessions[id] = entry
	}
	return entry
}
