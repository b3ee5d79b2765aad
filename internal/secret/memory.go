package secret

import (
	"context"
	"sync"
)

// Memory is an in-process Store for tests and dry runs.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: map[string]entry{}}
}

func (m *Memory) Get(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[Key(name)].Secret, nil
}

func (m *Memory) Save(_ context.Context, name, username, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[Key(name)] = entry{Username: username, Secret: secret}
	return nil
}

func (m *Memory) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, Key(name))
	return nil
}

// Username returns the username saved alongside name's secret.
func (m *Memory) Username(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[Key(name)].Username
}
