// Package progress holds the Progress Channel implementations: a process
// local map and a Redis-backed store shared by several API instances.
package progress

import (
	"context"
	"sync"

	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
)

// Memory is a ProgressStore owned by one process. Single writer per run,
// any number of readers.
type Memory struct {
	mu      sync.RWMutex
	entries map[runs.RunID]runs.Progress
}

func NewMemory() *Memory {
	return &Memory{entries: map[runs.RunID]runs.Progress{}}
}

func (m *Memory) Set(_ context.Context, id runs.RunID, p runs.Progress) error {
	m.mu.Lock()
	m.entries[id] = p
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, id runs.RunID) (runs.Progress, bool, error) {
	m.mu.RLock()
	p, ok := m.entries[id]
	m.mu.RUnlock()
	return p, ok, nil
}

func (m *Memory) Remove(_ context.Context, id runs.RunID) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

var _ runs.ProgressStore = (*Memory)(nil)
