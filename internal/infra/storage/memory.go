package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
)

// Memory keeps attachments in process. Used when MinIO is disabled.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: map[string][]byte{}}
}

func (m *Memory) Put(_ context.Context, key, _ string, data []byte) error {
	if len(data) > MaxAttachmentBytes {
		return fmt.Errorf("attachment %s exceeds %d bytes", key, MaxAttachmentBytes)
	}
	cp := append([]byte(nil), data...)
	m.mu.Lock()
	m.objects[key] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Fetch(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("attachment %s not found", key)
	}
	return append([]byte(nil), data...), nil
}

var _ runs.AttachmentStore = (*Memory)(nil)
