package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Store. Entries live until the process exits.
type Memory struct {
	entries sync.Map
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	val, ok := m.entries.Load(key)
	if !ok {
		return "", false, nil
	}
	cached := val.(CachedResponse)
	return cached.Response, true, nil
}

func (m *Memory) Set(_ context.Context, key, response string) error {
	m.entries.Store(key, CachedResponse{
		Response:  response,
		Timestamp: time.Now(),
	})
	return nil
}

func (m *Memory) Close() error {
	return nil
}
