package sink

import (
	"context"
	"fmt"
	"sync"
)

// Memory keeps blobs in memory, in write order.
type Memory struct {
	mu    sync.RWMutex
	data  map[string][]byte
	names []string

	// FailWith, when set, is returned by every Write.
	FailWith error
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Write stores a copy of blob under name.
func (s *Memory) Write(_ context.Context, blob []byte, name string) (uri string, err error) {
	defer func() { observe("memory", err) }()

	if err := validateName(name); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWith != nil {
		return "", s.FailWith
	}
	if _, ok := s.data[name]; ok {
		return "", fmt.Errorf("%w: %s", ErrExists, name)
	}

	s.data[name] = append([]byte(nil), blob...)
	s.names = append(s.names, name)
	return "memory://" + name, nil
}

// Names returns the destination names in write order.
func (s *Memory) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.names...)
}

// Get returns the blob stored under name.
func (s *Memory) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.data[name]
	return blob, ok
}

// Len returns the number of stored blobs.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}
