package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryTokenStore keeps records in process. It backs tests and the
// "memory" store kind.
type MemoryTokenStore struct {
	mu      sync.RWMutex
	records map[string]TokenRecord
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{records: map[string]TokenRecord{}}
}

func (s *MemoryTokenStore) Get(_ context.Context, key string) (TokenRecord, bool, error) {
	if s == nil {
		return TokenRecord{}, false, fmt.Errorf("core: memory token store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[strings.TrimSpace(key)]
	if !ok {
		return TokenRecord{}, false, nil
	}
	return record.Clone(), true, nil
}

func (s *MemoryTokenStore) Put(_ context.Context, key string, record TokenRecord) error {
	if s == nil {
		return fmt.Errorf("core: memory token store is nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("core: token key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = record.Clone()
	return nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("core: memory token store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, strings.TrimSpace(key))
	return nil
}

var _ TokenStore = (*MemoryTokenStore)(nil)
