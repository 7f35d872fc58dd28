// Package devcode keeps the latest verification code per account in memory, used only
// when DEV_CODE_MODE is enabled (GET /dev/verification-code/{id}).
package devcode

import (
	"context"
	"sync"
)

// Store holds the plain verification code by account id for dev-only retrieval. Not used in production.
type Store interface {
	// Put records code for accountID, replacing any previous value.
	Put(ctx context.Context, accountID, code string)
	// Get returns the code for accountID. ok is false if none was recorded.
	Get(ctx context.Context, accountID string) (code string, ok bool)
}

// MemoryStore is an in-memory Store implementation. Codes never expire, matching
// the account table, and are lost on restart.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemoryStore returns a new in-memory dev code store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]string)}
}

func (s *MemoryStore) Put(ctx context.Context, accountID, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[accountID] = code
}

func (s *MemoryStore) Get(ctx context.Context, accountID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code, ok := s.m[accountID]
	return code, ok
}
