package credential

import (
	"context"
	"sync"
)

// MemoryStore keeps the credential slots in process memory. The session
// ends with the process.
type MemoryStore struct {
	mu   sync.RWMutex
	pair Pair
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Access returns the stored access token, or "" if absent.
func (s *MemoryStore) Access(_ context.Context) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.Access
}

// Refresh returns the stored refresh token, or "" if absent.
func (s *MemoryStore) Refresh(_ context.Context) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.Refresh
}

// Identity returns the stored identity hint, or "" if absent.
func (s *MemoryStore) Identity(_ context.Context) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.Identity
}

// Set applies the non-empty fields of p.
func (s *MemoryStore) Set(_ context.Context, p Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = s.pair.Merge(p)
	return nil
}

// Clear removes all slots.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = Pair{}
	return nil
}

var _ Store = (*MemoryStore)(nil)
