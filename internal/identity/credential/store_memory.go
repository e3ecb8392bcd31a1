package credential

import (
	"sync"

	"trailhead/internal/sentinel"
)

// InMemoryStore keeps the credential in process memory. Used in tests and in
// deployments that do not want the credential to survive a restart.
type InMemoryStore struct {
	mu    sync.RWMutex
	token string
	set   bool
}

// NewInMemoryStore creates an empty in-memory credential store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Load returns the stored credential, or sentinel.ErrNotFound when none is set.
func (s *InMemoryStore) Load() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return "", sentinel.ErrNotFound
	}
	return s.token, nil
}

// Save stores the credential, replacing any previous value.
func (s *InMemoryStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.set = true
	return nil
}

// Clear removes the stored credential.
func (s *InMemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.set = false
	return nil
}

var _ Store = (*InMemoryStore)(nil)
