package credential

import (
	"trailhead/internal/sentinel"
)

// Store persists the opaque bearer credential between runs. Implementations
// must treat an absent credential as a normal state, not an error.
type Store interface {
	// Load returns the persisted credential, or sentinel.ErrNotFound when none exists.
	Load() (string, error)

	// Save persists the credential, replacing any previous value.
	Save(token string) error

	// Clear removes the persisted credential. Clearing an absent credential is a no-op.
	Clear() error
}

// ErrNotFound is re-exported for callers that only import this package.
var ErrNotFound = sentinel.ErrNotFound
