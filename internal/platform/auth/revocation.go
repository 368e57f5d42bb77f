package auth

import (
	"sync"
	"time"
)

// Revocations remembers logged-out token ids until the tokens would have
// expired on their own. Entries are pruned on every Revoke.
type Revocations struct {
	mu      sync.Mutex
	entries map[string]time.Time // token id -> expiry
	now     func() time.Time
}

func NewRevocations() *Revocations {
	return &Revocations{entries: make(map[string]time.Time), now: time.Now}
}

// Revoke marks the token id as unusable until expiresAt.
func (r *Revocations) Revoke(id string, expiresAt time.Time) {
	if id == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for k, exp := range r.entries {
		if now.After(exp) {
			delete(r.entries, k)
		}
	}
	r.entries[id] = expiresAt
}

func (r *Revocations) IsRevoked(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// Len returns the number of tracked revocations.
func (r *Revocations) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
