package auth

import (
	"sync"
	"time"
)

// Revocations remembers logged-out session ids until their tokens expire.
type Revocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewRevocations() *Revocations {
	return &Revocations{revoked: map[string]time.Time{}}
}

func (r *Revocations) Revoke(id string, expires time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[id] = expires
}

func (r *Revocations) Revoked(id string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, expires := range r.revoked {
		if now.After(expires) {
			delete(r.revoked, key)
		}
	}
	_, ok := r.revoked[id]
	return ok
}
