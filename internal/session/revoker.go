package session

import (
	"context"
	"sync"
	"time"
)

const revokerSweepInterval = 5 * time.Minute

// Revoker tracks session tokens invalidated before their natural expiry.
// Entries are keyed by token ID and only need to live until the token's
// expiry time.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Close()
}

type memoryRevoker struct {
	mu      sync.Mutex
	entries map[string]time.Time
	stopCh  chan struct{}
	once    sync.Once
}

// NewMemoryRevoker returns a process-local Revoker. Revocations do not
// survive a restart, which is acceptable because tokens are short-lived.
func NewMemoryRevoker() Revoker {
	r := &memoryRevoker{
		entries: make(map[string]time.Time),
		stopCh:  make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

func (r *memoryRevoker) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" || time.Now().After(expiresAt) {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[tokenID] = expiresAt
	return nil
}

func (r *memoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	expiresAt, ok := r.entries[tokenID]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiresAt) {
		delete(r.entries, tokenID)
		return false, nil
	}
	return true, nil
}

func (r *memoryRevoker) sweepLoop() {
	ticker := time.NewTicker(revokerSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.cleanup(time.Now())
		case <-r.stopCh:
			return
		}
	}
}

func (r *memoryRevoker) cleanup(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tokenID, expiresAt := range r.entries {
		if now.After(expiresAt) {
			delete(r.entries, tokenID)
		}
	}
}

func (r *memoryRevoker) Close() {
	r.once.Do(func() {
		close(r.stopCh)
	})
}
