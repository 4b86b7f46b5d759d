package presence

import "sync"

// Tracker holds the set of currently-online user ids. The set is entirely
// server-driven; absence means unknown/offline.
type Tracker struct {
	mu     sync.RWMutex
	online map[string]bool
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{online: make(map[string]bool)}
}

// Snapshot replaces the entire online set.
func (t *Tracker) Snapshot(userIDs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.online = make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		t.online[id] = true
	}
}

// MarkOnline adds a user to the online set. Idempotent.
func (t *Tracker) MarkOnline(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.online[userID] = true
}

// MarkOffline removes a user from the online set. Idempotent.
func (t *Tracker) MarkOffline(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.online, userID)
}

// IsOnline reports whether a user is currently online.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.online[userID]
}

// Online returns a copy of the online set.
func (t *Tracker) Online() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.online))
	for id := range t.online {
		out = append(out, id)
	}
	return out
}
