// Package presence tracks live connections per chat user in process-local
// memory. Multiple devices map to multiple connection ids under one user.
// State is intentionally lost on restart; clients re-establish it by
// reconnecting. A horizontally scaled gateway would need a shared backing
// store behind this interface.
package presence

import "sync"

// Tracker maps chat user ids to their active connection ids.
type Tracker struct {
	mu    sync.Mutex
	conns map[string]map[string]struct{}
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{conns: make(map[string]map[string]struct{})}
}

// AddConnection registers a connection and reports whether it is the user's
// first live connection (the online transition).
func (t *Tracker) AddConnection(userID, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		t.conns[userID] = set
	}
	set[connID] = struct{}{}
	return !ok
}

// RemoveConnection deregisters a connection and reports whether it was the
// user's last one (the offline transition). The entry is dropped when the
// set empties.
func (t *Tracker) RemoveConnection(userID, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.conns[userID]
	if !ok {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(t.conns, userID)
		return true
	}
	return false
}

// IsOnline reports whether the user has at least one live connection.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns[userID]) > 0
}

// ConnectionsFor returns the user's live connection ids.
func (t *Tracker) ConnectionsFor(userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.conns[userID]))
	for id := range t.conns[userID] {
		ids = append(ids, id)
	}
	return ids
}
