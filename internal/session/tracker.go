// Package session tracks which results have already been shown to a client
// so repeated tool calls can emit one-line stubs instead of full content.
package session

import "sync"

// Tracker holds a seen set per session id. The zero value is not usable;
// construct with NewTracker.
type Tracker struct {
	mu   sync.Mutex
	seen map[string]map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]map[string]struct{})}
}

// HasSeen reports whether id was shown in session. Unknown sessions are empty.
func (t *Tracker) HasSeen(session, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[session][id]
	return ok
}

// MarkSeen records ids as shown in session.
func (t *Tracker) MarkSeen(session string, ids ...string) {
	if len(ids) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.seen[session]
	if !ok {
		set = make(map[string]struct{}, len(ids))
		t.seen[session] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

// Partition splits ids into those to render in full and those to stub,
// without marking anything. With dedup disabled everything is shown.
// Input order is preserved in both results.
func (t *Tracker) Partition(session string, ids []string, dedup bool) (shown, stubbed []string) {
	if !dedup {
		return append([]string(nil), ids...), nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.seen[session]
	for _, id := range ids {
		if _, ok := set[id]; ok {
			stubbed = append(stubbed, id)
		} else {
			shown = append(shown, id)
		}
	}
	return shown, stubbed
}

// Filter is Partition followed by marking every id seen.
//
// Handlers that can still fail after partitioning should call Partition and
// MarkSeen separately, so a failed call leaves the seen set untouched.
func (t *Tracker) Filter(session string, ids []string, dedup bool) (shown, stubbed []string) {
	shown, stubbed = t.Partition(session, ids, dedup)
	t.MarkSeen(session, ids...)
	return shown, stubbed
}

// Len returns the number of ids seen in session.
func (t *Tracker) Len(session string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen[session])
}

// Reset forgets every session.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen = make(map[string]map[string]struct{})
}

// Stub is the one-line placeholder for an already shown item.
func Stub(id string) string {
	return id + ": already shown"
}

// Scope derives a per-tool key so search and browse ids never collide.
func Scope(session, tool string) string {
	return session + "#" + tool
}
