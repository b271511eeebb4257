package users

import "sync"

// activeCapacity bounds the recently-active list. Once full, inserting a new
// id evicts the oldest one.
const activeCapacity = 5

// ActiveTracker remembers the most recently seen user ids in insertion
// order. Marking an id that is already tracked does not refresh its
// position. Safe for concurrent use.
type ActiveTracker struct {
	mu  sync.Mutex
	ids []int64
}

// NewActiveTracker creates an empty tracker
func NewActiveTracker() *ActiveTracker {
	return &ActiveTracker{}
}

// Mark records id as active. Already-present ids are left where they are;
// when a new id pushes the list past capacity the oldest entry is dropped.
func (t *ActiveTracker) Mark(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, existing := range t.ids {
		if existing == id {
			return
		}
	}

	t.ids = append(t.ids, id)
	if len(t.ids) > activeCapacity {
		t.ids = t.ids[1:]
	}
}

// Snapshot returns a copy of the tracked ids, oldest first. Mutating the
// returned slice does not affect the tracker.
func (t *ActiveTracker) Snapshot() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]int64, len(t.ids))
	copy(out, t.ids)
	return out
}
