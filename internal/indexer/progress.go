package indexer

import (
	"sync"

	"github.com/cortexkb/cortex/internal/events"
)

// Tracker is the shared indexing counter. Every mutation emits an
// indexing:progress event while the lock is held, so counter and event
// stream never diverge.
type Tracker struct {
	mu          sync.Mutex
	completed   int
	totalQueued int
	currentFile *string
	bus         *events.Bus
}

// NewTracker creates an idle tracker emitting on bus.
func NewTracker(bus *events.Bus) *Tracker {
	return &Tracker{bus: bus}
}

func (t *Tracker) isIdleLocked() bool {
	return t.completed >= t.totalQueued
}

func (t *Tracker) snapshotLocked() events.IndexingProgressPayload {
	return events.IndexingProgressPayload{
		Completed:   t.completed,
		Total:       t.totalQueued,
		CurrentFile: t.currentFile,
		IsIdle:      t.isIdleLocked(),
	}
}

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() events.IndexingProgressPayload {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Enqueue records a file entering the pipeline.
func (t *Tracker) Enqueue(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalQueued++
	t.currentFile = &path
	t.bus.Emit(events.IndexingProgress, t.snapshotLocked())
}

// Finish records a file leaving the pipeline (success or failure) and
// returns the updated counters.
func (t *Tracker) Finish() (completed, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
	if t.isIdleLocked() {
		t.currentFile = nil
	}
	t.bus.Emit(events.IndexingProgress, t.snapshotLocked())
	return t.completed, t.totalQueued
}
