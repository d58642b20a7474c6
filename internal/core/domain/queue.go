package domain

import (
	"time"

	"go.trai.ch/zerr"
)

// MaxPriority is the highest accepted queue priority.
const MaxPriority = 99

// BuildQueueEntry is one scheduled build in the dispatch queue. Entries are
// created on enqueue and follow the owning version through active into
// completed or failed.
type BuildQueueEntry struct {
	Package    string    `json:"package"`
	Version    string    `json:"version"`
	Priority   int       `json:"priority"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Status     Status    `json:"status"`
}

// Ref returns the canonical "name@version" reference for the entry.
func (e *BuildQueueEntry) Ref() string {
	return Ref(e.Package, e.Version)
}

// Validate checks the entry before it is persisted.
func (e *BuildQueueEntry) Validate() error {
	if e.Package == "" || e.Version == "" {
		return zerr.New("queue entry names no package version")
	}
	if e.Priority < 0 || e.Priority > MaxPriority {
		werr := zerr.With(zerr.New("priority out of range"), "priority", e.Priority)
		return zerr.With(werr, "max", MaxPriority)
	}
	return nil
}
