// Package domain contains the core domain models for the build orchestrator:
// packages, versions, dependency requirements, queue entries, reservations and
// checkpoint metadata.
package domain

import "go.trai.ch/zerr"

// Status is the lifecycle state of a package version.
type Status string

const (
	// StatusPending indicates the version is registered but not yet queued.
	StatusPending Status = "pending"
	// StatusQueued indicates the version is waiting for dispatch.
	StatusQueued Status = "queued"
	// StatusActive indicates a build is currently running.
	StatusActive Status = "active"
	// StatusTesting indicates the build executor is running the test phase.
	StatusTesting Status = "testing"
	// StatusCompleted indicates the build finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the build failed or was cancelled.
	StatusFailed Status = "failed"
	// StatusBlocked indicates a direct or transitive dependency failed.
	StatusBlocked Status = "blocked"
)

// transitions encodes the allowed lifecycle edges. Completed is terminal;
// failed and blocked leave only through an explicit requeue.
var transitions = map[Status][]Status{
	StatusPending:   {StatusQueued, StatusBlocked},
	StatusQueued:    {StatusActive, StatusPending, StatusBlocked},
	StatusActive:    {StatusTesting, StatusCompleted, StatusFailed},
	StatusTesting:   {StatusCompleted, StatusFailed},
	StatusCompleted: nil,
	StatusFailed:    {StatusPending},
	StatusBlocked:   {StatusPending},
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// String returns the status as stored in the persistence layer.
func (s Status) String() string { return string(s) }

// ParseStatus converts a stored string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", zerr.With(ErrUnknownStatus, "status", raw)
	}
	return s, nil
}
