// Package resources tracks the CPU and RAM budget reserved by active builds.
package resources

import (
	"sync"

	"github.com/google/uuid"
	"go.trai.ch/forge/internal/core/domain"
)

// Tracker admits or refuses build reservations against a configured ceiling.
// Admission is all-or-nothing: a request exceeding either budget is refused,
// never partially granted. The tracker holds no durable state; after a
// restart the scheduler reconciles the active set from the persistence layer.
type Tracker struct {
	mu         sync.Mutex
	ramCeiling int
	cpuCeiling int
	ramUsed    int
	cpuUsed    int
	held       map[uuid.UUID]*domain.Reservation
}

// NewTracker creates a tracker with the given ceilings.
func NewTracker(ramMB, cpuCores int) *Tracker {
	return &Tracker{
		ramCeiling: ramMB,
		cpuCeiling: cpuCores,
		held:       make(map[uuid.UUID]*domain.Reservation),
	}
}

// TryReserve claims ramMB and cpuCores for the build identified by ref.
// It reports false without reserving anything when either budget would be
// exceeded.
func (t *Tracker) TryReserve(ref string, ramMB, cpuCores int) (*domain.Reservation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ramUsed+ramMB > t.ramCeiling || t.cpuUsed+cpuCores > t.cpuCeiling {
		return nil, false
	}

	res := domain.NewReservation(ref, ramMB, cpuCores)
	t.ramUsed += ramMB
	t.cpuUsed += cpuCores
	t.held[res.ID] = res
	return res, true
}

// Fits reports whether a demand could ever be admitted, ignoring current
// usage. A demand above either ceiling is permanently inadmissible.
func (t *Tracker) Fits(ramMB, cpuCores int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ramMB <= t.ramCeiling && cpuCores <= t.cpuCeiling
}

// Release returns a reservation's budget. Releasing an unknown or already
// released reservation is a no-op.
func (t *Tracker) Release(res *domain.Reservation) {
	if res == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.held[res.ID]; !ok {
		return
	}
	delete(t.held, res.ID)
	t.ramUsed -= res.RAMMB
	t.cpuUsed -= res.CPUCores
}

// Outstanding returns the currently reserved RAM and CPU totals.
func (t *Tracker) Outstanding() (ramMB, cpuCores int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ramUsed, t.cpuUsed
}

// Active returns the number of outstanding reservations.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.held)
}
