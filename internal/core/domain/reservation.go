package domain

import "github.com/google/uuid"

// Reservation is a transient claim on the configured CPU/RAM budget, held for
// the duration of exactly one active build. Reservations are never persisted;
// after a restart the active set is re-derived from the persistence layer.
type Reservation struct {
	ID       uuid.UUID
	Ref      string
	RAMMB    int
	CPUCores int
}

// NewReservation creates a reservation for the given build.
func NewReservation(ref string, ramMB, cpuCores int) *Reservation {
	return &Reservation{
		ID:       uuid.New(),
		Ref:      ref,
		RAMMB:    ramMB,
		CPUCores: cpuCores,
	}
}
