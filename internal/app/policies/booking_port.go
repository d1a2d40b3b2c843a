package policies

import (
	"context"

	"stayvibe/internal/domain/availability"
	"stayvibe/internal/domain/booking"
)

// BookingService is the authoritative booking store boundary. The payment
// orchestrator and the poller talk only to this port; Mongo and the
// in-memory store both satisfy it.
type BookingService interface {
	// Reservations returns every reservation for a unit, cancelled ones
	// included; callers filter via the availability rules.
	Reservations(ctx context.Context, unitID string) ([]availability.Reservation, error)

	// CreateOrConfirm persists the record keyed by its client-minted id.
	CreateOrConfirm(ctx context.Context, rec *booking.Record) error

	// Status loads a record or booking.ErrNotFound.
	Status(ctx context.Context, id booking.ID) (*booking.Record, error)

	// Cancel marks the booking cancelled; refund policy is applied behind
	// this boundary, not by the caller.
	Cancel(ctx context.Context, id booking.ID, reason string) error
}

// ListFilter narrows a booking listing; zero fields match everything.
type ListFilter struct {
	UnitID  string
	GuestID string
	States  []booking.State
}

// BookingLister is the read side used by the status screens. Kept separate
// from BookingService so the orchestrator never grows a dependency on it.
type BookingLister interface {
	List(ctx context.Context, filter ListFilter) ([]*booking.Record, error)
}
