package availability

import (
	"stayvibe/internal/domain/shared/daterange"
)

type ReservationStatus string

const (
	StatusActive    ReservationStatus = "ACTIVE"
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusCancelled ReservationStatus = "CANCELLED"
)

// Reservation is the read model the availability engine works from. It is
// owned by the booking service; this package only derives occupancy from it.
type Reservation struct {
	BookingID   string
	Range       daterange.DateRange
	DepositPaid bool
	BalancePaid bool
	Status      ReservationStatus
}

// Blocks reports whether the reservation takes nights off the calendar.
// Only money-backed or externally confirmed reservations block; a draft
// that never paid its deposit holds nothing.
func (r Reservation) Blocks() bool {
	if r.Status == StatusCancelled {
		return false
	}
	return r.DepositPaid || r.BalancePaid || r.Status == StatusConfirmed
}
