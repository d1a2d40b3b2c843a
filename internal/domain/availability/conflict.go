package availability

import (
	"errors"

	"stayvibe/internal/domain/shared/daterange"
)

var ErrDateConflict = errors.New("availability: range overlaps an existing reservation")

// IsFree reports whether the candidate range conflicts with no blocking
// reservation. A candidate starting exactly on another reservation's
// exclusive checkout day is not a conflict: back-to-back turnover is the
// point of the exclusive checkout model.
//
// The same check runs twice per booking: once optimistically inside the
// selection engine and once against a freshly fetched reservation list at
// submission time. Only the second run is trusted.
func IsFree(candidate daterange.DateRange, reservations []Reservation) bool {
	for _, r := range reservations {
		if !r.Blocks() {
			continue
		}
		if !candidate.Overlaps(r.Range) {
			continue
		}
		if candidate.CheckIn == r.Range.CheckOut {
			continue
		}
		return false
	}
	return true
}

// CheckFree is IsFree returning ErrDateConflict, for callers that propagate.
func CheckFree(candidate daterange.DateRange, reservations []Reservation) error {
	if !IsFree(candidate, reservations) {
		return ErrDateConflict
	}
	return nil
}
