package availability

import (
	"stayvibe/internal/domain/shared/datekey"
	"stayvibe/internal/domain/shared/daterange"
)

// NightSet is the set of occupied nights derived from a reservation list.
// It is rebuilt wholesale whenever the list is refreshed, never mutated
// incrementally, so it can only ever be as stale as its source list.
type NightSet struct {
	occupied map[datekey.Key]struct{}
}

// BuildNightSet marks every night of each blocking reservation's half-open
// interval. The checkout day is not a night and stays available to the next
// guest (exclusive checkout model).
func BuildNightSet(reservations []Reservation) NightSet {
	occupied := make(map[datekey.Key]struct{})
	for _, r := range reservations {
		if !r.Blocks() {
			continue
		}
		r.Range.EachNight(func(night datekey.Key) bool {
			occupied[night] = struct{}{}
			return true
		})
	}
	return NightSet{occupied: occupied}
}

func (s NightSet) Occupied(day datekey.Key) bool {
	_, ok := s.occupied[day]
	return ok
}

func (s NightSet) Len() int {
	return len(s.occupied)
}

// RangeFree reports whether every night of the half-open range is free.
func (s NightSet) RangeFree(dr daterange.DateRange) bool {
	free := true
	dr.EachNight(func(night datekey.Key) bool {
		if s.Occupied(night) {
			free = false
			return false
		}
		return true
	})
	return free
}
