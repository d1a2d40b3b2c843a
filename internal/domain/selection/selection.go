package selection

import (
	"errors"

	"stayvibe/internal/domain/availability"
	"stayvibe/internal/domain/shared/datekey"
	"stayvibe/internal/domain/shared/daterange"
)

var (
	ErrPastDate     = errors.New("selection: date is in the past")
	ErrOccupied     = errors.New("selection: date is occupied")
	ErrRangeBlocked = errors.New("selection: range includes occupied nights")
	ErrNoSelection  = errors.New("selection: nothing selected")
)

type Phase string

const (
	PhaseIdle     Phase = "IDLE"
	PhaseAnchored Phase = "ANCHORED"
)

// Engine is the gesture state machine behind one calendar widget. It owns
// the inclusive anchor pair {checkIn, lastNight}; the exclusive checkout is
// always derived so the two can never drift apart.
//
// An Engine is bound to one widget instance and is not safe for concurrent
// use; "last gesture wins" is the only ordering rule.
type Engine struct {
	checkIn   datekey.Key
	lastNight datekey.Key
	phase     Phase

	today  datekey.Key
	nights availability.NightSet
}

// New creates an idle engine judging "past" against today and occupancy
// against the given night set.
func New(today datekey.Key, nights availability.NightSet) *Engine {
	return &Engine{phase: PhaseIdle, today: today, nights: nights}
}

// Refresh swaps in a newly built night set after a reservation re-fetch.
// If the committed selection no longer validates against the new set it is
// cleared rather than left pointing at someone else's nights.
func (e *Engine) Refresh(nights availability.NightSet) {
	e.nights = nights
	if e.phase == PhaseAnchored {
		if dr, err := e.Range(); err != nil || !e.nights.RangeFree(dr) {
			e.Clear()
		}
	}
}

func (e *Engine) Phase() Phase { return e.phase }

// Range returns the committed half-open range, or ErrNoSelection while idle.
func (e *Engine) Range() (daterange.DateRange, error) {
	if e.phase != PhaseAnchored {
		return daterange.DateRange{}, ErrNoSelection
	}
	return daterange.FromLastNight(e.checkIn, e.lastNight)
}

func (e *Engine) CheckIn() datekey.Key   { return e.checkIn }
func (e *Engine) LastNight() datekey.Key { return e.lastNight }

// Clear resets to idle; the explicit cancel gesture.
func (e *Engine) Clear() {
	e.checkIn = datekey.Key{}
	e.lastNight = datekey.Key{}
	e.phase = PhaseIdle
}

// Activate handles a tap or click on day d. State is mutated only when the
// gesture validates; a rejected gesture leaves the selection untouched so
// the guest can adjust instead of starting over.
func (e *Engine) Activate(d datekey.Key) error {
	if d.Before(e.today) {
		return ErrPastDate
	}
	if e.nights.Occupied(d) {
		return ErrOccupied
	}

	if e.phase == PhaseIdle {
		// A single gesture yields a one-night stay.
		e.checkIn = d
		e.lastNight = d
		e.phase = PhaseAnchored
		return nil
	}

	switch {
	case d == e.checkIn:
		e.Clear()
	case d.Before(e.checkIn):
		// Re-anchor earlier, discarding the previous range.
		e.checkIn = d
		e.lastNight = d
	default:
		// Extend or shrink: every night checkIn..d inclusive must be free.
		candidate, err := daterange.FromLastNight(e.checkIn, d)
		if err != nil {
			return err
		}
		if !e.nights.RangeFree(candidate) {
			return ErrRangeBlocked
		}
		e.lastNight = d
	}
	return nil
}

// Preview returns the band of days (lastNight, hover] that hovering over
// hover would add, or ok=false when no preview applies. It never mutates
// committed state; pointer-capable widgets render it and drop it when the
// pointer leaves the grid.
func (e *Engine) Preview(hover datekey.Key) (from, to datekey.Key, ok bool) {
	if e.phase != PhaseAnchored {
		return datekey.Key{}, datekey.Key{}, false
	}
	if !hover.After(e.lastNight) {
		return datekey.Key{}, datekey.Key{}, false
	}
	candidate, err := daterange.FromLastNight(e.checkIn, hover)
	if err != nil || !e.nights.RangeFree(candidate) {
		return datekey.Key{}, datekey.Key{}, false
	}
	return e.lastNight.Next(), hover, true
}

// SetManual is the text-entry fallback. It runs the same free-range
// validation as Activate and auto-advances a checkout that is not after
// check-in to checkIn+1.
func (e *Engine) SetManual(checkIn, checkoutExclusive datekey.Key) error {
	if checkIn.Before(e.today) {
		return ErrPastDate
	}
	if !checkoutExclusive.After(checkIn) {
		checkoutExclusive = checkIn.Next()
	}
	candidate, err := daterange.New(checkIn, checkoutExclusive)
	if err != nil {
		return err
	}
	if !e.nights.RangeFree(candidate) {
		return ErrRangeBlocked
	}
	e.checkIn = checkIn
	e.lastNight = candidate.LastNight()
	e.phase = PhaseAnchored
	return nil
}
