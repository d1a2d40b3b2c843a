package daterange

import (
	"errors"

	"stayvibe/internal/domain/shared/datekey"
)

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
)

// DateRange represents a half-open interval [CheckIn, CheckOut) of calendar
// days. CheckOut is the checkout day: the guest does not occupy that night.
type DateRange struct {
	CheckIn  datekey.Key
	CheckOut datekey.Key
}

func New(checkIn, checkOut datekey.Key) (DateRange, error) {
	dr := DateRange{CheckIn: checkIn, CheckOut: checkOut}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// FromLastNight builds the range from the inclusive anchor pair used by the
// selection engine; the exclusive checkout is always derived, never stored.
func FromLastNight(checkIn, lastNight datekey.Key) (DateRange, error) {
	return New(checkIn, lastNight.Next())
}

func (dr DateRange) Validate() error {
	if dr.CheckIn.IsZero() || dr.CheckOut.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

func (dr DateRange) Nights() int {
	return dr.CheckIn.DaysUntil(dr.CheckOut)
}

// LastNight is the final occupied night, one day before checkout.
func (dr DateRange) LastNight() datekey.Key {
	return dr.CheckOut.Prev()
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) ContainsDay(k datekey.Key) bool {
	return !k.Before(dr.CheckIn) && k.Before(dr.CheckOut)
}

// EachNight visits every occupied night, checkout day excluded.
func (dr DateRange) EachNight(fn func(datekey.Key) bool) {
	dr.CheckIn.EachUntil(dr.CheckOut, fn)
}
