package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"stayvibe/internal/app/session"
	"stayvibe/internal/domain/availability"
	"stayvibe/internal/domain/booking"
	"stayvibe/internal/domain/pricing"
	"stayvibe/internal/domain/shared/datekey"
	"stayvibe/internal/domain/shared/daterange"
)

// validateRange rejects locally before any network call: inverted or empty
// ranges, and check-ins earlier than tomorrow (the minimum-notice rule).
func (o *Orchestrator) validateRange(dr daterange.DateRange, now time.Time) error {
	if err := dr.Validate(); err != nil {
		return errors.Join(ErrInvalidRange, err)
	}
	earliest := datekey.FromTime(now).Next()
	if dr.CheckIn.Before(earliest) {
		return ErrInvalidRange
	}
	return nil
}

// loadOrCreate fetches the draft for a reused booking id or mints a fresh
// record. A reused id keeps its original creation time; the quote is always
// recomputed wholesale.
func (o *Orchestrator) loadOrCreate(ctx context.Context, in SubmitInput, quote pricing.Quote, now time.Time) (*booking.Record, error) {
	rec, err := o.bookings.Status(ctx, in.BookingID)
	if err == nil {
		rec.Quote = quote
		rec.Rail = in.Rail
		if in.GuestPhone != "" {
			rec.GuestPhone = in.GuestPhone
		}
		return rec, nil
	}
	if !errors.Is(err, booking.ErrNotFound) {
		return nil, err
	}
	return booking.New(booking.CreateParams{
		ID:         in.BookingID,
		UnitID:     in.UnitID,
		GuestID:    in.GuestID,
		GuestPhone: in.GuestPhone,
		Range:      in.Range,
		Quote:      quote,
		Rail:       in.Rail,
		CreatedAt:  now,
	})
}

// save persists the record and drains its pending events to the publisher.
// Publishing is best effort; a broker outage must not lose a payment.
func (o *Orchestrator) save(ctx context.Context, rec *booking.Record) error {
	if err := o.bookings.CreateOrConfirm(ctx, rec); err != nil {
		return err
	}
	for _, event := range rec.PendingEvents() {
		if err := o.pub.Publish(ctx, event); err != nil {
			o.log.Warn("event publish failed", "event", event.EventName(), "booking_id", rec.ID, "error", err)
		}
	}
	rec.ClearEvents()
	return nil
}

// checkCooldown enforces the minimum interval between a guest's
// rail-initiating actions. A UX guard against rapid double taps, keyed per
// guest so concurrent guests never throttle each other; idempotency is
// carried by the booking id, not by this.
func (o *Orchestrator) checkCooldown(guestID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	last, ok := o.lastInitiate[guestID]
	if ok && o.clock().Sub(last) < o.cfg.Cooldown {
		return ErrCooldown
	}
	return nil
}

func (o *Orchestrator) markInitiate(guestID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastInitiate[guestID] = o.clock()
}

// session resolves the caller's per-session store; without a configured
// manager a throwaway store keeps the call sites nil-free.
func (o *Orchestrator) session(key string) *session.Store {
	if o.sessions == nil {
		return session.NewStore(o.clock)
	}
	return o.sessions.For(key)
}

func (o *Orchestrator) newAccessCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// MintBookingID builds the externally visible id a draft is keyed by. A
// wallet suffix marks on-chain drafts; off-chain drafts get a fixed marker.
func MintBookingID(unitID, walletAddr string) booking.ID {
	suffix := "offchain"
	if len(walletAddr) >= 8 {
		suffix = walletAddr[2:8]
	}
	return booking.ID(fmt.Sprintf("booking_%s_%s_%s", unitID, suffix, uuid.NewString()[:8]))
}

// excludeBooking drops the draft's own reservation from a conflict check so
// a retry does not collide with itself.
func excludeBooking(reservations []availability.Reservation, id booking.ID) []availability.Reservation {
	if id == "" {
		return reservations
	}
	out := reservations[:0:0]
	for _, r := range reservations {
		if r.BookingID == string(id) {
			continue
		}
		out = append(out, r)
	}
	return out
}
