package payment

import (
	"context"
	"errors"

	"stayvibe/internal/app/policies"
	"stayvibe/internal/app/session"
	"stayvibe/internal/domain/booking"
	"stayvibe/internal/domain/pricing"
)

// ResumeInput carries whatever the hosted-checkout callback URL had. Any
// field may be empty; missing pieces are recovered from the caller's
// session stash.
type ResumeInput struct {
	BookingID string
	SessionID string
	Reference string
}

// ResumeRedirect re-enters the payment machine after the hosted rail
// returned control via its callback URL. The pending booking id comes from
// the callback parameters or from the session stash written before the
// redirect; an expired stash means the guest starts over. A FULL payment
// charged the whole amount before the redirect, so a confirmed deposit
// phase continues into the covered balance settlement.
func (o *Orchestrator) ResumeRedirect(ctx context.Context, in ResumeInput) (SubmitResult, error) {
	id := in.BookingID
	if id == "" {
		pending, err := o.session(in.SessionID).TakePendingCheckout()
		if err != nil {
			if errors.Is(err, session.ErrPendingExpired) {
				return SubmitResult{}, err
			}
			return SubmitResult{}, session.ErrNoPendingCheckout
		}
		id = pending.BookingID
	}
	if id == "" {
		return SubmitResult{}, session.ErrNoPendingCheckout
	}

	rec, err := o.bookings.Status(ctx, booking.ID(id))
	if err != nil {
		return SubmitResult{}, err
	}

	phase := booking.PhaseDeposit
	if rec.State == booking.StateBalanceInProgress {
		phase = booking.PhaseBalance
	}
	if rec.DepositPaid && phase == booking.PhaseDeposit {
		return SubmitResult{Booking: rec}, ErrAlreadyPaid
	}

	rail, ok := o.rails[rec.Rail]
	if !ok {
		return SubmitResult{}, ErrUnknownRail
	}

	ref := in.Reference
	if ref == "" {
		ref = rec.Refs.CheckoutRef
	}

	// Same resolution path as a poll rail: the callback only tells us the
	// guest came back, the money movement still has to verify.
	status, err := rail.Confirm(ctx, ref)
	var res SubmitResult
	switch {
	case status == policies.ConfirmFailed:
		o.failPhase(ctx, rec)
		return SubmitResult{Booking: rec}, ErrRailRejected
	case err != nil || status == policies.ConfirmPending:
		res, err = o.awaitConfirmation(ctx, rec, rail, phase, ref)
	default:
		res, err = o.confirmPhase(ctx, rec, phase)
	}
	if err != nil {
		return res, err
	}

	if phase == booking.PhaseDeposit && rec.Quote.PaymentType == pricing.PayFull && !rec.BalancePaid {
		balRes, err := o.PayBalance(ctx, in.SessionID, rec.ID)
		if err != nil {
			o.log.Warn("balance leg failed after confirmed deposit",
				"booking_id", rec.ID, "error", err)
			return SubmitResult{Booking: balRes.Booking, Outcome: OutcomePartialDeposit},
				errors.Join(ErrPartialSuccess, err)
		}
		return balRes, nil
	}
	return res, nil
}
