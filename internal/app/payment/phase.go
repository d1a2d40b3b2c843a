package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stayvibe/internal/app/policies"
	"stayvibe/internal/app/poller"
	"stayvibe/internal/app/session"
	"stayvibe/internal/domain/booking"
	"stayvibe/internal/domain/shared/money"
)

// runPhase dispatches one payment leg to the rail and resolves it according
// to the shape the rail returned. It never branches on rail identity.
func (o *Orchestrator) runPhase(
	ctx context.Context,
	sess *session.Store,
	rec *booking.Record,
	rail policies.Rail,
	phase booking.Phase,
	amount money.Money,
) (SubmitResult, error) {
	now := o.clock()

	if err := rec.BeginPhase(phase, now); err != nil {
		if errors.Is(err, booking.ErrAlreadyPaid) {
			return SubmitResult{Booking: rec}, ErrAlreadyPaid
		}
		return SubmitResult{Booking: rec}, err
	}
	if err := o.save(ctx, rec); err != nil {
		return SubmitResult{}, err
	}

	init, err := rail.Initiate(ctx, policies.Charge{
		BookingID: rec.ID,
		Amount:    amount,
		Phone:     rec.GuestPhone,
		Wallet:    sess.WalletAddress(),
	})
	if err != nil {
		o.failPhase(ctx, rec)
		return SubmitResult{Booking: rec}, classifyRailError(err)
	}
	o.markInitiate(rec.GuestID)

	switch init.Mode {
	case policies.ModeRedirect:
		// Hand the guest to the hosted page; resumption happens through
		// ResumeRedirect when the callback comes back.
		rec.Refs.CheckoutRef = init.Ref
		if err := o.save(ctx, rec); err != nil {
			return SubmitResult{}, err
		}
		sess.SetPendingCheckout(string(rec.ID), rec.UnitID)
		return SubmitResult{Booking: rec, Outcome: OutcomeRedirect, RedirectURL: init.RedirectURL}, nil

	case policies.ModePoll:
		rec.Refs.PushRef = init.Ref
		if err := o.save(ctx, rec); err != nil {
			return SubmitResult{}, err
		}
		return o.awaitConfirmation(ctx, rec, rail, phase, init.Ref)

	case policies.ModeTx:
		// The rail waited out its own confirmation depth before returning,
		// so the money movement is already verified.
		if phase == booking.PhaseDeposit {
			rec.Refs.DepositTxHash = init.TxHash
		} else {
			rec.Refs.BalanceTxHash = init.TxHash
		}
		return o.confirmPhase(ctx, rec, phase)

	default:
		o.failPhase(ctx, rec)
		return SubmitResult{Booking: rec}, fmt.Errorf("payment: rail returned unknown mode %q", init.Mode)
	}
}

// awaitConfirmation polls the rail until the phase confirms, fails, or the
// poller gives up.
func (o *Orchestrator) awaitConfirmation(
	ctx context.Context,
	rec *booking.Record,
	rail policies.Rail,
	phase booking.Phase,
	ref string,
) (SubmitResult, error) {
	result, err := poller.Poll(ctx, o.cfg.Poll, func(ctx context.Context) (poller.Signal, error) {
		status, err := rail.Confirm(ctx, ref)
		if err != nil && !errors.Is(err, policies.ErrDeclined) {
			return poller.Continue, err
		}
		switch status {
		case policies.ConfirmPaid:
			return poller.Done, nil
		case policies.ConfirmFailed:
			return poller.Abort, nil
		default:
			return poller.Continue, nil
		}
	})
	if err != nil {
		// Caller abandoned; the booking stays in progress and can be
		// reconciled later.
		return SubmitResult{Booking: rec, Outcome: OutcomeUnknown}, ErrConfirmTimeout
	}

	switch result {
	case poller.Resolved:
		return o.confirmPhase(ctx, rec, phase)
	case poller.Failed:
		o.failPhase(ctx, rec)
		return SubmitResult{Booking: rec}, ErrRailRejected
	default:
		// Unknown is not failure: the push may still land. Leave the phase
		// in progress and tell the guest to check back.
		return SubmitResult{Booking: rec, Outcome: OutcomeUnknown}, ErrConfirmTimeout
	}
}

// confirmPhase applies a verified payment to the record. "First confirmed
// terminal state wins": if the booking was cancelled while confirmation was
// in flight, the late resolution is dropped.
func (o *Orchestrator) confirmPhase(ctx context.Context, rec *booking.Record, phase booking.Phase) (SubmitResult, error) {
	now := o.clock()

	fresh, err := o.bookings.Status(ctx, rec.ID)
	if err == nil && fresh.State == booking.StateCancelled {
		return SubmitResult{Booking: fresh}, ErrCancelled
	}

	var outcome Outcome
	switch phase {
	case booking.PhaseDeposit:
		if err := rec.ConfirmDeposit(o.newAccessCode(), now); err != nil {
			if errors.Is(err, booking.ErrAlreadyPaid) {
				return SubmitResult{Booking: rec}, ErrAlreadyPaid
			}
			return SubmitResult{Booking: rec}, err
		}
		outcome = OutcomeDepositConfirmed
	case booking.PhaseBalance:
		if err := rec.ConfirmBalance(now); err != nil {
			if errors.Is(err, booking.ErrAlreadyPaid) {
				return SubmitResult{Booking: rec}, ErrAlreadyPaid
			}
			return SubmitResult{Booking: rec}, err
		}
		outcome = OutcomeFullyPaid
	}

	if err := o.save(ctx, rec); err != nil {
		return SubmitResult{}, err
	}
	o.log.Info("payment confirmed",
		"booking_id", rec.ID, "phase", phase, "rail", rec.Rail, "state", rec.State)
	return SubmitResult{Booking: rec, Outcome: outcome}, nil
}

// failPhase rolls an in-progress phase back to its predecessor so the guest
// can retry. Confirmed phases are never touched.
func (o *Orchestrator) failPhase(ctx context.Context, rec *booking.Record) {
	if err := rec.FailPhase(o.clock()); err != nil {
		return
	}
	if err := o.save(ctx, rec); err != nil {
		o.log.Warn("could not persist failed phase", "booking_id", rec.ID, "error", err)
	}
}

// settleWait sleeps out the configured delay between deposit confirmation
// and the automatic balance leg, honoring cancellation.
func (o *Orchestrator) settleWait(ctx context.Context) error {
	if o.cfg.BalanceLegDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(o.cfg.BalanceLegDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func classifyRailError(err error) error {
	if errors.Is(err, policies.ErrDeclined) {
		return errors.Join(ErrRailRejected, err)
	}
	return err
}
