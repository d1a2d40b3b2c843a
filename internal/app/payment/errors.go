package payment

import "errors"

var (
	// ErrInvalidRange: past dates, inverted range, zero nights. Rejected
	// locally, no network call is made.
	ErrInvalidRange = errors.New("payment: invalid date range")
	// ErrDateConflict: the proposed range overlaps a paid reservation.
	// Selection state is preserved so the guest can adjust.
	ErrDateConflict = errors.New("payment: dates conflict with an existing booking")
	// ErrAlreadyPaid: the requested phase is already confirmed. Success-
	// adjacent, not a failure.
	ErrAlreadyPaid = errors.New("payment: phase already paid")
	// ErrAlreadyPaidOnChain: the rail's ledger already records this phase,
	// caught before broadcasting anything.
	ErrAlreadyPaidOnChain = errors.New("payment: already paid on chain")
	// ErrRailRejected: the guest or the rail declined. Retry the same phase.
	ErrRailRejected = errors.New("payment: rail rejected the payment")
	// ErrConfirmTimeout: confirmation is unknown, not failed; the guest
	// should check back later.
	ErrConfirmTimeout = errors.New("payment: confirmation timed out")
	// ErrPartialSuccess: deposit confirmed but the balance leg of a
	// full-payment attempt failed; the balance stays payable later.
	ErrPartialSuccess = errors.New("payment: deposit confirmed, balance payment failed")
	// ErrCooldown: rail-initiating actions are rate limited per session.
	ErrCooldown = errors.New("payment: too soon since the last transaction")
	// ErrUnknownRail: no adapter registered for the chosen rail.
	ErrUnknownRail = errors.New("payment: unknown rail")
	// ErrCancelled: the booking was cancelled while confirmation was in
	// flight; the late resolution is dropped.
	ErrCancelled = errors.New("payment: booking cancelled")
)
