package policies

import (
	"context"
	"errors"
	"time"

	"stayvibe/internal/domain/booking"
	"stayvibe/internal/domain/shared/money"
)

// ErrDeclined is returned (possibly wrapped) by a rail when the guest or
// the provider said no: a dismissed wallet prompt, a declined card, a
// rejected push prompt. Distinct from a network failure, which only means
// "could not confirm".
var ErrDeclined = errors.New("rail: payment declined")

// InitiateMode tags the shape a rail's initiate call resolved to.
type InitiateMode string

const (
	// ModePoll: the rail pushed a prompt to the guest; confirmation arrives
	// asynchronously and must be polled.
	ModePoll InitiateMode = "POLL"
	// ModeRedirect: the guest must be sent to a hosted page; confirmation
	// re-enters through the redirect callback.
	ModeRedirect InitiateMode = "REDIRECT"
	// ModeTx: the rail broadcast a transaction and waited out its own
	// confirmation depth; the payment is already verified.
	ModeTx InitiateMode = "TX"
)

// Initiation is the tagged result of Rail.Initiate.
type Initiation struct {
	Mode        InitiateMode
	Ref         string // rail-side reference for Confirm
	RedirectURL string // ModeRedirect only
	TxHash      string // ModeTx only
}

type ConfirmStatus string

const (
	ConfirmPaid    ConfirmStatus = "PAID"
	ConfirmPending ConfirmStatus = "PENDING"
	ConfirmFailed  ConfirmStatus = "FAILED"
)

// Charge carries everything a rail needs to move one payment: the booking
// it settles, the amount, and the paying guest's details. Guest details
// travel with the charge rather than living in adapter state, so one
// adapter instance can serve every concurrent guest.
type Charge struct {
	BookingID booking.ID
	Amount    money.Money
	Phone     string // push rails
	Wallet    string // on-chain rails
}

// Rail is one interchangeable payment channel. The orchestrator never
// branches on rail identity beyond picking the adapter for the chosen rail.
type Rail interface {
	Initiate(ctx context.Context, charge Charge) (Initiation, error)
	Confirm(ctx context.Context, ref string) (ConfirmStatus, error)
}

// LedgerEntry is the on-chain rail's immutable per-booking record, read
// before submission as the double-payment guard.
type LedgerEntry struct {
	Exists        bool
	DepositPaid   bool
	BalancePaid   bool
	DepositAmount money.Money
	BalanceAmount money.Money
	DepositAt     time.Time
	BalanceAt     time.Time
}

// LedgerReader is implemented by rails whose payments land on a queryable
// immutable ledger. Rails without one simply do not implement it.
type LedgerReader interface {
	LedgerEntry(ctx context.Context, bookingID booking.ID) (LedgerEntry, error)
}
