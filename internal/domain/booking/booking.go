package booking

import (
	"errors"
	"time"

	"stayvibe/internal/domain/availability"
	"stayvibe/internal/domain/pricing"
	"stayvibe/internal/domain/shared/daterange"
	"stayvibe/internal/domain/shared/events"
)

var (
	ErrInvalidState = errors.New("booking: invalid state transition")
	ErrNotFound     = errors.New("booking: not found")
	ErrAlreadyPaid  = errors.New("booking: phase already paid")
	ErrGuestMissing = errors.New("booking: guest id required")
)

type ID string

type State string

const (
	// StateDraft: record minted client-side, no money moved yet.
	StateDraft State = "DRAFT"
	// StateDepositInProgress: a rail accepted the deposit initiate.
	StateDepositInProgress State = "DEPOSIT_IN_PROGRESS"
	// StateDepositConfirmed: deposit verified; balance payable later.
	StateDepositConfirmed State = "DEPOSIT_CONFIRMED"
	// StateBalanceInProgress: a rail accepted the balance initiate.
	StateBalanceInProgress State = "BALANCE_IN_PROGRESS"
	StateFullyPaid         State = "FULLY_PAID"
	StateCancelled         State = "CANCELLED"
)

type Rail string

const (
	RailPush    Rail = "PUSH"
	RailHosted  Rail = "HOSTED"
	RailOnChain Rail = "ONCHAIN"
)

func (r Rail) Valid() bool {
	return r == RailPush || r == RailHosted || r == RailOnChain
}

type Phase string

const (
	PhaseDeposit Phase = "DEPOSIT"
	PhaseBalance Phase = "BALANCE"
)

// RailRefs holds whichever rail-specific references the booking collected.
// A booking that paid its deposit by push and its balance on-chain carries
// both kinds.
type RailRefs struct {
	DepositTxHash string
	BalanceTxHash string
	PushRef       string
	CheckoutRef   string
}

// Record is the authoritative booking aggregate. The ID is minted on the
// client before any payment is attempted so repeated submits of the same
// draft are idempotent from the server's point of view.
type Record struct {
	ID          ID
	UnitID      string
	GuestID     string
	GuestPhone  string
	Range       daterange.DateRange
	Quote       pricing.Quote
	Rail        Rail
	Refs        RailRefs
	State       State
	DepositPaid bool
	BalancePaid bool
	AccessCode  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int64
	events.Recorder
}

type CreateParams struct {
	ID         ID
	UnitID     string
	GuestID    string
	GuestPhone string
	Range      daterange.DateRange
	Quote      pricing.Quote
	Rail       Rail
	CreatedAt  time.Time
}

func New(params CreateParams) (*Record, error) {
	if params.GuestID == "" {
		return nil, ErrGuestMissing
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if !params.Rail.Valid() {
		return nil, errors.New("booking: unknown rail")
	}
	now := params.CreatedAt.UTC()
	r := &Record{
		ID:         params.ID,
		UnitID:     params.UnitID,
		GuestID:    params.GuestID,
		GuestPhone: params.GuestPhone,
		Range:      params.Range,
		Quote:      params.Quote,
		Rail:       params.Rail,
		State:      StateDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.Record(Requested{
		Base: events.Base{Name: "booking.requested", Aggregate: string(r.ID), Time: now},
		Unit: r.UnitID, Range: r.Range, Amount: r.Quote.AmountToPayNow,
	})
	return r, nil
}

func (r *Record) IsTerminal() bool {
	return r.State == StateFullyPaid || r.State == StateCancelled
}

// BeginPhase moves the booking into the in-progress state for the phase a
// rail just accepted.
func (r *Record) BeginPhase(phase Phase, now time.Time) error {
	switch phase {
	case PhaseDeposit:
		if r.State != StateDraft {
			return ErrInvalidState
		}
		r.State = StateDepositInProgress
	case PhaseBalance:
		if r.State != StateDepositConfirmed {
			return ErrInvalidState
		}
		if r.BalancePaid {
			return ErrAlreadyPaid
		}
		r.State = StateBalanceInProgress
	default:
		return ErrInvalidState
	}
	r.touch(now)
	return nil
}

// FailPhase returns an in-progress phase to its predecessor. Failure is not
// terminal: the guest may retry the same phase, and a confirmed phase is
// never un-confirmed.
func (r *Record) FailPhase(now time.Time) error {
	switch r.State {
	case StateDepositInProgress:
		r.State = StateDraft
	case StateBalanceInProgress:
		r.State = StateDepositConfirmed
	default:
		return ErrInvalidState
	}
	r.touch(now)
	return nil
}

// ConfirmDeposit marks the deposit leg externally verified.
func (r *Record) ConfirmDeposit(accessCode string, now time.Time) error {
	if r.DepositPaid {
		return ErrAlreadyPaid
	}
	if r.State != StateDepositInProgress && r.State != StateDraft {
		return ErrInvalidState
	}
	r.DepositPaid = true
	r.AccessCode = accessCode
	r.State = StateDepositConfirmed
	r.touch(now)
	r.Record(DepositConfirmed{
		Base:   events.Base{Name: "booking.deposit_confirmed", Aggregate: string(r.ID), Time: r.UpdatedAt},
		Amount: r.Quote.DepositAmount, Rail: r.Rail,
	})
	return nil
}

// ConfirmBalance marks the balance leg externally verified.
func (r *Record) ConfirmBalance(now time.Time) error {
	if r.BalancePaid {
		return ErrAlreadyPaid
	}
	if r.State != StateBalanceInProgress && r.State != StateDepositConfirmed {
		return ErrInvalidState
	}
	r.BalancePaid = true
	r.State = StateFullyPaid
	r.touch(now)
	r.Record(FullyPaid{
		Base:   events.Base{Name: "booking.fully_paid", Aggregate: string(r.ID), Time: r.UpdatedAt},
		Amount: r.Quote.FullAmount, Rail: r.Rail,
	})
	return nil
}

// Cancel is permitted from any non-terminal state. Refund policy belongs to
// the booking service, not here.
func (r *Record) Cancel(reason string, now time.Time) error {
	if r.IsTerminal() {
		return ErrInvalidState
	}
	r.State = StateCancelled
	r.touch(now)
	r.Record(Cancelled{
		Base:   events.Base{Name: "booking.cancelled", Aggregate: string(r.ID), Time: r.UpdatedAt},
		Reason: reason,
	})
	return nil
}

// Reservation projects the record into the availability read model.
func (r *Record) Reservation() availability.Reservation {
	status := availability.StatusActive
	if r.State == StateCancelled {
		status = availability.StatusCancelled
	}
	return availability.Reservation{
		BookingID:   string(r.ID),
		Range:       r.Range,
		DepositPaid: r.DepositPaid,
		BalancePaid: r.BalancePaid,
		Status:      status,
	}
}

func (r *Record) touch(now time.Time) {
	r.UpdatedAt = now.UTC()
}
