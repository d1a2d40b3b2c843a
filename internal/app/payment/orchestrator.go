package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stayvibe/internal/app/policies"
	"stayvibe/internal/app/poller"
	"stayvibe/internal/app/session"
	"stayvibe/internal/domain/availability"
	"stayvibe/internal/domain/booking"
	"stayvibe/internal/domain/pricing"
	"stayvibe/internal/domain/shared/daterange"
)

// Config carries the orchestrator's tunables. BalanceLegDelay is the wait
// between a confirmed deposit and the automatic balance leg of a FULL
// payment; it is a settlement wait against rail finality, not a
// correctness requirement, which is why it is configurable.
type Config struct {
	Cooldown        time.Duration
	BalanceLegDelay time.Duration
	Poll            poller.Options
}

// Outcome is what a submit or balance call resolved to.
type Outcome string

const (
	OutcomeDepositConfirmed Outcome = "DEPOSIT_CONFIRMED"
	OutcomeFullyPaid        Outcome = "FULLY_PAID"
	OutcomePartialDeposit   Outcome = "PARTIAL_DEPOSIT"
	OutcomeRedirect         Outcome = "REDIRECT"
	OutcomeUnknown          Outcome = "UNKNOWN"
)

type SubmitInput struct {
	BookingID   booking.ID // empty on first submit; reused on retry
	SessionID   string
	UnitID      string
	GuestID     string
	GuestPhone  string
	Range       daterange.DateRange
	PaymentType pricing.PaymentType
	Rail        booking.Rail
}

type SubmitResult struct {
	Booking     *booking.Record
	Outcome     Outcome
	RedirectURL string
}

// Orchestrator drives a booking from draft through deposit and balance
// confirmation across three structurally different rails. All collaborators
// are injected; nothing here reads ambient globals.
type Orchestrator struct {
	bookings policies.BookingService
	rails    map[booking.Rail]policies.Rail
	calc     pricing.Calculator
	pub      policies.Publisher
	sessions *session.Manager
	cfg      Config
	log      *slog.Logger
	clock    func() time.Time

	// Per-guest cooldown marks. One guest's rapid taps must never rate-limit
	// another guest's checkout.
	mu           sync.Mutex
	lastInitiate map[string]time.Time
}

func NewOrchestrator(
	bookings policies.BookingService,
	rails map[booking.Rail]policies.Rail,
	calc pricing.Calculator,
	pub policies.Publisher,
	sessions *session.Manager,
	cfg Config,
	log *slog.Logger,
	clock func() time.Time,
) *Orchestrator {
	if pub == nil {
		pub = policies.NopPublisher{}
	}
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * time.Second
	}
	return &Orchestrator{
		bookings:     bookings,
		rails:        rails,
		calc:         calc,
		pub:          pub,
		sessions:     sessions,
		cfg:          cfg,
		log:          log,
		clock:        clock,
		lastInitiate: make(map[string]time.Time),
	}
}

// Submit runs the deposit phase end to end. FULL payments continue into the
// balance leg after the configured settlement delay; if that second leg
// fails the deposit stays confirmed and ErrPartialSuccess is returned with
// the record, never a rollback.
func (o *Orchestrator) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	now := o.clock()

	if err := o.validateRange(in.Range, now); err != nil {
		return SubmitResult{}, err
	}
	rail, ok := o.rails[in.Rail]
	if !ok {
		return SubmitResult{}, ErrUnknownRail
	}

	sess := o.session(in.SessionID)

	// Idempotency: a re-submit of an already-confirmed draft is success-
	// adjacent, never a second charge.
	if in.BookingID != "" {
		existing, err := o.bookings.Status(ctx, in.BookingID)
		if err != nil && !errors.Is(err, booking.ErrNotFound) {
			return SubmitResult{}, err
		}
		if existing != nil && existing.DepositPaid {
			return SubmitResult{Booking: existing}, ErrAlreadyPaid
		}
	}

	// Server-authoritative re-check against a fresh reservation list. The
	// selection engine already checked, but that check was against state as
	// of the last refresh; this one closes the race window.
	reservations, err := o.bookings.Reservations(ctx, in.UnitID)
	if err != nil {
		return SubmitResult{}, err
	}
	if !availability.IsFree(in.Range, excludeBooking(reservations, in.BookingID)) {
		return SubmitResult{}, ErrDateConflict
	}

	if in.BookingID == "" {
		in.BookingID = MintBookingID(in.UnitID, sess.WalletAddress())
	}

	quote, err := o.calc.Quote(in.Range.Nights(), in.PaymentType)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}

	rec, err := o.loadOrCreate(ctx, in, quote, now)
	if err != nil {
		return SubmitResult{}, err
	}

	// Pre-submission ledger guard for rails with an immutable ledger: a
	// deposit already recorded there must never be paid twice.
	if ledger, ok := rail.(policies.LedgerReader); ok {
		entry, err := ledger.LedgerEntry(ctx, rec.ID)
		if err == nil && entry.Exists && entry.DepositPaid {
			return SubmitResult{Booking: rec}, ErrAlreadyPaidOnChain
		}
	}

	if err := o.checkCooldown(in.GuestID); err != nil {
		return SubmitResult{Booking: rec}, err
	}

	// Push rails resolve the prompt destination through the session.
	if in.GuestPhone != "" {
		sess.SetPhoneNumber(in.GuestPhone)
	}

	res, err := o.runPhase(ctx, sess, rec, rail, booking.PhaseDeposit, quote.AmountToPayNow)
	if err != nil || res.Outcome == OutcomeRedirect || res.Outcome == OutcomeUnknown {
		return res, err
	}

	// FULL payment: the deposit leg already moved the full amount, so the
	// balance phase settles as covered, without a second charge. The two
	// state transitions are still not atomic.
	if in.PaymentType == pricing.PayFull {
		if err := o.settleWait(ctx); err != nil {
			return SubmitResult{Booking: res.Booking, Outcome: OutcomePartialDeposit}, ErrPartialSuccess
		}
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

// PayBalance settles the balance phase for a deposit-confirmed booking. For
// a FULL payment the deposit leg moved the whole amount, so the phase
// confirms as covered; for a deposit-only booking it charges the remainder
// through the booking's rail, typically at check-in time.
func (o *Orchestrator) PayBalance(ctx context.Context, sessionID string, id booking.ID) (SubmitResult, error) {
	rec, err := o.bookings.Status(ctx, id)
	if err != nil {
		return SubmitResult{}, err
	}
	if rec.BalancePaid {
		return SubmitResult{Booking: rec}, ErrAlreadyPaid
	}

	// Covered leg: no money moves, so neither the cooldown nor the rail is
	// consulted.
	if rec.Quote.PaymentType == pricing.PayFull && rec.DepositPaid {
		return o.confirmPhase(ctx, rec, booking.PhaseBalance)
	}

	if !rec.Quote.BalanceAmount.IsPositive() {
		return SubmitResult{Booking: rec}, ErrAlreadyPaid
	}
	rail, ok := o.rails[rec.Rail]
	if !ok {
		return SubmitResult{}, ErrUnknownRail
	}

	if ledger, ok := rail.(policies.LedgerReader); ok {
		entry, err := ledger.LedgerEntry(ctx, rec.ID)
		if err == nil && entry.Exists && entry.BalancePaid {
			return SubmitResult{Booking: rec}, ErrAlreadyPaidOnChain
		}
	}

	if err := o.checkCooldown(rec.GuestID); err != nil {
		return SubmitResult{Booking: rec}, err
	}

	return o.runPhase(ctx, o.session(sessionID), rec, rail, booking.PhaseBalance, rec.Quote.BalanceAmount)
}

// Status loads the current record for the status screens.
func (o *Orchestrator) Status(ctx context.Context, id booking.ID) (*booking.Record, error) {
	return o.bookings.Status(ctx, id)
}

// Cancel abandons a booking in any non-terminal state. Refund policy is the
// booking service's problem.
func (o *Orchestrator) Cancel(ctx context.Context, id booking.ID, reason string) error {
	rec, err := o.bookings.Status(ctx, id)
	if err != nil {
		return err
	}
	if rec.State == booking.StateFullyPaid {
		return booking.ErrInvalidState
	}
	return o.bookings.Cancel(ctx, id, reason)
}
