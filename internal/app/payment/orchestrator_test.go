package payment_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayvibe/internal/app/payment"
	"stayvibe/internal/app/policies"
	"stayvibe/internal/app/poller"
	"stayvibe/internal/app/session"
	"stayvibe/internal/domain/booking"
	"stayvibe/internal/domain/pricing"
	"stayvibe/internal/domain/shared/datekey"
	"stayvibe/internal/domain/shared/daterange"
	"stayvibe/internal/domain/shared/events"
	"stayvibe/internal/domain/shared/money"
	"stayvibe/internal/infra/storage/memory"
)

// stepClock hands out strictly increasing instants so the cooldown between
// rail initiations never trips accidentally.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, time.September, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

type fakeRail struct {
	mu        sync.Mutex
	initCalls int
	charges   []policies.Charge
	initErr   error
	mode      policies.InitiateMode
	confirmFn func(ctx context.Context, ref string) (policies.ConfirmStatus, error)
}

func (f *fakeRail) Initiate(ctx context.Context, charge policies.Charge) (policies.Initiation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	f.charges = append(f.charges, charge)
	if f.initErr != nil {
		return policies.Initiation{}, f.initErr
	}
	init := policies.Initiation{Mode: f.mode, Ref: "ref-1"}
	if f.mode == policies.ModeTx {
		init.TxHash = "0xdeadbeef"
	}
	if f.mode == policies.ModeRedirect {
		init.RedirectURL = "https://checkout.example/ref-1"
	}
	return init, nil
}

func (f *fakeRail) Confirm(ctx context.Context, ref string) (policies.ConfirmStatus, error) {
	if f.confirmFn != nil {
		return f.confirmFn(ctx, ref)
	}
	return policies.ConfirmPaid, nil
}

type fakeLedgerRail struct {
	*fakeRail
	entry       policies.LedgerEntry
	ledgerCalls int
}

func (f *fakeLedgerRail) LedgerEntry(ctx context.Context, bookingID booking.ID) (policies.LedgerEntry, error) {
	f.ledgerCalls++
	return f.entry, nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	names []string
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names = append(p.names, event.EventName())
	return nil
}

type fixture struct {
	orch     *payment.Orchestrator
	store    *memory.BookingStore
	sessions *session.Manager
	pub      *recordingPublisher
	clock    *stepClock
}

func newFixture(t *testing.T, rails map[booking.Rail]policies.Rail, cfg payment.Config) fixture {
	t.Helper()
	clock := newStepClock()
	store := memory.NewBookingStore(clock.Now)
	sessions := session.NewManager(clock.Now)
	pub := &recordingPublisher{}

	calc, err := pricing.NewCalculator(money.KES(800), money.KES(500))
	require.NoError(t, err)

	if cfg.Cooldown == 0 {
		cfg.Cooldown = time.Millisecond
	}
	if cfg.Poll.Interval == 0 {
		cfg.Poll = poller.Options{Interval: time.Millisecond, MaxAttempts: 3}
	}

	orch := payment.NewOrchestrator(store, rails, calc, pub, sessions, cfg,
		slog.New(slog.DiscardHandler), clock.Now)
	return fixture{orch: orch, store: store, sessions: sessions, pub: pub, clock: clock}
}

func submitInput(rail booking.Rail, paymentType pricing.PaymentType) payment.SubmitInput {
	dr, _ := daterange.New(datekey.MustParse("2026-09-20"), datekey.MustParse("2026-09-23"))
	return payment.SubmitInput{
		SessionID:   "sess-1",
		UnitID:      "unit-1",
		GuestID:     "guest-1",
		GuestPhone:  "0712345678",
		Range:       dr,
		PaymentType: paymentType,
		Rail:        rail,
	}
}

func TestSubmit_DepositViaPollRail(t *testing.T) {
	rail := &fakeRail{mode: policies.ModePoll}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailPush: rail}, payment.Config{})

	result, err := f.orch.Submit(context.Background(), submitInput(booking.RailPush, pricing.PayDeposit))
	require.NoError(t, err)

	assert.Equal(t, payment.OutcomeDepositConfirmed, result.Outcome)
	assert.Equal(t, booking.StateDepositConfirmed, result.Booking.State)
	assert.True(t, result.Booking.DepositPaid)
	assert.False(t, result.Booking.BalancePaid)
	assert.NotEmpty(t, result.Booking.AccessCode, "confirmed deposit mints the door code")
	assert.Equal(t, "ref-1", result.Booking.Refs.PushRef)
	assert.Equal(t, int64(500), rail.charges[0].Amount.Amount, "deposit leg charges the fixed deposit")
	assert.Equal(t, "0712345678", rail.charges[0].Phone, "prompt goes to the submitting guest's phone")
	assert.Contains(t, f.pub.names, "booking.requested")
	assert.Contains(t, f.pub.names, "booking.deposit_confirmed")
}

func TestSubmit_FullPaymentChargesFullAmountOnce(t *testing.T) {
	rail := &fakeRail{mode: policies.ModeTx}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailOnChain: rail}, payment.Config{})

	result, err := f.orch.Submit(context.Background(), submitInput(booking.RailOnChain, pricing.PayFull))
	require.NoError(t, err)

	assert.Equal(t, payment.OutcomeFullyPaid, result.Outcome)
	assert.Equal(t, booking.StateFullyPaid, result.Booking.State)
	assert.True(t, result.Booking.DepositPaid)
	assert.True(t, result.Booking.BalancePaid)
	assert.Equal(t, "0xdeadbeef", result.Booking.Refs.DepositTxHash)
	assert.Empty(t, result.Booking.Refs.BalanceTxHash, "covered balance leg broadcasts nothing")

	// One charge, and it equals the stay's full price: 3 nights at 800 is
	// 2400. The balance leg settles as covered instead of charging the
	// 1900 remainder a second time.
	require.Len(t, rail.charges, 1)
	assert.Equal(t, int64(2400), rail.charges[0].Amount.Amount)
	assert.Equal(t, result.Booking.Quote.FullAmount.Amount, rail.charges[0].Amount.Amount)
	assert.Contains(t, f.pub.names, "booking.fully_paid")
}

func TestSubmit_ResubmitConfirmedDraftIsAlreadyPaid(t *testing.T) {
	rail := &fakeRail{mode: policies.ModePoll}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailPush: rail}, payment.Config{})

	first, err := f.orch.Submit(context.Background(), submitInput(booking.RailPush, pricing.PayDeposit))
	require.NoError(t, err)

	in := submitInput(booking.RailPush, pricing.PayDeposit)
	in.BookingID = first.Booking.ID
	second, err := f.orch.Submit(context.Background(), in)

	assert.ErrorIs(t, err, payment.ErrAlreadyPaid)
	assert.Equal(t, first.Booking.ID, second.Booking.ID)
	assert.Equal(t, 1, rail.initCalls, "no second charge")
}

func TestSubmit_LedgerGuardBlocksBeforeInitiate(t *testing.T) {
	rail := &fakeLedgerRail{
		fakeRail: &fakeRail{mode: policies.ModeTx},
		entry:    policies.LedgerEntry{Exists: true, DepositPaid: true},
	}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailOnChain: rail}, payment.Config{})

	_, err := f.orch.Submit(context.Background(), submitInput(booking.RailOnChain, pricing.PayDeposit))

	assert.ErrorIs(t, err, payment.ErrAlreadyPaidOnChain)
	assert.Equal(t, 1, rail.ledgerCalls)
	assert.Equal(t, 0, rail.initCalls, "guard fires before anything is broadcast")
}

func TestSubmit_DateConflictAgainstPaidReservation(t *testing.T) {
	rail := &fakeRail{mode: policies.ModePoll}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailPush: rail}, payment.Config{})

	_, err := f.orch.Submit(context.Background(), submitInput(booking.RailPush, pricing.PayDeposit))
	require.NoError(t, err)

	// Overlapping nights conflict.
	in := submitInput(booking.RailPush, pricing.PayDeposit)
	in.Range, _ = daterange.New(datekey.MustParse("2026-09-22"), datekey.MustParse("2026-09-25"))
	_, err = f.orch.Submit(context.Background(), in)
	assert.ErrorIs(t, err, payment.ErrDateConflict)

	// Back-to-back turnover on the checkout day does not.
	in = submitInput(booking.RailPush, pricing.PayDeposit)
	in.Range, _ = daterange.New(datekey.MustParse("2026-09-23"), datekey.MustParse("2026-09-25"))
	_, err = f.orch.Submit(context.Background(), in)
	assert.NoError(t, err)
}

func TestSubmit_MinimumNotice(t *testing.T) {
	rail := &fakeRail{mode: policies.ModePoll}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailPush: rail}, payment.Config{})

	// Clock sits on 2026-09-15: check-in that day is too late to book.
	in := submitInput(booking.RailPush, pricing.PayDeposit)
	in.Range, _ = daterange.New(datekey.MustParse("2026-09-15"), datekey.MustParse("2026-09-17"))
	_, err := f.orch.Submit(context.Background(), in)
	assert.ErrorIs(t, err, payment.ErrInvalidRange)

	// Tomorrow is fine.
	in.Range, _ = daterange.New(datekey.MustParse("2026-09-16"), datekey.MustParse("2026-09-17"))
	_, err = f.orch.Submit(context.Background(), in)
	assert.NoError(t, err)
}

func TestSubmit_DeclineReturnsDraft(t *testing.T) {
	rail := &fakeRail{
		mode: policies.ModePoll,
		confirmFn: func(ctx context.Context, ref string) (policies.ConfirmStatus, error) {
			return policies.ConfirmFailed, policies.ErrDeclined
		},
	}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailPush: rail}, payment.Config{})

	result, err := f.orch.Submit(context.Background(), submitInput(booking.RailPush, pricing.PayDeposit))

	assert.ErrorIs(t, err, payment.ErrRailRejected)
	assert.Equal(t, booking.StateDraft, result.Booking.State, "failed deposit returns to draft for retry")
	assert.False(t, result.Booking.DepositPaid)
}

func TestSubmit_ConfirmationTimeoutLeavesPhaseInProgress(t *testing.T) {
	rail := &fakeRail{
		mode: policies.ModePoll,
		confirmFn: func(ctx context.Context, ref string) (policies.ConfirmStatus, error) {
			return policies.ConfirmPending, nil
		},
	}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailPush: rail}, payment.Config{})

	result, err := f.orch.Submit(context.Background(), submitInput(booking.RailPush, pricing.PayDeposit))

	assert.ErrorIs(t, err, payment.ErrConfirmTimeout)
	assert.Equal(t, payment.OutcomeUnknown, result.Outcome)
	assert.Equal(t, booking.StateDepositInProgress, result.Booking.State,
		"unknown is not failure; the push may still land")
}

func TestSubmit_PartialSuccessKeepsDeposit(t *testing.T) {
	// The caller walks away between the confirmed deposit leg and the
	// balance settlement.
	ctx, cancel := context.WithCancel(context.Background())
	rail := &fakeRail{
		mode: policies.ModePoll,
		confirmFn: func(ctx context.Context, ref string) (policies.ConfirmStatus, error) {
			cancel()
			return policies.ConfirmPaid, nil
		},
	}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailPush: rail},
		payment.Config{BalanceLegDelay: 50 * time.Millisecond})

	result, err := f.orch.Submit(ctx, submitInput(booking.RailPush, pricing.PayFull))

	assert.ErrorIs(t, err, payment.ErrPartialSuccess)
	assert.Equal(t, payment.OutcomePartialDeposit, result.Outcome)

	stored, serr := f.store.Status(context.Background(), result.Booking.ID)
	require.NoError(t, serr)
	assert.Equal(t, booking.StateDepositConfirmed, stored.State, "confirmed deposit is never rolled back")
	assert.True(t, stored.DepositPaid)
	assert.False(t, stored.BalancePaid)

	// A later balance call settles the covered remainder without another
	// charge.
	recovered, err := f.orch.PayBalance(context.Background(), "sess-1", result.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeFullyPaid, recovered.Outcome)
	assert.Equal(t, 1, rail.initCalls, "covered settlement never re-charges")
}

func TestPayBalance_CompletesDepositConfirmedBooking(t *testing.T) {
	rail := &fakeRail{mode: policies.ModePoll}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailPush: rail}, payment.Config{})

	first, err := f.orch.Submit(context.Background(), submitInput(booking.RailPush, pricing.PayDeposit))
	require.NoError(t, err)

	result, err := f.orch.PayBalance(context.Background(), "sess-1", first.Booking.ID)
	require.NoError(t, err)

	assert.Equal(t, payment.OutcomeFullyPaid, result.Outcome)
	assert.Equal(t, booking.StateFullyPaid, result.Booking.State)
	assert.Equal(t, int64(1900), rail.charges[1].Amount.Amount)

	_, err = f.orch.PayBalance(context.Background(), "sess-1", first.Booking.ID)
	assert.ErrorIs(t, err, payment.ErrAlreadyPaid)
}

func TestSubmit_CooldownBetweenInitiations(t *testing.T) {
	rail := &fakeRail{mode: policies.ModePoll}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailPush: rail},
		payment.Config{Cooldown: time.Hour})

	_, err := f.orch.Submit(context.Background(), submitInput(booking.RailPush, pricing.PayDeposit))
	require.NoError(t, err)

	in := submitInput(booking.RailPush, pricing.PayDeposit)
	in.Range, _ = daterange.New(datekey.MustParse("2026-09-25"), datekey.MustParse("2026-09-27"))
	_, err = f.orch.Submit(context.Background(), in)
	assert.ErrorIs(t, err, payment.ErrCooldown)
}

func TestSubmit_CooldownIsPerGuest(t *testing.T) {
	rail := &fakeRail{mode: policies.ModePoll}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailPush: rail},
		payment.Config{Cooldown: time.Hour})

	_, err := f.orch.Submit(context.Background(), submitInput(booking.RailPush, pricing.PayDeposit))
	require.NoError(t, err)

	// A different guest books a different stay moments later; the first
	// guest's cooldown must not throttle them.
	in := submitInput(booking.RailPush, pricing.PayDeposit)
	in.SessionID = "sess-2"
	in.GuestID = "guest-2"
	in.Range, _ = daterange.New(datekey.MustParse("2026-09-25"), datekey.MustParse("2026-09-27"))
	_, err = f.orch.Submit(context.Background(), in)
	assert.NoError(t, err)
}

func TestSubmit_FullPaymentCompletesUnderProductionCooldown(t *testing.T) {
	// Wall clock and the default 10s cooldown: both legs of a FULL payment
	// run back to back, and the second must not trip the guard armed by the
	// first.
	rail := &fakeRail{mode: policies.ModeTx}
	store := memory.NewBookingStore(nil)
	calc, err := pricing.NewCalculator(money.KES(800), money.KES(500))
	require.NoError(t, err)
	orch := payment.NewOrchestrator(store,
		map[booking.Rail]policies.Rail{booking.RailOnChain: rail},
		calc, nil, session.NewManager(nil), payment.Config{},
		slog.New(slog.DiscardHandler), nil)

	checkIn := datekey.FromTime(time.Now().UTC()).AddDays(2)
	dr, err := daterange.New(checkIn, checkIn.AddDays(3))
	require.NoError(t, err)

	result, err := orch.Submit(context.Background(), payment.SubmitInput{
		SessionID:   "sess-1",
		UnitID:      "unit-1",
		GuestID:     "guest-1",
		Range:       dr,
		PaymentType: pricing.PayFull,
		Rail:        booking.RailOnChain,
	})
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeFullyPaid, result.Outcome)
	assert.True(t, result.Booking.BalancePaid)
	assert.Equal(t, 1, rail.initCalls)
}

func TestCancel_Rules(t *testing.T) {
	rail := &fakeRail{mode: policies.ModePoll}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailPush: rail}, payment.Config{})

	first, err := f.orch.Submit(context.Background(), submitInput(booking.RailPush, pricing.PayDeposit))
	require.NoError(t, err)

	// Deposit-confirmed bookings may cancel.
	require.NoError(t, f.orch.Cancel(context.Background(), first.Booking.ID, "plans changed"))
	stored, err := f.store.Status(context.Background(), first.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StateCancelled, stored.State)

	// Fully paid ones may not.
	in := submitInput(booking.RailPush, pricing.PayFull)
	in.Range, _ = daterange.New(datekey.MustParse("2026-10-01"), datekey.MustParse("2026-10-03"))
	second, err := f.orch.Submit(context.Background(), in)
	require.NoError(t, err)
	err = f.orch.Cancel(context.Background(), second.Booking.ID, "too late")
	assert.ErrorIs(t, err, booking.ErrInvalidState)
}

func TestSubmit_CancelledReservationFreesNights(t *testing.T) {
	rail := &fakeRail{mode: policies.ModePoll}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailPush: rail}, payment.Config{})

	first, err := f.orch.Submit(context.Background(), submitInput(booking.RailPush, pricing.PayDeposit))
	require.NoError(t, err)
	require.NoError(t, f.orch.Cancel(context.Background(), first.Booking.ID, "freed"))

	_, err = f.orch.Submit(context.Background(), submitInput(booking.RailPush, pricing.PayDeposit))
	assert.NoError(t, err, "cancelled reservations stop blocking the calendar")
}

func TestSubmit_RedirectStashesPendingCheckout(t *testing.T) {
	rail := &fakeRail{mode: policies.ModeRedirect}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailHosted: rail}, payment.Config{})

	result, err := f.orch.Submit(context.Background(), submitInput(booking.RailHosted, pricing.PayDeposit))
	require.NoError(t, err)

	assert.Equal(t, payment.OutcomeRedirect, result.Outcome)
	assert.Equal(t, "https://checkout.example/ref-1", result.RedirectURL)
	assert.Equal(t, booking.StateDepositInProgress, result.Booking.State)
	assert.Equal(t, "ref-1", result.Booking.Refs.CheckoutRef)

	pending, err := f.sessions.For("sess-1").TakePendingCheckout()
	require.NoError(t, err)
	assert.Equal(t, string(result.Booking.ID), pending.BookingID)
}

func TestResumeRedirect_StashIsPerSession(t *testing.T) {
	rail := &fakeRail{mode: policies.ModeRedirect}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailHosted: rail}, payment.Config{})

	_, err := f.orch.Submit(context.Background(), submitInput(booking.RailHosted, pricing.PayDeposit))
	require.NoError(t, err)

	// Another session's callback must not consume this guest's handoff.
	_, err = f.orch.ResumeRedirect(context.Background(), payment.ResumeInput{SessionID: "sess-2"})
	assert.ErrorIs(t, err, session.ErrNoPendingCheckout)

	result, err := f.orch.ResumeRedirect(context.Background(), payment.ResumeInput{SessionID: "sess-1"})
	require.NoError(t, err)
	assert.True(t, result.Booking.DepositPaid)
}

func TestResumeRedirect_ConfirmsDeposit(t *testing.T) {
	rail := &fakeRail{mode: policies.ModeRedirect}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailHosted: rail}, payment.Config{})

	submitted, err := f.orch.Submit(context.Background(), submitInput(booking.RailHosted, pricing.PayDeposit))
	require.NoError(t, err)

	// Callback carries no booking id; the session stash recovers it.
	result, err := f.orch.ResumeRedirect(context.Background(), payment.ResumeInput{SessionID: "sess-1", Reference: "ref-1"})
	require.NoError(t, err)

	assert.Equal(t, payment.OutcomeDepositConfirmed, result.Outcome)
	assert.Equal(t, submitted.Booking.ID, result.Booking.ID)
	assert.True(t, result.Booking.DepositPaid)
}

func TestResumeRedirect_FullPaymentSettlesBalance(t *testing.T) {
	rail := &fakeRail{mode: policies.ModeRedirect}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailHosted: rail}, payment.Config{})

	submitted, err := f.orch.Submit(context.Background(), submitInput(booking.RailHosted, pricing.PayFull))
	require.NoError(t, err)
	require.Equal(t, payment.OutcomeRedirect, submitted.Outcome)

	// The hosted page charged the full 2400 before redirecting, so the
	// callback must land the booking in FULLY_PAID, not leave 1900 demanded.
	result, err := f.orch.ResumeRedirect(context.Background(), payment.ResumeInput{SessionID: "sess-1", Reference: "ref-1"})
	require.NoError(t, err)

	assert.Equal(t, payment.OutcomeFullyPaid, result.Outcome)
	assert.Equal(t, booking.StateFullyPaid, result.Booking.State)
	require.Len(t, rail.charges, 1)
	assert.Equal(t, int64(2400), rail.charges[0].Amount.Amount)
}

func TestResumeRedirect_NoPendingCheckout(t *testing.T) {
	rail := &fakeRail{mode: policies.ModeRedirect}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailHosted: rail}, payment.Config{})

	_, err := f.orch.ResumeRedirect(context.Background(), payment.ResumeInput{})
	assert.ErrorIs(t, err, session.ErrNoPendingCheckout)
}

func TestConfirm_CancelledWhileInFlightIsDropped(t *testing.T) {
	rail := &fakeRail{mode: policies.ModePoll}
	f := newFixture(t, map[booking.Rail]policies.Rail{booking.RailPush: rail}, payment.Config{})

	rail.confirmFn = func(ctx context.Context, ref string) (policies.ConfirmStatus, error) {
		// The guest cancels from another tab while the prompt is pending.
		recs, _ := f.store.List(ctx, policies.ListFilter{UnitID: "unit-1"})
		if len(recs) == 1 {
			_ = f.store.Cancel(ctx, recs[0].ID, "changed my mind")
		}
		return policies.ConfirmPaid, nil
	}

	result, err := f.orch.Submit(context.Background(), submitInput(booking.RailPush, pricing.PayDeposit))

	assert.ErrorIs(t, err, payment.ErrCancelled)
	assert.Equal(t, booking.StateCancelled, result.Booking.State,
		"first confirmed terminal state wins")
}

func TestMintBookingID_WalletSuffix(t *testing.T) {
	id := payment.MintBookingID("unit-1", "0xAbCdEf1234567890")
	assert.Contains(t, string(id), "booking_unit-1_AbCdEf_")

	id = payment.MintBookingID("unit-1", "")
	assert.Contains(t, string(id), "booking_unit-1_offchain_")
}
