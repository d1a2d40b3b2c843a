package booking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayvibe/internal/domain/availability"
	"stayvibe/internal/domain/booking"
	"stayvibe/internal/domain/pricing"
	"stayvibe/internal/domain/shared/datekey"
	"stayvibe/internal/domain/shared/daterange"
	"stayvibe/internal/domain/shared/money"
)

var now = time.Date(2026, time.September, 15, 12, 0, 0, 0, time.UTC)

func draft(t *testing.T) *booking.Record {
	t.Helper()
	dr, err := daterange.New(datekey.MustParse("2026-09-20"), datekey.MustParse("2026-09-23"))
	require.NoError(t, err)
	rec, err := booking.New(booking.CreateParams{
		ID:      "b1",
		UnitID:  "unit-1",
		GuestID: "guest-1",
		Range:   dr,
		Quote: pricing.Quote{
			Nights: 3, FullAmount: money.KES(2400), DepositAmount: money.KES(500),
			BalanceAmount: money.KES(1900), PaymentType: pricing.PayDeposit, AmountToPayNow: money.KES(500),
		},
		Rail:      booking.RailPush,
		CreatedAt: now,
	})
	require.NoError(t, err)
	return rec
}

func TestNew_RecordsRequestedEvent(t *testing.T) {
	rec := draft(t)
	assert.Equal(t, booking.StateDraft, rec.State)
	events := rec.PendingEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "booking.requested", events[0].EventName())
	assert.Equal(t, "b1", events[0].AggregateID())
}

func TestNew_Validation(t *testing.T) {
	dr, err := daterange.New(datekey.MustParse("2026-09-20"), datekey.MustParse("2026-09-23"))
	require.NoError(t, err)

	_, err = booking.New(booking.CreateParams{ID: "b1", UnitID: "u", Range: dr, Rail: booking.RailPush})
	assert.ErrorIs(t, err, booking.ErrGuestMissing)

	_, err = booking.New(booking.CreateParams{ID: "b1", UnitID: "u", GuestID: "g", Range: dr, Rail: booking.Rail("CASH")})
	assert.Error(t, err)
}

func TestLifecycle_DepositThenBalance(t *testing.T) {
	rec := draft(t)

	require.NoError(t, rec.BeginPhase(booking.PhaseDeposit, now))
	assert.Equal(t, booking.StateDepositInProgress, rec.State)

	require.NoError(t, rec.ConfirmDeposit("CODE1234", now))
	assert.Equal(t, booking.StateDepositConfirmed, rec.State)
	assert.Equal(t, "CODE1234", rec.AccessCode)

	require.NoError(t, rec.BeginPhase(booking.PhaseBalance, now))
	require.NoError(t, rec.ConfirmBalance(now))
	assert.Equal(t, booking.StateFullyPaid, rec.State)
	assert.True(t, rec.IsTerminal())
}

func TestFailPhase_ReturnsToPredecessor(t *testing.T) {
	rec := draft(t)

	require.NoError(t, rec.BeginPhase(booking.PhaseDeposit, now))
	require.NoError(t, rec.FailPhase(now))
	assert.Equal(t, booking.StateDraft, rec.State)

	require.NoError(t, rec.BeginPhase(booking.PhaseDeposit, now))
	require.NoError(t, rec.ConfirmDeposit("CODE1234", now))
	require.NoError(t, rec.BeginPhase(booking.PhaseBalance, now))
	require.NoError(t, rec.FailPhase(now))
	assert.Equal(t, booking.StateDepositConfirmed, rec.State)
	assert.True(t, rec.DepositPaid, "a confirmed phase is never un-confirmed")

	assert.ErrorIs(t, rec.FailPhase(now), booking.ErrInvalidState)
}

func TestBeginPhase_Guards(t *testing.T) {
	rec := draft(t)

	assert.ErrorIs(t, rec.BeginPhase(booking.PhaseBalance, now), booking.ErrInvalidState)

	require.NoError(t, rec.BeginPhase(booking.PhaseDeposit, now))
	assert.ErrorIs(t, rec.BeginPhase(booking.PhaseDeposit, now), booking.ErrInvalidState)
}

func TestConfirm_IdempotencyGuards(t *testing.T) {
	rec := draft(t)
	require.NoError(t, rec.BeginPhase(booking.PhaseDeposit, now))
	require.NoError(t, rec.ConfirmDeposit("CODE1234", now))

	assert.ErrorIs(t, rec.ConfirmDeposit("OTHER", now), booking.ErrAlreadyPaid)
	assert.Equal(t, "CODE1234", rec.AccessCode)

	require.NoError(t, rec.ConfirmBalance(now))
	assert.ErrorIs(t, rec.ConfirmBalance(now), booking.ErrAlreadyPaid)
}

func TestCancel_NonTerminalOnly(t *testing.T) {
	rec := draft(t)
	require.NoError(t, rec.Cancel("plans changed", now))
	assert.Equal(t, booking.StateCancelled, rec.State)
	assert.ErrorIs(t, rec.Cancel("again", now), booking.ErrInvalidState)

	paid := draft(t)
	require.NoError(t, paid.BeginPhase(booking.PhaseDeposit, now))
	require.NoError(t, paid.ConfirmDeposit("C", now))
	require.NoError(t, paid.ConfirmBalance(now))
	assert.ErrorIs(t, paid.Cancel("too late", now), booking.ErrInvalidState)
}

func TestReservation_Projection(t *testing.T) {
	rec := draft(t)
	res := rec.Reservation()
	assert.Equal(t, availability.StatusActive, res.Status)
	assert.False(t, res.Blocks(), "unpaid draft holds no nights")

	require.NoError(t, rec.ConfirmDeposit("C", now))
	assert.True(t, rec.Reservation().Blocks())

	cancelled := draft(t)
	require.NoError(t, cancelled.Cancel("freed", now))
	res = cancelled.Reservation()
	assert.Equal(t, availability.StatusCancelled, res.Status)
	assert.False(t, res.Blocks())
}
