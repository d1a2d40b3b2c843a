package session_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayvibe/internal/app/session"
)

var frozen = time.Date(2026, time.September, 15, 12, 0, 0, 0, time.UTC)

func frozenClock() time.Time { return frozen }

func tokenWithExp(t *testing.T, exp int64) string {
	t.Helper()
	payload, err := json.Marshal(map[string]int64{"exp": exp})
	require.NoError(t, err)
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return "header." + encoded + ".signature"
}

func TestToken_ValidUnexpired(t *testing.T) {
	s := session.NewStore(frozenClock)
	s.SetToken(tokenWithExp(t, frozen.Add(time.Hour).Unix()))

	got, err := s.Token()
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestToken_ExpiredIsClearedOnRead(t *testing.T) {
	s := session.NewStore(frozenClock)
	s.SetToken(tokenWithExp(t, frozen.Add(-time.Minute).Unix()))

	_, err := s.Token()
	assert.ErrorIs(t, err, session.ErrTokenExpired)

	// The stale token is gone; a second read reports invalid, not expired.
	_, err = s.Token()
	assert.ErrorIs(t, err, session.ErrTokenInvalid)
}

func TestToken_Malformed(t *testing.T) {
	s := session.NewStore(frozenClock)
	for _, raw := range []string{"not-a-jwt", "a.b", "a.!!!.c"} {
		s.SetToken(raw)
		_, err := s.Token()
		assert.ErrorIs(t, err, session.ErrTokenInvalid, raw)
	}
}

func TestPendingCheckout_TakeClearsAndReturns(t *testing.T) {
	s := session.NewStore(frozenClock)
	s.SetPendingCheckout("booking-1", "unit-9")

	p, err := s.TakePendingCheckout()
	require.NoError(t, err)
	assert.Equal(t, "booking-1", p.BookingID)
	assert.Equal(t, "unit-9", p.UnitID)

	_, err = s.TakePendingCheckout()
	assert.ErrorIs(t, err, session.ErrNoPendingCheckout)
}

func TestPendingCheckout_ExpiresAfterTTL(t *testing.T) {
	now := frozen
	s := session.NewStore(func() time.Time { return now })
	s.SetPendingCheckout("booking-1", "unit-9")

	now = now.Add(session.DefaultPendingTTL + time.Second)
	_, err := s.TakePendingCheckout()
	assert.ErrorIs(t, err, session.ErrPendingExpired)

	// Expired entries are consumed, not resurrected.
	_, err = s.TakePendingCheckout()
	assert.ErrorIs(t, err, session.ErrNoPendingCheckout)
}

func TestWalletAndPhoneAndMonthOffset(t *testing.T) {
	s := session.NewStore(frozenClock)
	assert.Empty(t, s.WalletAddress())

	s.SetWalletAddress("0xAbCd000000000000000000000000000000000000")
	assert.Equal(t, "0xAbCd000000000000000000000000000000000000", s.WalletAddress())

	s.SetPhoneNumber("0712345678")
	assert.Equal(t, "0712345678", s.PhoneNumber())

	s.SetMonthOffset(2)
	assert.Equal(t, 2, s.MonthOffset())
}

func TestManager_IsolatesSessions(t *testing.T) {
	m := session.NewManager(frozenClock)

	m.For("sess-a").SetWalletAddress("0xaaa0000000000000000000000000000000000000")
	m.For("sess-b").SetPhoneNumber("0712345678")

	assert.Equal(t, "0xaaa0000000000000000000000000000000000000", m.For("sess-a").WalletAddress())
	assert.Empty(t, m.For("sess-b").WalletAddress())
	assert.Empty(t, m.For("sess-a").PhoneNumber())
	assert.Equal(t, "0712345678", m.For("sess-b").PhoneNumber())
}

func TestManager_SameKeySameStore(t *testing.T) {
	m := session.NewManager(nil)
	assert.Same(t, m.For("sess-a"), m.For("sess-a"))
	assert.NotSame(t, m.For("sess-a"), m.For("sess-b"))
	assert.Same(t, m.For(""), m.For(""), "anonymous callers share one bucket")
}
