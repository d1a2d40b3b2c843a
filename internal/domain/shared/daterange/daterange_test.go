package daterange_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayvibe/internal/domain/shared/datekey"
	"stayvibe/internal/domain/shared/daterange"
)

func mustRange(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	dr, err := daterange.New(datekey.MustParse(in), datekey.MustParse(out))
	require.NoError(t, err)
	return dr
}

func TestNew_RejectsInvertedAndZeroNight(t *testing.T) {
	day := datekey.MustParse("2026-09-10")
	_, err := daterange.New(day, day)
	assert.ErrorIs(t, err, daterange.ErrInvalidRange)

	_, err = daterange.New(day.Next(), day)
	assert.ErrorIs(t, err, daterange.ErrInvalidRange)
}

func TestFromLastNight_DerivesExclusiveCheckout(t *testing.T) {
	dr, err := daterange.FromLastNight(datekey.MustParse("2026-09-10"), datekey.MustParse("2026-09-12"))
	require.NoError(t, err)
	assert.Equal(t, "2026-09-13", dr.CheckOut.String())
	assert.Equal(t, 3, dr.Nights())
	assert.Equal(t, "2026-09-12", dr.LastNight().String())
}

func TestFromLastNight_SingleNight(t *testing.T) {
	day := datekey.MustParse("2026-09-10")
	dr, err := daterange.FromLastNight(day, day)
	require.NoError(t, err)
	assert.Equal(t, 1, dr.Nights())
}

func TestOverlaps_BackToBackDoesNot(t *testing.T) {
	existing := mustRange(t, "2026-09-10", "2026-09-13")

	assert.False(t, existing.Overlaps(mustRange(t, "2026-09-13", "2026-09-15")),
		"new check-in on existing checkout day shares no night")
	assert.False(t, existing.Overlaps(mustRange(t, "2026-09-08", "2026-09-10")),
		"existing check-in on new checkout day shares no night")
	assert.True(t, existing.Overlaps(mustRange(t, "2026-09-12", "2026-09-14")))
	assert.True(t, existing.Overlaps(mustRange(t, "2026-09-09", "2026-09-11")))
	assert.True(t, existing.Overlaps(mustRange(t, "2026-09-01", "2026-09-30")))
}

func TestContainsDay_CheckoutExcluded(t *testing.T) {
	dr := mustRange(t, "2026-09-10", "2026-09-13")
	assert.True(t, dr.ContainsDay(datekey.MustParse("2026-09-10")))
	assert.True(t, dr.ContainsDay(datekey.MustParse("2026-09-12")))
	assert.False(t, dr.ContainsDay(datekey.MustParse("2026-09-13")))
}

func TestEachNight_ExcludesCheckout(t *testing.T) {
	dr := mustRange(t, "2026-09-10", "2026-09-12")
	var nights []string
	dr.EachNight(func(k datekey.Key) bool {
		nights = append(nights, k.String())
		return true
	})
	assert.Equal(t, []string{"2026-09-10", "2026-09-11"}, nights)
}
