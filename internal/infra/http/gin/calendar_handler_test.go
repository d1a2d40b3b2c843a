package ginserver_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayvibe/internal/app/session"
	"stayvibe/internal/domain/booking"
	"stayvibe/internal/domain/pricing"
	"stayvibe/internal/domain/shared/datekey"
	"stayvibe/internal/domain/shared/daterange"
	"stayvibe/internal/domain/shared/money"
	ginserver "stayvibe/internal/infra/http/gin"
	"stayvibe/internal/infra/storage/memory"
)

var handlerNow = time.Date(2026, time.September, 15, 12, 0, 0, 0, time.UTC)

func seedPaidBooking(t *testing.T, store *memory.BookingStore, id, unitID, in, out string) {
	t.Helper()
	dr, err := daterange.New(datekey.MustParse(in), datekey.MustParse(out))
	require.NoError(t, err)
	rec, err := booking.New(booking.CreateParams{
		ID:      booking.ID(id),
		UnitID:  unitID,
		GuestID: "guest-1",
		Range:   dr,
		Quote:   pricing.Quote{Nights: dr.Nights(), FullAmount: money.KES(800), DepositAmount: money.KES(500), PaymentType: pricing.PayDeposit},
		Rail:    booking.RailPush,
	})
	require.NoError(t, err)
	require.NoError(t, rec.ConfirmDeposit("CODE", handlerNow))
	require.NoError(t, store.CreateOrConfirm(t.Context(), rec))
}

func calendarRouter(t *testing.T, store *memory.BookingStore, sessions *session.Manager) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	calc, err := pricing.NewCalculator(money.KES(800), money.KES(500))
	require.NoError(t, err)
	h := ginserver.CalendarHandler{
		Bookings: store,
		Sessions: sessions,
		Calc:     calc,
		Clock:    func() time.Time { return handlerNow },
	}
	router := gin.New()
	router.GET("/units/:id/calendar", h.Calendar)
	router.GET("/units/:id/quote", h.Quote)
	return router
}

func TestCalendar_FlagsOccupiedAndPastDays(t *testing.T) {
	store := memory.NewBookingStore(func() time.Time { return handlerNow })
	seedPaidBooking(t, store, "b1", "unit-1", "2026-09-20", "2026-09-23")
	router := calendarRouter(t, store, session.NewManager(func() time.Time { return handlerNow }))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/units/unit-1/calendar", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Month string `json:"month"`
		Days  []struct {
			Date       string `json:"date"`
			Occupied   bool   `json:"occupied"`
			Selectable bool   `json:"selectable"`
		} `json:"days"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2026-09", resp.Month)
	require.Len(t, resp.Days, 30)

	byDate := map[string]struct{ occupied, selectable bool }{}
	for _, d := range resp.Days {
		byDate[d.Date] = struct{ occupied, selectable bool }{d.Occupied, d.Selectable}
	}

	assert.True(t, byDate["2026-09-20"].occupied)
	assert.True(t, byDate["2026-09-22"].occupied)
	assert.False(t, byDate["2026-09-23"].occupied, "checkout day is not a night")
	assert.True(t, byDate["2026-09-23"].selectable)
	assert.False(t, byDate["2026-09-15"].selectable, "today fails the minimum-notice rule")
	assert.False(t, byDate["2026-09-14"].selectable)
	assert.True(t, byDate["2026-09-16"].selectable)
}

func TestCalendar_MonthOffsetPersistsToSession(t *testing.T) {
	store := memory.NewBookingStore(func() time.Time { return handlerNow })
	sessions := session.NewManager(func() time.Time { return handlerNow })
	router := calendarRouter(t, store, sessions)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/units/unit-1/calendar?month_offset=2", nil)
	req.Header.Set("X-Session-ID", "sess-a")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Month string `json:"month"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2026-11", resp.Month)
	assert.Equal(t, 2, sessions.For("sess-a").MonthOffset())
	assert.Equal(t, 0, sessions.For("sess-b").MonthOffset(), "offset is per session")
}

func TestCalendar_BadMonthOffset(t *testing.T) {
	store := memory.NewBookingStore(func() time.Time { return handlerNow })
	router := calendarRouter(t, store, session.NewManager(nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/units/unit-1/calendar?month_offset=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalendar_CandidateRangeCheck(t *testing.T) {
	store := memory.NewBookingStore(func() time.Time { return handlerNow })
	seedPaidBooking(t, store, "b1", "unit-1", "2026-09-20", "2026-09-23")
	router := calendarRouter(t, store, session.NewManager(nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/units/unit-1/calendar?check_in=2026-09-23&check_out=2026-09-25", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		RangeFree *bool `json:"range_free"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.RangeFree)
	assert.True(t, *resp.RangeFree, "back-to-back turnover is allowed")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/units/unit-1/calendar?check_in=2026-09-22&check_out=2026-09-24", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.RangeFree)
	assert.False(t, *resp.RangeFree)
}

func TestQuote_PricesCandidateStay(t *testing.T) {
	store := memory.NewBookingStore(nil)
	router := calendarRouter(t, store, session.NewManager(nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/units/unit-1/quote?check_in=2026-09-20&check_out=2026-09-23&payment_type=FULL", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Nights  int   `json:"nights"`
		Full    int64 `json:"full_amount"`
		Deposit int64 `json:"deposit_amount"`
		Balance int64 `json:"balance_amount"`
		PayNow  int64 `json:"amount_to_pay_now"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Nights)
	assert.Equal(t, int64(2400), resp.Full)
	assert.Equal(t, int64(500), resp.Deposit)
	assert.Equal(t, int64(1900), resp.Balance)
	assert.Equal(t, int64(2400), resp.PayNow)
}

func TestQuote_BadRange(t *testing.T) {
	store := memory.NewBookingStore(nil)
	router := calendarRouter(t, store, session.NewManager(nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/units/unit-1/quote?check_in=2026-09-23&check_out=2026-09-20", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
