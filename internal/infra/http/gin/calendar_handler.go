package ginserver

import (
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"

	"stayvibe/internal/app/policies"
	"stayvibe/internal/app/session"
	"stayvibe/internal/domain/availability"
	"stayvibe/internal/domain/pricing"
	"stayvibe/internal/domain/shared/datekey"
	"stayvibe/internal/domain/shared/daterange"
)

// CalendarHandler serves the availability view the booking calendar is
// drawn from: one month of days flagged selectable or occupied.
type CalendarHandler struct {
	Bookings policies.BookingService
	Sessions *session.Manager
	Calc     pricing.Calculator
	Clock    func() time.Time
}

type calendarDay struct {
	Date       string `json:"date"`
	Occupied   bool   `json:"occupied"`
	Selectable bool   `json:"selectable"`
}

type calendarResponse struct {
	UnitID      string        `json:"unit_id"`
	Month       string        `json:"month"`
	MonthOffset int           `json:"month_offset"`
	Days        []calendarDay `json:"days"`
	RangeFree   *bool         `json:"range_free,omitempty"`
}

func (h CalendarHandler) Calendar(c *gin.Context) {
	unitID := c.Param("id")
	offset := 0
	if raw := c.Query("month_offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month_offset"})
			return
		}
		offset = parsed
	}
	if h.Sessions != nil {
		h.Sessions.For(sessionKey(c)).SetMonthOffset(offset)
	}

	reservations, err := h.Bookings.Reservations(c.Request.Context(), unitID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	nights := availability.BuildNightSet(reservations)

	today := datekey.Today(h.clock(), time.UTC)
	earliest := today.Next() // minimum-notice rule: check-in no earlier than tomorrow
	first := monthStart(today).AddMonths(offset)
	next := first.AddMonths(1)

	resp := calendarResponse{
		UnitID:      unitID,
		Month:       first.String()[:7],
		MonthOffset: offset,
	}
	first.EachUntil(next, func(day datekey.Key) bool {
		occupied := nights.Occupied(day)
		resp.Days = append(resp.Days, calendarDay{
			Date:       day.String(),
			Occupied:   occupied,
			Selectable: !occupied && !day.Before(earliest),
		})
		return true
	})

	// Optional candidate-range check, used while a selection is anchored.
	if from, to := c.Query("check_in"), c.Query("check_out"); from != "" && to != "" {
		dr, err := parseRange(from, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		free := nights.RangeFree(dr)
		resp.RangeFree = &free
	}

	c.JSON(http.StatusOK, resp)
}

type quoteResponse struct {
	Nights      int    `json:"nights"`
	Full        int64  `json:"full_amount"`
	Deposit     int64  `json:"deposit_amount"`
	Balance     int64  `json:"balance_amount"`
	PayNow      int64  `json:"amount_to_pay_now"`
	Currency    string `json:"currency"`
	PaymentType string `json:"payment_type"`
}

// Quote prices a candidate stay without touching any booking state.
func (h CalendarHandler) Quote(c *gin.Context) {
	dr, err := parseRange(c.Query("check_in"), c.Query("check_out"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	paymentType := pricing.PaymentType(c.DefaultQuery("payment_type", string(pricing.PayDeposit)))
	quote, err := h.Calc.Quote(dr.Nights(), paymentType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, quoteResponse{
		Nights:      quote.Nights,
		Full:        quote.FullAmount.Amount,
		Deposit:     quote.DepositAmount.Amount,
		Balance:     quote.BalanceAmount.Amount,
		PayNow:      quote.AmountToPayNow.Amount,
		Currency:    quote.FullAmount.Currency,
		PaymentType: string(quote.PaymentType),
	})
}

func (h CalendarHandler) clock() func() time.Time {
	if h.Clock != nil {
		return h.Clock
	}
	return time.Now
}

func parseRange(from, to string) (daterange.DateRange, error) {
	checkIn, err := datekey.Parse(from)
	if err != nil {
		return daterange.DateRange{}, err
	}
	checkOut, err := datekey.Parse(to)
	if err != nil {
		return daterange.DateRange{}, err
	}
	return daterange.New(checkIn, checkOut)
}

func monthStart(day datekey.Key) datekey.Key {
	midnight := day.Midnight(time.UTC)
	return datekey.New(midnight.Year(), midnight.Month(), 1)
}

var _ CalendarHTTP = CalendarHandler{}
