package ginserver

import (
	"errors"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"stayvibe/internal/app/payment"
	"stayvibe/internal/app/policies"
	"stayvibe/internal/domain/booking"
	"stayvibe/internal/domain/pricing"
	"stayvibe/internal/domain/shared/datekey"
	"stayvibe/internal/infra/metrics"
)

type BookingHandler struct {
	Orchestrator *payment.Orchestrator
	Lister       policies.BookingLister
	Metrics      *metrics.Metrics
	Clock        func() time.Time
}

type submitBookingRequest struct {
	BookingID   string `json:"booking_id"`
	UnitID      string `json:"unit_id" binding:"required"`
	GuestID     string `json:"guest_id" binding:"required"`
	GuestPhone  string `json:"guest_phone"`
	CheckIn     string `json:"check_in" binding:"required"`
	CheckOut    string `json:"check_out" binding:"required"`
	PaymentType string `json:"payment_type" binding:"required"`
	Rail        string `json:"rail" binding:"required"`
}

type bookingResponse struct {
	BookingID   string `json:"booking_id"`
	UnitID      string `json:"unit_id"`
	State       string `json:"state"`
	Rail        string `json:"rail"`
	CheckIn     string `json:"check_in"`
	CheckOut    string `json:"check_out"`
	Nights      int    `json:"nights"`
	DepositPaid bool   `json:"deposit_paid"`
	BalancePaid bool   `json:"balance_paid"`
	AccessCode  string `json:"access_code,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

func (h BookingHandler) Submit(c *gin.Context) {
	var req submitBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dr, err := parseRange(req.CheckIn, req.CheckOut)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.Orchestrator.Submit(c.Request.Context(), payment.SubmitInput{
		BookingID:   booking.ID(req.BookingID),
		SessionID:   sessionKey(c),
		UnitID:      req.UnitID,
		GuestID:     req.GuestID,
		GuestPhone:  req.GuestPhone,
		Range:       dr,
		PaymentType: pricing.PaymentType(req.PaymentType),
		Rail:        booking.Rail(req.Rail),
	})
	h.observe(req.Rail, "DEPOSIT", err)
	writeSubmitResult(c, result, err)
}

func (h BookingHandler) Balance(c *gin.Context) {
	result, err := h.Orchestrator.PayBalance(c.Request.Context(), sessionKey(c), booking.ID(c.Param("id")))
	rail := ""
	if result.Booking != nil {
		rail = string(result.Booking.Rail)
	}
	h.observe(rail, "BALANCE", err)
	writeSubmitResult(c, result, err)
}

func (h BookingHandler) observe(rail, phase string, err error) {
	if h.Metrics == nil {
		return
	}
	result := "confirmed"
	if err != nil {
		result = "failed"
	}
	h.Metrics.ObservePaymentPhase(rail, phase, result)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)
	err := h.Orchestrator.Cancel(c.Request.Context(), booking.ID(c.Param("id")), req.Reason)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h BookingHandler) Status(c *gin.Context) {
	rec, err := h.Orchestrator.Status(c.Request.Context(), booking.ID(c.Param("id")))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(rec, "", ""))
}

func (h BookingHandler) List(c *gin.Context) {
	if h.Lister == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "listing unavailable"})
		return
	}
	filter := policies.ListFilter{
		UnitID:  c.Query("unit_id"),
		GuestID: c.Query("guest_id"),
	}
	for _, st := range c.QueryArray("state") {
		filter.States = append(filter.States, booking.State(st))
	}
	records, err := h.Lister.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	clock := h.Clock
	if clock == nil {
		clock = time.Now
	}
	today := datekey.Today(clock, time.UTC)
	out := make([]listedBooking, 0, len(records))
	for _, rec := range records {
		out = append(out, toListedBooking(rec, today))
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

type listedBooking struct {
	bookingResponse
	Status           string `json:"status"`
	Timeline         string `json:"timeline"`
	BalanceDueInDays int    `json:"balance_due_in_days,omitempty"`
}

// toListedBooking projects a record into the guest-facing list row: a
// human status label, the upcoming/previous split, and how many days
// remain before the balance falls due on check-in.
func toListedBooking(rec *booking.Record, today datekey.Key) listedBooking {
	row := listedBooking{bookingResponse: toBookingResponse(rec, "", "")}

	row.Timeline = "upcoming"
	if !today.Before(rec.Range.CheckOut) {
		row.Timeline = "previous"
	}

	switch {
	case rec.State == booking.StateCancelled:
		row.Status = "cancelled"
	case rec.BalancePaid && row.Timeline == "previous":
		row.Status = "completed"
	case rec.BalancePaid:
		row.Status = "fully paid"
	case rec.DepositPaid:
		row.Status = "deposit paid"
		if due := today.DaysUntil(rec.Range.CheckIn); due > 0 {
			row.BalanceDueInDays = due
		}
	default:
		row.Status = "payment pending"
	}
	return row
}

func writeSubmitResult(c *gin.Context, result payment.SubmitResult, err error) {
	if err != nil {
		status := statusFromError(err)
		body := gin.H{"error": err.Error()}
		if result.Booking != nil {
			body["booking"] = toBookingResponse(result.Booking, string(result.Outcome), result.RedirectURL)
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(result.Booking, string(result.Outcome), result.RedirectURL))
}

func toBookingResponse(rec *booking.Record, outcome, redirectURL string) bookingResponse {
	return bookingResponse{
		BookingID:   string(rec.ID),
		UnitID:      rec.UnitID,
		State:       string(rec.State),
		Rail:        string(rec.Rail),
		CheckIn:     rec.Range.CheckIn.String(),
		CheckOut:    rec.Range.CheckOut.String(),
		Nights:      rec.Quote.Nights,
		DepositPaid: rec.DepositPaid,
		BalancePaid: rec.BalancePaid,
		AccessCode:  rec.AccessCode,
		Outcome:     outcome,
		RedirectURL: redirectURL,
	}
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, payment.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, payment.ErrUnknownRail):
		return http.StatusBadRequest
	case errors.Is(err, payment.ErrDateConflict):
		return http.StatusConflict
	case errors.Is(err, payment.ErrAlreadyPaid), errors.Is(err, payment.ErrAlreadyPaidOnChain):
		return http.StatusConflict
	case errors.Is(err, booking.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, payment.ErrCooldown):
		return http.StatusTooManyRequests
	case errors.Is(err, payment.ErrRailRejected), errors.Is(err, payment.ErrPartialSuccess):
		return http.StatusPaymentRequired
	case errors.Is(err, payment.ErrConfirmTimeout):
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

var _ BookingHTTP = BookingHandler{}
