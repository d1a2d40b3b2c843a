package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"stayvibe/internal/app/payment"
)

// CallbackRecorder is the slice of the push rail the webhook needs.
type CallbackRecorder interface {
	RecordCallback(ref string, resultCode int)
}

// PaymentHandler terminates the two provider re-entry paths: the hosted
// checkout redirect and the push rail's server-to-server webhook.
type PaymentHandler struct {
	Orchestrator *payment.Orchestrator
	Push         CallbackRecorder
}

// HostedCallback is where the guest lands after the hosted checkout page.
// The reference query parameter names the transaction to verify; a missing
// one falls back to the session's pending-checkout stash.
func (h PaymentHandler) HostedCallback(c *gin.Context) {
	ref := c.Query("reference")
	if ref == "" {
		ref = c.Query("trxref")
	}
	result, err := h.Orchestrator.ResumeRedirect(c.Request.Context(), payment.ResumeInput{
		BookingID: c.Query("booking_id"),
		SessionID: sessionKey(c),
		Reference: ref,
	})
	writeSubmitResult(c, result, err)
}

type pushWebhookRequest struct {
	Body struct {
		StkCallback struct {
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// PushWebhook receives the provider's asynchronous verdict on a push
// prompt. It only records; the in-flight poll picks the verdict up.
func (h PaymentHandler) PushWebhook(c *gin.Context) {
	var req pushWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cb := req.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing CheckoutRequestID"})
		return
	}
	if h.Push != nil {
		h.Push.RecordCallback(cb.CheckoutRequestID, cb.ResultCode)
	}
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}

var _ PaymentHTTP = PaymentHandler{}
