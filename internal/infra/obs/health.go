package obs

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandlers serves the deployment probes. Readiness gates on the
// booking store: accepting a submission the service cannot persist would
// read to the guest as a charge without a stay.
type HealthHandlers struct {
	Ready     func() error
	startedAt time.Time
}

func NewHealthHandlers(ready func() error) HealthHandlers {
	return HealthHandlers{Ready: ready, startedAt: time.Now()}
}

func (h HealthHandlers) Livez(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive", "uptime": h.uptime()})
}

func (h HealthHandlers) Readyz(c *gin.Context) {
	if h.Ready != nil {
		if err := h.Ready(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  err.Error(),
				"uptime": h.uptime(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "uptime": h.uptime()})
}

func (h HealthHandlers) uptime() string {
	if h.startedAt.IsZero() {
		return ""
	}
	return time.Since(h.startedAt).Round(time.Second).String()
}
