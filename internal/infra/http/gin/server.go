package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"stayvibe/internal/infra/config"
	"stayvibe/internal/infra/metrics"
	"stayvibe/internal/infra/obs"
)

type CalendarHTTP interface {
	Calendar(c *gin.Context)
	Quote(c *gin.Context)
}

type BookingHTTP interface {
	Submit(c *gin.Context)
	Balance(c *gin.Context)
	Cancel(c *gin.Context)
	Status(c *gin.Context)
	List(c *gin.Context)
}

type PaymentHTTP interface {
	HostedCallback(c *gin.Context)
	PushWebhook(c *gin.Context)
}

type SessionHTTP interface {
	SetWallet(c *gin.Context)
	Wallet(c *gin.Context)
	SetToken(c *gin.Context)
}

type Handlers struct {
	Calendar CalendarHTTP
	Booking  BookingHTTP
	Payment  PaymentHTTP
	Session  SessionHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, m *metrics.Metrics, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	if m != nil {
		router.Use(m.GinMiddleware())
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", "X-Session-ID"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if m != nil && cfg.MetricsEnabled {
		router.GET("/metrics", m.Handler())
	}

	api := router.Group("/api/v1")
	if h.Calendar != nil {
		api.GET("/units/:id/calendar", h.Calendar.Calendar)
		api.GET("/units/:id/quote", h.Calendar.Quote)
	}
	if h.Booking != nil {
		api.POST("/bookings", h.Booking.Submit)
		api.GET("/bookings", h.Booking.List)
		api.GET("/bookings/:id", h.Booking.Status)
		api.POST("/bookings/:id/balance", h.Booking.Balance)
		api.POST("/bookings/:id/cancel", h.Booking.Cancel)
	}
	if h.Payment != nil {
		api.GET("/payments/hosted/callback", h.Payment.HostedCallback)
		api.POST("/payments/push/webhook", h.Payment.PushWebhook)
	}
	if h.Session != nil {
		api.POST("/session/wallet", h.Session.SetWallet)
		api.GET("/session/wallet", h.Session.Wallet)
		api.POST("/session/token", h.Session.SetToken)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

// sessionKey identifies the caller's session: the X-Session-ID header if
// present, else the session_id cookie. Callers without either share one
// anonymous bucket.
func sessionKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader("X-Session-ID")); key != "" {
		return key
	}
	if key, err := c.Cookie("session_id"); err == nil {
		return key
	}
	return ""
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
