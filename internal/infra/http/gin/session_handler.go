package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"stayvibe/internal/app/session"
)

// SessionHandler mutates the caller's session surface: connected wallet and
// auth token. Nothing here grants access by itself; privileged actions
// revalidate on their own.
type SessionHandler struct {
	Sessions *session.Manager
}

type setWalletRequest struct {
	Address string `json:"address" binding:"required"`
}

func (h SessionHandler) SetWallet(c *gin.Context) {
	var req setWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.Sessions.For(sessionKey(c)).SetWalletAddress(req.Address)
	c.Status(http.StatusNoContent)
}

func (h SessionHandler) Wallet(c *gin.Context) {
	addr := h.Sessions.For(sessionKey(c)).WalletAddress()
	c.JSON(http.StatusOK, gin.H{"address": addr, "connected": addr != ""})
}

type setTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h SessionHandler) SetToken(c *gin.Context) {
	var req setTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess := h.Sessions.For(sessionKey(c))
	sess.SetToken(req.Token)
	if _, err := sess.Token(); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, session.ErrTokenExpired) {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

var _ SessionHTTP = SessionHandler{}
