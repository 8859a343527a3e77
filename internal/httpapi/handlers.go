package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"callkit/internal/auth"
	"callkit/internal/calllog"
	"callkit/internal/minutes"
	"callkit/internal/signaling"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Signaling *signaling.Service
	Logs      *calllog.Service
	Minutes   *minutes.Service
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calls ---

type initiateCallRequest struct {
	ReceiverID  string `json:"receiver_id"`
	IsAudioOnly bool   `json:"is_audio_only"`
	CallerName  string `json:"caller_name"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
}

func (h Handlers) InitiateCall(c *gin.Context) {
	callerID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	var req initiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	intent, err := h.Signaling.InitiateCall(c.Request.Context(), signaling.InitiateRequest{
		CallerID:   callerID,
		ReceiverID: req.ReceiverID,
		Caller: signaling.CallerSnapshot{
			ID:          callerID,
			DisplayName: req.CallerName,
			AvatarRef:   req.AvatarRef,
		},
		IsAudioOnly: req.IsAudioOnly,
	})
	if err != nil {
		abortSignalingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, intent)
}

func (h Handlers) AcceptCall(c *gin.Context) {
	if err := h.Signaling.AcceptCall(c.Request.Context(), c.Param("call_id")); err != nil {
		abortSignalingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (h Handlers) RejectCall(c *gin.Context) {
	if err := h.Signaling.RejectCall(c.Request.Context(), c.Param("call_id")); err != nil {
		abortSignalingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

type endCallRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h Handlers) EndCall(c *gin.Context) {
	var req endCallRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	reason := signaling.EndReasonEnded
	if req.Reason == string(signaling.EndReasonMissed) {
		reason = signaling.EndReasonMissed
	}
	if err := h.Signaling.EndCall(c.Request.Context(), c.Param("call_id"), reason); err != nil {
		abortSignalingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

type cameraRequest struct {
	Party   string `json:"party"`
	Enabled bool   `json:"enabled"`
}

// SetCamera mirrors a local camera toggle into the intent.
func (h Handlers) SetCamera(c *gin.Context) {
	var req cameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	party := signaling.Party(req.Party)
	if party != signaling.PartyCaller && party != signaling.PartyReceiver {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "party must be caller or receiver"})
		return
	}
	if err := h.Signaling.SetCameraEnabled(c.Request.Context(), c.Param("call_id"), party, req.Enabled); err != nil {
		abortSignalingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h Handlers) GetCall(c *gin.Context) {
	intent, err := h.Signaling.GetIntent(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		abortSignalingError(c, err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

// --- Call history ---

func (h Handlers) ListCallLogs(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	entries, err := h.Logs.List(c.Request.Context(), userID, 0)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call log lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_logs": entries})
}

func (h Handlers) CallLogSummary(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	sum, err := h.Logs.Summarize(c.Request.Context(), userID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// --- Minutes ---

func (h Handlers) GetBalance(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	bal, err := h.Minutes.Balance(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, minutes.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "balance lookup failed"})
		return
	}
	c.JSON(http.StatusOK, bal)
}

func (h Handlers) TopUp(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	var req minutes.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	bal, err := h.Minutes.TopUp(c.Request.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, minutes.ErrInvalidArgument):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "minutes must be positive"})
		case errors.Is(err, minutes.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "top-up failed"})
		}
		return
	}
	c.JSON(http.StatusOK, bal)
}

// abortSignalingError maps signaling sentinels onto HTTP statuses.
func abortSignalingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, signaling.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case errors.Is(err, signaling.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
	case errors.Is(err, signaling.ErrInsufficientMinutes):
		c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": "insufficient call minutes"})
	case errors.Is(err, signaling.ErrCallInProgress):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a call is already in progress"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call operation failed"})
	}
}
