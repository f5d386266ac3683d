package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lulacoin-miner-backend/internal/middleware"
	"lulacoin-miner-backend/internal/models"
	"lulacoin-miner-backend/internal/services"
)

func currentPlayer(c *gin.Context) models.Player {
	return models.Player{
		ID:       c.GetString(middleware.ContextUserID),
		Username: c.GetString(middleware.ContextUsername),
	}
}

func queryLimit(c *gin.Context, def int64) int64 {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", strconv.FormatInt(def, 10)), 10, 64)
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInsufficientFunds), errors.Is(err, models.ErrInsufficientStake):
		return http.StatusPaymentRequired
	case errors.Is(err, models.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrSlotOccupied),
		errors.Is(err, models.ErrSlotEmpty),
		errors.Is(err, models.ErrRoomLimit),
		errors.Is(err, models.ErrMatchNotActive),
		errors.Is(err, services.ErrTxContention):
		return http.StatusConflict
	case services.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error with a status derived from its kind. Internal failures are
// logged and reported without details.
func respondError(c *gin.Context, logger *zap.Logger, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(message,
			zap.String("path", c.FullPath()),
			zap.String("user_id", c.GetString(middleware.ContextUserID)),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return false
	}
	return true
}
