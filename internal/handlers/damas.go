package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lulacoin-miner-backend/internal/middleware"
	"lulacoin-miner-backend/internal/models"
	"lulacoin-miner-backend/internal/services"
)

type DamasHandler struct {
	queue   *services.MatchmakingQueue
	matches *services.MatchService
	archive services.MatchArchive
	logger  *zap.Logger
}

func NewDamasHandler(queue *services.MatchmakingQueue, matches *services.MatchService, archive services.MatchArchive, logger *zap.Logger) *DamasHandler {
	return &DamasHandler{
		queue:   queue,
		matches: matches,
		archive: archive,
		logger:  logger,
	}
}

func (h *DamasHandler) JoinQueue(c *gin.Context) {
	res, err := h.queue.Join(c.Request.Context(), currentPlayer(c))
	if err != nil {
		respondError(c, h.logger, "Failed to join matchmaking", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"status":   res.Status,
		"match_id": res.MatchID,
		"position": res.Position,
	})
}

func (h *DamasHandler) QueueStatus(c *gin.Context) {
	st, err := h.queue.Status(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, h.logger, "Failed to get matchmaking status", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"match_found": st.MatchFound,
		"match_id":    st.MatchID,
		"queued":      st.Queued,
		"position":    st.Position,
	})
}

func (h *DamasHandler) LeaveQueue(c *gin.Context) {
	left := h.queue.Leave(c.GetString(middleware.ContextUserID))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"left":    left,
	})
}

func (h *DamasHandler) GetMatch(c *gin.Context) {
	m, err := h.matches.Get(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, h.logger, "Failed to get match", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "match": m})
}

func (h *DamasHandler) Move(c *gin.Context) {
	var req services.MoveRequest
	if !bindJSON(c, &req) {
		return
	}

	m, err := h.matches.ApplyMove(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID), req)
	if err != nil {
		respondError(c, h.logger, "Failed to apply move", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "match": m})
}

func (h *DamasHandler) SendEmoji(c *gin.Context) {
	var req models.EmojiRequest
	if !bindJSON(c, &req) {
		return
	}

	m, err := h.matches.PostEmoji(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID), req.Emoji)
	if err != nil {
		respondError(c, h.logger, "Failed to send emoji", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "last_emoji": m.LastEmoji})
}

func (h *DamasHandler) GetHistory(c *gin.Context) {
	history, err := h.matches.History(c.Request.Context(), c.GetString(middleware.ContextUserID), queryLimit(c, 20))
	if err != nil {
		respondError(c, h.logger, "Failed to get match history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"matches": history,
		"count":   len(history),
	})
}

func (h *DamasHandler) GetStats(c *gin.Context) {
	stats, err := h.archive.PlayerStats(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, h.logger, "Failed to get match stats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}
