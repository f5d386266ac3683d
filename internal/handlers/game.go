package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lulacoin-miner-backend/internal/middleware"
	"lulacoin-miner-backend/internal/models"
	"lulacoin-miner-backend/internal/services"
)

// GameHandler serves the mining side of the game: state, shop, layout and farm.
type GameHandler struct {
	mining  *services.MiningService
	catalog *models.StaticCatalog
	logger  *zap.Logger
}

func NewGameHandler(mining *services.MiningService, catalog *models.StaticCatalog, logger *zap.Logger) *GameHandler {
	return &GameHandler{
		mining:  mining,
		catalog: catalog,
		logger:  logger,
	}
}

func (h *GameHandler) GetState(c *gin.Context) {
	state, err := h.mining.State(c.Request.Context(), currentPlayer(c))
	if err != nil {
		respondError(c, h.logger, "Failed to load state", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"state":       state.Ledger,
		"total_power": state.TotalPower,
		"reconciled":  state.Reconciled,
		"accrual":     state.Accrual,
		"server_time": time.Now().UTC(),
	})
}

func (h *GameHandler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"units":   h.catalog.Units(),
		"racks":   h.catalog.Racks(),
	})
}

func (h *GameHandler) BuyItem(c *gin.Context) {
	var req models.BuyItemRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	ledger, err := h.mining.BuyItem(c.Request.Context(), currentPlayer(c), req.Category, req.ItemID, req.Quantity)
	if err != nil {
		respondError(c, h.logger, "Failed to buy item", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"state":   ledger,
	})
}

func (h *GameHandler) BuyRoom(c *gin.Context) {
	ledger, cost, err := h.mining.BuyRoom(c.Request.Context(), currentPlayer(c))
	if err != nil {
		respondError(c, h.logger, "Failed to buy room", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"cost":    cost,
		"state":   ledger,
	})
}

func (h *GameHandler) PlaceRack(c *gin.Context) {
	var req models.PlaceRackRequest
	if !bindJSON(c, &req) {
		return
	}

	ledger, err := h.mining.PlaceRack(c.Request.Context(), currentPlayer(c), req.Room, req.Slot, req.RackID)
	if err != nil {
		respondError(c, h.logger, "Failed to place rack", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "state": ledger})
}

func (h *GameHandler) RemoveRack(c *gin.Context) {
	var req models.RemoveRackRequest
	if !bindJSON(c, &req) {
		return
	}

	ledger, err := h.mining.RemoveRack(c.Request.Context(), currentPlayer(c), req.Room, req.Slot)
	if err != nil {
		respondError(c, h.logger, "Failed to remove rack", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "state": ledger})
}

func (h *GameHandler) PlaceUnit(c *gin.Context) {
	var req models.PlaceUnitRequest
	if !bindJSON(c, &req) {
		return
	}

	ledger, err := h.mining.PlaceUnit(c.Request.Context(), currentPlayer(c), req.Ref(), req.UnitID)
	if err != nil {
		respondError(c, h.logger, "Failed to place unit", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "state": ledger})
}

func (h *GameHandler) RemoveUnit(c *gin.Context) {
	var req models.RemoveUnitRequest
	if !bindJSON(c, &req) {
		return
	}

	ledger, err := h.mining.RemoveUnit(c.Request.Context(), currentPlayer(c), req.Ref())
	if err != nil {
		respondError(c, h.logger, "Failed to remove unit", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "state": ledger})
}

func (h *GameHandler) Recharge(c *gin.Context) {
	ledger, err := h.mining.RechargeEnergy(c.Request.Context(), currentPlayer(c))
	if err != nil {
		respondError(c, h.logger, "Failed to recharge energy", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "state": ledger})
}

func (h *GameHandler) BuyLand(c *gin.Context) {
	ledger, paid, err := h.mining.BuyLand(c.Request.Context(), currentPlayer(c))
	if err != nil {
		respondError(c, h.logger, "Failed to buy land", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"paid":    paid,
		"farm":    ledger.Farm,
		"balance": ledger.Balance,
	})
}

func (h *GameHandler) GetTransactions(c *gin.Context) {
	txs, err := h.mining.Transactions(c.Request.Context(), c.GetString(middleware.ContextUserID), queryLimit(c, 50))
	if err != nil {
		respondError(c, h.logger, "Failed to get transactions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": txs,
		"count":        len(txs),
	})
}

func (h *GameHandler) GetRanking(c *gin.Context) {
	entries, err := h.mining.Ranking(c.Request.Context(), queryLimit(c, 5))
	if err != nil {
		respondError(c, h.logger, "Failed to get ranking", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"ranking": entries,
	})
}
