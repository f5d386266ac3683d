package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lulacoin-miner-backend/internal/clock"
	"lulacoin-miner-backend/internal/config"
	"lulacoin-miner-backend/internal/handlers"
	"lulacoin-miner-backend/internal/middleware"
	"lulacoin-miner-backend/internal/models"
	"lulacoin-miner-backend/internal/repository"
	"lulacoin-miner-backend/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	router *gin.Engine
	store  *services.RedisService
	hub    *handlers.WebSocketHub
}

// newServer wires the handlers against miniredis. Requests pick the player from the
// X-Player header instead of a token.
func newServer(t *testing.T) *server {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	store := services.NewRedisServiceFromClient(client, clk)
	economy := config.DefaultEconomy()
	catalog := models.DefaultCatalog()

	hub := handlers.NewWebSocketHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	mining := services.NewMiningService(store, catalog, economy, hub, logger)
	matches := services.NewMatchService(store, repository.NopArchive{}, hub, logger)
	queue := services.NewMatchmakingQueue(store, mining, matches, economy, clk, hub, logger)

	game := handlers.NewGameHandler(mining, catalog, logger)
	damas := handlers.NewDamasHandler(queue, matches, repository.NopArchive{}, logger)
	ws := handlers.NewWebSocketHandler(hub, mining, logger)

	router := gin.New()
	router.GET("/api/ranking/top", game.GetRanking)
	api := router.Group("/api")
	api.Use(func(c *gin.Context) {
		id := c.GetHeader("X-Player")
		if id == "" {
			id = c.Query("player")
		}
		c.Set(middleware.ContextUserID, id)
		c.Set(middleware.ContextUsername, "name-"+id)
		c.Next()
	})
	api.GET("/game/state", game.GetState)
	api.GET("/game/catalog", game.GetCatalog)
	api.POST("/game/buy-item", game.BuyItem)
	api.POST("/game/place-rack", game.PlaceRack)
	api.POST("/game/place-unit", game.PlaceUnit)
	api.POST("/game/recharge", game.Recharge)
	api.POST("/fazenda/buy-land", game.BuyLand)
	api.GET("/ledger/transactions", game.GetTransactions)
	api.POST("/damas/matchmaking/join", damas.JoinQueue)
	api.GET("/damas/matchmaking/status", damas.QueueStatus)
	api.POST("/damas/matchmaking/leave", damas.LeaveQueue)
	api.GET("/damas/game/:id", damas.GetMatch)
	api.POST("/damas/game/:id/move", damas.Move)
	api.POST("/damas/game/:id/emoji", damas.SendEmoji)
	api.GET("/damas/history", damas.GetHistory)
	api.GET("/damas/stats", damas.GetStats)
	api.GET("/ws", ws.HandleWebSocket)

	return &server{router: router, store: store, hub: hub}
}

func (s *server) fund(t *testing.T, playerID string, amount int64) {
	t.Helper()
	_, err := s.store.UpdateLedger(context.Background(), playerID, func(_ *services.StateTx, l *models.Ledger) error {
		l.Balance = decimal.NewFromInt(amount)
		return nil
	})
	require.NoError(t, err)
}

func (s *server) do(t *testing.T, method, path, playerID string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Player", playerID)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w.Code, out
}

func TestGetStateReturnsDefaults(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodGet, "/api/game/state", "p1", nil)
	require.Equal(t, http.StatusOK, code)

	state := body["state"].(map[string]interface{})
	assert.Equal(t, "10", state["balance"])
	assert.Equal(t, float64(100), state["energy"])
	assert.Equal(t, "name-p1", state["display_name"])
	assert.Equal(t, float64(0), body["total_power"])
}

func TestShopAndLayoutFlow(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodPost, "/api/game/buy-item", "p1", gin.H{"category": "unit", "item_id": "miner004"})
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Contains(t, body["details"], "insufficient funds")

	code, _ = s.do(t, http.MethodPost, "/api/game/buy-item", "p1", gin.H{"category": "gpu", "item_id": "miner001"})
	assert.Equal(t, http.StatusBadRequest, code)

	s.fund(t, "p1", 50)
	code, _ = s.do(t, http.MethodPost, "/api/game/buy-item", "p1", gin.H{"category": "rack", "item_id": "rack001"})
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPost, "/api/game/buy-item", "p1", gin.H{"category": "unit", "item_id": "miner002"})
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/game/place-rack", "p1", gin.H{"room": 0, "slot": 0, "rack_id": "rack001"})
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPost, "/api/game/place-unit", "p1", gin.H{"room": 0, "slot": 0, "unit": 0, "unit_id": "miner002"})
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodPost, "/api/game/place-unit", "p1", gin.H{"room": 0, "slot": 0, "unit": 0, "unit_id": "miner002"})
	assert.Equal(t, http.StatusConflict, code)

	code, body = s.do(t, http.MethodGet, "/api/game/state", "p1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(5), body["total_power"])

	code, body = s.do(t, http.MethodGet, "/api/ledger/transactions?limit=10", "p1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["count"])
}

func TestDamasFlow(t *testing.T) {
	s := newServer(t)
	s.fund(t, "p1", 100)
	s.fund(t, "p2", 100)

	code, body := s.do(t, http.MethodPost, "/api/damas/matchmaking/join", "p3", nil)
	assert.Equal(t, http.StatusPaymentRequired, code)

	code, body = s.do(t, http.MethodPost, "/api/damas/matchmaking/join", "p1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "searching", body["status"])

	code, body = s.do(t, http.MethodPost, "/api/damas/matchmaking/join", "p2", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "matched", body["status"])
	matchID := body["match_id"].(string)

	code, body = s.do(t, http.MethodGet, "/api/damas/matchmaking/status", "p1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["match_found"])
	assert.Equal(t, matchID, body["match_id"])

	code, _ = s.do(t, http.MethodGet, "/api/damas/game/"+matchID, "p3", nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(t, http.MethodGet, "/api/damas/game/match_missing", "p1", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = s.do(t, http.MethodPost, "/api/damas/game/"+matchID+"/emoji", "p1", gin.H{"emoji": "🔥"})
	require.Equal(t, http.StatusOK, code)

	move := gin.H{"board": models.NewBoard(), "winner": "A"}
	code, body = s.do(t, http.MethodPost, "/api/damas/game/"+matchID+"/move", "p1", move)
	require.Equal(t, http.StatusOK, code)
	match := body["match"].(map[string]interface{})
	assert.Equal(t, "finished", match["status"])

	code, _ = s.do(t, http.MethodPost, "/api/damas/game/"+matchID+"/move", "p1", move)
	assert.Equal(t, http.StatusConflict, code)

	code, body = s.do(t, http.MethodGet, "/api/game/state", "p1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "125", body["state"].(map[string]interface{})["balance"])

	code, body = s.do(t, http.MethodGet, "/api/damas/history", "p2", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])

	code, body = s.do(t, http.MethodPost, "/api/damas/matchmaking/leave", "p1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["left"])
}

func TestRankingIsPublic(t *testing.T) {
	s := newServer(t)
	s.fund(t, "rich", 500)
	s.fund(t, "poor", 20)

	code, body := s.do(t, http.MethodGet, "/api/ranking/top?limit=1", "", nil)
	require.Equal(t, http.StatusOK, code)
	ranking := body["ranking"].([]interface{})
	require.Len(t, ranking, 1)
	assert.Equal(t, "rich", ranking[0].(map[string]interface{})["player_id"])
}

func TestWebSocketPushesLedgerUpdates(t *testing.T) {
	s := newServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?player=p1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg handlers.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, handlers.MessageLedgerUpdate, msg.Type)

	require.NoError(t, conn.WriteJSON(handlers.Message{Type: handlers.MessagePing}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, handlers.MessagePong, msg.Type)

	s.fund(t, "p1", 50)
	code, _ := s.do(t, http.MethodPost, "/api/game/buy-item", "p1", gin.H{"category": "unit", "item_id": "miner001"})
	require.Equal(t, http.StatusOK, code)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, handlers.MessageLedgerUpdate, msg.Type)
	assert.Equal(t, "p1", msg.UserID)
	assert.Equal(t, "40", msg.Data.(map[string]interface{})["balance"])
}
