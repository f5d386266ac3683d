package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lulacoin-miner-backend/internal/models"
	"lulacoin-miner-backend/internal/services"
)

const writeWait = 10 * time.Second

const (
	MessageLedgerUpdate = "LEDGER_UPDATE"
	MessageMatchFound   = "MATCH_FOUND"
	MessageMatchUpdate  = "MATCH_UPDATE"
	MessagePing         = "PING"
	MessagePong         = "PONG"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Message struct {
	Type    string      `json:"type"`
	UserID  string      `json:"user_id,omitempty"`
	MatchID string      `json:"match_id,omitempty"`
	Data    interface{} `json:"data"`
}

const clientSendBuffer = 32

type Client struct {
	UserID    string
	conn      *websocket.Conn
	send      chan *Message
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(userID string, conn *websocket.Conn, buffer int) *Client {
	return &Client{
		UserID: userID,
		conn:   conn,
		send:   make(chan *Message, buffer),
		done:   make(chan struct{}),
	}
}

// enqueue never blocks; a client that stops draining its buffer loses messages.
func (c *Client) enqueue(msg *Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writePump is the only writer on the connection.
func (c *Client) writePump(logger *zap.Logger) {
	defer c.conn.Close()
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Debug("websocket write failed", zap.String("user_id", c.UserID), zap.Error(err))
				return
			}
		case <-c.done:
			return
		}
	}
}

// WebSocketHub fans server events out to the connections of each player. It implements
// services.Broadcaster.
type WebSocketHub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	logger     *zap.Logger
}

var _ services.Broadcaster = (*WebSocketHub)(nil)

func NewWebSocketHub(logger *zap.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (hub *WebSocketHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(hub.done)
			for _, conns := range hub.clients {
				for client := range conns {
					client.close()
				}
			}
			return

		case client := <-hub.register:
			if hub.clients[client.UserID] == nil {
				hub.clients[client.UserID] = make(map[*Client]struct{})
			}
			hub.clients[client.UserID][client] = struct{}{}
			hub.logger.Debug("client registered", zap.String("user_id", client.UserID))

		case client := <-hub.unregister:
			if conns, ok := hub.clients[client.UserID]; ok {
				delete(conns, client)
				if len(conns) == 0 {
					delete(hub.clients, client.UserID)
				}
				hub.logger.Debug("client unregistered", zap.String("user_id", client.UserID))
			}

		case message := <-hub.broadcast:
			hub.broadcastMessage(message)
		}
	}
}

func (hub *WebSocketHub) broadcastMessage(message *Message) {
	for client := range hub.clients[message.UserID] {
		if !client.enqueue(message) {
			hub.logger.Warn("websocket client buffer full, dropping message",
				zap.String("type", message.Type),
				zap.String("user_id", client.UserID),
			)
		}
	}
}

func (hub *WebSocketHub) publish(msg *Message) {
	select {
	case hub.broadcast <- msg:
	default:
		hub.logger.Warn("websocket broadcast buffer full, dropping message",
			zap.String("type", msg.Type),
			zap.String("user_id", msg.UserID),
		)
	}
}

func (hub *WebSocketHub) BroadcastLedgerUpdate(ledger *models.Ledger) {
	hub.publish(&Message{
		Type:   MessageLedgerUpdate,
		UserID: ledger.PlayerID,
		Data:   ledger,
	})
}

func (hub *WebSocketHub) BroadcastMatchFound(m *models.MatchSession) {
	hub.publishToPlayers(MessageMatchFound, m)
}

func (hub *WebSocketHub) BroadcastMatchUpdate(m *models.MatchSession) {
	hub.publishToPlayers(MessageMatchUpdate, m)
}

func (hub *WebSocketHub) publishToPlayers(msgType string, m *models.MatchSession) {
	for _, p := range m.Players {
		hub.publish(&Message{
			Type:    msgType,
			UserID:  p.PlayerID,
			MatchID: m.ID,
			Data:    m,
		})
	}
}

type WebSocketHandler struct {
	hub    *WebSocketHub
	mining *services.MiningService
	logger *zap.Logger
}

func NewWebSocketHandler(hub *WebSocketHub, mining *services.MiningService, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		mining: mining,
		logger: logger,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	player := currentPlayer(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade to websocket", zap.Error(err))
		return
	}

	client := newClient(player.ID, conn, clientSendBuffer)
	go client.writePump(h.logger)

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		client.close()
		return
	}

	defer func() {
		select {
		case h.hub.unregister <- client:
		case <-h.hub.done:
		}
		client.close()
		conn.Close()
	}()

	h.sendState(c.Request.Context(), client, player)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket error", zap.String("user_id", player.ID), zap.Error(err))
			}
			break
		}

		if msg.Type == MessagePing {
			client.enqueue(&Message{
				Type: MessagePong,
				Data: gin.H{"timestamp": time.Now().Unix()},
			})
		}
	}
}

// sendState pushes the reconciled ledger right after connecting.
func (h *WebSocketHandler) sendState(ctx context.Context, client *Client, player models.Player) {
	state, err := h.mining.State(ctx, player)
	if err != nil {
		h.logger.Error("failed to load state for websocket", zap.String("user_id", player.ID), zap.Error(err))
		return
	}
	client.enqueue(&Message{
		Type:   MessageLedgerUpdate,
		UserID: player.ID,
		Data:   state.Ledger,
	})
}
