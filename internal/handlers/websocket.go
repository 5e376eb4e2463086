package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	ws "github.com/echoproof/chat-gateway/internal/websocket"
)

// WebSocketHandler поднимает транспорт и заводит соединение в хаб
type WebSocketHandler struct {
	hub      *ws.Hub
	events   *EventHandler
	presence Presence
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hub *ws.Hub, events *EventHandler, presence Presence, allowedOrigins []string, log *zap.Logger) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &WebSocketHandler{
		hub:      hub,
		events:   events,
		presence: presence,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Не-браузерные клиенты Origin не шлют
				return origin == "" || allowed[origin]
			},
		},
	}
}

// HandleWebSocket обрабатывает рукопожатие: имя и кошелек приходят
// параметрами запроса, дальше общение идет событиями
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	username := c.Query("username")
	wallet := c.Query("walletAddress")

	sock, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewConn(h.hub, sock, username, wallet, h.log)
	h.hub.Register(client)
	h.presence.Connected(context.Background(), client.ID.String(), client.Name(), string(client.Status()))

	client.SendEvent(ws.EventConnectionStatus, ws.ConnectionStatusPayload{
		Status:     "connected",
		Message:    "Connected to the chat server. You can now join a room.",
		UserID:     client.ID,
		ServerTime: time.Now(),
	})

	go client.WritePump()
	go client.ReadPump(h.events)
}
