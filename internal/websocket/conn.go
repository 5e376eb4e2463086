package websocket

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего кадра
	maxMessageSize = 512 * 1024 // 512KB
)

// EventSink обрабатывает входящие события и разрыв соединения
type EventSink interface {
	HandleEvent(c *Conn, ev *Event)
	HandleDisconnect(c *Conn)
}

// Conn — одно живое клиентское соединение. Эфемерно: создается при
// подключении транспорта, уничтожается при разрыве. Постоянная
// идентичность пользователя живет в БД, не здесь
type Conn struct {
	ID   uuid.UUID
	Send chan []byte

	sock *websocket.Conn
	hub  *Hub
	log  *zap.Logger

	mu     sync.RWMutex
	name   string
	wallet string
	status Status
	rooms  map[uuid.UUID]bool
	closed bool
}

// NewConn создает соединение. Пустое имя заменяется плейсхолдером
func NewConn(hub *Hub, sock *websocket.Conn, name, wallet string, log *zap.Logger) *Conn {
	id := uuid.New()
	if name == "" {
		name = fmt.Sprintf("User-%s", id.String()[:8])
	}
	return &Conn{
		ID:     id,
		Send:   make(chan []byte, 256),
		sock:   sock,
		hub:    hub,
		log:    log,
		name:   name,
		wallet: wallet,
		status: StatusOnline,
		rooms:  make(map[uuid.UUID]bool),
	}
}

func (c *Conn) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Conn) SetName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

func (c *Conn) Wallet() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wallet
}

func (c *Conn) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Conn) SetStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

func (c *Conn) Rooms() []uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rooms := make([]uuid.UUID, 0, len(c.rooms))
	for roomID := range c.rooms {
		rooms = append(rooms, roomID)
	}
	return rooms
}

func (c *Conn) InRoom(roomID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[roomID]
}

func (c *Conn) addRoom(roomID uuid.UUID) {
	c.mu.Lock()
	c.rooms[roomID] = true
	c.mu.Unlock()
}

func (c *Conn) removeRoom(roomID uuid.UUID) {
	c.mu.Lock()
	delete(c.rooms, roomID)
	c.mu.Unlock()
}

// enqueue кладет кадр в очередь отправки без блокировки
func (c *Conn) enqueue(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.Send <- data:
		return nil
	default:
		return ErrClientQueueFull
	}
}

// closeSend закрывает очередь отправки ровно один раз
func (c *Conn) closeSend() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.Send)
}

// SendEvent сериализует событие и ставит его в очередь соединения
func (c *Conn) SendEvent(t EventType, payload interface{}) error {
	data, err := MarshalEvent(t, payload)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

func (c *Conn) SendError(message string) {
	if err := c.SendEvent(EventError, ErrorPayload{Message: message}); err != nil {
		c.log.Warn("failed to send error to client",
			zap.String("conn_id", c.ID.String()),
			zap.Error(err))
	}
}

// ReadPump читает события клиента и передает их обработчику.
// События одного соединения обрабатываются последовательно, что дает
// порядок рассылки per-sender
func (c *Conn) ReadPump(sink EventSink) {
	defer func() {
		sink.HandleDisconnect(c)
		c.sock.Close()
	}()

	c.sock.SetReadLimit(maxMessageSize)
	c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		c.sock.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var ev Event
		if err := c.sock.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read error",
					zap.String("conn_id", c.ID.String()),
					zap.Error(err))
			}
			break
		}

		sink.HandleEvent(c, &ev)
	}
}

// WritePump переносит кадры из очереди в сокет и шлет ping по таймеру
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.sock.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.sock.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.sock.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Дописываем все накопившиеся кадры
			n := len(c.Send)
			for i := 0; i < n; i++ {
				queued, ok := <-c.Send
				if !ok {
					c.sock.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.sock.WriteMessage(websocket.TextMessage, queued); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
