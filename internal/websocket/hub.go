package websocket

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// room — авторитетное членство одной комнаты. Собственный мьютекс
// сериализует мутации этой комнаты, не мешая остальным
type room struct {
	mu      sync.Mutex
	members map[uuid.UUID]*Conn
	history *historyRing

	// closed выставляется при удалении опустевшей комнаты; join,
	// заставший этот флаг, создает запись заново
	closed bool
}

// Hub хранит таблицу соединений и реестр комнат. Комната
// материализуется при первом успешном join и удаляется вместе с
// буфером истории, когда пустеет
type Hub struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*Conn
	rooms map[uuid.UUID]*room

	historyCap int
	log        *zap.Logger
}

func NewHub(historyCap int, log *zap.Logger) *Hub {
	return &Hub{
		conns:      make(map[uuid.UUID]*Conn),
		rooms:      make(map[uuid.UUID]*room),
		historyCap: historyCap,
		log:        log,
	}
}

// Register добавляет соединение в таблицу
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()

	h.log.Info("client connected",
		zap.String("conn_id", c.ID.String()),
		zap.String("name", c.Name()))
}

// Conn возвращает живое соединение по id. Отсутствие означает, что
// соединение уже разорвано: результаты незавершенных операций для него
// отбрасываются
func (h *Hub) Conn(id uuid.UUID) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[id]
	return c, ok
}

// RoomDeparture — итог выхода из одной комнаты при разрыве соединения
type RoomDeparture struct {
	RoomID       uuid.UUID
	Participants []Participant
}

// Unregister убирает соединение из всех его комнат и из таблицы.
// Идемпотентен: повторный вызов для уже удаленного соединения — no-op
func (h *Hub) Unregister(c *Conn) []RoomDeparture {
	h.mu.Lock()
	if _, ok := h.conns[c.ID]; !ok {
		h.mu.Unlock()
		return nil
	}
	delete(h.conns, c.ID)
	h.mu.Unlock()

	var departures []RoomDeparture
	for _, roomID := range c.Rooms() {
		parts, left := h.Leave(c, roomID)
		if left && parts != nil {
			departures = append(departures, RoomDeparture{RoomID: roomID, Participants: parts})
		}
	}

	c.closeSend()

	h.log.Info("client disconnected",
		zap.String("conn_id", c.ID.String()),
		zap.Int("rooms_left", len(departures)))

	return departures
}

func (h *Hub) getOrCreateRoom(roomID uuid.UUID) *room {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if ok {
		return r
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok = h.rooms[roomID]; ok {
		return r
	}
	r = &room{
		members: make(map[uuid.UUID]*Conn),
		history: newHistoryRing(h.historyCap),
	}
	h.rooms[roomID] = r
	return r
}

// Join добавляет соединение в комнату. Повторный join той же комнаты
// не дублирует членство, но обновляет имя. Возвращает снимок
// участников (joiner помечен как текущий) и буфер истории
func (h *Hub) Join(c *Conn, roomID uuid.UUID, name string) ([]Participant, []MessageRecord) {
	for {
		r := h.getOrCreateRoom(roomID)

		r.mu.Lock()
		if r.closed {
			// Комната удалена между lookup и lock, пробуем заново
			r.mu.Unlock()
			continue
		}

		if name != "" {
			c.SetName(name)
		}
		r.members[c.ID] = c
		c.addRoom(roomID)

		parts := r.snapshotLocked(c.ID)
		history := r.history.Snapshot()
		r.mu.Unlock()

		return parts, history
	}
}

// Leave убирает соединение из комнаты. Опустевшая комната удаляется
// вместе с буфером истории; последующий join создаст ее заново пустой.
// Возвращает снимок оставшихся участников (nil, если комната удалена)
func (h *Hub) Leave(c *Conn, roomID uuid.UUID) ([]Participant, bool) {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		c.removeRoom(roomID)
		return nil, false
	}

	r.mu.Lock()
	if _, member := r.members[c.ID]; !member {
		r.mu.Unlock()
		c.removeRoom(roomID)
		return nil, false
	}

	delete(r.members, c.ID)
	c.removeRoom(roomID)

	if len(r.members) == 0 {
		r.closed = true
		r.mu.Unlock()

		h.mu.Lock()
		if h.rooms[roomID] == r {
			delete(h.rooms, roomID)
		}
		h.mu.Unlock()

		h.log.Debug("room emptied and removed", zap.String("room_id", roomID.String()))
		return nil, true
	}

	parts := r.snapshotLocked(uuid.Nil)
	r.mu.Unlock()
	return parts, true
}

// IsMember проверяет членство по авторитетному множеству комнаты
func (h *Hub) IsMember(connID, roomID uuid.UUID) bool {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, member := r.members[connID]
	return member
}

// AppendHistory кладет запись в буфер комнаты; false, если комнаты нет
func (h *Hub) AppendHistory(roomID uuid.UUID, rec MessageRecord) bool {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.history.Append(rec)
	return true
}

// BroadcastToRoom рассылает кадр всем участникам комнаты, кроме
// exclude (uuid.Nil — без исключений). Отправка неблокирующая:
// переполненная очередь клиента — потеря кадра для него, не затор
func (h *Hub) BroadcastToRoom(roomID uuid.UUID, data []byte, exclude uuid.UUID) {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, member := range r.members {
		if id == exclude {
			continue
		}
		if err := member.enqueue(data); err != nil {
			h.log.Warn("dropping frame for slow client",
				zap.String("conn_id", id.String()),
				zap.String("room_id", roomID.String()))
		}
	}
}

// Participants возвращает снимок участников; current помечается
// как текущий пользователь
func (h *Hub) Participants(roomID, current uuid.UUID) []Participant {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return []Participant{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(current)
}

// Stop закрывает все соединения при остановке процесса
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.conns {
		c.closeSend()
		if c.sock != nil {
			c.sock.Close()
		}
	}
	h.conns = make(map[uuid.UUID]*Conn)
	h.rooms = make(map[uuid.UUID]*room)
}

func (r *room) snapshotLocked(current uuid.UUID) []Participant {
	parts := make([]Participant, 0, len(r.members))
	for id, member := range r.members {
		parts = append(parts, Participant{
			ID:            id,
			Name:          member.Name(),
			Status:        member.Status(),
			IsCurrentUser: id == current,
		})
	}
	return parts
}
