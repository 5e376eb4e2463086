package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/echoproof/chat-gateway/internal/database"
	"github.com/echoproof/chat-gateway/internal/models"
	"github.com/echoproof/chat-gateway/internal/tokengate"
	ws "github.com/echoproof/chat-gateway/internal/websocket"
)

// Сообщения об ошибках, видимые клиенту. Отказ по балансу и сбой RPC
// различимы: у них разные тексты
const (
	errRoomRequired       = "Room ID is required."
	errRoomNotFound       = "Room does not exist."
	errRoomFetch          = "Error fetching room details."
	errWalletRequired     = "Wallet address is required for token gated rooms."
	errUnknownStandard    = "Unknown token standard for this room."
	errOwnershipCheck     = "Error verifying token ownership."
	errTokenNotOwned      = "You do not own the required token to join this room."
	errMessageRequired    = "Room ID and message are required."
	errNotInRoom          = "You are not in this room."
	errInvalidStatus      = "Valid status is required (online, away, busy)."
	errInvalidPayload     = "Invalid event payload."
	placeholderSenderName = "Unknown User"
)

// Store — поверхность долговременного хранилища, нужная диспетчеру
type Store interface {
	GetChatroom(ctx context.Context, id string) (*models.Chatroom, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	InsertMessage(ctx context.Context, msg *models.ChatMessage) error
	GetRoomMessagesDesc(ctx context.Context, roomID string, limit int) ([]models.ChatMessage, error)
}

// Presence — best-effort зеркало присутствия
type Presence interface {
	Connected(ctx context.Context, connID, name, status string)
	StatusChanged(ctx context.Context, connID, status string)
	Disconnected(ctx context.Context, connID string)
	JoinedRoom(ctx context.Context, roomID, connID string)
	LeftRoom(ctx context.Context, roomID, connID string)
}

// EventHandler маршрутизирует входящие события по компонентам шлюза
// и ведет жизненный цикл соединения
type EventHandler struct {
	db         Store
	hub        *ws.Hub
	authorizer tokengate.Authorizer
	presence   Presence
	log        *zap.Logger

	authorizeTimeout time.Duration
	storeTimeout     time.Duration
	historyLimit     int
}

func NewEventHandler(
	db Store,
	hub *ws.Hub,
	authorizer tokengate.Authorizer,
	presence Presence,
	log *zap.Logger,
	authorizeTimeout, storeTimeout time.Duration,
	historyLimit int,
) *EventHandler {
	return &EventHandler{
		db:               db,
		hub:              hub,
		authorizer:       authorizer,
		presence:         presence,
		log:              log,
		authorizeTimeout: authorizeTimeout,
		storeTimeout:     storeTimeout,
		historyLimit:     historyLimit,
	}
}

func (h *EventHandler) HandleEvent(c *ws.Conn, ev *ws.Event) {
	switch ev.Type {
	case ws.EventPing:
		c.SendEvent(ws.EventPong, nil)

	case ws.EventJoin:
		h.handleJoin(c, ev)

	case ws.EventLeave:
		h.handleLeave(c, ev)

	case ws.EventMessage:
		h.handleMessage(c, ev)

	case ws.EventGetHistory:
		h.handleGetHistory(c, ev)

	case ws.EventGetParticipants:
		h.handleGetParticipants(c, ev)

	case ws.EventUpdateStatus:
		h.handleUpdateStatus(c, ev)

	default:
		h.log.Debug("unknown event type",
			zap.String("type", string(ev.Type)),
			zap.String("conn_id", c.ID.String()))
	}
}

// HandleDisconnect выполняет терминальную очистку: выход из всех
// комнат, рассылка user_left оставшимся, удаление записи соединения
func (h *EventHandler) HandleDisconnect(c *ws.Conn) {
	name := c.Name()
	departures := h.hub.Unregister(c)

	for _, dep := range departures {
		h.broadcastUserLeft(dep.RoomID, c.ID, name, dep.Participants)
		h.presence.LeftRoom(context.Background(), dep.RoomID.String(), c.ID.String())
	}

	h.presence.Disconnected(context.Background(), c.ID.String())
}

// handleJoin: метаданные комнаты читаются из БД при каждой попытке
// (гейтинг мог измениться), гейт проверяется до любой мутации
func (h *EventHandler) handleJoin(c *ws.Conn, ev *ws.Event) {
	var p ws.JoinPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		c.SendError(errInvalidPayload)
		return
	}

	if p.Room == "" {
		c.SendError(errRoomRequired)
		return
	}

	roomID, err := uuid.Parse(p.Room)
	if err != nil {
		c.SendError(errRoomNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.storeTimeout)
	room, err := h.db.GetChatroom(ctx, p.Room)
	cancel()
	if err != nil {
		if errors.Is(err, database.ErrRoomNotFound) {
			c.SendError(errRoomNotFound)
		} else {
			h.log.Error("fetching room details failed",
				zap.String("room_id", p.Room), zap.Error(err))
			c.SendError(errRoomFetch)
		}
		return
	}

	if room.TokenGated {
		if !h.authorizeGatedJoin(c, room) {
			return
		}
		// Соединение могло умереть, пока шел RPC: результат
		// отбрасывается без мутаций
		if _, alive := h.hub.Conn(c.ID); !alive {
			h.log.Debug("discarding authorization for dead connection",
				zap.String("conn_id", c.ID.String()))
			return
		}
	}

	parts, history := h.hub.Join(c, roomID, p.Username)
	h.presence.JoinedRoom(context.Background(), p.Room, c.ID.String())

	// join_success уходит джойнеру раньше, чем user_joined остальным
	c.SendEvent(ws.EventJoinSuccess, ws.JoinSuccessPayload{
		Message:      "You have joined the room: " + p.Room,
		RoomID:       p.Room,
		Participants: parts,
		History:      history,
	})

	h.broadcastToRoom(roomID, ws.EventUserJoined, ws.UserJoinedPayload{
		Message:      c.Name() + " has joined the room!",
		Username:     c.Name(),
		UserID:       c.ID,
		Participants: parts,
	}, c.ID)

	h.log.Info("client joined room",
		zap.String("conn_id", c.ID.String()),
		zap.String("room_id", p.Room),
		zap.Bool("token_gated", room.TokenGated))
}

// authorizeGatedJoin выполняет проверку владения токеном. true — вход
// разрешен; при любом другом исходе клиенту уже отправлена ошибка
func (h *EventHandler) authorizeGatedJoin(c *ws.Conn, room *models.Chatroom) bool {
	wallet := c.Wallet()
	if wallet == "" {
		c.SendError(errWalletRequired)
		return false
	}

	if room.TokenStandard == nil || room.TokenAddress == nil {
		c.SendError(errUnknownStandard)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.authorizeTimeout)
	decision, err := h.authorizer.Authorize(ctx, wallet, *room.TokenAddress, tokengate.Standard(*room.TokenStandard))
	cancel()

	if err != nil {
		switch {
		case errors.Is(err, tokengate.ErrWalletRequired):
			c.SendError(errWalletRequired)
		case errors.Is(err, tokengate.ErrUnknownStandard):
			c.SendError(errUnknownStandard)
		default:
			// Сбой RPC или таймаут: fail closed, но текст отличен
			// от отказа по нулевому балансу
			h.log.Error("token ownership check failed",
				zap.String("wallet", wallet),
				zap.String("token", *room.TokenAddress),
				zap.Error(err))
			c.SendError(errOwnershipCheck)
		}
		return false
	}

	if decision != tokengate.Authorized {
		c.SendError(errTokenNotOwned)
		return false
	}

	return true
}

func (h *EventHandler) handleLeave(c *ws.Conn, ev *ws.Event) {
	var p ws.LeavePayload
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		c.SendError(errInvalidPayload)
		return
	}

	if p.Room == "" {
		c.SendError(errRoomRequired)
		return
	}

	roomID, err := uuid.Parse(p.Room)
	if err != nil {
		c.SendError(errRoomNotFound)
		return
	}

	parts, left := h.hub.Leave(c, roomID)
	if left {
		h.presence.LeftRoom(context.Background(), p.Room, c.ID.String())
	}

	c.SendEvent(ws.EventLeaveSuccess, ws.LeaveSuccessPayload{
		Message: "You have left the room: " + p.Room,
		RoomID:  p.Room,
	})

	if left && parts != nil {
		h.broadcastUserLeft(roomID, c.ID, c.Name(), parts)
	}
}

// handleMessage: членство проверяется по авторитетному множеству
// комнаты, атрибуция берется из постоянной записи пользователя.
// Рассылка идет до записи в БД; сбой персистентности логируется и
// не откатывает уже доставленное (принятая щель долговечности)
func (h *EventHandler) handleMessage(c *ws.Conn, ev *ws.Event) {
	var p ws.MessagePayload
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		c.SendError(errInvalidPayload)
		return
	}

	if p.Room == "" || p.Message == "" {
		c.SendError(errMessageRequired)
		return
	}

	roomID, err := uuid.Parse(p.Room)
	if err != nil {
		c.SendError(errNotInRoom)
		return
	}

	if !h.hub.IsMember(c.ID, roomID) {
		c.SendError(errNotInRoom)
		return
	}

	// Имя из события используется только как запасной вариант;
	// запись в БД — источник истины для атрибуции
	senderName := p.Username
	if senderName == "" {
		senderName = c.Name()
	}
	senderWallet := p.WalletAddress

	ctx, cancel := context.WithTimeout(context.Background(), h.storeTimeout)
	user, err := h.db.GetUser(ctx, p.UserDbID)
	cancel()
	if err != nil {
		h.log.Warn("fetching sender details failed",
			zap.String("user_id", p.UserDbID), zap.Error(err))
	} else {
		if user.Name != "" {
			senderName = user.Name
		}
		if user.WalletAddress != "" {
			senderWallet = user.WalletAddress
		}
	}

	rec := ws.MessageRecord{
		ID: uuid.New(),
		Sender: ws.Sender{
			ID:            p.UserDbID,
			Name:          senderName,
			WalletAddress: senderWallet,
		},
		Content:               p.Message,
		EncryptedSymmetricKey: p.EncryptedSymmetricKey,
		Timestamp:             time.Now(),
	}

	h.hub.AppendHistory(roomID, rec)

	// Всем кроме отправителя; отправителю — отдельный ack с той же
	// записью, чтобы он сверил свой оптимистичный эхо-вывод
	h.broadcastToRoom(roomID, ws.EventMessageReceived, rec, c.ID)
	c.SendEvent(ws.EventMessageSent, rec)

	go h.persistMessage(roomID, rec)
}

func (h *EventHandler) persistMessage(roomID uuid.UUID, rec ws.MessageRecord) {
	senderID, err := uuid.Parse(rec.Sender.ID)
	if err != nil {
		h.log.Error("message not persisted: invalid sender id",
			zap.String("message_id", rec.ID.String()),
			zap.String("sender_id", rec.Sender.ID))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.storeTimeout)
	defer cancel()

	err = h.db.InsertMessage(ctx, &models.ChatMessage{
		ID:                    rec.ID,
		ChatroomID:            roomID,
		SenderID:              senderID,
		Message:               rec.Content,
		EncryptedSymmetricKey: rec.EncryptedSymmetricKey,
		SentAt:                rec.Timestamp,
	})
	if err != nil {
		// Сообщение уже доставлено; потеря персистентности —
		// задокументированный best-effort
		h.log.Error("message not persisted",
			zap.String("message_id", rec.ID.String()),
			zap.String("room_id", roomID.String()),
			zap.Error(err))
	}
}

// handleGetHistory читает только из БД; буфер в памяти здесь не
// участвует. Отсутствующий отправитель заменяется плейсхолдером
func (h *EventHandler) handleGetHistory(c *ws.Conn, ev *ws.Event) {
	var p ws.HistoryRequestPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		c.SendError(errInvalidPayload)
		return
	}

	if p.Room == "" {
		c.SendError(errRoomRequired)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.storeTimeout)
	rows, err := h.db.GetRoomMessagesDesc(ctx, p.Room, h.historyLimit)
	cancel()
	if err != nil {
		h.log.Error("fetching message history failed",
			zap.String("room_id", p.Room), zap.Error(err))
		rows = nil
	}

	// Из порядка "новые первыми" в хронологический
	messages := make([]ws.MessageRecord, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		sender := ws.Sender{ID: row.SenderID.String(), Name: placeholderSenderName}
		if row.Sender != nil {
			if row.Sender.Name != "" {
				sender.Name = row.Sender.Name
			}
			sender.WalletAddress = row.Sender.WalletAddress
		}
		messages = append(messages, ws.MessageRecord{
			ID:                    row.ID,
			Sender:                sender,
			Content:               row.Message,
			EncryptedSymmetricKey: row.EncryptedSymmetricKey,
			Timestamp:             row.SentAt,
		})
	}

	c.SendEvent(ws.EventHistory, ws.HistoryPayload{
		Room:     p.Room,
		Messages: messages,
	})
}

func (h *EventHandler) handleGetParticipants(c *ws.Conn, ev *ws.Event) {
	var p ws.ParticipantsRequestPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		c.SendError(errInvalidPayload)
		return
	}

	if p.Room == "" {
		c.SendError(errRoomRequired)
		return
	}

	roomID, err := uuid.Parse(p.Room)
	if err != nil {
		c.SendError(errRoomNotFound)
		return
	}

	c.SendEvent(ws.EventParticipantsList, ws.ParticipantsListPayload{
		Room:         p.Room,
		Participants: h.hub.Participants(roomID, c.ID),
	})
}

// handleUpdateStatus рассылает статус во все комнаты соединения,
// включая самого отправителя, чтобы все клиенты сошлись к одному виду
func (h *EventHandler) handleUpdateStatus(c *ws.Conn, ev *ws.Event) {
	var p ws.StatusPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		c.SendError(errInvalidPayload)
		return
	}

	if !p.Status.Valid() {
		c.SendError(errInvalidStatus)
		return
	}

	old := c.Status()
	c.SetStatus(p.Status)
	h.presence.StatusChanged(context.Background(), c.ID.String(), string(p.Status))

	for _, roomID := range c.Rooms() {
		h.broadcastToRoom(roomID, ws.EventStatusUpdated, ws.StatusUpdatedPayload{
			UserID:       c.ID,
			Username:     c.Name(),
			OldStatus:    old,
			NewStatus:    p.Status,
			Participants: h.hub.Participants(roomID, uuid.Nil),
		}, uuid.Nil)
	}
}

func (h *EventHandler) broadcastToRoom(roomID uuid.UUID, t ws.EventType, payload interface{}, exclude uuid.UUID) {
	data, err := ws.MarshalEvent(t, payload)
	if err != nil {
		h.log.Error("marshaling broadcast failed", zap.String("type", string(t)), zap.Error(err))
		return
	}
	h.hub.BroadcastToRoom(roomID, data, exclude)
}

func (h *EventHandler) broadcastUserLeft(roomID, connID uuid.UUID, name string, parts []ws.Participant) {
	h.broadcastToRoom(roomID, ws.EventUserLeft, ws.UserLeftPayload{
		Message:      name + " has left the room.",
		Username:     name,
		UserID:       connID,
		Participants: parts,
	}, uuid.Nil)
}
