package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType определяет типы событий протокола
type EventType string

const (
	// Входящие события
	EventJoin            EventType = "join"
	EventLeave           EventType = "leave"
	EventMessage         EventType = "message"
	EventGetHistory      EventType = "get_history"
	EventGetParticipants EventType = "get_participants"
	EventUpdateStatus    EventType = "update_status"
	EventPing            EventType = "ping"

	// Исходящие события
	EventConnectionStatus EventType = "connection_status"
	EventJoinSuccess      EventType = "join_success"
	EventUserJoined       EventType = "user_joined"
	EventUserLeft         EventType = "user_left"
	EventLeaveSuccess     EventType = "leave_success"
	EventMessageReceived  EventType = "message_received"
	EventMessageSent      EventType = "message_sent"
	EventHistory          EventType = "history"
	EventParticipantsList EventType = "participants_list"
	EventStatusUpdated    EventType = "status_updated"
	EventPong             EventType = "pong"
	EventError            EventType = "error"
)

type Event struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// MarshalEvent упаковывает полезную нагрузку в конверт события
func MarshalEvent(t EventType, payload interface{}) ([]byte, error) {
	ev := Event{
		Type:      t,
		Timestamp: time.Now(),
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		ev.Data = data
	}

	return json.Marshal(ev)
}

// Status — статус присутствия соединения
type Status string

const (
	StatusOnline Status = "online"
	StatusAway   Status = "away"
	StatusBusy   Status = "busy"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy:
		return true
	}
	return false
}

// Participant — вычисляемый снимок участника, нигде не хранится
type Participant struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Status        Status    `json:"status"`
	IsCurrentUser bool      `json:"isCurrentUser"`
}

// Sender — атрибуция сообщения по постоянному id пользователя,
// не по эфемерному id соединения
type Sender struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

// MessageRecord — проштампованное сообщение на проводе. Content
// непрозрачен для шлюза (шифртекст клиента)
type MessageRecord struct {
	ID                    uuid.UUID `json:"id"`
	Sender                Sender    `json:"sender"`
	Content               string    `json:"content"`
	EncryptedSymmetricKey *string   `json:"encryptedSymmetricKey,omitempty"`
	Timestamp             time.Time `json:"timestamp"`
}

// Входящие полезные нагрузки

type JoinPayload struct {
	Room          string `json:"room"`
	Username      string `json:"username"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

type LeavePayload struct {
	Room string `json:"room"`
}

type MessagePayload struct {
	Room                  string  `json:"room"`
	UserDbID              string  `json:"userDbId"`
	Message               string  `json:"message"`
	EncryptedSymmetricKey *string `json:"encryptedSymmetricKey,omitempty"`
	Username              string  `json:"username"`
	WalletAddress         string  `json:"wallet_address,omitempty"`
}

type HistoryRequestPayload struct {
	Room string `json:"room"`
}

type ParticipantsRequestPayload struct {
	Room string `json:"room"`
}

type StatusPayload struct {
	Status Status `json:"status"`
}

// Исходящие полезные нагрузки

type ConnectionStatusPayload struct {
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	UserID     uuid.UUID `json:"userId"`
	ServerTime time.Time `json:"serverTime"`
}

type JoinSuccessPayload struct {
	Message      string          `json:"message"`
	RoomID       string          `json:"roomId"`
	Participants []Participant   `json:"participants"`
	History      []MessageRecord `json:"history"`
}

type UserJoinedPayload struct {
	Message      string        `json:"message"`
	Username     string        `json:"username"`
	UserID       uuid.UUID     `json:"userId"`
	Participants []Participant `json:"participants"`
}

type UserLeftPayload struct {
	Message      string        `json:"message"`
	Username     string        `json:"username"`
	UserID       uuid.UUID     `json:"userId"`
	Participants []Participant `json:"participants"`
}

type LeaveSuccessPayload struct {
	Message string `json:"message"`
	RoomID  string `json:"roomId"`
}

type HistoryPayload struct {
	Room     string          `json:"room"`
	Messages []MessageRecord `json:"messages"`
}

type ParticipantsListPayload struct {
	Room         string        `json:"room"`
	Participants []Participant `json:"participants"`
}

type StatusUpdatedPayload struct {
	UserID       uuid.UUID     `json:"userId"`
	Username     string        `json:"username"`
	OldStatus    Status        `json:"oldStatus"`
	NewStatus    Status        `json:"newStatus"`
	Participants []Participant `json:"participants"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
