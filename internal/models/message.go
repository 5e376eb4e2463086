package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage неизменяем после создания. Message содержит шифртекст,
// шлюз его не расшифровывает
type ChatMessage struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey"`
	ChatroomID            uuid.UUID `gorm:"column:chatroomId"`
	SenderID              uuid.UUID `gorm:"column:senderId"`
	Message               string    `gorm:"column:message"`
	EncryptedSymmetricKey *string   `gorm:"column:encryptedSymmetricKey"`
	SentAt                time.Time `gorm:"column:sentAt"`

	// Связи
	Sender *User `gorm:"foreignKey:SenderID"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
