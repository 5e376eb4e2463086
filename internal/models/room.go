package models

import (
	"github.com/google/uuid"
)

// Chatroom создается веб-приложением; правила гейтинга могут меняться
// между join-ами, поэтому запись читается заново при каждой попытке входа
type Chatroom struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name          string    `gorm:"column:name"`
	TokenGated    bool      `gorm:"column:tokenGated"`
	TokenAddress  *string   `gorm:"column:tokenAddress"`
	TokenStandard *string   `gorm:"column:tokenStandard"`
}

func (Chatroom) TableName() string {
	return "chatrooms"
}
