package models

import (
	"github.com/google/uuid"
)

// User принадлежит веб-приложению, шлюз его только читает
type User struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name          string    `gorm:"column:name"`
	WalletAddress string    `gorm:"column:walletAddress"`
}

func (User) TableName() string {
	return "users"
}
