package database

import (
	"context"
	"errors"

	"github.com/echoproof/chat-gateway/internal/models"
	"gorm.io/gorm"
)

var ErrRoomNotFound = errors.New("chatroom not found")

// GetChatroom читает комнату заново при каждом вызове: гейтинг мог
// измениться с прошлого join
func (d *Database) GetChatroom(ctx context.Context, id string) (*models.Chatroom, error) {
	var room models.Chatroom
	err := d.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}
