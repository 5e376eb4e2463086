package database

import (
	"context"

	"github.com/echoproof/chat-gateway/internal/models"
)

func (d *Database) InsertMessage(ctx context.Context, msg *models.ChatMessage) error {
	return d.db.WithContext(ctx).Omit("Sender").Create(msg).Error
}

// GetRoomMessagesDesc возвращает последние limit сообщений комнаты,
// новые первыми, вместе с данными отправителя. Отсутствующий отправитель
// не ошибка: Sender остается nil
func (d *Database) GetRoomMessagesDesc(ctx context.Context, roomID string, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage

	err := d.db.WithContext(ctx).
		Where("\"chatroomId\" = ?", roomID).
		Order("\"sentAt\" DESC").
		Limit(limit).
		Preload("Sender").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	return messages, nil
}
