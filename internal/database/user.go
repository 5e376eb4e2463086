package database

import (
	"context"
	"errors"

	"github.com/echoproof/chat-gateway/internal/models"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

func (d *Database) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
