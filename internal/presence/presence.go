package presence

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const connTTL = 2 * time.Hour

// Client — срез *redis.Client, используемый зеркалом присутствия
type Client interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SCard(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store зеркалит присутствие в redis для внешних читателей (дашборд
// веб-приложения). Авторитетное состояние живет в хабе; все операции
// здесь best-effort и никогда не роняют пользовательскую операцию
type Store struct {
	rdb Client
	log *zap.Logger
}

func NewStore(rdb Client, log *zap.Logger) *Store {
	return &Store{rdb: rdb, log: log}
}

func connKey(connID string) string {
	return "presence:" + connID
}

func roomKey(roomID string) string {
	return "room:" + roomID + ":online"
}

// Connected пишет запись присутствия нового соединения
func (s *Store) Connected(ctx context.Context, connID, name, status string) {
	key := connKey(connID)
	if err := s.rdb.HSet(ctx, key, "name", name, "status", status).Err(); err != nil {
		s.log.Warn("presence write failed", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	if err := s.rdb.Expire(ctx, key, connTTL).Err(); err != nil {
		s.log.Warn("presence expire failed", zap.String("conn_id", connID), zap.Error(err))
	}
}

// StatusChanged обновляет статус соединения
func (s *Store) StatusChanged(ctx context.Context, connID, status string) {
	if err := s.rdb.HSet(ctx, connKey(connID), "status", status).Err(); err != nil {
		s.log.Warn("presence status update failed", zap.String("conn_id", connID), zap.Error(err))
	}
}

// Disconnected удаляет запись присутствия
func (s *Store) Disconnected(ctx context.Context, connID string) {
	if err := s.rdb.Del(ctx, connKey(connID)).Err(); err != nil {
		s.log.Warn("presence delete failed", zap.String("conn_id", connID), zap.Error(err))
	}
}

// JoinedRoom добавляет соединение в онлайн-множество комнаты
func (s *Store) JoinedRoom(ctx context.Context, roomID, connID string) {
	if err := s.rdb.SAdd(ctx, roomKey(roomID), connID).Err(); err != nil {
		s.log.Warn("presence room add failed", zap.String("room_id", roomID), zap.Error(err))
	}
}

// LeftRoom убирает соединение из онлайн-множества комнаты
func (s *Store) LeftRoom(ctx context.Context, roomID, connID string) {
	if err := s.rdb.SRem(ctx, roomKey(roomID), connID).Err(); err != nil {
		s.log.Warn("presence room remove failed", zap.String("room_id", roomID), zap.Error(err))
	}
}

// OnlineCount возвращает число соединений онлайн в комнате
func (s *Store) OnlineCount(ctx context.Context, roomID string) (int64, error) {
	return s.rdb.SCard(ctx, roomKey(roomID)).Result()
}
