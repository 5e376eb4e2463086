package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/echoproof/chat-gateway/internal/config"
	"github.com/echoproof/chat-gateway/internal/database"
	"github.com/echoproof/chat-gateway/internal/handlers"
	"github.com/echoproof/chat-gateway/internal/presence"
	"github.com/echoproof/chat-gateway/internal/tokengate"
	ws "github.com/echoproof/chat-gateway/internal/websocket"
)

type Server struct {
	Router *gin.Engine
	Hub    *ws.Hub
	Log    *zap.Logger

	cfg  *config.Config
	http *http.Server
}

func NewServer(cfg *config.Config, log *zap.Logger) (*Server, error) {
	db := &database.Database{}
	if err := db.Connect(cfg.DatabaseURL); err != nil {
		return nil, err
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warn("redis unavailable, presence mirror degraded", zap.Error(err))
	}

	authorizer, err := tokengate.Dial(cfg.EthRPCURL, log)
	if err != nil {
		return nil, err
	}

	hub := ws.NewHub(cfg.HistoryBufferSize, log)
	pres := presence.NewStore(rdb, log)

	events := handlers.NewEventHandler(
		db, hub, authorizer, pres, log,
		cfg.AuthorizeTimeout, cfg.StoreTimeout, cfg.HistoryFetchLimit,
	)
	wsHandler := handlers.NewWebSocketHandler(hub, events, pres, cfg.AllowedOrigins, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	APIEndpoints(router, wsHandler)

	return &Server{
		Router: router,
		Hub:    hub,
		Log:    log,
		cfg:    cfg,
	}, nil
}

func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:    ":" + s.cfg.Port,
		Handler: s.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Log.Info("chat gateway started", zap.String("port", s.cfg.Port))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.http.Shutdown(shutdownCtx)
	s.Hub.Stop()
	return err
}
