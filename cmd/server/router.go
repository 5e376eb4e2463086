package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/echoproof/chat-gateway/internal/handlers"
)

func APIEndpoints(r *gin.Engine, wsHandler *handlers.WebSocketHandler) {
	r.GET("/ws", wsHandler.HandleWebSocket)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
