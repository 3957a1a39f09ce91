// Package server wires the HTTP surface: auth endpoints, the websocket
// upgrade, and the thin REST reads over the persistence adapter.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-hub/contract"
	"chat-hub/runtime"
	"chat-hub/services"
	"chat-hub/ws"
)

type Router struct {
	log         *slog.Logger
	authService services.IAuthService
	chatService services.IChatService
	hub         *runtime.Hub
}

func NewRouter(log *slog.Logger, authService services.IAuthService,
	chatService services.IChatService, hub *runtime.Hub) *Router {
	return &Router{log: log, authService: authService, chatService: chatService, hub: hub}
}

func (r *Router) Engine(verifier contract.CredentialVerifier, wsBufferSize int) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	engine.POST("/auth/register", r.register)
	engine.POST("/auth/login", r.login)

	engine.GET("/ws", ws.ServeWS(r.hub, r.log, wsBufferSize))

	authorized := engine.Group("/", RequireAuth(verifier))
	authorized.GET("/rooms", r.listRooms)
	authorized.POST("/rooms", r.createRoom)
	authorized.GET("/rooms/:id/messages", r.history)
	authorized.GET("/rooms/:id/search", r.search)

	return engine
}
