package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chat-hub/runtime"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the HTTP connection to a WebSocket and starts the pumps.
// The connection arrives unauthenticated: identity is established by the
// first authenticate frame, processed by the hub like any other command.
func ServeWS(hub *runtime.Hub, log *slog.Logger, bufferSize int) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("upgrade failed", "error", err)
			return
		}

		// The request context dies when this handler returns; the connection
		// outlives it.
		client := NewClient(hub, conn, log, bufferSize)
		go client.writePump()
		go client.readPump(context.Background())
	}
}
