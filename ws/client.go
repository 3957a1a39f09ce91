package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"chat-hub/domain/chat"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/runtime"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

// Client is the middleman between one websocket connection and the hub. It
// implements contract.EventSink: Consume enqueues onto the send channel and
// never blocks the hub's event loop; a slow consumer loses events rather
// than stalling everyone else's delivery.
type Client struct {
	hub     *runtime.Hub
	conn    *websocket.Conn
	session *runtime.Session
	send    chan event.DomainEvent
	log     *slog.Logger
}

func NewClient(hub *runtime.Hub, conn *websocket.Conn, log *slog.Logger, bufferSize int) *Client {
	c := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan event.DomainEvent, bufferSize),
		log:  log,
	}
	c.session = runtime.NewSession(c)
	return c
}

func (c *Client) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case c.send <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		c.log.Warn("send buffer full, dropping event", "session_id", c.session.ID)
		return nil
	}
}

// readPump pumps frames from the websocket connection to the hub. It owns
// the connection's read side and reports the disconnect exactly once.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Dispatch(c.session, chat.DisconnectCommand{})
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("read error", "session_id", c.session.ID, "error", err)
			}
			return
		}
		cmd, err := DecodeCommand(raw)
		if err != nil {
			c.log.Debug("rejecting malformed frame", "session_id", c.session.ID, "error", err)
			_ = c.Consume(ctx, event.SendError{Reason: errors.ReasonInvalidPayload})
			continue
		}
		c.hub.Dispatch(c.session, cmd)
	}
}

// writePump pumps hub events to the websocket connection and keeps the
// connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			env, err := Encode(evt)
			if err != nil {
				c.log.Error("unencodable event", "error", err)
				continue
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
