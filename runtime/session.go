package runtime

import (
	"github.com/google/uuid"

	"chat-hub/contract"
	"chat-hub/domain/chat"
)

// Session is the hub-side state of one connection. It moves through
// unauthenticated -> authenticated -> disconnected; room joins hang off the
// session and vanish with it. All fields are owned by the hub's event loop.
type Session struct {
	ID          string
	UserID      string
	DisplayName string

	sink     contract.EventSink
	rooms    map[chat.RoomID]struct{}
	detached bool
}

func NewSession(sink contract.EventSink) *Session {
	return &Session{
		ID:    uuid.NewString(),
		sink:  sink,
		rooms: make(map[chat.RoomID]struct{}),
	}
}

func (s *Session) Authenticated() bool {
	return s.UserID != ""
}

func (s *Session) Joined(roomID chat.RoomID) bool {
	_, ok := s.rooms[roomID]
	return ok
}
