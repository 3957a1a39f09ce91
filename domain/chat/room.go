package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat-hub/errors"
)

type RoomID string

type RoomKind string

const (
	RoomDirect  RoomKind = "direct"
	RoomGroup   RoomKind = "group"
	RoomChannel RoomKind = "channel"
)

// LastMessage is the denormalized summary of the newest entry in Messages.
// It is maintained together with every append so room lists can be sorted
// without scanning message histories.
type LastMessage struct {
	Content  string
	SenderID string
	At       time.Time
}

// Room is the aggregate root. Messages are embedded, insertion-ordered and
// append-only: edits may touch content and EditedAt, never the order.
type Room struct {
	ID           RoomID
	Name         string
	Kind         RoomKind
	Participants []string
	Messages     []Message
	LastMessage  LastMessage
	CreatedBy    string
	CreatedAt    time.Time
}

func NewRoom(name string, kind RoomKind, participants []string, createdBy string) (Room, error) {
	participants = lo.Uniq(participants)
	if kind == RoomDirect && len(participants) != 2 {
		return Room{}, errors.ErrDirectRoomSize
	}
	return Room{
		ID:           RoomID(uuid.NewString()),
		Name:         name,
		Kind:         kind,
		Participants: participants,
		CreatedBy:    createdBy,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (r *Room) HasParticipant(userID string) bool {
	return lo.Contains(r.Participants, userID)
}

// Append adds a message and refreshes the summary in the same step.
func (r *Room) Append(msg Message) {
	r.Messages = append(r.Messages, msg)
	r.LastMessage = LastMessage{
		Content:  msg.Content,
		SenderID: msg.SenderID,
		At:       msg.CreatedAt,
	}
}

func (r *Room) MessageByID(id MessageID) (*Message, bool) {
	for i := range r.Messages {
		if r.Messages[i].ID == id {
			return &r.Messages[i], true
		}
	}
	return nil, false
}

// MarkAllRead adds a receipt for userID to every message lacking one and
// returns how many messages were newly marked.
func (r *Room) MarkAllRead(userID string, at time.Time) int {
	marked := 0
	for i := range r.Messages {
		if r.Messages[i].MarkReadBy(userID, at) {
			marked++
		}
	}
	return marked
}
