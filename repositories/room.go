//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"context"
	"time"

	"github.com/samber/lo"

	"chat-hub/domain/chat"
)

// IRoomRepository is the chat persistence adapter. AppendMessage is atomic
// with respect to the last-message summary: no caller can observe a room
// whose summary disagrees with the tail of its message list.
type IRoomRepository interface {
	CreateRoom(ctx context.Context, room chat.Room) error
	RoomsForUser(ctx context.Context, userID string) ([]chat.Room, error)
	GetRoom(ctx context.Context, roomID chat.RoomID) (chat.Room, error)
	AppendMessage(ctx context.Context, roomID chat.RoomID, msg chat.Message) (chat.Room, error)
	MarkRoomRead(ctx context.Context, roomID chat.RoomID, userID string, at time.Time) (chat.Room, int, error)
	MarkMessageRead(ctx context.Context, roomID chat.RoomID, msgID chat.MessageID, userID string, at time.Time) (chat.Room, bool, error)
}

// storedRoom is the on-disk/document representation of a Room.
// Equivalent to what DiskMessage was for a flat message log: the domain type
// stays free of storage tags.
type storedRoom struct {
	ID           string          `json:"id" bson:"_id"`
	Name         string          `json:"name" bson:"name"`
	Kind         string          `json:"kind" bson:"kind"`
	Participants []string        `json:"participants" bson:"participants"`
	Messages     []storedMessage `json:"messages" bson:"messages"`
	LastMessage  storedSummary   `json:"lastMessage" bson:"lastMessage"`
	CreatedBy    string          `json:"createdBy" bson:"createdBy"`
	CreatedAt    time.Time       `json:"createdAt" bson:"createdAt"`
}

type storedMessage struct {
	ID        string          `json:"id" bson:"id"`
	SenderID  string          `json:"senderId" bson:"senderId"`
	Content   string          `json:"content" bson:"content"`
	Kind      string          `json:"kind" bson:"kind"`
	ReadBy    []storedReceipt `json:"readBy" bson:"readBy"`
	CreatedAt time.Time       `json:"createdAt" bson:"createdAt"`
	EditedAt  *time.Time      `json:"editedAt,omitempty" bson:"editedAt,omitempty"`
}

type storedReceipt struct {
	UserID string    `json:"userId" bson:"userId"`
	ReadAt time.Time `json:"readAt" bson:"readAt"`
}

type storedSummary struct {
	Content  string    `json:"content" bson:"content"`
	SenderID string    `json:"senderId" bson:"senderId"`
	At       time.Time `json:"at" bson:"at"`
}

func fromRoom(room chat.Room) storedRoom {
	return storedRoom{
		ID:           string(room.ID),
		Name:         room.Name,
		Kind:         string(room.Kind),
		Participants: room.Participants,
		Messages:     lo.Map(room.Messages, func(m chat.Message, _ int) storedMessage { return fromMessage(m) }),
		LastMessage: storedSummary{
			Content:  room.LastMessage.Content,
			SenderID: room.LastMessage.SenderID,
			At:       room.LastMessage.At,
		},
		CreatedBy: room.CreatedBy,
		CreatedAt: room.CreatedAt,
	}
}

func toRoom(doc storedRoom) chat.Room {
	return chat.Room{
		ID:           chat.RoomID(doc.ID),
		Name:         doc.Name,
		Kind:         chat.RoomKind(doc.Kind),
		Participants: doc.Participants,
		Messages:     lo.Map(doc.Messages, func(m storedMessage, _ int) chat.Message { return toMessage(m) }),
		LastMessage: chat.LastMessage{
			Content:  doc.LastMessage.Content,
			SenderID: doc.LastMessage.SenderID,
			At:       doc.LastMessage.At,
		},
		CreatedBy: doc.CreatedBy,
		CreatedAt: doc.CreatedAt,
	}
}

func fromMessage(m chat.Message) storedMessage {
	return storedMessage{
		ID:       string(m.ID),
		SenderID: m.SenderID,
		Content:  m.Content,
		Kind:     string(m.Kind),
		ReadBy: lo.Map(m.ReadBy, func(r chat.ReadReceipt, _ int) storedReceipt {
			return storedReceipt{UserID: r.UserID, ReadAt: r.ReadAt}
		}),
		CreatedAt: m.CreatedAt,
		EditedAt:  m.EditedAt,
	}
}

func toMessage(m storedMessage) chat.Message {
	return chat.Message{
		ID:       chat.MessageID(m.ID),
		SenderID: m.SenderID,
		Content:  m.Content,
		Kind:     chat.MessageKind(m.Kind),
		ReadBy: lo.Map(m.ReadBy, func(r storedReceipt, _ int) chat.ReadReceipt {
			return chat.ReadReceipt{UserID: r.UserID, ReadAt: r.ReadAt}
		}),
		CreatedAt: m.CreatedAt,
		EditedAt:  m.EditedAt,
	}
}
