package services

import (
	"context"
	"sort"

	"chat-hub/domain/chat"
	"chat-hub/errors"
	"chat-hub/repositories"
	"chat-hub/search"
)

// IChatService serves the thin REST reads over the persistence adapter: room
// listing, history fetch, search. Real-time traffic never goes through here.
type IChatService interface {
	CreateRoom(ctx context.Context, name string, kind chat.RoomKind, participants []string, createdBy string) (chat.Room, error)
	RoomsForUser(ctx context.Context, userID string) ([]chat.Room, error)
	History(ctx context.Context, userID string, roomID chat.RoomID) ([]chat.Message, error)
	Search(ctx context.Context, userID string, roomID chat.RoomID, terms string, limit int) ([]search.Hit, error)
}

type ChatService struct {
	rooms         repositories.IRoomRepository
	index         *search.Index
	limitMessages *int
}

func NewChatService(rooms repositories.IRoomRepository, index *search.Index, limitMessages *int) *ChatService {
	return &ChatService{rooms: rooms, index: index, limitMessages: limitMessages}
}

func (s *ChatService) CreateRoom(ctx context.Context, name string, kind chat.RoomKind,
	participants []string, createdBy string) (chat.Room, error) {
	room, err := chat.NewRoom(name, kind, participants, createdBy)
	if err != nil {
		return chat.Room{}, err
	}
	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		return chat.Room{}, err
	}
	return room, nil
}

// RoomsForUser returns the user's rooms newest-activity-first, the order a
// client renders its room list in.
func (s *ChatService) RoomsForUser(ctx context.Context, userID string) ([]chat.Room, error) {
	rooms, err := s.rooms.RoomsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].LastMessage.At.After(rooms[j].LastMessage.At)
	})
	return rooms, nil
}

// History returns the newest messages of a room, capped at the configured
// limit, gated on the caller being a participant.
func (s *ChatService) History(ctx context.Context, userID string, roomID chat.RoomID) ([]chat.Message, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(userID) {
		return nil, errors.ErrNotParticipant
	}
	messages := room.Messages
	if s.limitMessages != nil && len(messages) > *s.limitMessages {
		messages = messages[len(messages)-*s.limitMessages:]
	}
	return messages, nil
}

func (s *ChatService) Search(ctx context.Context, userID string, roomID chat.RoomID,
	terms string, limit int) ([]search.Hit, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(userID) {
		return nil, errors.ErrNotParticipant
	}
	return s.index.Search(ctx, roomID, terms, limit)
}
