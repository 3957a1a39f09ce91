// Package ws is the WebSocket transport: it upgrades connections, decodes
// client envelopes into hub commands, and encodes hub events back onto the
// wire. No chat semantics live here.
package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"chat-hub/domain/chat"
	"chat-hub/domain/event"
	"chat-hub/errors"
)

var validate = validator.New()

// Envelope is the framing of every message in both directions: a type
// discriminator plus a type-specific payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	inAuthenticate    = "authenticate"
	inJoinRoom        = "join_room"
	inLeaveRoom       = "leave_room"
	inSendMessage     = "send_message"
	inMarkRead        = "mark_read"
	inMarkMessageRead = "mark_message_read"

	outAuthenticatedOK = "authenticated_ok"
	outAuthError       = "auth_error"
	outUserOnline      = "user_online"
	outUserOffline     = "user_offline"
	outNewMessage      = "new_message"
	outRoomUpdated     = "room_updated"
	outMessagesRead    = "messages_read"
	outMessageRead     = "message_read"
	outSendError       = "send_error"
)

type authenticatePayload struct {
	Token string `json:"token" validate:"required"`
}

type roomPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

type sendMessagePayload struct {
	RoomID  string `json:"roomId" validate:"required"`
	Content string `json:"content" validate:"required,max=4096"`
	Kind    string `json:"kind" validate:"omitempty,oneof=text image file system"`
}

type markMessageReadPayload struct {
	RoomID    string `json:"roomId" validate:"required"`
	MessageID string `json:"messageId" validate:"required"`
}

// DecodeCommand turns a raw client frame into a hub command, validating the
// payload shape before anything reaches the event loop.
func DecodeCommand(raw []byte) (chat.Command, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}

	switch env.Type {
	case inAuthenticate:
		var p authenticatePayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		return chat.AuthenticateCommand{Token: p.Token}, nil
	case inJoinRoom:
		var p roomPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		return chat.JoinRoomCommand{Room: chat.RoomID(p.RoomID)}, nil
	case inLeaveRoom:
		var p roomPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		return chat.LeaveRoomCommand{Room: chat.RoomID(p.RoomID)}, nil
	case inSendMessage:
		var p sendMessagePayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		return chat.SendMessageCommand{
			Room:    chat.RoomID(p.RoomID),
			Content: p.Content,
			Kind:    chat.MessageKind(p.Kind),
		}, nil
	case inMarkRead:
		var p roomPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		return chat.MarkRoomReadCommand{Room: chat.RoomID(p.RoomID)}, nil
	case inMarkMessageRead:
		var p markMessageReadPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		return chat.MarkMessageReadCommand{
			Room:    chat.RoomID(p.RoomID),
			Message: chat.MessageID(p.MessageID),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", errors.ErrInvalidPayload, env.Type)
	}
}

func decodePayload(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return nil
}

type onlineUserJSON struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type receiptJSON struct {
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

type messageJSON struct {
	ID        string        `json:"id"`
	SenderID  string        `json:"senderId"`
	Content   string        `json:"content"`
	Kind      string        `json:"kind"`
	ReadBy    []receiptJSON `json:"readBy"`
	CreatedAt time.Time     `json:"createdAt"`
	EditedAt  *time.Time    `json:"editedAt,omitempty"`
}

type summaryJSON struct {
	Content  string    `json:"content"`
	SenderID string    `json:"senderId"`
	At       time.Time `json:"at"`
}

func toMessageJSON(m chat.Message) messageJSON {
	return messageJSON{
		ID:       string(m.ID),
		SenderID: m.SenderID,
		Content:  m.Content,
		Kind:     string(m.Kind),
		ReadBy: lo.Map(m.ReadBy, func(r chat.ReadReceipt, _ int) receiptJSON {
			return receiptJSON{UserID: r.UserID, ReadAt: r.ReadAt}
		}),
		CreatedAt: m.CreatedAt,
		EditedAt:  m.EditedAt,
	}
}

// Encode maps a hub event to its wire envelope.
func Encode(e event.DomainEvent) (Envelope, error) {
	switch evt := e.(type) {
	case event.AuthenticatedOK:
		return envelope(outAuthenticatedOK, struct {
			UserID      string           `json:"userId"`
			DisplayName string           `json:"displayName"`
			OnlineUsers []onlineUserJSON `json:"onlineUsers"`
		}{
			UserID:      evt.UserID,
			DisplayName: evt.DisplayName,
			OnlineUsers: lo.Map(evt.OnlineUsers, func(u event.OnlineUser, _ int) onlineUserJSON {
				return onlineUserJSON{UserID: u.UserID, DisplayName: u.DisplayName}
			}),
		})
	case event.AuthError:
		return envelope(outAuthError, struct {
			Reason string `json:"reason"`
		}{Reason: string(evt.Reason)})
	case event.UserOnline:
		return envelope(outUserOnline, onlineUserJSON{UserID: evt.UserID, DisplayName: evt.DisplayName})
	case event.UserOffline:
		return envelope(outUserOffline, struct {
			UserID string `json:"userId"`
		}{UserID: evt.UserID})
	case event.MessagePosted:
		return envelope(outNewMessage, struct {
			RoomID  string      `json:"roomId"`
			Message messageJSON `json:"message"`
		}{RoomID: string(evt.Room), Message: toMessageJSON(evt.Message)})
	case event.RoomUpdated:
		return envelope(outRoomUpdated, struct {
			RoomID       string      `json:"roomId"`
			Name         string      `json:"name"`
			Kind         string      `json:"kind"`
			Participants []string    `json:"participants"`
			LastMessage  summaryJSON `json:"lastMessage"`
		}{
			RoomID:       string(evt.Room),
			Name:         evt.Name,
			Kind:         string(evt.Kind),
			Participants: evt.Participants,
			LastMessage: summaryJSON{
				Content:  evt.LastMessage.Content,
				SenderID: evt.LastMessage.SenderID,
				At:       evt.LastMessage.At,
			},
		})
	case event.RoomRead:
		return envelope(outMessagesRead, struct {
			RoomID string    `json:"roomId"`
			UserID string    `json:"userId"`
			At     time.Time `json:"at"`
		}{RoomID: string(evt.Room), UserID: evt.UserID, At: evt.At})
	case event.MessageRead:
		return envelope(outMessageRead, struct {
			RoomID    string    `json:"roomId"`
			MessageID string    `json:"messageId"`
			UserID    string    `json:"userId"`
			At        time.Time `json:"at"`
		}{RoomID: string(evt.Room), MessageID: string(evt.Message), UserID: evt.UserID, At: evt.At})
	case event.SendError:
		return envelope(outSendError, struct {
			RoomID string `json:"roomId"`
			Reason string `json:"reason"`
		}{RoomID: string(evt.Room), Reason: string(evt.Reason)})
	default:
		return Envelope{}, fmt.Errorf("unencodable event %T", e)
	}
}

func envelope(eventType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, Payload: data}, nil
}
