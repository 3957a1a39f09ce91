package ws

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-hub/domain/chat"
	"chat-hub/domain/event"
	"chat-hub/errors"
)

func Test_DecodeCommand_SendMessage(t *testing.T) {
	req := require.New(t)

	cmd, err := DecodeCommand([]byte(`{
		"type": "send_message",
		"payload": {"roomId": "room-1", "content": "hello", "kind": "text"}
	}`))
	req.NoError(err)

	send, ok := cmd.(chat.SendMessageCommand)
	req.True(ok)
	req.Equal(chat.RoomID("room-1"), send.Room)
	req.Equal("hello", send.Content)
	req.Equal(chat.KindText, send.Kind)
}

func Test_DecodeCommand_Authenticate(t *testing.T) {
	req := require.New(t)

	cmd, err := DecodeCommand([]byte(`{"type": "authenticate", "payload": {"token": "abc"}}`))
	req.NoError(err)
	req.Equal(chat.AuthenticateCommand{Token: "abc"}, cmd)
}

func Test_DecodeCommand_MarkMessageRead(t *testing.T) {
	req := require.New(t)

	cmd, err := DecodeCommand([]byte(`{
		"type": "mark_message_read",
		"payload": {"roomId": "room-1", "messageId": "msg-1"}
	}`))
	req.NoError(err)
	req.Equal(chat.MarkMessageReadCommand{Room: "room-1", Message: "msg-1"}, cmd)
}

func Test_DecodeCommand_Rejects_Bad_Frames(t *testing.T) {
	req := require.New(t)

	cases := map[string]string{
		"not json":           `{{{`,
		"unknown type":       `{"type": "shrug", "payload": {}}`,
		"missing required":   `{"type": "send_message", "payload": {"roomId": "room-1"}}`,
		"invalid kind":       `{"type": "send_message", "payload": {"roomId": "r", "content": "x", "kind": "carrier-pigeon"}}`,
		"oversized content":  `{"type": "send_message", "payload": {"roomId": "r", "content": "` + strings.Repeat("a", 4097) + `"}}`,
		"empty token":        `{"type": "authenticate", "payload": {"token": ""}}`,
		"missing message id": `{"type": "mark_message_read", "payload": {"roomId": "room-1"}}`,
	}

	for name, frame := range cases {
		_, err := DecodeCommand([]byte(frame))
		req.ErrorIs(err, errors.ErrInvalidPayload, name)
	}
}

func Test_Encode_NewMessage(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()
	msg := chat.NewMessage("alice", "hello", chat.KindText, at)

	env, err := Encode(event.MessagePosted{Room: "room-1", Message: msg})
	req.NoError(err)
	req.Equal("new_message", env.Type)

	var payload struct {
		RoomID  string `json:"roomId"`
		Message struct {
			ID       string `json:"id"`
			SenderID string `json:"senderId"`
			Content  string `json:"content"`
			ReadBy   []struct {
				UserID string `json:"userId"`
			} `json:"readBy"`
		} `json:"message"`
	}
	req.NoError(json.Unmarshal(env.Payload, &payload))
	req.Equal("room-1", payload.RoomID)
	req.Equal(string(msg.ID), payload.Message.ID)
	req.Equal("alice", payload.Message.SenderID)
	req.Len(payload.Message.ReadBy, 1)
	req.Equal("alice", payload.Message.ReadBy[0].UserID)
}

func Test_Encode_Covers_Every_Outbound_Event(t *testing.T) {
	req := require.New(t)

	events := []event.DomainEvent{
		event.AuthenticatedOK{UserID: "u", DisplayName: "U"},
		event.AuthError{Reason: errors.ReasonInvalidToken},
		event.UserOnline{UserID: "u"},
		event.UserOffline{UserID: "u"},
		event.MessagePosted{Room: "r", Message: chat.NewMessage("u", "m", chat.KindText, time.Now())},
		event.RoomUpdated{Room: "r"},
		event.RoomRead{Room: "r", UserID: "u"},
		event.MessageRead{Room: "r", Message: "m", UserID: "u"},
		event.SendError{Room: "r", Reason: errors.ReasonNotParticipant},
	}

	seen := make(map[string]struct{})
	for _, e := range events {
		env, err := Encode(e)
		req.NoError(err)
		req.NotEmpty(env.Type)
		seen[env.Type] = struct{}{}
	}
	// Every event maps to a distinct frame type
	req.Len(seen, len(events))
}

func Test_Encode_SendError_Carries_Reason(t *testing.T) {
	req := require.New(t)

	env, err := Encode(event.SendError{Room: "room-1", Reason: errors.ReasonNotParticipant})
	req.NoError(err)
	req.Equal("send_error", env.Type)

	var payload struct {
		RoomID string `json:"roomId"`
		Reason string `json:"reason"`
	}
	req.NoError(json.Unmarshal(env.Payload, &payload))
	req.Equal("room-1", payload.RoomID)
	req.Equal("not_participant", payload.Reason)
}
