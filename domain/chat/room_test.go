package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-hub/errors"
)

func Test_NewRoom_Deduplicates_Participants(t *testing.T) {
	req := require.New(t)

	room, err := NewRoom("general", RoomGroup, []string{"alice", "bob", "alice"}, "alice")
	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, room.Participants)
	req.NotEmpty(room.ID)
}

func Test_NewRoom_Direct_Requires_Exactly_Two(t *testing.T) {
	req := require.New(t)

	_, err := NewRoom("dm", RoomDirect, []string{"alice"}, "alice")
	req.ErrorIs(err, errors.ErrDirectRoomSize)

	_, err = NewRoom("dm", RoomDirect, []string{"alice", "bob", "clara"}, "alice")
	req.ErrorIs(err, errors.ErrDirectRoomSize)

	// The same user twice is one participant, not two
	_, err = NewRoom("dm", RoomDirect, []string{"alice", "alice"}, "alice")
	req.ErrorIs(err, errors.ErrDirectRoomSize)

	_, err = NewRoom("dm", RoomDirect, []string{"alice", "bob"}, "alice")
	req.NoError(err)
}

func Test_Append_Keeps_Summary_In_Sync(t *testing.T) {
	req := require.New(t)
	room, err := NewRoom("general", RoomGroup, []string{"alice", "bob"}, "alice")
	req.NoError(err)

	at := time.Now().UTC()
	room.Append(NewMessage("alice", "first", KindText, at))
	room.Append(NewMessage("bob", "second", KindText, at.Add(time.Minute)))

	req.Len(room.Messages, 2)
	req.Equal("second", room.LastMessage.Content)
	req.Equal("bob", room.LastMessage.SenderID)
	req.Equal(at.Add(time.Minute), room.LastMessage.At)
}

func Test_MarkAllRead_Skips_Existing_Receipts(t *testing.T) {
	req := require.New(t)
	room, err := NewRoom("general", RoomGroup, []string{"alice", "bob"}, "alice")
	req.NoError(err)

	at := time.Now().UTC()
	room.Append(NewMessage("alice", "one", KindText, at))
	room.Append(NewMessage("alice", "two", KindText, at.Add(time.Second)))

	// The sender's messages are already read by the sender
	req.Zero(room.MarkAllRead("alice", at.Add(time.Minute)))

	// Bob's first pass marks both, the second pass nothing
	req.Equal(2, room.MarkAllRead("bob", at.Add(time.Minute)))
	req.Zero(room.MarkAllRead("bob", at.Add(2*time.Minute)))
}

func Test_MessageByID_Returns_Mutable_Reference(t *testing.T) {
	req := require.New(t)
	room, err := NewRoom("general", RoomGroup, []string{"alice", "bob"}, "alice")
	req.NoError(err)

	msg := NewMessage("alice", "hello", KindText, time.Now().UTC())
	room.Append(msg)

	found, ok := room.MessageByID(msg.ID)
	req.True(ok)

	// Mutations through the reference land in the aggregate
	req.True(found.MarkReadBy("bob", time.Now().UTC()))
	req.True(room.Messages[0].ReadByUser("bob"))

	_, ok = room.MessageByID("missing")
	req.False(ok)
}
