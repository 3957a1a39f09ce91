package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"chat-hub/domain/chat"
	"chat-hub/errors"
)

func newTestDB(t *testing.T) *badger.DB {
	req := require.New(t)
	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	t.Cleanup(func() { db.Close() })
	return db
}

func Test_CreateRoom_And_GetRoom_RoundTrip(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewBadgerRoomRepository(newTestDB(t), slog.Default())

	room, err := chat.NewRoom("general", chat.RoomGroup, []string{"alice", "bob"}, "alice")
	req.NoError(err)
	req.NoError(repository.CreateRoom(ctx, room))

	fetched, err := repository.GetRoom(ctx, room.ID)
	req.NoError(err)
	req.Equal(room.ID, fetched.ID)
	req.Equal("general", fetched.Name)
	req.Equal(chat.RoomGroup, fetched.Kind)
	req.ElementsMatch([]string{"alice", "bob"}, fetched.Participants)
	req.Empty(fetched.Messages)
}

func Test_GetRoom_Unknown_Returns_Not_Found(t *testing.T) {
	req := require.New(t)
	repository := NewBadgerRoomRepository(newTestDB(t), slog.Default())

	_, err := repository.GetRoom(context.Background(), "no-such-room")
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func Test_RoomsForUser_Uses_Member_Index(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewBadgerRoomRepository(newTestDB(t), slog.Default())

	shared, err := chat.NewRoom("shared", chat.RoomGroup, []string{"alice", "bob"}, "alice")
	req.NoError(err)
	private, err := chat.NewRoom("private", chat.RoomGroup, []string{"alice"}, "alice")
	req.NoError(err)
	foreign, err := chat.NewRoom("foreign", chat.RoomGroup, []string{"clara"}, "clara")
	req.NoError(err)
	for _, room := range []chat.Room{shared, private, foreign} {
		req.NoError(repository.CreateRoom(ctx, room))
	}

	rooms, err := repository.RoomsForUser(ctx, "alice")
	req.NoError(err)
	req.Len(rooms, 2)
	names := lo.Map(rooms, func(r chat.Room, _ int) string { return r.Name })
	req.ElementsMatch([]string{"shared", "private"}, names)
}

func Test_AppendMessage_Updates_Summary_Atomically(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewBadgerRoomRepository(newTestDB(t), slog.Default())

	room, err := chat.NewRoom("general", chat.RoomGroup, []string{"alice", "bob"}, "alice")
	req.NoError(err)
	req.NoError(repository.CreateRoom(ctx, room))

	at := time.Now().UTC().Truncate(time.Millisecond)
	first := chat.NewMessage("alice", "first", chat.KindText, at)
	second := chat.NewMessage("bob", "second", chat.KindText, at.Add(time.Minute))

	updated, err := repository.AppendMessage(ctx, room.ID, first)
	req.NoError(err)
	req.Equal("first", updated.LastMessage.Content)

	updated, err = repository.AppendMessage(ctx, room.ID, second)
	req.NoError(err)

	// The summary always mirrors the tail of the message list
	req.Len(updated.Messages, 2)
	req.Equal("second", updated.LastMessage.Content)
	req.Equal("bob", updated.LastMessage.SenderID)
	req.Equal(updated.Messages[len(updated.Messages)-1].Content, updated.LastMessage.Content)

	// The sender's own receipt is present from the start
	req.True(updated.Messages[0].ReadByUser("alice"))
	req.False(updated.Messages[0].ReadByUser("bob"))
}

func Test_AppendMessage_Unknown_Room(t *testing.T) {
	req := require.New(t)
	repository := NewBadgerRoomRepository(newTestDB(t), slog.Default())

	msg := chat.NewMessage("alice", "lost", chat.KindText, time.Now().UTC())
	_, err := repository.AppendMessage(context.Background(), "no-such-room", msg)
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func Test_MarkRoomRead_Counts_Newly_Marked_Only(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewBadgerRoomRepository(newTestDB(t), slog.Default())

	room, err := chat.NewRoom("general", chat.RoomGroup, []string{"alice", "bob"}, "alice")
	req.NoError(err)
	req.NoError(repository.CreateRoom(ctx, room))

	at := time.Now().UTC()
	for _, content := range []string{"one", "two", "three"} {
		_, err = repository.AppendMessage(ctx, room.ID, chat.NewMessage("alice", content, chat.KindText, at))
		req.NoError(err)
	}

	// First pass marks all three
	updated, marked, err := repository.MarkRoomRead(ctx, room.ID, "bob", at.Add(time.Second))
	req.NoError(err)
	req.Equal(3, marked)
	for _, msg := range updated.Messages {
		req.True(msg.ReadByUser("bob"))
	}

	// Second pass is a no-op
	_, marked, err = repository.MarkRoomRead(ctx, room.ID, "bob", at.Add(2*time.Second))
	req.NoError(err)
	req.Zero(marked)
}

func Test_MarkMessageRead_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewBadgerRoomRepository(newTestDB(t), slog.Default())

	room, err := chat.NewRoom("general", chat.RoomGroup, []string{"alice", "bob"}, "alice")
	req.NoError(err)
	req.NoError(repository.CreateRoom(ctx, room))

	at := time.Now().UTC()
	msg := chat.NewMessage("alice", "read me", chat.KindText, at)
	_, err = repository.AppendMessage(ctx, room.ID, msg)
	req.NoError(err)

	updated, marked, err := repository.MarkMessageRead(ctx, room.ID, msg.ID, "bob", at.Add(time.Second))
	req.NoError(err)
	req.True(marked)
	req.Len(updated.Messages[0].ReadBy, 2)

	// Marking again changes nothing
	updated, marked, err = repository.MarkMessageRead(ctx, room.ID, msg.ID, "bob", at.Add(2*time.Second))
	req.NoError(err)
	req.False(marked)
	req.Len(updated.Messages[0].ReadBy, 2)
}

func Test_MarkMessageRead_Unknown_Message(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewBadgerRoomRepository(newTestDB(t), slog.Default())

	room, err := chat.NewRoom("general", chat.RoomGroup, []string{"alice"}, "alice")
	req.NoError(err)
	req.NoError(repository.CreateRoom(ctx, room))

	_, _, err = repository.MarkMessageRead(context.Background(), room.ID, "no-such-message", "alice", time.Now().UTC())
	req.ErrorIs(err, errors.ErrMessageNotFound)
}
