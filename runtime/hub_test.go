package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"chat-hub/auth"
	"chat-hub/domain/chat"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/moderation"
	"chat-hub/repositories"
)

// memorySink records everything delivered to one connection.
type memorySink struct {
	events []event.DomainEvent
}

func (m *memorySink) Consume(_ context.Context, e event.DomainEvent) error {
	m.events = append(m.events, e)
	return nil
}

func (m *memorySink) reset() {
	m.events = nil
}

// ofType filters the recorded events down to one concrete event type.
func ofType[T event.DomainEvent](m *memorySink) []T {
	var out []T
	for _, e := range m.events {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// clock is the injectable time source so suppression windows are exact.
type clock struct {
	at time.Time
}

func (c *clock) advance(d time.Duration) {
	c.at = c.at.Add(d)
}

type hubFixture struct {
	hub      *Hub
	registry *Registry
	rooms    repositories.IRoomRepository
	users    repositories.IUserRepository
	clock    *clock
	ctx      context.Context
}

func newHubFixture(t *testing.T) *hubFixture {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	t.Cleanup(func() { db.Close() })

	log := slog.Default()
	registry := NewRegistry()
	rooms := repositories.NewBadgerRoomRepository(db, log)
	users := repositories.NewUserRepository(db)

	hub := NewHub(log, registry, NewSuppressor(2*time.Second, 5*time.Second),
		rooms, users, auth.TokenVerifier{}, 64)

	clk := &clock{at: time.Now().UTC()}
	hub.now = func() time.Time { return clk.at }

	return &hubFixture{
		hub:      hub,
		registry: registry,
		rooms:    rooms,
		users:    users,
		clock:    clk,
		ctx:      context.Background(),
	}
}

// newUser persists a user and returns its ID with a valid bearer token.
func (f *hubFixture) newUser(t *testing.T, name string) (string, string) {
	req := require.New(t)
	userID, err := f.users.CreateUser(f.ctx, name+"@example.com", name, "irrelevant-hash")
	req.NoError(err)
	token, err := auth.GenerateToken(userID, nil, time.Hour)
	req.NoError(err)
	return userID, token
}

// newRoom persists a room with the given participants.
func (f *hubFixture) newRoom(t *testing.T, participants ...string) chat.Room {
	req := require.New(t)
	room, err := chat.NewRoom("fixture-room", chat.RoomGroup, participants, participants[0])
	req.NoError(err)
	req.NoError(f.rooms.CreateRoom(f.ctx, room))
	return room
}

// connect authenticates a fresh connection for the token.
func (f *hubFixture) connect(token string) (*Session, *memorySink) {
	sink := &memorySink{}
	session := NewSession(sink)
	f.hub.process(f.ctx, session, chat.AuthenticateCommand{Token: token})
	return session, sink
}

func Test_Authenticate_Registers_Presence_And_AutoJoins(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceID, token := f.newUser(t, "alice")
	room := f.newRoom(t, aliceID)

	// When a connection authenticates
	session, sink := f.connect(token)

	// Then the session is bound, present, and joined to its rooms
	req.Equal(aliceID, session.UserID)
	req.True(f.registry.IsOnline(aliceID))
	req.True(session.Joined(room.ID))

	oks := ofType[event.AuthenticatedOK](sink)
	req.Len(oks, 1)
	ok := oks[0]
	req.Equal(aliceID, ok.UserID)
	req.Equal("alice", ok.DisplayName)
	req.Len(ok.OnlineUsers, 1)
}

func Test_Authenticate_Rejects_Invalid_Token(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)

	_, sink := f.connect("not-a-jwt")

	authErrors := ofType[event.AuthError](sink)
	req.Len(authErrors, 1)
	req.Equal(errors.ReasonInvalidToken, authErrors[0].Reason)
}

func Test_Authenticate_Rejects_Identity_Rebinding(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	_, aliceToken := f.newUser(t, "alice")
	_, bobToken := f.newUser(t, "bob")

	// Given an authenticated connection
	session, sink := f.connect(aliceToken)
	aliceID := session.UserID
	sink.reset()

	// When the same connection authenticates again as someone else
	f.hub.process(f.ctx, session, chat.AuthenticateCommand{Token: bobToken})

	// Then the rebinding is rejected and the original identity stands
	authErrors := ofType[event.AuthError](sink)
	req.Len(authErrors, 1)
	req.Equal(errors.ReasonAlreadyAuthed, authErrors[0].Reason)
	req.Equal(aliceID, session.UserID)
}

func Test_Presence_Announced_Once_Per_User(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	_, observerToken := f.newUser(t, "observer")
	_, aliceToken := f.newUser(t, "alice")

	_, observerSink := f.connect(observerToken)
	observerSink.reset()

	// First device: one announcement
	laptop, _ := f.connect(aliceToken)
	req.Len(ofType[event.UserOnline](observerSink), 1)

	// Second device of the same user: no announcement
	phone, _ := f.connect(aliceToken)
	req.Len(ofType[event.UserOnline](observerSink), 1)

	// First device leaves: the user is still online, no announcement
	f.hub.process(f.ctx, laptop, chat.DisconnectCommand{})
	req.Empty(ofType[event.UserOffline](observerSink))

	// Last device leaves: now the user goes offline
	f.hub.process(f.ctx, phone, chat.DisconnectCommand{})
	req.Len(ofType[event.UserOffline](observerSink), 1)
}

func Test_SendMessage_Fans_Out_And_Persists(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceID, aliceToken := f.newUser(t, "alice")
	bobID, bobToken := f.newUser(t, "bob")
	room := f.newRoom(t, aliceID, bobID)

	aliceSession, aliceSink := f.connect(aliceToken)
	_, bobSink := f.connect(bobToken)
	aliceSink.reset()
	bobSink.reset()

	f.hub.process(f.ctx, aliceSession, chat.SendMessageCommand{
		Room:    room.ID,
		Content: "hello bob",
		Kind:    chat.KindText,
	})

	// Both connections observe the message and the summary update
	for _, sink := range []*memorySink{aliceSink, bobSink} {
		posted := ofType[event.MessagePosted](sink)
		req.Len(posted, 1)
		req.Equal("hello bob", posted[0].Message.Content)
		req.Equal(aliceID, posted[0].Message.SenderID)

		updated := ofType[event.RoomUpdated](sink)
		req.Len(updated, 1)
		req.Equal("hello bob", updated[0].LastMessage.Content)
	}

	// The store agrees with what was broadcast
	stored, err := f.rooms.GetRoom(f.ctx, room.ID)
	req.NoError(err)
	req.Len(stored.Messages, 1)
	req.Equal("hello bob", stored.LastMessage.Content)
	req.Equal(aliceID, stored.LastMessage.SenderID)
}

func Test_SendMessage_Duplicate_Inside_Window_Is_Dropped(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceID, aliceToken := f.newUser(t, "alice")
	room := f.newRoom(t, aliceID)

	session, sink := f.connect(aliceToken)
	sink.reset()

	cmd := chat.SendMessageCommand{Room: room.ID, Content: "oops double click", Kind: chat.KindText}
	f.hub.process(f.ctx, session, cmd)
	f.clock.advance(300 * time.Millisecond)
	f.hub.process(f.ctx, session, cmd)

	// One broadcast, one stored message, and no error frame for the retry
	req.Len(ofType[event.MessagePosted](sink), 1)
	req.Empty(ofType[event.SendError](sink))

	stored, err := f.rooms.GetRoom(f.ctx, room.ID)
	req.NoError(err)
	req.Len(stored.Messages, 1)
}

func Test_SendMessage_Same_Content_After_Window_Is_Accepted(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceID, aliceToken := f.newUser(t, "alice")
	room := f.newRoom(t, aliceID)

	session, sink := f.connect(aliceToken)
	sink.reset()

	cmd := chat.SendMessageCommand{Room: room.ID, Content: "good morning", Kind: chat.KindText}
	f.hub.process(f.ctx, session, cmd)
	f.clock.advance(2 * time.Second)
	f.hub.process(f.ctx, session, cmd)

	req.Len(ofType[event.MessagePosted](sink), 2)

	stored, err := f.rooms.GetRoom(f.ctx, room.ID)
	req.NoError(err)
	req.Len(stored.Messages, 2)
}

func Test_SendMessage_Requires_Room_Membership(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceID, _ := f.newUser(t, "alice")
	_, malloryToken := f.newUser(t, "mallory")
	room := f.newRoom(t, aliceID)

	mallorySession, mallorySink := f.connect(malloryToken)
	mallorySink.reset()

	f.hub.process(f.ctx, mallorySession, chat.SendMessageCommand{
		Room:    room.ID,
		Content: "let me in",
		Kind:    chat.KindText,
	})

	sendErrors := ofType[event.SendError](mallorySink)
	req.Len(sendErrors, 1)
	req.Equal(errors.ReasonNotParticipant, sendErrors[0].Reason)

	stored, err := f.rooms.GetRoom(f.ctx, room.ID)
	req.NoError(err)
	req.Empty(stored.Messages)
}

func Test_SendMessage_Rejects_Empty_Content(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceID, aliceToken := f.newUser(t, "alice")
	room := f.newRoom(t, aliceID)

	session, sink := f.connect(aliceToken)
	sink.reset()

	f.hub.process(f.ctx, session, chat.SendMessageCommand{Room: room.ID, Content: ""})

	sendErrors := ofType[event.SendError](sink)
	req.Len(sendErrors, 1)
	req.Equal(errors.ReasonInvalidPayload, sendErrors[0].Reason)
}

func Test_SendMessage_Censors_Before_Persisting(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	moderator, err := moderation.NewModerator([]string{"flubber"}, '*')
	req.NoError(err)
	f.hub.WithModerator(moderator)

	aliceID, aliceToken := f.newUser(t, "alice")
	room := f.newRoom(t, aliceID)
	session, sink := f.connect(aliceToken)
	sink.reset()

	f.hub.process(f.ctx, session, chat.SendMessageCommand{
		Room:    room.ID,
		Content: "pure flubber nonsense",
		Kind:    chat.KindText,
	})

	posted := ofType[event.MessagePosted](sink)
	req.Len(posted, 1)
	req.Equal("pure ******* nonsense", posted[0].Message.Content)

	stored, err := f.rooms.GetRoom(f.ctx, room.ID)
	req.NoError(err)
	req.Equal("pure ******* nonsense", stored.Messages[0].Content)
}

func Test_MarkRoomRead_Broadcasts_Once(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceID, aliceToken := f.newUser(t, "alice")
	bobID, bobToken := f.newUser(t, "bob")
	room := f.newRoom(t, aliceID, bobID)

	aliceSession, aliceSink := f.connect(aliceToken)
	bobSession, bobSink := f.connect(bobToken)

	f.hub.process(f.ctx, aliceSession, chat.SendMessageCommand{
		Room:    room.ID,
		Content: "read me",
		Kind:    chat.KindText,
	})
	aliceSink.reset()
	bobSink.reset()

	// First mark produces a receipt for every participant to see
	f.hub.process(f.ctx, bobSession, chat.MarkRoomReadCommand{Room: room.ID})
	req.Len(ofType[event.RoomRead](aliceSink), 1)
	req.Len(ofType[event.RoomRead](bobSink), 1)
	req.Equal(bobID, ofType[event.RoomRead](aliceSink)[0].UserID)

	// A replay marks nothing and stays silent
	f.hub.process(f.ctx, bobSession, chat.MarkRoomReadCommand{Room: room.ID})
	req.Len(ofType[event.RoomRead](aliceSink), 1)

	// The receipt is persisted exactly once
	stored, err := f.rooms.GetRoom(f.ctx, room.ID)
	req.NoError(err)
	req.True(stored.Messages[0].ReadByUser(bobID))
	req.Len(stored.Messages[0].ReadBy, 2)
}

func Test_MarkMessageRead_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceID, aliceToken := f.newUser(t, "alice")
	bobID, bobToken := f.newUser(t, "bob")
	room := f.newRoom(t, aliceID, bobID)

	aliceSession, aliceSink := f.connect(aliceToken)
	bobSession, _ := f.connect(bobToken)

	f.hub.process(f.ctx, aliceSession, chat.SendMessageCommand{
		Room:    room.ID,
		Content: "one receipt only",
		Kind:    chat.KindText,
	})
	msgID := ofType[event.MessagePosted](aliceSink)[0].Message.ID
	aliceSink.reset()

	f.hub.process(f.ctx, bobSession, chat.MarkMessageReadCommand{Room: room.ID, Message: msgID})
	f.hub.process(f.ctx, bobSession, chat.MarkMessageReadCommand{Room: room.ID, Message: msgID})

	reads := ofType[event.MessageRead](aliceSink)
	req.Len(reads, 1)
	req.Equal(bobID, reads[0].UserID)
	req.Equal(msgID, reads[0].Message)
}

func Test_JoinRoom_Gated_On_Participation(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceID, aliceToken := f.newUser(t, "alice")
	_, malloryToken := f.newUser(t, "mallory")

	aliceSession, aliceSink := f.connect(aliceToken)
	mallorySession, mallorySink := f.connect(malloryToken)

	// A room created after the handshake is not auto joined
	room := f.newRoom(t, aliceID)
	req.False(aliceSession.Joined(room.ID))
	aliceSink.reset()
	mallorySink.reset()

	f.hub.process(f.ctx, aliceSession, chat.JoinRoomCommand{Room: room.ID})
	req.True(aliceSession.Joined(room.ID))
	req.Empty(aliceSink.events)

	f.hub.process(f.ctx, mallorySession, chat.JoinRoomCommand{Room: room.ID})
	req.False(mallorySession.Joined(room.ID))
	joinErrors := ofType[event.SendError](mallorySink)
	req.Len(joinErrors, 1)
	req.Equal(errors.ReasonNotParticipant, joinErrors[0].Reason)
}

func Test_Disconnect_Is_Terminal(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceID, aliceToken := f.newUser(t, "alice")
	room := f.newRoom(t, aliceID)

	session, sink := f.connect(aliceToken)
	f.hub.process(f.ctx, session, chat.DisconnectCommand{})
	sink.reset()

	req.False(f.registry.IsOnline(aliceID))
	req.Nil(f.registry.SinksForRoom(room.ID))

	// Commands racing the disconnect are dropped without a reply
	f.hub.process(f.ctx, session, chat.SendMessageCommand{
		Room:    room.ID,
		Content: "ghost message",
		Kind:    chat.KindText,
	})
	req.Empty(sink.events)

	stored, err := f.rooms.GetRoom(f.ctx, room.ID)
	req.NoError(err)
	req.Empty(stored.Messages)
}

func Test_Disconnect_Survives_A_Saturated_Hub(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceID, aliceToken := f.newUser(t, "alice")

	session, _ := f.connect(aliceToken)
	req.True(f.registry.IsOnline(aliceID))

	// Given a command buffer filled to capacity
	for i := 0; i < cap(f.hub.commands); i++ {
		f.hub.Dispatch(session, chat.LeaveRoomCommand{Room: "noise"})
	}

	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	go func() { _ = f.hub.Run(ctx) }()

	// When the transport reports the disconnect, it must not be dropped
	f.hub.Dispatch(session, chat.DisconnectCommand{})

	req.Eventually(func() bool {
		return !f.registry.IsOnline(aliceID)
	}, 2*time.Second, 10*time.Millisecond)
}
