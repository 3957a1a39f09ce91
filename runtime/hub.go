// Package runtime is the presence and messaging core: a single event loop
// that authenticates connections, joins them to their rooms, deduplicates
// and persists message sends, and fans the resulting events out to every
// connection concerned.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-hub/contract"
	"chat-hub/domain/chat"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/moderation"
	"chat-hub/observability"
	"chat-hub/repositories"
)

// sessionCommand pairs an intent with the connection it arrived on.
type sessionCommand struct {
	session *Session
	cmd     chat.Command
}

// Hub processes session commands one at a time on a single goroutine. Every
// handler runs to completion, persistence round-trip and broadcast included,
// before the next command is taken, so the registry, the suppressor and the
// per-session state need no locking from the hub's side.
type Hub struct {
	log        *slog.Logger
	registry   contract.IRegistry
	suppressor contract.ISuppressor
	rooms      repositories.IRoomRepository
	users      repositories.IUserRepository
	verifier   contract.CredentialVerifier
	moderator  *moderation.Moderator
	metrics    *observability.Manager

	// permanentSinks receive every broadcast event regardless of room
	// membership (search indexing, projections).
	permanentSinks []contract.EventSink

	// names mirrors the display name of every online user, maintained by the
	// loop so presence snapshots don't re-query the user directory.
	names map[string]string

	commands chan sessionCommand
	now      func() time.Time
}

func NewHub(log *slog.Logger, registry contract.IRegistry, suppressor contract.ISuppressor,
	rooms repositories.IRoomRepository, users repositories.IUserRepository,
	verifier contract.CredentialVerifier, bufferSize int) *Hub {
	return &Hub{
		log:        log,
		registry:   registry,
		suppressor: suppressor,
		rooms:      rooms,
		users:      users,
		verifier:   verifier,
		names:      make(map[string]string),
		commands:   make(chan sessionCommand, bufferSize),
		now:        time.Now,
	}
}

// WithModerator censors message content before persistence.
func (h *Hub) WithModerator(m *moderation.Moderator) *Hub {
	h.moderator = m
	return h
}

// WithMetrics feeds hub counters into the monitoring manager.
func (h *Hub) WithMetrics(m *observability.Manager) *Hub {
	h.metrics = m
	return h
}

// Add attaches permanent sinks fed with every broadcast event.
func (h *Hub) Add(sinks ...contract.EventSink) {
	h.permanentSinks = append(h.permanentSinks, sinks...)
}

// Dispatch enqueues a command for the event loop. It never blocks the
// transport: when the hub is saturated the command is dropped and logged.
// Disconnects are the exception: the registry must unregister once per
// connection, so a DisconnectCommand waits for a slot instead of dropping.
func (h *Hub) Dispatch(session *Session, cmd chat.Command) {
	if _, terminal := cmd.(chat.DisconnectCommand); terminal {
		h.commands <- sessionCommand{session: session, cmd: cmd}
		return
	}
	select {
	case h.commands <- sessionCommand{session: session, cmd: cmd}:
	default:
		h.log.Warn("command channel full, dropping command",
			"session_id", session.ID, "command", fmt.Sprintf("%T", cmd))
		if h.metrics != nil {
			h.metrics.IncrCommandDropped()
		}
	}
}

// Run consumes commands until the context is cancelled. It satisfies
// contract.Worker so the supervisor restarts it after a panic.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.log.Debug("Stopping hub")
			return ctx.Err()
		case sc, ok := <-h.commands:
			if !ok {
				return nil
			}
			h.process(ctx, sc.session, sc.cmd)
		}
	}
}

func (h *Hub) process(ctx context.Context, session *Session, cmd chat.Command) {
	if session.detached {
		// Commands racing a disconnect are dropped: the terminal state wins.
		return
	}
	switch c := cmd.(type) {
	case chat.AuthenticateCommand:
		h.authenticate(ctx, session, c.Token)
	case chat.JoinRoomCommand:
		h.joinRoom(ctx, session, c.Room)
	case chat.LeaveRoomCommand:
		h.leaveRoom(session, c.Room)
	case chat.SendMessageCommand:
		h.sendMessage(ctx, session, c)
	case chat.MarkRoomReadCommand:
		h.markRoomRead(ctx, session, c.Room)
	case chat.MarkMessageReadCommand:
		h.markMessageRead(ctx, session, c.Room, c.Message)
	case chat.DisconnectCommand:
		h.disconnect(ctx, session)
	default:
		h.log.Warn("unknown command", "command", fmt.Sprintf("%T", cmd))
	}
}

// authenticate resolves the bearer token, registers presence, auto-joins the
// connection to every room the user participates in, announces the user to
// everyone, and replies with the presence snapshot. A session that is
// already authenticated is rejected: rebinding a live connection to another
// identity invites identity-confusion bugs.
func (h *Hub) authenticate(ctx context.Context, session *Session, token string) {
	if session.Authenticated() {
		h.reply(ctx, session, event.AuthError{Reason: errors.ReasonAlreadyAuthed})
		return
	}

	userID, err := h.verifier.Verify(token)
	if err != nil {
		if h.metrics != nil {
			h.metrics.IncrAuthFailure()
		}
		h.reply(ctx, session, event.AuthError{Reason: errors.ReasonInvalidToken})
		return
	}
	user, err := h.users.GetUserByID(ctx, userID)
	if err != nil {
		if h.metrics != nil {
			h.metrics.IncrAuthFailure()
		}
		h.reply(ctx, session, event.AuthError{Reason: errors.MapToReason(err)})
		return
	}

	memberRooms, err := h.rooms.RoomsForUser(ctx, userID)
	if err != nil {
		h.log.Error("room lookup failed during authentication", "user_id", userID, "error", err)
		h.reply(ctx, session, event.AuthError{Reason: errors.ReasonPersistence})
		return
	}

	wasOnline := h.registry.IsOnline(userID)
	session.UserID = user.ID
	session.DisplayName = user.DisplayName
	h.registry.Register(user.ID, session.sink)
	h.names[user.ID] = user.DisplayName

	for _, room := range memberRooms {
		h.registry.Join(room.ID, session.sink)
		session.rooms[room.ID] = struct{}{}
	}

	// Presence is announced on the offline -> online transition only, so a
	// second device doesn't re-announce the same user.
	if !wasOnline {
		h.broadcastAll(ctx, event.UserOnline{UserID: user.ID, DisplayName: user.DisplayName})
	}

	h.reply(ctx, session, event.AuthenticatedOK{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		OnlineUsers: h.onlineSnapshot(),
	})
}

// joinRoom adds the connection to a room's fan-out group. Membership is
// checked against the persisted participant list: a connection cannot
// eavesdrop on a room it does not belong to.
func (h *Hub) joinRoom(ctx context.Context, session *Session, roomID chat.RoomID) {
	if !session.Authenticated() {
		h.reply(ctx, session, event.SendError{Room: roomID, Reason: errors.ReasonNotAuthenticated})
		return
	}
	room, err := h.rooms.GetRoom(ctx, roomID)
	if err != nil {
		h.reply(ctx, session, event.SendError{Room: roomID, Reason: errors.MapToReason(err)})
		return
	}
	if !room.HasParticipant(session.UserID) {
		h.reply(ctx, session, event.SendError{Room: roomID, Reason: errors.ReasonNotParticipant})
		return
	}
	h.registry.Join(roomID, session.sink)
	session.rooms[roomID] = struct{}{}
}

// leaveRoom removes the connection from the fan-out group. No persistence
// side effect: the user is still a participant of the room.
func (h *Hub) leaveRoom(session *Session, roomID chat.RoomID) {
	h.registry.Leave(roomID, session.sink)
	delete(session.rooms, roomID)
}

// sendMessage validates, deduplicates, persists and fans out. Every failure
// is signalled to the caller only; a suppressed duplicate is dropped
// silently so client retries don't surface as errors.
func (h *Hub) sendMessage(ctx context.Context, session *Session, cmd chat.SendMessageCommand) {
	if !session.Authenticated() {
		h.reply(ctx, session, event.SendError{Room: cmd.Room, Reason: errors.ReasonNotAuthenticated})
		return
	}
	if cmd.Content == "" {
		h.reply(ctx, session, event.SendError{Room: cmd.Room, Reason: errors.ReasonInvalidPayload})
		return
	}

	room, err := h.rooms.GetRoom(ctx, cmd.Room)
	if err != nil {
		h.reply(ctx, session, event.SendError{Room: cmd.Room, Reason: errors.MapToReason(err)})
		return
	}
	if !room.HasParticipant(session.UserID) {
		h.reply(ctx, session, event.SendError{Room: cmd.Room, Reason: errors.ReasonNotParticipant})
		return
	}

	content := cmd.Content
	if h.moderator != nil {
		content = h.moderator.Censor(content)
	}

	now := h.now().UTC()
	if h.suppressor.ShouldSuppress(session.UserID, cmd.Room, content, now) {
		h.log.Debug("duplicate send suppressed",
			"user_id", session.UserID, "room_id", cmd.Room)
		if h.metrics != nil {
			h.metrics.IncrMessageSuppressed()
		}
		return
	}

	msg := chat.NewMessage(session.UserID, content, cmd.Kind, now)
	updated, err := h.rooms.AppendMessage(ctx, cmd.Room, msg)
	if err != nil {
		// No broadcast on persistence failure: no client may observe a
		// message the store didn't durably accept.
		h.log.Error("message persistence failed", "room_id", cmd.Room, "error", err)
		h.reply(ctx, session, event.SendError{Room: cmd.Room, Reason: errors.ReasonPersistence})
		return
	}

	if h.metrics != nil {
		h.metrics.IncrMessagePosted()
	}
	h.broadcastToRoom(ctx, cmd.Room, event.MessagePosted{Room: cmd.Room, Message: msg})
	h.broadcastToRoom(ctx, cmd.Room, event.RoomUpdated{
		Room:         updated.ID,
		Name:         updated.Name,
		Kind:         updated.Kind,
		Participants: updated.Participants,
		LastMessage:  updated.LastMessage,
	})
}

// markRoomRead adds a receipt for the caller to every unread message of the
// room. Nothing changed means no write and no broadcast.
func (h *Hub) markRoomRead(ctx context.Context, session *Session, roomID chat.RoomID) {
	if !h.authorizeRead(ctx, session, roomID) {
		return
	}
	_, marked, err := h.rooms.MarkRoomRead(ctx, roomID, session.UserID, h.now().UTC())
	if err != nil {
		h.reply(ctx, session, event.SendError{Room: roomID, Reason: errors.MapToReason(err)})
		return
	}
	if marked == 0 {
		return
	}
	h.broadcastToRoom(ctx, roomID, event.RoomRead{
		Room:   roomID,
		UserID: session.UserID,
		At:     h.now().UTC(),
	})
}

func (h *Hub) markMessageRead(ctx context.Context, session *Session, roomID chat.RoomID, msgID chat.MessageID) {
	if !h.authorizeRead(ctx, session, roomID) {
		return
	}
	_, marked, err := h.rooms.MarkMessageRead(ctx, roomID, msgID, session.UserID, h.now().UTC())
	if err != nil {
		h.reply(ctx, session, event.SendError{Room: roomID, Reason: errors.MapToReason(err)})
		return
	}
	if !marked {
		return
	}
	h.broadcastToRoom(ctx, roomID, event.MessageRead{
		Room:    roomID,
		Message: msgID,
		UserID:  session.UserID,
		At:      h.now().UTC(),
	})
}

// authorizeRead gates read-receipt operations on authentication and room
// membership, signalling the caller on failure.
func (h *Hub) authorizeRead(ctx context.Context, session *Session, roomID chat.RoomID) bool {
	if !session.Authenticated() {
		h.reply(ctx, session, event.SendError{Room: roomID, Reason: errors.ReasonNotAuthenticated})
		return false
	}
	room, err := h.rooms.GetRoom(ctx, roomID)
	if err != nil {
		h.reply(ctx, session, event.SendError{Room: roomID, Reason: errors.MapToReason(err)})
		return false
	}
	if !room.HasParticipant(session.UserID) {
		h.reply(ctx, session, event.SendError{Room: roomID, Reason: errors.ReasonNotParticipant})
		return false
	}
	return true
}

// disconnect is terminal. Room membership is connection-scoped, so dropping
// the sinks from the registry is the whole cleanup.
func (h *Hub) disconnect(ctx context.Context, session *Session) {
	session.detached = true
	if !session.Authenticated() {
		return
	}
	for roomID := range session.rooms {
		h.registry.Leave(roomID, session.sink)
	}
	h.registry.Unregister(session.UserID, session.sink)
	if !h.registry.IsOnline(session.UserID) {
		delete(h.names, session.UserID)
		h.broadcastAll(ctx, event.UserOffline{UserID: session.UserID})
	}
}

func (h *Hub) onlineSnapshot() []event.OnlineUser {
	users := h.registry.OnlineUsers()
	snapshot := make([]event.OnlineUser, 0, len(users))
	for _, userID := range users {
		snapshot = append(snapshot, event.OnlineUser{
			UserID:      userID,
			DisplayName: h.names[userID],
		})
	}
	return snapshot
}

func (h *Hub) reply(ctx context.Context, session *Session, evt event.DomainEvent) {
	if err := session.sink.Consume(ctx, evt); err != nil {
		h.log.Warn("failed to deliver caller-scoped event",
			"session_id", session.ID, "error", err)
	}
}

func (h *Hub) broadcastToRoom(ctx context.Context, roomID chat.RoomID, evt event.DomainEvent) {
	h.fanout(ctx, h.registry.SinksForRoom(roomID), evt)
}

func (h *Hub) broadcastAll(ctx context.Context, evt event.DomainEvent) {
	h.fanout(ctx, h.registry.AllSinks(), evt)
}

func (h *Hub) fanout(ctx context.Context, sinks []contract.EventSink, evt event.DomainEvent) {
	for _, sink := range sinks {
		if err := sink.Consume(ctx, evt); err != nil {
			h.log.Warn("sink rejected event", "error", err)
		}
	}
	for _, sink := range h.permanentSinks {
		if err := sink.Consume(ctx, evt); err != nil {
			h.log.Warn("permanent sink rejected event", "error", err)
		}
	}
}
