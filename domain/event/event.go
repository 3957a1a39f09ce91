// Package event defines the outbound events produced by the hub.
// Broadcast events reach every sink joined to a room (or every connected
// sink for presence); caller-scoped events reach only the session that
// triggered them.
package event

import (
	"time"

	"chat-hub/domain/chat"
	"chat-hub/errors"
)

type DomainEvent interface {
	isEvent()
}

// OnlineUser is one entry of the presence snapshot.
type OnlineUser struct {
	UserID      string
	DisplayName string
}

// AuthenticatedOK is the caller-scoped reply to a successful authenticate,
// carrying the current presence snapshot.
type AuthenticatedOK struct {
	UserID      string
	DisplayName string
	OnlineUsers []OnlineUser
}

// AuthError is caller-scoped. The connection stays unauthenticated.
type AuthError struct {
	Reason errors.Reason
}

type UserOnline struct {
	UserID      string
	DisplayName string
}

type UserOffline struct {
	UserID string
}

// MessagePosted fans out to every connection joined to the room, including
// the sender, so the sending client reconciles against the server copy.
type MessagePosted struct {
	Room    chat.RoomID
	Message chat.Message
}

// RoomUpdated carries the denormalized summary after every append so clients
// can re-sort their room lists.
type RoomUpdated struct {
	Room         chat.RoomID
	Name         string
	Kind         chat.RoomKind
	Participants []string
	LastMessage  chat.LastMessage
}

// RoomRead signals that userID marked the whole room as read.
type RoomRead struct {
	Room   chat.RoomID
	UserID string
	At     time.Time
}

// MessageRead is the single-message variant of RoomRead.
type MessageRead struct {
	Room    chat.RoomID
	Message chat.MessageID
	UserID  string
	At      time.Time
}

// SendError is caller-scoped. Suppressed duplicates never produce one.
type SendError struct {
	Room   chat.RoomID
	Reason errors.Reason
}

func (AuthenticatedOK) isEvent() {}
func (AuthError) isEvent()       {}
func (UserOnline) isEvent()      {}
func (UserOffline) isEvent()     {}
func (MessagePosted) isEvent()   {}
func (RoomUpdated) isEvent()     {}
func (RoomRead) isEvent()        {}
func (MessageRead) isEvent()     {}
func (SendError) isEvent()       {}
