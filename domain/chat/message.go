// Package chat contains core concepts of the messaging system.
// This file defines Message entities and their read-tracking rules.
// No runtime, network, or storage logic should be added here.
package chat

import (
	"time"

	"github.com/google/uuid"
)

type MessageID string

type MessageKind string

const (
	KindText   MessageKind = "text"
	KindImage  MessageKind = "image"
	KindFile   MessageKind = "file"
	KindSystem MessageKind = "system"
)

// ReadReceipt records that a user has read a message.
// Receipts only accumulate, they are never removed.
type ReadReceipt struct {
	UserID string
	ReadAt time.Time
}

type Message struct {
	ID        MessageID
	SenderID  string
	Content   string
	Kind      MessageKind
	ReadBy    []ReadReceipt
	CreatedAt time.Time
	EditedAt  *time.Time
}

// NewMessage builds a server-assigned message.
// ReadBy is seeded with the sender: a user has trivially read their own message.
func NewMessage(senderID, content string, kind MessageKind, at time.Time) Message {
	if kind == "" {
		kind = KindText
	}
	return Message{
		ID:        MessageID(uuid.NewString()),
		SenderID:  senderID,
		Content:   content,
		Kind:      kind,
		ReadBy:    []ReadReceipt{{UserID: senderID, ReadAt: at}},
		CreatedAt: at,
	}
}

// ReadByUser reports whether userID already holds a receipt on the message.
func (m *Message) ReadByUser(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// MarkReadBy appends a receipt for userID unless one already exists.
// It returns true when a new receipt was added, keeping the
// one-receipt-per-user invariant.
func (m *Message) MarkReadBy(userID string, at time.Time) bool {
	if m.ReadByUser(userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, ReadReceipt{UserID: userID, ReadAt: at})
	return true
}
