//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"chat-hub/domain/chat"
	"chat-hub/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one connected client's outbound channel. Consume must not
// block the hub's event loop.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IRegistry interface {
	Register(userID string, sink EventSink)
	Unregister(userID string, sink EventSink)
	IsOnline(userID string) bool
	OnlineUsers() []string
	Join(roomID chat.RoomID, sink EventSink)
	Leave(roomID chat.RoomID, sink EventSink)
	SinksForRoom(roomID chat.RoomID) []EventSink
	AllSinks() []EventSink
}

type ISuppressor interface {
	ShouldSuppress(senderID string, roomID chat.RoomID, content string, now time.Time) bool
}

// CredentialVerifier is the external auth collaborator: it resolves an opaque
// bearer token into a user identity or rejects it.
type CredentialVerifier interface {
	Verify(token string) (userID string, err error)
}
