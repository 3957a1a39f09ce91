package runtime

import (
	"sync"

	"chat-hub/contract"
	"chat-hub/domain/chat"
)

type sinkSet map[contract.EventSink]struct{}

// Registry answers "who is online, and through which connections?".
// It tracks two independent mappings:
//  1. Sessions: user identity -> active sinks, for presence queries and
//     presence broadcasts. A user with several devices has several sinks.
//  2. RoomMembers: room -> sinks currently joined to its fan-out group.
//     Membership is connection-scoped: when a connection goes away its
//     sinks simply disappear from every set.
//
// The registry is constructed once per process and passed by reference into
// the hub. It keeps its own lock so read-side consumers (snapshots, REST
// handlers) never depend on the hub's scheduling.
type Registry struct {
	mu          sync.RWMutex
	Sessions    map[string]sinkSet
	RoomMembers map[chat.RoomID]sinkSet
}

func NewRegistry() *Registry {
	return &Registry{
		Sessions:    make(map[string]sinkSet),
		RoomMembers: make(map[chat.RoomID]sinkSet),
	}
}

// Register idempotently associates a connection with a user identity.
func (r *Registry) Register(userID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.Sessions[userID]; !ok {
		r.Sessions[userID] = make(sinkSet)
	}
	r.Sessions[userID][sink] = struct{}{}
}

// Unregister removes one connection of a user. The user stays online as long
// as another connection remains. Empty sets are removed so presence snapshots
// stay accurate and the map doesn't grow forever.
func (r *Registry) Unregister(userID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sinks, ok := r.Sessions[userID]; ok {
		delete(sinks, sink)
		if len(sinks) == 0 {
			delete(r.Sessions, userID)
		}
	}
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Sessions[userID]) > 0
}

func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.Sessions))
	for userID := range r.Sessions {
		users = append(users, userID)
	}
	return users
}

// OnlineCount reports how many distinct users are online.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Sessions)
}

// RoomCount reports how many rooms have at least one joined connection.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.RoomMembers)
}

func (r *Registry) Join(roomID chat.RoomID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.RoomMembers[roomID]; !ok {
		r.RoomMembers[roomID] = make(sinkSet)
	}
	r.RoomMembers[roomID][sink] = struct{}{}
}

func (r *Registry) Leave(roomID chat.RoomID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sinks, ok := r.RoomMembers[roomID]; ok {
		delete(sinks, sink)
		if len(sinks) == 0 {
			delete(r.RoomMembers, roomID)
		}
	}
}

// SinksForRoom retrieves all connections currently joined to a room.
// Returns nil if the room has no joined connection.
func (r *Registry) SinksForRoom(roomID chat.RoomID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.RoomMembers[roomID]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for sink := range members {
		activeSinks = append(activeSinks, sink)
	}
	return activeSinks
}

// AllSinks retrieves every registered connection, once each, for
// presence broadcasts.
func (r *Registry) AllSinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(sinkSet)
	var activeSinks []contract.EventSink
	for _, sinks := range r.Sessions {
		for sink := range sinks {
			if _, ok := seen[sink]; ok {
				continue
			}
			seen[sink] = struct{}{}
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}
