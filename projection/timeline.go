// Package projection builds local read models from observed events.
// Handles ordering and deduplication. Does not emit events.
package projection

import (
	"context"
	"sort"
	"sync"

	"chat-hub/domain/chat"
	"chat-hub/domain/event"
)

// Timeline accumulates the messages posted to one room, ordered by creation
// time and deduplicated by message ID. With a zero Room it tracks every
// room, which is what the hub's permanent sinks see.
type Timeline struct {
	Room chat.RoomID

	mu       sync.Mutex
	messages []chat.Message
	seen     map[chat.MessageID]struct{}
}

func NewTimeline(room chat.RoomID) *Timeline {
	return &Timeline{
		Room: room,
		seen: make(map[chat.MessageID]struct{}),
	}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	posted, ok := e.(event.MessagePosted)
	if !ok {
		return nil
	}
	if t.Room != "" && posted.Room != t.Room {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, dup := t.seen[posted.Message.ID]; dup {
		return nil
	}
	t.seen[posted.Message.ID] = struct{}{}
	t.messages = append(t.messages, posted.Message)

	// Events can arrive out of order when several hubs feed one timeline.
	sort.SliceStable(t.messages, func(i, j int) bool {
		return t.messages[i].CreatedAt.Before(t.messages[j].CreatedAt)
	})
	return nil
}

// Messages returns a copy of the ordered timeline.
func (t *Timeline) Messages() []chat.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]chat.Message, len(t.messages))
	copy(out, t.messages)
	return out
}
