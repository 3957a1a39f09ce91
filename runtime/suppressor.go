package runtime

import (
	"time"

	"chat-hub/domain/chat"
)

const (
	// DefaultSuppressWindow is how close two identical sends must be for the
	// second one to be collapsed.
	DefaultSuppressWindow = 2 * time.Second
	// DefaultPurgeHorizon bounds how long a key survives before the
	// opportunistic purge reclaims it.
	DefaultPurgeHorizon = 5 * time.Second
)

type dedupKey struct {
	senderID string
	roomID   chat.RoomID
	content  string
}

// Suppressor collapses accidental double-sends: a (sender, room, content)
// triple seen twice within the window is treated as a client retry and
// dropped. This is a best-effort cache, not an idempotency mechanism: two
// genuinely distinct messages with identical content inside the window are
// also suppressed, which is the accepted trade-off.
//
// The suppressor is mutated only from the hub's event loop and needs no lock.
type Suppressor struct {
	window  time.Duration
	horizon time.Duration
	seen    map[dedupKey]time.Time
}

func NewSuppressor(window, horizon time.Duration) *Suppressor {
	if window <= 0 {
		window = DefaultSuppressWindow
	}
	if horizon <= 0 {
		horizon = DefaultPurgeHorizon
	}
	return &Suppressor{
		window:  window,
		horizon: horizon,
		seen:    make(map[dedupKey]time.Time),
	}
}

// ShouldSuppress reports whether this send attempt repeats one processed
// less than the window ago. A suppressed attempt does NOT refresh the stored
// timestamp: a client hammering the same content still gets through once the
// window since the accepted send elapses.
func (s *Suppressor) ShouldSuppress(senderID string, roomID chat.RoomID, content string, now time.Time) bool {
	s.purge(now)

	key := dedupKey{senderID: senderID, roomID: roomID, content: content}
	if last, ok := s.seen[key]; ok && now.Sub(last) < s.window {
		return true
	}
	s.seen[key] = now
	return false
}

// purge evicts entries older than the horizon on every call to bound memory.
func (s *Suppressor) purge(now time.Time) {
	for key, last := range s.seen {
		if now.Sub(last) >= s.horizon {
			delete(s.seen, key)
		}
	}
}
