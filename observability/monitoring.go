package observability

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Stats aggregates the metrics exposed by the debug endpoint.
type Stats struct {
	// --- HUB METRICS ---
	OnlineUsers        int    `json:"online_users"`
	RoomsWithListeners int    `json:"rooms_with_listeners"`
	MessagesPosted     uint64 `json:"messages_posted"`
	MessagesSuppressed uint64 `json:"messages_suppressed"`
	AuthFailures       uint64 `json:"auth_failures"`
	CommandsDropped    uint64 `json:"commands_dropped"`

	// --- SYSTEM METRICS ---
	AllocMemMb uint64 `json:"alloc_mem_mb"`
	NumGC      uint32 `json:"num_gc"`
}

// PresenceProbe reports the live listener counts. Satisfied by the registry.
type PresenceProbe interface {
	OnlineCount() int
	RoomCount() int
}

// Manager keeps real-time counters for the hub. Increment methods are safe
// to call from any goroutine.
type Manager struct {
	log      *slog.Logger
	presence PresenceProbe
	interval time.Duration

	mu          sync.RWMutex
	latestStats Stats

	messagesPosted     uint64
	messagesSuppressed uint64
	authFailures       uint64
	commandsDropped    uint64
}

func NewManager(log *slog.Logger, presence PresenceProbe, interval time.Duration) *Manager {
	return &Manager{log: log, presence: presence, interval: interval}
}

func (mm *Manager) IncrMessagePosted() {
	atomic.AddUint64(&mm.messagesPosted, 1)
}

func (mm *Manager) IncrMessageSuppressed() {
	atomic.AddUint64(&mm.messagesSuppressed, 1)
}

func (mm *Manager) IncrAuthFailure() {
	atomic.AddUint64(&mm.authFailures, 1)
}

func (mm *Manager) IncrCommandDropped() {
	atomic.AddUint64(&mm.commandsDropped, 1)
}

// Run refreshes the snapshot on a ticker until the context is cancelled.
// Registered with the supervisor like any other worker.
func (mm *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(mm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mm.log.Info("Monitoring manager stopped")
			return nil
		case <-ticker.C:
			mm.updateStats()
		}
	}
}

func (mm *Manager) updateStats() {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.latestStats.MessagesPosted = atomic.LoadUint64(&mm.messagesPosted)
	mm.latestStats.MessagesSuppressed = atomic.LoadUint64(&mm.messagesSuppressed)
	mm.latestStats.AuthFailures = atomic.LoadUint64(&mm.authFailures)
	mm.latestStats.CommandsDropped = atomic.LoadUint64(&mm.commandsDropped)

	if mm.presence != nil {
		mm.latestStats.OnlineUsers = mm.presence.OnlineCount()
		mm.latestStats.RoomsWithListeners = mm.presence.RoomCount()
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	mm.latestStats.AllocMemMb = m.Alloc / 1024 / 1024
	mm.latestStats.NumGC = m.NumGC

	mm.log.Debug("Stats refreshed",
		"online_users", mm.latestStats.OnlineUsers,
		"messages_posted", mm.latestStats.MessagesPosted,
		"messages_suppressed", mm.latestStats.MessagesSuppressed,
		"mem_mb", mm.latestStats.AllocMemMb,
	)
}

func (mm *Manager) GetLatest() Stats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latestStats
}
