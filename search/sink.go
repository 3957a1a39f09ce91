package search

import (
	"context"
	"log/slog"

	"chat-hub/domain/event"
)

// IndexSink decouples the hub's fan-out from index writes: Consume only
// enqueues, the supervised Run goroutine does the indexing. A full buffer
// drops the event rather than stalling the event loop; the index is a
// projection and tolerates gaps.
type IndexSink struct {
	log    *slog.Logger
	index  *Index
	events chan event.MessagePosted
}

func NewIndexSink(log *slog.Logger, index *Index, bufferSize int) *IndexSink {
	return &IndexSink{
		log:    log,
		index:  index,
		events: make(chan event.MessagePosted, bufferSize),
	}
}

func (s *IndexSink) Consume(_ context.Context, e event.DomainEvent) error {
	posted, ok := e.(event.MessagePosted)
	if !ok {
		return nil
	}
	select {
	case s.events <- posted:
	default:
		s.log.Warn("search index buffer full, dropping message",
			"room_id", posted.Room, "message_id", posted.Message.ID)
	}
	return nil
}

func (s *IndexSink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.log.Debug("Stopping index sink")
			return ctx.Err()
		case posted := <-s.events:
			if err := s.index.IndexMessage(posted.Room, posted.Message); err != nil {
				s.log.Error("message indexing failed",
					"message_id", posted.Message.ID, "error", err)
			}
		}
	}
}
