// Package search maintains a full-text index over persisted messages and
// serves room-scoped term queries. The index is a projection fed by the
// hub's fan-out: losing it loses search results, never messages.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"

	"chat-hub/domain/chat"
)

type Hit struct {
	MessageID chat.MessageID
	Room      chat.RoomID
	SenderID  string
	Content   string
	CreatedAt time.Time
}

type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewIndex(path string, log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("opening search index: %w", err)
	}
	return &Index{writer: writer, log: log}, nil
}

func (i *Index) Close() error {
	return i.writer.Close()
}

// IndexMessage upserts one message document. Room and sender are keyword
// fields so they filter exactly; content is analyzed for term matching.
func (i *Index) IndexMessage(roomID chat.RoomID, msg chat.Message) error {
	doc := bluge.NewDocument(string(msg.ID)).
		AddField(bluge.NewKeywordField("room", string(roomID)).StoreValue()).
		AddField(bluge.NewKeywordField("sender", msg.SenderID).StoreValue()).
		AddField(bluge.NewTextField("content", msg.Content).StoreValue()).
		AddField(bluge.NewStoredOnlyField("created_at", []byte(msg.CreatedAt.Format(time.RFC3339Nano))))
	return i.writer.Update(doc.ID(), doc)
}

// Search returns the best matches for terms within one room.
func (i *Index) Search(ctx context.Context, roomID chat.RoomID, terms string, limit int) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = reader.Close()
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(string(roomID)).SetField("room")).
		AddMust(bluge.NewMatchQuery(terms).SetField("content"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		hit := Hit{}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = chat.MessageID(value)
			case "room":
				hit.Room = chat.RoomID(value)
			case "sender":
				hit.SenderID = string(value)
			case "content":
				hit.Content = string(value)
			case "created_at":
				if at, err := time.Parse(time.RFC3339Nano, string(value)); err == nil {
					hit.CreatedAt = at
				}
			}
			return true
		})
		if err != nil {
			i.log.Warn("failed to read stored fields", "error", err)
			continue
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
