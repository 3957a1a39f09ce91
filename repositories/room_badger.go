package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chat-hub/domain/chat"
	"chat-hub/errors"
)

// BadgerRoomRepository stores each room as a single JSON document.
// Keys:
//   - "room:{room_id}" holds the full aggregate
//   - "member:{user_id}:{room_id}" indexes membership for RoomsForUser
//
// Every mutation runs inside one badger transaction, so the message list and
// the last-message summary can never diverge for a reader.
type BadgerRoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBadgerRoomRepository(db *badger.DB, log *slog.Logger) *BadgerRoomRepository {
	return &BadgerRoomRepository{db: db, log: log}
}

func roomKey(id chat.RoomID) []byte {
	return []byte(fmt.Sprintf("room:%s", id))
}

func memberKey(userID string, id chat.RoomID) []byte {
	return []byte(fmt.Sprintf("member:%s:%s", userID, id))
}

func (r *BadgerRoomRepository) CreateRoom(_ context.Context, room chat.Room) error {
	data, err := json.Marshal(fromRoom(room))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(roomKey(room.ID), data); err != nil {
			return err
		}
		for _, userID := range room.Participants {
			if err := txn.Set(memberKey(userID, room.ID), []byte(room.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *BadgerRoomRepository) GetRoom(_ context.Context, roomID chat.RoomID) (chat.Room, error) {
	var doc storedRoom
	err := r.db.View(func(txn *badger.Txn) error {
		return readRoom(txn, roomID, &doc)
	})
	if err != nil {
		return chat.Room{}, err
	}
	return toRoom(doc), nil
}

// RoomsForUser resolves the membership index with a prefix scan, then loads
// each referenced document.
func (r *BadgerRoomRepository) RoomsForUser(_ context.Context, userID string) ([]chat.Room, error) {
	var rooms []chat.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("member:%s:", userID))
		options := badger.DefaultIteratorOptions
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var roomID string
			err := it.Item().Value(func(val []byte) error {
				roomID = string(val)
				return nil
			})
			if err != nil {
				return err
			}
			var doc storedRoom
			if err := readRoom(txn, chat.RoomID(roomID), &doc); err != nil {
				// A dangling index entry is logged, not fatal.
				r.log.Warn("membership index points to a missing room",
					"user_id", userID, "room_id", roomID)
				continue
			}
			rooms = append(rooms, toRoom(doc))
		}
		return nil
	})
	return rooms, err
}

// AppendMessage is the read-modify-write of the aggregate, done in a single
// transaction: append plus summary update commit together or not at all.
func (r *BadgerRoomRepository) AppendMessage(_ context.Context, roomID chat.RoomID, msg chat.Message) (chat.Room, error) {
	return r.mutate(roomID, func(room *chat.Room) (bool, error) {
		room.Append(msg)
		return true, nil
	})
}

func (r *BadgerRoomRepository) MarkRoomRead(_ context.Context, roomID chat.RoomID, userID string, at time.Time) (chat.Room, int, error) {
	marked := 0
	room, err := r.mutate(roomID, func(room *chat.Room) (bool, error) {
		marked = room.MarkAllRead(userID, at)
		return marked > 0, nil
	})
	return room, marked, err
}

func (r *BadgerRoomRepository) MarkMessageRead(_ context.Context, roomID chat.RoomID, msgID chat.MessageID, userID string, at time.Time) (chat.Room, bool, error) {
	markedNew := false
	room, err := r.mutate(roomID, func(room *chat.Room) (bool, error) {
		msg, ok := room.MessageByID(msgID)
		if !ok {
			return false, errors.ErrMessageNotFound
		}
		markedNew = msg.MarkReadBy(userID, at)
		return markedNew, nil
	})
	return room, markedNew, err
}

// mutate loads the aggregate, applies fn, and writes it back only when fn
// reports a change. The whole cycle runs in one badger update transaction.
func (r *BadgerRoomRepository) mutate(roomID chat.RoomID, fn func(room *chat.Room) (bool, error)) (chat.Room, error) {
	var room chat.Room
	err := r.db.Update(func(txn *badger.Txn) error {
		var doc storedRoom
		if err := readRoom(txn, roomID, &doc); err != nil {
			return err
		}
		room = toRoom(doc)
		changed, err := fn(&room)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		data, err := json.Marshal(fromRoom(room))
		if err != nil {
			return fmt.Errorf("marshal failed: %w", err)
		}
		return txn.Set(roomKey(roomID), data)
	})
	if err != nil {
		return chat.Room{}, err
	}
	return room, nil
}

func readRoom(txn *badger.Txn, roomID chat.RoomID, doc *storedRoom) error {
	item, err := txn.Get(roomKey(roomID))
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrRoomNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, doc)
	})
}
