package repositories

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chat-hub/domain/chat"
	"chat-hub/errors"
)

// MongoRoomRepository stores each room as one document in a "rooms"
// collection. Appending a message pushes onto the embedded array and sets
// the last-message summary in the same UpdateOne, the store's native atomic
// primitive, so concurrent writers cannot interleave a message list with a
// stale summary.
type MongoRoomRepository struct {
	rooms *mongo.Collection
	log   *slog.Logger
}

func NewMongoRoomRepository(db *mongo.Database, log *slog.Logger) *MongoRoomRepository {
	return &MongoRoomRepository{rooms: db.Collection("rooms"), log: log}
}

func (r *MongoRoomRepository) CreateRoom(ctx context.Context, room chat.Room) error {
	_, err := r.rooms.InsertOne(ctx, fromRoom(room))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("room %s: %w", room.ID, err)
	}
	return err
}

func (r *MongoRoomRepository) GetRoom(ctx context.Context, roomID chat.RoomID) (chat.Room, error) {
	var doc storedRoom
	err := r.rooms.FindOne(ctx, bson.M{"_id": string(roomID)}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return chat.Room{}, errors.ErrRoomNotFound
	}
	if err != nil {
		return chat.Room{}, err
	}
	return toRoom(doc), nil
}

func (r *MongoRoomRepository) RoomsForUser(ctx context.Context, userID string) ([]chat.Room, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "lastMessage.at", Value: -1}})
	cursor, err := r.rooms.Find(ctx, bson.M{"participants": userID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rooms []chat.Room
	for cursor.Next(ctx) {
		var doc storedRoom
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		rooms = append(rooms, toRoom(doc))
	}
	return rooms, cursor.Err()
}

func (r *MongoRoomRepository) AppendMessage(ctx context.Context, roomID chat.RoomID, msg chat.Message) (chat.Room, error) {
	stored := fromMessage(msg)
	update := bson.M{
		"$push": bson.M{"messages": stored},
		"$set": bson.M{"lastMessage": storedSummary{
			Content:  msg.Content,
			SenderID: msg.SenderID,
			At:       msg.CreatedAt,
		}},
	}
	after := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc storedRoom
	err := r.rooms.FindOneAndUpdate(ctx, bson.M{"_id": string(roomID)}, update, after).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return chat.Room{}, errors.ErrRoomNotFound
	}
	if err != nil {
		return chat.Room{}, err
	}
	return toRoom(doc), nil
}

// MarkRoomRead pushes a receipt into every embedded message lacking one for
// userID, via an array filter, then reloads the document.
func (r *MongoRoomRepository) MarkRoomRead(ctx context.Context, roomID chat.RoomID, userID string, at time.Time) (chat.Room, int, error) {
	room, err := r.GetRoom(ctx, roomID)
	if err != nil {
		return chat.Room{}, 0, err
	}
	unread := room.MarkAllRead(userID, at)
	if unread == 0 {
		return room, 0, nil
	}

	update := bson.M{"$push": bson.M{
		"messages.$[m].readBy": storedReceipt{UserID: userID, ReadAt: at},
	}}
	updateOptions := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"m.readBy.userId": bson.M{"$ne": userID}}},
	})
	if _, err := r.rooms.UpdateOne(ctx, bson.M{"_id": string(roomID)}, update, updateOptions); err != nil {
		return chat.Room{}, 0, err
	}
	return room, unread, nil
}

func (r *MongoRoomRepository) MarkMessageRead(ctx context.Context, roomID chat.RoomID, msgID chat.MessageID, userID string, at time.Time) (chat.Room, bool, error) {
	room, err := r.GetRoom(ctx, roomID)
	if err != nil {
		return chat.Room{}, false, err
	}
	msg, ok := room.MessageByID(msgID)
	if !ok {
		return chat.Room{}, false, errors.ErrMessageNotFound
	}
	if !msg.MarkReadBy(userID, at) {
		return room, false, nil
	}

	update := bson.M{"$push": bson.M{
		"messages.$[m].readBy": storedReceipt{UserID: userID, ReadAt: at},
	}}
	updateOptions := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{
			"m.id":            string(msgID),
			"m.readBy.userId": bson.M{"$ne": userID},
		}},
	})
	if _, err := r.rooms.UpdateOne(ctx, bson.M{"_id": string(roomID)}, update, updateOptions); err != nil {
		return chat.Room{}, false, err
	}
	return room, true, nil
}
