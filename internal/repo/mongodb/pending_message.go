package mongodb

import (
	"context"
	"fmt"
	"sort"

	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type pendingDoc struct {
	TeamID    string          `bson:"team_id"`
	MessageID string          `bson:"message_id"`
	Message   *models.Message `bson:"message"`
}

// PendingMessageRepo is the durable record of scheduled messages. The
// in-memory queue is rebuilt from it after a restart, so every mutation
// lands here before memory is touched.
type PendingMessageRepo struct {
	collection *mongo.Collection
}

func NewPendingMessageRepo(db *DB) *PendingMessageRepo {
	return &PendingMessageRepo{
		collection: db.database.Collection("pending_messages"),
	}
}

func (r *PendingMessageRepo) Load(ctx context.Context, teamID string) ([]*models.Message, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"team_id": teamID})
	if err != nil {
		return nil, fmt.Errorf("failed to load pending messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []*models.Message
	for cursor.Next(ctx) {
		var doc pendingDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode pending message: %w", err)
		}
		if doc.Message != nil {
			messages = append(messages, doc.Message)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].OrderKey() < messages[j].OrderKey() })
	return messages, nil
}

func (r *PendingMessageRepo) Save(ctx context.Context, teamID, messageID string, msg *models.Message) error {
	filter := bson.M{"team_id": teamID, "message_id": messageID}
	if msg == nil {
		if _, err := r.collection.DeleteOne(ctx, filter); err != nil {
			return fmt.Errorf("failed to delete pending message: %w", err)
		}
		return nil
	}
	doc := pendingDoc{TeamID: teamID, MessageID: messageID, Message: msg}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, filter, doc, opts); err != nil {
		return fmt.Errorf("failed to save pending message: %w", err)
	}
	return nil
}
