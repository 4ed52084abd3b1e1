package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type noteDoc struct {
	TeamID    string          `bson:"team_id"`
	ChatID    string          `bson:"chat_id"`
	NoteID    string          `bson:"note_id"`
	Timestamp int64           `bson:"timestamp"`
	Note      *models.Message `bson:"note"`
}

type NoteRepo struct {
	collection *mongo.Collection
}

func NewNoteRepo(db *DB) *NoteRepo {
	return &NoteRepo{
		collection: db.database.Collection("notes"),
	}
}

func (r *NoteRepo) Load(ctx context.Context, teamID string, queries []models.NoteQuery) (map[string][]*models.Message, error) {
	out := make(map[string][]*models.Message)
	if len(queries) == 0 {
		return out, nil
	}

	filters := make([]bson.M, 0, len(queries))
	for _, q := range queries {
		filter := bson.M{"team_id": teamID, "chat_id": q.ChatID}
		window := bson.M{}
		if q.Before > 0 {
			window["$lt"] = q.Before
		}
		if q.Till > 0 {
			window["$gte"] = q.Till
		}
		if len(window) > 0 {
			filter["timestamp"] = window
		}
		filters = append(filters, filter)
	}

	cursor, err := r.collection.Find(ctx, bson.M{"$or": filters})
	if err != nil {
		return nil, fmt.Errorf("failed to load notes: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc noteDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode note: %w", err)
		}
		if doc.Note != nil {
			out[doc.ChatID] = append(out[doc.ChatID], doc.Note)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	for _, notes := range out {
		sort.Slice(notes, func(i, j int) bool { return notes[i].OrderKey() < notes[j].OrderKey() })
	}
	return out, nil
}

func (r *NoteRepo) Get(ctx context.Context, teamID, chatID, noteID string) (*models.Message, error) {
	var doc noteDoc
	filter := bson.M{"team_id": teamID, "chat_id": chatID, "note_id": noteID}
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return doc.Note, nil
}

func (r *NoteRepo) Set(ctx context.Context, teamID, chatID, noteID string, note *models.Message) error {
	filter := bson.M{"team_id": teamID, "chat_id": chatID, "note_id": noteID}
	if note == nil {
		if _, err := r.collection.DeleteOne(ctx, filter); err != nil {
			return fmt.Errorf("failed to delete note: %w", err)
		}
		return nil
	}
	doc := noteDoc{
		TeamID:    teamID,
		ChatID:    chatID,
		NoteID:    noteID,
		Timestamp: note.Timestamp,
		Note:      note,
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, filter, doc, opts); err != nil {
		return fmt.Errorf("failed to save note: %w", err)
	}
	return nil
}
