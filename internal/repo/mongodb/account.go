package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/nguyentranbao-ct/chat-gateway/pkg/crypto"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AccountRepo struct {
	collection *mongo.Collection
	creds      crypto.Codec
}

func NewAccountRepo(db *DB, creds crypto.Codec) *AccountRepo {
	return &AccountRepo{
		collection: db.database.Collection("accounts"),
		creds:      creds,
	}
}

func (r *AccountRepo) Get(ctx context.Context, teamID string) (*models.AccountInfo, error) {
	var info models.AccountInfo
	err := r.collection.FindOne(ctx, bson.M{"team_id": teamID}).Decode(&info)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if info.Creds, err = r.creds.Open(info.Creds); err != nil {
		return nil, fmt.Errorf("failed to open credentials: %w", err)
	}
	return &info, nil
}

func (r *AccountRepo) Save(ctx context.Context, teamID string, info *models.AccountInfo) error {
	doc := *info
	doc.ID = teamID
	sealed, err := r.creds.Seal(info.Creds)
	if err != nil {
		return fmt.Errorf("failed to seal credentials: %w", err)
	}
	doc.Creds = sealed

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"team_id": teamID}, &doc, opts); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	info.ID = teamID
	return nil
}

func (r *AccountRepo) ListAutoReconnect(ctx context.Context) ([]*models.AccountInfo, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"auto_reconnect": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list reconnect accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var accounts []*models.AccountInfo
	for cursor.Next(ctx) {
		var info models.AccountInfo
		if err := cursor.Decode(&info); err != nil {
			return nil, fmt.Errorf("failed to decode account: %w", err)
		}
		if info.Creds, err = r.creds.Open(info.Creds); err != nil {
			return nil, fmt.Errorf("failed to open credentials: %w", err)
		}
		accounts = append(accounts, &info)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return accounts, nil
}
