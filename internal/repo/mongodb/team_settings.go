package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type teamSettingsDoc struct {
	TeamID    string              `bson:"team_id"`
	AuthToken string              `bson:"auth_token"`
	Webhooks  map[string][]string `bson:"webhooks"`
}

// TeamSettingsRepo holds the per-team webhook registrations and the
// bearer token sent with webhook calls. Settings are written by an
// operator tool, the gateway only reads them.
type TeamSettingsRepo struct {
	collection *mongo.Collection
}

func NewTeamSettingsRepo(db *DB) *TeamSettingsRepo {
	return &TeamSettingsRepo{
		collection: db.database.Collection("team_settings"),
	}
}

func (r *TeamSettingsRepo) get(ctx context.Context, teamID string) (*teamSettingsDoc, error) {
	var doc teamSettingsDoc
	err := r.collection.FindOne(ctx, bson.M{"team_id": teamID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team settings: %w", err)
	}
	return &doc, nil
}

func (r *TeamSettingsRepo) Webhooks(ctx context.Context, teamID, event string) ([]string, error) {
	doc, err := r.get(ctx, teamID)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.Webhooks[event], nil
}

func (r *TeamSettingsRepo) AuthToken(ctx context.Context, teamID string) (string, error) {
	doc, err := r.get(ctx, teamID)
	if err != nil || doc == nil {
		return "", err
	}
	return doc.AuthToken, nil
}
