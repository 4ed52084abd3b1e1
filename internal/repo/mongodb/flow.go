package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type flowDoc struct {
	TeamID string              `bson:"team_id"`
	FlowID string              `bson:"flow_id"`
	Name   string              `bson:"name"`
	Body   *models.MessageBody `bson:"body"`
}

func (d *flowDoc) toModel() *models.MessageFlow {
	return &models.MessageFlow{ID: d.FlowID, Name: d.Name, Body: d.Body}
}

type FlowRepo struct {
	collection *mongo.Collection
}

func NewFlowRepo(db *DB) *FlowRepo {
	return &FlowRepo{
		collection: db.database.Collection("flows"),
	}
}

func (r *FlowRepo) Get(ctx context.Context, teamID, flowID string) (*models.MessageFlow, error) {
	var doc flowDoc
	err := r.collection.FindOne(ctx, bson.M{"team_id": teamID, "flow_id": flowID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}
	return doc.toModel(), nil
}

func (r *FlowRepo) Set(ctx context.Context, teamID, flowID string, flow *models.MessageFlow) error {
	filter := bson.M{"team_id": teamID, "flow_id": flowID}
	if flow == nil {
		if _, err := r.collection.DeleteOne(ctx, filter); err != nil {
			return fmt.Errorf("failed to delete flow: %w", err)
		}
		return nil
	}
	doc := flowDoc{TeamID: teamID, FlowID: flowID, Name: flow.Name, Body: flow.Body}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, filter, doc, opts); err != nil {
		return fmt.Errorf("failed to save flow: %w", err)
	}
	return nil
}

// List pages flows ordered by name then id. The cursor is the last flow
// id of the previous page.
func (r *FlowRepo) List(ctx context.Context, teamID string, count int, cursor, search string) (*models.FlowPage, error) {
	filter := bson.M{"team_id": teamID}
	if search != "" {
		filter["name"] = bson.M{"$regex": primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}}
	}
	if cursor != "" {
		var last flowDoc
		err := r.collection.FindOne(ctx, bson.M{"team_id": teamID, "flow_id": cursor}).Decode(&last)
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to resolve flow cursor: %w", err)
		}
		if err == nil {
			filter["$or"] = []bson.M{
				{"name": bson.M{"$gt": last.Name}},
				{"name": last.Name, "flow_id": bson.M{"$gt": last.FlowID}},
			}
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "flow_id", Value: 1}})
	if count > 0 {
		opts.SetLimit(int64(count + 1))
	}
	cur, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	defer cur.Close(ctx)

	page := &models.FlowPage{Flows: []*models.MessageFlow{}}
	for cur.Next(ctx) {
		var doc flowDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode flow: %w", err)
		}
		page.Flows = append(page.Flows, doc.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	if count > 0 && len(page.Flows) > count {
		page.Flows = page.Flows[:count]
		page.Cursor = page.Flows[count-1].ID
	}
	return page, nil
}
