package models

// MessageFlow is a named, reusable message template. Text and caption may
// contain {key} placeholders resolved at send time.
type MessageFlow struct {
	ID   string       `json:"id" bson:"flow_id"`
	Name string       `json:"name" bson:"name"`
	Body *MessageBody `json:"body" bson:"body"`
}

// FlowPage is one page of a flow listing, ordered by name.
type FlowPage struct {
	Flows  []*MessageFlow `json:"flows"`
	Cursor string         `json:"cursor,omitempty"`
}
