package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/nguyentranbao-ct/chat-gateway/internal/store"
	"github.com/nguyentranbao-ct/chat-gateway/pkg/memo"
)

const (
	flowCacheTTL  = 3 * time.Hour
	flowCacheKeys = 30
)

// Flows stores reusable message templates and resolves them into concrete
// message bodies at send time. Resolved flows are cached per tenant; every
// mutation drops the cached entry.
type Flows struct {
	teamID string
	store  store.Store
	blobs  store.BlobStore
	client *resty.Client
	cache  *memo.Cache[string, *models.MessageFlow]

	randIntn func(int) int
}

func NewFlows(teamID string, st store.Store, blobs store.BlobStore) *Flows {
	return &Flows{
		teamID:   teamID,
		store:    st,
		blobs:    blobs,
		client:   resty.New().SetTimeout(30 * time.Second),
		cache:    memo.New[string, *models.MessageFlow](flowCacheTTL, flowCacheKeys),
		randIntn: rand.Intn,
	}
}

func (f *Flows) Create(ctx context.Context, req *models.FlowCreateRequest) (*models.MessageFlow, error) {
	if req.MessageBody.Empty() {
		return nil, fmt.Errorf("flow needs text or an attachment")
	}
	flow := &models.MessageFlow{
		ID:   models.NewMessageID(),
		Name: req.Name,
		Body: req.MessageBody.Clone(),
	}
	if err := f.persistMedia(ctx, flow.Body); err != nil {
		return nil, err
	}
	if err := f.store.SetFlow(ctx, f.teamID, flow.ID, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}
	return flow, nil
}

func (f *Flows) Edit(ctx context.Context, req *models.FlowEditRequest) (*models.MessageFlow, error) {
	flow, err := f.store.GetFlow(ctx, f.teamID, req.ID)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		flow.Name = req.Name
	}
	if !req.MessageBody.Empty() {
		flow.Body = req.MessageBody.Clone()
		if err := f.persistMedia(ctx, flow.Body); err != nil {
			return nil, err
		}
	}
	if err := f.store.SetFlow(ctx, f.teamID, req.ID, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}
	f.cache.Delete(req.ID)
	return flow, nil
}

func (f *Flows) Delete(ctx context.Context, flowID string) error {
	if _, err := f.store.GetFlow(ctx, f.teamID, flowID); err != nil {
		return err
	}
	if err := f.store.SetFlow(ctx, f.teamID, flowID, nil); err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}
	f.cache.Delete(flowID)
	return nil
}

func (f *Flows) Get(ctx context.Context, flowID string) (*models.MessageFlow, error) {
	if flow, ok := f.cache.Get(flowID); ok {
		return flow, nil
	}
	flow, err := f.store.GetFlow(ctx, f.teamID, flowID)
	if err != nil {
		return nil, err
	}
	f.cache.Set(flowID, flow)
	return flow, nil
}

func (f *Flows) List(ctx context.Context, req *models.FlowListRequest) (*models.FlowPage, error) {
	count := req.Count
	if count == 0 {
		count = 50
	}
	return f.store.ListFlows(ctx, f.teamID, count, req.Cursor, req.Search)
}

// Resolve turns a flow into a send-ready body. Whitespace randomization
// runs before placeholder substitution so parameter values are delivered
// verbatim. The recipient placeholders are derived from the contact and
// can be overridden by caller parameters.
func (f *Flows) Resolve(ctx context.Context, req *models.ComposeFlowRequest, recipient *models.Contact) (*models.MessageBody, error) {
	flow, err := f.Get(ctx, req.FlowID)
	if err != nil {
		return nil, err
	}
	body := flow.Body.Clone()
	if body == nil {
		body = &models.MessageBody{}
	}
	// without parameters or randomization the flow goes out verbatim,
	// literal braces included
	if len(req.Parameters) == 0 && !req.Randomize {
		return body, nil
	}

	text := body.Text
	if req.Randomize {
		text = f.randomizeSpaces(text)
	}

	params := map[string]string{
		"recipient":       recipientName(recipient, req.JID),
		"recipient-first": "",
	}
	if fields := strings.Fields(params["recipient"]); len(fields) > 0 {
		params["recipient-first"] = fields[0]
	}
	for k, v := range req.Parameters {
		params[k] = v
	}
	for k, v := range params {
		text = strings.ReplaceAll(text, "{"+k+"}", v)
	}

	body.Text = text
	return body, nil
}

// persistMedia copies the attachment into the blob store so the flow keeps
// sending after the source URL expires.
func (f *Flows) persistMedia(ctx context.Context, body *models.MessageBody) error {
	media := body.Media()
	if media == nil || strings.HasPrefix(media.URL, f.blobs.URL("")) {
		return nil
	}

	resp, err := f.client.R().SetContext(ctx).Get(media.URL)
	if err != nil {
		return fmt.Errorf("failed to fetch attachment: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to fetch attachment: status %d", resp.StatusCode())
	}

	content := resp.Body()
	sum := sha256.Sum256(content)
	fileID := hex.EncodeToString(sum[:])

	exists, err := f.blobs.Exists(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to check blob: %w", err)
	}
	if !exists {
		if err := f.blobs.Put(ctx, fileID, content); err != nil {
			return fmt.Errorf("failed to store attachment: %w", err)
		}
	}
	media.URL = f.blobs.URL(fileID)
	return nil
}

func recipientName(contact *models.Contact, jid string) string {
	if name := contact.DisplayName(); name != "" {
		return name
	}
	if i := strings.IndexByte(jid, '@'); i > 0 {
		return jid[:i]
	}
	return jid
}

// randomizeSpaces rewrites every space as 1 to 4 spaces so repeated sends
// of the same flow do not produce byte-identical texts.
func (f *Flows) randomizeSpaces(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r != ' ' {
			b.WriteRune(r)
			continue
		}
		width := 1 + f.randIntn(4)
		for i := 0; i < width; i++ {
			b.WriteByte(' ')
		}
	}
	return b.String()
}
