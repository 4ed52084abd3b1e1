// Package webhook forwards session events to the HTTP endpoints a team
// registered for them.
package webhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/carousell/ct-go/pkg/logger"
	"github.com/gammazero/workerpool"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/nguyentranbao-ct/chat-gateway/internal/events"
	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/nguyentranbao-ct/chat-gateway/internal/store"
)

const (
	maxAttempts = 5
	workers     = 16
)

// transient upstream statuses worth another attempt; anything else is
// treated as a definitive answer from the endpoint.
var retryStatuses = map[int]bool{
	501: true,
	502: true,
	503: true,
}

type nopLogger struct{}

func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

type Sink struct {
	log    *logger.Logger
	store  store.Store
	client *resty.Client
	pool   *workerpool.WorkerPool
}

var _ events.Sink = (*Sink)(nil)

func NewSink(st store.Store) *Sink {
	client := resty.New().
		SetRetryCount(maxAttempts - 1).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(10 * time.Second).
		SetTimeout(15 * time.Second).
		SetLogger(nopLogger{}).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				retry, _ := retryablehttp.DefaultRetryPolicy(r.Request.Context(), r.RawResponse, err)
				return retry
			}
			return retryStatuses[r.StatusCode()]
		})
	client.JSONMarshal = json.Marshal
	client.JSONUnmarshal = json.Unmarshal

	return &Sink{
		log:    logger.MustNamed("webhook"),
		store:  st,
		client: client,
		pool:   workerpool.New(workers),
	}
}

// Deliver queues one POST per registered endpoint. Calls never block the
// publisher; retries happen inside the pool task.
func (s *Sink) Deliver(ctx context.Context, teamID string, env *models.EventEnvelope) {
	urls, err := s.store.Webhooks(ctx, teamID, env.Event)
	if err != nil {
		s.log.Errorw("failed to resolve webhooks", "team_id", teamID, "event", env.Event, "error", err)
		return
	}
	if len(urls) == 0 {
		return
	}
	token, err := s.store.AuthToken(ctx, teamID)
	if err != nil {
		s.log.Errorw("failed to resolve webhook token", "team_id", teamID, "error", err)
		return
	}

	for _, url := range urls {
		url := url
		s.pool.Submit(func() {
			s.post(teamID, url, token, env)
		})
	}
}

func (s *Sink) post(teamID, url, token string, env *models.EventEnvelope) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(env)
	if token != "" {
		req.SetAuthToken(token)
	}
	resp, err := req.Post(url)
	if err != nil {
		s.log.Errorw("webhook delivery failed", "team_id", teamID, "url", url, "event", env.Event, "error", err)
		return
	}
	if resp.IsError() {
		s.log.Warnw("webhook endpoint returned error", "team_id", teamID, "url", url, "event", env.Event, "status", resp.StatusCode())
	}
}

// Stop drains queued deliveries and shuts the pool down.
func (s *Sink) Stop() {
	s.pool.StopWait()
}
