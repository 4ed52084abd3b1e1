// Package eventbus mirrors session events onto a Kafka topic for other
// services to consume.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/carousell/ct-go/pkg/logger"
	"github.com/nguyentranbao-ct/chat-gateway/internal/events"
	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
)

type record struct {
	TeamID string `json:"team_id"`
	Event  string `json:"event"`
	Data   any    `json:"data"`
}

type Sink struct {
	log      *logger.Logger
	producer sarama.SyncProducer
	topic    string
}

var _ events.Sink = (*Sink)(nil)

func NewSink(brokers []string, topic string) (*Sink, error) {
	conf := sarama.NewConfig()
	conf.Producer.Return.Successes = true
	conf.Producer.RequiredAcks = sarama.WaitForLocal
	conf.Producer.Retry.Max = 3
	conf.Producer.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &Sink{
		log:      logger.MustNamed("eventbus"),
		producer: producer,
		topic:    topic,
	}, nil
}

// Deliver publishes the event keyed by team so one tenant's events stay
// ordered within a partition.
func (s *Sink) Deliver(ctx context.Context, teamID string, env *models.EventEnvelope) {
	value, err := json.Marshal(record{TeamID: teamID, Event: env.Event, Data: env.Data})
	if err != nil {
		s.log.Errorw("failed to encode event", "team_id", teamID, "event", env.Event, "error", err)
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(teamID),
		Value: sarama.ByteEncoder(value),
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		s.log.Errorw("failed to publish event", "team_id", teamID, "event", env.Event, "error", err)
	}
}

func (s *Sink) Close() error {
	return s.producer.Close()
}
