// Package events publishes and decodes search events on Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/hotel-radar/internal/models"
)

// EventSearchCompleted is the event_type header of search events.
const EventSearchCompleted = "search_completed"

// MessageWriter is the subset of *kafka.Writer used here.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes SearchEvents keyed by search ID.
type Publisher struct {
	writer MessageWriter
}

// NewPublisher creates a Kafka-backed publisher for topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	})
}

func NewPublisherWithWriter(w MessageWriter) *Publisher {
	return &Publisher{writer: w}
}

// PublishSearch implements pipeline.Publisher.
func (p *Publisher) PublishSearch(ctx context.Context, event models.SearchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal search event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.SearchID),
		Value: payload,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventSearchCompleted)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write search event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// DecodeSearchEvent parses a message produced by PublishSearch.
func DecodeSearchEvent(msg kafka.Message) (models.SearchEvent, error) {
	var event models.SearchEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return event, fmt.Errorf("decode search event: %w", err)
	}
	if event.SearchID == "" {
		return event, errors.New("search event without search_id")
	}
	return event, nil
}
