// Package events publishes domain events to Kafka for downstream consumers
// (mail, moderation). Publishing never fails the request that triggered it.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	UserRegistered     = "user.registered"
	UserDeleted        = "user.deleted"
	DocumentsSubmitted = "documents.submitted"
	ListingCreated     = "listing.created"
	ListingDeleted     = "listing.deleted"
)

// Event is the JSON message written to the topic.
type Event struct {
	Type      string                 `json:"type"`
	UserID    string                 `json:"userId,omitempty"`
	ListingID string                 `json:"listingId,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	At        time.Time              `json:"at"`
}

// Publisher is what services depend on.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Producer writes events to one Kafka topic. A zero broker yields a
// producer that only logs.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(broker, topic string) *Producer {
	if broker == "" || topic == "" {
		log.Println("kafka broker not configured - events will be skipped")
		return &Producer{}
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(broker),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			WriteTimeout:           5 * time.Second,
		},
	}
}

// Publish writes e keyed by user so one user's events stay ordered.
func (p *Producer) Publish(ctx context.Context, e Event) {
	if p == nil || p.writer == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	value, err := json.Marshal(e)
	if err != nil {
		log.Printf("kafka marshal %s: %v", e.Type, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.UserID),
		Value: value,
		Time:  e.At,
	}); err != nil {
		log.Printf("kafka publish %s: %v", e.Type, err)
	}
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) {}
