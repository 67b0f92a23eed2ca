package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnconfiguredProducerIsNoop(t *testing.T) {
	p := NewProducer("", "estate-events")
	assert.NotPanics(t, func() {
		p.Publish(context.Background(), Event{Type: ListingCreated, UserID: "u1"})
	})
	assert.NoError(t, p.Close())

	var nilProducer *Producer
	assert.NotPanics(t, func() { nilProducer.Publish(context.Background(), Event{Type: UserDeleted}) })
	assert.NoError(t, nilProducer.Close())
}

func TestProducerTargetsTopic(t *testing.T) {
	p := NewProducer("localhost:9092", "estate-events")
	defer p.Close()
	if assert.NotNil(t, p.writer) {
		assert.Equal(t, "estate-events", p.writer.Topic)
	}
}
