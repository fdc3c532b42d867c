package mq

import (
	"context"
	"time"
)

// Producer publishes messages to a topic.
type Producer interface {
	Publish(ctx context.Context, topic string, message *Message) error

	Close() error
}

// Message represents a message in the queue
type Message struct {
	// ID doubles as the partitioning key.
	ID string `json:"id"`

	Body []byte `json:"body"`

	Headers map[string]string `json:"headers"`

	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message with the current timestamp.
func NewMessage(body []byte) *Message {
	return &Message{
		Body:      body,
		Headers:   make(map[string]string),
		Timestamp: time.Now(),
	}
}
