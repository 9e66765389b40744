package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// PubSubMessage is the envelope of a store change event.
type PubSubMessage struct {
	ID            string    `json:"id"`
	ReferenceType string    `json:"reference_type"`
	ReferenceId   string    `json:"reference_id"`
	Action        string    `json:"action"`
	OccurredAt    time.Time `json:"occurred_at"`
	CorrelationId string    `json:"correlation_id"`
}

// EventPublisher receives store change events.
type EventPublisher interface {
	Publish(ctx context.Context, msg PubSubMessage) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, PubSubMessage) error { return nil }

// PubSubPublisher publishes events to one Google Pub/Sub topic.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	mu     sync.Mutex
	closed bool
}

// NewPubSubPublisher builds a publisher for topic in projectID.
// It uses Application Default Credentials unless PUBSUB_CREDENTIALS_JSON is provided.
func NewPubSubPublisher(ctx context.Context, logger *logrus.Logger, projectID string, topic string) (*PubSubPublisher, error) {
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}
	if topic == "" {
		return nil, errors.New("PUBSUB_TOPIC is required")
	}

	var (
		c   *pubsub.Client
		err error
	)
	if credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON"); credJSON != "" {
		c, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credJSON)))
	} else {
		c, err = pubsub.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("init pubsub client (project_id=%s): %w", projectID, err)
	}

	logger.WithFields(logrus.Fields{"project_id": projectID, "topic": topic}).Info("pubsub publisher ready")
	return &PubSubPublisher{client: c, topic: c.Topic(topic)}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, msg PubSubMessage) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return errors.New("pubsub publisher is closed")
	}

	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: msgJSON,
		Attributes: map[string]string{
			"reference_type": msg.ReferenceType,
			"action":         msg.Action,
		},
	})
	_, err = result.Get(ctx)
	return err
}

func (p *PubSubPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.topic.Stop()
	return p.client.Close()
}
