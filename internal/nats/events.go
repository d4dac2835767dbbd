package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/vendaflow/agent-core/internal/model"
)

const (
	// StreamName is the name of the CRM events stream.
	StreamName = "CRM_EVENTS"

	// SubjectPrefix is the prefix for all event subjects.
	SubjectPrefix = "crm"
)

// Publisher publishes turn events and inbox action items to JetStream.
// Consumers (governance dashboard, inbox subsystem, audit) subscribe
// downstream; durability past the stream is their concern.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher over an established client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// EnsureStream ensures the events stream exists with proper configuration.
func (p *Publisher) EnsureStream(ctx context.Context) error {
	js := p.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Agent turn events and inbox action items",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// TurnEventSubject returns the subject for a turn event.
func TurnEventSubject(organizationID, conversationID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s.event.%s", SubjectPrefix, organizationID, conversationID, eventType)
}

// InboxSubject returns the subject for an inbox action item.
func InboxSubject(organizationID, kind string) string {
	return fmt.Sprintf("%s.%s.inbox.%s", SubjectPrefix, organizationID, kind)
}

// PublishTurnEvent publishes a turn event.
func (p *Publisher) PublishTurnEvent(ctx context.Context, event *model.TurnEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := TurnEventSubject(event.OrganizationID, event.ConversationID, event.Type)
	if _, err := p.client.JetStream().Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// PublishInboxItem publishes an inbox action item for the inbox subsystem.
func (p *Publisher) PublishInboxItem(ctx context.Context, item *model.InboxActionItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal inbox item: %w", err)
	}

	subject := InboxSubject(item.OrganizationID, item.Kind)
	if _, err := p.client.JetStream().Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish inbox item: %w", err)
	}
	return nil
}
