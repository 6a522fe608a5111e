package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/layer-3/keeper/ports"
)

// DefaultTopicPrefix namespaces session lifecycle topics
const DefaultTopicPrefix = "keeper.session"

// Topic suffixes appended to the prefix
const (
	TopicLogin   = "login"
	TopicLogout  = "logout"
	TopicEvicted = "evicted"
)

var _ ports.EventPublisher = (*WatermillPublisher)(nil)

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	prefix    string
}

// NewWatermillPublisher creates a new Watermill publisher. An empty prefix selects DefaultTopicPrefix.
func NewWatermillPublisher(publisher message.Publisher, prefix string) *WatermillPublisher {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &WatermillPublisher{
		publisher: publisher,
		prefix:    prefix,
	}
}

// Topic returns the full topic name for suffix
func (p *WatermillPublisher) Topic(suffix string) string {
	return p.prefix + "." + suffix
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, event ports.SessionEvent) error {
	return p.publish(ctx, TopicLogin, event)
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, event ports.SessionEvent) error {
	return p.publish(ctx, TopicLogout, event)
}

// PublishEvicted publishes an event for a session pushed out by a newer login
func (p *WatermillPublisher) PublishEvicted(ctx context.Context, event ports.SessionEvent) error {
	return p.publish(ctx, TopicEvicted, event)
}

func (p *WatermillPublisher) publish(ctx context.Context, suffix string, event ports.SessionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("username", event.Username)

	if err := p.publisher.Publish(p.Topic(suffix), msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher discards every event. Used when event publishing is disabled.
type NopPublisher struct{}

var _ ports.EventPublisher = NopPublisher{}

func (NopPublisher) PublishLogin(context.Context, ports.SessionEvent) error   { return nil }
func (NopPublisher) PublishLogout(context.Context, ports.SessionEvent) error  { return nil }
func (NopPublisher) PublishEvicted(context.Context, ports.SessionEvent) error { return nil }
