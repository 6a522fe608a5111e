package ports

import (
	"context"

	"github.com/layer-3/keeper/core"
)

// SessionEvent describes a change to a principal's refresh sessions
type SessionEvent struct {
	Username    string `json:"username"`
	Fingerprint string `json:"fingerprint"`
	OccurredAt  int64  `json:"occurred_at"`
}

// EventPublisher publishes session lifecycle events to notify other instances
type EventPublisher interface {
	PublishLogin(ctx context.Context, event SessionEvent) error
	PublishLogout(ctx context.Context, event SessionEvent) error
	PublishEvicted(ctx context.Context, event SessionEvent) error
}

// NewSessionEvent builds an event for token at the given unix millisecond time
func NewSessionEvent(username, token string, occurredAt int64) SessionEvent {
	return SessionEvent{
		Username:    username,
		Fingerprint: core.Fingerprint(token),
		OccurredAt:  occurredAt,
	}
}
