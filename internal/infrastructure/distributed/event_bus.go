package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventType represents the type of event
type EventType string

const (
	EventUserJoined EventType = "user.joined"
	EventUserLeft   EventType = "user.left"
)

var _ ports.PresencePublisher = (*EventBus)(nil)

// Event is the JSON document published for every presence change.
type Event struct {
	Type       EventType       `json:"type"`
	InstanceID string          `json:"instance_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Username   domain.Username `json:"username"`
}

// EventBus mirrors registry changes onto a Redis pub/sub channel for
// external observers. It does not feed anything back into the relay.
type EventBus struct {
	client     redis.UniversalClient
	instanceID string
	channel    string
	logger     *zap.SugaredLogger
	now        func() time.Time
}

func NewEventBus(
	client redis.UniversalClient,
	instanceID string,
	channel string,
	logger *zap.SugaredLogger,
) *EventBus {
	return &EventBus{
		client:     client,
		instanceID: instanceID,
		channel:    channel,
		logger:     logger,
		now:        time.Now,
	}
}

// Publish publishes an event to the event bus
func (eb *EventBus) Publish(ctx context.Context, event *Event) error {
	event.InstanceID = eb.instanceID
	event.Timestamp = eb.now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := eb.client.Publish(ctx, eb.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("published presence event",
		"type", event.Type,
		"username", event.Username,
		"channel", eb.channel,
	)

	return nil
}

func (eb *EventBus) PublishUserJoined(ctx context.Context, username domain.Username) error {
	return eb.Publish(ctx, &Event{Type: EventUserJoined, Username: username})
}

func (eb *EventBus) PublishUserLeft(ctx context.Context, username domain.Username) error {
	return eb.Publish(ctx, &Event{Type: EventUserLeft, Username: username})
}
