package ports

import (
	"context"

	"peerlink/internal/core/domain"
)

// PresencePublisher mirrors registry changes to an external observer.
type PresencePublisher interface {
	PublishUserJoined(ctx context.Context, username domain.Username) error
	PublishUserLeft(ctx context.Context, username domain.Username) error
}

type RelayMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
	UsersRegistered(count int)
	MessageReceived(msgType domain.MessageType)
	MessageForwarded(msgType domain.MessageType)
	MessageDropped(reason string)
	BroadcastSent(recipients, failed int)
}
