package ports

import "context"

// IBroker is the per-room broadcast channel: ephemeral, no history, no
// delivery guarantee. A publish with no live subscriber is silently dropped.
type IBroker interface {
	Publish(ctx context.Context, chatID string, payload []byte) error
	Subscribe(ctx context.Context, chatID string) (ISubscription, error)
}

type ISubscription interface {
	// Payloads yields every payload published to the room after the
	// subscription was taken. The channel closes when the subscription is
	// closed or torn down.
	Payloads() <-chan []byte
	Close() error
}
