package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"chatrelay/internal/ports"

	"github.com/redis/go-redis/v9"
)

func roomChannel(chatID string) string {
	return "room:" + chatID
}

// RedisBroker fans out room messages over redis pub/sub channels named
// room:{chat_id}. Nothing is persisted and nothing is replayed: a publish
// with no subscriber vanishes, a late subscriber starts from silence.
type RedisBroker struct {
	client *redis.Client
	buffer int
	logger *slog.Logger
}

func NewRedisBroker(client *redis.Client, buffer int, logger *slog.Logger) *RedisBroker {
	if buffer <= 0 {
		buffer = 64
	}
	return &RedisBroker{client: client, buffer: buffer, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, chatID string, payload []byte) error {
	if err := b.client.Publish(ctx, roomChannel(chatID), payload).Err(); err != nil {
		return fmt.Errorf("publish to room %s: %w", chatID, err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, chatID string) (ports.ISubscription, error) {
	ps := b.client.Subscribe(ctx, roomChannel(chatID))

	// Wait for the subscribe confirmation so no publish after this call
	// returns can be missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe to room %s: %w", chatID, err)
	}

	sub := &RedisSubscription{
		ps:       ps,
		payloads: make(chan []byte, b.buffer),
		done:     make(chan struct{}),
	}
	go sub.pump()
	return sub, nil
}

type RedisSubscription struct {
	ps       *redis.PubSub
	payloads chan []byte
	done     chan struct{}
	once     sync.Once
}

func (s *RedisSubscription) pump() {
	defer close(s.payloads)
	for msg := range s.ps.Channel() {
		// The receiver may have stopped draining with the buffer full;
		// a plain send would strand this goroutine past Close.
		select {
		case s.payloads <- []byte(msg.Payload):
		case <-s.done:
			return
		}
	}
}

func (s *RedisSubscription) Payloads() <-chan []byte {
	return s.payloads
}

// Close tears the redis subscription down; the payload channel closes once
// the pump exits, even if nobody drains it.
func (s *RedisSubscription) Close() error {
	s.once.Do(func() { close(s.done) })
	return s.ps.Close()
}
