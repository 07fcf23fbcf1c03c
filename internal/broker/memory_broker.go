package broker

import (
	"context"
	"log/slog"
	"sync"

	"chatrelay/internal/ports"
)

// MemoryBroker is the in-process counterpart of RedisBroker: a subscriber
// set per room behind a mutex, fan-out on publish, and a slow subscriber
// dropped rather than blocking the publisher. Room entries are reclaimed as
// soon as the last subscriber detaches.
type MemoryBroker struct {
	mu     sync.Mutex
	rooms  map[string]map[*memorySubscription]struct{}
	buffer int
	logger *slog.Logger
}

func NewMemoryBroker(buffer int, logger *slog.Logger) *MemoryBroker {
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryBroker{
		rooms:  make(map[string]map[*memorySubscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

func (b *MemoryBroker) Publish(ctx context.Context, chatID string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.rooms[chatID] {
		select {
		case sub.payloads <- append([]byte(nil), payload...):
		default:
			// Same policy as a full websocket send buffer: the slow
			// subscriber is cut off, everyone else keeps receiving.
			b.logger.Warn("dropping slow subscriber", "chatID", chatID)
			b.removeLocked(chatID, sub)
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, chatID string) (ports.ISubscription, error) {
	sub := &memorySubscription{
		payloads: make(chan []byte, b.buffer),
	}
	sub.detach = func() { b.remove(chatID, sub) }

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rooms[chatID] == nil {
		b.rooms[chatID] = make(map[*memorySubscription]struct{})
	}
	b.rooms[chatID][sub] = struct{}{}
	return sub, nil
}

func (b *MemoryBroker) remove(chatID string, sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(chatID, sub)
}

func (b *MemoryBroker) removeLocked(chatID string, sub *memorySubscription) {
	subs, ok := b.rooms[chatID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.rooms, chatID)
	}
	sub.once.Do(func() { close(sub.payloads) })
}

func (b *MemoryBroker) subscriberCount(chatID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rooms[chatID])
}

type memorySubscription struct {
	payloads chan []byte
	once     sync.Once
	detach   func()
}

func (s *memorySubscription) Payloads() <-chan []byte {
	return s.payloads
}

func (s *memorySubscription) Close() error {
	s.detach()
	return nil
}
