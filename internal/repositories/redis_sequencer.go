package repositories

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sqids/sqids-go"
)

const (
	chatCounterKey    = "chat_id_counter"
	messageCounterKey = "message_id_counter"
)

// Sequencer issues globally unique, monotonically increasing ids backed by
// redis INCR counters, encoded with sqids and tagged by kind.
type Sequencer struct {
	client *redis.Client
	sq     *sqids.Sqids
}

func NewSequencer(client *redis.Client) (*Sequencer, error) {
	sq, err := sqids.New()
	if err != nil {
		return nil, fmt.Errorf("init sqids: %w", err)
	}
	return &Sequencer{client: client, sq: sq}, nil
}

func (s *Sequencer) NextChatID(ctx context.Context) (string, error) {
	return s.next(ctx, chatCounterKey, "CHT:")
}

func (s *Sequencer) NextMessageID(ctx context.Context) (string, error) {
	return s.next(ctx, messageCounterKey, "MSG:")
}

func (s *Sequencer) next(ctx context.Context, counterKey, prefix string) (string, error) {
	n, err := s.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return "", fmt.Errorf("advance %s: %w", counterKey, err)
	}
	encoded, err := s.sq.Encode([]uint64{uint64(n)})
	if err != nil {
		return "", fmt.Errorf("encode %s value %d: %w", counterKey, n, err)
	}
	return prefix + encoded, nil
}
