package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type RepositoryAdapter struct {
	Chats    *ChatRepository
	Messages *MessageLog
	Sequence *Sequencer

	client *redis.Client
}

func NewRepositoryAdapter(client *redis.Client, logger *slog.Logger) (*RepositoryAdapter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	sequence, err := NewSequencer(client)
	if err != nil {
		return nil, err
	}

	logger.Info("repositories initialized")

	return &RepositoryAdapter{
		Chats:    NewChatRepository(client),
		Messages: NewMessageLog(client),
		Sequence: sequence,
		client:   client,
	}, nil
}

func (r *RepositoryAdapter) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
