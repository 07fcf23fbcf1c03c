package repositories

import (
	"context"
	"fmt"

	"chatrelay/internal/models"

	"github.com/redis/go-redis/v9"
)

func chatKey(chatID string) string {
	return "chat:" + chatID
}

// ChatRepository keeps the room record in a redis hash under chat:{id}.
type ChatRepository struct {
	client *redis.Client
}

func NewChatRepository(client *redis.Client) *ChatRepository {
	return &ChatRepository{client: client}
}

func (r *ChatRepository) Create(ctx context.Context, chat models.Chat) error {
	err := r.client.HSet(ctx, chatKey(chat.ChatID), map[string]interface{}{
		"chat_id": chat.ChatID,
		"name":    chat.Name,
		"ts":      chat.Ts,
	}).Err()
	if err != nil {
		return fmt.Errorf("create chat %s: %w", chat.ChatID, err)
	}
	return nil
}

func (r *ChatRepository) Exists(ctx context.Context, chatID string) (bool, error) {
	n, err := r.client.Exists(ctx, chatKey(chatID)).Result()
	if err != nil {
		return false, fmt.Errorf("check chat %s: %w", chatID, err)
	}
	return n == 1, nil
}

func (r *ChatRepository) Fetch(ctx context.Context, chatID string) (*models.Chat, error) {
	fields, err := r.client.HGetAll(ctx, chatKey(chatID)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch chat %s: %w", chatID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return &models.Chat{
		ChatID: fields["chat_id"],
		Name:   fields["name"],
		Ts:     fields["ts"],
	}, nil
}

func (r *ChatRepository) Delete(ctx context.Context, chatID string) error {
	if err := r.client.Del(ctx, chatKey(chatID)).Err(); err != nil {
		return fmt.Errorf("delete chat %s: %w", chatID, err)
	}
	return nil
}
