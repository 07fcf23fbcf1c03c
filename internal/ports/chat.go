package ports

import (
	"context"
	"time"

	"chatrelay/internal/models"
)

type IChatRepository interface {
	Create(ctx context.Context, chat models.Chat) error
	Exists(ctx context.Context, chatID string) (bool, error)
	Fetch(ctx context.Context, chatID string) (*models.Chat, error)
	Delete(ctx context.Context, chatID string) error
}

// IMessageLog is the durable per-room message store: a body record plus a
// time-index entry, written and deleted together.
type IMessageLog interface {
	// Append stores the serialized body and the (messageID, ts) index entry
	// atomically. A reader never observes one without the other.
	Append(ctx context.Context, chatID, messageID string, body []byte, ts time.Time) error

	// RangeByTime returns up to limit ids with timestamp <= until, ascending
	// by timestamp, ties in insertion order. A nil until means no upper bound.
	// The bound is inclusive.
	RangeByTime(ctx context.Context, chatID string, until *time.Time, limit int) ([]string, error)

	// FetchBodies returns one entry per id, same order; a nil entry marks a
	// dangling index entry and is skipped by callers, never an error.
	FetchBodies(ctx context.Context, chatID string, ids []string) ([][]byte, error)

	AllIDs(ctx context.Context, chatID string) ([]string, error)

	// DeleteRoom removes every body in ids, the time index and the room
	// record as one atomic unit.
	DeleteRoom(ctx context.Context, chatID string, ids []string) error
}

type ISequencer interface {
	NextChatID(ctx context.Context) (string, error)
	NextMessageID(ctx context.Context) (string, error)
}
