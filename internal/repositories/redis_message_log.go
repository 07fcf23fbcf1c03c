package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

func messagesKey(chatID string) string {
	return "chat:" + chatID + ":message"
}

func timeIndexKey(chatID string) string {
	return "chat:" + chatID + ":messages:ts"
}

func timeScore(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// MessageLog stores serialized message bodies in a hash under
// chat:{id}:message and a time index in a sorted set under
// chat:{id}:messages:ts, scored by epoch seconds with sub-second precision.
type MessageLog struct {
	client *redis.Client
}

func NewMessageLog(client *redis.Client) *MessageLog {
	return &MessageLog{client: client}
}

// Append writes the body and the index entry in one MULTI/EXEC pipeline, so
// a concurrent reader never sees an index entry without its body.
func (r *MessageLog) Append(ctx context.Context, chatID, messageID string, body []byte, ts time.Time) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, messagesKey(chatID), messageID, body)
		pipe.ZAdd(ctx, timeIndexKey(chatID), redis.Z{
			Score:  timeScore(ts),
			Member: messageID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("append message %s to chat %s: %w", messageID, chatID, err)
	}
	return nil
}

// RangeByTime queries the index with an inclusive upper bound. The bound
// names a whole second (the wire format carries no fraction) while scores
// keep sub-second precision, so the query covers everything strictly below
// the start of the following second. Equal scores come back in member order;
// with nanosecond scores a tie needs two appends on the same nanosecond.
func (r *MessageLog) RangeByTime(ctx context.Context, chatID string, until *time.Time, limit int) ([]string, error) {
	max := "+inf"
	if until != nil {
		bound := until.Truncate(time.Second).Add(time.Second)
		max = "(" + strconv.FormatFloat(timeScore(bound), 'f', -1, 64)
	}
	ids, err := r.client.ZRangeByScore(ctx, timeIndexKey(chatID), &redis.ZRangeBy{
		Min:    "-inf",
		Max:    max,
		Offset: 0,
		Count:  int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range messages for chat %s: %w", chatID, err)
	}
	return ids, nil
}

// FetchBodies pipelines one HGET per id. A missing body yields a nil slot.
func (r *MessageLog) FetchBodies(ctx context.Context, chatID string, ids []string) ([][]byte, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGet(ctx, messagesKey(chatID), id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("fetch bodies for chat %s: %w", chatID, err)
	}

	bodies := make([][]byte, len(ids))
	for i, cmd := range cmds {
		b, err := cmd.Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetch body %s for chat %s: %w", ids[i], chatID, err)
		}
		bodies[i] = b
	}
	return bodies, nil
}

func (r *MessageLog) AllIDs(ctx context.Context, chatID string) ([]string, error) {
	ids, err := r.client.ZRange(ctx, timeIndexKey(chatID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list message ids for chat %s: %w", chatID, err)
	}
	return ids, nil
}

// DeleteRoom drops the bodies, the time index and the room record in one
// MULTI/EXEC pipeline. An append racing this lands entirely before or
// entirely after, never partially.
func (r *MessageLog) DeleteRoom(ctx context.Context, chatID string, ids []string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(ids) > 0 {
			pipe.HDel(ctx, messagesKey(chatID), ids...)
		}
		pipe.Del(ctx, messagesKey(chatID), timeIndexKey(chatID), chatKey(chatID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete chat %s: %w", chatID, err)
	}
	return nil
}
