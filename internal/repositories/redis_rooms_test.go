package repositories_test

import (
	"context"
	"testing"
	"time"

	"chatrelay/internal/models"
	"chatrelay/internal/repositories"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestChatRepository_Roundtrip(t *testing.T) {
	ctx := context.Background()
	rooms := repositories.NewChatRepository(newTestClient(t))

	chat := models.Chat{ChatID: "CHT:test_id", Name: "Test Chat", Ts: "2024-11-11T13:36:40"}
	require.NoError(t, rooms.Create(ctx, chat))

	exists, err := rooms.Exists(ctx, "CHT:test_id")
	require.NoError(t, err)
	assert.True(t, exists)

	fetched, err := rooms.Fetch(ctx, "CHT:test_id")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, chat, *fetched)
}

func TestChatRepository_FetchMissing(t *testing.T) {
	ctx := context.Background()
	rooms := repositories.NewChatRepository(newTestClient(t))

	fetched, err := rooms.Fetch(ctx, "CHT:missing")
	require.NoError(t, err)
	assert.Nil(t, fetched)

	exists, err := rooms.Exists(ctx, "CHT:missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestChatRepository_DeleteRemovesOnlyTheRoomRecord(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	rooms := repositories.NewChatRepository(client)
	log := repositories.NewMessageLog(client)

	require.NoError(t, rooms.Create(ctx, models.Chat{ChatID: "CHT:test_id", Name: "Test Chat", Ts: "2024-11-11T13:36:40"}))
	require.NoError(t, log.Append(ctx, "CHT:test_id", "MSG:test_id_1", []byte(`{"text":"hi"}`), time.Now().UTC()))

	require.NoError(t, rooms.Delete(ctx, "CHT:test_id"))

	exists, err := rooms.Exists(ctx, "CHT:test_id")
	require.NoError(t, err)
	assert.False(t, exists)

	// The message log is untouched; full removal goes through DeleteRoom.
	ids, err := log.AllIDs(ctx, "CHT:test_id")
	require.NoError(t, err)
	assert.Equal(t, []string{"MSG:test_id_1"}, ids)
}
