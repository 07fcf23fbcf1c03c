package tests

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"chatrelay/internal/models"
)

// FakeSequencer counts ids in process, mirroring the redis counters.
type FakeSequencer struct {
	mu       sync.Mutex
	chats    int
	messages int
}

func (s *FakeSequencer) NextChatID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats++
	return fmt.Sprintf("CHT:%d", s.chats), nil
}

func (s *FakeSequencer) NextMessageID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages++
	return fmt.Sprintf("MSG:%d", s.messages), nil
}

type indexEntry struct {
	id string
	ts time.Time
}

// FakeStore is an in-memory room directory plus message log with the same
// semantics as the redis implementation: inclusive range bound, stable order
// for equal timestamps, room and messages deleted as one unit.
type FakeStore struct {
	mu     sync.Mutex
	chats  map[string]models.Chat
	bodies map[string]map[string][]byte
	index  map[string][]indexEntry
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		chats:  make(map[string]models.Chat),
		bodies: make(map[string]map[string][]byte),
		index:  make(map[string][]indexEntry),
	}
}

func (s *FakeStore) Create(ctx context.Context, chat models.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[chat.ChatID] = chat
	return nil
}

func (s *FakeStore) Exists(ctx context.Context, chatID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.chats[chatID]
	return ok, nil
}

func (s *FakeStore) Fetch(ctx context.Context, chatID string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return nil, nil
	}
	return &chat, nil
}

func (s *FakeStore) Delete(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, chatID)
	return nil
}

func (s *FakeStore) Append(ctx context.Context, chatID, messageID string, body []byte, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bodies[chatID] == nil {
		s.bodies[chatID] = make(map[string][]byte)
	}
	s.bodies[chatID][messageID] = append([]byte(nil), body...)
	s.index[chatID] = append(s.index[chatID], indexEntry{id: messageID, ts: ts})
	return nil
}

func (s *FakeStore) RangeByTime(ctx context.Context, chatID string, until *time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append([]indexEntry(nil), s.index[chatID]...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ts.Before(entries[j].ts)
	})

	var ids []string
	for _, e := range entries {
		// The bound names a whole second, so anything inside that second
		// is included even when the stored instant carries a fraction.
		if until != nil && !e.ts.Before(until.Truncate(time.Second).Add(time.Second)) {
			continue
		}
		ids = append(ids, e.id)
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (s *FakeStore) FetchBodies(ctx context.Context, chatID string, ids []string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bodies := make([][]byte, len(ids))
	for i, id := range ids {
		if b, ok := s.bodies[chatID][id]; ok {
			bodies[i] = b
		}
	}
	return bodies, nil
}

func (s *FakeStore) AllIDs(ctx context.Context, chatID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append([]indexEntry(nil), s.index[chatID]...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ts.Before(entries[j].ts)
	})

	var ids []string
	for _, e := range entries {
		ids = append(ids, e.id)
	}
	return ids, nil
}

func (s *FakeStore) DeleteRoom(ctx context.Context, chatID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bodies, chatID)
	delete(s.index, chatID)
	delete(s.chats, chatID)
	return nil
}

// DropBody removes a stored body while leaving its index entry in place,
// simulating a dangling index entry.
func (s *FakeStore) DropBody(chatID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bodies[chatID], messageID)
}
