package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"chatrelay/internal/models"
	"chatrelay/internal/ports"

	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Create(ctx context.Context, chat models.Chat) error {
	args := m.Called(ctx, chat)
	return args.Error(0)
}

func (m *MockChatRepository) Exists(ctx context.Context, chatID string) (bool, error) {
	args := m.Called(ctx, chatID)
	return args.Bool(0), args.Error(1)
}

func (m *MockChatRepository) Fetch(ctx context.Context, chatID string) (*models.Chat, error) {
	args := m.Called(ctx, chatID)
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (m *MockChatRepository) Delete(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

type MockMessageLog struct {
	mock.Mock
}

func (m *MockMessageLog) Append(ctx context.Context, chatID, messageID string, body []byte, ts time.Time) error {
	args := m.Called(ctx, chatID, messageID, body, ts)
	return args.Error(0)
}

func (m *MockMessageLog) RangeByTime(ctx context.Context, chatID string, until *time.Time, limit int) ([]string, error) {
	args := m.Called(ctx, chatID, until, limit)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockMessageLog) FetchBodies(ctx context.Context, chatID string, ids []string) ([][]byte, error) {
	args := m.Called(ctx, chatID, ids)
	return args.Get(0).([][]byte), args.Error(1)
}

func (m *MockMessageLog) AllIDs(ctx context.Context, chatID string) ([]string, error) {
	args := m.Called(ctx, chatID)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockMessageLog) DeleteRoom(ctx context.Context, chatID string, ids []string) error {
	args := m.Called(ctx, chatID, ids)
	return args.Error(0)
}

type MockSequencer struct {
	mock.Mock
}

func (m *MockSequencer) NextChatID(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSequencer) NextMessageID(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Publish(ctx context.Context, chatID string, payload []byte) error {
	args := m.Called(ctx, chatID, payload)
	return args.Error(0)
}

func (m *MockBroker) Subscribe(ctx context.Context, chatID string) (ports.ISubscription, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.ISubscription), args.Error(1)
}

func CreateTestRequest(url, method string, body interface{}) *http.Request {
	var buffer bytes.Buffer
	if body != nil {
		json.NewEncoder(&buffer).Encode(body)
	}

	req := httptest.NewRequest(method, url, &buffer)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func ExecuteHandler(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
