package handlers_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatrelay/app/tests"
	"chatrelay/internal/broker"
	"chatrelay/internal/handlers"
	"chatrelay/internal/models"
	"chatrelay/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.Default()

	store := tests.NewFakeStore()
	bus := broker.NewMemoryBroker(8, logger)
	service := services.NewChatService(store, store, &tests.FakeSequencer{}, bus, logger)

	chatHandler := handlers.NewChatHandler(service, logger)
	wsHandler := handlers.NewWebSocketHandler(service, bus, logger)

	eng := gin.New()
	chats := eng.Group("/chats")
	{
		chats.POST("", chatHandler.CreateChat)
		chats.POST("/:chatId/messages", chatHandler.CreateMessage)
		chats.GET("/:chatId/messages", chatHandler.GetMessages)
		chats.DELETE("/:chatId", chatHandler.DeleteChat)
		chats.GET("/:chatId/ws", wsHandler.HandleWebSocket)
	}
	return eng
}

func createChat(t *testing.T, eng *gin.Engine, name string) string {
	t.Helper()
	rr := tests.ExecuteHandler(eng, tests.CreateTestRequest("/chats", http.MethodPost, map[string]string{"name": name}))
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp struct {
		ChatID string `json:"chat_id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.ChatID
}

func TestChatHandler_CreateChat(t *testing.T) {
	eng := newTestRouter()

	rr := tests.ExecuteHandler(eng, tests.CreateTestRequest("/chats", http.MethodPost, map[string]string{"name": "Room A"}))
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "CHT:1", resp["chat_id"])
	assert.Equal(t, "Room A", resp["name"])
	assert.Equal(t, "/chats/CHT:1", resp["url"])

	_, err := time.Parse(models.WireTimeFormat, resp["ts"])
	assert.NoError(t, err)
}

func TestChatHandler_CreateChat_InvalidInput(t *testing.T) {
	eng := newTestRouter()

	rr := tests.ExecuteHandler(eng, tests.CreateTestRequest("/chats", http.MethodPost, map[string]string{}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = tests.ExecuteHandler(eng, tests.CreateTestRequest("/chats", http.MethodPost, map[string]string{"name": strings.Repeat("x", 121)}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChatHandler_CreateMessage(t *testing.T) {
	eng := newTestRouter()
	chatID := createChat(t, eng, "Room A")

	rr := tests.ExecuteHandler(eng, tests.CreateTestRequest("/chats/"+chatID+"/messages", http.MethodPost, map[string]string{"text": "hello"}))
	require.Equal(t, http.StatusCreated, rr.Code)

	var message models.Message
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &message))
	assert.Equal(t, chatID, message.ChatID)
	assert.Equal(t, "MSG:1", message.MessageID)
	assert.Equal(t, "hello", message.Text)
}

func TestChatHandler_CreateMessage_UnknownChat(t *testing.T) {
	eng := newTestRouter()

	rr := tests.ExecuteHandler(eng, tests.CreateTestRequest("/chats/CHT:missing/messages", http.MethodPost, map[string]string{"text": "hello"}))
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Chat does not exist")
}

func TestChatHandler_GetMessages(t *testing.T) {
	eng := newTestRouter()
	chatID := createChat(t, eng, "Room A")

	for _, text := range []string{"hello", "world"} {
		rr := tests.ExecuteHandler(eng, tests.CreateTestRequest("/chats/"+chatID+"/messages", http.MethodPost, map[string]string{"text": text}))
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := tests.ExecuteHandler(eng, tests.CreateTestRequest("/chats/"+chatID+"/messages", http.MethodGet, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "hello", resp.Messages[0].Text)
	assert.Equal(t, "world", resp.Messages[1].Text)
}

func TestChatHandler_GetMessages_QueryValidation(t *testing.T) {
	eng := newTestRouter()
	chatID := createChat(t, eng, "Room A")

	rr := tests.ExecuteHandler(eng, tests.CreateTestRequest("/chats/"+chatID+"/messages?ts_message=yesterday", http.MethodGet, nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = tests.ExecuteHandler(eng, tests.CreateTestRequest("/chats/"+chatID+"/messages?limit=ten", http.MethodGet, nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = tests.ExecuteHandler(eng, tests.CreateTestRequest("/chats/"+chatID+"/messages?ts_message=2030-01-01T00:00:00&limit=5", http.MethodGet, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestChatHandler_GetMessages_UnknownChat(t *testing.T) {
	eng := newTestRouter()

	rr := tests.ExecuteHandler(eng, tests.CreateTestRequest("/chats/CHT:missing/messages", http.MethodGet, nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Chat does not exist")
}

func TestChatHandler_DeleteChat(t *testing.T) {
	eng := newTestRouter()
	chatID := createChat(t, eng, "Room A")

	rr := tests.ExecuteHandler(eng, tests.CreateTestRequest("/chats/"+chatID, http.MethodDelete, nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = tests.ExecuteHandler(eng, tests.CreateTestRequest("/chats/"+chatID, http.MethodDelete, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = tests.ExecuteHandler(eng, tests.CreateTestRequest("/chats/"+chatID+"/messages", http.MethodGet, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWebsocketHandler_UnknownRoomRefused(t *testing.T) {
	eng := newTestRouter()

	rr := tests.ExecuteHandler(eng, tests.CreateTestRequest("/chats/CHT:missing/ws", http.MethodGet, nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Chat does not exist")
}

func dialRoom(t *testing.T, server *httptest.Server, chatID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/chats/" + chatID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) models.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	message, err := models.DecodeMessage(data)
	require.NoError(t, err)
	return message
}

func TestWebsocketHandler_LiveSession(t *testing.T) {
	eng := newTestRouter()
	server := httptest.NewServer(eng)
	defer server.Close()

	rr := tests.ExecuteHandler(eng, tests.CreateTestRequest("/chats", http.MethodPost, map[string]string{"name": "Room A"}))
	require.Equal(t, http.StatusCreated, rr.Code)
	var created struct {
		ChatID string `json:"chat_id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	sender := dialRoom(t, server, created.ChatID)
	defer sender.Close()
	watcher := dialRoom(t, server, created.ChatID)
	defer watcher.Close()

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte("hello")))

	// The sender sees its own message come back, and the second session
	// receives the same payload.
	echoed := readMessage(t, sender)
	assert.Equal(t, "hello", echoed.Text)
	assert.Equal(t, created.ChatID, echoed.ChatID)

	watched := readMessage(t, watcher)
	assert.Equal(t, echoed, watched)
}
