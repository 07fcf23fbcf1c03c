package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"chatrelay/internal/live"
	"chatrelay/internal/ports"
	"chatrelay/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebsocketHandler struct {
	service *services.ChatService
	broker  ports.IBroker
	logger  *slog.Logger
	active  prometheus.Gauge
}

func NewWebSocketHandler(service *services.ChatService, broker ports.IBroker, logger *slog.Logger) *WebsocketHandler {
	return &WebsocketHandler{service: service, broker: broker, logger: logger}
}

func (h *WebsocketHandler) SetActiveGauge(gauge prometheus.Gauge) {
	h.active = gauge
}

// HandleWebSocket hands the connection to a live session. The session only
// upgrades after the room is validated, so an unknown room is refused with
// 404 instead of being accepted and dropped.
func (h *WebsocketHandler) HandleWebSocket(c *gin.Context) {
	chatID := c.Param("chatId")

	accepted := false
	accept := func() (live.Conn, error) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return nil, err
		}
		accepted = true
		if h.active != nil {
			h.active.Inc()
		}
		h.logger.Info("live session opened", "chatID", chatID)
		return &wsConn{conn: conn}, nil
	}

	session := live.NewSession(chatID, accept, h.service, h.broker, h.logger)
	err := session.Run(c.Request.Context())

	if accepted {
		if h.active != nil {
			h.active.Dec()
		}
		return
	}

	// The handshake never happened, so an HTTP response is still possible.
	switch {
	case errors.Is(err, services.ErrChatNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": chatNotFoundDetail})
	case err != nil:
		h.logger.Error("live session refused", "chatID", chatID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// wsConn adapts a gorilla connection to the session's transport boundary.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadText() (string, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *wsConn) WriteText(payload []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
