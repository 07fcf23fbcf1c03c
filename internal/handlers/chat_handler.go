package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"chatrelay/internal/models"
	"chatrelay/internal/services"

	"github.com/gin-gonic/gin"
)

const chatNotFoundDetail = "Chat does not exist, please check if the id is correct"

type ChatHandler struct {
	service *services.ChatService
	logger  *slog.Logger
}

func NewChatHandler(service *services.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{service: service, logger: logger}
}

func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required,min=1,max=120"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	chat, err := h.service.CreateChat(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"chat_id": chat.ChatID,
		"name":    chat.Name,
		"url":     "/chats/" + chat.ChatID,
		"ts":      chat.Ts,
	})
}

func (h *ChatHandler) CreateMessage(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required,min=1,max=500"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	message, err := h.service.PostMessage(c.Request.Context(), c.Param("chatId"), req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	var until *time.Time
	if raw := c.Query("ts_message"); raw != "" {
		t, err := models.ParseWireTime(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ts_message"})
			return
		}
		until = &t
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	messages, err := h.service.History(c.Request.Context(), c.Param("chatId"), until, limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *ChatHandler) DeleteChat(c *gin.Context) {
	if err := h.service.DeleteChat(c.Request.Context(), c.Param("chatId")); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrChatNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": chatNotFoundDetail})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
