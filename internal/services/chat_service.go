package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chatrelay/internal/models"
	"chatrelay/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrChatNotFound = errors.New("chat not found")
)

// ChatService owns the room lifecycle and the single message write path:
// sequence, timestamp, durable append, then best-effort live publish of the
// exact bytes that were stored.
type ChatService struct {
	chats     ports.IChatRepository
	log       ports.IMessageLog
	sequence  ports.ISequencer
	broker    ports.IBroker
	logger    *slog.Logger
	published prometheus.Counter
}

func NewChatService(chats ports.IChatRepository, log ports.IMessageLog, sequence ports.ISequencer, broker ports.IBroker, logger *slog.Logger) *ChatService {
	return &ChatService{
		chats:    chats,
		log:      log,
		sequence: sequence,
		broker:   broker,
		logger:   logger,
	}
}

func (s *ChatService) SetPublishedCounter(counter prometheus.Counter) {
	s.published = counter
}

func (s *ChatService) CreateChat(ctx context.Context, name string) (*models.Chat, error) {
	if name == "" {
		return nil, ErrInvalidInput
	}

	chatID, err := s.sequence.NextChatID(ctx)
	if err != nil {
		s.logger.Error("failed to allocate chat id", "error", err)
		return nil, err
	}

	chat := models.Chat{
		ChatID: chatID,
		Name:   name,
		Ts:     models.FormatWireTime(time.Now()),
	}

	if err := s.chats.Create(ctx, chat); err != nil {
		s.logger.Error("failed to create chat", "chatID", chatID, "error", err)
		return nil, err
	}

	s.logger.Info("chat created", "chatID", chatID, "name", name)
	return &chat, nil
}

func (s *ChatService) ChatExists(ctx context.Context, chatID string) (bool, error) {
	return s.chats.Exists(ctx, chatID)
}

// PostMessage is the one write path for both the REST endpoint and live
// sessions. The published payload is byte-identical to the stored body, so
// a client cannot tell a live delivery from a history read.
func (s *ChatService) PostMessage(ctx context.Context, chatID, text string) (*models.Message, error) {
	if text == "" {
		return nil, ErrInvalidInput
	}

	exists, err := s.chats.Exists(ctx, chatID)
	if err != nil {
		s.logger.Error("failed to check chat existence", "chatID", chatID, "error", err)
		return nil, err
	}
	if !exists {
		return nil, ErrChatNotFound
	}

	messageID, err := s.sequence.NextMessageID(ctx)
	if err != nil {
		s.logger.Error("failed to allocate message id", "chatID", chatID, "error", err)
		return nil, err
	}

	now := time.Now().UTC()
	message := models.Message{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		Ts:        models.FormatWireTime(now),
	}

	body, err := message.Encode()
	if err != nil {
		return nil, err
	}

	if err := s.log.Append(ctx, chatID, messageID, body, now); err != nil {
		s.logger.Error("failed to append message", "chatID", chatID, "messageID", messageID, "error", err)
		return nil, err
	}

	// Live delivery is best-effort: the message is already durable, a
	// publish failure must not fail the write.
	if err := s.broker.Publish(ctx, chatID, body); err != nil {
		s.logger.Warn("live publish failed", "chatID", chatID, "messageID", messageID, "error", err)
	}

	if s.published != nil {
		s.published.Inc()
	}

	s.logger.Debug("message posted", "chatID", chatID, "messageID", messageID)
	return &message, nil
}

// History returns messages with timestamp <= until (inclusive), ascending,
// capped at limit. A nil until means no upper bound.
func (s *ChatService) History(ctx context.Context, chatID string, until *time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	exists, err := s.chats.Exists(ctx, chatID)
	if err != nil {
		s.logger.Error("failed to check chat existence", "chatID", chatID, "error", err)
		return nil, err
	}
	if !exists {
		return nil, ErrChatNotFound
	}

	ids, err := s.log.RangeByTime(ctx, chatID, until, limit)
	if err != nil {
		s.logger.Error("failed to range messages", "chatID", chatID, "error", err)
		return nil, err
	}

	bodies, err := s.log.FetchBodies(ctx, chatID, ids)
	if err != nil {
		s.logger.Error("failed to fetch message bodies", "chatID", chatID, "error", err)
		return nil, err
	}

	messages := make([]models.Message, 0, len(ids))
	for i, body := range bodies {
		if body == nil {
			// Dangling index entry, skip.
			continue
		}
		message, err := models.DecodeMessage(body)
		if err != nil {
			s.logger.Warn("skipping undecodable message body", "chatID", chatID, "messageID", ids[i], "error", err)
			continue
		}
		messages = append(messages, message)
	}

	s.logger.Debug("history read", "chatID", chatID, "count", len(messages))
	return messages, nil
}

func (s *ChatService) DeleteChat(ctx context.Context, chatID string) error {
	chat, err := s.chats.Fetch(ctx, chatID)
	if err != nil {
		s.logger.Error("failed to fetch chat", "chatID", chatID, "error", err)
		return err
	}
	if chat == nil {
		return ErrChatNotFound
	}

	ids, err := s.log.AllIDs(ctx, chatID)
	if err != nil {
		s.logger.Error("failed to list message ids", "chatID", chatID, "error", err)
		return err
	}

	if err := s.log.DeleteRoom(ctx, chatID, ids); err != nil {
		s.logger.Error("failed to delete chat", "chatID", chatID, "error", err)
		return err
	}

	s.logger.Info("chat deleted", "chatID", chatID, "messageCount", len(ids))
	return nil
}
