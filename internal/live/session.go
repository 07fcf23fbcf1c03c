package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chatrelay/internal/models"
	"chatrelay/internal/ports"
	"chatrelay/internal/services"

	"golang.org/x/sync/errgroup"
)

// Conn is the transport boundary of a live session. The session never
// interprets framing; it reads units of text and writes payloads verbatim.
type Conn interface {
	ReadText() (string, error)
	WriteText(payload []byte) error
	Close() error
}

// AcceptFunc completes the transport handshake. The session calls it only
// after the room is validated and the subscription is in place, so nothing
// published after the client sees the connection accepted can be missed.
type AcceptFunc func() (Conn, error)

// RoomService is the slice of the write path a session needs.
type RoomService interface {
	ChatExists(ctx context.Context, chatID string) (bool, error)
	PostMessage(ctx context.Context, chatID, text string) (*models.Message, error)
}

// Session couples one connection to one room. While running it serves two
// duties concurrently: relaying every broadcast payload to the client and
// appending every inbound text through the ordinary write path, which echoes
// it back over the broadcast channel. The first duty to fail cancels the
// other, and teardown runs on every exit path.
type Session struct {
	chatID  string
	accept  AcceptFunc
	service RoomService
	broker  ports.IBroker
	logger  *slog.Logger
}

func NewSession(chatID string, accept AcceptFunc, service RoomService, broker ports.IBroker, logger *slog.Logger) *Session {
	return &Session{
		chatID:  chatID,
		accept:  accept,
		service: service,
		broker:  broker,
		logger:  logger,
	}
}

// Run blocks until the session ends. Order matters here: validate the room,
// take the subscription, only then accept the connection.
func (s *Session) Run(ctx context.Context) error {
	exists, err := s.service.ChatExists(ctx, s.chatID)
	if err != nil {
		return err
	}
	if !exists {
		return services.ErrChatNotFound
	}

	sub, err := s.broker.Subscribe(ctx, s.chatID)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Close()

	conn, err := s.accept()
	if err != nil {
		return fmt.Errorf("accept connection: %w", err)
	}
	defer conn.Close()

	g, gctx := errgroup.WithContext(ctx)

	// The transport read has no context; closing the connection is what
	// unblocks a pending read once the group is cancelled.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-gctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	g.Go(func() error {
		return s.outbound(gctx, conn, sub)
	})
	g.Go(func() error {
		return s.inbound(gctx, conn)
	})

	err = g.Wait()
	s.logger.Info("live session ended", "chatID", s.chatID, "reason", err)
	return err
}

// outbound relays broadcast payloads to the client in the order received.
func (s *Session) outbound(ctx context.Context, conn Conn, sub ports.ISubscription) error {
	for {
		select {
		case payload, ok := <-sub.Payloads():
			if !ok {
				return errors.New("subscription closed")
			}
			if err := conn.WriteText(payload); err != nil {
				return fmt.Errorf("deliver to client: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// inbound treats every unit of client text as an ordinary message creation
// for this room. The append publishes the stored bytes, so the sender sees
// its own message arrive through the outbound duty.
func (s *Session) inbound(ctx context.Context, conn Conn) error {
	for {
		text, err := conn.ReadText()
		if err != nil {
			return fmt.Errorf("read from client: %w", err)
		}

		if _, err := s.service.PostMessage(ctx, s.chatID, text); err != nil {
			if errors.Is(err, services.ErrInvalidInput) {
				continue
			}
			return fmt.Errorf("post inbound message: %w", err)
		}
	}
}
