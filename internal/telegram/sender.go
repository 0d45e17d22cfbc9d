package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/cozerelay/internal/relay"
)

// MessageSender is the subset of *bot.Bot used to post replies.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Sender is a relay.Sender posting replies to Telegram chats.
type Sender struct {
	client MessageSender
	log    *slog.Logger
}

// NewSender creates a sender backed by client.
func NewSender(client MessageSender, log *slog.Logger) *Sender {
	if log == nil {
		log = slog.Default()
	}
	return &Sender{client: client, log: log.With("component", "telegram_sender")}
}

// Send implements relay.Sender. The reply quotes the original message when
// its id is known.
func (s *Sender) Send(ctx context.Context, msg relay.OutboundMessage) error {
	params, err := sendParams(msg)
	if err != nil {
		return err
	}

	sent, err := s.client.SendMessage(ctx, params)
	if err != nil {
		return fmt.Errorf("telegram send message: %w", err)
	}
	s.log.DebugContext(ctx, "Message posted", "chat_id", params.ChatID, "message_id", sent.ID)
	return nil
}

func sendParams(msg relay.OutboundMessage) (*bot.SendMessageParams, error) {
	chatID, err := strconv.ParseInt(msg.RecipientID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", msg.RecipientID, err)
	}

	params := &bot.SendMessageParams{ChatID: chatID, Text: msg.Text}
	if replyTo, err := strconv.Atoi(msg.MessageID); err == nil && replyTo > 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: replyTo}
	}
	return params, nil
}
