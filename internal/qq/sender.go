package qq

import (
	"context"
	"log/slog"

	"github.com/edgard/cozerelay/internal/relay"
)

// Sender posts relay replies through the group or C2C endpoint, depending
// on the channel the inbound message came from.
type Sender struct {
	client *Client
	log    *slog.Logger
}

// NewSender creates a sender backed by client.
func NewSender(client *Client, log *slog.Logger) *Sender {
	if log == nil {
		log = slog.Default()
	}
	return &Sender{client: client, log: log.With("component", "qq_sender")}
}

// Send implements relay.Sender.
func (s *Sender) Send(ctx context.Context, msg relay.OutboundMessage) error {
	body := MessageToCreate{
		Content: msg.Text,
		MsgType: MsgTypeText,
		MsgID:   msg.MessageID,
	}

	var (
		resp *MessageResponse
		err  error
	)
	if msg.Kind == relay.ChannelGroup {
		resp, err = s.client.PostGroupMessage(ctx, msg.RecipientID, body)
	} else {
		resp, err = s.client.PostC2CMessage(ctx, msg.RecipientID, body)
	}
	if err != nil {
		return err
	}

	s.log.DebugContext(ctx, "Message posted", "channel", msg.Kind.String(), "recipient_id", msg.RecipientID, "id", resp.ID)
	return nil
}
