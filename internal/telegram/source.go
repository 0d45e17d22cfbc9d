package telegram

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/cozerelay/internal/relay"
)

// Source is a relay.EventSource fed by the bot's default update handler.
// Private chats are relayed as direct messages; in groups only messages
// that mention the bot or reply to it are relayed.
type Source struct {
	log    *slog.Logger
	events chan relay.InboundMessage

	mu      sync.RWMutex
	bot     *bot.Bot
	me      *models.User
	mention *regexp.Regexp
}

// NewSource creates an unattached source. Register Handle with
// bot.WithDefaultHandler, then call Attach once the bot exists.
func NewSource(log *slog.Logger) *Source {
	if log == nil {
		log = slog.Default()
	}
	return &Source{
		log:    log.With("component", "telegram_source"),
		events: make(chan relay.InboundMessage),
	}
}

// Attach binds the source to the bot it polls and the bot's own user.
func (s *Source) Attach(b *bot.Bot, me *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bot = b
	s.me = me
	s.mention = nil
	if me != nil && me.Username != "" {
		s.mention = mentionPattern(me.Username)
	}
}

// Handle is a bot.HandlerFunc that forwards relayable messages to Listen.
func (s *Source) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	s.mu.RLock()
	me, mention := s.me, s.mention
	s.mu.RUnlock()

	msg, ok := toInbound(update.Message, me, mention)
	if !ok {
		s.log.DebugContext(ctx, "Ignoring update", "update_id", update.ID)
		return
	}

	select {
	case s.events <- msg:
	case <-ctx.Done():
	}
}

// Listen implements relay.EventSource. It long-polls until ctx is cancelled.
func (s *Source) Listen(ctx context.Context, out chan<- relay.InboundMessage) error {
	s.mu.RLock()
	b := s.bot
	s.mu.RUnlock()
	if b == nil {
		return errors.New("telegram source is not attached to a bot")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.log.InfoContext(ctx, "Starting Telegram long polling")
		b.Start(ctx)
	}()

	for {
		select {
		case msg := <-s.events:
			select {
			case out <- msg:
			case <-ctx.Done():
				<-done
				return ctx.Err()
			}
		case <-done:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.New("telegram polling stopped unexpectedly")
		case <-ctx.Done():
			<-done
			return ctx.Err()
		}
	}
}

// toInbound converts a Telegram message into an inbound relay message. ok is
// false when the message should not be relayed. mention matches the bot's
// @username; group messages are dropped when it is nil.
func toInbound(msg *models.Message, me *models.User, mention *regexp.Regexp) (relay.InboundMessage, bool) {
	if msg == nil || msg.From == nil || msg.Text == "" {
		return relay.InboundMessage{}, false
	}
	if me != nil && msg.From.ID == me.ID {
		return relay.InboundMessage{}, false
	}

	in := relay.InboundMessage{
		RecipientID: strconv.FormatInt(msg.Chat.ID, 10),
		MessageID:   strconv.Itoa(msg.ID),
		Text:        msg.Text,
	}

	switch msg.Chat.Type {
	case "private":
		in.Kind = relay.ChannelDirect
		return in, true
	case "group", "supergroup":
		if me == nil || mention == nil {
			return relay.InboundMessage{}, false
		}
		mentioned := mention.MatchString(msg.Text)
		repliedTo := msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil && msg.ReplyToMessage.From.ID == me.ID
		if !mentioned && !repliedTo {
			return relay.InboundMessage{}, false
		}
		in.Kind = relay.ChannelGroup
		in.Text = strings.TrimSpace(mention.ReplaceAllString(msg.Text, " "))
		return in, true
	}

	return relay.InboundMessage{}, false
}

func mentionPattern(username string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)@` + regexp.QuoteMeta(username) + `\b`)
}
