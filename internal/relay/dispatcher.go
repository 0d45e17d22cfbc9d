package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/cozerelay/internal/completion"
	"github.com/edgard/cozerelay/internal/text"
)

// sendTimeout bounds a reply send. Replies are sent even after the
// handling context is cancelled so shutdown does not drop them.
const sendTimeout = 10 * time.Second

// CommandHandler answers local commands. handled is false when the text
// must go to the completion service.
type CommandHandler interface {
	TryHandle(text, recipientID string) (reply string, handled bool)
}

// DispatcherDeps groups the collaborators of a Dispatcher.
type DispatcherDeps struct {
	Logger            *slog.Logger
	Commands          CommandHandler
	Completer         completion.Completer
	Sender            Sender
	UnavailablePrefix string
	MaxConcurrent     int
}

// Dispatcher runs the pipeline for every inbound message.
type Dispatcher struct {
	log               *slog.Logger
	commands          CommandHandler
	completer         completion.Completer
	sender            Sender
	unavailablePrefix string
	maxConcurrent     int
}

// NewDispatcher creates a dispatcher from deps.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	maxConcurrent := deps.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Dispatcher{
		log:               log.With("component", "dispatcher"),
		commands:          deps.Commands,
		completer:         deps.Completer,
		sender:            deps.Sender,
		unavailablePrefix: deps.UnavailablePrefix,
		maxConcurrent:     maxConcurrent,
	}
}

// Handle processes one message and sends exactly one reply. Completion
// failures become a sanitized "unavailable" reply; only a failing send is
// returned.
func (d *Dispatcher) Handle(ctx context.Context, msg InboundMessage) error {
	startTime := time.Now()
	log := d.log.With(
		"event_id", uuid.NewString(),
		"channel", msg.Kind.String(),
		"recipient_id", msg.RecipientID,
		"message_id", msg.MessageID,
	)

	content := strings.TrimSpace(msg.Text)
	log.InfoContext(ctx, "Message received", "text", content)

	if d.commands != nil {
		if reply, ok := d.commands.TryHandle(content, msg.RecipientID); ok {
			log.DebugContext(ctx, "Handled as local command")
			return d.reply(ctx, log, msg, reply, startTime)
		}
	}

	answer, err := d.completer.Complete(ctx, msg.RecipientID, content)
	if err != nil {
		log.ErrorContext(ctx, "Completion failed", "error", err, "error_kind", errorKind(err))
		detail := text.StripURLs(text.StripURLTokens(err.Error()))
		return d.reply(ctx, log, msg, d.unavailablePrefix+detail, startTime)
	}

	return d.reply(ctx, log, msg, answer, startTime)
}

func (d *Dispatcher) reply(ctx context.Context, log *slog.Logger, msg InboundMessage, body string, startTime time.Time) error {
	out := OutboundMessage{
		Kind:        msg.Kind,
		RecipientID: msg.RecipientID,
		MessageID:   msg.MessageID,
		Text:        text.StripURLs(body),
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	if err := d.sender.Send(sendCtx, out); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "duration", time.Since(startTime))
		return fmt.Errorf("failed to send reply: %w", err)
	}

	log.InfoContext(ctx, "Reply sent", "text", out.Text, "duration", time.Since(startTime))
	return nil
}

// Serve reads src until it stops and handles every message in its own
// goroutine, at most maxConcurrent at a time. Per-message failures are
// logged by Handle and never stop the loop; Serve returns the error of src.
func (d *Dispatcher) Serve(ctx context.Context, src EventSource) error {
	events := make(chan InboundMessage)

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- src.Listen(ctx, events)
	}()

	var g errgroup.Group
	g.SetLimit(d.maxConcurrent)
	defer func() {
		_ = g.Wait()
	}()

	for {
		select {
		case msg := <-events:
			g.Go(func() error {
				_ = d.Handle(ctx, msg)
				return nil
			})
		case err := <-listenErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				d.log.ErrorContext(ctx, "Event source stopped with error", "error", err)
				return fmt.Errorf("event source failed: %w", err)
			}
			d.log.InfoContext(ctx, "Event source stopped")
			return nil
		}
	}
}

func errorKind(err error) string {
	var hErr *completion.HTTPError
	var mErr *completion.MalformedResponseError
	switch {
	case errors.As(err, &hErr):
		return "http"
	case errors.As(err, &mErr):
		return "malformed_response"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport"
	}
}
