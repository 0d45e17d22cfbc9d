// Package bot wires the relay components together and manages their
// lifecycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/cozerelay/internal/relay"
)

// Bot runs the event dispatcher and the task scheduler until shutdown.
type Bot struct {
	logger     *slog.Logger
	dispatcher *relay.Dispatcher
	source     relay.EventSource
	scheduler  *Scheduler
}

// NewBot creates the orchestrator for an already configured dispatcher,
// event source and scheduler.
func NewBot(logger *slog.Logger, dispatcher *relay.Dispatcher, source relay.EventSource, scheduler *Scheduler) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		logger:     logger.With("component", "bot_orchestrator"),
		dispatcher: dispatcher,
		source:     source,
		scheduler:  scheduler,
	}
}

// Run starts all components and blocks until ctx is cancelled or one of
// them fails. A failing component stops the others.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := b.dispatcher.Serve(gCtx, b.source)
		if err != nil {
			return err
		}
		if gCtx.Err() == nil {
			return fmt.Errorf("event source stopped unexpectedly")
		}
		return nil
	})

	if b.scheduler != nil {
		g.Go(func() error {
			if err := b.scheduler.Start(gCtx); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			if err := b.scheduler.Stop(); err != nil {
				b.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully")
	return nil
}
