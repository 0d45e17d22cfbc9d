// Package main contains the entrypoint for the QQ/Coze relay bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/cozerelay/internal/bot"
	"github.com/edgard/cozerelay/internal/bot/tasks"
	"github.com/edgard/cozerelay/internal/command"
	"github.com/edgard/cozerelay/internal/completion"
	"github.com/edgard/cozerelay/internal/config"
	"github.com/edgard/cozerelay/internal/logger"
	"github.com/edgard/cozerelay/internal/prefs"
	"github.com/edgard/cozerelay/internal/qq"
	"github.com/edgard/cozerelay/internal/relay"
	"github.com/edgard/cozerelay/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// platform is the event source and reply sender for one chat platform.
type platform struct {
	source relay.EventSource
	sender relay.Sender
	tokens tasks.TokenRefresher
}

// run initializes all components, runs the relay until ctx is cancelled,
// and returns the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	store := prefs.NewStore()

	completer, err := newCompleter(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize completion client", "provider", cfg.Completion.Provider, "error", err)
		return 1
	}

	p, err := newPlatform(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize platform", "platform", cfg.Platform.Kind, "error", err)
		return 1
	}

	dispatcher := relay.NewDispatcher(relay.DispatcherDeps{
		Logger:            log,
		Commands:          command.NewInterpreter(cfg.Commands, store),
		Completer:         completer,
		Sender:            p.sender,
		UnavailablePrefix: cfg.Messages.UnavailablePrefix,
		MaxConcurrent:     cfg.Dispatch.MaxConcurrent,
	})

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger: log,
		Tokens: p.tokens,
		Prefs:  store,
	}))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, dispatcher, p.source, sched)

	log.Info("Starting relay", "platform", cfg.Platform.Kind, "provider", cfg.Completion.Provider)
	runErr := app.Run(ctx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Relay stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Relay stopped gracefully")
	return 0
}

func newCompleter(ctx context.Context, cfg *config.Config, log *slog.Logger) (completion.Completer, error) {
	switch cfg.Completion.Provider {
	case config.ProviderGemini:
		c, err := completion.NewGeminiClient(ctx, cfg.Gemini, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.ProviderCoze:
		c, err := completion.NewCozeClient(cfg.Coze, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown completion provider %q", cfg.Completion.Provider)
}

func newPlatform(ctx context.Context, cfg *config.Config, log *slog.Logger) (platform, error) {
	switch cfg.Platform.Kind {
	case config.PlatformTelegram:
		src := telegram.NewSource(log)
		tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log,
			tgbot.WithMiddlewares(logger.Middleware(log)),
			tgbot.WithDefaultHandler(src.Handle),
		)
		if err != nil {
			return platform{}, err
		}
		me, err := tg.GetMe(ctx)
		if err != nil {
			return platform{}, fmt.Errorf("failed to get bot info: %w", err)
		}
		log.Info("Retrieved bot info", "bot_id", me.ID, "bot_username", me.Username)
		src.Attach(tg, me)
		return platform{source: src, sender: telegram.NewSender(tg, log)}, nil

	case config.PlatformQQ:
		httpClient := &http.Client{Timeout: cfg.QQ.RequestTimeout}
		tokens := qq.NewTokenSource(httpClient, cfg.QQ.TokenURL, cfg.QQ.AppID, cfg.QQ.Secret, log)
		client := qq.NewClient(httpClient, cfg.QQ.BaseURL(), tokens)
		log.Info("Using QQ OpenAPI", "base_url", cfg.QQ.BaseURL(), "sandbox", cfg.QQ.Sandbox)
		return platform{
			source: qq.NewGateway(client, cfg.QQ.Intents, cfg.QQ.ReconnectDelay, log),
			sender: qq.NewSender(client, log),
			tokens: tokens,
		}, nil
	}
	return platform{}, fmt.Errorf("unknown platform %q", cfg.Platform.Kind)
}
