// Package config provides configuration loading, validation, and defaults
// for the relay bot. Values come from a YAML file, BOT_* environment
// variables, and the defaults registered in this package.
package config

import (
	"errors"
	"time"
)

// ErrValidation is wrapped by every configuration validation failure.
var ErrValidation = errors.New("validation error")

const (
	PlatformQQ       = "qq"
	PlatformTelegram = "telegram"

	ProviderCoze   = "coze"
	ProviderGemini = "gemini"
)

// Config is the complete, read-only runtime configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Platform   PlatformConfig   `mapstructure:"platform"`
	QQ         QQConfig         `mapstructure:"qq"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Completion CompletionConfig `mapstructure:"completion"`
	Coze       CozeConfig       `mapstructure:"coze"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Commands   CommandsConfig   `mapstructure:"commands"`
	Messages   MessagesConfig   `mapstructure:"messages"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// PlatformConfig selects the chat platform the bot connects to.
type PlatformConfig struct {
	Kind string `mapstructure:"kind" validate:"required,oneof=qq telegram"`
}

// QQConfig holds the QQ Open Platform credentials and endpoints.
type QQConfig struct {
	AppID          string        `mapstructure:"app_id"`
	Secret         string        `mapstructure:"secret"`
	Sandbox        bool          `mapstructure:"sandbox"`
	Intents        int           `mapstructure:"intents"         validate:"gt=0"`
	APIBase        string        `mapstructure:"api_base"        validate:"omitempty,url"`
	SandboxAPIBase string        `mapstructure:"sandbox_api_base" validate:"omitempty,url"`
	TokenURL       string        `mapstructure:"token_url"       validate:"required,url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1s,max=5m"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" validate:"min=0,max=10m"`
}

// BaseURL returns the OpenAPI base URL for the configured environment.
func (c QQConfig) BaseURL() string {
	if c.Sandbox {
		return c.SandboxAPIBase
	}
	return c.APIBase
}

// TelegramConfig holds the Telegram bot token.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

// CompletionConfig selects the completion backend.
type CompletionConfig struct {
	Provider string `mapstructure:"provider" validate:"required,oneof=coze gemini"`
}

// CozeConfig holds the Coze chat API settings.
type CozeConfig struct {
	Token    string        `mapstructure:"token"`
	BotID    string        `mapstructure:"bot_id"`
	Endpoint string        `mapstructure:"endpoint" validate:"required,url"`
	Timeout  time.Duration `mapstructure:"timeout"  validate:"min=1s,max=10m"`
}

// GeminiConfig holds the settings of the Gemini completion backend.
type GeminiConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	Temperature       float32 `mapstructure:"temperature"        validate:"min=0,max=2"`
	SystemInstruction string  `mapstructure:"system_instruction"`
	// BaseURL overrides the Gemini API endpoint; empty uses the SDK default.
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

// CommandsConfig defines the chat commands and their replies.
type CommandsConfig struct {
	AffectionTrigger string `mapstructure:"affection_trigger"`
	AffectionReply   string `mapstructure:"affection_reply"`

	ContextPrefix        string `mapstructure:"context_prefix"`
	ContextEnabledReply  string `mapstructure:"context_enabled_reply"`
	ContextDisabledReply string `mapstructure:"context_disabled_reply"`

	DeepThinkPrefix        string `mapstructure:"deep_think_prefix"`
	DeepThinkEnabledReply  string `mapstructure:"deep_think_enabled_reply"`
	DeepThinkDisabledReply string `mapstructure:"deep_think_disabled_reply"`
}

// MessagesConfig holds user-facing texts not tied to a command.
type MessagesConfig struct {
	UnavailablePrefix string `mapstructure:"unavailable_prefix" validate:"required"`
}

// DispatchConfig bounds event handling concurrency.
type DispatchConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"min=1,max=1024"`
}

// SchedulerConfig lists the scheduled tasks by name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables a task and sets its cron schedule (seconds field first).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

var defaults = map[string]any{
	"log.level": "info",
	"log.json":  false,

	"platform.kind": PlatformQQ,

	"qq.app_id":           "",
	"qq.secret":           "",
	"qq.sandbox":          true,
	"qq.intents":          1 << 25, // GROUP_AND_C2C_EVENT
	"qq.api_base":         "https://api.sgroup.qq.com",
	"qq.sandbox_api_base": "https://sandbox.api.sgroup.qq.com",
	"qq.token_url":        "https://bots.qq.com/app/getAppAccessToken",
	"qq.request_timeout":  30 * time.Second,
	"qq.reconnect_delay":  5 * time.Second,

	"telegram.token": "",

	"completion.provider": ProviderCoze,

	"coze.token":    "",
	"coze.bot_id":   "",
	"coze.endpoint": "https://api.coze.cn/open_api/v2/chat",
	"coze.timeout":  2 * time.Minute,

	"gemini.api_key":            "",
	"gemini.model":              "gemini-2.0-flash",
	"gemini.temperature":        1.0,
	"gemini.system_instruction": "",
	"gemini.base_url":           "",

	"commands.affection_trigger":         "我喜欢你",
	"commands.affection_reply":           "我也喜欢你～",
	"commands.context_prefix":            "/context",
	"commands.context_enabled_reply":     "上下文功能已启用",
	"commands.context_disabled_reply":    "上下文功能已关闭",
	"commands.deep_think_prefix":         "/r1",
	"commands.deep_think_enabled_reply":  "深度思考模式已启用",
	"commands.deep_think_disabled_reply": "深度思考模式已关闭",

	"messages.unavailable_prefix": "service temporarily unavailable: ",

	"dispatch.max_concurrent": 50,

	"scheduler.tasks.qq_token_refresh.enabled":  true,
	"scheduler.tasks.qq_token_refresh.schedule": "0 */30 * * * *",
	"scheduler.tasks.prefs_report.enabled":      true,
	"scheduler.tasks.prefs_report.schedule":     "0 0 * * * *",
}
