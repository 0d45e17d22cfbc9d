package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. BOT_COZE_TOKEN for coze.token.
const EnvPrefix = "BOT"

// LoadConfig loads and validates configuration from:
//  1. default values
//  2. the YAML file at path (optional, missing file is not an error)
//  3. BOT_* environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
			}
			slog.Info("Configuration file not found, using defaults and environment", "path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks struct tags first and then the rules that depend on the
// selected platform and completion provider.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	switch c.Platform.Kind {
	case PlatformQQ:
		if c.QQ.AppID == "" || c.QQ.Secret == "" {
			return fmt.Errorf("%w: qq.app_id and qq.secret are required for platform %q", ErrValidation, PlatformQQ)
		}
		if c.QQ.BaseURL() == "" {
			return fmt.Errorf("%w: qq api base url is empty (sandbox=%t)", ErrValidation, c.QQ.Sandbox)
		}
	case PlatformTelegram:
		if c.Telegram.Token == "" {
			return fmt.Errorf("%w: telegram.token is required for platform %q", ErrValidation, PlatformTelegram)
		}
	}

	switch c.Completion.Provider {
	case ProviderCoze:
		if c.Coze.Token == "" || c.Coze.BotID == "" {
			return fmt.Errorf("%w: coze.token and coze.bot_id are required for provider %q", ErrValidation, ProviderCoze)
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" || c.Gemini.Model == "" {
			return fmt.Errorf("%w: gemini.api_key and gemini.model are required for provider %q", ErrValidation, ProviderGemini)
		}
	}

	for name, task := range c.Scheduler.Tasks {
		if task.Enabled && strings.TrimSpace(task.Schedule) == "" {
			return fmt.Errorf("%w: scheduler task %q is enabled but has no schedule", ErrValidation, name)
		}
	}

	return nil
}
