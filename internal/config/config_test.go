package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgard/cozerelay/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const minimalYAML = `
qq:
  app_id: "102000001"
  secret: "s3cret"
coze:
  token: "pat_xxx"
  bot_id: "7300000000000000000"
`

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Platform.Kind != config.PlatformQQ {
		t.Errorf("Platform.Kind = %q, want %q", cfg.Platform.Kind, config.PlatformQQ)
	}
	if cfg.Completion.Provider != config.ProviderCoze {
		t.Errorf("Completion.Provider = %q, want %q", cfg.Completion.Provider, config.ProviderCoze)
	}
	if cfg.Coze.Endpoint != "https://api.coze.cn/open_api/v2/chat" {
		t.Errorf("Coze.Endpoint = %q", cfg.Coze.Endpoint)
	}
	if cfg.Coze.Timeout != 2*time.Minute {
		t.Errorf("Coze.Timeout = %v, want 2m", cfg.Coze.Timeout)
	}
	if cfg.Commands.AffectionTrigger != "我喜欢你" {
		t.Errorf("Commands.AffectionTrigger = %q", cfg.Commands.AffectionTrigger)
	}
	if cfg.Commands.ContextPrefix != "/context" || cfg.Commands.DeepThinkPrefix != "/r1" {
		t.Errorf("command prefixes = %q, %q", cfg.Commands.ContextPrefix, cfg.Commands.DeepThinkPrefix)
	}
	if !cfg.QQ.Sandbox || cfg.QQ.BaseURL() != "https://sandbox.api.sgroup.qq.com" {
		t.Errorf("QQ.BaseURL() = %q with sandbox=%t", cfg.QQ.BaseURL(), cfg.QQ.Sandbox)
	}
	if task, ok := cfg.Scheduler.Tasks["qq_token_refresh"]; !ok || !task.Enabled || task.Schedule == "" {
		t.Errorf("qq_token_refresh task = %+v (present=%t)", task, ok)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	cfg, err := config.LoadConfig(writeConfig(t, `
log:
  level: debug
  json: true
qq:
  app_id: "102000001"
  secret: "s3cret"
  sandbox: false
coze:
  token: "pat_xxx"
  bot_id: "7300000000000000000"
  timeout: 45s
dispatch:
  max_concurrent: 8
scheduler:
  tasks:
    prefs_report:
      enabled: false
`))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Log.Level != "debug" || !cfg.Log.JSON {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.QQ.BaseURL() != "https://api.sgroup.qq.com" {
		t.Errorf("QQ.BaseURL() = %q", cfg.QQ.BaseURL())
	}
	if cfg.Coze.Timeout != 45*time.Second {
		t.Errorf("Coze.Timeout = %v, want 45s", cfg.Coze.Timeout)
	}
	if cfg.Dispatch.MaxConcurrent != 8 {
		t.Errorf("Dispatch.MaxConcurrent = %d, want 8", cfg.Dispatch.MaxConcurrent)
	}
	if cfg.Scheduler.Tasks["prefs_report"].Enabled {
		t.Error("prefs_report should be disabled")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("BOT_QQ_APP_ID", "env-app")
	t.Setenv("BOT_QQ_SECRET", "env-secret")
	t.Setenv("BOT_COZE_TOKEN", "env-token")
	t.Setenv("BOT_COZE_BOT_ID", "env-bot")

	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.QQ.AppID != "env-app" || cfg.Coze.Token != "env-token" || cfg.Coze.BotID != "env-bot" {
		t.Errorf("environment not applied: qq=%+v coze=%+v", cfg.QQ, cfg.Coze)
	}
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing credentials",
			yaml: "log:\n  level: info\n",
		},
		{
			name: "unknown platform",
			yaml: minimalYAML + "platform:\n  kind: irc\n",
		},
		{
			name: "unknown log level",
			yaml: minimalYAML + "log:\n  level: verbose\n",
		},
		{
			name: "telegram without token",
			yaml: minimalYAML + "platform:\n  kind: telegram\n",
		},
		{
			name: "gemini without api key",
			yaml: minimalYAML + "completion:\n  provider: gemini\n",
		},
		{
			name: "enabled task without schedule",
			yaml: minimalYAML + "scheduler:\n  tasks:\n    prefs_report:\n      enabled: true\n      schedule: \"\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadConfig(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("LoadConfig() error = nil, want validation error")
			}
			if !errors.Is(err, config.ErrValidation) {
				t.Errorf("LoadConfig() error = %v, want wrapping ErrValidation", err)
			}
		})
	}
}
