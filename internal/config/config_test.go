package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// clearEnv removes variables the developer's shell might set. t.Setenv
// restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, envPrefix) {
			t.Setenv(name, "")
			require.NoError(t, os.Unsetenv(name))
		}
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oldschool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	require.Equal(t, 500, cfg.Chat.MaxTokens)
	require.InDelta(t, 0.7, cfg.Chat.Temperature, 1e-6)
	require.Equal(t, 20, cfg.Chat.MaxHistory)
	require.Equal(t, 60*time.Second, cfg.Chat.RequestTimeout)
}

func TestLoad_RequiresCredentialSource(t *testing.T) {
	clearEnv(t)
	_, err := Load("")
	require.ErrorContains(t, err, "either param_prefix or an OpenAI API key is required")
}

func TestLoad_OpenAIKeyFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", " sk-local ")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sk-local", cfg.OpenAI.APIKey)
	require.Empty(t, cfg.ParamPrefix)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLDSCHOOL_PARAM_PREFIX", "/oldschool/")
	t.Setenv("OLDSCHOOL_STATE_TABLE", "oldschool-exchanges")
	t.Setenv("OLDSCHOOL_LOG_LEVEL", "debug")
	t.Setenv("OLDSCHOOL_OPENAI__MODEL", "gpt-4o-mini")
	t.Setenv("OLDSCHOOL_CHAT__MAX_TOKENS", "800")
	t.Setenv("OLDSCHOOL_CHAT__TEMPERATURE", "0.2")
	t.Setenv("OLDSCHOOL_CHAT__REQUEST_TIMEOUT", "15s")
	t.Setenv("OLDSCHOOL_ALLOWED_ORIGINS", "https://oldschool.ag, https://www.oldschool.ag,")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "/oldschool", cfg.ParamPrefix)
	require.Equal(t, "oldschool-exchanges", cfg.StateTable)
	require.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	require.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	require.Equal(t, 800, cfg.Chat.MaxTokens)
	require.InDelta(t, 0.2, cfg.Chat.Temperature, 1e-6)
	require.Equal(t, 15*time.Second, cfg.Chat.RequestTimeout)
	require.Equal(t, []string{"https://oldschool.ag", "https://www.oldschool.ag"}, cfg.AllowedOrigins)

	// Untouched nested values keep their defaults.
	require.Equal(t, 20, cfg.Chat.MaxHistory)
	require.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.BaseURL)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
addr: ":9000"
log_format: json
param_prefix: /site
assets_dir: ./media
openai:
  model: gpt-4.1
chat:
  max_history: 8
`)
	t.Setenv("OLDSCHOOL_ADDR", ":9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9100", cfg.Addr)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, "/site", cfg.ParamPrefix)
	require.Equal(t, "./media", cfg.AssetsDir)
	require.Equal(t, "gpt-4.1", cfg.OpenAI.Model)
	require.Equal(t, 8, cfg.Chat.MaxHistory)
	require.Equal(t, 500, cfg.Chat.MaxTokens)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "config: read")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "log level", mutate: func(c *Config) { c.LogLevel = "loud" }, want: "invalid log_level"},
		{name: "log format", mutate: func(c *Config) { c.LogFormat = "xml" }, want: "invalid log_format"},
		{name: "relative prefix", mutate: func(c *Config) { c.ParamPrefix = "oldschool" }, want: "must start with /"},
		{name: "model", mutate: func(c *Config) { c.OpenAI.Model = " " }, want: "openai.model is required"},
		{name: "temperature", mutate: func(c *Config) { c.Chat.Temperature = 3 }, want: "chat.temperature"},
		{name: "history", mutate: func(c *Config) { c.Chat.MaxHistory = 0 }, want: "chat.max_history"},
		{name: "body", mutate: func(c *Config) { c.Chat.MaxBodyBytes = -1 }, want: "chat.max_body_bytes"},
		{name: "timeout", mutate: func(c *Config) { c.Chat.RequestTimeout = 0 }, want: "chat.request_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.OpenAI.APIKey = "sk-test"
			tt.mutate(cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	cfg := Default()
	cfg.OpenAI.APIKey = "sk-test"
	require.NoError(t, cfg.Validate())
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Addr = ""
	cfg.Chat.MaxTokens = 0
	err := cfg.Validate()
	require.ErrorContains(t, err, "addr is required")
	require.ErrorContains(t, err, "chat.max_tokens must be positive")
	require.ErrorContains(t, err, "either param_prefix")
}
