// Package config loads service settings from defaults, an optional YAML file
// and OLDSCHOOL_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "OLDSCHOOL_"

type Config struct {
	Addr           string       `yaml:"addr" koanf:"addr"`
	LogLevel       string       `yaml:"log_level" koanf:"log_level"`
	LogFormat      string       `yaml:"log_format" koanf:"log_format"`
	ParamPrefix    string       `yaml:"param_prefix" koanf:"param_prefix"`
	StateTable     string       `yaml:"state_table" koanf:"state_table"`
	ContentFile    string       `yaml:"content_file" koanf:"content_file"`
	AssetsDir      string       `yaml:"assets_dir" koanf:"assets_dir"`
	AllowedOrigins []string     `yaml:"allowed_origins" koanf:"allowed_origins"`
	OpenAI         OpenAIConfig `yaml:"openai" koanf:"openai"`
	Chat           ChatConfig   `yaml:"chat" koanf:"chat"`
}

type OpenAIConfig struct {
	BaseURL string `yaml:"base_url" koanf:"base_url"`
	Model   string `yaml:"model" koanf:"model"`
	// APIKey skips the parameter store lookup. Meant for local runs.
	APIKey string `yaml:"api_key" koanf:"api_key"`
}

type ChatConfig struct {
	MaxTokens        int           `yaml:"max_tokens" koanf:"max_tokens"`
	Temperature      float32       `yaml:"temperature" koanf:"temperature"`
	MaxHistory       int           `yaml:"max_history" koanf:"max_history"`
	MaxMessageLength int           `yaml:"max_message_length" koanf:"max_message_length"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes" koanf:"max_body_bytes"`
	RequestTimeout   time.Duration `yaml:"request_timeout" koanf:"request_timeout"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o",
		},
		Chat: ChatConfig{
			MaxTokens:        500,
			Temperature:      0.7,
			MaxHistory:       20,
			MaxMessageLength: 4000,
			MaxBodyBytes:     64 << 10,
			RequestTimeout:   60 * time.Second,
		},
	}
}

// Load builds the configuration. path is optional; when set, the file must
// exist. Nested keys are separated by "__" in variable names, for example
// OLDSCHOOL_OPENAI__MODEL. OPENAI_API_KEY is used when no key is configured.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	cfg.ParamPrefix = strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps OLDSCHOOL_CHAT__MAX_TOKENS to chat.max_tokens. Comma separated
// origins become a list.
func envKey(key, value string) (string, any) {
	name := strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if name == "config_file" {
		return "", nil
	}
	name = strings.ReplaceAll(name, "__", ".")
	if name == "allowed_origins" {
		var origins []string
		for _, o := range strings.Split(value, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		return name, origins
	}
	return name, value
}

var validLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("invalid log_level %q: must be one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("invalid log_format %q: must be text or json", c.LogFormat))
	}
	if c.ParamPrefix != "" && !strings.HasPrefix(c.ParamPrefix, "/") {
		errs = append(errs, fmt.Errorf("param_prefix %q must start with /", c.ParamPrefix))
	}
	if c.ParamPrefix == "" && c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("either param_prefix or an OpenAI API key is required"))
	}
	if strings.TrimSpace(c.OpenAI.Model) == "" {
		errs = append(errs, errors.New("openai.model is required"))
	}
	if c.Chat.MaxTokens <= 0 {
		errs = append(errs, errors.New("chat.max_tokens must be positive"))
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		errs = append(errs, errors.New("chat.temperature must be between 0 and 2"))
	}
	if c.Chat.MaxHistory <= 0 {
		errs = append(errs, errors.New("chat.max_history must be positive"))
	}
	if c.Chat.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("chat.max_message_length must be positive"))
	}
	if c.Chat.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("chat.max_body_bytes must be positive"))
	}
	if c.Chat.RequestTimeout <= 0 {
		errs = append(errs, errors.New("chat.request_timeout must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel returns the configured level. Validate has already rejected
// unknown names.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
