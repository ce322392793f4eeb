package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSystemPrompt frames the assistant for every endpoint request.
const DefaultSystemPrompt = `You are MindEase, a compassionate AI companion focused on mental health and emotional well-being.

Your role:
- Provide warm, empathetic responses
- Listen and validate feelings
- Suggest wellness activities (exercise, breathing, journaling, nature walks)
- NEVER suggest medications or provide medical diagnoses
- Encourage professional help for serious concerns

Keep responses supportive, conversational, and include gentle wellness suggestions when appropriate.`

// Config aggregates every service setting. Values come from an
// optional YAML file, overridden by environment variables.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Chat   ChatConfig   `yaml:"chat"`
	Auth   AuthConfig   `yaml:"auth"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig selects and parameterizes the record store backend.
type StoreConfig struct {
	Backend       string `yaml:"backend"` // memory, file or redis
	DataDir       string `yaml:"dataDir"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
}

// ChatConfig describes the two completion endpoints and the failover
// tuning.
type ChatConfig struct {
	PrimaryURL        string `yaml:"primaryURL"`
	SecondaryURL      string `yaml:"secondaryURL"`
	RetryDelayMS      int    `yaml:"retryDelayMs"`
	RequestTimeoutSec int    `yaml:"requestTimeoutSec"`
	SystemPrompt      string `yaml:"systemPrompt"`
}

// RetryDelay is the fixed pause before the automatic failover retry.
func (c ChatConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// RequestTimeout bounds a whole streamed turn; zero disables it.
func (c ChatConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// AuthConfig describes API session tokens.
type AuthConfig struct {
	Secret        string `yaml:"secret"`
	TokenTTLHours int    `yaml:"tokenTTLHours"`
}

// TokenTTL is the session token lifetime.
func (c AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// Load reads the optional YAML file at path (or MINDEASE_CONFIG, or
// config.yaml), then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{Addr: ":8080"},
		Store:  StoreConfig{Backend: "file", DataDir: "data"},
		Chat: ChatConfig{
			RetryDelayMS:      1000,
			RequestTimeoutSec: 30,
			SystemPrompt:      DefaultSystemPrompt,
		},
		Auth: AuthConfig{TokenTTLHours: 24 * 30},
	}

	if path == "" {
		path = getEnvOrDefault("MINDEASE_CONFIG", "config.yaml")
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if strings.Contains(port, ":") {
			cfg.Server.Addr = port
		} else {
			cfg.Server.Addr = ":" + port
		}
	}

	cfg.Store.Backend = getEnvOrDefault("MINDEASE_STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.DataDir = getEnvOrDefault("MINDEASE_DATA_DIR", cfg.Store.DataDir)
	cfg.Store.RedisAddr = getEnvOrDefault("MINDEASE_REDIS_ADDR", cfg.Store.RedisAddr)
	cfg.Store.RedisPassword = getEnvOrDefault("MINDEASE_REDIS_PASSWORD", cfg.Store.RedisPassword)

	cfg.Chat.PrimaryURL = getEnvOrDefault("MINDEASE_CHAT_PRIMARY_URL", cfg.Chat.PrimaryURL)
	cfg.Chat.SecondaryURL = getEnvOrDefault("MINDEASE_CHAT_SECONDARY_URL", cfg.Chat.SecondaryURL)
	cfg.Chat.SystemPrompt = getEnvOrDefault("MINDEASE_SYSTEM_PROMPT", cfg.Chat.SystemPrompt)

	cfg.Auth.Secret = getEnvOrDefault("MINDEASE_AUTH_SECRET", cfg.Auth.Secret)

	var err error
	if cfg.Chat.RetryDelayMS, err = parseIntEnv("MINDEASE_RETRY_DELAY_MS", cfg.Chat.RetryDelayMS); err != nil {
		return err
	}
	if cfg.Chat.RequestTimeoutSec, err = parseIntEnv("MINDEASE_REQUEST_TIMEOUT_SEC", cfg.Chat.RequestTimeoutSec); err != nil {
		return err
	}
	if cfg.Auth.TokenTTLHours, err = parseIntEnv("MINDEASE_TOKEN_TTL_HOURS", cfg.Auth.TokenTTLHours); err != nil {
		return err
	}
	return nil
}

func validate(cfg *Config) error {
	switch cfg.Store.Backend {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if cfg.Store.Backend == "redis" && cfg.Store.RedisAddr == "" {
		return fmt.Errorf("redis store backend requires MINDEASE_REDIS_ADDR")
	}
	if cfg.Chat.PrimaryURL == "" || cfg.Chat.SecondaryURL == "" {
		return fmt.Errorf("both chat endpoints are required (MINDEASE_CHAT_PRIMARY_URL, MINDEASE_CHAT_SECONDARY_URL)")
	}
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("MINDEASE_AUTH_SECRET is required")
	}
	if cfg.Chat.RetryDelayMS < 0 || cfg.Chat.RequestTimeoutSec < 0 {
		return fmt.Errorf("retry delay and request timeout must not be negative")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
