package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/jwebster45206/hackslash/pkg/state"
)

// ErrMissingCredentials means the selected provider has no API key. It is
// reported once at startup and blocks gameplay.
var ErrMissingCredentials = errors.New("missing provider credentials")

// Provider names accepted in LLM_PROVIDER.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderVenice    = "venice"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelRaw string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile     string `env:"LOG_FILE"`
	LogLevel    slog.Level

	LLMProvider     string `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	VeniceAPIKey    string `env:"VENICE_API_KEY"`
	OllamaBaseURL   string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`

	EnemyModel          string        `env:"ENEMY_MODEL" envDefault:"gpt-3.5-turbo"`
	TierLadder          []string      `env:"TIER_LADDER" envDefault:"gpt-3.5-turbo,gpt-4,gpt-4o,gpt-5" envSeparator:","`
	FallbackTiers       []string      `env:"FALLBACK_TIERS" envDefault:"gpt-4o,gpt-3.5-turbo" envSeparator:","`
	MaxCompletionTokens int           `env:"MAX_COMPLETION_TOKENS" envDefault:"256"`
	AdviceMaxTokens     int           `env:"ADVICE_MAX_TOKENS" envDefault:"100"`
	RequestTimeout      time.Duration `env:"REQUEST_TIMEOUT" envDefault:"90s"`

	RedisURL    string `env:"REDIS_URL"`
	CatalogFile string `env:"CATALOG_FILE"`
	RewardSeed  uint64 `env:"REWARD_SEED"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads configuration from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	return cfg, nil
}

// Ladder returns the configured generation tiers, weakest first.
func (c *Config) Ladder() state.TierLadder {
	return state.ParseLadder(strings.Join(c.TierLadder, ","))
}

// Validate checks the provider is known and has credentials.
func (c *Config) Validate() error {
	var key string
	switch c.LLMProvider {
	case ProviderOpenAI:
		key = c.OpenAIAPIKey
	case ProviderAnthropic:
		key = c.AnthropicAPIKey
	case ProviderGemini:
		key = c.GeminiAPIKey
	case ProviderVenice:
		key = c.VeniceAPIKey
	case ProviderOllama, ProviderMock:
		key = "none"
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	if key == "" {
		return fmt.Errorf("%w: %s API key is not set", ErrMissingCredentials, c.LLMProvider)
	}
	if len(c.Ladder()) == 0 {
		return fmt.Errorf("TIER_LADDER must name at least one tier")
	}
	if c.MaxCompletionTokens <= 0 || c.AdviceMaxTokens <= 0 {
		return fmt.Errorf("token limits must be positive")
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
