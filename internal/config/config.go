// Package config provides configuration management for the assistant.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "marketminds/internal/errors"
)

// Provider names accepted for model roles.
const (
	ProviderOpenAI    = "openai"
	ProviderGroq      = "groq"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Config holds all application configuration.
type Config struct {
	Workflow    WorkflowConfig `mapstructure:"workflow"`
	News        NewsConfig     `mapstructure:"news"`
	Market      MarketConfig   `mapstructure:"market"`
	Storage     StorageConfig  `mapstructure:"storage"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	UI          UIConfig       `mapstructure:"ui"`
	Credentials Credentials    `mapstructure:"-" json:"-"` // Loaded separately
	Models      ModelsConfig   `mapstructure:"-"` // Loaded separately

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
}

// WorkflowConfig bounds a single conversation turn.
type WorkflowConfig struct {
	MaxToolHops        int           `mapstructure:"max_tool_hops" validate:"gte=1,lte=64"`
	MaxSteps           int           `mapstructure:"max_steps" validate:"gte=4,lte=500"`
	SummarizeThreshold int           `mapstructure:"summarize_threshold" validate:"gte=1"`
	KeepMessages       int           `mapstructure:"keep_messages" validate:"gte=0"`
	ExtractContext     bool          `mapstructure:"extract_context"`
	TurnTimeout        time.Duration `mapstructure:"turn_timeout" validate:"gte=0"`
}

// NewsConfig configures the news document store and its ingestion.
type NewsConfig struct {
	StoreDir  string  `mapstructure:"store_dir"`
	IngestDir string  `mapstructure:"ingest_dir"`
	K         int     `mapstructure:"k" validate:"gte=1"`
	FetchK    int     `mapstructure:"fetch_k" validate:"gte=1"`
	Lambda    float64 `mapstructure:"lambda" validate:"gte=0,lte=1"`
	Schedule  string  `mapstructure:"schedule"`
}

// MarketConfig configures the market data provider.
type MarketConfig struct {
	Provider  string        `mapstructure:"provider" validate:"oneof=alpaca"`
	Feed      string        `mapstructure:"feed" validate:"omitempty,oneof=iex sip otc"`
	RateLimit float64       `mapstructure:"rate_limit" validate:"gt=0"`
	Cache     bool          `mapstructure:"cache"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`

	// Consecutive upstream failures before requests fail fast, and how long
	// they keep failing fast before a probe is let through.
	BreakerFailures int           `mapstructure:"breaker_failures" validate:"gte=1"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" validate:"gt=0"`
}

// StorageConfig configures local persistence.
type StorageConfig struct {
	DBPath      string `mapstructure:"db_path"`
	Checkpoints string `mapstructure:"checkpoints" validate:"oneof=sqlite memory"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File  bool   `mapstructure:"file"`
	Path  string `mapstructure:"path"`
}

// UIConfig holds terminal output configuration.
type UIConfig struct {
	ColorEnabled bool `mapstructure:"color_enabled"`
}

// Credentials holds API credentials.
type Credentials struct {
	OpenAI    APIKeyCredentials `mapstructure:"openai"`
	Groq      APIKeyCredentials `mapstructure:"groq"`
	Google    APIKeyCredentials `mapstructure:"google"`
	Anthropic APIKeyCredentials `mapstructure:"anthropic"`
	Alpaca    AlpacaCredentials `mapstructure:"alpaca"`
}

// Secrets returns every configured credential value.
func (c Credentials) Secrets() []string {
	return []string{
		c.OpenAI.APIKey, c.Groq.APIKey, c.Google.APIKey, c.Anthropic.APIKey,
		c.Alpaca.KeyID, c.Alpaca.SecretKey,
	}
}

// APIKeyCredentials holds a single API key.
type APIKeyCredentials struct {
	APIKey string `mapstructure:"api_key"`
}

// AlpacaCredentials holds Alpaca market data credentials.
type AlpacaCredentials struct {
	KeyID     string `mapstructure:"key_id"`
	SecretKey string `mapstructure:"secret_key"`
}

// ModelsConfig selects the model backend for each role.
type ModelsConfig struct {
	Agent     ModelRole      `mapstructure:"agent"`
	Text      ModelRole      `mapstructure:"text"`
	Embedding EmbeddingModel `mapstructure:"embedding"`
}

// ModelRole configures one logical model role.
type ModelRole struct {
	Provider    string  `mapstructure:"provider" validate:"oneof=openai groq gemini anthropic"`
	Model       string  `mapstructure:"model" validate:"required"`
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `mapstructure:"max_tokens" validate:"gte=0"`
	BaseURL     string  `mapstructure:"base_url" validate:"omitempty,url"`
}

// EmbeddingModel configures the embedding backend used for news retrieval.
type EmbeddingModel struct {
	Provider   string `mapstructure:"provider" validate:"oneof=openai gemini"`
	Model      string `mapstructure:"model" validate:"required"`
	Dimensions int    `mapstructure:"dimensions" validate:"gte=0"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/market-minds"
	}
	return filepath.Join(home, ".config", "market-minds")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
// Missing files are written from templates and then read back.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	loadDotEnv(configDir)

	cfg := &Config{Dir: configDir}

	// Load main config
	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	// Load credentials
	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	// Load model config
	if err := loadModelConfig(configDir, &cfg.Models); err != nil {
		return nil, fmt.Errorf("loading models.toml: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)
	cfg.resolvePaths()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no files exist.
func Default(configDir string) *Config {
	cfg := &Config{Dir: configDir}
	v := viper.New()
	setConfigDefaults(v)
	_ = v.Unmarshal(cfg)
	m := viper.New()
	setModelDefaults(m)
	_ = m.Unmarshal(&cfg.Models)
	cfg.resolvePaths()
	return cfg
}

// loadDotEnv reads .env from the working directory and the config directory.
// Variables already present in the environment win.
func loadDotEnv(configDir string) {
	for _, path := range []string{".env", filepath.Join(configDir, ".env")} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("workflow.max_tool_hops", 8)
	v.SetDefault("workflow.max_steps", 50)
	v.SetDefault("workflow.summarize_threshold", 4)
	v.SetDefault("workflow.keep_messages", 2)
	v.SetDefault("workflow.extract_context", false)
	v.SetDefault("workflow.turn_timeout", "2m")
	v.SetDefault("news.k", 4)
	v.SetDefault("news.fetch_k", 10)
	v.SetDefault("news.lambda", 0.5)
	v.SetDefault("news.schedule", "@every 30m")
	v.SetDefault("market.provider", "alpaca")
	v.SetDefault("market.feed", "iex")
	v.SetDefault("market.rate_limit", 3.0)
	v.SetDefault("market.cache", true)
	v.SetDefault("market.cache_ttl", "15m")
	v.SetDefault("market.breaker_failures", 5)
	v.SetDefault("market.breaker_cooldown", "30s")
	v.SetDefault("storage.checkpoints", "sqlite")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", true)
	v.SetDefault("ui.color_enabled", true)
}

func setModelDefaults(v *viper.Viper) {
	v.SetDefault("agent.provider", ProviderOpenAI)
	v.SetDefault("agent.model", "gpt-4o-mini")
	v.SetDefault("agent.temperature", 0.0)
	v.SetDefault("text.provider", ProviderOpenAI)
	v.SetDefault("text.model", "gpt-4o-mini")
	v.SetDefault("text.temperature", 0.0)
	v.SetDefault("embedding.provider", ProviderGemini)
	v.SetDefault("embedding.model", "text-embedding-004")
	v.SetDefault("embedding.dimensions", 768)
}

func readTOML(v *viper.Viper, configDir, name string, create func(string) error) error {
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) {
		return err
	}
	// Config file not found, create template and read it back
	if err := create(configDir); err != nil {
		return err
	}
	return v.ReadInConfig()
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	setConfigDefaults(v)
	if err := readTOML(v, configDir, "config", createTemplateConfig); err != nil {
		return err
	}
	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	if err := readTOML(v, configDir, "credentials", createTemplateCredentials); err != nil {
		return err
	}
	return v.Unmarshal(creds)
}

func loadModelConfig(configDir string, models *ModelsConfig) error {
	v := viper.New()
	setModelDefaults(v)
	if err := readTOML(v, configDir, "models", createTemplateModelConfig); err != nil {
		return err
	}
	return v.Unmarshal(models)
}

func applyEnvOverrides(cfg *Config) {
	// Model credentials
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAI.APIKey = v
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		cfg.Credentials.Groq.APIKey = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.Credentials.Google.APIKey = v
	} else if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Credentials.Google.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Credentials.Anthropic.APIKey = v
	}

	// Alpaca credentials
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Credentials.Alpaca.KeyID = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Credentials.Alpaca.SecretKey = v
	}

	if v := os.Getenv("MARKETMINDS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("MARKETMINDS_NEWS_DIR"); v != "" {
		cfg.News.IngestDir = v
	}
}

// resolvePaths fills data locations that were left empty with paths under Dir.
func (c *Config) resolvePaths() {
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = filepath.Join(c.Dir, "data", "marketminds.db")
	}
	if c.News.StoreDir == "" {
		c.News.StoreDir = filepath.Join(c.Dir, "data", "news")
	}
	if c.News.IngestDir == "" {
		c.News.IngestDir = filepath.Join(c.Dir, "news")
	}
	if c.Logging.Path == "" {
		c.Logging.Path = filepath.Join(c.Dir, "logs", "marketminds.log")
	}
}

var validate = validator.New()

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}

	// Cross-field checks
	if c.News.FetchK < c.News.K {
		return fmt.Errorf("%w: news.fetch_k (%d) must be >= news.k (%d)", apperrors.ErrConfigInvalid, c.News.FetchK, c.News.K)
	}
	if c.Workflow.KeepMessages > c.Workflow.SummarizeThreshold {
		return fmt.Errorf("%w: workflow.keep_messages must not exceed workflow.summarize_threshold", apperrors.ErrConfigInvalid)
	}
	if c.Models.Agent.Provider == ProviderAnthropic {
		return fmt.Errorf("%w: the agent role needs tool calls, which the anthropic backend does not provide here", apperrors.ErrConfigInvalid)
	}

	return nil
}

// APIKey returns the API key configured for provider.
func (c *Config) APIKey(provider string) (string, error) {
	var key string
	switch provider {
	case ProviderOpenAI:
		key = c.Credentials.OpenAI.APIKey
	case ProviderGroq:
		key = c.Credentials.Groq.APIKey
	case ProviderGemini:
		key = c.Credentials.Google.APIKey
	case ProviderAnthropic:
		key = c.Credentials.Anthropic.APIKey
	default:
		return "", fmt.Errorf("%w: %s", apperrors.ErrUnknownProvider, provider)
	}
	if key == "" {
		return "", fmt.Errorf("%w: no API key for %s", apperrors.ErrMissingCredentials, provider)
	}
	return key, nil
}
