package conf

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bizdev-tools/tg-digest/internal/biz/usecase"
)

const (
	minMessageLimit = 1
	maxMessageLimit = 1000

	maxRetriesCeiling = 10
)

// Config represents application configuration
type Config struct {
	// Telegram configuration
	Telegram TelegramConfig

	// OpenAI configuration
	OpenAI OpenAIConfig

	// Output paths
	Output OutputConfig

	// Fetch configuration
	Fetch FetchValues

	// Optional integrations
	S3       S3Config
	RabbitMQ RabbitMQConfig
	Feishu   FeishuConfig

	// Rules file path (empty = search default locations)
	RulesPath string

	// Poll interval; zero means a single batch run
	RunInterval time.Duration

	LogLevel  string
	LogFormat string
}

// TelegramConfig contains Telegram client configuration
type TelegramConfig struct {
	AppID       int
	AppHash     string
	Phone       string
	SessionFile string
}

// OpenAIConfig contains summary model configuration
type OpenAIConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// OutputConfig contains output paths
type OutputConfig struct {
	DBFile     string
	MessageDir string
	CSVFile    string
}

// FetchValues contains history retrieval settings
type FetchValues struct {
	MessageLimit    int
	MaxRetries      int
	BaseWaitSeconds int
	MaxWaitSeconds  int
}

// S3Config contains the transcript mirror configuration
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// Enabled reports whether the S3 mirror is configured
func (c *S3Config) Enabled() bool {
	return c.Bucket != ""
}

// RabbitMQConfig contains record publishing configuration
type RabbitMQConfig struct {
	URL   string
	Queue string
}

// Enabled reports whether record publishing is configured
func (c *RabbitMQConfig) Enabled() bool {
	return c.URL != ""
}

// FeishuConfig contains run report configuration
type FeishuConfig struct {
	AppID        string
	AppSecret    string
	ReportChatID string
}

// Enabled reports whether the run report is configured
func (c *FeishuConfig) Enabled() bool {
	return c.AppID != "" && c.AppSecret != "" && c.ReportChatID != ""
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	limit := envInt("MESSAGE_LIMIT", 100)
	if limit < minMessageLimit {
		limit = minMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	return &Config{
		Telegram: TelegramConfig{
			AppID:       envInt("API_ID", 0),
			AppHash:     os.Getenv("API_HASH"),
			Phone:       os.Getenv("PHONE"),
			SessionFile: envString("SESSION_FILE", "session.json"),
		},
		OpenAI: OpenAIConfig{
			APIKey:    os.Getenv("OPENAI_API_KEY"),
			Model:     envString("OPENAI_MODEL", "gpt-4o"),
			BaseURL:   os.Getenv("OPENAI_BASE_URL"),
			MaxTokens: envInt("SUMMARY_MAX_TOKENS", 500),
		},
		Output: OutputConfig{
			DBFile:     envString("DB_FILE", "telegram.db"),
			MessageDir: envString("MESSAGE_DIR", "./messages"),
			CSVFile:    envString("CSV_FILE", "tg_detailed.csv"),
		},
		Fetch: FetchValues{
			MessageLimit:    limit,
			MaxRetries:      envInt("MAX_RETRIES", 3),
			BaseWaitSeconds: envInt("BASE_WAIT_SECONDS", 5),
			MaxWaitSeconds:  envInt("MAX_WAIT_SECONDS", 30),
		},
		S3: S3Config{
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    envString("S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			PathStyle: os.Getenv("S3_PATH_STYLE") == "true",
		},
		RabbitMQ: RabbitMQConfig{
			URL:   os.Getenv("RABBITMQ_URL"),
			Queue: envString("RABBITMQ_QUEUE", "tg_digest_records"),
		},
		Feishu: FeishuConfig{
			AppID:        os.Getenv("FEISHU_APP_ID"),
			AppSecret:    os.Getenv("FEISHU_APP_SECRET"),
			ReportChatID: os.Getenv("FEISHU_REPORT_CHAT_ID"),
		},
		RulesPath:   os.Getenv("RULES_CONFIG_PATH"),
		RunInterval: time.Duration(envInt("RUN_INTERVAL_MINUTES", 0)) * time.Minute,
		LogLevel:    envString("LOG_LEVEL", "info"),
		LogFormat:   os.Getenv("LOG_FORMAT"),
	}
}

// ToFetchConfig converts to the history fetcher configuration
func (c *Config) ToFetchConfig() usecase.FetchConfig {
	return usecase.FetchConfig{
		Limit:      c.Fetch.MessageLimit,
		PageSize:   c.Fetch.MessageLimit,
		MaxRetries: c.Fetch.MaxRetries,
		BaseWait:   time.Duration(c.Fetch.BaseWaitSeconds) * time.Second,
		MaxWait:    time.Duration(c.Fetch.MaxWaitSeconds) * time.Second,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Telegram.AppID == 0 || c.Telegram.AppHash == "" {
		return &ConfigError{Field: "API_ID/API_HASH", Message: "required"}
	}
	if c.OpenAI.APIKey == "" {
		return &ConfigError{Field: "OPENAI_API_KEY", Message: "required"}
	}
	if c.Fetch.MaxRetries < 0 {
		return &ConfigError{Field: "MAX_RETRIES", Message: "must not be negative"}
	}
	if c.Fetch.MaxRetries > maxRetriesCeiling {
		return &ConfigError{Field: "MAX_RETRIES", Message: fmt.Sprintf("must be at most %d", maxRetriesCeiling)}
	}
	if c.Fetch.BaseWaitSeconds <= 0 {
		return &ConfigError{Field: "BASE_WAIT_SECONDS", Message: "must be positive"}
	}
	if c.RunInterval < 0 {
		return &ConfigError{Field: "RUN_INTERVAL_MINUTES", Message: "must not be negative"}
	}
	return nil
}

// ValidateStore validates the subset needed by tools that only read the store
func (c *Config) ValidateStore() error {
	if c.Output.DBFile == "" {
		return &ConfigError{Field: "DB_FILE", Message: "required"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func envString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}
