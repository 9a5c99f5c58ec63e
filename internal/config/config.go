package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Telegram   TelegramConfig   `yaml:"telegram" mapstructure:"telegram"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OCR        OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	Artifact   ArtifactConfig   `yaml:"artifact" mapstructure:"artifact"`
	Intake     IntakeConfig     `yaml:"intake" mapstructure:"intake"`
	Compliance ComplianceConfig `yaml:"compliance" mapstructure:"compliance"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// TelegramConfig holds the bot credentials.
type TelegramConfig struct {
	Token       string `yaml:"token" mapstructure:"token"`
	PollTimeout int    `yaml:"poll_timeout_secs" mapstructure:"poll_timeout_secs"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`
}

// LLMConfig selects the extraction backend and its credential pool.
type LLMConfig struct {
	Provider    string   `yaml:"provider" mapstructure:"provider"`
	APIKeys     []string `yaml:"api_keys" mapstructure:"api_keys"`
	BaseURL     string   `yaml:"base_url" mapstructure:"base_url"`
	Model       string   `yaml:"model" mapstructure:"model"`
	Temperature float64  `yaml:"temperature" mapstructure:"temperature"`
	RoastModel  string   `yaml:"roast_model" mapstructure:"roast_model"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds settings used when llm.provider is "anthropic".
type AnthropicConfig struct {
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OCRConfig configures bill text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	TesseractPath string `yaml:"tesseract_path" mapstructure:"tesseract_path"`
	Language      string `yaml:"language" mapstructure:"language"`
	MistralKey    string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string `yaml:"mistral_model" mapstructure:"mistral_model"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// ArtifactConfig configures where confirmed bill images are uploaded.
type ArtifactConfig struct {
	Driver         string `yaml:"driver" mapstructure:"driver"`
	ServiceAccount string `yaml:"service_account_json" mapstructure:"service_account_json"`
	RootFolderID   string `yaml:"root_folder_id" mapstructure:"root_folder_id"`
	RootFolderName string `yaml:"root_folder_name" mapstructure:"root_folder_name"`
	LocalDir       string `yaml:"local_dir" mapstructure:"local_dir"`
}

// IntakeConfig configures the bill intake conversation.
type IntakeConfig struct {
	ApprovedUsers []string `yaml:"approved_users" mapstructure:"approved_users"`
	TempDir       string   `yaml:"temp_dir" mapstructure:"temp_dir"`
	Timezone      string   `yaml:"timezone" mapstructure:"timezone"`
}

// ComplianceConfig configures the periodic update monitor.
type ComplianceConfig struct {
	Enabled           bool     `yaml:"enabled" mapstructure:"enabled"`
	GroupChatID       int64    `yaml:"group_chat_id" mapstructure:"group_chat_id"`
	Participants      []string `yaml:"participants" mapstructure:"participants"`
	Timezone          string   `yaml:"timezone" mapstructure:"timezone"`
	StartHour         int      `yaml:"start_hour" mapstructure:"start_hour"`
	EndHour           int      `yaml:"end_hour" mapstructure:"end_hour"`
	ReportGridMinutes int      `yaml:"report_grid_minutes" mapstructure:"report_grid_minutes"`
	GoalContext       string   `yaml:"goal_context" mapstructure:"goal_context"`
}

// RetryConfig configures transient-error retries for artifact uploads.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ServerConfig configures the health server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml, if present, and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path and environment. An empty path
// falls back to an optional ./config.yaml; an explicit path must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("PAYAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "payai.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.poll_timeout_secs", 60)
	v.SetDefault("telegram.debug", false)
	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.api_keys", []string{})
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.roast_model", "")
	v.SetDefault("llm.timeout_secs", 60)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("ocr.provider", "tesseract")
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.mistral_api_key", "")
	v.SetDefault("ocr.mistral_model", "mistral-ocr-latest")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("artifact.driver", "local")
	v.SetDefault("artifact.service_account_json", "")
	v.SetDefault("artifact.root_folder_id", "")
	v.SetDefault("artifact.root_folder_name", "Bills")
	v.SetDefault("artifact.local_dir", "bills")
	v.SetDefault("intake.approved_users", []string{})
	v.SetDefault("intake.temp_dir", "tmp")
	v.SetDefault("intake.timezone", "Asia/Kolkata")
	v.SetDefault("compliance.enabled", false)
	v.SetDefault("compliance.group_chat_id", 0)
	v.SetDefault("compliance.participants", []string{})
	v.SetDefault("compliance.timezone", "Asia/Kolkata")
	v.SetDefault("compliance.start_hour", 9)
	v.SetDefault("compliance.end_hour", 21)
	v.SetDefault("compliance.report_grid_minutes", 15)
	v.SetDefault("compliance.goal_context", "")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("retry.failure_threshold", 5)
	v.SetDefault("retry.reset_timeout_secs", 30)
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.normalize()

	return &cfg, nil
}

// normalize trims list entries and canonicalizes identities so lookups can
// compare lower-cased handles without a leading "@".
func (c *Config) normalize() {
	c.LLM.APIKeys = cleanList(c.LLM.APIKeys, false)
	c.Intake.ApprovedUsers = cleanList(c.Intake.ApprovedUsers, true)
	c.Compliance.Participants = cleanList(c.Compliance.Participants, true)
	c.Server.CORSOrigins = cleanList(c.Server.CORSOrigins, false)
}

func cleanList(in []string, identity bool) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		// A single env value may still carry commas when it came through a
		// config file as one string.
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if identity {
				s = NormalizeIdentity(s)
			}
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// NormalizeIdentity lower-cases a chat handle and strips a leading "@".
func NormalizeIdentity(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
