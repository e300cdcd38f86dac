package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/autoclaim/pkg/utils"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Notifier NotifierConfig `mapstructure:"notifier"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// OpenAIConfig holds the evaluation API configuration
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PromptsPath string        `mapstructure:"prompts_path"`
	MaxPdfPages int           `mapstructure:"max_pdf_pages"`
}

// PolicyConfig holds desk policy settings
type PolicyConfig struct {
	AdminToken string `mapstructure:"admin_token"`
}

// LarkConfig holds Lark review alert configuration
type LarkConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AppID         string `mapstructure:"app_id"`
	AppSecret     string `mapstructure:"app_secret"`
	BaseURL       string `mapstructure:"base_url"`
	ReceiveIDType string `mapstructure:"receive_id_type"`
	ReceiveID     string `mapstructure:"receive_id"`
	ConsoleURL    string `mapstructure:"console_url"`
}

// NotifierConfig holds review alert queue configuration
type NotifierConfig struct {
	QueueSize   int           `mapstructure:"queue_size"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := gotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables.
// An empty configPath reads the environment and defaults only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTOCLAIM")
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.max_upload_bytes", 64<<20)

	v.SetDefault("database.path", "data/autoclaim.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.timeout", 90*time.Second)
	v.SetDefault("openai.max_pdf_pages", 2)

	v.SetDefault("policy.admin_token", "FinAdmin")

	v.SetDefault("lark.enabled", false)
	v.SetDefault("lark.receive_id_type", "chat_id")

	v.SetDefault("notifier.queue_size", 64)
	v.SetDefault("notifier.send_timeout", 10*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the conventional credential variables
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("openai.api_key", "AUTOCLAIM_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("openai.base_url", "AUTOCLAIM_OPENAI_BASE_URL", "OPENAI_BASE_URL")
	_ = v.BindEnv("policy.admin_token", "AUTOCLAIM_POLICY_ADMIN_TOKEN", "AUTOCLAIM_ADMIN_TOKEN")
	_ = v.BindEnv("lark.app_id", "AUTOCLAIM_LARK_APP_ID", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "AUTOCLAIM_LARK_APP_SECRET", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.receive_id", "AUTOCLAIM_LARK_RECEIVE_ID", "LARK_RECEIVE_ID")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.OpenAI.APIKey == "" && c.OpenAI.BaseURL == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.OpenAI.Model == "" {
		return fmt.Errorf("openai.model is required")
	}
	if c.OpenAI.Timeout <= 0 {
		return fmt.Errorf("openai.timeout must be positive")
	}
	if c.OpenAI.MaxPdfPages <= 0 {
		return fmt.Errorf("openai.max_pdf_pages must be positive")
	}

	if strings.TrimSpace(c.Policy.AdminToken) == "" {
		return fmt.Errorf("policy.admin_token is required")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required when lark is enabled")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required when lark is enabled")
		}
		if c.Lark.ReceiveID == "" {
			return fmt.Errorf("lark.receive_id is required when lark is enabled")
		}
		switch c.Lark.ReceiveIDType {
		case "chat_id", "open_id", "email":
		default:
			return fmt.Errorf("lark.receive_id_type must be chat_id, open_id or email")
		}
	}

	if c.Notifier.QueueSize <= 0 {
		return fmt.Errorf("notifier.queue_size must be positive")
	}

	if !utils.IsValidLevel(c.Logger.Level) {
		return fmt.Errorf("logger.level must be debug, info, warn or error")
	}

	return nil
}
