// Package container provides dependency injection and lifecycle management
// for the AutoClaim desk.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	OpenAI   OpenAIConfig
	Policy   PolicyConfig
	Lark     LarkConfig
	Notifier NotifierConfig
	Server   ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenAIConfig holds evaluation API settings.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// PromptsPath optionally overrides the built-in prompts
	PromptsPath string

	// MaxPdfPages is how many pages of a PDF are sent for evaluation
	MaxPdfPages int
}

// PolicyConfig holds desk policy settings.
type PolicyConfig struct {
	AdminToken string
}

// LarkConfig holds review alert settings. Alerts are off unless Enabled.
type LarkConfig struct {
	Enabled       bool
	AppID         string
	AppSecret     string
	BaseURL       string
	ReceiveIDType string
	ReceiveID     string
	ConsoleURL    string
}

// NotifierConfig holds review alert queue settings.
type NotifierConfig struct {
	QueueSize   int
	SendTimeout time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/autoclaim.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o",
			Timeout:     90 * time.Second,
			MaxPdfPages: 2,
		},
		Policy: PolicyConfig{
			AdminToken: "FinAdmin",
		},
		Lark: LarkConfig{
			ReceiveIDType: "chat_id",
		},
		Notifier: NotifierConfig{
			QueueSize:   64,
			SendTimeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   120 * time.Second,
			MaxUploadBytes: 64 << 20,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.OpenAI.Model == "" {
		return fmt.Errorf("openai.model is required")
	}
	if c.Policy.AdminToken == "" {
		return fmt.Errorf("policy.admin_token is required")
	}
	if c.Lark.Enabled && (c.Lark.AppID == "" || c.Lark.AppSecret == "" || c.Lark.ReceiveID == "") {
		return fmt.Errorf("lark app_id, app_secret and receive_id are required when lark is enabled")
	}
	return nil
}
