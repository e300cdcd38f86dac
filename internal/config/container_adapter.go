package config

import (
	"github.com/garyjia/autoclaim/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		OpenAI: container.OpenAIConfig{
			APIKey:      c.OpenAI.APIKey,
			BaseURL:     c.OpenAI.BaseURL,
			Model:       c.OpenAI.Model,
			Timeout:     c.OpenAI.Timeout,
			PromptsPath: c.OpenAI.PromptsPath,
			MaxPdfPages: c.OpenAI.MaxPdfPages,
		},
		Policy: container.PolicyConfig{
			AdminToken: c.Policy.AdminToken,
		},
		Lark: container.LarkConfig{
			Enabled:       c.Lark.Enabled,
			AppID:         c.Lark.AppID,
			AppSecret:     c.Lark.AppSecret,
			BaseURL:       c.Lark.BaseURL,
			ReceiveIDType: c.Lark.ReceiveIDType,
			ReceiveID:     c.Lark.ReceiveID,
			ConsoleURL:    c.Lark.ConsoleURL,
		},
		Notifier: container.NotifierConfig{
			QueueSize:   c.Notifier.QueueSize,
			SendTimeout: c.Notifier.SendTimeout,
		},
		Server: container.ServerConfig{
			Host:           c.Server.Host,
			Port:           c.Server.Port,
			ReadTimeout:    c.Server.ReadTimeout,
			WriteTimeout:   c.Server.WriteTimeout,
			MaxUploadBytes: c.Server.MaxUploadBytes,
		},
	}
}
