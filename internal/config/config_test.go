package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearCredentialEnv keeps the host environment out of the tests
func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY", "AUTOCLAIM_OPENAI_API_KEY",
		"OPENAI_BASE_URL", "AUTOCLAIM_OPENAI_BASE_URL",
		"AUTOCLAIM_POLICY_ADMIN_TOKEN", "AUTOCLAIM_ADMIN_TOKEN",
		"LARK_APP_ID", "AUTOCLAIM_LARK_APP_ID",
		"LARK_APP_SECRET", "AUTOCLAIM_LARK_APP_SECRET",
		"LARK_RECEIVE_ID", "AUTOCLAIM_LARK_RECEIVE_ID",
		"AUTOCLAIM_SERVER_PORT", "AUTOCLAIM_LARK_ENABLED",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	clearCredentialEnv(t)
	path := writeConfig(t, `
openai:
  api_key: sk-test
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/autoclaim.db", cfg.Database.Path)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, 90*time.Second, cfg.OpenAI.Timeout)
	assert.Equal(t, 2, cfg.OpenAI.MaxPdfPages)
	assert.Equal(t, "FinAdmin", cfg.Policy.AdminToken)
	assert.False(t, cfg.Lark.Enabled)
	assert.Equal(t, "chat_id", cfg.Lark.ReceiveIDType)
	assert.Equal(t, 64, cfg.Notifier.QueueSize)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoad_FileValues(t *testing.T) {
	clearCredentialEnv(t)
	path := writeConfig(t, `
server:
  port: 9090
openai:
  api_key: sk-test
  model: gpt-4o-mini
  timeout: 45s
policy:
  admin_token: LedgerKey
lark:
  enabled: true
  app_id: cli_a
  app_secret: secret
  receive_id: oc_finance
  console_url: https://claims.example.com/admin
logger:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, 45*time.Second, cfg.OpenAI.Timeout)
	assert.Equal(t, "LedgerKey", cfg.Policy.AdminToken)
	assert.True(t, cfg.Lark.Enabled)
	assert.Equal(t, "oc_finance", cfg.Lark.ReceiveID)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("AUTOCLAIM_ADMIN_TOKEN", "EnvToken")
	t.Setenv("AUTOCLAIM_SERVER_PORT", "7000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "EnvToken", cfg.Policy.AdminToken)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	clearCredentialEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "no api key",
			body:    "openai:\n  model: gpt-4o\n",
			wantErr: "openai.api_key is required",
		},
		{
			name:    "lark enabled without credentials",
			body:    "openai:\n  api_key: sk\nlark:\n  enabled: true\n",
			wantErr: "lark.app_id is required",
		},
		{
			name:    "unknown receive id type",
			body:    "openai:\n  api_key: sk\nlark:\n  enabled: true\n  app_id: a\n  app_secret: b\n  receive_id: c\n  receive_id_type: user_id\n",
			wantErr: "lark.receive_id_type",
		},
		{
			name:    "bad log level",
			body:    "openai:\n  api_key: sk\nlogger:\n  level: verbose\n",
			wantErr: "logger.level",
		},
		{
			name:    "blank admin token",
			body:    "openai:\n  api_key: sk\npolicy:\n  admin_token: \"  \"\n",
			wantErr: "policy.admin_token is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearCredentialEnv(t)
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_BaseURLWithoutKey(t *testing.T) {
	clearCredentialEnv(t)
	path := writeConfig(t, "openai:\n  base_url: http://localhost:11434/v1\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.OpenAI.APIKey)
}

func TestLoadDotEnv(t *testing.T) {
	const key = "AUTOCLAIM_DOTENV_PROBE"
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() { os.Unsetenv(key) })

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(key+"=from-file\n"), 0o600))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envFile))
	assert.Equal(t, "from-file", os.Getenv(key))
}

func TestToContainerConfig(t *testing.T) {
	clearCredentialEnv(t)
	cfg, err := Load(writeConfig(t, "openai:\n  api_key: sk-test\n  prompts_path: configs/prompts.yaml\n"))
	require.NoError(t, err)

	cc := cfg.ToContainerConfig()
	assert.Equal(t, "sk-test", cc.OpenAI.APIKey)
	assert.Equal(t, "configs/prompts.yaml", cc.OpenAI.PromptsPath)
	assert.Equal(t, cfg.Policy.AdminToken, cc.Policy.AdminToken)
	assert.Equal(t, cfg.Server.MaxUploadBytes, cc.Server.MaxUploadBytes)
	assert.Equal(t, cfg.Notifier.QueueSize, cc.Notifier.QueueSize)
	require.NoError(t, cc.Validate())
}
