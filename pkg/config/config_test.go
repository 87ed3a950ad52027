package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"SOIL_LLM_PROVIDER", "SOIL_LLM_MODEL", "OPENAI_API_KEY", "OPENAI_BASE_URL",
		"OLLAMA_BASE_URL", "DATABASE_URL", "PORT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)

	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  provider: "ollama"
  base_url: "http://localhost:11434"
  model: "llama3"
  max_tokens: 1000
  recommend_temperature: 0.2
  timeout: 45s
  rate_limit: 1.5

server:
  addr: ":9090"
  max_upload_mb: 5
  session_ttl: 1h

database:
  url: "postgres://localhost:5432/soil"

extractor:
  column_gap: 8
  min_table_rows: 3

ui:
  streaming: false
  theme: "dark"
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.0, config.LLM.SummaryTemperature)
	assert.Equal(t, 0.1, config.LLM.AnswerTemperature)
	assert.Equal(t, 0.2, config.LLM.RecommendTemperature)
	assert.Equal(t, 45*time.Second, config.LLM.Timeout)
	assert.Equal(t, ":9090", config.Server.Addr)
	assert.Equal(t, int64(5), config.Server.MaxUploadMB)
	assert.Equal(t, time.Hour, config.Server.SessionTTL)
	assert.Equal(t, "postgres://localhost:5432/soil", config.Database.URL)
	assert.Equal(t, "soil_sessions", config.Database.TableName)
	assert.Equal(t, 8.0, config.Extractor.ColumnGap)
	assert.Equal(t, 3, config.Extractor.MinTableRows)
	assert.False(t, config.UI.Streaming)
}

func TestDefaultConfig(t *testing.T) {
	clearEnv(t)

	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "openai", config.LLM.Provider)
	assert.Equal(t, "gpt-4", config.LLM.Model)
	assert.Equal(t, "https://api.openai.com/v1", config.LLM.BaseURL)
	assert.Equal(t, 0.1, config.LLM.AnswerTemperature)
	assert.Zero(t, config.LLM.MaxTokens, "replies are uncapped unless max_tokens is set")
	for _, e := range config.Validate() {
		assert.NotEqual(t, "llm.max_tokens", e.Field)
	}
	assert.True(t, config.UI.Streaming)
	assert.Equal(t, ":8080", config.Server.Addr)
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		c := newConfig()
		applyDefaults(c)
		c.LLM.APIKey = "sk-test"
		return *c
	}

	invalid := valid()
	invalid.LLM.Provider = "bogus"
	invalid.LLM.BaseURL = "invalid-url"
	invalid.LLM.MaxTokens = 10000
	invalid.LLM.AnswerTemperature = 3.0
	invalid.Database.URL = "invalid-url"

	missingKey := valid()
	missingKey.LLM.APIKey = ""

	tests := []struct {
		name          string
		config        Config
		expectedErrs  int
		errorMessages []string
	}{
		{
			name:         "valid config",
			config:       valid(),
			expectedErrs: 0,
		},
		{
			name:         "invalid config",
			config:       invalid,
			expectedErrs: 5,
			errorMessages: []string{
				"llm.provider: unsupported provider: bogus",
				"llm.base_url: invalid LLM base URL",
				"max_tokens: max_tokens must be between 0 and 8192",
				"llm.answer_temperature: temperature must be between 0 and 2",
				"database.url: invalid database URL",
			},
		},
		{
			name:          "openai without key",
			config:        missingKey,
			expectedErrs:  1,
			errorMessages: []string{"llm.api_key"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := tt.config.Validate()
			assert.Len(t, errors, tt.expectedErrs)

			if tt.errorMessages != nil {
				for i, msg := range tt.errorMessages {
					assert.Contains(t, errors[i].Error(), msg)
				}
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENAI_BASE_URL", "http://proxy:8000/v1")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/soil")
	t.Setenv("PORT", "7000")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "sk-env", config.LLM.APIKey)
	assert.Equal(t, "http://proxy:8000/v1", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/soil", config.Database.URL)
	assert.Equal(t, ":7000", config.Server.Addr)
}

func TestOllamaEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOIL_LLM_PROVIDER", "ollama")
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")

	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)

	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "mistral", config.LLM.Model)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a variable that exists, even when empty.
	os.Unsetenv("SOIL_LLM_MODEL")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SOIL_LLM_MODEL=gpt-4o\n"), 0644))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "gpt-4o", os.Getenv("SOIL_LLM_MODEL"))

	// A missing file is not an error.
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
