package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider             string        `yaml:"provider"`
		BaseURL              string        `yaml:"base_url"`
		APIKey               string        `yaml:"api_key"`
		Model                string        `yaml:"model"`
		MaxTokens            int           `yaml:"max_tokens"`
		SummaryTemperature   float64       `yaml:"summary_temperature"`
		AnswerTemperature    float64       `yaml:"answer_temperature"`
		RecommendTemperature float64       `yaml:"recommend_temperature"`
		Timeout              time.Duration `yaml:"timeout"`
		RateLimit            float64       `yaml:"rate_limit"`
	} `yaml:"llm"`

	Server struct {
		Addr        string        `yaml:"addr"`
		MaxUploadMB int64         `yaml:"max_upload_mb"`
		SessionTTL  time.Duration `yaml:"session_ttl"`
	} `yaml:"server"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
	} `yaml:"database"`

	Extractor struct {
		ColumnGap    float64 `yaml:"column_gap"`
		MinTableRows int     `yaml:"min_table_rows"`
	} `yaml:"extractor"`

	Catalog struct {
		Path string `yaml:"path"`
	} `yaml:"catalog"`

	UI struct {
		Streaming bool   `yaml:"streaming"`
		Theme     string `yaml:"theme"`
	} `yaml:"ui"`
}

// LoadEnvFile reads a .env file into the process environment if one exists.
// Variables already set are left alone.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading env file: %v", err)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/soilreport/config.yaml"),
			"/etc/soilreport/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	config := newConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(config)

	// Apply defaults for unset values
	applyDefaults(config)

	return config, nil
}

func getDefaultConfig() (*Config, error) {
	config := newConfig()
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

// newConfig seeds the values whose zero value is meaningful, so a yaml file
// that omits them keeps the default and one that sets them to zero wins.
func newConfig() *Config {
	config := &Config{}
	config.LLM.AnswerTemperature = 0.1
	config.UI.Streaming = true
	return config
}

// Temperatures are left alone: zero is the intended value for summaries and
// recommendations.
func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "openai"
	}
	if config.LLM.Model == "" {
		if config.LLM.Provider == "ollama" {
			config.LLM.Model = "mistral"
		} else {
			config.LLM.Model = "gpt-4"
		}
	}
	if config.LLM.BaseURL == "" {
		if config.LLM.Provider == "ollama" {
			config.LLM.BaseURL = "http://localhost:11434"
		} else {
			config.LLM.BaseURL = "https://api.openai.com/v1"
		}
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = 2 * time.Minute
	}
	if config.LLM.RateLimit == 0 {
		config.LLM.RateLimit = 2.0
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.MaxUploadMB == 0 {
		config.Server.MaxUploadMB = 20
	}
	if config.Server.SessionTTL == 0 {
		config.Server.SessionTTL = 24 * time.Hour
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "soil_sessions"
	}

	if config.Extractor.ColumnGap == 0 {
		config.Extractor.ColumnGap = 12
	}
	if config.Extractor.MinTableRows == 0 {
		config.Extractor.MinTableRows = 2
	}

	if config.UI.Theme == "" {
		config.UI.Theme = "soft"
	}
}

func mergeWithEnv(config *Config) {
	if provider := os.Getenv("SOIL_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}
	if model := os.Getenv("SOIL_LLM_MODEL"); model != "" {
		config.LLM.Model = model
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	switch config.LLM.Provider {
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			config.LLM.BaseURL = baseURL
		}
	default:
		if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
			config.LLM.BaseURL = baseURL
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Addr = ":" + port
	}
}
