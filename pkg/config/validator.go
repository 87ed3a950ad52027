package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.api_key",
				Message: "OPENAI_API_KEY is required for the openai provider",
			})
		}
	case "ollama":
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unsupported provider: %s", c.LLM.Provider),
		})
	}

	if c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "LLM base URL is required",
		})
	} else if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid LLM base URL",
		})
	}

	// Zero leaves replies uncapped.
	if c.LLM.MaxTokens < 0 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 0 and 8192",
		})
	}

	temps := []struct {
		field string
		value float64
	}{
		{"llm.summary_temperature", c.LLM.SummaryTemperature},
		{"llm.answer_temperature", c.LLM.AnswerTemperature},
		{"llm.recommend_temperature", c.LLM.RecommendTemperature},
	}
	for _, t := range temps {
		if t.value < 0 || t.value > 2 {
			errors = append(errors, ValidationError{
				Field:   t.field,
				Message: "temperature must be between 0 and 2",
			})
		}
	}

	if c.LLM.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	// Validate Server config
	if c.Server.MaxUploadMB < 1 {
		errors = append(errors, ValidationError{
			Field:   "server.max_upload_mb",
			Message: "max_upload_mb must be positive",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if u, err := url.Parse(c.Database.URL); err != nil || u.Scheme == "" {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	// Validate Extractor config
	if c.Extractor.ColumnGap <= 0 {
		errors = append(errors, ValidationError{
			Field:   "extractor.column_gap",
			Message: "column_gap must be positive",
		})
	}

	if c.Extractor.MinTableRows < 2 {
		errors = append(errors, ValidationError{
			Field:   "extractor.min_table_rows",
			Message: "min_table_rows must be at least 2",
		})
	}

	return errors
}
