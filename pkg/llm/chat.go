package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"

	"github.com/xhad/soilreport/internal/types"
	"github.com/xhad/soilreport/pkg/catalog"
)

const (
	summarySystem = "You are an expert assistant in soil science. Analyze the soil report and provide a detailed summary for each sample." +
		"Make sure you analyse each page of the soil report. Only list the points that needs to be addressed,like lower or higher levels of chemicals . " +
		"Present the information in a clear, organized manner."
	summaryTemplate = "Provide an analysis of this soil report,list out the important points that need to be addressed. " +
		"Make sure to analyse of all pages of soil report pdf:\n\n%s"

	answerSystem = "You are a soil science expert. Answer the user's question based on the provided soil report summary. " +
		"Be specific and refer to the data in the summary when relevant. If the information is not in the summary, explain that clearly."
	answerTemplate = "Using this soil report summary:\n%s\n\nAnswer this specific question: %s"

	recommendSystem = "You are an expert in soil science and fertilizers. Based on the soil analysis and the list of products provided, " +
		"recommend specific fertilizer products.Make sure you dont suggest fertlisers that are rich in chemicals which already have higher levels in the soil report." +
		"Suggest Fertilisers for chemicals that have resulted in low levels in the soil report."
	recommendTemplate = "Based on this soil analysis summary and the list of products that you have, provide detailed fertilizer recommendations:\n\n%s"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider             string // openai or ollama
	Model                string
	BaseURL              string
	APIKey               string
	MaxTokens            int // zero leaves replies uncapped
	SummaryTemperature   float64
	AnswerTemperature    float64
	RecommendTemperature float64
	Timeout              time.Duration
	RateLimit            float64 // requests per second
}

// ChatEngine sends the soil report prompts to a chat model.
type ChatEngine struct {
	config  ChatConfig
	llm     llms.Model
	limiter *rate.Limiter
	system  string // recommendation instruction with the product list
}

var _ types.Analyst = (*ChatEngine)(nil)

// NewWithConfig creates a new ChatEngine backed by the configured provider.
func NewWithConfig(config ChatConfig, products *catalog.Catalog) (*ChatEngine, error) {
	config = withDefaults(config)

	var model llms.Model
	var err error
	switch config.Provider {
	case "openai":
		opts := []openai.Option{openai.WithModel(config.Model), openai.WithToken(config.APIKey)}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		model, err = openai.New(opts...)
	case "ollama":
		model, err = ollama.New(ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewWithModel(config, model, products)
}

// NewWithModel wraps an already constructed model.
func NewWithModel(config ChatConfig, model llms.Model, products *catalog.Catalog) (*ChatEngine, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if products == nil || products.Len() == 0 {
		return nil, fmt.Errorf("product catalog is empty")
	}
	config = withDefaults(config)
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	}

	return &ChatEngine{
		config:  config,
		llm:     model,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		system:  recommendSystem + "\n" + products.Render() + catalog.Legend,
	}, nil
}

func withDefaults(config ChatConfig) ChatConfig {
	if config.Provider == "" {
		config.Provider = "openai"
	}
	if config.Model == "" {
		if config.Provider == "ollama" {
			config.Model = "mistral"
		} else {
			config.Model = "gpt-4"
		}
	}
	if config.Provider == "ollama" && config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 2
	}
	return config
}

// Summarize asks the model for the out-of-range readings in a report.
func (ce *ChatEngine) Summarize(ctx context.Context, document string) (string, error) {
	return ce.generate(ctx, "summarize", summarySystem,
		fmt.Sprintf(summaryTemplate, document), ce.config.SummaryTemperature, nil)
}

// Answer responds to a question using only the stored summary.
func (ce *ChatEngine) Answer(ctx context.Context, summary, question string, stream types.StreamFunc) (string, error) {
	return ce.generate(ctx, "answer", answerSystem,
		fmt.Sprintf(answerTemplate, summary, question), ce.config.AnswerTemperature, stream)
}

// Recommend picks products from the catalog for the deficiencies in summary.
func (ce *ChatEngine) Recommend(ctx context.Context, summary string, stream types.StreamFunc) (string, error) {
	return ce.generate(ctx, "recommend", ce.system,
		fmt.Sprintf(recommendTemplate, summary), ce.config.RecommendTemperature, stream)
}

func (ce *ChatEngine) generate(ctx context.Context, op, system, user string, temperature float64, stream types.StreamFunc) (string, error) {
	if ce.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ce.config.Timeout)
		defer cancel()
	}

	if err := ce.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, user),
	}

	opts := []llms.CallOption{llms.WithTemperature(temperature)}
	if ce.config.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(ce.config.MaxTokens))
	}
	if stream != nil {
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			stream(string(chunk))
			return nil
		}))
	}

	start := time.Now()
	response, err := ce.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", fmt.Errorf("no response from LLM")
	}

	reply := strings.TrimSpace(response.Choices[0].Content)
	log.Debug().
		Str("op", op).
		Str("model", ce.config.Model).
		Int("prompt_bytes", len(system)+len(user)).
		Int("reply_bytes", len(reply)).
		Dur("elapsed", time.Since(start)).
		Msg("LLM call complete")

	return reply, nil
}
