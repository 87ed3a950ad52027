package llm_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/xhad/soilreport/pkg/catalog"
	"github.com/xhad/soilreport/pkg/llm"
)

// fakeModel records each request and replies with a fixed answer, streaming
// it in two halves when a streaming func is set.
type fakeModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
	options  llms.CallOptions
	calls    int
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	m.messages = messages
	m.options = llms.CallOptions{}
	for _, opt := range options {
		opt(&m.options)
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.options.StreamingFunc != nil {
		half := len(m.reply) / 2
		for _, part := range []string{m.reply[:half], m.reply[half:]} {
			if err := m.options.StreamingFunc(ctx, []byte(part)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *fakeModel) text(i int) string {
	return m.messages[i].Parts[0].(llms.TextContent).Text
}

func newEngine(t *testing.T, model llms.Model) *llm.ChatEngine {
	t.Helper()
	products, err := catalog.Default()
	require.NoError(t, err)

	engine, err := llm.NewWithModel(llm.ChatConfig{
		AnswerTemperature: 0.1,
		RateLimit:         100,
	}, model, products)
	require.NoError(t, err)
	return engine
}

func TestNewWithConfig(t *testing.T) {
	products, err := catalog.Default()
	require.NoError(t, err)

	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider: "ollama",
		Model:    "testmodel",
		BaseURL:  "http://localhost:1234",
	}, products)
	assert.NoError(t, err)
	assert.NotNil(t, engine)

	engine, err = llm.NewWithConfig(llm.ChatConfig{
		Provider: "openai",
		APIKey:   "sk-test",
		BaseURL:  "http://localhost:1234/v1",
	}, products)
	assert.NoError(t, err)
	assert.NotNil(t, engine)

	_, err = llm.NewWithConfig(llm.ChatConfig{Provider: "bard"}, products)
	assert.Error(t, err)

	_, err = llm.NewWithConfig(llm.ChatConfig{Provider: "ollama"}, nil)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	model := &fakeModel{reply: "  Nitrogen is low.\n"}
	engine := newEngine(t, model)

	document := "--- Page 1 ---\npH: 5.2, Nitrogen: low\n"
	summary, err := engine.Summarize(context.Background(), document)
	require.NoError(t, err)

	assert.Equal(t, "Nitrogen is low.", summary)
	require.Len(t, model.messages, 2)
	assert.Equal(t, schema.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Contains(t, model.text(0), "expert assistant in soil science")
	assert.True(t, strings.HasSuffix(model.text(1), ":\n\n"+document))
	assert.Equal(t, 0.0, model.options.Temperature)
	assert.Zero(t, model.options.MaxTokens)
	assert.Nil(t, model.options.StreamingFunc)
}

func TestMaxTokensPassedWhenSet(t *testing.T) {
	products, err := catalog.Default()
	require.NoError(t, err)

	model := &fakeModel{reply: "ok"}
	engine, err := llm.NewWithModel(llm.ChatConfig{MaxTokens: 4096, RateLimit: 100}, model, products)
	require.NoError(t, err)

	_, err = engine.Summarize(context.Background(), "doc")
	require.NoError(t, err)
	assert.Equal(t, 4096, model.options.MaxTokens)
}

func TestAnswer(t *testing.T) {
	model := &fakeModel{reply: "Apply lime to raise pH."}
	engine := newEngine(t, model)

	var chunks []string
	answer, err := engine.Answer(context.Background(), "pH is 5.2", "How do I fix pH?", func(chunk string) {
		chunks = append(chunks, chunk)
	})
	require.NoError(t, err)

	assert.Equal(t, "Apply lime to raise pH.", answer)
	assert.Equal(t, "Apply lime to raise pH.", strings.Join(chunks, ""))
	assert.Equal(t, "Using this soil report summary:\npH is 5.2\n\nAnswer this specific question: How do I fix pH?", model.text(1))
	assert.Contains(t, model.text(0), "If the information is not in the summary, explain that clearly.")
	assert.InDelta(t, 0.1, model.options.Temperature, 1e-9)
}

func TestRecommend(t *testing.T) {
	model := &fakeModel{reply: "Use urea-1."}
	engine := newEngine(t, model)

	reply, err := engine.Recommend(context.Background(), "Nitrogen low", nil)
	require.NoError(t, err)
	assert.Equal(t, "Use urea-1.", reply)

	system := model.text(0)
	assert.True(t, strings.HasPrefix(system, "You are an expert in soil science and fertilizers."))
	assert.Contains(t, system, "dont suggest fertlisers that are rich in chemicals which already have higher levels")
	assert.Contains(t, system, `urea-1,"Cost effective nitrogen source.`)
	assert.Contains(t, system, "Calcium, Magnesium, Nitrogen, Phosphorus, Potassium and Sulphur")
	assert.Equal(t, "Based on this soil analysis summary and the list of products that you have, provide detailed fertilizer recommendations:\n\nNitrogen low", model.text(1))
	assert.Equal(t, 0.0, model.options.Temperature)
}

func TestGenerateErrors(t *testing.T) {
	model := &fakeModel{err: errors.New("401 unauthorized")}
	engine := newEngine(t, model)

	_, err := engine.Summarize(context.Background(), "doc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401 unauthorized")

	empty := &fakeModel{reply: ""}
	engine = newEngine(t, &emptyModel{fakeModel: empty})
	_, err = engine.Answer(context.Background(), "s", "q", nil)
	assert.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	products, err := catalog.Default()
	require.NoError(t, err)

	model := &fakeModel{reply: "ok"}
	engine, err := llm.NewWithModel(llm.ChatConfig{RateLimit: 0.001, Timeout: time.Second}, model, products)
	require.NoError(t, err)

	// The first call takes the only token.
	_, err = engine.Summarize(context.Background(), "doc")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Summarize(ctx, "doc")
	assert.Error(t, err)
	assert.Equal(t, 1, model.calls)
}

// emptyModel returns a response with no choices.
type emptyModel struct {
	*fakeModel
}

func (m *emptyModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}
