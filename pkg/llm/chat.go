package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// ChatConfig configures the generation client.
type ChatConfig struct {
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// ChatEngine sends a system-plus-user exchange to the generation model and
// returns its text. Unlike embedding, generation has no degrade path: any
// provider failure surfaces to the caller.
type ChatEngine struct {
	cfg ChatConfig
	llm llms.Model
}

func applyChatDefaults(cfg *ChatConfig) {
	if cfg.Model == "" {
		cfg.Model = "mistral"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
}

// NewChatEngine builds a generation client backed by an ollama model.
func NewChatEngine(cfg ChatConfig) (*ChatEngine, error) {
	applyChatDefaults(&cfg)

	model, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat model: %w", err)
	}
	return NewChatEngineWithModel(cfg, model), nil
}

// NewChatEngineWithModel wires an explicit model, used by tests.
func NewChatEngineWithModel(cfg ChatConfig, model llms.Model) *ChatEngine {
	applyChatDefaults(&cfg)
	return &ChatEngine{cfg: cfg, llm: model}
}

// Generate runs a two-message exchange: a fixed system instruction and a
// user message carrying the context and question.
func (ce *ChatEngine) Generate(ctx context.Context, system, user string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	resp, err := ce.llm.GenerateContent(ctx, content,
		llms.WithTemperature(ce.cfg.Temperature),
		llms.WithMaxTokens(ce.cfg.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generation returned no choices")
	}
	return resp.Choices[0].Content, nil
}
