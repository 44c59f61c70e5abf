package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const systemPrompt = `You are a receipt parsing expert. Extract structured information from receipt text.
Return a JSON object with this exact structure:
{
  "restaurant": "Restaurant Name",
  "items": [
    {"name": "Item Name", "quantity": 1, "price": 10.99}
  ],
  "subtotal": 10.99,
  "tax": 0.99,
  "delivery_fee": 2.99,
  "tip": 2.00,
  "discount": 0.00,
  "total": 16.97
}

Rules:
- Extract all items with their quantities and unit prices
- Include all fees, taxes, tips, and discounts
- Set missing values to 0 or null
- Return ONLY valid JSON, no additional text`

// ErrEmptyCompletion is returned when the model answers with no choices.
var ErrEmptyCompletion = errors.New("language model returned no content")

// LLMConfig points the parser at an OpenAI-compatible chat completions API,
// such as a local LM Studio server.
type LLMConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// LLMParser parses receipt text with a chat completion model.
type LLMParser struct {
	client *openai.Client
	model  string
}

// Ensure LLMParser implements Parser
var _ Parser = (*LLMParser)(nil)

func NewLLMParser(cfg LLMConfig) *LLMParser {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &LLMParser{client: openai.NewClientWithConfig(clientCfg), model: cfg.Model}
}

// Parse sends rawText to the model and decodes its JSON answer.
func (p *LLMParser) Parse(ctx context.Context, rawText string) (*ParsedReceipt, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, ErrNoText
	}

	slog.Debug("Sending receipt text to LLM", "chars", len(rawText), "model", p.model)

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Parse this receipt:\n\n" + rawText},
		},
		Temperature: 0.1,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}

	content := stripCodeFence(resp.Choices[0].Message.Content)
	var parsed ParsedReceipt
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response as JSON: %w (response: %.200s)", err, content)
	}
	return &parsed, nil
}

// stripCodeFence removes a markdown code fence around the model's answer.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
