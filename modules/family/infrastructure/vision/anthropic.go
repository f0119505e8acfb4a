package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
)

const defaultAnthropicModel = "claude-3-5-sonnet-20241022"

type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	MaxElapsed time.Duration
}

type AnthropicExtractor struct {
	client     anthropic.Client
	model      anthropic.Model
	maxTokens  int64
	maxElapsed time.Duration
}

func NewAnthropicExtractor(cfg AnthropicConfig) (*AnthropicExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicExtractor{
		client:     anthropic.NewClient(opts...),
		model:      anthropic.Model(model),
		maxTokens:  maxTokens,
		maxElapsed: cfg.MaxElapsed,
	}, nil
}

func (e *AnthropicExtractor) Provider() string { return "anthropic" }
func (e *AnthropicExtractor) Model() string    { return string(e.model) }

func (e *AnthropicExtractor) Extract(ctx context.Context, img Image, branch string) ([]member.ExtractedRecord, error) {
	params := anthropic.MessageNewParams{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		Temperature: anthropic.Float(0),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(img.MediaType, base64.StdEncoding.EncodeToString(img.Data)),
				anthropic.NewTextBlock(userPrompt(branch)),
			),
		},
	}

	raw, err := withRetry(ctx, e.maxElapsed, func() (string, error) {
		message, err := e.client.Messages.New(ctx, params)
		if err != nil {
			return "", err
		}
		for _, block := range message.Content {
			if block.Type == "text" {
				return strings.TrimSpace(block.Text), nil
			}
		}
		return "", ErrEmptyResponse
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic extract: %w", err)
	}
	return ParseRecords(raw)
}
