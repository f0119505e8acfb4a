package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
)

var ErrEmptyResponse = errors.New("model returned no content")

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	MaxElapsed time.Duration
}

type OpenAIExtractor struct {
	client     openai.Client
	model      string
	maxTokens  int64
	maxElapsed time.Duration
}

func NewOpenAIExtractor(cfg OpenAIConfig) (*OpenAIExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	var client openai.Client
	if cfg.BaseURL != "" {
		client = openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
		)
	} else {
		client = openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
		)
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &OpenAIExtractor{client: client, model: model, maxTokens: maxTokens, maxElapsed: cfg.MaxElapsed}, nil
}

func (e *OpenAIExtractor) Provider() string { return "openai" }
func (e *OpenAIExtractor) Model() string    { return e.model }

func (e *OpenAIExtractor) Extract(ctx context.Context, img Image, branch string) ([]member.ExtractedRecord, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", img.MediaType, base64.StdEncoding.EncodeToString(img.Data))
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL:    dataURL,
					Detail: "high",
				}),
				openai.TextContentPart(userPrompt(branch)),
			}),
		},
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(e.maxTokens),
	}

	raw, err := withRetry(ctx, e.maxElapsed, func() (string, error) {
		resp, err := e.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", ErrEmptyResponse
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
	if err != nil {
		return nil, fmt.Errorf("openai extract: %w", err)
	}
	return ParseRecords(raw)
}
