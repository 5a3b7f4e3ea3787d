package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/patric-chuzhbe/contentapi/internal/models"
)

const DefaultOpenAIModel = "gpt-4o-mini"

const systemPrompt = `You summarize text and return JSON with keys "summary" and "sentiment". ` +
	`Sentiment must be exactly one of "Positive", "Negative", or "Neutral".`

var ErrEmptyCompletion = errors.New("provider returned no completion choices")

// OpenAIProvider asks a chat-completions model for a structured analysis.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

type OpenAIOption func(*openAIOptions)

type openAIOptions struct {
	model   string
	baseURL string
}

func WithModel(model string) OpenAIOption {
	return func(o *openAIOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(o *openAIOptions) {
		o.baseURL = baseURL
	}
}

// NewOpenAIProvider builds a provider for apiKey. The SDK's own retries are
// disabled; the engine performs a single bounded attempt.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	o := openAIOptions{model: DefaultOpenAIModel}
	for _, opt := range opts {
		opt(&o)
	}

	requestOptions := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		baseURL := o.baseURL
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		requestOptions = append(requestOptions, option.WithBaseURL(baseURL))
	}

	return &OpenAIProvider{
		client: openai.NewClient(requestOptions...),
		model:  o.model,
	}
}

// resultSchema is the strict JSON schema of the expected answer.
var resultSchema interface{} = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"summary": map[string]interface{}{
			"type": "string",
		},
		"sentiment": map[string]interface{}{
			"type": "string",
			"enum": []string{
				string(models.SentimentPositive),
				string(models.SentimentNegative),
				string(models.SentimentNeutral),
			},
		},
	},
	"required":             []string{"summary", "sentiment"},
	"additionalProperties": false,
}

func (p *OpenAIProvider) Analyze(ctx context.Context, text string) (Result, error) {
	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		}),
		Model: openai.F(openai.ChatModel(p.model)),
		ResponseFormat: openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
			openai.ResponseFormatJSONSchemaParam{
				Type: openai.F(openai.ResponseFormatJSONSchemaTypeJSONSchema),
				JSONSchema: openai.F(openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   openai.F("content_analysis"),
					Schema: openai.F(resultSchema),
					Strict: openai.Bool(true),
				}),
			},
		),
	})
	if err != nil {
		return Result{}, fmt.Errorf("in internal/analysis/openai.go/Analyze(): error while `p.client.Chat.Completions.New()` calling: %w", err)
	}

	if len(completion.Choices) == 0 {
		return Result{}, ErrEmptyCompletion
	}

	return parseResult(completion.Choices[0].Message.Content)
}

func parseResult(content string) (Result, error) {
	var raw struct {
		Summary   *string `json:"summary"`
		Sentiment *string `json:"sentiment"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return Result{}, fmt.Errorf("in internal/analysis/openai.go/parseResult(): error while `json.Unmarshal()` calling: %w", err)
	}

	if raw.Summary == nil || raw.Sentiment == nil {
		return Result{}, fmt.Errorf("%w: missing summary or sentiment", ErrInvalidResult)
	}

	return Result{
		Summary:   *raw.Summary,
		Sentiment: models.Sentiment(*raw.Sentiment),
	}, nil
}
