package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"cmo/internal/domain"
	"cmo/internal/infra"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-5"
	defaultAnthropicMaxTokens = 4096
)

var tracer = infra.Tracer("llm")

// Anthropic calls the Messages API through the official SDK.
type Anthropic struct {
	client anthropic.Client
	model  anthropic.Model
	logger *infra.Logger
}

func NewAnthropic(opts Options) (*Anthropic, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("anthropic api key is required")
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithHTTPClient(httpClientFor(opts, openAIDefaultTimeout)),
		option.WithMaxRetries(2),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	return &Anthropic{
		client: anthropic.NewClient(reqOpts...),
		model:  anthropic.Model(coalesce(opts.Model, defaultAnthropicModel)),
		logger: infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

func (a *Anthropic) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "anthropic.messages.new")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", string(a.model)), attribute.Bool("llm.json", req.JSON))

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\n\nRespond with a single valid JSON document and nothing else.")
	}
	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: anthropic: status %d: %v", domain.ErrTransport, apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("%w: anthropic: %v", domain.ErrTransport, err)
	}
	span.SetAttributes(
		attribute.Int64("llm.input_tokens", message.Usage.InputTokens),
		attribute.Int64("llm.output_tokens", message.Usage.OutputTokens),
	)

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: anthropic: no text content", domain.ErrMalformedResponse)
	}
	return text, nil
}

var _ Completer = (*Anthropic)(nil)
