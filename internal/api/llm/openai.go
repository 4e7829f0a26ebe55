package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeopl/route-planner/app/observability/metrics"
	"github.com/yeopl/route-planner/config"
	"github.com/yeopl/route-planner/internal/types"
)

const defaultOpenAIModel = "gpt-4-turbo"

var _ Provider = (*OpenAIProvider)(nil)

type OpenAIProvider struct {
	client      openai.Client
	model       string
	temperature float64
	timeout     time.Duration
	logger      *slog.Logger
}

func NewOpenAIProvider(cfg config.Config, logger *slog.Logger) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.LLM.OpenAIKey),
		option.WithMaxRetries(0),
	}
	if cfg.LLM.BaseURL != "" {
		base := cfg.LLM.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}

	model := cfg.LLM.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	return &OpenAIProvider{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: float64(cfg.LLM.Temperature),
		timeout:     cfg.LLM.Timeout,
		logger:      logger.With(slog.String("provider", ProviderOpenAI)),
	}
}

func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, span := otel.Tracer("LLMProvider").Start(ctx, "OpenAI.Complete", trace.WithAttributes(
		attribute.String("llm.model", p.model),
		attribute.Int("llm.turns", len(req.Turns)),
		attribute.Bool("llm.json_mode", req.JSONMode),
	))
	defer span.End()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Turns)+1)
	messages = append(messages, openai.SystemMessage(req.System))
	for _, t := range req.Turns {
		if t.Role == RoleAssistant {
			messages = append(messages, openai.AssistantMessage(t.Text))
		} else {
			messages = append(messages, openai.UserMessage(t.Text))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: messages,
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	} else {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfText: &openai.ResponseFormatTextParam{},
		}
	}
	if p.temperature > 0 {
		params.Temperature = openai.Float(p.temperature)
	}

	start := time.Now()
	completion, err := p.client.Chat.Completions.New(ctx, params)
	metrics.Get().LLMRequestDurationSeconds.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("provider", ProviderOpenAI)))
	if err != nil {
		perr := p.providerError(err)
		metrics.Get().LLMRequestErrorsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("provider", ProviderOpenAI)))
		p.logger.ErrorContext(ctx, "OpenAI API error",
			slog.Int("status", perr.StatusCode), slog.String("message", perr.Message))
		span.RecordError(err)
		span.SetStatus(codes.Error, "OpenAI request failed")
		return "", perr
	}

	if len(completion.Choices) == 0 {
		err := &types.ProviderError{Provider: ProviderOpenAI, StatusCode: http.StatusBadGateway, Message: "model returned no choices"}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Empty completion")
		return "", err
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	span.SetAttributes(attribute.Int("response.length", len(text)))
	span.SetStatus(codes.Ok, "Completion received")
	return text, nil
}

func (p *OpenAIProvider) providerError(err error) *types.ProviderError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = "Failed to fetch response from OpenAI"
		}
		return &types.ProviderError{Provider: ProviderOpenAI, StatusCode: apiErr.StatusCode, Message: msg, Err: err}
	}
	return &types.ProviderError{Provider: ProviderOpenAI, Message: err.Error(), Err: err}
}
