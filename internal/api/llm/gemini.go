package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/yeopl/route-planner/app/observability/metrics"
	"github.com/yeopl/route-planner/config"
	"github.com/yeopl/route-planner/internal/types"
)

const defaultGeminiModel = "gemini-2.0-flash"

var _ Provider = (*GeminiProvider)(nil)

type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      *slog.Logger
}

func NewGeminiProvider(ctx context.Context, cfg config.Config, logger *slog.Logger) (*GeminiProvider, error) {
	ctx, span := otel.Tracer("LLMProvider").Start(ctx, "NewGeminiProvider")
	defer span.End()

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.LLM.GeminiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.LLM.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.LLM.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create Gemini client")
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := cfg.LLM.Model
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = defaultGeminiModel
	}

	span.SetStatus(codes.Ok, "Gemini client created")
	return &GeminiProvider{
		client:      client,
		model:       model,
		temperature: cfg.LLM.Temperature,
		timeout:     cfg.LLM.Timeout,
		logger:      logger.With(slog.String("provider", ProviderGemini)),
	}, nil
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, span := otel.Tracer("LLMProvider").Start(ctx, "Gemini.Complete", trace.WithAttributes(
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

	contents := make([]*genai.Content, 0, len(req.Turns))
	for _, t := range req.Turns {
		role := genai.Role(genai.RoleUser)
		if t.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
	}
	if req.JSONMode {
		genCfg.ResponseMIMEType = "application/json"
	}
	if p.temperature > 0 {
		genCfg.Temperature = genai.Ptr[float32](p.temperature)
	}

	start := time.Now()
	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, genCfg)
	metrics.Get().LLMRequestDurationSeconds.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("provider", ProviderGemini)))
	if err != nil {
		perr := geminiProviderError(err)
		metrics.Get().LLMRequestErrorsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("provider", ProviderGemini)))
		p.logger.ErrorContext(ctx, "Gemini API error",
			slog.Int("status", perr.StatusCode), slog.String("message", perr.Message))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Gemini request failed")
		return "", perr
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		err := &types.ProviderError{Provider: ProviderGemini, StatusCode: http.StatusBadGateway, Message: "model returned no text"}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Empty completion")
		return "", err
	}

	span.SetAttributes(attribute.Int("response.length", len(text)))
	span.SetStatus(codes.Ok, "Completion received")
	return text, nil
}

func geminiProviderError(err error) *types.ProviderError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &types.ProviderError{Provider: ProviderGemini, StatusCode: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &types.ProviderError{Provider: ProviderGemini, StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message, Err: err}
	}
	return &types.ProviderError{Provider: ProviderGemini, Message: err.Error(), Err: err}
}
