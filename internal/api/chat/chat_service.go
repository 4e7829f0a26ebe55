package chat

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeopl/route-planner/internal/api/llm"
	"github.com/yeopl/route-planner/internal/types"
)

const personaSystemPrompt = `You are a friendly and helpful travel planner assistant. Your name is '여플' (Yeo-peul).
ALL your responses MUST be in Korean.
Your primary goal is to help users plan their trips in South Korea by having a natural, helpful, and engaging conversation.
Provide informative responses in Korean. Do NOT output JSON or any code format. Your responses should be conversational text only.`

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	// Reply returns the assistant's next free-text turn for the transcript.
	Reply(ctx context.Context, transcript []types.Message) (string, error)
}

type ServiceImpl struct {
	provider llm.Provider
	logger   *slog.Logger
}

func NewServiceImpl(provider llm.Provider, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{provider: provider, logger: logger}
}

// ReplyRequest builds the free-text completion request for a transcript.
func ReplyRequest(transcript []types.Message) llm.CompletionRequest {
	return llm.CompletionRequest{
		System: personaSystemPrompt,
		Turns:  llm.TranscriptTurns(transcript),
	}
}

func (s *ServiceImpl) Reply(ctx context.Context, transcript []types.Message) (string, error) {
	ctx, span := otel.Tracer("ChatService").Start(ctx, "Reply", trace.WithAttributes(
		attribute.Int("transcript.length", len(transcript)),
		attribute.String("llm.provider", s.provider.Name()),
	))
	defer span.End()

	text, err := s.provider.Complete(ctx, ReplyRequest(transcript))
	if err != nil {
		s.logger.ErrorContext(ctx, "Chat reply failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Reply failed")
		return "", &types.ReplyError{Err: err}
	}

	span.SetStatus(codes.Ok, "Reply generated")
	return strings.TrimSpace(text), nil
}
