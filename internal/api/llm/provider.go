package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"github.com/yeopl/route-planner/config"
	"github.com/yeopl/route-planner/internal/types"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// MissingKeyMessage is what clients see when no model credential is set.
const MissingKeyMessage = "API key is not configured. Please contact the administrator."

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role Role
	Text string
}

// CompletionRequest is one stateless model call. JSONMode asks the provider
// to constrain output to a syntactically valid JSON object.
type CompletionRequest struct {
	System   string
	Turns    []Turn
	JSONMode bool
}

// Provider is a chat-completion backend. Implementations return the text of
// the first completion, or a *types.ProviderError / *types.ConfigurationError.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// TranscriptTurns maps chat history onto model turns: bot messages become
// assistant turns, everything else a user turn.
func TranscriptTurns(messages []types.Message) []Turn {
	return lo.Map(messages, func(m types.Message, _ int) Turn {
		role := RoleUser
		if m.Author == types.AuthorBot {
			role = RoleAssistant
		}
		return Turn{Role: role, Text: m.Text}
	})
}

// NewProvider selects the backend named by llm.provider. A missing credential
// is not a start-up failure: the returned provider rejects every call.
func NewProvider(ctx context.Context, cfg config.Config, logger *slog.Logger) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	switch name {
	case ProviderOpenAI, "":
		if cfg.LLM.OpenAIKey == "" {
			logger.Warn("OpenAI API key not configured; chat and recommendations are disabled")
			return NewUnconfigured(ProviderOpenAI, "OPENAI_API_KEY is not set", logger), nil
		}
		return NewOpenAIProvider(cfg, logger), nil
	case ProviderGemini:
		if cfg.LLM.GeminiKey == "" {
			logger.Warn("Gemini API key not configured; chat and recommendations are disabled")
			return NewUnconfigured(ProviderGemini, "GEMINI_API_KEY is not set", logger), nil
		}
		return NewGeminiProvider(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
}

// Unconfigured stands in for a provider whose credential is missing.
type Unconfigured struct {
	provider string
	detail   string
	logger   *slog.Logger
}

func NewUnconfigured(provider, detail string, logger *slog.Logger) *Unconfigured {
	return &Unconfigured{provider: provider, detail: detail, logger: logger}
}

func (u *Unconfigured) Name() string { return u.provider }

func (u *Unconfigured) Complete(ctx context.Context, _ CompletionRequest) (string, error) {
	u.logger.ErrorContext(ctx, "Model provider not configured", slog.String("provider", u.provider), slog.String("detail", u.detail))
	return "", &types.ConfigurationError{Message: MissingKeyMessage, Detail: u.detail}
}
