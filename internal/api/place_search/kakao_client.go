package placeSearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeopl/route-planner/internal/types"
)

const (
	ProviderKakao     = "kakao"
	keywordSearchPath = "/v2/local/search/keyword.json"
)

// Client performs one keyword search and returns its hits. Each call is a
// single request with no retries.
type Client interface {
	Keyword(ctx context.Context, query string, size int) ([]types.Candidate, error)
}

var _ Client = (*KakaoClient)(nil)

type KakaoClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

func NewKakaoClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *KakaoClient {
	return &KakaoClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger,
	}
}

type keywordResponse struct {
	Documents []types.Candidate `json:"documents"`
	Meta      struct {
		TotalCount    int  `json:"total_count"`
		PageableCount int  `json:"pageable_count"`
		IsEnd         bool `json:"is_end"`
	} `json:"meta"`
}

type kakaoErrorBody struct {
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
}

func (c *KakaoClient) Keyword(ctx context.Context, query string, size int) ([]types.Candidate, error) {
	ctx, span := otel.Tracer("KakaoClient").Start(ctx, "Keyword", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(http.MethodGet),
		attribute.String("search.query", query),
		attribute.Int("search.size", size),
	))
	defer span.End()

	q := url.Values{}
	q.Set("query", query)
	q.Set("size", strconv.Itoa(size))
	endpoint := c.baseURL + keywordSearchPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to build request")
		return nil, fmt.Errorf("build kakao request: %w", err)
	}
	req.Header.Set("Authorization", "KakaoAK "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Request failed")
		return nil, &types.ProviderError{Provider: ProviderKakao, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to read body")
		return nil, &types.ProviderError{Provider: ProviderKakao, StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		var eb kakaoErrorBody
		if json.Unmarshal(body, &eb) == nil && eb.Message != "" {
			msg = eb.Message
		}
		err := &types.ProviderError{Provider: ProviderKakao, StatusCode: resp.StatusCode, Message: msg}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Non-success status")
		return nil, err
	}

	var kr keywordResponse
	if err := json.Unmarshal(body, &kr); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to decode body")
		return nil, &types.ProviderError{Provider: ProviderKakao, StatusCode: resp.StatusCode, Message: "malformed search response", Err: err}
	}

	if kr.Documents == nil {
		kr.Documents = []types.Candidate{}
	}
	span.SetAttributes(attribute.Int("search.results", len(kr.Documents)))
	span.SetStatus(codes.Ok, "Search completed")
	return kr.Documents, nil
}
