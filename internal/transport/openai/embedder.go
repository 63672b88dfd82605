// Package openai embeds search queries through an OpenAI-compatible API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/metrics"
)

const (
	defaultTimeout = 3 * time.Second
	retryBackoff   = 100 * time.Millisecond
)

// Embedder vectorizes query text with an OpenAI-compatible provider (OpenAI, Nebius, vLLM).
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	timeout    time.Duration
	maxRetries int
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions is requested from the provider and checked on every response.
	// Zero accepts whatever the model returns.
	Dimensions int
	User       string
	Provider   string
	// Timeout bounds a single provider call. Zero means 3s.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts on 429 and 5xx responses.
	MaxRetries int
	// RequestsPerSecond caps provider calls from this process, retries included.
	// Zero disables the limiter.
	RequestsPerSecond float64
	Burst             int
	Logger            *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, cfg.Burst))
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   cfg.Provider,
		timeout:    timeout,
		maxRetries: max(0, cfg.MaxRetries),
		limiter:    limiter,
		logger:     log,
	}
}

// Embed implements domain.Embedder. Retries transient provider failures while
// the caller's context allows it.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.EmbeddingResult{}, fmt.Errorf("embedding retry: %w: %w",
					ctx.Err(), domain.ErrEmbeddingProviderError)
			case <-time.After(retryBackoff * time.Duration(attempt)):
			}
			metrics.EmbeddingRetriesTotal.WithLabelValues(e.provider, string(e.model)).Inc()
			e.logger.Debug("Retrying query embedding",
				zap.Int("attempt", attempt), zap.Error(lastErr))
		}

		res, err := e.embedOnce(ctx, &req)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return domain.EmbeddingResult{}, lastErr
}

func (e *Embedder) embedOnce(ctx context.Context, req *openai.EmbeddingRequest) (domain.EmbeddingResult, error) {
	if e.limiter != nil {
		waitStart := time.Now()
		err := e.limiter.Wait(ctx)
		metrics.EmbeddingRateLimitWait.WithLabelValues(e.provider).Observe(time.Since(waitStart).Seconds())
		if err != nil {
			metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "rate_limited").Inc()
			return domain.EmbeddingResult{}, fmt.Errorf("embedding rate limit: %w: %w", err, domain.ErrEmbeddingProviderError)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	model := string(e.model)
	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, *req)
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, model, "api_error").Inc()
		return domain.EmbeddingResult{}, parseAPIError(err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, model, "empty_response").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	vec := resp.Data[0].Embedding
	if e.dimensions > 0 && len(vec) != e.dimensions {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, model, "dimension_mismatch").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("embedding has %d dimensions, index expects %d: %w",
			len(vec), e.dimensions, domain.ErrEmbeddingProviderError)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, model).Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, model, "total").Add(float64(resp.Usage.TotalTokens))
	}

	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels, which costs no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// providerError keeps the HTTP status for retry decisions.
type providerError struct {
	status int
	msg    string
}

func (e *providerError) Error() string { return e.msg }

func (e *providerError) Unwrap() error { return domain.ErrEmbeddingProviderError }

func retryable(err error) bool {
	var pe *providerError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.status == http.StatusTooManyRequests || pe.status >= http.StatusInternalServerError
}

// parseAPIError turns a client error into a provider error carrying the status.
// Every result matches domain.ErrEmbeddingProviderError.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return &providerError{
			status: reqErr.HTTPStatusCode,
			msg:    fmt.Sprintf("embedding API error %d: %s", reqErr.HTTPStatusCode, detail),
		}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &providerError{
			status: apiErr.HTTPStatusCode,
			msg:    fmt.Sprintf("embedding API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message),
		}
	}

	return fmt.Errorf("embedding request failed: %w: %w", err, domain.ErrEmbeddingProviderError)
}

// extractDetail reads the "detail" field of a Nebius-style error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		return parsed.Detail
	}
	return ""
}
