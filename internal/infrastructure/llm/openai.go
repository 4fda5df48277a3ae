package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"DocQualityAnalyzer/internal/config"
	"DocQualityAnalyzer/internal/domain"
	"DocQualityAnalyzer/internal/provider"
	"DocQualityAnalyzer/internal/quality"
	"DocQualityAnalyzer/internal/retry"
)

// OpenAIClient implements provider.Provider against OpenAI-compatible chat
// completion APIs (OpenAI, GLM, hosted Claude gateways and the like).
type OpenAIClient struct {
	name       string
	endpoint   string
	model      string
	apiKey     string
	opts       CallOptions
	httpClient *http.Client
	logger     *slog.Logger
}

var _ provider.Provider = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from one provider configuration entry.
func NewOpenAIClient(cfg config.ProviderConfig, opts CallOptions, log *slog.Logger) *OpenAIClient {
	endpoint := cfg.URL + cfg.Endpoint
	if cfg.Endpoint == "" {
		endpoint = cfg.URL + "/v1/chat/completions"
	}

	return &OpenAIClient{
		name:       cfg.Name,
		endpoint:   endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		opts:       opts,
		httpClient: &http.Client{},
		logger:     log,
	}
}

// OpenAIFactory adapts the constructor to the provider registry.
func OpenAIFactory(opts CallOptions) provider.Factory {
	return func(cfg config.ProviderConfig, log *slog.Logger) (provider.Provider, error) {
		if cfg.URL == "" || cfg.Model == "" || cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider %s requires url, model and apiKey", cfg.Name)
		}
		return NewOpenAIClient(cfg, opts, log), nil
	}
}

// Name identifies the provider in verdicts and logs.
func (c *OpenAIClient) Name() string {
	return c.name
}

// Evaluate judges content quality. Failures degrade to an Unparseable
// verdict instead of propagating.
func (c *OpenAIClient) Evaluate(ctx context.Context, content, prompt, documentID string) domain.Verdict {
	start := time.Now()
	verdict := domain.Verdict{Kind: domain.KindUnparseable, Provider: c.name}

	raw, err := c.complete(ctx, prompt, truncate(content, c.opts.ContentLimit), c.opts.Timeout)
	verdict.LatencyMs = time.Since(start).Milliseconds()
	verdict.RawText = raw
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("evaluation failed", "document_id", documentID, "error", err)
		}
		return verdict
	}

	verdict.Kind = quality.Parse(raw)
	return verdict
}

// GenerateTitle asks the model for a document title.
func (c *OpenAIClient) GenerateTitle(ctx context.Context, prompt, content string) (string, error) {
	raw, err := c.complete(ctx, prompt, truncate(content, c.opts.TitleContentLimit), c.opts.TitleTimeout)
	if err != nil {
		return "", fmt.Errorf("generate title: %w", err)
	}

	return cleanTitle(raw), nil
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string, timeout time.Duration) (string, error) {
	var content string

	err := c.opts.Retry.Do(ctx, "openai "+c.model, func() error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		body, err := json.Marshal(map[string]any{
			"model": c.model,
			"messages": []map[string]string{
				{"role": "system", "content": system},
				{"role": "user", "content": user},
			},
		})
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}

		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			return &retry.StatusError{Code: resp.StatusCode, Body: capBody(raw)}
		}

		var parsed struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return fmt.Errorf("response contains no choices")
		}

		content = parsed.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}

	return content, nil
}
