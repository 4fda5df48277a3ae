package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"DocQualityAnalyzer/internal/config"
	"DocQualityAnalyzer/internal/domain"
	"DocQualityAnalyzer/internal/provider"
	"DocQualityAnalyzer/internal/quality"
	"DocQualityAnalyzer/internal/retry"
)

// OllamaClient implements provider.Provider against the Ollama generate API.
// Responses arrive as a stream of newline-delimited JSON objects whose
// "response" fragments are concatenated before parsing.
type OllamaClient struct {
	name       string
	baseURL    string
	endpoint   string
	model      string
	opts       CallOptions
	httpClient *http.Client
	logger     *slog.Logger
}

var _ provider.Provider = (*OllamaClient)(nil)

// NewOllamaClient builds a client from one provider configuration entry.
func NewOllamaClient(cfg config.ProviderConfig, opts CallOptions, log *slog.Logger) *OllamaClient {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "/api/generate"
	}

	return &OllamaClient{
		name:       cfg.Name,
		baseURL:    cfg.URL,
		endpoint:   endpoint,
		model:      cfg.Model,
		opts:       opts,
		httpClient: &http.Client{},
		logger:     log,
	}
}

// OllamaFactory adapts the constructor to the provider registry.
func OllamaFactory(opts CallOptions) provider.Factory {
	return func(cfg config.ProviderConfig, log *slog.Logger) (provider.Provider, error) {
		if cfg.URL == "" || cfg.Model == "" {
			return nil, fmt.Errorf("ollama provider %s requires url and model", cfg.Name)
		}
		return NewOllamaClient(cfg, opts, log), nil
	}
}

// Name identifies the provider in verdicts and logs.
func (c *OllamaClient) Name() string {
	return c.name
}

// Evaluate judges content quality. Failures degrade to an Unparseable
// verdict; the ensemble must see every provider's outcome.
func (c *OllamaClient) Evaluate(ctx context.Context, content, prompt, documentID string) domain.Verdict {
	start := time.Now()
	verdict := domain.Verdict{Kind: domain.KindUnparseable, Provider: c.name}

	raw, err := c.generate(ctx, prompt+truncate(content, c.opts.ContentLimit), c.opts.Timeout)
	verdict.LatencyMs = time.Since(start).Milliseconds()
	verdict.RawText = raw
	if err != nil {
		c.warn("evaluation failed", "document_id", documentID, "error", err)
		return verdict
	}

	verdict.Kind = quality.Parse(raw)
	return verdict
}

// GenerateTitle asks the model for a document title. The raw response is
// stripped of quotes and surrounding whitespace; capping is the caller's job.
func (c *OllamaClient) GenerateTitle(ctx context.Context, prompt, content string) (string, error) {
	raw, err := c.generate(ctx, prompt+truncate(content, c.opts.TitleContentLimit), c.opts.TitleTimeout)
	if err != nil {
		return "", fmt.Errorf("generate title: %w", err)
	}

	return cleanTitle(raw), nil
}

func (c *OllamaClient) generate(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	var full string

	err := c.opts.Retry.Do(ctx, "ollama "+c.model, func() error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		body, err := json.Marshal(map[string]any{
			"model":  c.model,
			"prompt": prompt,
		})
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}

		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
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

		full = c.decodeStream(string(raw))
		return nil
	})
	if err != nil {
		return "", err
	}

	return full, nil
}

// decodeStream concatenates the "response" field of every NDJSON line.
// Undecodable lines are logged and skipped rather than failing the call.
func (c *OllamaClient) decodeStream(payload string) string {
	var full strings.Builder
	for _, line := range strings.Split(strings.TrimSpace(payload), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		var chunk struct {
			Response string `json:"response"`
		}
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			c.warn("skip undecodable response line", "error", err)
			continue
		}
		full.WriteString(chunk.Response)
	}
	return full.String()
}

func (c *OllamaClient) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.ReplaceAll(title, `"`, "")
	title = strings.ReplaceAll(title, "'", "")
	title = strings.ReplaceAll(title, "\n", " ")
	return strings.TrimSpace(title)
}

func capBody(raw []byte) string {
	const limit = 1024
	if len(raw) > limit {
		raw = raw[:limit]
	}
	return strings.TrimSpace(string(raw))
}
