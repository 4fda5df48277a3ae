package paperless

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"DocQualityAnalyzer/internal/config"
	"DocQualityAnalyzer/internal/domain"
	"DocQualityAnalyzer/internal/ports"
	"DocQualityAnalyzer/internal/retry"
)

// Client talks to a paperless-ngx style REST API: paginated document listing,
// tagging and renaming. Authentication is a static token header; session and
// CSRF management are outside this system's scope.
type Client struct {
	apiURL     string
	apiToken   string
	pageSize   int
	retry      retry.Policy
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.DocumentStore = (*Client)(nil)

// NewClient builds a reusable document store client.
func NewClient(cfg config.PaperlessConfig, policy retry.Policy, log *slog.Logger) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	return &Client{
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		apiToken:   cfg.APIToken,
		pageSize:   pageSize,
		retry:      policy,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log,
	}
}

type listResponse struct {
	Count   int    `json:"count"`
	Next    string `json:"next"`
	Results []struct {
		ID      int    `json:"id"`
		Title   string `json:"title"`
		Content string `json:"content"`
		Tags    []int  `json:"tags"`
	} `json:"results"`
}

// FetchDocuments pages through the document listing and returns up to
// maxDocuments entries that carry non-empty content.
func (c *Client) FetchDocuments(ctx context.Context, maxDocuments int) ([]domain.Document, error) {
	var documents []domain.Document
	page := 1
	collected := 0

	for {
		var parsed listResponse
		url := fmt.Sprintf("%s/documents/?page_size=%d&page=%d", c.apiURL, c.pageSize, page)
		if err := c.getJSON(ctx, url, &parsed); err != nil {
			return nil, fmt.Errorf("fetch documents page %d: %w", page, err)
		}

		for _, doc := range parsed.Results {
			if strings.TrimSpace(doc.Content) == "" {
				continue
			}
			documents = append(documents, domain.Document{
				ID:      strconv.Itoa(doc.ID),
				Title:   doc.Title,
				Content: doc.Content,
				Tags:    doc.Tags,
			})
		}
		collected += len(parsed.Results)

		if collected >= maxDocuments || parsed.Next == "" {
			break
		}
		page++
	}

	if len(documents) > maxDocuments {
		documents = documents[:maxDocuments]
	}

	c.debug("fetched documents", "count", len(documents))
	return documents, nil
}

// TagDocument adds the tag to the document unless it is already present.
func (c *Client) TagDocument(ctx context.Context, documentID string, tagID int) error {
	url := fmt.Sprintf("%s/documents/%s/", c.apiURL, documentID)

	var current struct {
		Tags []int `json:"tags"`
	}
	if err := c.getJSON(ctx, url, &current); err != nil {
		return fmt.Errorf("read tags of %s: %w", documentID, err)
	}

	for _, existing := range current.Tags {
		if existing == tagID {
			c.debug("document already tagged", "document_id", documentID, "tag_id", tagID)
			return nil
		}
	}

	payload := map[string]any{"tags": append(current.Tags, tagID)}
	if err := c.patchJSON(ctx, url, payload); err != nil {
		return fmt.Errorf("tag document %s: %w", documentID, err)
	}

	c.debug("document tagged", "document_id", documentID, "tag_id", tagID)
	return nil
}

// RenameDocument updates the title and verifies the store accepted it.
func (c *Client) RenameDocument(ctx context.Context, documentID string, newTitle string) error {
	url := fmt.Sprintf("%s/documents/%s/", c.apiURL, documentID)

	if err := c.patchJSON(ctx, url, map[string]any{"title": newTitle}); err != nil {
		return fmt.Errorf("rename document %s: %w", documentID, err)
	}

	var current struct {
		Title string `json:"title"`
	}
	if err := c.getJSON(ctx, url, &current); err != nil {
		return fmt.Errorf("verify rename of %s: %w", documentID, err)
	}
	if current.Title != newTitle {
		return fmt.Errorf("rename of %s not applied: store reports title %q", documentID, current.Title)
	}

	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	return c.retry.Do(ctx, "paperless get", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			return statusError(resp)
		}

		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

func (c *Client) patchJSON(ctx context.Context, url string, payload any) error {
	return c.retry.Do(ctx, "paperless patch", func() error {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		c.setHeaders(req)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			return statusError(resp)
		}
		return nil
	})
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Token "+c.apiToken)
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &retry.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
