package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Firecrawl calls the Firecrawl search endpoint, which searches the web and
// scrapes each hit in one request.
type Firecrawl struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

func NewFirecrawl(baseURL, apiKey string) *Firecrawl {
	return NewFirecrawlWithClient(baseURL, apiKey, &http.Client{})
}

// NewFirecrawlWithClient is useful for tests and custom transports. Deadlines
// come from Options.Timeout, not the client.
func NewFirecrawlWithClient(baseURL, apiKey string, client *http.Client) *Firecrawl {
	return &Firecrawl{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		client:  client,
	}
}

type firecrawlRequest struct {
	Query         string                 `json:"query"`
	Limit         int                    `json:"limit,omitempty"`
	Timeout       int64                  `json:"timeout,omitempty"`
	ScrapeOptions *firecrawlScrapeOption `json:"scrapeOptions,omitempty"`
}

type firecrawlScrapeOption struct {
	Formats []string `json:"formats"`
}

type firecrawlResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Markdown    string `json:"markdown"`
	} `json:"data"`
	Error string `json:"error"`
}

func (f *Firecrawl) Search(ctx context.Context, query string, opts Options) ([]Document, error) {
	if strings.TrimSpace(f.APIKey) == "" {
		return nil, errors.New("firecrawl: API key is missing")
	}

	reqBody := firecrawlRequest{
		Query:   query,
		Limit:   opts.Limit,
		Timeout: opts.Timeout.Milliseconds(),
	}
	if len(opts.Formats) > 0 {
		reqBody.ScrapeOptions = &firecrawlScrapeOption{Formats: opts.Formats}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	ctx, cancel := withTimeout(ctx, opts)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.BaseURL+"/v1/search", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.APIKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(fmt.Errorf("firecrawl request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to read response body: %w", err))
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%w: firecrawl http %d", ErrTimeout, resp.StatusCode)
	default:
		return nil, fmt.Errorf("firecrawl http %d: %s", resp.StatusCode, errorSnippet(body))
	}

	var parsed firecrawlResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal firecrawl response: %w", err)
	}
	if !parsed.Success && parsed.Error != "" {
		return nil, fmt.Errorf("firecrawl: %s", parsed.Error)
	}

	docs := make([]Document, 0, len(parsed.Data))
	for _, item := range parsed.Data {
		content := item.Markdown
		if content == "" {
			content = item.Description
		}
		docs = append(docs, Document{URL: item.URL, Title: item.Title, Content: content})
		if opts.Limit > 0 && len(docs) >= opts.Limit {
			break
		}
	}
	return docs, nil
}
