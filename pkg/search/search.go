// Package search is the boundary to the web search service. A Provider takes
// a query and returns result documents, each with an optional URL and the
// extracted text.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/mikeboe/deep-research/pkg/config"
)

// ErrTimeout marks a search that exceeded its deadline. Providers wrap it so
// callers can tell timeouts apart from other failures with errors.Is.
var ErrTimeout = errors.New("search timed out")

// Document is a single search result.
type Document struct {
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// Options are per-call search parameters.
type Options struct {
	Timeout time.Duration
	Limit   int
	Formats []string
}

// DefaultOptions is what the research engine sends with every query.
func DefaultOptions() Options {
	return Options{
		Timeout: 15 * time.Second,
		Limit:   5,
		Formats: []string{"markdown"},
	}
}

type Provider interface {
	Search(ctx context.Context, query string, opts Options) ([]Document, error)
}

// New returns the provider named by cfg.SearchProvider.
func New(cfg *config.Config) (Provider, error) {
	switch cfg.SearchProvider {
	case "firecrawl", "":
		return NewFirecrawl(cfg.FirecrawlBaseURL, cfg.FirecrawlApiKey), nil
	case "arxiv":
		return NewArxiv(), nil
	default:
		return nil, fmt.Errorf("unknown search provider: %s", cfg.SearchProvider)
	}
}

const (
	// maxResponseBytes caps how much of a provider response is read.
	maxResponseBytes = 16 << 20
	// maxErrorBody caps the response text quoted in an error.
	maxErrorBody = 512
)

// readBody reads at most maxResponseBytes from r.
func readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxResponseBytes)
	}
	return body, nil
}

// errorSnippet trims an error response body to maxErrorBody bytes.
func errorSnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= maxErrorBody {
		return s
	}
	return strings.ToValidUTF8(s[:maxErrorBody], "") + "...(truncated)"
}

// withTimeout bounds ctx by opts.Timeout when set.
func withTimeout(ctx context.Context, opts Options) (context.Context, context.CancelFunc) {
	if opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, opts.Timeout)
}

// classify wraps deadline and network timeouts with ErrTimeout.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
